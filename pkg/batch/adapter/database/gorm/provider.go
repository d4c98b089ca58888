// Package gorm implements the database adapters on top of gorm.io/gorm.
// Dialects register themselves through RegisterDialector from their own sub-packages.
package gorm

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"gorm.io/gorm"

	"github.com/tigerroll/postchunk/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/postchunk/pkg/batch/adapter/database/config"
	"github.com/tigerroll/postchunk/pkg/batch/support/util/logger"
)

// DialectorFactory generates a gorm.Dialector from a dbconfig.DatabaseConfig.
type DialectorFactory func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error)

var (
	dialectorRegistry = make(map[string]DialectorFactory)
	dialectorMutex    sync.RWMutex
)

// RegisterDialector registers a DialectorFactory for the given database type.
func RegisterDialector(dbType string, factory DialectorFactory) {
	dialectorMutex.Lock()
	defer dialectorMutex.Unlock()
	dialectorRegistry[dbType] = factory
}

// GetDialectorFactory retrieves the DialectorFactory corresponding to the specified DB type.
func GetDialectorFactory(dbType string) (DialectorFactory, error) {
	dialectorMutex.RLock()
	defer dialectorMutex.RUnlock()
	factory, ok := dialectorRegistry[dbType]
	if !ok {
		return nil, fmt.Errorf("no dialector registered for database type: %s", dbType)
	}
	return factory, nil
}

// RegisteredTypes lists the database types with a registered dialector, sorted.
func RegisteredTypes() []string {
	dialectorMutex.RLock()
	defer dialectorMutex.RUnlock()
	types := make([]string, 0, len(dialectorRegistry))
	for t := range dialectorRegistry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Provider implements database.DBProvider. It holds one lazily opened *gorm.DB per connection name.
type Provider struct {
	configs     map[string]dbconfig.DatabaseConfig
	connections map[string]*gorm.DB
	log         logger.Logger
	mu          sync.Mutex
}

// NewProvider creates a Provider for the given named connection settings.
func NewProvider(configs map[string]dbconfig.DatabaseConfig, log logger.Logger) *Provider {
	return &Provider{
		configs:     configs,
		connections: make(map[string]*gorm.DB),
		log:         log.Named("db"),
	}
}

// Config implements database.DBProvider.
func (p *Provider) Config(name string) (dbconfig.DatabaseConfig, bool) {
	cfg, ok := p.configs[name]
	return cfg, ok
}

// GetConnection implements database.DBProvider.
func (p *Provider) GetConnection(name string) (*gorm.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if db, ok := p.connections[name]; ok {
		return db, nil
	}

	cfg, ok := p.configs[name]
	if !ok {
		return nil, fmt.Errorf("database configuration '%s' not found", name)
	}

	db, err := Open(cfg, p.log)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection '%s' (%s): %w", name, cfg, err)
	}
	p.connections[name] = db
	p.log.Infof("Established new DB connection: %s (%s)", name, cfg)
	return db, nil
}

// Close implements database.DBProvider.
func (p *Provider) Close(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	db, ok := p.connections[name]
	if !ok {
		return nil
	}
	delete(p.connections, name)
	return closeDB(name, db, p.log)
}

// CloseAll implements database.DBProvider.
func (p *Provider) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var result *multierror.Error
	for name, db := range p.connections {
		if err := closeDB(name, db, p.log); err != nil {
			result = multierror.Append(result, err)
		}
		delete(p.connections, name)
	}
	return result.ErrorOrNil()
}

// Open establishes a GORM connection based on DatabaseConfig and applies pool settings.
func Open(cfg dbconfig.DatabaseConfig, log logger.Logger) (*gorm.DB, error) {
	dialectorFactory, err := GetDialectorFactory(cfg.Type)
	if err != nil {
		return nil, err
	}
	dialector, err := dialectorFactory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create dialector for %s: %w", cfg.Type, err)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 NewGormLogger(log),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open GORM connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if cfg.Pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.Pool.MaxOpenConns)
	}
	if cfg.Pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.Pool.MaxIdleConns)
	}
	if cfg.Pool.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.Pool.ConnMaxLifetimeMinutes) * time.Minute)
	}
	return db, nil
}

func closeDB(name string, db *gorm.DB, log logger.Logger) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("connection '%s': %w", name, err)
	}
	log.Infof("Closing database connection '%s'...", name)
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close connection '%s': %w", name, err)
	}
	return nil
}

var _ database.DBProvider = (*Provider)(nil)
