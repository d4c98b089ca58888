// Package sqlite registers the SQLite dialector with the gorm adapter.
package sqlite

import (
	"errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/postchunk/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/postchunk/pkg/batch/adapter/database/gorm"
)

// init registers the SQLite dialector factory with the gorm adapter.
func init() {
	gormadapter.RegisterDialector("sqlite", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Database == "" {
			return nil, errors.New("SQLite database path cannot be empty")
		}
		return sqlite.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString returns the SQLite file path; the gorm dialector expects it directly.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	return c.Database
}
