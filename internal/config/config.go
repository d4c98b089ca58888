// Package config loads the job configuration from defaults, YAML, .env files and the environment.
package config

import (
	"fmt"
	"sort"

	"github.com/tigerroll/postchunk/internal/repository"
	"github.com/tigerroll/postchunk/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/postchunk/pkg/batch/adapter/database/config"
	"github.com/tigerroll/postchunk/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/postchunk/pkg/batch/support/util/exception"
)

// EmbeddedConfig holds the content of the configuration file compiled into the binary.
type EmbeddedConfig []byte

// ProcessingConfig controls assembly and batching.
type ProcessingConfig struct {
	// ChunkSize is the word budget of an assembled chunk.
	ChunkSize int `yaml:"chunk_size"`
	// BatchCommitSize is the number of successful inserts between commits.
	BatchCommitSize int `yaml:"batch_commit_size"`
	// ProgressInterval is how many posts are read between progress log lines.
	ProgressInterval int `yaml:"progress_interval"`
}

// TablesConfig names the source and destination tables.
type TablesConfig struct {
	Posts    string `yaml:"posts"`
	Comments string `yaml:"comments"`
	Chunks   string `yaml:"chunks"`
}

// AWSConfig holds deployment settings carried for the hosting environment.
type AWSConfig struct {
	Region string `yaml:"region"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// MetricsConfig configures run metrics.
type MetricsConfig struct {
	// PushgatewayURL enables pushing the run metrics when set.
	PushgatewayURL string `yaml:"pushgateway_url"`
	JobName        string `yaml:"job_name"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	// OTLPEndpoint enables span export over OTLP/HTTP when set (host:port).
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
	ServiceName  string `yaml:"service_name"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	// Database holds the primary connection settings shared by every role.
	Database dbconfig.DatabaseConfig `yaml:"database"`
	// Connections holds per-role overrides keyed by connection name ("reader", "writer").
	// Each entry may set any database field; unset fields fall back to Database.
	Connections map[string]map[string]interface{} `yaml:"connections"`
	Processing  ProcessingConfig                  `yaml:"processing"`
	Tables      TablesConfig                      `yaml:"tables"`
	AWS         AWSConfig                         `yaml:"aws"`
	AdminList   []string                          `yaml:"admin_list"`
	System      SystemConfig                      `yaml:"system"`
	Metrics     MetricsConfig                     `yaml:"metrics"`
	Tracing     TracingConfig                     `yaml:"tracing"`
}

// NewConfig returns a Config populated with default values.
func NewConfig() *Config {
	return &Config{
		Database: dbconfig.DatabaseConfig{
			Type: "postgres",
			Port: 5432,
		},
		Connections: map[string]map[string]interface{}{},
		Processing: ProcessingConfig{
			ChunkSize:        300,
			BatchCommitSize:  1000,
			ProgressInterval: 100,
		},
		Tables: TablesConfig{
			Posts:    "posts",
			Comments: "comments",
			Chunks:   "facebook_chunks",
		},
		AWS:       AWSConfig{Region: "us-east-1"},
		AdminList: []string{},
		System: SystemConfig{
			Logging: LoggingConfig{Level: "INFO"},
		},
		Metrics: MetricsConfig{JobName: "postchunk"},
		Tracing: TracingConfig{ServiceName: "postchunk"},
	}
}

// TableNames converts the table settings for the repositories.
func (c *Config) TableNames() repository.TableNames {
	return repository.TableNames{
		Posts:    c.Tables.Posts,
		Comments: c.Tables.Comments,
		Chunks:   c.Tables.Chunks,
	}
}

// Validate checks that the settings required to run the job are present.
func (c *Config) Validate() error {
	db := c.Database
	if db.Type == "" {
		return invalid("database type is missing from configuration")
	}
	if db.Database == "" {
		return invalid("database field 'database' is missing from configuration")
	}
	if db.Type != "sqlite" {
		if db.Host == "" {
			return invalid("database field 'host' is missing from configuration")
		}
		if db.User == "" {
			return invalid("database field 'user' is missing from configuration")
		}
		if db.Port <= 0 {
			return invalid("database field 'port' must be positive, got %d", db.Port)
		}
	}
	if c.Processing.ChunkSize <= 0 {
		return invalid("processing.chunk_size must be positive, got %d", c.Processing.ChunkSize)
	}
	if c.Processing.BatchCommitSize <= 0 {
		return invalid("processing.batch_commit_size must be positive, got %d", c.Processing.BatchCommitSize)
	}
	if c.Tables.Posts == "" || c.Tables.Comments == "" || c.Tables.Chunks == "" {
		return invalid("tables.posts, tables.comments and tables.chunks must all be set")
	}
	return nil
}

// ConnectionConfigs resolves the settings of every named connection. The reader and
// writer roles always exist; each starts from Database and applies its override map.
func (c *Config) ConnectionConfigs() (map[string]dbconfig.DatabaseConfig, error) {
	names := []string{database.ReaderConnection, database.WriterConnection}
	for name := range c.Connections {
		if name != database.ReaderConnection && name != database.WriterConnection {
			names = append(names, name)
		}
	}
	sort.Strings(names[2:])

	out := make(map[string]dbconfig.DatabaseConfig, len(names))
	for _, name := range names {
		cfg := c.Database
		if override := c.Connections[name]; len(override) > 0 {
			if err := configbinder.Bind(normalizeDatabaseKeys(override), &cfg); err != nil {
				return nil, exception.NewBatchErrorf(exception.ModuleConfig, "invalid override for connection '%s'", name, err)
			}
		}
		out[name] = cfg
	}
	return out, nil
}

// normalizeDatabaseKeys accepts "username" as an alias of "user".
func normalizeDatabaseKeys(m map[string]interface{}) map[string]interface{} {
	return configbinder.RenameKey(m, "username", "user")
}

func invalid(format string, args ...interface{}) error {
	return exception.NewBatchError(exception.ModuleConfig, fmt.Sprintf(format, args...), nil, false, false)
}
