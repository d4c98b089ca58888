// Package database defines the contracts between postchunk and its relational stores.
package database

import (
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/postchunk/pkg/batch/adapter/database/config"
)

// Connection names used by the pipeline. Reads and writes never share a connection.
const (
	ReaderConnection = "reader"
	WriterConnection = "writer"
)

// DBProvider opens and releases named database connections.
type DBProvider interface {
	// GetConnection returns the open connection for name, establishing it on first use.
	GetConnection(name string) (*gorm.DB, error)
	// Close releases the named connection. Closing an unopened name is a no-op.
	Close(name string) error
	// CloseAll releases every connection still open.
	CloseAll() error
	// Config returns the settings registered for name.
	Config(name string) (dbconfig.DatabaseConfig, bool)
}
