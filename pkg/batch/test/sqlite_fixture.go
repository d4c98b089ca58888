package test

import (
	"embed"
	"errors"
	"path/filepath"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/postchunk/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/postchunk/pkg/batch/adapter/database/gorm"
	_ "github.com/tigerroll/postchunk/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/tigerroll/postchunk/pkg/batch/support/util/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// NewSQLiteConfig returns settings for a fresh SQLite file under t.TempDir()
// whose posts, comments and facebook_chunks tables have been created.
// facebook_chunks carries a UNIQUE constraint on post_id so duplicate inserts fail.
func NewSQLiteConfig(t testing.TB) dbconfig.DatabaseConfig {
	t.Helper()
	cfg := dbconfig.DatabaseConfig{
		Type:     "sqlite",
		Database: filepath.Join(t.TempDir(), "postchunk.db"),
	}
	migrateUp(t, cfg)
	return cfg
}

// NewSQLiteDB opens a migrated SQLite database and closes it when the test ends.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gormadapter.Open(NewSQLiteConfig(t), logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// migrateUp applies the embedded schema using a dedicated connection,
// which golang-migrate closes together with the migrate instance.
func migrateUp(t testing.TB, cfg dbconfig.DatabaseConfig) {
	t.Helper()

	db, err := gormadapter.Open(cfg, logger.Nop())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)

	source, err := iofs.New(migrationsFS, "migrations")
	require.NoError(t, err)
	driver, err := migratesqlite.WithInstance(sqlDB, &migratesqlite.Config{})
	require.NoError(t, err)

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	require.NoError(t, err)
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		require.NoError(t, err)
	}
	srcErr, dbErr := m.Close()
	require.NoError(t, srcErr)
	require.NoError(t, dbErr)
}
