package gorm

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"

	tx "github.com/tigerroll/postchunk/pkg/batch/core/tx"
)

// GormTxAdapter implements tx.Tx over a *gorm.DB returned by Begin.
type GormTxAdapter struct {
	db *gorm.DB
}

// ExecuteInsert implements tx.TxExecutor.
func (t *GormTxAdapter) ExecuteInsert(ctx context.Context, tableName string, model interface{}) (int64, error) {
	db := t.db.WithContext(ctx)
	if tableName != "" {
		db = db.Table(tableName)
	}
	result := db.Create(model)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Savepoint implements tx.Tx.
func (t *GormTxAdapter) Savepoint(name string) error {
	return t.db.SavePoint(name).Error
}

// RollbackToSavepoint implements tx.Tx.
func (t *GormTxAdapter) RollbackToSavepoint(name string) error {
	return t.db.RollbackTo(name).Error
}

// ReleaseSavepoint implements tx.Tx. gorm has no dialector hook for it; the statement
// is the same on PostgreSQL, MySQL and SQLite.
func (t *GormTxAdapter) ReleaseSavepoint(name string) error {
	return t.db.Exec("RELEASE SAVEPOINT " + name).Error
}

// TransactionManager implements tx.TransactionManager for a single *gorm.DB.
type TransactionManager struct {
	db *gorm.DB
}

// NewTransactionManager creates a TransactionManager bound to db.
func NewTransactionManager(db *gorm.DB) *TransactionManager {
	return &TransactionManager{db: db}
}

// Begin implements tx.TransactionManager.
func (m *TransactionManager) Begin(ctx context.Context, opts ...*sql.TxOptions) (tx.Tx, error) {
	var txOpts *sql.TxOptions
	if len(opts) > 0 && opts[0] != nil {
		txOpts = opts[0]
	}

	gormTx := m.db.WithContext(ctx).Begin(txOpts)
	if gormTx.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", gormTx.Error)
	}
	return &GormTxAdapter{db: gormTx}, nil
}

// Commit implements tx.TransactionManager.
func (m *TransactionManager) Commit(t tx.Tx) error {
	adapter, ok := t.(*GormTxAdapter)
	if !ok {
		return fmt.Errorf("invalid transaction type: expected *GormTxAdapter, got %T", t)
	}
	return adapter.db.Commit().Error
}

// Rollback implements tx.TransactionManager.
func (m *TransactionManager) Rollback(t tx.Tx) error {
	adapter, ok := t.(*GormTxAdapter)
	if !ok {
		return fmt.Errorf("invalid transaction type: expected *GormTxAdapter, got %T", t)
	}
	return adapter.db.Rollback().Error
}

var (
	_ tx.Tx                 = (*GormTxAdapter)(nil)
	_ tx.TransactionManager = (*TransactionManager)(nil)
)
