// Package tx provides the transaction abstraction used by the chunk writer.
// A transaction is opened lazily per commit segment; savepoints allow a single failed
// insert to be undone without discarding the rest of the segment.
package tx

import (
	"context"
	"database/sql"
)

// TxExecutor defines the write operations executable within a transaction.
type TxExecutor interface {
	// ExecuteInsert inserts model (a pointer to a struct or a slice of structs) into tableName.
	// Returns the number of affected rows.
	ExecuteInsert(ctx context.Context, tableName string, model interface{}) (rowsAffected int64, err error)
}

// Tx represents an ongoing database transaction.
type Tx interface {
	TxExecutor

	// Savepoint creates a new savepoint within the current transaction.
	Savepoint(name string) error
	// RollbackToSavepoint undoes changes made after the named savepoint, preserving earlier ones.
	RollbackToSavepoint(name string) error
	// ReleaseSavepoint discards the named savepoint, keeping the changes made after it.
	ReleaseSavepoint(name string) error
}

// TransactionManager manages the lifecycle of database transactions (begin, commit, rollback).
type TransactionManager interface {
	// Begin starts a new database transaction.
	// opts: Optional transaction options (e.g., isolation level).
	Begin(ctx context.Context, opts ...*sql.TxOptions) (Tx, error)
	// Commit persists all changes made within tx.
	Commit(tx Tx) error
	// Rollback undoes all changes made within tx.
	Rollback(tx Tx) error
}
