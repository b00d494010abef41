package store

import (
	"context"
	"database/sql"

	apperrors "seva-portal/internal/common/errors"
)

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx,
// letting a store run its statements inside a caller-owned transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Transact runs fn inside a transaction: an error from fn rolls back,
// nil commits. fn's error is returned as-is so callers can still match
// on driver errors such as unique violations.
func Transact(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStoreUnavailableError(err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperrors.NewStoreUnavailableError(err)
	}
	return nil
}
