package store

import (
	"context"
	"database/sql"

	apperrors "seva-portal/internal/common/errors"
	"seva-portal/internal/models"
)

// OperatorStore persists operator accounts.
type OperatorStore struct {
	db querier
}

func NewOperatorStore(db *sql.DB) *OperatorStore {
	return &OperatorStore{db: db}
}

// WithTx returns a copy bound to tx, pairing operator writes with the
// owning users row.
func (s *OperatorStore) WithTx(tx *sql.Tx) *OperatorStore {
	return &OperatorStore{db: tx}
}

// Insert creates an operator row. New operators start inactive.
func (s *OperatorStore) Insert(ctx context.Context, op *models.Operator) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO operators (id, full_name, mobile, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		op.ID, op.FullName, op.Mobile, op.IsActive, op.CreatedAt)
	if err != nil {
		return apperrors.NewStoreUnavailableError(err)
	}
	return nil
}

// GetByID returns the operator or a NOT_FOUND error.
func (s *OperatorStore) GetByID(ctx context.Context, id string) (*models.Operator, error) {
	var (
		op     models.Operator
		mobile sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, full_name, mobile, is_active, created_at
		FROM operators WHERE id = $1`, id).
		Scan(&op.ID, &op.FullName, &mobile, &op.IsActive, &op.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("operator", id)
	}
	if err != nil {
		return nil, apperrors.NewStoreUnavailableError(err)
	}
	op.Mobile = mobile.String
	return &op, nil
}

// SetActive flips the activation gate. Approval and deactivation are
// both this call.
func (s *OperatorStore) SetActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE operators SET is_active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return apperrors.NewStoreUnavailableError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewStoreUnavailableError(err)
	}
	if affected == 0 {
		return apperrors.NewNotFoundError("operator", id)
	}
	return nil
}

// Delete removes the operator row. Applications assigned to it are left
// untouched; relisting them first is the admin's call.
func (s *OperatorStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM operators WHERE id = $1`, id)
	if err != nil {
		return apperrors.NewStoreUnavailableError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewStoreUnavailableError(err)
	}
	if affected == 0 {
		return apperrors.NewNotFoundError("operator", id)
	}
	return nil
}

// List returns all operators, newest first.
func (s *OperatorStore) List(ctx context.Context) ([]*models.Operator, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, full_name, mobile, is_active, created_at
		FROM operators ORDER BY created_at DESC`)
	if err != nil {
		return nil, apperrors.NewStoreUnavailableError(err)
	}
	defer rows.Close()

	var ops []*models.Operator
	for rows.Next() {
		var (
			op     models.Operator
			mobile sql.NullString
		)
		if err := rows.Scan(&op.ID, &op.FullName, &mobile, &op.IsActive, &op.CreatedAt); err != nil {
			return nil, apperrors.NewStoreUnavailableError(err)
		}
		op.Mobile = mobile.String
		ops = append(ops, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreUnavailableError(err)
	}
	return ops, nil
}
