package store

import (
	"context"
	"database/sql"

	apperrors "seva-portal/internal/common/errors"
	"seva-portal/internal/models"
)

const userColumns = `id, full_name, email, mobile, role, is_active, password_hash, created_at`

// UserStore persists user accounts consulted by the identity service.
type UserStore struct {
	db querier
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// WithTx returns a copy bound to tx, for mutations that must land
// together with writes to other tables.
func (s *UserStore) WithTx(tx *sql.Tx) *UserStore {
	return &UserStore{db: tx}
}

// Insert creates a user row.
func (s *UserStore) Insert(ctx context.Context, u *models.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.FullName, u.Email, u.Mobile, string(u.Role), u.IsActive, u.PasswordHash, u.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return apperrors.NewStoreUnavailableError(err)
	}
	return nil
}

// GetByEmail returns the user or a NOT_FOUND error.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.get(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// GetByID returns the user or a NOT_FOUND error.
func (s *UserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.get(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// SetActive flips the user's active flag, mirroring the operator gate.
func (s *UserStore) SetActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return apperrors.NewStoreUnavailableError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewStoreUnavailableError(err)
	}
	if affected == 0 {
		return apperrors.NewNotFoundError("user", id)
	}
	return nil
}

// Delete removes a user row.
func (s *UserStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return apperrors.NewStoreUnavailableError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewStoreUnavailableError(err)
	}
	if affected == 0 {
		return apperrors.NewNotFoundError("user", id)
	}
	return nil
}

func (s *UserStore) get(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var (
		u      models.User
		mobile sql.NullString
		role   string
	)
	err := s.db.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.FullName, &u.Email, &mobile, &role, &u.IsActive, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("user", "")
	}
	if err != nil {
		return nil, apperrors.NewStoreUnavailableError(err)
	}
	u.Mobile = mobile.String
	u.Role = models.Role(role)
	return &u, nil
}
