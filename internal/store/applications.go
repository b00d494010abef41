// Package store implements the record store contract over PostgreSQL.
// All store failures are mapped to the portal error taxonomy here so
// the services above never see driver errors.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	apperrors "seva-portal/internal/common/errors"
	"seva-portal/internal/models"
)

const applicationColumns = `id, application_no, user_id, service_id, applicant_name,
	mobile, service_name, status, price, operator_price, operator_id, accepted_at, created_at`

// ApplicationStore persists Application records.
type ApplicationStore struct {
	db *sql.DB
}

func NewApplicationStore(db *sql.DB) *ApplicationStore {
	return &ApplicationStore{db: db}
}

// IsUniqueViolation reports whether err is a postgres unique-constraint
// violation (the arbiter for application_no uniqueness).
func IsUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

// Insert writes a new application row. A unique violation on
// application_no is returned unwrapped so the record manager can
// regenerate the number and retry.
func (s *ApplicationStore) Insert(ctx context.Context, app *models.Application) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO applications (
			`+applicationColumns+`
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		app.ID,
		app.ApplicationNo,
		nullString(app.UserID),
		nullString(app.ServiceID),
		app.ApplicantName,
		app.Mobile,
		app.ServiceName,
		string(app.Status),
		nullFloat(app.Price),
		nullFloat(app.OperatorPrice),
		nullString(app.OperatorID),
		nullTime(app.AcceptedAt),
		app.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return apperrors.NewStoreUnavailableError(err)
	}
	return nil
}

// GetByID returns the application or a NOT_FOUND error.
func (s *ApplicationStore) GetByID(ctx context.Context, id string) (*models.Application, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+applicationColumns+`
		FROM applications WHERE id = $1`, id)
	app, err := scanApplication(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("application", id)
	}
	if err != nil {
		return nil, apperrors.NewStoreUnavailableError(err)
	}
	return app, nil
}

// GetByApplicationNo returns the application matching the human-facing
// number exactly, or a NOT_FOUND error. The unique index on
// application_no makes a multi-row match impossible; QueryRow's
// single-row contract treats it as an error either way.
func (s *ApplicationStore) GetByApplicationNo(ctx context.Context, applicationNo string) (*models.Application, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+applicationColumns+`
		FROM applications WHERE application_no = $1`, applicationNo)
	app, err := scanApplication(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("application", applicationNo)
	}
	if err != nil {
		return nil, apperrors.NewStoreUnavailableError(err)
	}
	return app, nil
}

// ListPool returns unassigned submitted applications, newest first.
func (s *ApplicationStore) ListPool(ctx context.Context) ([]*models.Application, error) {
	return s.list(ctx, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE status = 'submitted' AND operator_id IS NULL
		ORDER BY created_at DESC`)
}

// ListByOperator returns the applications assigned to one operator,
// most recently accepted first.
func (s *ApplicationStore) ListByOperator(ctx context.Context, operatorID string) ([]*models.Application, error) {
	return s.list(ctx, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE operator_id = $1
		ORDER BY accepted_at DESC`, operatorID)
}

// ListByUser returns a citizen's own applications, newest first.
func (s *ApplicationStore) ListByUser(ctx context.Context, userID string) ([]*models.Application, error) {
	return s.list(ctx, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
}

// ListAll returns every application, newest first.
func (s *ApplicationStore) ListAll(ctx context.Context) ([]*models.Application, error) {
	return s.list(ctx, `
		SELECT `+applicationColumns+`
		FROM applications
		ORDER BY created_at DESC`)
}

// CountByStatus returns the number of applications in a given status.
func (s *ApplicationStore) CountByStatus(ctx context.Context, status models.ApplicationStatus) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM applications WHERE status = $1`, string(status)).Scan(&n)
	if err != nil {
		return 0, apperrors.NewStoreUnavailableError(err)
	}
	return n, nil
}

// Claim atomically assigns the application to operatorID, moving it to
// under_review. The predicate re-asserts operator_id IS NULL at commit
// time, so two concurrent claims can never both succeed: the loser sees
// zero rows affected and gets claimed=false.
func (s *ApplicationStore) Claim(ctx context.Context, applicationID, operatorID string, acceptedAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE applications
		SET operator_id = $1, status = 'under_review', accepted_at = $2
		WHERE id = $3 AND operator_id IS NULL AND status = 'submitted'`,
		operatorID, acceptedAt, applicationID)
	if err != nil {
		return false, apperrors.NewStoreUnavailableError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.NewStoreUnavailableError(err)
	}
	return affected == 1, nil
}

// UpdateStatus sets the status unconditionally. Transition legality is
// the service's responsibility; this is also the admin override path.
func (s *ApplicationStore) UpdateStatus(ctx context.Context, applicationID string, status models.ApplicationStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE applications SET status = $1 WHERE id = $2`,
		string(status), applicationID)
	if err != nil {
		return apperrors.NewStoreUnavailableError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewStoreUnavailableError(err)
	}
	if affected == 0 {
		return apperrors.NewNotFoundError("application", applicationID)
	}
	return nil
}

// SetPrice updates the citizen-facing price only while the application
// is unassigned. The operator_id IS NULL predicate makes the price lock
// hold even against a concurrent claim.
func (s *ApplicationStore) SetPrice(ctx context.Context, applicationID string, price float64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE applications SET price = $1
		WHERE id = $2 AND operator_id IS NULL`,
		price, applicationID)
	if err != nil {
		return false, apperrors.NewStoreUnavailableError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.NewStoreUnavailableError(err)
	}
	return affected == 1, nil
}

// Relist strips assignment and returns the application to the pool.
// Unconditional; last writer wins for this admin corrective action.
func (s *ApplicationStore) Relist(ctx context.Context, applicationID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE applications
		SET status = 'submitted', operator_id = NULL, accepted_at = NULL
		WHERE id = $1`, applicationID)
	if err != nil {
		return apperrors.NewStoreUnavailableError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewStoreUnavailableError(err)
	}
	if affected == 0 {
		return apperrors.NewNotFoundError("application", applicationID)
	}
	return nil
}

func (s *ApplicationStore) list(ctx context.Context, query string, args ...interface{}) ([]*models.Application, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStoreUnavailableError(err)
	}
	defer rows.Close()

	var apps []*models.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, apperrors.NewStoreUnavailableError(err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreUnavailableError(err)
	}
	return apps, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanApplication(row scanner) (*models.Application, error) {
	var (
		app           models.Application
		userID        sql.NullString
		serviceID     sql.NullString
		status        string
		price         sql.NullFloat64
		operatorPrice sql.NullFloat64
		operatorID    sql.NullString
		acceptedAt    sql.NullTime
	)
	err := row.Scan(
		&app.ID,
		&app.ApplicationNo,
		&userID,
		&serviceID,
		&app.ApplicantName,
		&app.Mobile,
		&app.ServiceName,
		&status,
		&price,
		&operatorPrice,
		&operatorID,
		&acceptedAt,
		&app.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	app.Status = models.ApplicationStatus(status)
	app.UserID = stringPtr(userID)
	app.ServiceID = stringPtr(serviceID)
	app.Price = floatPtr(price)
	app.OperatorPrice = floatPtr(operatorPrice)
	app.OperatorID = stringPtr(operatorID)
	app.AcceptedAt = timePtr(acceptedAt)
	return &app, nil
}

func nullString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
