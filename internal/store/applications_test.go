package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	apperrors "seva-portal/internal/common/errors"
	"seva-portal/internal/models"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func applicationRows(apps ...*models.Application) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "application_no", "user_id", "service_id", "applicant_name",
		"mobile", "service_name", "status", "price", "operator_price",
		"operator_id", "accepted_at", "created_at",
	})
	for _, a := range apps {
		rows.AddRow(
			a.ID, a.ApplicationNo, a.UserID, a.ServiceID, a.ApplicantName,
			a.Mobile, a.ServiceName, string(a.Status), a.Price, a.OperatorPrice,
			a.OperatorID, a.AcceptedAt, a.CreatedAt,
		)
	}
	return rows
}

func sampleApplication() *models.Application {
	return &models.Application{
		ID:            "app-001",
		ApplicationNo: "APP-1700000000000",
		ApplicantName: "John Doe",
		Mobile:        "9876543210",
		ServiceName:   "Caste Certificate",
		Status:        models.StatusSubmitted,
		CreatedAt:     time.Now().UTC(),
	}
}

func TestApplicationStore_Claim_Wins(t *testing.T) {
	db, mock := setupMockDB(t)
	s := NewApplicationStore(db)

	acceptedAt := time.Now().UTC()
	mock.ExpectExec(`UPDATE applications`).
		WithArgs("op-123", acceptedAt, "app-001").
		WillReturnResult(sqlmock.NewResult(0, 1))

	claimed, err := s.Claim(context.Background(), "app-001", "op-123", acceptedAt)
	assert.NoError(t, err)
	assert.True(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationStore_Claim_LosesRace(t *testing.T) {
	db, mock := setupMockDB(t)
	s := NewApplicationStore(db)

	// operator_id is no longer NULL at commit time: zero rows affected.
	acceptedAt := time.Now().UTC()
	mock.ExpectExec(`UPDATE applications`).
		WithArgs("op-456", acceptedAt, "app-001").
		WillReturnResult(sqlmock.NewResult(0, 0))

	claimed, err := s.Claim(context.Background(), "app-001", "op-456", acceptedAt)
	assert.NoError(t, err)
	assert.False(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationStore_Claim_StoreError(t *testing.T) {
	db, mock := setupMockDB(t)
	s := NewApplicationStore(db)

	acceptedAt := time.Now().UTC()
	mock.ExpectExec(`UPDATE applications`).
		WithArgs("op-123", acceptedAt, "app-001").
		WillReturnError(assert.AnError)

	claimed, err := s.Claim(context.Background(), "app-001", "op-123", acceptedAt)
	assert.Error(t, err)
	assert.False(t, claimed)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeStoreUnavailable))
}

func TestApplicationStore_SetPrice_UnassignedOnly(t *testing.T) {
	db, mock := setupMockDB(t)
	s := NewApplicationStore(db)

	mock.ExpectExec(`UPDATE applications SET price`).
		WithArgs(150.0, "app-001").
		WillReturnResult(sqlmock.NewResult(0, 1))

	updated, err := s.SetPrice(context.Background(), "app-001", 150.0)
	assert.NoError(t, err)
	assert.True(t, updated)

	// Assigned application: predicate matches nothing.
	mock.ExpectExec(`UPDATE applications SET price`).
		WithArgs(200.0, "app-001").
		WillReturnResult(sqlmock.NewResult(0, 0))

	updated, err = s.SetPrice(context.Background(), "app-001", 200.0)
	assert.NoError(t, err)
	assert.False(t, updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationStore_Relist_ClearsAssignment(t *testing.T) {
	db, mock := setupMockDB(t)
	s := NewApplicationStore(db)

	mock.ExpectExec(`UPDATE applications`).
		WithArgs("app-001").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.Relist(context.Background(), "app-001")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationStore_Relist_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	s := NewApplicationStore(db)

	mock.ExpectExec(`UPDATE applications`).
		WithArgs("app-gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Relist(context.Background(), "app-gone")
	assert.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
}

func TestApplicationStore_GetByApplicationNo(t *testing.T) {
	db, mock := setupMockDB(t)
	s := NewApplicationStore(db)

	want := sampleApplication()
	mock.ExpectQuery(`SELECT (.+) FROM applications WHERE application_no`).
		WithArgs("APP-1700000000000").
		WillReturnRows(applicationRows(want))

	got, err := s.GetByApplicationNo(context.Background(), "APP-1700000000000")
	assert.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, models.StatusSubmitted, got.Status)
	assert.Nil(t, got.OperatorID)
	assert.Nil(t, got.AcceptedAt)
}

func TestApplicationStore_GetByApplicationNo_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	s := NewApplicationStore(db)

	mock.ExpectQuery(`SELECT (.+) FROM applications WHERE application_no`).
		WithArgs("APP-DOES-NOT-EXIST").
		WillReturnRows(applicationRows())

	got, err := s.GetByApplicationNo(context.Background(), "APP-DOES-NOT-EXIST")
	assert.Nil(t, got)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
}

func TestApplicationStore_ListPool(t *testing.T) {
	db, mock := setupMockDB(t)
	s := NewApplicationStore(db)

	first := sampleApplication()
	second := sampleApplication()
	second.ID = "app-002"
	second.ApplicationNo = "APP-1700000000001"

	mock.ExpectQuery(`SELECT (.+) FROM applications\s+WHERE status = 'submitted' AND operator_id IS NULL`).
		WillReturnRows(applicationRows(second, first))

	apps, err := s.ListPool(context.Background())
	assert.NoError(t, err)
	assert.Len(t, apps, 2)
	assert.Equal(t, "app-002", apps[0].ID)
}

func TestApplicationStore_Insert_PropagatesUniqueViolation(t *testing.T) {
	db, mock := setupMockDB(t)
	s := NewApplicationStore(db)

	app := sampleApplication()
	mock.ExpectExec(`INSERT INTO applications`).
		WillReturnError(&pq.Error{Code: "23505"})

	err := s.Insert(context.Background(), app)
	assert.Error(t, err)
	// The raw pq error must survive unwrapped so the record manager can
	// regenerate the application number and retry.
	assert.True(t, IsUniqueViolation(err))
	assert.False(t, apperrors.HasCode(err, apperrors.ErrCodeStoreUnavailable))
}
