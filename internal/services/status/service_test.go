package status

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	apperrors "seva-portal/internal/common/errors"
	"seva-portal/internal/common/logger"
	"seva-portal/internal/models"
	"seva-portal/internal/store"
)

type staticResults struct {
	url string
	err error
}

func (r *staticResults) LatestResultURL(context.Context, string) (string, error) {
	return r.url, r.err
}

func setupService(t *testing.T, results resultSource) (*Service, sqlmock.Sqlmock, *miniredis.Miniredis) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	svc := NewService(store.NewApplicationStore(db), results, rdb, 30*time.Second, logger.NewTestLogger(t))
	return svc, mock, mr
}

func applicationRow(app *models.Application) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "application_no", "user_id", "service_id", "applicant_name",
		"mobile", "service_name", "status", "price", "operator_price",
		"operator_id", "accepted_at", "created_at",
	}).AddRow(
		app.ID, app.ApplicationNo, app.UserID, app.ServiceID, app.ApplicantName,
		app.Mobile, app.ServiceName, string(app.Status), app.Price, app.OperatorPrice,
		app.OperatorID, app.AcceptedAt, app.CreatedAt,
	)
}

func storedApplication(status models.ApplicationStatus) *models.Application {
	return &models.Application{
		ID:            "app-001",
		ApplicationNo: "APP-1700000000000",
		ApplicantName: "John Doe",
		Mobile:        "9876543210",
		ServiceName:   "Income Certificate",
		Status:        status,
		CreatedAt:     time.Now().UTC().Truncate(time.Second),
	}
}

func TestLookup_EmptyNumber(t *testing.T) {
	svc, _, _ := setupService(t, &staticResults{})

	_, err := svc.Lookup(context.Background(), "   ")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidationFailed))
}

func TestLookup_NotFound(t *testing.T) {
	svc, mock, mr := setupService(t, &staticResults{})

	mock.ExpectQuery(`SELECT (.+) FROM applications WHERE application_no`).
		WithArgs("APP-NOPE").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.Lookup(context.Background(), "APP-NOPE")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))

	// Negative results are never cached.
	assert.False(t, mr.Exists("status:APP-NOPE"))
}

func TestLookup_InFlight(t *testing.T) {
	svc, mock, mr := setupService(t, &staticResults{})

	mock.ExpectQuery(`SELECT (.+) FROM applications WHERE application_no`).
		WithArgs("APP-1700000000000").
		WillReturnRows(applicationRow(storedApplication(models.StatusUnderReview)))

	summary, err := svc.Lookup(context.Background(), "APP-1700000000000")
	assert.NoError(t, err)
	assert.Equal(t, models.StatusUnderReview, summary.Status)
	assert.Empty(t, summary.DocumentURL)
	assert.True(t, mr.Exists("status:APP-1700000000000"))
}

func TestLookup_CompletedIncludesResultLink(t *testing.T) {
	svc, mock, _ := setupService(t, &staticResults{url: "https://blobs.example/result.pdf"})

	mock.ExpectQuery(`SELECT (.+) FROM applications WHERE application_no`).
		WithArgs("APP-1700000000000").
		WillReturnRows(applicationRow(storedApplication(models.StatusCompleted)))

	summary, err := svc.Lookup(context.Background(), "APP-1700000000000")
	assert.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, summary.Status)
	assert.Equal(t, "https://blobs.example/result.pdf", summary.DocumentURL)
}

func TestLookup_ServedFromCache(t *testing.T) {
	svc, mock, _ := setupService(t, &staticResults{})

	mock.ExpectQuery(`SELECT (.+) FROM applications WHERE application_no`).
		WithArgs("APP-1700000000000").
		WillReturnRows(applicationRow(storedApplication(models.StatusSubmitted)))

	first, err := svc.Lookup(context.Background(), "APP-1700000000000")
	assert.NoError(t, err)

	// Second lookup never touches the store.
	second, err := svc.Lookup(context.Background(), "APP-1700000000000")
	assert.NoError(t, err)
	assert.Equal(t, first.ApplicationNo, second.ApplicationNo)
	assert.Equal(t, first.Status, second.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLookup_CacheDownDegradesToStore(t *testing.T) {
	svc, mock, mr := setupService(t, &staticResults{})
	mr.Close()

	mock.ExpectQuery(`SELECT (.+) FROM applications WHERE application_no`).
		WithArgs("APP-1700000000000").
		WillReturnRows(applicationRow(storedApplication(models.StatusSubmitted)))

	summary, err := svc.Lookup(context.Background(), "APP-1700000000000")
	assert.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, summary.Status)
}
