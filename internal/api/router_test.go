package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"seva-portal/internal/common/logger"
	"seva-portal/internal/intake"
	"seva-portal/internal/models"
	"seva-portal/internal/services/application"
	"seva-portal/internal/services/assignment"
	"seva-portal/internal/services/document"
	"seva-portal/internal/services/identity"
	"seva-portal/internal/services/status"
	"seva-portal/internal/store"
	"seva-portal/pkg/catalog"
)

type testEnv struct {
	router http.Handler
	mock   sqlmock.Sqlmock
	redis  *miniredis.Miniredis
}

func setupEnv(t *testing.T) *testEnv {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	log := logger.NewTestLogger(t)

	appStore := store.NewApplicationStore(db)
	docStore := store.NewDocumentStore(db)
	opStore := store.NewOperatorStore(db)
	userStore := store.NewUserStore(db)
	auditStore := store.NewAuditStore(db)

	identitySvc := identity.NewService(db, userStore, opStore, auditStore, rdb, time.Hour, 4, log)
	applicationSvc := application.NewService(appStore, docStore, auditStore, log)
	assignmentSvc := assignment.NewService(appStore, docStore, auditStore, nil, log)
	documentSvc := document.NewService(docStore, appStore, nil, log)
	statusSvc := status.NewService(appStore, documentSvc, rdb, 30*time.Second, log)

	intakeHandler, err := intake.NewHandler(applicationSvc, log)
	require.NoError(t, err)

	server := NewServer(Deps{
		Identity:     identitySvc,
		Applications: applicationSvc,
		Assignments:  assignmentSvc,
		Documents:    documentSvc,
		Status:       statusSvc,
		Intake:       intakeHandler,
		Catalog: &catalog.ServiceCatalog{Services: []catalog.ServiceOffering{
			{ID: "svc-1", Name: "Income Certificate", Fee: 150, Active: true},
			{ID: "svc-2", Name: "Retired Service", Active: false},
		}},
		Logger: log,
	})

	return &testEnv{router: server.Router(), mock: mock, redis: mr}
}

// session plants an authenticated identity directly in Redis and
// returns its bearer token.
func (e *testEnv) session(t *testing.T, ident models.Identity) string {
	raw, err := json.Marshal(ident)
	require.NoError(t, err)
	token := "test-token-" + string(ident.Role)
	require.NoError(t, e.redis.Set("session:"+token, string(raw)))
	return token
}

func (e *testEnv) do(method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
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

func poolApplication() *models.Application {
	return &models.Application{
		ID:            "app-001",
		ApplicationNo: "APP-1700000000000",
		ApplicantName: "John Doe",
		Mobile:        "9876543210",
		ServiceName:   "Income Certificate",
		Status:        models.StatusSubmitted,
		CreatedAt:     time.Now().UTC(),
	}
}

func TestStatusLookup_Public(t *testing.T) {
	env := setupEnv(t)

	env.mock.ExpectQuery(`SELECT (.+) FROM applications WHERE application_no`).
		WithArgs("APP-1700000000000").
		WillReturnRows(applicationRow(poolApplication()))

	rec := env.do(http.MethodGet, "/api/status/APP-1700000000000", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var summary models.StatusSummary
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, models.StatusSubmitted, summary.Status)
	assert.Equal(t, "APP-1700000000000", summary.ApplicationNo)
}

func TestStatusLookup_UnknownNumberIs404(t *testing.T) {
	env := setupEnv(t)

	env.mock.ExpectQuery(`SELECT (.+) FROM applications WHERE application_no`).
		WithArgs("APP-NOPE").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rec := env.do(http.MethodGet, "/api/status/APP-NOPE", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "NOT_FOUND", resp["code"])
}

func TestAuthenticatedRoutesRejectMissingToken(t *testing.T) {
	env := setupEnv(t)

	rec := env.do(http.MethodPost, "/api/applications", "", `{"applicantName":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCitizenCannotReachOperatorRoutes(t *testing.T) {
	env := setupEnv(t)

	token := env.session(t, models.Identity{UserID: "user-1", Role: models.RoleCitizen, IsActive: true})
	rec := env.do(http.MethodGet, "/api/assignments/pool", token, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestOperatorCannotReachAdminRoutes(t *testing.T) {
	env := setupEnv(t)

	token := env.session(t, models.Identity{UserID: "op-1", Role: models.RoleOperator, IsActive: true})
	rec := env.do(http.MethodPost, "/api/admin/applications/app-001/relist", token, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAcceptOverHTTP_WinAndLose(t *testing.T) {
	env := setupEnv(t)
	token := env.session(t, models.Identity{UserID: "op-1", Role: models.RoleOperator, IsActive: true})

	// Win: unclaimed at read time and the conditional update lands.
	env.mock.ExpectQuery(`SELECT (.+) FROM applications WHERE id`).
		WithArgs("app-001").
		WillReturnRows(applicationRow(poolApplication()))
	env.mock.ExpectExec(`UPDATE applications`).
		WithArgs("op-1", sqlmock.AnyArg(), "app-001").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := env.do(http.MethodPost, "/api/applications/app-001/accept", token, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var app models.Application
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &app))
	assert.Equal(t, models.StatusUnderReview, app.Status)
	assert.Equal(t, "op-1", *app.OperatorID)

	// Lose: claimed between read and update. Conflict, distinct code.
	env.mock.ExpectQuery(`SELECT (.+) FROM applications WHERE id`).
		WithArgs("app-002").
		WillReturnRows(applicationRow(func() *models.Application {
			a := poolApplication()
			a.ID = "app-002"
			return a
		}()))
	env.mock.ExpectExec(`UPDATE applications`).
		WithArgs("op-1", sqlmock.AnyArg(), "app-002").
		WillReturnResult(sqlmock.NewResult(0, 0))

	rec = env.do(http.MethodPost, "/api/applications/app-002/accept", token, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ALREADY_CLAIMED", resp["code"])
}

func documentRows(docs ...*models.ApplicationDocument) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "application_id", "document_url", "document_type", "created_at",
	})
	for _, d := range docs {
		rows.AddRow(d.ID, d.ApplicationID, d.DocumentURL, d.DocumentType, d.CreatedAt)
	}
	return rows
}

func TestCitizenSeesResultDocumentOnceCompleted(t *testing.T) {
	env := setupEnv(t)
	token := env.session(t, models.Identity{UserID: "user-1", Role: models.RoleCitizen, IsActive: true})

	completed := poolApplication()
	completed.Status = models.StatusCompleted
	env.mock.ExpectQuery(`SELECT (.+) FROM applications WHERE id`).
		WithArgs("app-001").
		WillReturnRows(applicationRow(completed))
	env.mock.ExpectQuery(`SELECT (.+) FROM application_documents\s+WHERE application_id = \$1\s+ORDER BY`).
		WithArgs("app-001").
		WillReturnRows(documentRows(
			&models.ApplicationDocument{ID: "doc-2", ApplicationID: "app-001", DocumentURL: "https://blobs/result.pdf", DocumentType: models.DocTypeResult, CreatedAt: time.Now().UTC()},
			&models.ApplicationDocument{ID: "doc-1", ApplicationID: "app-001", DocumentURL: "https://blobs/id-proof.pdf", DocumentType: models.DocTypeApplicant, CreatedAt: time.Now().UTC()},
		))

	rec := env.do(http.MethodGet, "/api/applications/app-001/documents", token, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var docs []*models.ApplicationDocument
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &docs))
	assert.Len(t, docs, 2)
	assert.Equal(t, models.DocTypeResult, docs[0].DocumentType)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestCitizenDoesNotSeeResultDocumentInFlight(t *testing.T) {
	env := setupEnv(t)
	token := env.session(t, models.Identity{UserID: "user-1", Role: models.RoleCitizen, IsActive: true})

	inFlight := poolApplication()
	inFlight.Status = models.StatusUnderReview
	env.mock.ExpectQuery(`SELECT (.+) FROM applications WHERE id`).
		WithArgs("app-001").
		WillReturnRows(applicationRow(inFlight))
	env.mock.ExpectQuery(`SELECT (.+) FROM application_documents\s+WHERE application_id = \$1 AND document_type <> \$2`).
		WithArgs("app-001", models.DocTypeResult).
		WillReturnRows(documentRows(
			&models.ApplicationDocument{ID: "doc-1", ApplicationID: "app-001", DocumentURL: "https://blobs/id-proof.pdf", DocumentType: models.DocTypeApplicant, CreatedAt: time.Now().UTC()},
		))

	rec := env.do(http.MethodGet, "/api/applications/app-001/documents", token, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var docs []*models.ApplicationDocument
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &docs))
	assert.Len(t, docs, 1)
	assert.Equal(t, models.DocTypeApplicant, docs[0].DocumentType)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestLoginOverHTTP(t *testing.T) {
	env := setupEnv(t)

	hashed, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	hash := string(hashed)
	env.mock.ExpectQuery(`SELECT (.+) FROM users WHERE email`).
		WithArgs("admin@example.com").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "full_name", "email", "mobile", "role", "is_active", "password_hash", "created_at",
		}).AddRow("admin-1", "Portal Admin", "admin@example.com", nil, "admin", true, hash, time.Now().UTC()))

	rec := env.do(http.MethodPost, "/api/auth/login", "", `{"email":"admin@example.com","password":"correct horse"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Token string          `json:"token"`
		User  models.Identity `json:"user"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, models.RoleAdmin, resp.User.Role)
	assert.True(t, env.redis.Exists("session:"+resp.Token))
}

func TestLoginOverHTTP_BadCredentials(t *testing.T) {
	env := setupEnv(t)

	env.mock.ExpectQuery(`SELECT (.+) FROM users WHERE email`).
		WithArgs("admin@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rec := env.do(http.MethodPost, "/api/auth/login", "", `{"email":"admin@example.com","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListServices_Public(t *testing.T) {
	env := setupEnv(t)

	rec := env.do(http.MethodGet, "/api/services", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var services []catalog.ServiceOffering
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &services))
	assert.Len(t, services, 1)
	assert.Equal(t, "Income Certificate", services[0].Name)
}

func TestIntakeMountedOnRouter(t *testing.T) {
	env := setupEnv(t)

	env.mock.ExpectExec(`INSERT INTO applications`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.mock.ExpectExec(`INSERT INTO audit_log`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec := env.do(http.MethodPost, "/intake/forms", "", `{
		"applicant_name": "John Doe",
		"mobile": "9876543210",
		"service_name": "Income Certificate"
	}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
}
