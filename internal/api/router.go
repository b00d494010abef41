// Package api exposes the portal core over HTTP. Routing, session
// auth, role gating and error mapping live here; all business rules
// stay in the service layer.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"seva-portal/internal/common/logger"
	"seva-portal/internal/common/observability"
	"seva-portal/internal/intake"
	"seva-portal/internal/models"
	"seva-portal/internal/services/application"
	"seva-portal/internal/services/assignment"
	"seva-portal/internal/services/document"
	"seva-portal/internal/services/identity"
	"seva-portal/internal/services/status"
	"seva-portal/pkg/catalog"
)

type Server struct {
	identity     *identity.Service
	applications *application.Service
	assignments  *assignment.Service
	documents    *document.Service
	status       *status.Service
	intake       *intake.Handler
	catalog      *catalog.ServiceCatalog
	obs          *observability.Observability
	logger       logger.Logger
}

type Deps struct {
	Identity      *identity.Service
	Applications  *application.Service
	Assignments   *assignment.Service
	Documents     *document.Service
	Status        *status.Service
	Intake        *intake.Handler
	Catalog       *catalog.ServiceCatalog
	Observability *observability.Observability
	Logger        logger.Logger
}

func NewServer(deps Deps) *Server {
	return &Server{
		identity:     deps.Identity,
		applications: deps.Applications,
		assignments:  deps.Assignments,
		documents:    deps.Documents,
		status:       deps.Status,
		intake:       deps.Intake,
		catalog:      deps.Catalog,
		obs:          deps.Observability,
		logger:       deps.Logger.WithFields(logger.Fields{"component": "api"}),
	}
}

// Router assembles the full route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(instrument(s.obs, s.logger))

	r.Get("/healthz", s.handleHealth)

	// Public surface: no session required.
	r.Post("/api/auth/login", s.handleLogin)
	r.Post("/api/operators/register", s.handleRegisterOperator)
	r.Get("/api/status/{applicationNo}", s.handleStatusLookup)
	r.Get("/api/services", s.handleListServices)
	if s.intake != nil {
		r.Post("/intake/forms", s.intake.ServeHTTP)
	}

	// Authenticated surface.
	r.Group(func(r chi.Router) {
		r.Use(requireSession(s.identity))

		r.Post("/api/auth/logout", s.handleLogout)

		// Citizen flow.
		r.Post("/api/applications", s.handleCreateApplication)
		r.Get("/api/applications/mine", s.handleListMyApplications)
		r.Get("/api/applications/{applicationID}/documents", s.handleListDocuments)
		r.Post("/api/applications/{applicationID}/documents", s.handleAttachDocument)
		r.Post("/api/applications/{applicationID}/documents/upload", s.handleUploadDocument)

		// Operator flow.
		r.Group(func(r chi.Router) {
			r.Use(requireRole(models.RoleOperator, models.RoleAdmin))
			r.Get("/api/assignments/pool", s.handlePool)
			r.Get("/api/assignments/mine", s.handleAssignedToMe)
			r.Post("/api/applications/{applicationID}/accept", s.handleAccept)
			r.Post("/api/applications/{applicationID}/complete", s.handleComplete)
			r.Post("/api/applications/{applicationID}/reject", s.handleReject)
		})

		// Admin flow.
		r.Group(func(r chi.Router) {
			r.Use(requireRole(models.RoleAdmin))
			r.Get("/api/admin/applications", s.handleListAllApplications)
			r.Put("/api/admin/applications/{applicationID}/price", s.handleSetPrice)
			r.Put("/api/admin/applications/{applicationID}/status", s.handleChangeStatus)
			r.Post("/api/admin/applications/{applicationID}/relist", s.handleRelist)
			r.Get("/api/admin/operators", s.handleListOperators)
			r.Post("/api/admin/operators/{operatorID}/approve", s.handleApproveOperator)
			r.Post("/api/admin/operators/{operatorID}/deactivate", s.handleDeactivateOperator)
			r.Delete("/api/admin/operators/{operatorID}", s.handleDeleteOperator)
		})
	})

	return r
}
