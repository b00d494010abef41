package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	apperrors "seva-portal/internal/common/errors"
	"seva-portal/internal/models"
	"seva-portal/internal/services/application"
	"seva-portal/internal/services/identity"
)

// --- auth ---

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	ident, token, err := s.identity.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  ident,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.identity.Logout(r.Context(), bearerToken(r)); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRegisterOperator(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FullName string `json:"fullName"`
		Email    string `json:"email"`
		Mobile   string `json:"mobile"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	op, err := s.identity.RegisterOperator(r.Context(), identity.RegisterOperatorInput{
		FullName: req.FullName,
		Email:    req.Email,
		Mobile:   req.Mobile,
		Password: req.Password,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, op)
}

// --- admin: operator lifecycle ---

func (s *Server) handleListOperators(w http.ResponseWriter, r *http.Request) {
	caller, _ := identityFromContext(r.Context())
	ops, err := s.identity.ListOperators(r.Context(), caller)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ops)
}

func (s *Server) handleApproveOperator(w http.ResponseWriter, r *http.Request) {
	caller, _ := identityFromContext(r.Context())
	if err := s.identity.ApproveOperator(r.Context(), caller, chi.URLParam(r, "operatorID")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeactivateOperator(w http.ResponseWriter, r *http.Request) {
	caller, _ := identityFromContext(r.Context())
	if err := s.identity.DeactivateOperator(r.Context(), caller, chi.URLParam(r, "operatorID")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteOperator(w http.ResponseWriter, r *http.Request) {
	caller, _ := identityFromContext(r.Context())
	if err := s.identity.DeleteOperator(r.Context(), caller, chi.URLParam(r, "operatorID")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- applications ---

func (s *Server) handleCreateApplication(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ApplicantName string   `json:"applicantName"`
		Mobile        string   `json:"mobile"`
		ServiceName   string   `json:"serviceName"`
		ServiceID     *string  `json:"serviceId"`
		Price         *float64 `json:"price"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	caller, _ := identityFromContext(r.Context())
	userID := caller.UserID
	app, err := s.applications.Create(r.Context(), application.CreateInput{
		ApplicantName: req.ApplicantName,
		Mobile:        req.Mobile,
		ServiceName:   req.ServiceName,
		ServiceID:     req.ServiceID,
		Price:         req.Price,
		UserID:        &userID,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, app)
}

func (s *Server) handleListMyApplications(w http.ResponseWriter, r *http.Request) {
	caller, _ := identityFromContext(r.Context())
	apps, err := s.applications.ListMine(r.Context(), caller)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, apps)
}

func (s *Server) handleListAllApplications(w http.ResponseWriter, r *http.Request) {
	caller, _ := identityFromContext(r.Context())
	apps, err := s.applications.ListAll(r.Context(), caller)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, apps)
}

func (s *Server) handleSetPrice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Price float64 `json:"price"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	caller, _ := identityFromContext(r.Context())
	if err := s.applications.SetPrice(r.Context(), caller, chi.URLParam(r, "applicationID"), req.Price); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChangeStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status   string `json:"status"`
		Override bool   `json:"override"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	caller, _ := identityFromContext(r.Context())
	appID := chi.URLParam(r, "applicationID")
	status := models.ApplicationStatus(strings.TrimSpace(req.Status))

	var err error
	if req.Override {
		err = s.applications.Override(r.Context(), caller, appID, status)
	} else {
		err = s.applications.ChangeStatus(r.Context(), caller, appID, status)
	}
	if err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- assignment ---

func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	caller, _ := identityFromContext(r.Context())
	apps, err := s.assignments.Pool(r.Context(), caller)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, apps)
}

func (s *Server) handleAssignedToMe(w http.ResponseWriter, r *http.Request) {
	caller, _ := identityFromContext(r.Context())
	apps, err := s.assignments.Mine(r.Context(), caller)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, apps)
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	caller, _ := identityFromContext(r.Context())
	app, err := s.assignments.Accept(r.Context(), caller, chi.URLParam(r, "applicationID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, app)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	caller, _ := identityFromContext(r.Context())
	if err := s.assignments.Complete(r.Context(), caller, chi.URLParam(r, "applicationID")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	caller, _ := identityFromContext(r.Context())
	if err := s.assignments.Reject(r.Context(), caller, chi.URLParam(r, "applicationID")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRelist(w http.ResponseWriter, r *http.Request) {
	caller, _ := identityFromContext(r.Context())
	if err := s.assignments.Relist(r.Context(), caller, chi.URLParam(r, "applicationID")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- documents ---

// maxUploadBytes caps multipart uploads at 10 MiB, matching the limit
// the public form enforces client-side.
const maxUploadBytes = 10 << 20

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, apperrors.NewValidationError("multipart form required: "+err.Error()))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, apperrors.NewValidationError("file field is required"))
		return
	}
	defer file.Close()

	doc, err := s.documents.UploadAndAttach(
		r.Context(),
		chi.URLParam(r, "applicationID"),
		header.Filename,
		header.Header.Get("Content-Type"),
		file,
		r.FormValue("documentType"),
	)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleAttachDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DocumentURL  string `json:"documentUrl"`
		DocumentType string `json:"documentType"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	doc, err := s.documents.Attach(r.Context(), chi.URLParam(r, "applicationID"), req.DocumentURL, req.DocumentType)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	caller, _ := identityFromContext(r.Context())
	applicationID := chi.URLParam(r, "applicationID")
	// Staff see the full ledger. Citizens see result documents only
	// once the application has reached a positive terminal state.
	includeResult := caller.IsAdmin() || caller.IsOperator()
	if !includeResult {
		app, err := s.applications.Get(r.Context(), applicationID)
		if err != nil {
			respondError(w, err)
			return
		}
		includeResult = app.Status.PositiveTerminal()
	}
	docs, err := s.documents.List(r.Context(), applicationID, includeResult)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, docs)
}

// --- public status lookup ---

func (s *Server) handleStatusLookup(w http.ResponseWriter, r *http.Request) {
	summary, err := s.status.Lookup(r.Context(), chi.URLParam(r, "applicationNo"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// handleListServices publishes the active offerings from the service
// catalog. Empty list when no catalog file was configured.
func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		respondJSON(w, http.StatusOK, []interface{}{})
		return
	}
	respondJSON(w, http.StatusOK, s.catalog.Active())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
