// Package application implements the application record manager: record
// creation and the legal field-level mutations outside of assignment.
package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "seva-portal/internal/common/errors"
	"seva-portal/internal/common/logger"
	"seva-portal/internal/common/metrics"
	"seva-portal/internal/models"
	"seva-portal/internal/store"
)

// createAttempts bounds the regenerate-and-retry loop on an
// application_no collision.
const createAttempts = 3

type Service struct {
	apps   *store.ApplicationStore
	docs   *store.DocumentStore
	audit  *store.AuditStore
	logger logger.Logger
}

func NewService(apps *store.ApplicationStore, docs *store.DocumentStore, audit *store.AuditStore, log logger.Logger) *Service {
	return &Service{
		apps:   apps,
		docs:   docs,
		audit:  audit,
		logger: log.WithFields(logger.Fields{"service": "application"}),
	}
}

// CreateInput carries the fields of a new submission, from the citizen
// flow or the external form intake.
type CreateInput struct {
	ApplicantName string
	Mobile        string
	ServiceName   string
	Price         *float64
	OperatorPrice *float64
	UserID        *string
	ServiceID     *string
}

// Create validates the input, generates a unique application number and
// persists the record in the submitted, unassigned state.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Application, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	app := &models.Application{
		ID:            uuid.New().String(),
		ApplicantName: strings.TrimSpace(in.ApplicantName),
		Mobile:        strings.TrimSpace(in.Mobile),
		ServiceName:   strings.TrimSpace(in.ServiceName),
		Status:        models.StatusSubmitted,
		Price:         in.Price,
		OperatorPrice: in.OperatorPrice,
		UserID:        in.UserID,
		ServiceID:     in.ServiceID,
		CreatedAt:     time.Now().UTC(),
	}

	// The unique index on application_no is the arbiter; on a collision
	// we regenerate with a random suffix and try again.
	var err error
	for attempt := 0; attempt < createAttempts; attempt++ {
		app.ApplicationNo = newApplicationNo(attempt)
		err = s.apps.Insert(ctx, app)
		if err == nil {
			break
		}
		if !store.IsUniqueViolation(err) {
			return nil, err
		}
	}
	if err != nil {
		return nil, apperrors.NewStoreUnavailableError(err)
	}

	metrics.ApplicationsCreated.Inc()

	if auditErr := s.audit.Record(ctx, "application_created", "application", app.ID, map[string]interface{}{
		"applicationNo": app.ApplicationNo,
		"serviceName":   app.ServiceName,
	}); auditErr != nil {
		s.logger.Warn("audit log insert failed", logger.Fields{
			"error":         auditErr,
			"applicationId": app.ID,
		})
	}

	s.logger.Info("application created", logger.Fields{
		"applicationId": app.ID,
		"applicationNo": app.ApplicationNo,
		"serviceName":   app.ServiceName,
	})

	return app, nil
}

// SetPrice updates the citizen-facing price. The price is frozen once
// an operator has accepted: the read distinguishes locked from missing,
// and the conditional update closes the window against a concurrent
// claim between read and write.
func (s *Service) SetPrice(ctx context.Context, caller models.Identity, applicationID string, price float64) error {
	if !caller.IsAdmin() {
		return apperrors.NewForbiddenError("price edits require the admin role")
	}
	if price < 0 {
		return apperrors.NewValidationError("price must be non-negative")
	}

	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		return err
	}
	if app.Assigned() {
		return apperrors.NewPriceLockedError(applicationID)
	}

	updated, err := s.apps.SetPrice(ctx, applicationID, price)
	if err != nil {
		return err
	}
	if !updated {
		// An operator claimed the application after our read.
		return apperrors.NewPriceLockedError(applicationID)
	}
	return nil
}

// ChangeStatus moves the application along the guarded transition
// graph. The completed edge additionally requires a result document in
// the ledger.
func (s *Service) ChangeStatus(ctx context.Context, caller models.Identity, applicationID string, newStatus models.ApplicationStatus) error {
	if !caller.IsAdmin() {
		return apperrors.NewForbiddenError("status changes require the admin role")
	}
	if !newStatus.Valid() {
		return apperrors.NewValidationError(fmt.Sprintf("unknown status %q", newStatus))
	}

	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		return err
	}
	if !models.CanTransition(app.Status, newStatus) {
		return apperrors.NewInvalidTransitionError(string(app.Status), string(newStatus))
	}
	if newStatus == models.StatusCompleted {
		n, err := s.docs.CountByType(ctx, applicationID, models.DocTypeResult)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperrors.NewResultDocMissingError(applicationID)
		}
	}

	if err := s.writeStatus(ctx, applicationID, newStatus); err != nil {
		return err
	}
	metrics.StatusTransitions.WithLabelValues(string(newStatus)).Inc()
	return nil
}

// writeStatus persists the new status. A return to submitted goes
// through the relist update, which strips the assignment in the same
// statement: a submitted application held by an operator would be
// invisible to the pool and unclaimable.
func (s *Service) writeStatus(ctx context.Context, applicationID string, newStatus models.ApplicationStatus) error {
	if newStatus == models.StatusSubmitted {
		return s.apps.Relist(ctx, applicationID)
	}
	return s.apps.UpdateStatus(ctx, applicationID, newStatus)
}

// Override forces any status value directly, bypassing the transition
// graph. Correction escape hatch, admin only, always audited.
func (s *Service) Override(ctx context.Context, caller models.Identity, applicationID string, newStatus models.ApplicationStatus) error {
	if !caller.IsAdmin() {
		return apperrors.NewForbiddenError("status override requires the admin role")
	}
	if !newStatus.Valid() {
		return apperrors.NewValidationError(fmt.Sprintf("unknown status %q", newStatus))
	}

	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		return err
	}
	if err := s.writeStatus(ctx, applicationID, newStatus); err != nil {
		return err
	}

	if auditErr := s.audit.Record(ctx, "status_override", "application", applicationID, map[string]interface{}{
		"from":  string(app.Status),
		"to":    string(newStatus),
		"admin": caller.UserID,
	}); auditErr != nil {
		s.logger.Warn("audit log insert failed", logger.Fields{
			"error":         auditErr,
			"applicationId": applicationID,
		})
	}

	metrics.StatusTransitions.WithLabelValues(string(newStatus)).Inc()
	return nil
}

// Get returns one application by id.
func (s *Service) Get(ctx context.Context, applicationID string) (*models.Application, error) {
	return s.apps.GetByID(ctx, applicationID)
}

// ListAll returns every application for the admin dashboard.
func (s *Service) ListAll(ctx context.Context, caller models.Identity) ([]*models.Application, error) {
	if !caller.IsAdmin() {
		return nil, apperrors.NewForbiddenError("full listing requires the admin role")
	}
	return s.apps.ListAll(ctx)
}

// ListMine returns the caller's own applications.
func (s *Service) ListMine(ctx context.Context, caller models.Identity) ([]*models.Application, error) {
	return s.apps.ListByUser(ctx, caller.UserID)
}

// CountByStatus exposes the dashboard counters.
func (s *Service) CountByStatus(ctx context.Context, status models.ApplicationStatus) (int, error) {
	return s.apps.CountByStatus(ctx, status)
}

func validateCreate(in CreateInput) error {
	var missing []string
	if strings.TrimSpace(in.ApplicantName) == "" {
		missing = append(missing, "applicant_name")
	}
	if strings.TrimSpace(in.Mobile) == "" {
		missing = append(missing, "mobile")
	}
	if strings.TrimSpace(in.ServiceName) == "" {
		missing = append(missing, "service_name")
	}
	if len(missing) > 0 {
		return apperrors.NewValidationError("missing required fields: " + strings.Join(missing, ", "))
	}
	if in.Price != nil && *in.Price < 0 {
		return apperrors.NewValidationError("price must be non-negative")
	}
	if in.OperatorPrice != nil && *in.OperatorPrice < 0 {
		return apperrors.NewValidationError("operator_price must be non-negative")
	}
	return nil
}

// newApplicationNo derives the human-facing number from the current
// time in milliseconds, the scheme the external form intake also uses.
// Retries after a collision add a random suffix.
func newApplicationNo(attempt int) string {
	millis := time.Now().UnixMilli()
	if attempt == 0 {
		return fmt.Sprintf("APP-%d", millis)
	}
	suffix := strings.ToUpper(uuid.New().String()[:4])
	return fmt.Sprintf("APP-%d-%s", millis, suffix)
}
