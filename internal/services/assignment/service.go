// Package assignment implements the claim/accept/relist protocol. The
// accept path is the one genuinely contested operation in the system;
// its safety rests on the conditional update in the store, not on any
// earlier read.
package assignment

import (
	"context"
	"time"

	apperrors "seva-portal/internal/common/errors"
	"seva-portal/internal/common/logger"
	"seva-portal/internal/common/metrics"
	"seva-portal/internal/models"
	"seva-portal/internal/store"
)

// Notifier receives best-effort notifications after terminal status
// changes. Implementations must never block the workflow; failures are
// theirs to log.
type Notifier interface {
	ApplicationStatusChanged(ctx context.Context, app *models.Application)
}

type Service struct {
	apps     *store.ApplicationStore
	docs     *store.DocumentStore
	audit    *store.AuditStore
	notifier Notifier
	logger   logger.Logger
}

// NewService creates the coordinator. notifier may be nil.
func NewService(apps *store.ApplicationStore, docs *store.DocumentStore, audit *store.AuditStore, notifier Notifier, log logger.Logger) *Service {
	return &Service{
		apps:     apps,
		docs:     docs,
		audit:    audit,
		notifier: notifier,
		logger:   log.WithFields(logger.Fields{"service": "assignment"}),
	}
}

// Accept claims an unassigned application for the calling operator.
// The preliminary read serves messaging and fast failure only; the
// conditional update re-asserts "unclaimed" at commit time, so of N
// concurrent accepts exactly one wins and the rest get ALREADY_CLAIMED.
func (s *Service) Accept(ctx context.Context, caller models.Identity, applicationID string) (*models.Application, error) {
	if !caller.IsOperator() {
		return nil, apperrors.NewForbiddenError("accept requires an active operator")
	}

	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.Assigned() {
		metrics.AcceptAttempts.WithLabelValues("lost").Inc()
		return nil, apperrors.NewAlreadyClaimedError(applicationID)
	}

	acceptedAt := time.Now().UTC()
	claimed, err := s.apps.Claim(ctx, applicationID, caller.UserID, acceptedAt)
	if err != nil {
		metrics.AcceptAttempts.WithLabelValues("error").Inc()
		return nil, err
	}
	if !claimed {
		metrics.AcceptAttempts.WithLabelValues("lost").Inc()
		return nil, apperrors.NewAlreadyClaimedError(applicationID)
	}

	metrics.AcceptAttempts.WithLabelValues("won").Inc()
	metrics.StatusTransitions.WithLabelValues(string(models.StatusUnderReview)).Inc()

	s.logger.Info("application accepted", logger.Fields{
		"applicationId": applicationID,
		"operatorId":    caller.UserID,
	})

	operatorID := caller.UserID
	app.OperatorID = &operatorID
	app.AcceptedAt = &acceptedAt
	app.Status = models.StatusUnderReview
	return app, nil
}

// Complete closes out an owned application. A result document must
// already be in the ledger; the upload itself is a separate, earlier
// call to the document service.
func (s *Service) Complete(ctx context.Context, caller models.Identity, applicationID string) error {
	app, err := s.ownedApplication(ctx, caller, applicationID)
	if err != nil {
		return err
	}
	if app.Status != models.StatusUnderReview {
		return apperrors.NewInvalidTransitionError(string(app.Status), string(models.StatusCompleted))
	}

	n, err := s.docs.CountByType(ctx, applicationID, models.DocTypeResult)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NewResultDocMissingError(applicationID)
	}

	if err := s.apps.UpdateStatus(ctx, applicationID, models.StatusCompleted); err != nil {
		return err
	}
	metrics.StatusTransitions.WithLabelValues(string(models.StatusCompleted)).Inc()

	app.Status = models.StatusCompleted
	s.notifyStatusChanged(ctx, app)

	s.logger.Info("application completed", logger.Fields{
		"applicationId": applicationID,
		"operatorId":    caller.UserID,
	})
	return nil
}

// Reject closes out an owned application negatively. No document is
// required.
func (s *Service) Reject(ctx context.Context, caller models.Identity, applicationID string) error {
	app, err := s.ownedApplication(ctx, caller, applicationID)
	if err != nil {
		return err
	}
	if app.Status != models.StatusUnderReview {
		return apperrors.NewInvalidTransitionError(string(app.Status), string(models.StatusRejected))
	}

	if err := s.apps.UpdateStatus(ctx, applicationID, models.StatusRejected); err != nil {
		return err
	}
	metrics.StatusTransitions.WithLabelValues(string(models.StatusRejected)).Inc()

	app.Status = models.StatusRejected
	s.notifyStatusChanged(ctx, app)

	s.logger.Info("application rejected", logger.Fields{
		"applicationId": applicationID,
		"operatorId":    caller.UserID,
	})
	return nil
}

// Relist strips the assignment and returns the application to the
// pool. Admin only, unconditional; last writer wins for this
// corrective action.
func (s *Service) Relist(ctx context.Context, caller models.Identity, applicationID string) error {
	if !caller.IsAdmin() {
		return apperrors.NewForbiddenError("relist requires the admin role")
	}

	if err := s.apps.Relist(ctx, applicationID); err != nil {
		return err
	}
	metrics.StatusTransitions.WithLabelValues(string(models.StatusSubmitted)).Inc()

	if auditErr := s.audit.Record(ctx, "application_relisted", "application", applicationID, map[string]interface{}{
		"admin": caller.UserID,
	}); auditErr != nil {
		s.logger.Warn("audit log insert failed", logger.Fields{
			"error":         auditErr,
			"applicationId": applicationID,
		})
	}

	s.logger.Info("application relisted", logger.Fields{
		"applicationId": applicationID,
		"admin":         caller.UserID,
	})
	return nil
}

// Pool returns the unassigned submitted applications visible to all
// operators.
func (s *Service) Pool(ctx context.Context, caller models.Identity) ([]*models.Application, error) {
	if !caller.IsOperator() && !caller.IsAdmin() {
		return nil, apperrors.NewForbiddenError("pool listing requires an operator or admin")
	}
	return s.apps.ListPool(ctx)
}

// Mine returns the applications assigned to the calling operator.
func (s *Service) Mine(ctx context.Context, caller models.Identity) ([]*models.Application, error) {
	if !caller.IsOperator() {
		return nil, apperrors.NewForbiddenError("listing requires an active operator")
	}
	return s.apps.ListByOperator(ctx, caller.UserID)
}

// ownedApplication loads the application and checks the caller is the
// operator it is assigned to.
func (s *Service) ownedApplication(ctx context.Context, caller models.Identity, applicationID string) (*models.Application, error) {
	if !caller.IsOperator() {
		return nil, apperrors.NewForbiddenError("operation requires an active operator")
	}
	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.OperatorID == nil || *app.OperatorID != caller.UserID {
		return nil, apperrors.NewForbiddenError("application is not assigned to the caller")
	}
	return app, nil
}

func (s *Service) notifyStatusChanged(ctx context.Context, app *models.Application) {
	if s.notifier != nil {
		s.notifier.ApplicationStatusChanged(ctx, app)
	}
}
