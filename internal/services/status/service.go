// Package status implements the public, unauthenticated status lookup
// keyed by the human-facing application number. Lookups are cached in
// Redis with a short TTL; staleness bounded by the TTL is acceptable
// for the status page, and a cache failure degrades to a direct read.
package status

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "seva-portal/internal/common/errors"
	"seva-portal/internal/common/logger"
	"seva-portal/internal/common/metrics"
	"seva-portal/internal/models"
	"seva-portal/internal/store"
)

const cacheKeyPrefix = "status:"

// resultSource resolves the released document link for positive
// terminal states. Satisfied by the document service.
type resultSource interface {
	LatestResultURL(ctx context.Context, applicationID string) (string, error)
}

type Service struct {
	apps     *store.ApplicationStore
	results  resultSource
	redis    *redis.Client
	cacheTTL time.Duration
	logger   logger.Logger
}

func NewService(apps *store.ApplicationStore, results resultSource, rdb *redis.Client, cacheTTL time.Duration, log logger.Logger) *Service {
	return &Service{
		apps:     apps,
		results:  results,
		redis:    rdb,
		cacheTTL: cacheTTL,
		logger:   log.WithFields(logger.Fields{"service": "status"}),
	}
}

// Lookup returns the public status summary for an application number.
// Exact match only; zero matches is NOT_FOUND and negative results are
// never cached.
func (s *Service) Lookup(ctx context.Context, applicationNo string) (*models.StatusSummary, error) {
	applicationNo = strings.TrimSpace(applicationNo)
	if applicationNo == "" {
		return nil, apperrors.NewValidationError("application_no is required")
	}

	if summary := s.fromCache(ctx, applicationNo); summary != nil {
		metrics.StatusLookups.WithLabelValues("cached").Inc()
		return summary, nil
	}

	app, err := s.apps.GetByApplicationNo(ctx, applicationNo)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
			metrics.StatusLookups.WithLabelValues("miss").Inc()
		}
		return nil, err
	}

	summary := &models.StatusSummary{
		ApplicationNo: app.ApplicationNo,
		ApplicantName: app.ApplicantName,
		ServiceName:   app.ServiceName,
		Status:        app.Status,
		CreatedAt:     app.CreatedAt,
	}

	// The document link is released only once the application reached a
	// positive terminal state.
	if app.Status.PositiveTerminal() {
		url, err := s.results.LatestResultURL(ctx, app.ID)
		if err != nil {
			s.logger.Warn("result document lookup failed", logger.Fields{
				"applicationNo": applicationNo,
				"error":         err,
			})
		} else {
			summary.DocumentURL = url
		}
	}

	s.toCache(ctx, applicationNo, summary)
	metrics.StatusLookups.WithLabelValues("hit").Inc()
	return summary, nil
}

func (s *Service) fromCache(ctx context.Context, applicationNo string) *models.StatusSummary {
	if s.redis == nil {
		return nil
	}
	raw, err := s.redis.Get(ctx, cacheKeyPrefix+applicationNo).Result()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("status cache read failed", logger.Fields{"error": err})
		}
		return nil
	}
	var summary models.StatusSummary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		return nil
	}
	return &summary
}

func (s *Service) toCache(ctx context.Context, applicationNo string, summary *models.StatusSummary) {
	if s.redis == nil || s.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, cacheKeyPrefix+applicationNo, raw, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("status cache write failed", logger.Fields{"error": err})
	}
}
