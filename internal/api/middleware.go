package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "seva-portal/internal/common/errors"
	"seva-portal/internal/common/logger"
	"seva-portal/internal/common/metrics"
	"seva-portal/internal/common/observability"
	"seva-portal/internal/models"
)

type contextKey string

const identityKey contextKey = "identity"

// identityFromContext returns the authenticated caller, or false when
// the request passed through no auth middleware.
func identityFromContext(ctx context.Context) (models.Identity, bool) {
	ident, ok := ctx.Value(identityKey).(models.Identity)
	return ident, ok
}

// sessionResolver resolves a bearer token into a caller identity.
type sessionResolver interface {
	Resolve(ctx context.Context, token string) (*models.Identity, error)
}

// requireSession rejects requests without a valid bearer token and
// stores the resolved identity on the request context.
func requireSession(sessions sessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				respondError(w, apperrors.NewAuthenticationError("missing bearer token"))
				return
			}
			ident, err := sessions.Resolve(r.Context(), token)
			if err != nil {
				respondError(w, err)
				return
			}
			ctx := context.WithValue(r.Context(), identityKey, *ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requireRole gates a subtree on the caller's role. Must be mounted
// inside requireSession.
func requireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, ok := identityFromContext(r.Context())
			if !ok {
				respondError(w, apperrors.NewAuthenticationError("missing bearer token"))
				return
			}
			for _, role := range roles {
				if ident.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			respondError(w, apperrors.NewForbiddenError("role not permitted for this resource"))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

// instrument records per-route latency and status counters on both the
// prometheus and otel pipelines.
func instrument(obs *observability.Observability, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = r.URL.Path
			}
			elapsed := time.Since(start)

			metrics.RequestDuration.WithLabelValues(route, r.Method).Observe(elapsed.Seconds())
			if obs != nil {
				obs.RecordRequest(r.Context(), route, strconv.Itoa(rec.status))
				obs.RecordRequestDuration(r.Context(), elapsed, route)
			}

			log.Debug("http request", logger.Fields{
				"method":   r.Method,
				"route":    route,
				"status":   rec.status,
				"duration": elapsed.String(),
			})
		})
	}
}
