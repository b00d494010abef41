package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ApplicationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "portal_applications_created_total",
			Help: "Total number of applications created",
		},
	)

	AcceptAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_accept_attempts_total",
			Help: "Total accept attempts by outcome (won, lost, error)",
		},
		[]string{"outcome"},
	)

	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_status_transitions_total",
			Help: "Total status transitions by target status",
		},
		[]string{"to"},
	)

	StatusLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_status_lookups_total",
			Help: "Total public status lookups by result (hit, miss, cached)",
		},
		[]string{"result"},
	)

	DocumentUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_document_uploads_total",
			Help: "Total document uploads by type",
		},
		[]string{"document_type"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "portal_request_duration_seconds",
			Help: "Duration of HTTP request handling in seconds",
		},
		[]string{"route", "method"},
	)
)
