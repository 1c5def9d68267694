package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "notekeeper", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "notekeeper", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	// NoteOperations counts note use-cases by outcome: ok, invalid, not_found, unauthenticated, error.
	NoteOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "notekeeper", Name: "note_operations_total", Help: "Note use-case invocations by operation and outcome."},
		[]string{"op", "outcome"},
	)
	EventPublishFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "notekeeper", Name: "event_publish_failures_total", Help: "Note lifecycle events that could not be published."},
		[]string{"type"},
	)
	LoginRedirects = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "notekeeper", Name: "login_redirects_total", Help: "Anonymous requests redirected to the login page."},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(NoteOperations)
	reg.MustRegister(EventPublishFailures)
	reg.MustRegister(LoginRedirects)
}
