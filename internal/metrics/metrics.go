package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for household access control.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Authorization decisions by check ("permission", "manage:<action>") and outcome.
	Decisions *prometheus.CounterVec

	// Invitation lifecycle transitions by resulting status.
	Invitations *prometheus.CounterVec

	// Membership changes by kind (joined, removed, role, permissions).
	Memberships *prometheus.CounterVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		Decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kitchentory_access_decisions_total",
				Help: "Authorization decisions by check and outcome",
			},
			[]string{"check", "outcome"},
		),
		Invitations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kitchentory_invitation_transitions_total",
				Help: "Invitation lifecycle transitions by resulting status",
			},
			[]string{"status"},
		),
		Memberships: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kitchentory_membership_changes_total",
				Help: "Membership changes by kind",
			},
			[]string{"change"},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kitchentory_http_requests_total",
				Help: "HTTP requests by method and status code",
			},
			[]string{"method", "code"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kitchentory_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}
}

// NewRegistry creates a private registry with metrics registered on it.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	return reg, New(reg)
}

func Handler(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func outcome(allowed bool) string {
	if allowed {
		return "allow"
	}
	return "deny"
}

func (m *Metrics) RecordDecision(check string, allowed bool) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(check, outcome(allowed)).Inc()
}

func (m *Metrics) RecordInvitation(status string) {
	if m == nil {
		return
	}
	m.Invitations.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordMembership(change string) {
	if m == nil {
		return
	}
	m.Memberships.WithLabelValues(change).Inc()
}

func (m *Metrics) RecordHTTP(method string, code int, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(method).Observe(seconds)
}
