// Package metrics exposes Prometheus counters for session lifecycle outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Session event labels.
const (
	EventCreated  = "created"
	EventRotated  = "rotated"
	EventRejected = "rejected"
	EventRevoked  = "revoked"
	EventPurged   = "purged"
)

// Metrics holds session counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	sessionEvents *prometheus.CounterVec
	logins        *prometheus.CounterVec
}

// New registers the session counters with reg. reg may be nil, in which case the
// counters are created but not exported.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sessionkeeper",
			Name:      "session_events_total",
			Help:      "Session lifecycle events by event and internal reason.",
		}, []string{"event", "reason"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sessionkeeper",
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.sessionEvents, m.logins)
	}
	return m
}

// SessionEvent counts one session event. reason is empty for non-failure events.
func (m *Metrics) SessionEvent(event, reason string) {
	if m == nil {
		return
	}
	m.sessionEvents.WithLabelValues(event, reason).Inc()
}

// SessionEvents counts n session events at once (bulk revoke, purge).
func (m *Metrics) SessionEvents(event, reason string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionEvents.WithLabelValues(event, reason).Add(float64(n))
}

// Login counts one login attempt; result is "success" or "failure".
func (m *Metrics) Login(success bool) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.logins.WithLabelValues(result).Inc()
}
