package handoff

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scribed_handoff_sessions_created_total",
		Help: "Hand-off sessions created.",
	})
	sessionsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scribed_handoff_sessions_completed_total",
		Help: "Hand-off sessions that received a recording.",
	})
	sessionsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scribed_handoff_sessions_expired_total",
		Help: "Hand-off sessions evicted by the expiry sweep.",
	})
	uploadsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scribed_handoff_uploads_rejected_total",
		Help: "Recording uploads rejected before storage.",
	})
)
