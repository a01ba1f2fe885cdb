package broadcast

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metric names.
const (
	MetricActiveSessions      = "doobie_live_active_sessions"
	MetricMessagesBroadcast   = "doobie_live_messages_broadcast_total"
	MetricSlowDisconnects     = "doobie_live_slow_client_disconnects_total"
	MetricRelayPublishFailure = "doobie_live_relay_publish_failures_total"
)

// Metrics holds the hub's prometheus collectors
type Metrics struct {
	activeSessions    prometheus.Gauge
	messagesBroadcast *prometheus.CounterVec
	slowDisconnects   prometheus.Counter
	relayFailures     prometheus.Counter
}

// NewMetrics creates the hub collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricActiveSessions,
			Help: "Number of connected live sessions",
		}),
		messagesBroadcast: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricMessagesBroadcast,
			Help: "Messages delivered to this instance's sessions, by type",
		}, []string{"type"}),
		slowDisconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricSlowDisconnects,
			Help: "Sessions closed because their outbound queue was full",
		}),
		relayFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRelayPublishFailure,
			Help: "Messages the relay failed to publish",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.activeSessions, m.messagesBroadcast, m.slowDisconnects, m.relayFailures)
	}
	return m
}
