// Package observability registers the service's Prometheus metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	webhookEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "titles",
		Subsystem: "webhook",
		Name:      "events_total",
		Help:      "Webhook events by terminal state.",
	}, []string{"state"})

	renamesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "titles",
		Subsystem: "pipeline",
		Name:      "renames_total",
		Help:      "Activities renamed upstream.",
	})

	connectedUsersGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "titles",
		Name:      "connected_users",
		Help:      "Number of athletes with a stored credential.",
	})
)

func init() {
	prometheus.MustRegister(webhookEventsTotal, renamesTotal, connectedUsersGauge)
}

// RecordEventOutcome increments the terminal-state counter for one event.
func RecordEventOutcome(state string) {
	webhookEventsTotal.WithLabelValues(state).Inc()
}

// RecordRename counts a successful upstream title update.
func RecordRename() {
	renamesTotal.Inc()
}

// SetConnectedUsers updates the connected-athletes gauge.
func SetConnectedUsers(n int64) {
	connectedUsersGauge.Set(float64(n))
}
