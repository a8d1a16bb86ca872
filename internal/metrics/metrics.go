// Package metrics holds the Prometheus collectors for the connection and
// messaging paths.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every collector the service exports. Construct one per
// process with New and inject it where events happen.
type Metrics struct {
	registry *prometheus.Registry

	ConnectionsActive prometheus.Gauge
	MessagesSent      prometheus.Counter
	MessagesRejected  *prometheus.CounterVec
	PresenceEvents    *prometheus.CounterVec
}

// New creates the collectors on a fresh registry, so tests never collide
// on the global default.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chatline_connections_active",
			Help: "Number of live WebSocket connections.",
		}),
		MessagesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "chatline_messages_sent_total",
			Help: "Messages persisted and fanned out.",
		}),
		MessagesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chatline_messages_rejected_total",
			Help: "Messages rejected before persistence.",
		}, []string{"reason"}),
		PresenceEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chatline_presence_events_total",
			Help: "Presence status broadcasts by direction.",
		}, []string{"status"}),
	}
}

// Handler serves the /metrics scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
