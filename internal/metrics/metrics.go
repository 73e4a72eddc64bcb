// Package metrics provides Prometheus instrumentation for the dev proxy.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gui_devproxy"

// Metrics holds the proxy's collectors on a private registry. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RoutingDecisions  *prometheus.CounterVec
	ForwardErrors     *prometheus.CounterVec
	WebSocketUpgrades *prometheus.CounterVec
	ReloadBroadcasts  prometheus.Counter
	LiveReloadClients prometheus.Gauge
	OriginUp          *prometheus.GaugeVec
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RoutingDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "routing_decisions_total",
				Help:      "Requests classified by routing decision",
			},
			[]string{"decision"},
		),
		ForwardErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "forward_errors_total",
				Help:      "Requests that failed while being forwarded to an origin",
			},
			[]string{"origin"},
		),
		WebSocketUpgrades: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "websocket_upgrades_total",
				Help:      "WebSocket upgrade requests relayed to an origin",
			},
			[]string{"origin"},
		),
		ReloadBroadcasts: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "livereload_broadcasts_total",
				Help:      "Reload notifications sent to connected browsers",
			},
		),
		LiveReloadClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "livereload_clients",
				Help:      "Browsers currently connected to the live-reload channel",
			},
		),
		OriginUp: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "origin_up",
				Help:      "Whether the last reachability check of an origin succeeded",
			},
			[]string{"origin"},
		),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveDecision counts one routing decision.
func (m *Metrics) ObserveDecision(decision string) {
	if m == nil {
		return
	}
	m.RoutingDecisions.WithLabelValues(decision).Inc()
}

// ObserveForwardError counts one forwarding failure for origin.
func (m *Metrics) ObserveForwardError(origin string) {
	if m == nil {
		return
	}
	m.ForwardErrors.WithLabelValues(origin).Inc()
}

// ObserveUpgrade counts one WebSocket upgrade relayed to origin.
func (m *Metrics) ObserveUpgrade(origin string) {
	if m == nil {
		return
	}
	m.WebSocketUpgrades.WithLabelValues(origin).Inc()
}

// ObserveBroadcast counts one live-reload broadcast.
func (m *Metrics) ObserveBroadcast() {
	if m == nil {
		return
	}
	m.ReloadBroadcasts.Inc()
}

// SetClients records the number of connected live-reload clients.
func (m *Metrics) SetClients(n int) {
	if m == nil {
		return
	}
	m.LiveReloadClients.Set(float64(n))
}

// SetOriginUp records the result of the last reachability check of origin.
func (m *Metrics) SetOriginUp(origin string, up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	m.OriginUp.WithLabelValues(origin).Set(v)
}
