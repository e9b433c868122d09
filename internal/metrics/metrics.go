// Package metrics exposes the server's Prometheus counters and gauges:
// channel/session/subscription population, notification throughput, and
// per-service fault counts.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter is the subset of prometheus.Counter this package's callers need;
// it also lets internal/resilience accept a counter without importing
// Prometheus directly.
type Counter interface {
	Inc()
}

// ServerMetrics is the full set of Prometheus collectors this server
// registers, grouped the way gateway.metrics groups connection/data-point
// counters.
type ServerMetrics struct {
	ChannelsOpen          prometheus.Gauge
	SessionsActive        prometheus.Gauge
	SubscriptionsActive   prometheus.Gauge
	MonitoredItemsActive  prometheus.Gauge
	PublishRequestsParked prometheus.Gauge

	NotificationsTotal   prometheus.Counter
	ServiceFaultsTotal   *prometheus.CounterVec
	CircuitBreakerTrips  prometheus.Counter
	CircuitBreakerResets prometheus.Counter
}

// NewServerMetrics builds the collector set without registering it;
// callers decide whether to use the default registry (Register) or a
// test-local one.
func NewServerMetrics() *ServerMetrics {
	return &ServerMetrics{
		ChannelsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "opcuad_channels_open",
			Help: "Number of currently open secure channels.",
		}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "opcuad_sessions_active",
			Help: "Number of sessions currently created.",
		}),
		SubscriptionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "opcuad_subscriptions_active",
			Help: "Number of subscriptions currently alive.",
		}),
		MonitoredItemsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "opcuad_monitored_items_active",
			Help: "Number of monitored items currently alive.",
		}),
		PublishRequestsParked: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "opcuad_publish_requests_parked",
			Help: "Number of Publish requests currently parked awaiting a notification.",
		}),
		NotificationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opcuad_notifications_total",
			Help: "Total number of notification payloads delivered in Publish responses.",
		}),
		ServiceFaultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opcuad_service_faults_total",
			Help: "Total number of ServiceFault responses returned, by service.",
		}, []string{"service"}),
		CircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opcuad_method_circuit_breaker_trips_total",
			Help: "Total number of times a Method-callback circuit breaker opened.",
		}),
		CircuitBreakerResets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opcuad_method_circuit_breaker_resets_total",
			Help: "Total number of times a Method-callback circuit breaker closed again.",
		}),
	}
}

// Register adds every collector to reg (use prometheus.DefaultRegisterer
// in production, a fresh prometheus.NewRegistry() in tests).
func (m *ServerMetrics) Register(reg prometheus.Registerer) {
	reg.MustRegister(
		m.ChannelsOpen,
		m.SessionsActive,
		m.SubscriptionsActive,
		m.MonitoredItemsActive,
		m.PublishRequestsParked,
		m.NotificationsTotal,
		m.ServiceFaultsTotal,
		m.CircuitBreakerTrips,
		m.CircuitBreakerResets,
	)
}

// Handler returns the promhttp handler serving these metrics, matching
// a promhttp "/metrics" endpoint.
func Handler() http.Handler { return promhttp.Handler() }
