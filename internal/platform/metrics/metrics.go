package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Apurer/vendor-orders/internal/domains/orders/application"
	"github.com/Apurer/vendor-orders/internal/domains/orders/domain"
)

var _ application.SessionMetrics = (*Registry)(nil)

// Registry holds the process's Prometheus collectors on a private registry.
type Registry struct {
	reg                  *prometheus.Registry
	SessionsActive       prometheus.Gauge
	Snapshots            *prometheus.CounterVec
	AggregateRebuilds    prometheus.Counter
	StaleCallbacks       prometheus.Counter
	SubscriptionFailures *prometheus.CounterVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	sessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orders_sessions_active",
		Help: "Live order sessions currently subscribed.",
	})
	snapshots := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_snapshots_total",
		Help: "Snapshots applied to live sessions.",
	}, []string{"collection"})
	rebuilds := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_aggregate_rebuilds_total",
		Help: "Full aggregate rebuilds.",
	})
	stale := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_stale_callbacks_total",
		Help: "Callbacks dropped because their session had been stopped.",
	})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_subscription_failures_total",
		Help: "Terminal subscription errors.",
	}, []string{"collection"})

	r.MustRegister(sessions, snapshots, rebuilds, stale, failures)
	return &Registry{
		reg:                  r,
		SessionsActive:       sessions,
		Snapshots:            snapshots,
		AggregateRebuilds:    rebuilds,
		StaleCallbacks:       stale,
		SubscriptionFailures: failures,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

func (r *Registry) SessionStarted() { r.SessionsActive.Inc() }

func (r *Registry) SessionStopped() { r.SessionsActive.Dec() }

func (r *Registry) SnapshotReceived(collection domain.Collection) {
	r.Snapshots.WithLabelValues(string(collection)).Inc()
}

func (r *Registry) AggregateRebuilt() { r.AggregateRebuilds.Inc() }

func (r *Registry) StaleCallback() { r.StaleCallbacks.Inc() }

func (r *Registry) SubscriptionFailed(collection domain.Collection) {
	r.SubscriptionFailures.WithLabelValues(string(collection)).Inc()
}
