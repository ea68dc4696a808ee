package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type dispatcherMetrics struct {
	publishedTotal *prometheus.CounterVec
	droppedTotal   *prometheus.CounterVec
	subscribers    prometheus.Gauge
}

func newDispatcherMetrics(registry prometheus.Registerer) *dispatcherMetrics {
	if registry == nil {
		return &dispatcherMetrics{}
	}
	factory := promauto.With(registry)
	return &dispatcherMetrics{
		publishedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "workflow_invalidations_published_total",
			Help: "Total number of invalidation events published",
		}, []string{"kind"}),
		droppedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "workflow_invalidations_dropped_total",
			Help: "Total number of invalidation events dropped on full subscriber buffers",
		}, []string{"kind"}),
		subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "workflow_invalidation_subscribers",
			Help: "Number of open invalidation subscriptions",
		}),
	}
}

func (m *dispatcherMetrics) published(kind EventKind) {
	if m == nil || m.publishedTotal == nil {
		return
	}
	m.publishedTotal.WithLabelValues(string(kind)).Inc()
}

func (m *dispatcherMetrics) dropped(kind EventKind) {
	if m == nil || m.droppedTotal == nil {
		return
	}
	m.droppedTotal.WithLabelValues(string(kind)).Inc()
}

func (m *dispatcherMetrics) subscribed(delta float64) {
	if m == nil || m.subscribers == nil {
		return
	}
	m.subscribers.Add(delta)
}
