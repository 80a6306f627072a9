package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/saturnino-fabrica-de-software/eventcore/internal/bus"
)

const namespace = "eventcore"

// Snapshotter is satisfied by *bus.Bus.
type Snapshotter interface {
	Metrics() bus.Metrics
}

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// Bus delivery metrics
	DeliveryTransitionsTotal *prometheus.CounterVec
	DeliveryAttempts         *prometheus.HistogramVec

	// Webhook metrics
	WebhookRequestsTotal   *prometheus.CounterVec
	WebhookRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the delivery and webhook metrics.
// A nil registry gets a fresh one with the Go and process collectors.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			prometheus.NewGoCollector(),
			prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		)
	}

	m := &Metrics{
		registry: registry,
		DeliveryTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "delivery_transitions_total",
				Help:      "Delivery state transitions by event type and state",
			},
			[]string{"event_type", "state"},
		),
		DeliveryAttempts: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "delivery_attempts",
				Help:      "Attempts spent per settled delivery",
				Buckets:   []float64{1, 2, 3, 4, 6, 10},
			},
			[]string{"event_type", "state"},
		),
		WebhookRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_requests_total",
				Help:      "Webhook POSTs by event type and outcome",
			},
			[]string{"event_type", "outcome"},
		),
		WebhookRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "webhook_request_duration_seconds",
				Help:      "Webhook POST duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"event_type"},
		),
	}

	registry.MustRegister(
		m.DeliveryTransitionsTotal,
		m.DeliveryAttempts,
		m.WebhookRequestsTotal,
		m.WebhookRequestDuration,
	)

	return m
}

// RegisterBus exports the bus counters as eventcore_events_<name>_total.
func (m *Metrics) RegisterBus(source Snapshotter) {
	counter := func(name, help string, read func(bus.Metrics) uint64) prometheus.CounterFunc {
		return prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "events",
				Name:      name + "_total",
				Help:      help,
			},
			func() float64 { return float64(read(source.Metrics())) },
		)
	}

	m.registry.MustRegister(
		counter("published", "Events accepted for fan-out",
			func(s bus.Metrics) uint64 { return s.Published }),
		counter("delivered", "Deliveries that succeeded",
			func(s bus.Metrics) uint64 { return s.Delivered }),
		counter("failed", "Deliveries that exhausted their retries",
			func(s bus.Metrics) uint64 { return s.Failed }),
		counter("deduplicated", "Publishes suppressed as duplicates",
			func(s bus.Metrics) uint64 { return s.Deduplicated }),
	)
}

// ObserveTransition is a bus.DeliveryObserver.
func (m *Metrics) ObserveTransition(d bus.Delivery) {
	m.DeliveryTransitionsTotal.WithLabelValues(d.EventType, string(d.State)).Inc()
	if d.State.Terminal() {
		m.DeliveryAttempts.WithLabelValues(d.EventType, string(d.State)).Observe(float64(d.Attempt))
	}
}

// ObserveDelivery implements webhook.Recorder.
func (m *Metrics) ObserveDelivery(eventType, outcome string, elapsed time.Duration) {
	m.WebhookRequestsTotal.WithLabelValues(eventType, outcome).Inc()
	m.WebhookRequestDuration.WithLabelValues(eventType).Observe(elapsed.Seconds())
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
