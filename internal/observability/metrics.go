package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cory-johannsen/quizhub/internal/hub"
)

const namespace = "quizhub"

// Metrics holds the Prometheus collectors for the hub and the admin API.
// It implements hub.Metrics.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	rejected        *prometheus.CounterVec
	delivered       *prometheus.CounterVec
	dropped         *prometheus.CounterVec
	sessions        prometheus.Gauge
	rooms           prometheus.Gauge
	queueDepth      prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	httpInFlight prometheus.Gauge
}

var _ hub.Metrics = (*Metrics)(nil)

// NewMetrics registers all collectors on a fresh registry that also carries
// the Go runtime and process collectors.
//
// Postcondition: Returns a Metrics whose Handler exposes every collector.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "requests_total",
			Help:      "Hub requests processed, by kind and outcome",
		}, []string{"kind", "outcome"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "request_duration_seconds",
			Help:      "Time spent applying one hub request",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
		}, []string{"kind"}),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "requests_rejected_total",
			Help:      "Hub requests rejected because the queue was full",
		}, []string{"kind"}),
		delivered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "messages_delivered_total",
			Help:      "Messages handed to session recipients, by type",
		}, []string{"type"}),
		dropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "messages_dropped_total",
			Help:      "Messages dropped during fan-out, by reason",
		}, []string{"reason"}),
		sessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "sessions",
			Help:      "Connected sessions",
		}),
		rooms: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "rooms",
			Help:      "Live rooms",
		}),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "queue_depth",
			Help:      "Requests waiting in the hub queue",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests received",
		}, []string{"method", "route", "status"}),
		httpLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		httpInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "Current number of in-flight HTTP requests",
		}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObservePool exports database connection gauges. stat is read on every
// scrape.
//
// Precondition: stat must be safe to call concurrently; ObservePool is called once.
func (m *Metrics) ObservePool(stat func() (acquired, idle, total int32)) {
	f := promauto.With(m.registry)
	gauge := func(name, help string, pick func(a, i, t int32) int32) {
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      name,
			Help:      help,
		}, func() float64 {
			return float64(pick(stat()))
		})
	}
	gauge("acquired_connections", "Connections currently in use", func(a, _, _ int32) int32 { return a })
	gauge("idle_connections", "Idle connections in the pool", func(_, i, _ int32) int32 { return i })
	gauge("total_connections", "Open connections in the pool", func(_, _, t int32) int32 { return t })
}

func (m *Metrics) RequestHandled(kind, outcome string, elapsed time.Duration) {
	m.requests.WithLabelValues(kind, outcome).Inc()
	m.requestDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (m *Metrics) RequestRejected(kind string) {
	m.rejected.WithLabelValues(kind).Inc()
}

func (m *Metrics) MessageDelivered(t hub.MessageType) {
	m.delivered.WithLabelValues(t.String()).Inc()
}

func (m *Metrics) MessageDropped(reason string) {
	m.dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetState(sessions, rooms, queueDepth int) {
	m.sessions.Set(float64(sessions))
	m.rooms.Set(float64(rooms))
	m.queueDepth.Set(float64(queueDepth))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Middleware records request metrics labelled by the matched chi route
// pattern rather than the raw path, so IDs do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := strconv.Itoa(rec.status)
		m.httpRequests.WithLabelValues(r.Method, route, status).Inc()
		m.httpLatency.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}
