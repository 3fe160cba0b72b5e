package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ecommerce"

// Metrics is safe to use through a nil pointer; every method is then a no-op.
type Metrics struct {
	Requests            *prometheus.CounterVec
	LatencyMS           *prometheus.HistogramVec
	Checkouts           *prometheus.CounterVec
	Webhooks            *prometheus.CounterVec
	FulfillmentAttempts *prometheus.CounterVec
	DeadLetters         prometheus.Counter
	OutboxPublished     prometheus.Counter
}

func New(reg prometheus.Registerer, service string) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "checkouts_total",
			Help:      "Checkout attempts by outcome.",
		}, []string{"outcome"}),
		Webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "payment_webhooks_total",
			Help:      "Payment webhook deliveries by outcome.",
		}, []string{"outcome"}),
		FulfillmentAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "fulfillment_attempts_total",
			Help:      "Fulfillment task attempts by result.",
		}, []string{"result"}),
		DeadLetters: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "fulfillment_dead_letters_total",
			Help:      "Fulfillment tasks moved to the dead-letter store.",
		}),
		OutboxPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "outbox_events_published_total",
			Help:      "Outbox events published to the queue.",
		}),
	}

	reg.MustRegister(
		m.Requests,
		m.LatencyMS,
		m.Checkouts,
		m.Webhooks,
		m.FulfillmentAttempts,
		m.DeadLetters,
		m.OutboxPublished,
	)
	return m
}

func (m *Metrics) ObserveCheckout(outcome string) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveWebhook(outcome string) {
	if m == nil {
		return
	}
	m.Webhooks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveFulfillmentAttempt(result string) {
	if m == nil {
		return
	}
	m.FulfillmentAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveDeadLetter() {
	if m == nil {
		return
	}
	m.DeadLetters.Inc()
}

func (m *Metrics) ObserveOutboxPublished() {
	if m == nil {
		return
	}
	m.OutboxPublished.Inc()
}

// Middleware records request count and latency per chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		m.Requests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		m.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
