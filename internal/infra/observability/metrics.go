package observability

import (
	"strconv"
	"time"

	"github.com/boddenberg/portal-membros-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the portal API.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	httpDuration    *prometheus.HistogramVec
	opDuration      *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	webhookEvents   *prometheus.CounterVec
	ledgerDuplicate prometheus.Counter
	notifications   *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portal_http_request_duration_seconds",
				Help:    "Duration of HTTP requests by route and status.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		opDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portal_operation_duration_seconds",
				Help:    "Duration of service operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		webhookEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_payment_webhook_events_total",
				Help: "Inbound payment webhook events by provider and outcome.",
			},
			[]string{"provider", "outcome"},
		),
		ledgerDuplicate: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "portal_payment_ledger_duplicates_total",
				Help: "Replayed provider payments skipped by the ledger.",
			},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_notifications_total",
				Help: "Outbound webhook notifications by event and outcome.",
			},
			[]string{"event", "outcome"},
		),
	}
}

// RecordHTTPRequest records the duration of an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// RecordOperation records the duration of a service operation.
func (m *Metrics) RecordOperation(operation string, d time.Duration) {
	m.opDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrWebhookEvent counts an inbound payment webhook ("processed", "ignored", "failed").
func (m *Metrics) IncrWebhookEvent(provider, outcome string) {
	m.webhookEvents.WithLabelValues(provider, outcome).Inc()
}

// IncrLedgerDuplicate counts a skipped duplicate ledger insert.
func (m *Metrics) IncrLedgerDuplicate() {
	m.ledgerDuplicate.Inc()
}

// IncrNotification counts an outbound notification ("sent", "failed", "dropped").
func (m *Metrics) IncrNotification(event, outcome string) {
	m.notifications.WithLabelValues(event, outcome).Inc()
}

// WebhookSnapshot returns the webhook and notification counters for the
// GET /v1/admin/metrics/webhooks endpoint.
func (m *Metrics) WebhookSnapshot() *domain.WebhookMetrics {
	return &domain.WebhookMetrics{
		StripeProcessed:      int64(getCounterValue(m.webhookEvents, "stripe", "processed")),
		StripeFailed:         int64(getCounterValue(m.webhookEvents, "stripe", "failed")),
		MercadoPagoProcessed: int64(getCounterValue(m.webhookEvents, "mercadopago", "processed")),
		MercadoPagoFailed:    int64(getCounterValue(m.webhookEvents, "mercadopago", "failed")),
		LedgerDuplicates:     int64(readCounter(m.ledgerDuplicate)),
		NotificationsSent: int64(getCounterValue(m.notifications, domain.EventTicketClosed, "sent") +
			getCounterValue(m.notifications, domain.EventContactSubmitted, "sent")),
		NotificationsFailed: int64(getCounterValue(m.notifications, domain.EventTicketClosed, "failed") +
			getCounterValue(m.notifications, domain.EventContactSubmitted, "failed")),
		Period: "all_time",
	}
}

// getCounterValue extracts the current value from a CounterVec for the given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	return readCounter(cv.WithLabelValues(labels...))
}

func readCounter(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
