// Package metrics exposes Prometheus collectors for the lana processes.
//
// Every recorder method is safe on a nil *Metrics so callers that run
// without instrumentation (tests, the CLI) need no guards.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lana"

type Metrics struct {
	registry *prometheus.Registry

	PaymentsProcessed      *prometheus.CounterVec
	PaymentBatchDuration   prometheus.Histogram
	RemindersEmitted       prometheus.Counter
	BudgetAlerts           *prometheus.CounterVec
	NotificationsDelivered *prometheus.CounterVec
	HTTPRequests           *prometheus.CounterVec
	HTTPDuration           *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		PaymentsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduled_payments_processed_total",
				Help:      "Scheduled payments handled by the processor, by outcome",
			},
			[]string{"status"},
		),

		PaymentBatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scheduled_payment_batch_duration_seconds",
				Help:      "Wall time of one processing batch",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),

		RemindersEmitted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payment_reminders_total",
				Help:      "Upcoming-payment reminders stored",
			},
		),

		BudgetAlerts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "budget_alerts_total",
				Help:      "Budget alerts by tier and whether they were stored or suppressed as duplicates",
			},
			[]string{"tier", "outcome"},
		),

		NotificationsDelivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_delivered_total",
				Help:      "Notification delivery attempts by channel and result",
			},
			[]string{"channel", "result"},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route, method and status code",
			},
			[]string{"route", "method", "code"},
		),

		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by route",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.PaymentsProcessed,
		m.PaymentBatchDuration,
		m.RemindersEmitted,
		m.BudgetAlerts,
		m.NotificationsDelivered,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) PaymentProcessed(status string) {
	if m == nil {
		return
	}
	m.PaymentsProcessed.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveBatch(d time.Duration) {
	if m == nil {
		return
	}
	m.PaymentBatchDuration.Observe(d.Seconds())
}

func (m *Metrics) ReminderEmitted() {
	if m == nil {
		return
	}
	m.RemindersEmitted.Inc()
}

// BudgetAlert counts an alert; outcome is "stored" or "suppressed".
func (m *Metrics) BudgetAlert(tier, outcome string) {
	if m == nil {
		return
	}
	m.BudgetAlerts.WithLabelValues(tier, outcome).Inc()
}

func (m *Metrics) Delivery(channel, result string) {
	if m == nil {
		return
	}
	m.NotificationsDelivered.WithLabelValues(channel, result).Inc()
}

func (m *Metrics) ObserveHTTP(route, method string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(route, method).Observe(d.Seconds())
}
