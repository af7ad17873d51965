// Package metrics exposes Prometheus collectors for the HTTP layer, bill
// generation, payment transitions and the background worker.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "dairyflow"

	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	registerOnce sync.Once

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	billsGenerated         *prometheus.CounterVec
	generationLatency      *prometheus.HistogramVec
	paymentTransitions     *prometheus.CounterVec
	overdueBills           *prometheus.GaugeVec
	overdueAmount          *prometheus.GaugeVec
	outboxRelayed          *prometheus.CounterVec
	idempotencyKeysExpired prometheus.Counter
)

// Init registers all collectors with the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		)
		httpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		)
		billsGenerated = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bills_generated_total",
				Help:      "Clients processed by monthly generation, by outcome",
			},
			[]string{"outcome"},
		)
		generationLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "bill_generation_duration_seconds",
				Help:      "Monthly generation run latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		paymentTransitions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payment_transitions_total",
				Help:      "Paid/unpaid transitions by kind and result",
			},
			[]string{"kind", "result"},
		)
		overdueBills = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "overdue_bills",
				Help:      "Overdue unpaid bills by tenant and aging bucket",
			},
			[]string{"tenant", "bucket"},
		)
		overdueAmount = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "overdue_amount",
				Help:      "Outstanding overdue amount by tenant and aging bucket",
			},
			[]string{"tenant", "bucket"},
		)
		outboxRelayed = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outbox_relayed_total",
				Help:      "Outbox batches relayed by result",
			},
			[]string{"result"},
		)
		idempotencyKeysExpired = prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "idempotency_keys_expired_total",
				Help:      "Expired idempotency keys removed",
			},
		)

		prometheus.MustRegister(
			httpRequests,
			httpLatency,
			billsGenerated,
			generationLatency,
			paymentTransitions,
			overdueBills,
			overdueAmount,
			outboxRelayed,
			idempotencyKeysExpired,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func resultOf(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}

// ObserveHTTP records one finished request.
func ObserveHTTP(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	if httpRequests != nil {
		httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	}
	if httpLatency != nil {
		httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
	}
}

// ObserveGeneration records a generation run and its per-client outcomes.
func ObserveGeneration(generated, skipped, failed int, duration time.Duration, err error) {
	if billsGenerated != nil {
		billsGenerated.WithLabelValues("generated").Add(float64(generated))
		billsGenerated.WithLabelValues("skipped").Add(float64(skipped))
		billsGenerated.WithLabelValues("failed").Add(float64(failed))
	}
	if generationLatency != nil {
		generationLatency.WithLabelValues(resultOf(err)).Observe(duration.Seconds())
	}
}

// IncPaymentTransition counts a paid or unpaid transition attempt.
func IncPaymentTransition(kind string, err error) {
	if paymentTransitions != nil {
		paymentTransitions.WithLabelValues(kind, resultOf(err)).Inc()
	}
}

// SetOverdue publishes the overdue snapshot of one tenant bucket.
func SetOverdue(tenantID, bucket string, count int, amount float64) {
	if overdueBills != nil {
		overdueBills.WithLabelValues(tenantID, bucket).Set(float64(count))
	}
	if overdueAmount != nil {
		overdueAmount.WithLabelValues(tenantID, bucket).Set(amount)
	}
}

// IncOutboxRelayed counts one relayed batch.
func IncOutboxRelayed(err error) {
	if outboxRelayed != nil {
		outboxRelayed.WithLabelValues(resultOf(err)).Inc()
	}
}

// AddIdempotencyExpired counts removed keys.
func AddIdempotencyExpired(n int64) {
	if n > 0 && idempotencyKeysExpired != nil {
		idempotencyKeysExpired.Add(float64(n))
	}
}
