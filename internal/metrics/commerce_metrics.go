package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Исходы проверки платежа
const (
	OutcomeActivated    = "activated"
	OutcomeIdempotent   = "idempotent"
	OutcomeBadSignature = "bad_signature"
	OutcomeNotCaptured  = "not_captured"
	OutcomeGatewayError = "gateway_error"
	OutcomeConflict     = "conflict"
	OutcomeError        = "error"
)

// CommerceMetrics - метрики заказов, оплат и подписок
type CommerceMetrics interface {
	IncOrderCreated(currency string)
	IncVerification(outcome string)
	IncActivation(currency string)
	ObserveActivationAmount(amount int64, currency string)
	ObserveGatewayCall(op string, d time.Duration, err error)
	IncLifecycle(op string)
	ObserveHTTPRequest(method, route string, status int, d time.Duration)
}

type commerceMetrics struct {
	ordersCreated   *prometheus.CounterVec
	verifications   *prometheus.CounterVec
	activations     *prometheus.CounterVec
	activationMinor *prometheus.HistogramVec
	gatewayLatency  *prometheus.HistogramVec
	lifecycle       *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// NewCommerceMetrics регистрирует метрики в registry
func NewCommerceMetrics(registry *prometheus.Registry) CommerceMetrics {
	f := promauto.With(registry)
	return &commerceMetrics{
		ordersCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "The total number of orders created at the gateway",
		}, []string{"currency"}),
		verifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_verifications_total",
			Help: "Payment verifications by outcome",
		}, []string{"outcome"}),
		activations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "subscriptions_activated_total",
			Help: "The total number of subscriptions activated by a verified payment",
		}, []string{"currency"}),
		activationMinor: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "subscription_amount_minor",
			Help:    "Activated subscription amounts in minor units",
			Buckets: prometheus.ExponentialBuckets(100, 10, 6), // 1.00 .. 1 000 000.00
		}, []string{"currency"}),
		gatewayLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Payment gateway call latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "result"}),
		lifecycle: f.NewCounterVec(prometheus.CounterOpts{
			Name: "subscription_lifecycle_total",
			Help: "Lifecycle operations applied to subscriptions",
		}, []string{"op"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (m *commerceMetrics) IncOrderCreated(currency string) {
	m.ordersCreated.WithLabelValues(currency).Inc()
}

func (m *commerceMetrics) IncVerification(outcome string) {
	m.verifications.WithLabelValues(outcome).Inc()
}

func (m *commerceMetrics) IncActivation(currency string) {
	m.activations.WithLabelValues(currency).Inc()
}

func (m *commerceMetrics) ObserveActivationAmount(amount int64, currency string) {
	m.activationMinor.WithLabelValues(currency).Observe(float64(amount))
}

func (m *commerceMetrics) ObserveGatewayCall(op string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.gatewayLatency.WithLabelValues(op, result).Observe(d.Seconds())
}

func (m *commerceMetrics) IncLifecycle(op string) {
	m.lifecycle.WithLabelValues(op).Inc()
}

func (m *commerceMetrics) ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, statusClass(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
