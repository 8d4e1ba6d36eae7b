package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_orders_created_total",
		Help: "Total number of orders created by checkout",
	}, []string{"payment_method"})

	OrdersPaidTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_orders_paid_total",
		Help: "Total number of orders marked paid by a provider callback",
	}, []string{"provider"})

	OrdersCancelledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_orders_cancelled_total",
		Help: "Total number of orders cancelled by a provider callback",
	}, []string{"reason"})

	CheckoutFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_failed_total",
		Help: "Total number of checkout attempts that did not reach a payment page or completion",
	}, []string{"reason"})

	PaymentInitiationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_initiations_total",
		Help: "Total number of gateway initiations by provider and outcome",
	}, []string{"provider", "outcome"})

	GatewayLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_gateway_latency_seconds",
		Help:    "Latency of payment gateway calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "operation"})

	TrackingSendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracking_sends_total",
		Help: "Total number of tracking events sent per destination",
	}, []string{"destination", "kind", "outcome"})

	TrackingGateActivations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracking_gate_activations_total",
		Help: "Tracking activation sequences started, by trigger",
	}, []string{"trigger"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
