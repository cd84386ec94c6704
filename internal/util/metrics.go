package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PaymentSessionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_sessions_created_total",
		Help: "Total number of payment sessions created",
	})

	PaymentSessionsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_sessions_expired_total",
		Help: "Total number of payment sessions failed by the reaper",
	})

	InstallmentsPaidTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "installments_paid_total",
		Help: "Total number of installments marked paid",
	})

	VerificationsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "verifications_failed_total",
		Help: "Total number of failed payment verifications",
	}, []string{"reason"})

	BookingsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookings_created_total",
		Help: "Total number of bookings created",
	})

	BookingsCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookings_cancelled_total",
		Help: "Total number of bookings cancelled",
	})

	BookingsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookings_completed_total",
		Help: "Total number of EMI bookings fully paid off",
	})

	RefundAmountTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "refund_amount_minor_units_total",
		Help: "Cumulative refund amount in currency minor units",
	})

	PaymentInitiateLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_initiate_latency_seconds",
		Help:    "Latency of installment payment initiation",
		Buckets: prometheus.DefBuckets,
	})

	PaymentVerifyLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_verify_latency_seconds",
		Help:    "Latency of installment payment verification",
		Buckets: prometheus.DefBuckets,
	})

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
