package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PaymentAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_attempts_total",
		Help: "Total number of payment attempts started",
	}, []string{"channel"})

	PaymentAttemptsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_attempts_failed_total",
		Help: "Total number of payment attempts that failed to start",
	}, []string{"channel", "reason"})

	PaymentsConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_confirmed_total",
		Help: "Total number of bookings confirmed after payment",
	})

	PaymentsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_failed_total",
		Help: "Total number of bookings marked failed after a payment failure",
	})

	PaymentConfirmReplays = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_confirm_replays_total",
		Help: "Total number of idempotent confirm replays (same transaction id)",
	})

	PaymentConfirmConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_confirm_conflicts_total",
		Help: "Total number of confirms rejected due to transaction id mismatch",
	})

	DealCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deal_cache_hits_total",
		Help: "Total number of deal reads served from cache",
	}, []string{"tier"})

	DealCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deal_cache_misses_total",
		Help: "Total number of deal reads that required an upstream fetch",
	})

	DealRefreshFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deal_refresh_failures_total",
		Help: "Total number of failed upstream deal fetches",
	})

	DealStaleServes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deal_stale_serves_total",
		Help: "Total number of stale deal entries served after a fetch failure",
	})

	DealFetchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "deal_fetch_latency_seconds",
		Help:    "Latency of upstream deal fetches",
		Buckets: prometheus.DefBuckets,
	})

	CurrencyConversionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "currency_conversions_total",
		Help: "Total number of currency conversions performed",
	})

	CurrencyConversionsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "currency_conversions_failed_total",
		Help: "Total number of failed currency conversions",
	}, []string{"reason"})

	NotificationsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Total number of payment notifications dispatched",
	})

	NotificationsDeduped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_deduped_total",
		Help: "Total number of notification events skipped as already processed",
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
