package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SessionsIssued counts sessions created, by kind (standard, magic_link).
	SessionsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_sessions_issued_total",
		Help: "Portal sessions issued by kind",
	}, []string{"kind"})

	// SessionValidations counts validateSession outcomes.
	SessionValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_session_validations_total",
		Help: "Portal session validations by result",
	}, []string{"result"})

	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_login_attempts_total",
		Help: "Password login attempts by result",
	}, []string{"result"})

	CustomersResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_customers_resolved_total",
		Help: "Customer identity resolutions by result (created, matched)",
	}, []string{"result"})

	// Provisioning counts addCustomerWithPortalAccount outcomes.
	Provisioning = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_provisioning_total",
		Help: "Customer provisioning outcomes",
	}, []string{"outcome"})

	ActivityLogFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portal_activity_log_failures_total",
		Help: "Activity log writes that failed and were dropped",
	})

	NotificationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_notification_failures_total",
		Help: "Email hand-offs that failed, by kind",
	}, []string{"kind"})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_rate_limited_total",
		Help: "Requests rejected by rate limiting, by route",
	}, []string{"route"})

	CleanupDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portal_sessions_cleaned_total",
		Help: "Stale session rows physically deleted",
	})

	StoreLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portal_operation_duration_seconds",
		Help:    "Duration of portal core operations",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"operation"})
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSince records the elapsed time of an operation. Use with defer:
//
//	defer metrics.ObserveSince("provision", time.Now())
func ObserveSince(operation string, start time.Time) {
	StoreLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
