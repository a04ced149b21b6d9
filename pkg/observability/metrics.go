package observability

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "synergyhub"

var sizeBuckets = prometheus.ExponentialBuckets(100, 10, 6)

// Metrics holds the service's Prometheus collectors. Every recorder is a
// no-op on a nil *Metrics.
type Metrics struct {
	HTTPInFlight        prometheus.Gauge
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	StorageOperationsTotal   *prometheus.CounterVec
	StorageOperationDuration *prometheus.HistogramVec

	MembershipOperationsTotal    *prometheus.CounterVec
	QuotaRejectionsTotal         *prometheus.CounterVec
	VersionConflictsTotal        *prometheus.CounterVec
	DependentUpdateFailuresTotal *prometheus.CounterVec
	InvitationsTotal             *prometheus.CounterVec

	registry prometheus.Registerer
}

func counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
}

func histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: name, Help: help, Buckets: buckets}, labels)
}

// NewMetrics creates the collectors and registers them with registry. It
// panics on double registration.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "API requests currently being served",
		}),
		// method and code are the label names promhttp fills in
		HTTPRequestsTotal:   counterVec("http_requests_total", "API requests by route, method and status code", "route", "method", "code"),
		HTTPRequestDuration: histogramVec("http_request_duration_seconds", "API request latency", prometheus.DefBuckets, "route", "method"),
		HTTPRequestSize:     histogramVec("http_request_size_bytes", "Approximate API request size", sizeBuckets, "route", "method"),
		HTTPResponseSize:    histogramVec("http_response_size_bytes", "API response body size", sizeBuckets, "route", "method"),

		StorageOperationsTotal: counterVec("storage_operations_total", "Document store calls by outcome", "collection", "operation", "status"),
		StorageOperationDuration: histogramVec("storage_operation_duration_seconds", "Document store call latency",
			[]float64{.001, .005, .01, .025, .05, .1, .25, .5, 1}, "collection", "operation"),

		MembershipOperationsTotal:    counterVec("membership_operations_total", "Membership operations by outcome", "operation", "result"),
		QuotaRejectionsTotal:         counterVec("quota_rejections_total", "Membership changes refused by a role ceiling", "role"),
		VersionConflictsTotal:        counterVec("version_conflicts_total", "Optimistic concurrency conflicts that were retried", "operation"),
		DependentUpdateFailuresTotal: counterVec("dependent_update_failures_total", "Best-effort follow-up writes that failed", "dependent"),
		InvitationsTotal:             counterVec("invitations_total", "Invitation lifecycle events", "event"),

		registry: registry,
	}

	registry.MustRegister(
		m.HTTPInFlight,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSize,
		m.HTTPResponseSize,
		m.StorageOperationsTotal,
		m.StorageOperationDuration,
		m.MembershipOperationsTotal,
		m.QuotaRejectionsTotal,
		m.VersionConflictsTotal,
		m.DependentUpdateFailuresTotal,
		m.InvitationsTotal,
	)
	return m
}

// ObserveStorage records one document store call
func (m *Metrics) ObserveStorage(collection, operation, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.StorageOperationsTotal.WithLabelValues(collection, operation, status).Inc()
	m.StorageOperationDuration.WithLabelValues(collection, operation).Observe(d.Seconds())
}

// RecordMembershipOp counts a finished membership operation. result is a
// short outcome label such as "success", "quota_exceeded" or "error".
func (m *Metrics) RecordMembershipOp(operation, result string) {
	if m == nil {
		return
	}
	m.MembershipOperationsTotal.WithLabelValues(operation, result).Inc()
}

// RecordQuotaRejection counts a ceiling hit for role
func (m *Metrics) RecordQuotaRejection(role string) {
	if m == nil {
		return
	}
	m.QuotaRejectionsTotal.WithLabelValues(role).Inc()
}

func (m *Metrics) RecordVersionConflict(operation string) {
	if m == nil {
		return
	}
	m.VersionConflictsTotal.WithLabelValues(operation).Inc()
}

func (m *Metrics) RecordDependentFailure(dependent string) {
	if m == nil {
		return
	}
	m.DependentUpdateFailuresTotal.WithLabelValues(dependent).Inc()
}

func (m *Metrics) RecordInvitation(event string) {
	if m == nil {
		return
	}
	m.InvitationsTotal.WithLabelValues(event).Inc()
}

// RegisterCacheStats exposes hit and miss counters read from stats at
// scrape time
func (m *Metrics) RegisterCacheStats(cache string, stats func() (hits, misses int64)) {
	if m == nil {
		return
	}
	read := func(hits bool) func() float64 {
		return func() float64 {
			h, miss := stats()
			if hits {
				return float64(h)
			}
			return float64(miss)
		}
	}
	labels := prometheus.Labels{"cache": cache}
	m.registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_hits_total", Help: "Total number of cache hits", ConstLabels: labels,
		}, read(true)),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_misses_total", Help: "Total number of cache misses", ConstLabels: labels,
		}, read(false)),
	)
}

// routeLabel returns the mux route template so ids do not explode label
// cardinality. Unmatched requests share one label.
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware instruments requests through promhttp, with the
// vectors curried by route. Register it with mux.Router.Use so the matched
// route is known.
func HTTPMetricsMiddleware(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := prometheus.Labels{"route": routeLabel(r)}
			var h http.Handler = promhttp.InstrumentHandlerCounter(m.HTTPRequestsTotal.MustCurryWith(route), next)
			h = promhttp.InstrumentHandlerDuration(m.HTTPRequestDuration.MustCurryWith(route), h)
			h = promhttp.InstrumentHandlerRequestSize(m.HTTPRequestSize.MustCurryWith(route), h)
			h = promhttp.InstrumentHandlerResponseSize(m.HTTPResponseSize.MustCurryWith(route), h)
			promhttp.InstrumentHandlerInFlight(m.HTTPInFlight, h).ServeHTTP(w, r)
		})
	}
}

// RegisterMetricsEndpoint serves registry on /metrics
func RegisterMetricsEndpoint(serveMux *http.ServeMux, registry *prometheus.Registry) {
	serveMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
}
