package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	Requests          *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	FriendTransitions *prometheus.CounterVec
	PostsCreated      *prometheus.CounterVec
	EvidenceChecks    *prometheus.CounterVec
	CacheErrors       *prometheus.CounterVec
}

// NewMetrics registers every collector on its own registry so tests can build several.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		FriendTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "friend_request_transitions_total",
				Help: "Friend request send/accept/reject operations by outcome",
			},
			[]string{"action", "outcome"},
		),
		PostsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "posts_created_total",
				Help: "Posts created, split into regular and beijjati",
			},
			[]string{"kind"},
		),
		EvidenceChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evidence_checks_total",
				Help: "Evidence gate verdicts",
			},
			[]string{"verdict"},
		),
		CacheErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_errors_total",
				Help: "Redis errors by operation",
			},
			[]string{"operation"},
		),
	}

	m.registry.MustRegister(
		m.Requests,
		m.RequestDuration,
		m.FriendTransitions,
		m.PostsCreated,
		m.EvidenceChecks,
		m.CacheErrors,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) FriendTransition(action, outcome string) {
	if m == nil {
		return
	}
	m.FriendTransitions.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) PostCreated(accusation bool) {
	if m == nil {
		return
	}
	kind := "regular"
	if accusation {
		kind = "beijjati"
	}
	m.PostsCreated.WithLabelValues(kind).Inc()
}

func (m *Metrics) EvidenceVerdict(accepted bool) {
	if m == nil {
		return
	}
	m.EvidenceChecks.WithLabelValues(strconv.FormatBool(accepted)).Inc()
}

func (m *Metrics) CacheError(operation string) {
	if m == nil {
		return
	}
	m.CacheErrors.WithLabelValues(operation).Inc()
}

// MetricsMiddleware records request counts and latency keyed by the matched route template.
func MetricsMiddleware(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			route := r.URL.Path
			if current := mux.CurrentRoute(r); current != nil {
				if tmpl, err := current.GetPathTemplate(); err == nil {
					route = tmpl
				}
			}
			m.Requests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
			m.RequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
		})
	}
}
