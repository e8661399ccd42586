// Package metrics holds the Prometheus collectors of the quiz service and
// the HTTP API, registered on an explicit registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "plantdoctor"

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	sessionsStarted *prometheus.CounterVec
	answers         *prometheus.CounterVec
	results         *prometheus.CounterVec
	backs           *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry that also exposes the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		sessionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quiz",
			Name:      "sessions_started_total",
			Help:      "Quiz sessions started or restarted.",
		}, []string{"quiz"}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quiz",
			Name:      "answers_total",
			Help:      "Options selected.",
		}, []string{"quiz"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quiz",
			Name:      "results_total",
			Help:      "Arrivals at a result node.",
		}, []string{"quiz", "result"}),
		backs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quiz",
			Name:      "back_total",
			Help:      "Back navigations, labelled by whether the state moved.",
		}, []string{"quiz", "moved"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		}, []string{"route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.sessionsStarted, m.answers, m.results, m.backs,
		m.httpRequests, m.httpDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SessionStarted counts a started or restarted session of quizID.
func (m *Metrics) SessionStarted(quizID string) {
	if m == nil {
		return
	}
	m.sessionsStarted.WithLabelValues(quizID).Inc()
}

// Answered counts one selected option.
func (m *Metrics) Answered(quizID string) {
	if m == nil {
		return
	}
	m.answers.WithLabelValues(quizID).Inc()
}

// ResultReached counts an arrival at resultID.
func (m *Metrics) ResultReached(quizID, resultID string) {
	if m == nil {
		return
	}
	m.results.WithLabelValues(quizID, resultID).Inc()
}

// Back counts a back navigation; moved is false at the start node.
func (m *Metrics) Back(quizID string, moved bool) {
	if m == nil {
		return
	}
	m.backs.WithLabelValues(quizID, strconv.FormatBool(moved)).Inc()
}

// ObserveHTTP records one finished request. route is the router pattern,
// never the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
