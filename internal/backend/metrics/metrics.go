package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "media_organizer"

// Metrics holds the backend's Prometheus instrumentation. Each backend
// process owns its registry so tests never collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	ScansStarted    prometheus.Counter
	ScansCompleted  *prometheus.CounterVec
	FilesCataloged  prometheus.Counter
	GroupsCataloged prometheus.Counter

	PlansGenerated     prometheus.Counter
	OperationsExecuted *prometheus.CounterVec
	PlansRolledBack    prometheus.Counter

	ProviderRequests *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates a registry with all backend metrics registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ScansStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_started_total",
			Help:      "Number of folder scans started",
		}),
		ScansCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_completed_total",
			Help:      "Number of folder scans finished, by result",
		}, []string{"result"}),
		FilesCataloged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_cataloged_total",
			Help:      "Number of media files written to the catalog",
		}),
		GroupsCataloged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "groups_cataloged_total",
			Help:      "Number of audiobook groups written to the catalog",
		}),
		PlansGenerated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plans_generated_total",
			Help:      "Number of organization plans generated",
		}),
		OperationsExecuted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_executed_total",
			Help:      "Number of plan operations executed, by result",
		}, []string{"result"}),
		PlansRolledBack: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plans_rolled_back_total",
			Help:      "Number of plans rolled back",
		}),
		ProviderRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Number of metadata provider searches, by provider",
		}, []string{"provider"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Number of HTTP requests, by route and status code",
		}, []string{"route", "method", "code"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Handler serves the /metrics endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware instruments every request with a counter and latency
// histogram, labeled by the mux route template.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		m.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
