package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"eastviewpta.org/internal/ids"
)

// HTTP metrics shared by every route
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pta_transitions_total",
			Help: "Workflow transitions applied, by entity and transition.",
		},
		[]string{"entity", "transition"},
	)

	registrationRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pta_registration_rejections_total",
			Help: "Event registrations refused, by reason.",
		},
		[]string{"reason"},
	)

	calendarFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calendar_fetch_total",
			Help: "Calendar provider calls, by outcome.",
		},
		[]string{"outcome"},
	)

	initOnce sync.Once
)

// Init registers the metrics in the default registry. Safe to call more
// than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			transitionsTotal, registrationRejections, calendarFetches,
		)
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument records RPS, latency and in-flight requests. The path label is
// the matched chi route pattern so ids never explode label cardinality.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.Method

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		path := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			path = rctx.RoutePattern()
		}
		if path == "" {
			path = CanonicalPath(r.URL.Path)
		}
		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

// CanonicalPath replaces identifier segments with :id and drops the query.
func CanonicalPath(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	if raw == "" || raw == "/" {
		return "/"
	}
	parts := strings.Split(strings.Trim(raw, "/"), "/")
	for i, p := range parts {
		if ids.Valid(p) {
			parts[i] = ":id"
		}
	}
	return "/" + strings.Join(parts, "/")
}

func ObserveTransition(entity, transition string) {
	transitionsTotal.WithLabelValues(entity, transition).Inc()
}

func ObserveRegistrationRejected(reason string) {
	registrationRejections.WithLabelValues(reason).Inc()
}

func ObserveCalendarFetch(outcome string) {
	calendarFetches.WithLabelValues(outcome).Inc()
}

// statusWriter records the response code for the metrics labels.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming handlers working behind the instrumentation.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
