package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// routeSimplifier collapses a concrete request path down to its route
// template for metric cardinality, e.g. "/runs?job_id=7" -> "/runs". This
// is a small local stand-in for the reference service's simplifypath
// helper: that helper lives in a sibling package this module does not
// depend on, so the route-simplification idea is reimplemented directly
// against this service's own route set instead.
type routeSimplifier struct {
	routes []string
}

func newControlPlaneSimplifier() *routeSimplifier {
	return &routeSimplifier{routes: []string{"/jobs/register", "/jobs/results", "/jobs", "/runs", "/health"}}
}

func (s *routeSimplifier) Simplify(path string) string {
	for _, route := range s.routes {
		if strings.HasPrefix(path, route) {
			return route
		}
	}
	return "unmatched"
}

var (
	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "simcontrol",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests to the control plane, labeled by route and method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method", "status"})

	responseSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "simcontrol",
		Name:      "http_response_size_bytes",
		Help:      "Size of HTTP responses from the control plane, labeled by route.",
		Buckets:   prometheus.ExponentialBuckets(128, 2, 10),
	}, []string{"route"})
)

// RegisterMetrics registers the package's collectors with reg. Call once at
// process start.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(requestDuration, responseSize)
}

type countingResponseWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *countingResponseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *countingResponseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// TraceHandler wraps next with route-labeled duration/size instrumentation.
func TraceHandler(simplifier *routeSimplifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		cw := &countingResponseWriter{ResponseWriter: w}
		next.ServeHTTP(cw, r)
		route := simplifier.Simplify(r.URL.Path)
		status := cw.status
		if status == 0 {
			status = http.StatusOK
		}
		requestDuration.WithLabelValues(route, r.Method, http.StatusText(status)).Observe(time.Since(start).Seconds())
		responseSize.WithLabelValues(route).Observe(float64(cw.bytes))
	})
}

// NewControlPlaneSimplifier is exported for cmd/controlplaned wiring.
func NewControlPlaneSimplifier() *routeSimplifier { return newControlPlaneSimplifier() }

const headerRequestID = "X-Request-Id"

// WithRequestID stamps every request with a correlation id, reusing one
// supplied by the caller or minting a fresh one. The id is purely a logging
// field -- it carries no domain meaning and is never persisted.
func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r)
	})
}
