package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// UnmatchedEndpoint labels requests that never reached a route, such as 404s
// and CORS preflights answered by the middleware chain.
const UnmatchedEndpoint = "unmatched"

// Recorder is what the HTTP stages need from the metrics backend.
type Recorder interface {
	IncNumRequests(endpoint, method string, statusCode int)
	ObserveRequestDuration(endpoint, method string, duration float64)
}

// Service holds the HTTP request collectors on a private registry.
type Service struct {
	registry *prometheus.Registry

	numRequestsTotal *prometheus.CounterVec
	requestsDuration *prometheus.SummaryVec
}

func NewService() *Service {
	s := &Service{registry: prometheus.NewRegistry()}

	s.numRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "method", "status_code"},
	)
	s.requestsDuration = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "http_request_duration_seconds",
			Help:       "Duration of HTTP requests in seconds",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"endpoint", "method"},
	)

	s.registry.MustRegister(
		s.numRequestsTotal,
		s.requestsDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return s
}

func (s *Service) Registry() *prometheus.Registry {
	return s.registry
}

func (s *Service) IncNumRequests(endpoint, method string, statusCode int) {
	s.numRequestsTotal.WithLabelValues(endpoint, method, strconv.Itoa(statusCode)).Inc()
}

func (s *Service) ObserveRequestDuration(endpoint, method string, duration float64) {
	s.requestsDuration.WithLabelValues(endpoint, method).Observe(duration)
}

// Handler serves the registry in the Prometheus text format.
func (s *Service) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// Middleware records count and latency per route pattern. It must be
// installed on a chi router so the matched pattern is known after dispatch.
func Middleware(rec Recorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()
			rw := &responseWriter{ResponseWriter: w}

			next.ServeHTTP(rw, r)

			endpoint := UnmatchedEndpoint
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					endpoint = pattern
				}
			}
			if rw.statusCode == 0 {
				rw.statusCode = http.StatusOK
			}

			rec.ObserveRequestDuration(endpoint, r.Method, time.Since(startTime).Seconds())
			rec.IncNumRequests(endpoint, r.Method, rw.statusCode)
		})
	}
}

// responseWriter captures the status code written by inner handlers.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.statusCode == 0 {
		rw.statusCode = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.statusCode == 0 {
		rw.statusCode = http.StatusOK
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
