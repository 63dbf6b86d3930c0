package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// Labels are the chi route pattern (never the raw path), method and status.
var routeLabels = []string{"path", "method", "status"}

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oxpilot",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served",
		},
		routeLabels,
	)

	// For streamed generations this covers the whole stream.
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "oxpilot",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Time from request to the last byte of the response",
			Buckets:   []float64{.005, .025, .1, .5, 1, 2.5, 5, 15, 30, 60, 120},
		},
		routeLabels,
	)

	// Prefill plus the first sampled token for generation routes.
	httpFirstByte = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "oxpilot",
			Subsystem: "http",
			Name:      "time_to_first_byte_seconds",
			Help:      "Time from request to the first response byte",
			Buckets:   []float64{.001, .005, .025, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"path"},
	)

	httpResponseBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oxpilot",
			Subsystem: "http",
			Name:      "response_bytes_total",
			Help:      "Response body bytes written before compression",
		},
		[]string{"path"},
	)

	httpInflight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "oxpilot",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Requests currently being served, streams included",
		},
		[]string{"method"},
	)

	backpressureTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oxpilot",
			Subsystem: "http",
			Name:      "backpressure_total",
			Help:      "Requests rejected with 429, by admission reason",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, httpFirstByte, httpResponseBytes, httpInflight, backpressureTotal)
}

// responseRecorder notes the status, the body size and when the first byte
// went out. It forwards Flush so SSE and NDJSON frames are not buffered.
type responseRecorder struct {
	http.ResponseWriter
	status    int
	bytes     int
	firstByte time.Time
}

func (rr *responseRecorder) mark() {
	if rr.firstByte.IsZero() {
		rr.firstByte = time.Now()
	}
}

func (rr *responseRecorder) WriteHeader(code int) {
	rr.status = code
	rr.mark()
	rr.ResponseWriter.WriteHeader(code)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	rr.mark()
	n, err := rr.ResponseWriter.Write(b)
	rr.bytes += n
	return n, err
}

func (rr *responseRecorder) Flush() {
	if f, ok := rr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rr *responseRecorder) Unwrap() http.ResponseWriter { return rr.ResponseWriter }

// MetricsMiddleware instruments requests for Prometheus.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inflight := httpInflight.WithLabelValues(r.Method)
		inflight.Inc()
		defer inflight.Dec()

		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		observe(r, rec, start)
	})
}

func observe(r *http.Request, rec *responseRecorder, start time.Time) {
	// the route pattern is only known once chi has routed the request
	path := routePatternOrPath(r)
	status := strconv.Itoa(rec.status)
	httpRequestsTotal.WithLabelValues(path, r.Method, status).Inc()
	httpRequestDuration.WithLabelValues(path, r.Method, status).Observe(time.Since(start).Seconds())
	if !rec.firstByte.IsZero() {
		httpFirstByte.WithLabelValues(path).Observe(rec.firstByte.Sub(start).Seconds())
	}
	httpResponseBytes.WithLabelValues(path).Add(float64(rec.bytes))
}

// routePatternOrPath returns the chi route pattern if available, otherwise
// falls back to URL path.
func routePatternOrPath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// IncrementBackpressure counts a 429 by admission reason.
func IncrementBackpressure(reason string) {
	if reason == "" {
		reason = "unspecified"
	}
	backpressureTotal.WithLabelValues(reason).Inc()
}
