package uxum

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsSet holds the per-router Prometheus instruments. Each router gets
// its own registry so tests can assemble routers independently.
type metricsSet struct {
	registry *prometheus.Registry

	inFlight *prometheus.GaugeVec
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	reqSize  *prometheus.HistogramVec
	respSize *prometheus.HistogramVec
}

var sizeBuckets = prometheus.ExponentialBuckets(256, 4, 8)

func newMetricsSet() *metricsSet {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	requestLabels := []string{"method", "scheme", "status", "route", "handler"}

	return &metricsSet{
		registry: reg,
		inFlight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "http_server_requests_in_flight",
			Help: "Requests currently being served.",
		}, []string{"method", "scheme"}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_server_requests_total",
			Help: "Completed requests.",
		}, requestLabels),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_server_request_duration_seconds",
			Help:    "Request duration.",
			Buckets: prometheus.DefBuckets,
		}, requestLabels),
		reqSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_server_request_size_bytes",
			Help:    "Request body bytes read.",
			Buckets: sizeBuckets,
		}, requestLabels),
		respSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_server_response_size_bytes",
			Help:    "Response body size.",
			Buckets: sizeBuckets,
		}, requestLabels),
	}
}

// countingReader tracks how many request-body bytes the inner stack
// consumed.
type countingReader struct {
	io.ReadCloser
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.ReadCloser.Read(p)
	c.n += int64(n)
	return n, err
}

// handler serves the registry in Prometheus exposition format.
func (m *metricsSet) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// middleware wraps the fully assembled router. In-flight is tracked from
// entry; the remaining observations happen on completion, attributed via
// the handler-name holder filled in by the per-handler tagging layer.
// Routes outside the registry (the exporter itself, probes) simply leave
// the holder empty.
func (m *metricsSet) middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme := "http"
			if r.TLS != nil {
				scheme = "https"
			}

			gauge := m.inFlight.WithLabelValues(r.Method, scheme)
			gauge.Inc()
			defer gauge.Dec()

			// Count bytes actually read rather than trusting Content-Length,
			// which is -1 for chunked requests.
			body := &countingReader{ReadCloser: r.Body}
			if r.Body != nil {
				r.Body = body
			}

			ctx, holder := withHandlerNameHolder(r.Context())
			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(rec, r.WithContext(ctx))

			labels := []string{
				r.Method,
				scheme,
				strconv.Itoa(rec.status),
				holder.pattern,
				holder.name,
			}
			m.requests.WithLabelValues(labels...).Inc()
			m.duration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
			m.reqSize.WithLabelValues(labels...).Observe(float64(body.n))
			m.respSize.WithLabelValues(labels...).Observe(float64(rec.size))
		})
	}
}
