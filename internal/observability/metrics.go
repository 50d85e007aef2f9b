package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequestsTotal   *prometheus.CounterVec
	httpLatencySeconds  *prometheus.HistogramVec
	httpErrorsTotal     *prometheus.CounterVec
	participationEdits  *prometheus.CounterVec
	certificatesTotal   *prometheus.CounterVec
	certificateLatency  *prometheus.HistogramVec
	templateRejections  *prometheus.CounterVec
	lookupCacheRequests *prometheus.CounterVec
	feedSubscribers     prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		participationEdits = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "participation_edits_total",
			Help: "Participation edits reconciled, by outcome.",
		}, []string{"outcome"})

		certificatesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "certificates_generated_total",
			Help: "Certificate slides generated, by template kind.",
		}, []string{"kind"})

		certificateLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "certificate_generation_seconds",
			Help:    "Time spent building a certificate deck.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"kind"})

		templateRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "certificate_template_rejections_total",
			Help: "Uploaded certificate templates rejected, by reason.",
		}, []string{"reason"})

		lookupCacheRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lookup_cache_requests_total",
			Help: "Lookup cache requests, by resource and result.",
		}, []string{"resource", "result"})

		feedSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "participation_feed_subscribers",
			Help: "Open websocket subscriptions to participation feeds.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			participationEdits,
			certificatesTotal,
			certificateLatency,
			templateRejections,
			lookupCacheRequests,
			feedSubscribers,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// ParticipationEdits counts reconciled edits by outcome (upserted, deleted, rejected).
func ParticipationEdits() *prometheus.CounterVec {
	RegisterMetrics()
	return participationEdits
}

// CertificatesGenerated counts generated certificate slides.
func CertificatesGenerated() *prometheus.CounterVec {
	RegisterMetrics()
	return certificatesTotal
}

// CertificateLatency exposes the deck generation histogram.
func CertificateLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return certificateLatency
}

// TemplateRejections counts rejected template uploads.
func TemplateRejections() *prometheus.CounterVec {
	RegisterMetrics()
	return templateRejections
}

// LookupCacheRequests counts lookup cache hits and misses.
func LookupCacheRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return lookupCacheRequests
}

// FeedSubscribers tracks open participation feed subscriptions.
func FeedSubscribers() prometheus.Gauge {
	RegisterMetrics()
	return feedSubscribers
}
