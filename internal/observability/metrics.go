package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "radar"

// Metrics holds the Prometheus counters, histograms, and gauges for the renderer.
type Metrics struct {
	RendersTotal  *prometheus.CounterVec   // labels: format={jpeg,svg}, outcome={success,error}
	StageDuration *prometheus.HistogramVec // labels: stage={fetch,decode,contour,compose,rasterize}

	// Upstream metrics.
	UpstreamRequests *prometheus.CounterVec   // labels: endpoint={observations,rainarea}, outcome={success,error}
	UpstreamDuration *prometheus.HistogramVec // labels: endpoint

	// Rasterizer metrics.
	FrameCache        *prometheus.CounterVec // labels: result={hit,miss}
	ChromeTabsIdle    prometheus.Gauge
	ChromeTabsRecycle prometheus.Counter

	// Publisher metrics.
	FramesPublished prometheus.Counter
	PublishErrors   prometheus.Counter
}

// NewMetrics creates and registers all renderer metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates all renderer metrics and registers them
// with reg. One-shot tools pass a fresh prometheus.NewRegistry().
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RendersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renders_total",
			Help:      "Frame render requests by output format and outcome.",
		}, []string{"format", "outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each render stage.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"stage"}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Upstream API requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_duration_seconds",
			Help:      "Upstream API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"endpoint"}),
		FrameCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_cache_total",
			Help:      "Rasterized frame cache lookups by result.",
		}, []string{"result"}),
		ChromeTabsIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chrome_tabs_idle",
			Help:      "Headless browser tabs waiting in the pool.",
		}),
		ChromeTabsRecycle: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chrome_tabs_recycled_total",
			Help:      "Browser tabs discarded after a failed health check or render.",
		}),
		FramesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_published_total",
			Help:      "Frame rendered events written to Kafka.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Frame rendered events that could not be written.",
		}),
	}

	reg.MustRegister(
		m.RendersTotal,
		m.StageDuration,
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.FrameCache,
		m.ChromeTabsIdle,
		m.ChromeTabsRecycle,
		m.FramesPublished,
		m.PublishErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RendersTotal:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "renders_total"}, []string{"format", "outcome"}),
		StageDuration:     prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "stage_duration_seconds"}, []string{"stage"}),
		UpstreamRequests:  prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "upstream_requests_total"}, []string{"endpoint", "outcome"}),
		UpstreamDuration:  prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "upstream_duration_seconds"}, []string{"endpoint"}),
		FrameCache:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "frame_cache_total"}, []string{"result"}),
		ChromeTabsIdle:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "chrome_tabs_idle"}),
		ChromeTabsRecycle: prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "chrome_tabs_recycled_total"}),
		FramesPublished:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "frames_published_total"}),
		PublishErrors:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "publish_errors_total"}),
	}
}
