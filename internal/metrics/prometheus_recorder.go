package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once          sync.Once
	stageDuration *prom.HistogramVec
	runDuration   *prom.HistogramVec
	runOutcome    *prom.CounterVec
	eventsEmitted *prom.CounterVec
	activeRuns    prom.Gauge
	blobGCRemoved prom.Counter
	blobGCTime    prom.Histogram
}

// NewPrometheusRecorder constructs and registers the metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "vdocs",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual pipeline stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.runDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "vdocs",
			Name:      "run_duration_seconds",
			Help:      "Total run duration by runner flavor",
			Buckets:   prom.DefBuckets,
		}, []string{"flavor"})
		pr.runOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "vdocs",
			Name:      "run_outcomes_total",
			Help:      "Run outcomes by runner flavor and result",
		}, []string{"flavor", "result"})
		pr.eventsEmitted = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "vdocs",
			Name:      "events_emitted_total",
			Help:      "Progress events emitted by type",
		}, []string{"event_type"})
		pr.activeRuns = prom.NewGauge(prom.GaugeOpts{
			Namespace: "vdocs",
			Name:      "active_runs",
			Help:      "Currently active runs",
		})
		pr.blobGCRemoved = prom.NewCounter(prom.CounterOpts{
			Namespace: "vdocs",
			Name:      "blob_gc_removed_total",
			Help:      "Blobs removed by garbage collection",
		})
		pr.blobGCTime = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "vdocs",
			Name:      "blob_gc_duration_seconds",
			Help:      "Duration of blob garbage collection sweeps",
			Buckets:   prom.DefBuckets,
		})
		reg.MustRegister(pr.stageDuration, pr.runDuration, pr.runOutcome,
			pr.eventsEmitted, pr.activeRuns, pr.blobGCRemoved, pr.blobGCTime)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveRunDuration(flavor string, d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.WithLabelValues(flavor).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRunOutcome(flavor string, result ResultLabel) {
	if p == nil || p.runOutcome == nil {
		return
	}
	p.runOutcome.WithLabelValues(flavor, string(result)).Inc()
}

func (p *PrometheusRecorder) IncEventsEmitted(eventType string) {
	if p == nil || p.eventsEmitted == nil {
		return
	}
	p.eventsEmitted.WithLabelValues(eventType).Inc()
}

func (p *PrometheusRecorder) SetActiveRuns(n int) {
	if p == nil || p.activeRuns == nil {
		return
	}
	p.activeRuns.Set(float64(n))
}

func (p *PrometheusRecorder) ObserveBlobGC(removed int, d time.Duration) {
	if p == nil || p.blobGCRemoved == nil {
		return
	}
	p.blobGCRemoved.Add(float64(removed))
	p.blobGCTime.Observe(d.Seconds())
}
