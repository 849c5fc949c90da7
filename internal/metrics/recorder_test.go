package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopRecorderIsSafe(t *testing.T) {
	var rec Recorder = NoopRecorder{}
	rec.ObserveStageDuration("analyze", time.Second)
	rec.ObserveRunDuration("video", time.Second)
	rec.IncRunOutcome("video", ResultSuccess)
	rec.IncEventsEmitted("token")
	rec.SetActiveRuns(3)
	rec.ObserveBlobGC(5, time.Millisecond)
}

func TestPrometheusRecorder_RecordsAndGathers(t *testing.T) {
	reg := prom.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.ObserveStageDuration("analyze", 2*time.Second)
	rec.ObserveRunDuration("video", 5*time.Second)
	rec.IncRunOutcome("video", ResultSuccess)
	rec.IncRunOutcome("video", ResultError)
	rec.IncEventsEmitted("token")
	rec.IncEventsEmitted("token")
	rec.SetActiveRuns(2)
	rec.ObserveBlobGC(7, 100*time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	for _, want := range []string{
		"vdocs_stage_duration_seconds",
		"vdocs_run_duration_seconds",
		"vdocs_run_outcomes_total",
		"vdocs_events_emitted_total",
		"vdocs_active_runs",
		"vdocs_blob_gc_removed_total",
		"vdocs_blob_gc_duration_seconds",
	} {
		assert.True(t, names[want], "missing metric family %s", want)
	}
}

func TestPrometheusRecorder_NilReceiverIsSafe(t *testing.T) {
	var rec *PrometheusRecorder
	rec.ObserveStageDuration("analyze", time.Second)
	rec.ObserveRunDuration("video", time.Second)
	rec.IncRunOutcome("video", ResultCanceled)
	rec.IncEventsEmitted("error")
	rec.SetActiveRuns(0)
	rec.ObserveBlobGC(0, 0)
}
