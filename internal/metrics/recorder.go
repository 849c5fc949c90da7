// Package metrics provides observability hooks for runner and store
// activity. Components receive a Recorder through dependency injection;
// the default NoopRecorder keeps metrics optional with zero overhead, and
// the Prometheus implementation activates when the server is configured
// for it.
package metrics

import "time"

// ResultLabel enumerates run result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultError    ResultLabel = "error"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder defines observability hooks for runs, stages, and stores.
// All methods must be safe on the zero NoopRecorder so injection stays
// optional.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveRunDuration(flavor string, d time.Duration)
	IncRunOutcome(flavor string, result ResultLabel)
	IncEventsEmitted(eventType string)
	SetActiveRuns(n int)
	ObserveBlobGC(removed int, d time.Duration)
}

// NoopRecorder is the default Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveRunDuration(string, time.Duration)   {}
func (NoopRecorder) IncRunOutcome(string, ResultLabel)          {}
func (NoopRecorder) IncEventsEmitted(string)                    {}
func (NoopRecorder) SetActiveRuns(int)                          {}
func (NoopRecorder) ObserveBlobGC(int, time.Duration)           {}
