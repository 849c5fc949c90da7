package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stubborncoder/vdocs/internal/jobs"
)

type capturePublisher struct {
	events []Event
	err    error
}

func (p *capturePublisher) Publish(event Event) error {
	p.events = append(p.events, event)
	return p.err
}

func (p *capturePublisher) Close() error { return nil }

func TestTracker_PublishesLifecycle(t *testing.T) {
	registry, err := jobs.Open(":memory:")
	require.NoError(t, err)
	defer registry.Close()

	pub := &capturePublisher{}
	tracker := NewTracker(registry, pub)

	jobID, err := tracker.Create("alice", "install.mp4")
	require.NoError(t, err)
	require.NoError(t, tracker.AttachDoc(jobID, "install"))
	require.NoError(t, tracker.UpdateStage(jobID, "analyze", 0, 3))
	require.NoError(t, tracker.MarkComplete(jobID, "install"))

	require.Len(t, pub.events, 4)
	assert.Equal(t, jobs.StatusPending, pub.events[0].Status)
	assert.Equal(t, "alice", pub.events[0].UserID)
	assert.Equal(t, "install.mp4", pub.events[0].VideoName)
	assert.Equal(t, "analyze", pub.events[2].Stage)
	assert.Equal(t, jobs.StatusComplete, pub.events[3].Status)
	assert.Equal(t, "install", pub.events[3].DocID)

	// The registry stays authoritative regardless of publishing.
	job, err := registry.Get(jobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusComplete, job.Status)
}

func TestTracker_ErrorTransition(t *testing.T) {
	registry, err := jobs.Open(":memory:")
	require.NoError(t, err)
	defer registry.Close()

	pub := &capturePublisher{}
	tracker := NewTracker(registry, pub)

	jobID, err := tracker.Create("alice", "broken.mp4")
	require.NoError(t, err)
	require.NoError(t, tracker.MarkError(jobID, "ffmpeg exploded"))

	last := pub.events[len(pub.events)-1]
	assert.Equal(t, jobs.StatusError, last.Status)
	assert.Equal(t, "ffmpeg exploded", last.Error)
}

func TestTracker_PublishFailureDoesNotFailRun(t *testing.T) {
	registry, err := jobs.Open(":memory:")
	require.NoError(t, err)
	defer registry.Close()

	pub := &capturePublisher{err: assert.AnError}
	tracker := NewTracker(registry, pub)

	jobID, err := tracker.Create("alice", "install.mp4")
	require.NoError(t, err)
	require.NoError(t, tracker.MarkComplete(jobID, "install"))
}
