package notify

import (
	"log/slog"

	"github.com/stubborncoder/vdocs/internal/jobs"
	"github.com/stubborncoder/vdocs/internal/logfields"
	"github.com/stubborncoder/vdocs/internal/runner"
)

// Tracker wraps the job registry so every transition is both recorded and
// published. Publish failures are logged and swallowed; the run itself is
// never affected by a broken broker.
type Tracker struct {
	registry *jobs.Registry
	pub      Publisher
}

// NewTracker wraps a registry with a publisher.
func NewTracker(registry *jobs.Registry, pub Publisher) *Tracker {
	return &Tracker{registry: registry, pub: pub}
}

var _ runner.JobTracker = (*Tracker)(nil)

func (t *Tracker) publish(jobID, status, stage, docID, errMsg string) {
	event := Event{JobID: jobID, Status: status, Stage: stage, DocID: docID, Error: errMsg}
	if job, err := t.registry.Get(jobID); err == nil && job != nil {
		event.UserID = job.UserID
		event.VideoName = job.VideoName
	}
	if err := t.pub.Publish(event); err != nil {
		slog.Warn("job event publish failed", logfields.JobID(jobID), logfields.Error(err))
	}
}

func (t *Tracker) Create(userID, videoName string) (string, error) {
	jobID, err := t.registry.Create(userID, videoName)
	if err != nil {
		return "", err
	}
	t.publish(jobID, jobs.StatusPending, "", "", "")
	return jobID, nil
}

func (t *Tracker) AttachDoc(jobID, docID string) error {
	if err := t.registry.AttachDoc(jobID, docID); err != nil {
		return err
	}
	t.publish(jobID, jobs.StatusProcessing, "", docID, "")
	return nil
}

func (t *Tracker) UpdateStage(jobID, stage string, index, total int) error {
	if err := t.registry.UpdateStage(jobID, stage, index, total); err != nil {
		return err
	}
	t.publish(jobID, jobs.StatusProcessing, stage, "", "")
	return nil
}

func (t *Tracker) MarkComplete(jobID, docID string) error {
	if err := t.registry.MarkComplete(jobID, docID); err != nil {
		return err
	}
	t.publish(jobID, jobs.StatusComplete, "", docID, "")
	return nil
}

func (t *Tracker) MarkError(jobID, message string) error {
	if err := t.registry.MarkError(jobID, message); err != nil {
		return err
	}
	t.publish(jobID, jobs.StatusError, "", "", message)
	return nil
}
