package runner

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/stubborncoder/vdocs/internal/agent"
	"github.com/stubborncoder/vdocs/internal/docstore"
	"github.com/stubborncoder/vdocs/internal/docversion"
	vderrors "github.com/stubborncoder/vdocs/internal/errors"
	"github.com/stubborncoder/vdocs/internal/events"
	"github.com/stubborncoder/vdocs/internal/lock"
	"github.com/stubborncoder/vdocs/internal/observability"
	"github.com/stubborncoder/vdocs/internal/pipeline"
)

// JobTracker records runner invocations so background work can be surfaced
// later. *jobs.Registry satisfies it; a nil tracker disables recording.
type JobTracker interface {
	Create(userID, videoName string) (string, error)
	AttachDoc(jobID, docID string) error
	UpdateStage(jobID, stage string, index, total int) error
	MarkComplete(jobID, docID string) error
	MarkError(jobID, message string) error
}

// PipelineRunner drives the fixed video-documentation pipeline to
// completion. No HITL, no follow-up messages.
type PipelineRunner struct {
	userID    string
	docs      *docstore.Store
	analyzer  agent.VideoAnalyzer
	extractor pipeline.FrameExtractor
	tracker   JobTracker

	stageTimeout time.Duration
	queueSize    int
}

// NewPipelineRunner creates a runner for one user. extractor and tracker
// may be nil.
func NewPipelineRunner(userID string, docs *docstore.Store, analyzer agent.VideoAnalyzer, extractor pipeline.FrameExtractor, tracker JobTracker, stageTimeout time.Duration, queueSize int) *PipelineRunner {
	return &PipelineRunner{
		userID:       userID,
		docs:         docs,
		analyzer:     analyzer,
		extractor:    extractor,
		tracker:      tracker,
		stageTimeout: stageTimeout,
		queueSize:    queueSize,
	}
}

// Run processes one video. The returned stream ends with Complete or Error.
func (r *PipelineRunner) Run(ctx context.Context, videoPath string) *Stream {
	return startRun(ctx, r.queueSize, func(ctx context.Context, emit EmitFunc) {
		r.run(ctx, videoPath, emit)
	})
}

func (r *PipelineRunner) run(ctx context.Context, videoPath string, emit EmitFunc) {
	ctx = observability.WithUserID(ctx, r.userID)
	videoName := filepath.Base(videoPath)

	jobID := ""
	if r.tracker != nil {
		id, err := r.tracker.Create(r.userID, videoName)
		if err != nil {
			emit(events.Error{ErrorMessage: err.Error(), Timestamp: events.Now()})
			return
		}
		jobID = id
		ctx = observability.WithJobID(ctx, jobID)
	}

	fail := func(stage string, err error) {
		observability.ErrorContext(ctx, "pipeline run failed", slog.String("error", err.Error()))
		if jobID != "" {
			_ = r.tracker.MarkError(jobID, err.Error())
		}
		emit(events.Error{
			ErrorMessage: err.Error(),
			StageName:    stage,
			Recoverable:  false,
			Timestamp:    events.Now(),
		})
	}

	// Reprocessing an existing document auto-patches the current state
	// before anything is overwritten.
	docID, existing := r.docs.FindExisting(videoName)
	if !existing {
		_, id, err := r.docs.CreateDoc(videoName, docstore.ConflictReuse)
		if err != nil {
			fail("", err)
			return
		}
		docID = id
	}
	ctx = observability.WithDocID(ctx, docID)

	docDir := r.docs.DocDir(docID)
	docLock, err := lock.Acquire(docDir)
	if err != nil {
		fail("", err)
		return
	}
	defer func() { _ = docLock.Unlock() }()

	if existing {
		if _, err := docversion.New(r.docs, docID).AutoPatch("auto-save before reprocessing " + videoName); err != nil {
			fail("", err)
			return
		}
	}

	if jobID != "" {
		_ = r.tracker.AttachDoc(jobID, docID)
	}

	state := &pipeline.State{
		UserID:         r.userID,
		VideoPath:      videoPath,
		VideoName:      videoName,
		DocID:          docID,
		DocDir:         docDir,
		ScreenshotsDir: r.docs.ScreenshotsDir(docID),
	}

	stages := pipeline.VideoStages(r.analyzer, r.extractor, r.docs, r.stageTimeout)
	executor := pipeline.NewExecutor(stages)
	names := executor.StageNames()
	total := len(names)

	// The executor only reports at stage completion, so the first
	// StageStarted goes out before it runs.
	emit(events.StageStarted{StageName: names[0], Index: 0, Total: total, Timestamp: events.Now()})
	if jobID != "" {
		_ = r.tracker.UpdateStage(jobID, names[0], 0, total)
	}

	err = executor.Run(ctx, state, func(u pipeline.Update) {
		emit(events.StageCompleted{
			StageName: u.StageName,
			Index:     u.Index,
			Total:     u.Total,
			Details:   u.Details,
			Timestamp: events.Now(),
		})
		if next := u.Index + 1; next < u.Total {
			emit(events.StageStarted{StageName: names[next], Index: next, Total: u.Total, Timestamp: events.Now()})
			if jobID != "" {
				_ = r.tracker.UpdateStage(jobID, names[next], next, u.Total)
			}
		}
	})
	if err != nil {
		fail(stageOf(err), err)
		return
	}

	if jobID != "" {
		_ = r.tracker.MarkComplete(jobID, docID)
	}
	emit(events.Complete{
		Result: map[string]any{
			"doc_id":      docID,
			"doc_path":    docDir,
			"screenshots": state.Screenshots,
			"output_dir":  r.docs.DocsDir(),
		},
		Message:   "video processed",
		Timestamp: events.Now(),
	})
}

// stageOf recovers the failing stage name a structured error carries.
func stageOf(err error) string {
	var ve *vderrors.VDocsError
	if !errors.As(err, &ve) {
		return ""
	}
	stage, _ := ve.Context["stage"].(string)
	return stage
}
