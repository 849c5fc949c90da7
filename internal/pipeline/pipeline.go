// Package pipeline executes an ordered sequence of named stages over a
// shared checkpointed state. The executor is synchronous: stages run on the
// calling goroutine and an update callback fires after each stage, which is
// what the runners bridge to their event streams.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/stubborncoder/vdocs/internal/agent"
	vderrors "github.com/stubborncoder/vdocs/internal/errors"
	"github.com/stubborncoder/vdocs/internal/observability"
)

// State is the mutable state threaded through the stages of one run. Stages
// read what earlier stages wrote; the executor checkpoints it after every
// stage.
type State struct {
	UserID    string
	VideoPath string
	VideoName string
	Languages []string

	DocID          string
	DocDir         string
	ScreenshotsDir string

	Analysis    *agent.VideoAnalysis
	Keyframes   []agent.Keyframe
	Screenshots []string
	Docs        map[string]string
}

// Stage is one named unit with a fixed position, a declared timeout, and a
// key/value summary for progress reporting.
type Stage interface {
	Name() string
	Timeout() time.Duration
	Run(ctx context.Context, state *State) (map[string]any, error)
}

// Update is delivered after a stage completes.
type Update struct {
	StageName string
	Index     int
	Total     int
	Details   map[string]any
}

// UpdateFunc receives updates on the executor's goroutine.
type UpdateFunc func(Update)

// CheckpointFunc persists intermediate state between stages. A checkpoint
// failure aborts the run; stages already checkpointed stay on disk.
type CheckpointFunc func(*State) error

// Registry maps stage names to stages so pipeline compositions can be
// declared by name.
type Registry struct {
	stages map[string]Stage
	order  []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{stages: map[string]Stage{}}
}

// Register adds a stage. Re-registering a name replaces the stage.
func (r *Registry) Register(stage Stage) {
	if _, exists := r.stages[stage.Name()]; !exists {
		r.order = append(r.order, stage.Name())
	}
	r.stages[stage.Name()] = stage
}

// Build resolves names into an ordered stage list.
func (r *Registry) Build(names ...string) ([]Stage, error) {
	stages := make([]Stage, 0, len(names))
	for _, name := range names {
		stage, ok := r.stages[name]
		if !ok {
			return nil, vderrors.ValidationError("unknown pipeline stage").WithContext("stage", name)
		}
		stages = append(stages, stage)
	}
	return stages, nil
}

// Names returns the registered stage names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Executor runs stages in a fixed order.
type Executor struct {
	stages     []Stage
	checkpoint CheckpointFunc
}

// NewExecutor creates an executor over a fixed stage order.
func NewExecutor(stages []Stage) *Executor {
	return &Executor{stages: stages}
}

// WithCheckpoint sets the checkpoint callback.
func (e *Executor) WithCheckpoint(fn CheckpointFunc) *Executor {
	e.checkpoint = fn
	return e
}

// StageNames returns the executor's stage order.
func (e *Executor) StageNames() []string {
	names := make([]string, len(e.stages))
	for i, stage := range e.stages {
		names[i] = stage.Name()
	}
	return names
}

// Run executes every stage in order. onUpdate fires after each successful
// stage. On failure the returned error names the stage; work already
// checkpointed remains on disk.
func (e *Executor) Run(ctx context.Context, state *State, onUpdate UpdateFunc) error {
	total := len(e.stages)
	for i, stage := range e.stages {
		if err := ctx.Err(); err != nil {
			return vderrors.Wrap(err, vderrors.CategoryInternal, vderrors.SeverityError, "pipeline cancelled").
				WithContext("stage", stage.Name())
		}

		stageCtx := observability.WithStage(ctx, stage.Name())
		observability.DebugContext(stageCtx, "stage starting",
			slog.Int("index", i), slog.Int("total", total))

		details, err := e.runStage(stageCtx, stage, state)
		if err != nil {
			return stageError(stage.Name(), err)
		}

		if e.checkpoint != nil {
			if err := e.checkpoint(state); err != nil {
				return stageError(stage.Name(), err)
			}
		}
		if onUpdate != nil {
			onUpdate(Update{StageName: stage.Name(), Index: i, Total: total, Details: details})
		}
	}
	return nil
}

func (e *Executor) runStage(ctx context.Context, stage Stage, state *State) (map[string]any, error) {
	if timeout := stage.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return stage.Run(ctx, state)
}

// stageError attaches the stage name to a failure, preserving the original
// category when the error is already structured.
func stageError(stage string, err error) error {
	var ve *vderrors.VDocsError
	if errors.As(err, &ve) {
		return ve.WithContext("stage", stage)
	}
	return vderrors.Wrap(err, vderrors.CategoryInternal, vderrors.SeverityError, "stage "+stage+" failed").
		WithContext("stage", stage)
}
