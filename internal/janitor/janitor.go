// Package janitor runs the scheduled housekeeping sweeps: expiring
// terminal jobs out of the registry, collecting unreferenced screenshot
// blobs, and trimming old document version snapshots.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/stubborncoder/vdocs/internal/blobstore"
	"github.com/stubborncoder/vdocs/internal/config"
	"github.com/stubborncoder/vdocs/internal/docstore"
	"github.com/stubborncoder/vdocs/internal/docversion"
	vderrors "github.com/stubborncoder/vdocs/internal/errors"
	"github.com/stubborncoder/vdocs/internal/jobs"
	"github.com/stubborncoder/vdocs/internal/lock"
	"github.com/stubborncoder/vdocs/internal/logfields"
	"github.com/stubborncoder/vdocs/internal/metrics"
)

// SweepReport summarizes one housekeeping pass.
type SweepReport struct {
	JobsRemoved  int
	BlobsRemoved int
	DocsSwept    int
	Errors       []error
}

// Janitor owns the gocron schedule and the sweep logic.
type Janitor struct {
	scheduler gocron.Scheduler
	registry  *jobs.Registry
	usersDir  string
	cfg       config.JanitorConfig
	recorder  metrics.Recorder
}

// New creates a janitor. recorder may be nil.
func New(registry *jobs.Registry, usersDir string, cfg config.JanitorConfig, recorder metrics.Recorder) (*Janitor, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Janitor{
		scheduler: scheduler,
		registry:  registry,
		usersDir:  usersDir,
		cfg:       cfg,
		recorder:  recorder,
	}, nil
}

// Start registers the periodic sweep and begins the schedule.
func (j *Janitor) Start(ctx context.Context) error {
	interval := j.cfg.Interval
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	_, err := j.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			report := j.Sweep(ctx)
			slog.Info("janitor sweep finished",
				slog.Int("jobs_removed", report.JobsRemoved),
				slog.Int("blobs_removed", report.BlobsRemoved),
				slog.Int("docs_swept", report.DocsSwept),
				slog.Int("errors", len(report.Errors)))
		}),
		gocron.WithName("janitor-sweep"),
	)
	if err != nil {
		return fmt.Errorf("failed to create sweep job: %w", err)
	}

	slog.Info("starting janitor", slog.Duration("interval", interval))
	j.scheduler.Start()
	return nil
}

// Stop gracefully shuts down the schedule.
func (j *Janitor) Stop() error {
	slog.Info("stopping janitor")
	return j.scheduler.Shutdown()
}

// Sweep runs one full housekeeping pass immediately.
func (j *Janitor) Sweep(ctx context.Context) *SweepReport {
	report := &SweepReport{}

	if j.registry != nil && j.cfg.JobMaxAge > 0 {
		removed, err := j.registry.GC(time.Now().Add(-j.cfg.JobMaxAge))
		if err != nil {
			report.Errors = append(report.Errors, err)
		} else {
			report.JobsRemoved = removed
		}
	}

	entries, err := os.ReadDir(j.usersDir)
	if err != nil {
		if !os.IsNotExist(err) {
			report.Errors = append(report.Errors, err)
		}
		return report
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if ctx.Err() != nil {
			return report
		}
		j.sweepUser(entry.Name(), report)
	}
	return report
}

// sweepUser collects blobs and trims versions for every document one user
// owns. Per-document failures are recorded and the sweep moves on.
func (j *Janitor) sweepUser(userID string, report *SweepReport) {
	docs := docstore.New(userID, filepath.Join(j.usersDir, userID))
	ids, err := docs.ListDocs()
	if err != nil {
		report.Errors = append(report.Errors, err)
		return
	}

	for _, docID := range ids {
		// An active run holds the document's advisory lock; sweeping under
		// it could drop blobs and history entries the run still references.
		docLock, err := lock.Acquire(docs.DocDir(docID))
		if err != nil {
			if vderrors.IsConflict(err) {
				slog.Debug("skipping locked document",
					logfields.UserID(userID), logfields.DocID(docID))
				continue
			}
			report.Errors = append(report.Errors, err)
			continue
		}
		j.sweepDoc(docs, docID, report)
		_ = docLock.Unlock()
	}
}

// sweepDoc runs blob GC and version compaction for one document. The
// caller holds the document's lock.
func (j *Janitor) sweepDoc(docs *docstore.Store, docID string, report *SweepReport) {
	start := time.Now()

	removed, err := blobstore.New(docs.DocDir(docID)).GC(false)
	if err != nil {
		report.Errors = append(report.Errors, err)
		return
	}
	report.BlobsRemoved += len(removed)
	j.recorder.ObserveBlobGC(len(removed), time.Since(start))

	if j.cfg.KeepVersions > 0 {
		if err := docversion.New(docs, docID).GC(j.cfg.KeepVersions); err != nil {
			report.Errors = append(report.Errors, err)
			return
		}
	}

	report.DocsSwept++
	if len(removed) > 0 {
		slog.Debug("blob sweep removed unreferenced screenshots",
			logfields.UserID(docs.UserID()),
			logfields.DocID(docID),
			slog.Int("removed", len(removed)))
	}
}
