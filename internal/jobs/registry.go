// Package jobs persists runner invocations in SQLite so adapters can
// surface notifications for background work that outlives a session.
package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	vderrors "github.com/stubborncoder/vdocs/internal/errors"
)

// Status values of a job.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusComplete   = "complete"
	StatusError      = "error"
)

// Job is one persistent runner invocation record.
type Job struct {
	ID           string     `json:"job_id"`
	UserID       string     `json:"user_id"`
	VideoName    string     `json:"video_name"`
	DocID        string     `json:"doc_id,omitempty"`
	Status       string     `json:"status"`
	CurrentStage string     `json:"current_stage,omitempty"`
	StageIndex   int        `json:"stage_index"`
	TotalStages  int        `json:"total_stages"`
	Error        string     `json:"error,omitempty"`
	Seen         bool       `json:"seen"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Terminal reports whether the job reached a final status.
func (j *Job) Terminal() bool {
	return j.Status == StatusComplete || j.Status == StatusError
}

// Registry is the SQLite-backed job table. Writes take short immediate
// transactions.
type Registry struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates or opens a registry. Use ":memory:" for tests.
func Open(dbPath string) (*Registry, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, vderrors.IOError("open job registry", err)
	}

	r := &Registry{db: db}
	if err := r.initialize(); err != nil {
		_ = db.Close()
		return nil, vderrors.IOError("initialize job registry schema", err)
	}
	return r, nil
}

// Close closes the underlying database.
func (r *Registry) Close() error { return r.db.Close() }

func (r *Registry) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		job_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		video_name TEXT NOT NULL,
		doc_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		current_stage TEXT NOT NULL DEFAULT '',
		stage_index INTEGER NOT NULL DEFAULT 0,
		total_stages INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		seen INTEGER NOT NULL DEFAULT 0,
		started_at INTEGER NOT NULL,
		completed_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_user_status ON jobs(user_id, status);
	CREATE INDEX IF NOT EXISTS idx_jobs_user_seen ON jobs(user_id, seen, started_at);
	`
	_, err := r.db.Exec(schema)
	return err
}

// Create inserts a pending job and returns its id.
func (r *Registry) Create(userID, videoName string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	jobID := uuid.NewString()
	_, err := r.db.Exec(
		"INSERT INTO jobs (job_id, user_id, video_name, started_at) VALUES (?, ?, ?, ?)",
		jobID, userID, videoName, time.Now().UTC().Unix(),
	)
	if err != nil {
		return "", vderrors.IOError("insert job", err)
	}
	return jobID, nil
}

// updatableFields is the whitelist Update accepts.
var updatableFields = map[string]bool{
	"status":        true,
	"current_stage": true,
	"stage_index":   true,
	"total_stages":  true,
	"doc_id":        true,
	"error":         true,
	"completed_at":  true,
	"seen":          true,
}

// Update patches whitelisted fields of a job. Unknown fields are rejected.
func (r *Registry) Update(jobID string, patch map[string]any) error {
	if len(patch) == 0 {
		return nil
	}

	assignments := make([]string, 0, len(patch))
	args := make([]any, 0, len(patch)+1)
	for field, value := range patch {
		if !updatableFields[field] {
			return vderrors.ValidationError("field is not updatable").WithContext("field", field)
		}
		if field == "completed_at" {
			if t, ok := value.(time.Time); ok {
				value = t.UTC().Unix()
			}
		}
		assignments = append(assignments, field+" = ?")
		args = append(args, value)
	}
	args = append(args, jobID)

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exec(fmt.Sprintf("UPDATE jobs SET %s WHERE job_id = ?", strings.Join(assignments, ", ")), args...)
}

// exec runs one write in a short immediate transaction.
func (r *Registry) exec(query string, args ...any) error {
	ctx := context.Background()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return vderrors.IOError("begin job transaction", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		_ = tx.Rollback()
		return vderrors.IOError("update job", err)
	}
	if err := tx.Commit(); err != nil {
		return vderrors.IOError("commit job update", err)
	}
	return nil
}

// AttachDoc records the document a job produced once it is known.
func (r *Registry) AttachDoc(jobID, docID string) error {
	return r.Update(jobID, map[string]any{"doc_id": docID, "status": StatusProcessing})
}

// UpdateStage records pipeline progress.
func (r *Registry) UpdateStage(jobID, stage string, index, total int) error {
	return r.Update(jobID, map[string]any{
		"status":        StatusProcessing,
		"current_stage": stage,
		"stage_index":   index,
		"total_stages":  total,
	})
}

// MarkComplete finalizes a successful job.
func (r *Registry) MarkComplete(jobID, docID string) error {
	return r.Update(jobID, map[string]any{
		"status":       StatusComplete,
		"doc_id":       docID,
		"completed_at": time.Now().UTC(),
	})
}

// MarkError finalizes a failed job.
func (r *Registry) MarkError(jobID, message string) error {
	return r.Update(jobID, map[string]any{
		"status":       StatusError,
		"error":        message,
		"completed_at": time.Now().UTC(),
	})
}

// MarkSeen flags a job's notification as seen.
func (r *Registry) MarkSeen(jobID string) error {
	return r.Update(jobID, map[string]any{"seen": 1})
}

// Get loads one job, or nil when absent.
func (r *Registry) Get(jobID string) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.db.Query(selectJobs+" WHERE job_id = ?", jobID)
	if err != nil {
		return nil, vderrors.IOError("query job", err)
	}
	defer rows.Close()

	jobs, err := scanJobs(rows)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return jobs[0], nil
}

const selectJobs = `SELECT job_id, user_id, video_name, doc_id, status, current_stage,
	stage_index, total_stages, error, seen, started_at, completed_at FROM jobs`

// ListForUser returns a user's jobs, newest first. status filters when
// non-empty; includeSeen=false hides already-seen jobs.
func (r *Registry) ListForUser(userID, status string, includeSeen bool) ([]*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := selectJobs + " WHERE user_id = ?"
	args := []any{userID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	if !includeSeen {
		query += " AND seen = 0"
	}
	query += " ORDER BY started_at DESC, job_id"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, vderrors.IOError("query jobs", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

// ActiveForUser returns the user's pending and processing jobs.
func (r *Registry) ActiveForUser(userID string) ([]*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.db.Query(
		selectJobs+" WHERE user_id = ? AND status IN (?, ?) ORDER BY started_at DESC, job_id",
		userID, StatusPending, StatusProcessing,
	)
	if err != nil {
		return nil, vderrors.IOError("query active jobs", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

// GC deletes terminal jobs completed before the cutoff and returns how many
// were removed.
func (r *Registry) GC(olderThan time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.Exec(
		"DELETE FROM jobs WHERE status IN (?, ?) AND completed_at IS NOT NULL AND completed_at < ?",
		StatusComplete, StatusError, olderThan.UTC().Unix(),
	)
	if err != nil {
		return 0, vderrors.IOError("gc jobs", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func scanJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		var (
			job         Job
			seen        int
			startedAt   int64
			completedAt sql.NullInt64
		)
		err := rows.Scan(&job.ID, &job.UserID, &job.VideoName, &job.DocID, &job.Status,
			&job.CurrentStage, &job.StageIndex, &job.TotalStages, &job.Error, &seen,
			&startedAt, &completedAt)
		if err != nil {
			return nil, vderrors.IOError("scan job row", err)
		}
		job.Seen = seen != 0
		job.StartedAt = time.Unix(startedAt, 0).UTC()
		if completedAt.Valid {
			t := time.Unix(completedAt.Int64, 0).UTC()
			job.CompletedAt = &t
		}
		jobs = append(jobs, &job)
	}
	if err := rows.Err(); err != nil {
		return nil, vderrors.IOError("iterate job rows", err)
	}
	return jobs, nil
}
