package server

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/stubborncoder/vdocs/internal/compilestore"
	vderrors "github.com/stubborncoder/vdocs/internal/errors"
	"github.com/stubborncoder/vdocs/internal/projectstore"
	"github.com/stubborncoder/vdocs/internal/share"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(s.startTime).Seconds(),
	})
}

// handleListJobs returns a user's jobs, newest first. Query parameters:
// user (required), status, include_seen.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		writeError(w, vderrors.ValidationError("user query parameter is required"))
		return
	}
	includeSeen := r.URL.Query().Get("include_seen") == "true"

	list, err := s.jobs.ListForUser(userID, r.URL.Query().Get("status"), includeSeen)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": list})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if job == nil {
		writeError(w, vderrors.NotFound("job not found"))
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleMarkSeen(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, err := s.jobs.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if job == nil {
		writeError(w, vderrors.NotFound("job not found"))
		return
	}
	if err := s.jobs.MarkSeen(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleShare serves shared content read-only. Document tokens return the
// document's markdown for the shared language; project tokens return the
// compiled manual from the project's current compilation.
func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	target, err := s.resolver.Resolve(r.PathValue("token"))
	if err != nil {
		writeError(w, err)
		return
	}

	var text string
	switch target.Scope {
	case share.ScopeDocument:
		content, found, err := s.docsFor(target.UserID).GetContent(target.DocID, target.Language)
		if err != nil {
			writeError(w, err)
			return
		}
		if !found {
			writeError(w, vderrors.NotFound("shared content not found"))
			return
		}
		text = content
	case share.ScopeProject:
		docs := s.docsFor(target.UserID)
		projects := projectstore.New(s.cfg.UserDir(target.UserID), docs)
		store := compilestore.New(projects.ProjectDir(target.ProjectID))
		path := filepath.Join(store.CurrentDirPath(), compilestore.CompiledFileName(target.Language))
		data, err := os.ReadFile(path) // #nosec G304 - path is store-internal
		if err != nil {
			writeError(w, vderrors.NotFound("shared project has no compiled output for this language"))
			return
		}
		text = string(data)
	default:
		writeError(w, vderrors.InternalError("unknown share scope"))
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}
