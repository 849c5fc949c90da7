// Package server exposes the streaming run endpoint, read-only share
// links, and the job API over HTTP. One port carries everything: the
// /api/runs WebSocket relays runner event frames, /share/{token} serves
// shared content without authentication, and /metrics exports Prometheus
// metrics.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/websocket"

	"github.com/stubborncoder/vdocs/internal/agent"
	"github.com/stubborncoder/vdocs/internal/config"
	"github.com/stubborncoder/vdocs/internal/docstore"
	"github.com/stubborncoder/vdocs/internal/jobs"
	"github.com/stubborncoder/vdocs/internal/metrics"
	"github.com/stubborncoder/vdocs/internal/pipeline"
	"github.com/stubborncoder/vdocs/internal/runner"
	"github.com/stubborncoder/vdocs/internal/share"
)

// Options injects the agent boundary and observability hooks. Nil fields
// fall back to safe defaults so tests can wire only what they exercise.
type Options struct {
	Analyzer  agent.VideoAnalyzer
	Compiler  agent.CompilerAgent
	Editor    agent.EditorAgent
	Extractor pipeline.FrameExtractor
	Recorder  metrics.Recorder
	Registry  *prom.Registry
	// Tracker overrides the job registry as the run tracker, letting the
	// caller layer status notifications on top of persistence.
	Tracker runner.JobTracker
}

// Server manages the HTTP endpoints and their shared dependencies.
type Server struct {
	cfg      *config.Config
	jobs     *jobs.Registry
	resolver share.Resolver
	opts     Options

	httpServer *http.Server
	startTime  time.Time
}

// New constructs a server wiring instance.
func New(cfg *config.Config, registry *jobs.Registry, resolver share.Resolver, opts Options) *Server {
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	if opts.Tracker == nil {
		opts.Tracker = registry
	}
	return &Server{
		cfg:      cfg,
		jobs:     registry,
		resolver: resolver,
		opts:     opts,
	}
}

// docsFor returns the document store scoped to one user's subtree.
func (s *Server) docsFor(userID string) *docstore.Store {
	return docstore.New(userID, s.cfg.UserDir(userID))
}

// Handler builds the routing table with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/runs", websocket.Handler(s.handleRuns))
	mux.HandleFunc("GET /api/jobs", s.handleListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleGetJob)
	mux.HandleFunc("POST /api/jobs/{id}/seen", s.handleMarkSeen)
	mux.HandleFunc("GET /share/{token}", s.handleShare)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.opts.Registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.opts.Registry, promhttp.HandlerOpts{}))
	}
	return chain(slog.Default(), mux)
}

// Start binds the listener up front so port conflicts surface immediately
// instead of inside the serve goroutine.
func (s *Server) Start(ctx context.Context) error {
	s.startTime = time.Now()

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("http startup failed: %w", err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("HTTP server started", slog.String("addr", s.cfg.Server.Addr))
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	slog.Info("HTTP server stopped")
	return nil
}
