package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/stubborncoder/vdocs/internal/config"
	"github.com/stubborncoder/vdocs/internal/janitor"
	"github.com/stubborncoder/vdocs/internal/media"
	"github.com/stubborncoder/vdocs/internal/metrics"
	"github.com/stubborncoder/vdocs/internal/server"
	"github.com/stubborncoder/vdocs/internal/share"
)

// ServeCmd implements the 'serve' command: the streaming WebSocket server
// plus the background janitor, running until SIGINT/SIGTERM.
type ServeCmd struct {
	Addr string `short:"a" help:"Listen address (overrides config)"`
}

func (s *ServeCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if s.Addr != "" {
		cfg.Server.Addr = s.Addr
	}
	return RunServer(cfg)
}

func RunServer(cfg *config.Config) error {
	slog.Info("Starting server", "addr", cfg.Server.Addr, "data_dir", cfg.DataDir)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client, err := newAnalyzer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create agent client: %w", err)
	}

	registry, err := openRegistry(cfg)
	if err != nil {
		return fmt.Errorf("open job registry: %w", err)
	}
	defer func() { _ = registry.Close() }()

	tracker, closeTracker, err := newTracker(cfg, registry)
	if err != nil {
		return err
	}
	defer closeTracker()

	promRegistry := prom.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(promRegistry)

	srv := server.New(cfg, registry, share.NewScanResolver(cfg.UsersDir()), server.Options{
		Analyzer:  client,
		Compiler:  client.Compiler(),
		Editor:    client.Editor(),
		Extractor: media.NewFFmpeg(""),
		Recorder:  recorder,
		Registry:  promRegistry,
		Tracker:   tracker,
	})

	sweeper, err := janitor.New(registry, cfg.UsersDir(), cfg.Janitor, recorder)
	if err != nil {
		return fmt.Errorf("create janitor: %w", err)
	}

	if err := srv.Start(ctx); err != nil {
		return err
	}
	if err := sweeper.Start(ctx); err != nil {
		return fmt.Errorf("start janitor: %w", err)
	}

	slog.Info("Server started, waiting for shutdown signal...")
	<-ctx.Done()
	slog.Info("Shutdown signal received, stopping...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if err := sweeper.Stop(); err != nil {
		slog.Warn("janitor stop failed", "error", err)
	}
	if err := srv.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	slog.Info("Server stopped successfully")
	return nil
}
