package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/stubborncoder/vdocs/internal/events"
	"github.com/stubborncoder/vdocs/internal/media"
	"github.com/stubborncoder/vdocs/internal/runner"
	"github.com/stubborncoder/vdocs/internal/watch"
)

// WatchCmd implements the 'watch' command: process every video that lands
// in a directory, until SIGINT/SIGTERM.
type WatchCmd struct {
	Dir    string        `arg:"" help:"Directory to watch for new videos" type:"existingdir"`
	Settle time.Duration `help:"Quiet period before a new file is considered complete" default:"2s"`
}

func (w *WatchCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	analyzer, err := newAnalyzer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create analyzer: %w", err)
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

	docs := openDocs(cfg, root.User)
	pipeline := runner.NewPipelineRunner(root.User, docs, analyzer, media.NewFFmpeg(""),
		tracker, cfg.Agent.StageTimeout, cfg.Runner.QueueSize)

	process := func(ctx context.Context, videoPath string) {
		name := filepath.Base(videoPath)
		slog.Info("processing video", "video", name)
		for _, event := range pipeline.Run(ctx, videoPath).Drain() {
			switch e := event.(type) {
			case events.Error:
				slog.Error("video processing failed", "video", name, "error", e.ErrorMessage)
			case events.Complete:
				slog.Info("video processed", "video", name, "result", e.Result)
			}
		}
	}

	watcher, err := watch.New(w.Dir, w.Settle, process)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	slog.Info("Watching for videos", "dir", w.Dir)
	<-ctx.Done()
	slog.Info("Shutdown signal received, stopping watcher...")
	watcher.Stop()
	return nil
}
