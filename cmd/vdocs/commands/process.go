package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/stubborncoder/vdocs/internal/media"
	"github.com/stubborncoder/vdocs/internal/runner"
)

// ProcessCmd implements the 'process' command.
type ProcessCmd struct {
	Video string `arg:"" help:"Path to the instructional video" type:"existingfile"`
	Plain bool   `help:"Print events instead of the interactive monitor"`
}

func (p *ProcessCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}

	ctx := context.Background()
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

	stream := pipeline.Run(ctx, p.Video)
	return renderStream("processing "+filepath.Base(p.Video), stream, p.Plain)
}
