package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/stubborncoder/vdocs/internal/agent"
	"github.com/stubborncoder/vdocs/internal/config"
	"github.com/stubborncoder/vdocs/internal/docstore"
	"github.com/stubborncoder/vdocs/internal/events"
	"github.com/stubborncoder/vdocs/internal/jobs"
	"github.com/stubborncoder/vdocs/internal/notify"
	"github.com/stubborncoder/vdocs/internal/projectstore"
	"github.com/stubborncoder/vdocs/internal/runner"
	"github.com/stubborncoder/vdocs/internal/tui"
)

// Global context passed to subcommands if we need to share global state later.
type Global struct{}

// CLI definition & global flags - used by commands that need access to root config.
type CLI struct {
	Config     string           `short:"c" help:"Configuration file path" default:"vdocs.yaml"`
	User       string           `short:"u" help:"User whose documents to operate on" default:"default"`
	Verbose    bool             `short:"v" help:"Enable verbose logging"`
	AppVersion kong.VersionFlag `name:"version" help:"Show version and exit"`

	Process ProcessCmd `cmd:"" help:"Process a video into a structured document"`
	List    ListCmd    `cmd:"" help:"List documents"`
	View    ViewCmd    `cmd:"" help:"Print a document's content"`
	Project ProjectCmd `cmd:"" help:"Manage projects, chapters, and compilation"`
	Tag     TagCmd     `cmd:"" help:"Manage document tags"`
	Version VersionCmd `cmd:"" help:"Inspect and manage document versions"`
	Serve   ServeCmd   `cmd:"" help:"Run the streaming WebSocket server"`
	Jobs    JobsCmd    `cmd:"" help:"Inspect background processing jobs"`
	Watch   WatchCmd   `cmd:"" help:"Watch a directory and process new videos"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

func loadConfig(root *CLI) (*config.Config, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func openDocs(cfg *config.Config, userID string) *docstore.Store {
	return docstore.New(userID, cfg.UserDir(userID))
}

func openProjects(cfg *config.Config, userID string) *projectstore.Store {
	return projectstore.New(cfg.UserDir(userID), openDocs(cfg, userID))
}

func openRegistry(cfg *config.Config) (*jobs.Registry, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return jobs.Open(filepath.Join(cfg.DataDir, "jobs.db"))
}

// newAnalyzer builds the GenAI video analyzer from the environment.
func newAnalyzer(ctx context.Context, cfg *config.Config) (*agent.GeminiClient, error) {
	return agent.NewGeminiClient(ctx, os.Getenv("GEMINI_API_KEY"), cfg.Agent.Model)
}

// newTracker wires job persistence, with NATS publishing layered on when
// configured. The caller owns the registry's lifetime.
func newTracker(cfg *config.Config, registry *jobs.Registry) (runner.JobTracker, func(), error) {
	if cfg.Notify.NATSURL == "" {
		return registry, func() {}, nil
	}
	pub, err := notify.NewNATSPublisher(cfg.Notify.NATSURL, cfg.Notify.Subject)
	if err != nil {
		return nil, nil, fmt.Errorf("connect notify publisher: %w", err)
	}
	closer := func() { _ = pub.Close() }
	return notify.NewTracker(registry, pub), closer, nil
}

// renderStream consumes one run on the terminal. Interactive runs get the
// bubbletea monitor; plain runs print events line by line. Either way the
// returned error is non-nil when the run ended with a terminal error, so
// main can exit nonzero.
func renderStream(title string, stream *runner.Stream, plain bool) error {
	if plain {
		return renderPlain(stream)
	}

	final, err := tea.NewProgram(tui.New(title, stream)).Run()
	if err != nil {
		return fmt.Errorf("run monitor: %w", err)
	}
	if model, ok := final.(tui.Model); ok && model.Failed() {
		return fmt.Errorf("run failed")
	}
	return nil
}

func renderPlain(stream *runner.Stream) error {
	var runErr error
	for event := range stream.Events() {
		switch e := event.(type) {
		case events.StageStarted:
			fmt.Printf("▸ %s (%d/%d)\n", e.StageName, e.Index+1, e.Total)
		case events.StageCompleted:
			fmt.Printf("✓ %s\n", e.StageName)
		case events.Token:
			fmt.Print(e.Token)
			if e.IsLast {
				fmt.Println()
			}
		case events.ToolCall:
			fmt.Printf("⚙ %s\n", e.ToolName)
		case events.HumanApprovalRequired:
			fmt.Printf("⏸ approval required: %s\n", e.Message)
		case events.Error:
			fmt.Fprintf(os.Stderr, "✗ %s\n", e.ErrorMessage)
			runErr = fmt.Errorf("%s", e.ErrorMessage)
		case events.Complete:
			fmt.Println("✓ complete")
			if docID, ok := e.Result["doc_id"].(string); ok {
				fmt.Printf("  doc: %s\n", docID)
			}
		}
	}
	return runErr
}
