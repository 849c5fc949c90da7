package commands

import (
	"fmt"
	"strings"
)

// JobsCmd groups job registry subcommands.
type JobsCmd struct {
	List JobsListCmd `cmd:"" default:"1" help:"List jobs for the current user"`
	Seen JobsSeenCmd `cmd:"" help:"Mark a job's terminal status as seen"`
}

// JobsListCmd implements 'jobs list'.
type JobsListCmd struct {
	Status string `short:"s" help:"Only show jobs with this status" enum:"pending,processing,complete,error," default:""`
	All    bool   `help:"Include jobs already marked seen"`
}

func (c *JobsListCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	registry, err := openRegistry(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = registry.Close() }()

	list, err := registry.ListForUser(root.User, c.Status, c.All)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("no jobs")
		return nil
	}

	for _, job := range list {
		stage := job.CurrentStage
		if stage == "" {
			stage = "-"
		}
		line := fmt.Sprintf("%s  %-10s %-20s %s", job.ID, job.Status, stage, job.VideoName)
		if job.DocID != "" {
			line += "  → " + job.DocID
		}
		if job.Error != "" {
			line += "  ✗ " + strings.TrimSpace(job.Error)
		}
		fmt.Println(line)
	}
	return nil
}

// JobsSeenCmd implements 'jobs seen'.
type JobsSeenCmd struct {
	Job string `arg:"" help:"Job ID"`
}

func (c *JobsSeenCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	registry, err := openRegistry(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = registry.Close() }()

	job, err := registry.Get(c.Job)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job %q not found", c.Job)
	}
	return registry.MarkSeen(c.Job)
}
