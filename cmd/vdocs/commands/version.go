package commands

import (
	"fmt"

	"github.com/stubborncoder/vdocs/internal/docversion"
)

// VersionCmd groups document version subcommands.
type VersionCmd struct {
	List    VersionListCmd    `cmd:"" help:"List a document's versions"`
	Bump    VersionBumpCmd    `cmd:"" help:"Snapshot the current content and bump the version"`
	Restore VersionRestoreCmd `cmd:"" help:"Restore a snapshot's content into the working copy"`
	Diff    VersionDiffCmd    `cmd:"" help:"Summarize changes between two versions"`
}

// VersionListCmd implements 'version list'.
type VersionListCmd struct {
	Doc string `arg:"" help:"Document ID"`
}

func (c *VersionListCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	infos, err := docversion.New(openDocs(cfg, root.User), c.Doc).List()
	if err != nil {
		return err
	}
	for _, info := range infos {
		marker := " "
		if info.IsCurrent {
			marker = "*"
		}
		line := fmt.Sprintf("%s %-10s", marker, info.Version)
		if !info.CreatedAt.IsZero() {
			line += " " + info.CreatedAt.Format("2006-01-02 15:04")
		}
		if info.Notes != "" {
			line += "  " + info.Notes
		}
		fmt.Println(line)
	}
	return nil
}

// VersionBumpCmd implements 'version bump'.
type VersionBumpCmd struct {
	Doc   string `arg:"" help:"Document ID"`
	Kind  string `arg:"" help:"Version component to bump" enum:"minor,major" default:"minor"`
	Notes string `short:"n" help:"Notes recorded with the snapshot"`
}

func (c *VersionBumpCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	next, err := docversion.New(openDocs(cfg, root.User), c.Doc).Bump(docversion.BumpKind(c.Kind), c.Notes)
	if err != nil {
		return err
	}
	fmt.Println(next)
	return nil
}

// VersionRestoreCmd implements 'version restore'.
type VersionRestoreCmd struct {
	Doc      string `arg:"" help:"Document ID"`
	Version  string `arg:"" help:"Version to restore"`
	Language string `short:"l" help:"Restrict the restore to one language"`
}

func (c *VersionRestoreCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	restored, err := docversion.New(openDocs(cfg, root.User), c.Doc).Restore(c.Version, c.Language)
	if err != nil {
		return err
	}
	if !restored {
		fmt.Println("nothing to restore")
	}
	return nil
}

// VersionDiffCmd implements 'version diff'.
type VersionDiffCmd struct {
	Doc      string `arg:"" help:"Document ID"`
	V1       string `arg:"" help:"First version"`
	V2       string `arg:"" help:"Second version"`
	Language string `short:"l" help:"Language to compare" default:"en"`
}

func (c *VersionDiffCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	summary, err := docversion.New(openDocs(cfg, root.User), c.Doc).Diff(c.V1, c.V2, c.Language)
	if err != nil {
		return err
	}
	fmt.Printf("%s → %s (%s)\n", c.V1, c.V2, c.Language)
	fmt.Printf("  lines: %d → %d (%d changed)\n", summary.LinesV1, summary.LinesV2, summary.LinesChanged)
	fmt.Printf("  chars: %d → %d (%d changed)\n", summary.CharsV1, summary.CharsV2, summary.CharsChanged)
	return nil
}
