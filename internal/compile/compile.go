// Package compile merges a project's documents into per-language manuals.
// The merge plan follows the project's chapter order; each source document
// contributes its current content, with image references rewritten into a
// shared screenshots directory so the compiled output is self-contained.
package compile

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/stubborncoder/vdocs/internal/compilestore"
	"github.com/stubborncoder/vdocs/internal/docstore"
	vderrors "github.com/stubborncoder/vdocs/internal/errors"
	"github.com/stubborncoder/vdocs/internal/lock"
	"github.com/stubborncoder/vdocs/internal/markdown"
	"github.com/stubborncoder/vdocs/internal/projectstore"
)

// PlanEntry is one source document in chapter order.
type PlanEntry struct {
	ChapterID    string `json:"chapter_id"`
	ChapterTitle string `json:"chapter_title"`
	DocID        string `json:"doc_id"`
	DocTitle     string `json:"doc_title"`
	Version      string `json:"version"`
}

// Plan is the ordered merge plan for one compilation.
type Plan struct {
	ProjectID string      `json:"project_id"`
	Languages []string    `json:"languages"`
	Entries   []PlanEntry `json:"entries"`
}

// Summary renders the plan as a one-line-per-entry description for history
// records.
func (p *Plan) Summary() string {
	lines := make([]string, 0, len(p.Entries))
	for _, entry := range p.Entries {
		lines = append(lines, fmt.Sprintf("%s/%s@%s", entry.ChapterID, entry.DocID, entry.Version))
	}
	return strings.Join(lines, "; ")
}

// SourceVersions maps doc id to the version that was merged.
func (p *Plan) SourceVersions() map[string]string {
	versions := make(map[string]string, len(p.Entries))
	for _, entry := range p.Entries {
		versions[entry.DocID] = entry.Version
	}
	return versions
}

// Compiler merges one project.
type Compiler struct {
	docs     *docstore.Store
	projects *projectstore.Store
	store    *compilestore.Store
}

// New creates a compiler for one project's stores.
func New(docs *docstore.Store, projects *projectstore.Store, store *compilestore.Store) *Compiler {
	return &Compiler{docs: docs, projects: projects, store: store}
}

// BuildPlan resolves the project's chapter order into source documents and
// their current versions, and the union of their languages.
func (c *Compiler) BuildPlan(projectID string) (*Plan, error) {
	project, err := c.projects.GetProject(projectID)
	if err != nil {
		return nil, err
	}

	plan := &Plan{ProjectID: projectID}
	langSet := map[string]bool{}
	for _, chapter := range project.Chapters {
		for _, docID := range chapter.DocIDs {
			meta, err := c.docs.GetMetadata(docID)
			if err != nil {
				return nil, err
			}
			if meta == nil {
				continue
			}
			plan.Entries = append(plan.Entries, PlanEntry{
				ChapterID:    chapter.ID,
				ChapterTitle: chapter.Title,
				DocID:        docID,
				DocTitle:     meta.Title,
				Version:      meta.Version.Number,
			})
			languages, err := c.docs.Languages(docID)
			if err != nil {
				return nil, err
			}
			for _, lang := range languages {
				langSet[lang] = true
			}
		}
	}

	if len(plan.Entries) == 0 {
		return nil, vderrors.ValidationError("project has no documents to compile").
			WithContext("project_id", projectID)
	}

	for lang := range langSet {
		plan.Languages = append(plan.Languages, lang)
	}
	sort.Strings(plan.Languages)
	return plan, nil
}

// Result describes one finished compilation.
type Result struct {
	Version   string   `json:"version,omitempty"`
	Languages []string `json:"languages"`
	OutputDir string   `json:"output_dir"`
	Documents int      `json:"documents"`
}

// Run compiles the project: auto-save the previous compilation, merge each
// language, copy referenced screenshots, and record the compilation. The
// project's advisory lock is held for the duration; a concurrent compile
// of the same project fails with a conflict.
func (c *Compiler) Run(projectID, notes string) (*Result, error) {
	projectLock, err := lock.Acquire(c.projects.ProjectDir(projectID))
	if err != nil {
		return nil, err
	}
	defer func() { _ = projectLock.Unlock() }()

	plan, err := c.BuildPlan(projectID)
	if err != nil {
		return nil, err
	}

	savedVersion, err := c.store.AutoSaveBeforeCompile("auto-save before compiling")
	if err != nil {
		return nil, err
	}

	outDir, err := c.store.CurrentDir()
	if err != nil {
		return nil, err
	}
	shotsDir := filepath.Join(outDir, "screenshots")
	if err := os.MkdirAll(shotsDir, 0o750); err != nil {
		return nil, vderrors.IOError("create merged screenshots directory", err)
	}

	for _, language := range plan.Languages {
		if err := c.mergeLanguage(plan, language, outDir, shotsDir); err != nil {
			return nil, err
		}
	}

	record := compilestore.Record{
		CreatedAt:      time.Now().UTC(),
		Languages:      plan.Languages,
		SourceVersions: plan.SourceVersions(),
		MergeSummary:   plan.Summary(),
		Notes:          notes,
	}
	if err := c.writeReport(outDir, plan, record); err != nil {
		return nil, err
	}
	if err := c.store.RecordCompilation(record); err != nil {
		return nil, err
	}

	return &Result{
		Version:   savedVersion,
		Languages: plan.Languages,
		OutputDir: outDir,
		Documents: len(plan.Entries),
	}, nil
}

// mergeLanguage concatenates every document's content for one language with
// chapter headings, rewriting and copying image references. Screenshot
// filenames are prefixed with the doc id to keep them unique in the merged
// directory.
func (c *Compiler) mergeLanguage(plan *Plan, language, outDir, shotsDir string) error {
	var out strings.Builder
	currentChapter := ""

	for _, entry := range plan.Entries {
		text, found, err := c.docs.GetContent(entry.DocID, language)
		if err != nil {
			return err
		}
		if !found {
			continue
		}

		if entry.ChapterID != currentChapter {
			if out.Len() > 0 {
				out.WriteString("\n")
			}
			out.WriteString("# " + entry.ChapterTitle + "\n\n")
			currentChapter = entry.ChapterID
		}

		srcShots := c.docs.ScreenshotsDir(entry.DocID)
		rewritten := markdown.RewriteImageDestinations(text, func(filename string) string {
			merged := entry.DocID + "_" + filename
			if err := copyFile(filepath.Join(srcShots, filename), filepath.Join(shotsDir, merged)); err != nil {
				// Missing screenshots keep their original reference.
				return ""
			}
			return "screenshots/" + merged
		})

		out.WriteString(rewritten)
		if !strings.HasSuffix(rewritten, "\n") {
			out.WriteString("\n")
		}
		out.WriteString("\n")
	}

	path := filepath.Join(outDir, compilestore.CompiledFileName(language))
	if err := os.WriteFile(path, []byte(out.String()), 0o600); err != nil {
		return vderrors.IOError("write compiled manual", err).WithContext("language", language)
	}
	return nil
}

func (c *Compiler) writeReport(outDir string, plan *Plan, record compilestore.Record) error {
	report := struct {
		compilestore.Record
		Plan *Plan `json:"plan"`
	}{Record: record, Plan: plan}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return vderrors.InternalError("marshal compilation report").WithContext("cause", err.Error())
	}
	if err := os.WriteFile(filepath.Join(outDir, "compilation.json"), data, 0o600); err != nil {
		return vderrors.IOError("write compilation report", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 - paths are store-internal
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst) // #nosec G304
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
