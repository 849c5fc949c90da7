package compile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stubborncoder/vdocs/internal/compilestore"
	"github.com/stubborncoder/vdocs/internal/docstore"
	vderrors "github.com/stubborncoder/vdocs/internal/errors"
	"github.com/stubborncoder/vdocs/internal/lock"
	"github.com/stubborncoder/vdocs/internal/projectstore"
)

type fixture struct {
	docs     *docstore.Store
	projects *projectstore.Store
	compiler *Compiler
	project  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	userDir := t.TempDir()
	docs := docstore.New("tester", userDir)
	projects := projectstore.New(userDir, docs)

	projectID, err := projects.CreateProject("Handbook", "", "en")
	require.NoError(t, err)
	store := compilestore.New(projects.ProjectDir(projectID))

	return &fixture{
		docs:     docs,
		projects: projects,
		compiler: New(docs, projects, store),
		project:  projectID,
	}
}

func (f *fixture) addDoc(t *testing.T, video, chapter, content string) string {
	t.Helper()
	_, docID, err := f.docs.CreateDoc(video, docstore.ConflictReuse)
	require.NoError(t, err)
	require.NoError(t, f.docs.PutContent(docID, "en", content))
	require.NoError(t, f.projects.AddDocToProject(f.project, docID, chapter))
	return docID
}

func TestBuildPlan_FollowsChapterOrder(t *testing.T) {
	f := newFixture(t)
	intro, err := f.projects.AddChapter(f.project, "Introduction", "")
	require.NoError(t, err)
	setup, err := f.projects.AddChapter(f.project, "Setup", "")
	require.NoError(t, err)

	d1 := f.addDoc(t, "welcome.mp4", intro, "# Welcome\n")
	d2 := f.addDoc(t, "install.mp4", setup, "# Install\n")
	require.NoError(t, f.projects.ReorderChapters(f.project, []string{setup, intro}))

	plan, err := f.compiler.BuildPlan(f.project)
	require.NoError(t, err)
	require.Len(t, plan.Entries, 2)
	assert.Equal(t, d2, plan.Entries[0].DocID)
	assert.Equal(t, d1, plan.Entries[1].DocID)
	assert.Equal(t, "1.0.0", plan.Entries[0].Version)
	assert.Equal(t, []string{"en"}, plan.Languages)
}

func TestBuildPlan_EmptyProject(t *testing.T) {
	f := newFixture(t)
	_, err := f.compiler.BuildPlan(f.project)
	require.Error(t, err)
}

func TestRun_MergesWithChapterHeadingsAndScreenshots(t *testing.T) {
	f := newFixture(t)
	setup, err := f.projects.AddChapter(f.project, "Setup", "")
	require.NoError(t, err)

	docID := f.addDoc(t, "install.mp4", setup,
		"# Install\n\n![Step one](screenshots/step_1.png)\n")
	shotsDir := f.docs.ScreenshotsDir(docID)
	require.NoError(t, os.MkdirAll(shotsDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(shotsDir, "step_1.png"), []byte("png"), 0o600))

	result, err := f.compiler.Run(f.project, "first compile")
	require.NoError(t, err)
	assert.Empty(t, result.Version) // pristine project: nothing auto-saved
	assert.Equal(t, 1, result.Documents)

	merged, err := os.ReadFile(filepath.Join(result.OutputDir, "manual_en.md"))
	require.NoError(t, err)
	text := string(merged)
	assert.Contains(t, text, "# Setup\n")
	assert.Contains(t, text, "(screenshots/"+docID+"_step_1.png)")
	assert.FileExists(t, filepath.Join(result.OutputDir, "screenshots", docID+"_step_1.png"))
	assert.FileExists(t, filepath.Join(result.OutputDir, "compilation.json"))
}

func TestRun_SecondCompileAutoSaves(t *testing.T) {
	f := newFixture(t)
	setup, err := f.projects.AddChapter(f.project, "Setup", "")
	require.NoError(t, err)
	f.addDoc(t, "install.mp4", setup, "# Install v1\n")

	_, err = f.compiler.Run(f.project, "")
	require.NoError(t, err)

	result, err := f.compiler.Run(f.project, "recompile")
	require.NoError(t, err)
	assert.Equal(t, "1.0.1", result.Version)

	store := compilestore.New(f.projects.ProjectDir(f.project))
	history, err := store.History()
	require.NoError(t, err)
	assert.Equal(t, "1.0.1", history.CurrentVersion)
	require.Len(t, history.Entries, 1)
	require.NotNil(t, history.Entries[0].Record)
	assert.Equal(t, map[string]string{"install": "1.0.0"}, history.Entries[0].Record.SourceVersions)
}

func TestRun_FailsWhileProjectLocked(t *testing.T) {
	f := newFixture(t)
	f.addDoc(t, "intro.mp4", "", "# Intro\n")

	held, err := lock.Acquire(f.projects.ProjectDir(f.project))
	require.NoError(t, err)
	defer func() { _ = held.Unlock() }()

	_, err = f.compiler.Run(f.project, "blocked")
	require.Error(t, err)
	assert.True(t, vderrors.IsConflict(err))
}
