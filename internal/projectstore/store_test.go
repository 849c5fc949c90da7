package projectstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stubborncoder/vdocs/internal/docstore"
)

type fixture struct {
	store *Store
	docs  *docstore.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	userDir := t.TempDir()
	docs := docstore.New("tester", userDir)
	return &fixture{store: New(userDir, docs), docs: docs}
}

func (f *fixture) createDoc(t *testing.T, video string) string {
	t.Helper()
	_, docID, err := f.docs.CreateDoc(video, docstore.ConflictReuse)
	require.NoError(t, err)
	return docID
}

func TestCreateProject_SuffixOnCollision(t *testing.T) {
	f := newFixture(t)

	first, err := f.store.CreateProject("Onboarding Guide", "", "en")
	require.NoError(t, err)
	assert.Equal(t, "onboarding-guide", first)

	second, err := f.store.CreateProject("Onboarding Guide", "", "en")
	require.NoError(t, err)
	assert.Equal(t, "onboarding-guide-2", second)

	assert.DirExists(t, f.store.ProjectDir(first)+"/exports")
}

func TestEnsureDefaultProject(t *testing.T) {
	f := newFixture(t)

	project, err := f.store.EnsureDefaultProject()
	require.NoError(t, err)
	assert.Equal(t, DefaultProjectID, project.ID)
	assert.True(t, project.IsDefault)
	require.Len(t, project.Chapters, 1)
	assert.Equal(t, UncategorizedChapterTitle, project.Chapters[0].Title)

	again, err := f.store.EnsureDefaultProject()
	require.NoError(t, err)
	assert.Equal(t, project.CreatedAt, again.CreatedAt)

	err = f.store.DeleteProject(DefaultProjectID, false)
	require.Error(t, err)
}

func TestReorderChapters(t *testing.T) {
	f := newFixture(t)
	projectID, err := f.store.CreateProject("Manual", "", "en")
	require.NoError(t, err)

	a, err := f.store.AddChapter(projectID, "Alpha", "")
	require.NoError(t, err)
	b, err := f.store.AddChapter(projectID, "Beta", "")
	require.NoError(t, err)
	c, err := f.store.AddChapter(projectID, "Gamma", "")
	require.NoError(t, err)

	before, err := f.store.GetProject(projectID)
	require.NoError(t, err)
	beforeUpdated := before.UpdatedAt

	require.NoError(t, f.store.ReorderChapters(projectID, []string{c, a, b}))

	project, err := f.store.GetProject(projectID)
	require.NoError(t, err)
	require.Len(t, project.Chapters, 3)
	assert.Equal(t, []string{c, a, b}, []string{project.Chapters[0].ID, project.Chapters[1].ID, project.Chapters[2].ID})
	assert.Equal(t, []int{1, 2, 3}, []int{project.Chapters[0].Order, project.Chapters[1].Order, project.Chapters[2].Order})
	assert.True(t, project.UpdatedAt.After(beforeUpdated))
}

func TestReorderChapters_RejectsWrongIDSet(t *testing.T) {
	f := newFixture(t)
	projectID, err := f.store.CreateProject("Manual", "", "en")
	require.NoError(t, err)
	a, err := f.store.AddChapter(projectID, "Alpha", "")
	require.NoError(t, err)
	b, err := f.store.AddChapter(projectID, "Beta", "")
	require.NoError(t, err)

	for _, order := range [][]string{
		{a},            // missing id
		{a, b, "ghost"}, // extra id
		{a, a},         // duplicate
	} {
		err := f.store.ReorderChapters(projectID, order)
		require.Error(t, err)
	}

	// No partial mutation.
	project, err := f.store.GetProject(projectID)
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, []string{project.Chapters[0].ID, project.Chapters[1].ID})
}

func TestAddDocToProject_DefaultsToUncategorized(t *testing.T) {
	f := newFixture(t)
	projectID, err := f.store.CreateProject("Manual", "", "en")
	require.NoError(t, err)
	docID := f.createDoc(t, "intro.mp4")

	require.NoError(t, f.store.AddDocToProject(projectID, docID, ""))

	project, err := f.store.GetProject(projectID)
	require.NoError(t, err)
	ch := project.Chapter("uncategorized")
	require.NotNil(t, ch)
	assert.Equal(t, []string{docID}, ch.DocIDs)

	meta, err := f.docs.GetMetadata(docID)
	require.NoError(t, err)
	assert.Equal(t, projectID, meta.ProjectID)
	assert.Equal(t, "uncategorized", meta.ChapterID)

	// A doc appears in at most one chapter per project.
	err = f.store.AddDocToProject(projectID, docID, "")
	require.Error(t, err)
}

func TestAddDocToProject_MissingDoc(t *testing.T) {
	f := newFixture(t)
	projectID, err := f.store.CreateProject("Manual", "", "en")
	require.NoError(t, err)

	err = f.store.AddDocToProject(projectID, "no-such-doc", "")
	require.Error(t, err)
}

func TestMoveDocToChapter(t *testing.T) {
	f := newFixture(t)
	projectID, err := f.store.CreateProject("Manual", "", "en")
	require.NoError(t, err)
	setup, err := f.store.AddChapter(projectID, "Setup", "")
	require.NoError(t, err)
	usage, err := f.store.AddChapter(projectID, "Usage", "")
	require.NoError(t, err)
	docID := f.createDoc(t, "install.mp4")
	require.NoError(t, f.store.AddDocToProject(projectID, docID, setup))

	require.NoError(t, f.store.MoveDocToChapter(projectID, docID, usage))

	project, err := f.store.GetProject(projectID)
	require.NoError(t, err)
	assert.Empty(t, project.Chapter(setup).DocIDs)
	assert.Equal(t, []string{docID}, project.Chapter(usage).DocIDs)

	meta, err := f.docs.GetMetadata(docID)
	require.NoError(t, err)
	assert.Equal(t, usage, meta.ChapterID)
}

func TestReorderDocsInChapter(t *testing.T) {
	f := newFixture(t)
	projectID, err := f.store.CreateProject("Manual", "", "en")
	require.NoError(t, err)
	ch, err := f.store.AddChapter(projectID, "Setup", "")
	require.NoError(t, err)
	d1 := f.createDoc(t, "one.mp4")
	d2 := f.createDoc(t, "two.mp4")
	require.NoError(t, f.store.AddDocToProject(projectID, d1, ch))
	require.NoError(t, f.store.AddDocToProject(projectID, d2, ch))

	require.NoError(t, f.store.ReorderDocsInChapter(projectID, ch, []string{d2, d1}))

	project, err := f.store.GetProject(projectID)
	require.NoError(t, err)
	assert.Equal(t, []string{d2, d1}, project.Chapter(ch).DocIDs)

	err = f.store.ReorderDocsInChapter(projectID, ch, []string{d1})
	require.Error(t, err)
}

func TestDeleteChapter_ClearsBackRefs(t *testing.T) {
	f := newFixture(t)
	projectID, err := f.store.CreateProject("Manual", "", "en")
	require.NoError(t, err)
	ch, err := f.store.AddChapter(projectID, "Setup", "")
	require.NoError(t, err)
	docID := f.createDoc(t, "install.mp4")
	require.NoError(t, f.store.AddDocToProject(projectID, docID, ch))

	require.NoError(t, f.store.DeleteChapter(projectID, ch, false))

	project, err := f.store.GetProject(projectID)
	require.NoError(t, err)
	assert.Nil(t, project.Chapter(ch))

	meta, err := f.docs.GetMetadata(docID)
	require.NoError(t, err)
	assert.Empty(t, meta.ProjectID)
	assert.Empty(t, meta.ChapterID)
}

func TestDeleteProject_DeleteDocsFlag(t *testing.T) {
	f := newFixture(t)
	projectID, err := f.store.CreateProject("Manual", "", "en")
	require.NoError(t, err)
	docID := f.createDoc(t, "install.mp4")
	require.NoError(t, f.store.AddDocToProject(projectID, docID, ""))

	require.NoError(t, f.store.DeleteProject(projectID, true))

	_, err = f.store.GetProject(projectID)
	require.Error(t, err)
	meta, err := f.docs.GetMetadata(docID)
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestTags(t *testing.T) {
	f := newFixture(t)
	d1 := f.createDoc(t, "one.mp4")
	d2 := f.createDoc(t, "two.mp4")

	require.NoError(t, f.store.AddTagToDoc(d1, "Setup"))
	require.NoError(t, f.store.AddTagToDoc(d1, "setup")) // duplicate, case-insensitive
	require.NoError(t, f.store.AddTagToDoc(d1, "intro"))
	require.NoError(t, f.store.AddTagToDoc(d2, "intro"))

	tags, err := f.store.ListAllTags()
	require.NoError(t, err)
	assert.Equal(t, []string{"intro", "setup"}, tags)

	docs, err := f.store.DocsByTag("INTRO")
	require.NoError(t, err)
	assert.Equal(t, []string{d1, d2}, docs)

	require.NoError(t, f.store.RemoveTagFromDoc(d1, "intro"))
	docs, err = f.store.DocsByTag("intro")
	require.NoError(t, err)
	assert.Equal(t, []string{d2}, docs)

	require.Error(t, f.store.AddTagToDoc(d1, ""))
}

func TestSections(t *testing.T) {
	f := newFixture(t)
	projectID, err := f.store.CreateProject("Manual", "", "en")
	require.NoError(t, err)
	a, err := f.store.AddChapter(projectID, "Alpha", "")
	require.NoError(t, err)
	b, err := f.store.AddChapter(projectID, "Beta", "")
	require.NoError(t, err)

	s1, err := f.store.AddSection(projectID, "Basics", []string{a})
	require.NoError(t, err)
	s2, err := f.store.AddSection(projectID, "Advanced", []string{b})
	require.NoError(t, err)

	require.NoError(t, f.store.ReorderSections(projectID, []string{s2, s1}))

	project, err := f.store.GetProject(projectID)
	require.NoError(t, err)
	require.Len(t, project.Sections, 2)
	assert.Equal(t, s2, project.Sections[0].ID)
	assert.Equal(t, 1, project.Sections[0].Order)

	_, err = f.store.AddSection(projectID, "Broken", []string{"ghost"})
	require.Error(t, err)
}

func TestUpdatedAtMonotonic(t *testing.T) {
	f := newFixture(t)
	projectID, err := f.store.CreateProject("Manual", "", "en")
	require.NoError(t, err)

	var stamps []time.Time
	for i := 0; i < 3; i++ {
		_, err := f.store.AddChapter(projectID, "Chapter", "")
		require.NoError(t, err)
		project, err := f.store.GetProject(projectID)
		require.NoError(t, err)
		stamps = append(stamps, project.UpdatedAt)
	}
	assert.True(t, stamps[0].Before(stamps[1]))
	assert.True(t, stamps[1].Before(stamps[2]))
}
