package docstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vderrors "github.com/stubborncoder/vdocs/internal/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New("alice", t.TempDir())
}

func TestCreateDoc_ReusePolicy(t *testing.T) {
	s := newTestStore(t)

	_, id1, err := s.CreateDoc("Setup Guide.mp4", ConflictReuse)
	require.NoError(t, err)
	assert.Equal(t, "setup-guide", id1)

	_, id2, err := s.CreateDoc("Setup Guide.mp4", ConflictReuse)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
}

func TestCreateDoc_NewPolicySuffixes(t *testing.T) {
	s := newTestStore(t)

	_, id1, err := s.CreateDoc("Demo.mp4", ConflictNew)
	require.NoError(t, err)
	assert.Equal(t, "demo", id1)

	_, id2, err := s.CreateDoc("Demo.mp4", ConflictNew)
	require.NoError(t, err)
	assert.Equal(t, "demo-2", id2)

	_, id3, err := s.CreateDoc("Demo.mp4", ConflictNew)
	require.NoError(t, err)
	assert.Equal(t, "demo-3", id3)
}

func TestCreateDoc_InitialMetadata(t *testing.T) {
	s := newTestStore(t)

	_, id, err := s.CreateDoc("Intro.mp4", ConflictNew)
	require.NoError(t, err)

	meta, err := s.GetMetadata(id)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "Intro", meta.Title)
	assert.Equal(t, "Intro.mp4", meta.Video)
	assert.Equal(t, "1.0.0", meta.Version.Number)
	assert.Empty(t, meta.Version.History)
	assert.False(t, meta.CreatedAt.IsZero())
}

func TestPutGetContent_CurrentLayout(t *testing.T) {
	s := newTestStore(t)
	_, id, err := s.CreateDoc("v.mp4", ConflictNew)
	require.NoError(t, err)

	require.NoError(t, s.PutContent(id, "en", "# Hello"))

	text, ok, err := s.GetContent(id, "en")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "# Hello", text)

	_, ok, err = s.GetContent(id, "es")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPutContent_MissingDoc(t *testing.T) {
	s := newTestStore(t)
	err := s.PutContent("nope", "en", "x")
	require.Error(t, err)
	assert.True(t, vderrors.IsNotFound(err))
}

func TestGetContent_LegacyLayouts(t *testing.T) {
	s := newTestStore(t)
	docDir, id, err := s.CreateDoc("legacy.mp4", ConflictNew)
	require.NoError(t, err)

	// Legacy: {lang}/manual.md
	require.NoError(t, os.MkdirAll(filepath.Join(docDir, "es"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(docDir, "es", "manual.md"), []byte("viejo"), 0o600))

	text, ok, err := s.GetContent(id, "es")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "viejo", text)

	// Oldest: root-level doc.md
	require.NoError(t, os.WriteFile(filepath.Join(docDir, "doc.md"), []byte("root"), 0o600))
	text, ok, err = s.GetContent(id, "fr")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "root", text)

	// Current layout wins over legacy for the same language.
	require.NoError(t, s.PutContent(id, "es", "nuevo"))
	text, _, err = s.GetContent(id, "es")
	require.NoError(t, err)
	assert.Equal(t, "nuevo", text)
}

func TestLanguages(t *testing.T) {
	s := newTestStore(t)
	docDir, id, err := s.CreateDoc("multi.mp4", ConflictNew)
	require.NoError(t, err)

	require.NoError(t, s.PutContent(id, "en", "a"))
	require.NoError(t, os.MkdirAll(filepath.Join(docDir, "es"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(docDir, "es", "manual.md"), []byte("b"), 0o600))
	// Directory without content does not count.
	require.NoError(t, os.MkdirAll(filepath.Join(docDir, "de"), 0o750))

	langs, err := s.Languages(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"en", "es"}, langs)
}

func TestUpdateMetadata_AdvancesUpdatedAt(t *testing.T) {
	s := newTestStore(t)
	_, id, err := s.CreateDoc("v.mp4", ConflictNew)
	require.NoError(t, err)

	before, err := s.GetMetadata(id)
	require.NoError(t, err)

	require.NoError(t, s.UpdateMetadata(id, func(m *Metadata) {
		m.Tags = append(m.Tags, "howto")
	}))

	after, err := s.GetMetadata(id)
	require.NoError(t, err)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))
	assert.Equal(t, []string{"howto"}, after.Tags)
}

func TestGetMetadata_CorruptJSONReadsAsAbsent(t *testing.T) {
	s := newTestStore(t)
	docDir, id, err := s.CreateDoc("v.mp4", ConflictNew)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(docDir, MetadataFileName), []byte("{broken"), 0o600))

	meta, err := s.GetMetadata(id)
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestShares(t *testing.T) {
	s := newTestStore(t)
	_, id, err := s.CreateDoc("v.mp4", ConflictNew)
	require.NoError(t, err)

	token, err := s.CreateShare(id, "en")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	gotID, lang, ok := s.ResolveShare(token)
	assert.True(t, ok)
	assert.Equal(t, id, gotID)
	assert.Equal(t, "en", lang)

	_, _, ok = s.ResolveShare("not-a-token")
	assert.False(t, ok)

	revoked, err := s.RevokeShare(id)
	require.NoError(t, err)
	assert.True(t, revoked)

	_, _, ok = s.ResolveShare(token)
	assert.False(t, ok)

	revoked, err = s.RevokeShare(id)
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestFindByVideo(t *testing.T) {
	s := newTestStore(t)
	_, id, err := s.CreateDoc("My Clip.mp4", ConflictNew)
	require.NoError(t, err)

	found, ok := s.FindByVideo("My Clip.mp4")
	assert.True(t, ok)
	assert.Equal(t, id, found)

	_, ok = s.FindByVideo("Other.mp4")
	assert.False(t, ok)

	found, ok = s.FindExisting("My Clip.mp4")
	assert.True(t, ok)
	assert.Equal(t, id, found)
}

func TestDeleteDoc_MovesToTrash(t *testing.T) {
	dir := t.TempDir()
	s := New("alice", dir)

	_, id, err := s.CreateDoc("v.mp4", ConflictNew)
	require.NoError(t, err)
	require.NoError(t, s.DeleteDoc(id))

	ids, err := s.ListDocs()
	require.NoError(t, err)
	assert.Empty(t, ids)

	trash, err := os.ReadDir(filepath.Join(dir, ".trash"))
	require.NoError(t, err)
	assert.Len(t, trash, 1)
}
