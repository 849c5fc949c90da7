package docversion

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stubborncoder/vdocs/internal/blobstore"
	"github.com/stubborncoder/vdocs/internal/docstore"
	vderrors "github.com/stubborncoder/vdocs/internal/errors"
	"github.com/stubborncoder/vdocs/internal/lock"
)

type fixture struct {
	docs  *docstore.Store
	store *Store
	docID string
	dir   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	docs := docstore.New("alice", t.TempDir())
	docDir, docID, err := docs.CreateDoc("Guide.mp4", docstore.ConflictNew)
	require.NoError(t, err)
	return &fixture{docs: docs, store: New(docs, docID), docID: docID, dir: docDir}
}

func (f *fixture) writeScreenshot(t *testing.T, name string, content []byte) {
	t.Helper()
	dir := f.docs.ScreenshotsDir(f.docID)
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), content, 0o600))
}

func TestAutoPatch_EmptyWorkingDirReturnsNothing(t *testing.T) {
	f := newFixture(t)

	v, err := f.store.AutoPatch("edit")
	require.NoError(t, err)
	assert.Empty(t, v)

	meta, err := f.docs.GetMetadata(f.docID)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", meta.Version.Number)
	assert.Empty(t, meta.Version.History)
}

// Mirrors the auto-patch round-trip scenario: snapshot named after the
// pre-bump version, screenshot deduplicated through the blob store.
func TestAutoPatch_RoundTrip(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.docs.PutContent(f.docID, "en", "# A"))
	f.writeScreenshot(t, "x.png", []byte("pixels"))

	v, err := f.store.AutoPatch("edit")
	require.NoError(t, err)
	assert.Equal(t, "1.0.1", v)

	require.NoError(t, f.docs.PutContent(f.docID, "en", "# B"))

	snap, err := os.ReadFile(filepath.Join(f.dir, "versions", "v1.0.0", "en", "doc.md"))
	require.NoError(t, err)
	assert.Equal(t, "# A", string(snap))

	manifest, err := blobstore.ReadManifest(filepath.Join(f.dir, "versions", "v1.0.0", "screenshots.json"))
	require.NoError(t, err)
	require.Contains(t, manifest, "x.png")
	assert.NotEmpty(t, manifest["x.png"].Hash)

	blobs, err := os.ReadDir(filepath.Join(f.dir, blobstore.StoreDirName))
	require.NoError(t, err)
	assert.Len(t, blobs, 1)

	meta, err := f.docs.GetMetadata(f.docID)
	require.NoError(t, err)
	assert.Equal(t, "1.0.1", meta.Version.Number)
	require.Len(t, meta.Version.History, 1)
	assert.Equal(t, "1.0.0", meta.Version.History[0].Version)
	assert.Equal(t, filepath.Join("versions", "v1.0.0"), meta.Version.History[0].SnapshotDir)
}

func TestAutoPatch_OnlyPatchComponentMoves(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.docs.PutContent(f.docID, "en", "c0"))

	for i, want := range []string{"1.0.1", "1.0.2", "1.0.3"} {
		v, err := f.store.AutoPatch("overwrite")
		require.NoError(t, err)
		assert.Equal(t, want, v, "bump %d", i)
	}

	meta, err := f.docs.GetMetadata(f.docID)
	require.NoError(t, err)
	assert.Len(t, meta.Version.History, 3)
}

func TestBump_PatchKindRejected(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.docs.PutContent(f.docID, "en", "x"))

	_, err := f.store.Bump(BumpKind("patch"), "no")
	require.Error(t, err)
}

func TestBump_MinorAndMajor(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.docs.PutContent(f.docID, "en", "x"))

	v, err := f.store.Bump(BumpMinor, "minor release")
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", v)

	v, err = f.store.Bump(BumpMajor, "major release")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", v)

	infos, err := f.store.List()
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, "2.0.0", infos[0].Version)
	assert.True(t, infos[0].IsCurrent)
	// History newest-first after the current entry.
	assert.Equal(t, "1.1.0", infos[1].Version)
	assert.Equal(t, "1.0.0", infos[2].Version)
}

// Mirrors the restore-after-minor-bump scenario.
func TestRestore_AfterMinorBump(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.docs.PutContent(f.docID, "en", "C0"))

	_, err := f.store.Bump(BumpMinor, "v1.1")
	require.NoError(t, err)
	require.NoError(t, f.docs.PutContent(f.docID, "en", "C2"))

	ok, err := f.store.Restore("1.0.0", "en")
	require.NoError(t, err)
	assert.True(t, ok)

	text, found, err := f.docs.GetContent(f.docID, "en")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "C0", text)

	// The C2 state was auto-patched at version 1.1.0 before the restore.
	snap, err := os.ReadFile(filepath.Join(f.dir, "versions", "v1.1.0", "en", "doc.md"))
	require.NoError(t, err)
	assert.Equal(t, "C2", string(snap))

	meta, err := f.docs.GetMetadata(f.docID)
	require.NoError(t, err)
	versions := make([]string, 0, len(meta.Version.History))
	for _, h := range meta.Version.History {
		versions = append(versions, h.Version)
	}
	assert.Contains(t, versions, "1.0.0")
	assert.Contains(t, versions, "1.1.0")
}

func TestRestore_CurrentVersionIsNoOp(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.docs.PutContent(f.docID, "en", "X"))

	ok, err := f.store.Restore("1.0.0", "en")
	require.NoError(t, err)
	assert.True(t, ok)

	text, _, err := f.docs.GetContent(f.docID, "en")
	require.NoError(t, err)
	assert.Equal(t, "X", text)

	meta, err := f.docs.GetMetadata(f.docID)
	require.NoError(t, err)
	assert.Empty(t, meta.Version.History, "no-op restore must not snapshot")
}

func TestRestore_MissingSnapshotReturnsFalse(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.docs.PutContent(f.docID, "en", "X"))

	ok, err := f.store.Restore("0.9.0", "en")
	require.NoError(t, err)
	assert.False(t, ok)

	meta, err := f.docs.GetMetadata(f.docID)
	require.NoError(t, err)
	assert.Empty(t, meta.Version.History)
}

func TestRestore_ScreenshotsFromManifest(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.docs.PutContent(f.docID, "en", "C0"))
	f.writeScreenshot(t, "old.png", []byte("old-bytes"))

	_, err := f.store.Bump(BumpMinor, "checkpoint")
	require.NoError(t, err)

	// Replace the screenshot in the working dir.
	require.NoError(t, os.Remove(filepath.Join(f.docs.ScreenshotsDir(f.docID), "old.png")))
	f.writeScreenshot(t, "new.png", []byte("new-bytes"))

	ok, err := f.store.Restore("1.0.0", "en")
	require.NoError(t, err)
	require.True(t, ok)

	data, err := os.ReadFile(filepath.Join(f.docs.ScreenshotsDir(f.docID), "old.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("old-bytes"), data)
}

func TestRestore_LegacyRawScreenshots(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.docs.PutContent(f.docID, "en", "new"))

	// Hand-build a legacy snapshot: raw screenshot copies, no manifest.
	legacy := filepath.Join(f.dir, "versions", "v0.9.0")
	require.NoError(t, os.MkdirAll(filepath.Join(legacy, "en"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(legacy, "en", "manual.md"), []byte("legacy text"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(legacy, "screenshots"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(legacy, "screenshots", "s.png"), []byte("raw"), 0o600))

	ok, err := f.store.Restore("0.9.0", "en")
	require.NoError(t, err)
	require.True(t, ok)

	text, _, err := f.docs.GetContent(f.docID, "en")
	require.NoError(t, err)
	assert.Equal(t, "legacy text", text)

	data, err := os.ReadFile(filepath.Join(f.docs.ScreenshotsDir(f.docID), "s.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("raw"), data)
}

// Mirrors the GC-after-prune scenario: retained manifests keep their blobs,
// pruned versions lose theirs.
func TestGC_PrunesSnapshotsHistoryAndBlobs(t *testing.T) {
	f := newFixture(t)

	shotsDir := f.docs.ScreenshotsDir(f.docID)
	for i := 0; i < 10; i++ {
		require.NoError(t, f.docs.PutContent(f.docID, "en", string(rune('a'+i))))
		// Unique screenshot per version; replaced each round.
		entries, err := os.ReadDir(shotsDir)
		require.NoError(t, err)
		for _, e := range entries {
			require.NoError(t, os.Remove(filepath.Join(shotsDir, e.Name())))
		}
		f.writeScreenshot(t, "shot.png", []byte{byte(i), 1, 2, 3})
		_, err = f.store.AutoPatch("round")
		require.NoError(t, err)
	}

	meta, err := f.docs.GetMetadata(f.docID)
	require.NoError(t, err)
	require.Len(t, meta.Version.History, 10)

	require.NoError(t, f.store.GC(3))

	meta, err = f.docs.GetMetadata(f.docID)
	require.NoError(t, err)
	require.Len(t, meta.Version.History, 3)

	snapshots, err := os.ReadDir(filepath.Join(f.dir, "versions"))
	require.NoError(t, err)
	assert.Len(t, snapshots, 3)

	// Every surviving snapshot's manifest resolves in the blob store.
	blobs := f.docs.Blobs(f.docID)
	for _, entry := range meta.Version.History {
		manifest, err := blobstore.ReadManifest(filepath.Join(f.dir, entry.SnapshotDir, "screenshots.json"))
		require.NoError(t, err)
		for name, me := range manifest {
			assert.True(t, blobs.Exists(me.Hash), "blob for %s in %s", name, entry.Version)
		}
	}

	// Exactly the retained hashes plus the working screenshot remain.
	live, err := blobs.LiveHashes()
	require.NoError(t, err)
	files, err := os.ReadDir(filepath.Join(f.dir, blobstore.StoreDirName))
	require.NoError(t, err)
	assert.Len(t, files, len(live))
}

func TestDiff(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.docs.PutContent(f.docID, "en", "line one\nline two\n"))

	_, err := f.store.Bump(BumpMinor, "baseline")
	require.NoError(t, err)
	require.NoError(t, f.docs.PutContent(f.docID, "en", "line one\nline 2 changed\nline three\n"))

	summary, err := f.store.Diff("1.0.0", "1.1.0", "en")
	require.NoError(t, err)

	assert.Equal(t, 2, summary.LinesV1)
	assert.Equal(t, 3, summary.LinesV2)
	assert.Equal(t, len("line one\nline two\n"), summary.CharsV1)
	assert.Positive(t, summary.LinesChanged)
	assert.Positive(t, summary.CharsChanged)
}

func TestEvaluations(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.docs.PutContent(f.docID, "en", "x"))

	report := Evaluation{"score": 0.9, "issues": []any{"missing alt text"}}
	require.NoError(t, f.store.SaveEvaluation(report, "en", ""))

	got, err := f.store.GetEvaluation("en", "")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 0.9, got["score"])

	// Explicit version addressing.
	require.NoError(t, f.store.SaveEvaluation(Evaluation{"score": 0.5}, "es", "1.0.0"))

	keys, err := f.store.ListEvaluations()
	require.NoError(t, err)
	assert.Equal(t, []EvaluationKey{
		{Version: "1.0.0", Language: "en"},
		{Version: "1.0.0", Language: "es"},
	}, keys)

	deleted, err := f.store.DeleteEvaluation("es", "1.0.0")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = f.store.DeleteEvaluation("es", "1.0.0")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestBump_FailsWhileDocumentLocked(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.docs.PutContent(f.docID, "en", "# A"))

	held, err := lock.Acquire(f.dir)
	require.NoError(t, err)
	defer func() { _ = held.Unlock() }()

	_, err = f.store.Bump(BumpMinor, "blocked")
	require.Error(t, err)
	assert.True(t, vderrors.IsConflict(err))

	meta, err := f.docs.GetMetadata(f.docID)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", meta.Version.Number)
}

func TestRestore_FailsWhileDocumentLocked(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.docs.PutContent(f.docID, "en", "# A"))
	_, err := f.store.Bump(BumpMinor, "checkpoint")
	require.NoError(t, err)

	held, err := lock.Acquire(f.dir)
	require.NoError(t, err)
	defer func() { _ = held.Unlock() }()

	_, err = f.store.Restore("1.0.0", "en")
	require.Error(t, err)
	assert.True(t, vderrors.IsConflict(err))
}
