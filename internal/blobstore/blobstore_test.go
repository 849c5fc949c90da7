package blobstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeImage(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o750))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path
}

func TestStore_Deduplicates(t *testing.T) {
	docDir := t.TempDir()
	s := New(docDir)

	a := writeImage(t, filepath.Join(docDir, "screenshots"), "a.png", []byte("pixels"))
	b := writeImage(t, filepath.Join(docDir, "screenshots"), "b.png", []byte("pixels"))

	hashA, err := s.Store(a)
	require.NoError(t, err)
	hashB, err := s.Store(b)
	require.NoError(t, err)

	assert.Equal(t, hashA, hashB)
	assert.Len(t, hashA, HashLen)
	assert.True(t, s.Exists(hashA))

	// Identical content stored twice costs one blob.
	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_UnreadableSource(t *testing.T) {
	s := New(t.TempDir())
	_, err := s.Store(filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)
}

func TestSnapshot_SkipsNonImages(t *testing.T) {
	docDir := t.TempDir()
	shots := filepath.Join(docDir, "screenshots")
	writeImage(t, shots, "x.png", []byte("one"))
	writeImage(t, shots, "y.jpeg", []byte("two"))
	writeImage(t, shots, "notes.txt", []byte("not an image"))

	s := New(docDir)
	manifest, err := s.Snapshot(shots)
	require.NoError(t, err)

	assert.Len(t, manifest, 2)
	assert.Contains(t, manifest, "x.png")
	assert.Contains(t, manifest, "y.jpeg")
	assert.NotContains(t, manifest, "notes.txt")
	assert.Equal(t, int64(3), manifest["x.png"].SizeBytes)
	assert.False(t, manifest["x.png"].CapturedAt.IsZero())
}

func TestSnapshot_MissingDirIsEmpty(t *testing.T) {
	s := New(t.TempDir())
	manifest, err := s.Snapshot(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, manifest)
}

func TestRestore_RoundTrip(t *testing.T) {
	docDir := t.TempDir()
	shots := filepath.Join(docDir, "screenshots")
	writeImage(t, shots, "x.png", []byte("one"))
	writeImage(t, shots, "y.jpg", []byte("two"))

	s := New(docDir)
	manifest, err := s.Snapshot(shots)
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "restored")
	restored, err := s.Restore(manifest, dest, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"x.png", "y.jpg"}, restored)

	data, err := os.ReadFile(filepath.Join(dest, "x.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), data)

	// Re-snapshotting the restored directory yields identical hashes.
	manifest2, err := s.Snapshot(dest)
	require.NoError(t, err)
	require.Len(t, manifest2, 2)
	assert.Equal(t, manifest["x.png"].Hash, manifest2["x.png"].Hash)
	assert.Equal(t, manifest["y.jpg"].Hash, manifest2["y.jpg"].Hash)
}

func TestRestore_MissingBlobSkipped(t *testing.T) {
	s := New(t.TempDir())
	manifest := Manifest{"ghost.png": {Hash: "deadbeefdeadbeef"}}

	restored, err := s.Restore(manifest, t.TempDir(), true)
	require.NoError(t, err)
	assert.Empty(t, restored)
}

func TestRestore_NoOverwrite(t *testing.T) {
	docDir := t.TempDir()
	shots := filepath.Join(docDir, "screenshots")
	writeImage(t, shots, "x.png", []byte("new"))

	s := New(docDir)
	manifest, err := s.Snapshot(shots)
	require.NoError(t, err)

	dest := t.TempDir()
	writeImage(t, dest, "x.png", []byte("existing"))

	restored, err := s.Restore(manifest, dest, false)
	require.NoError(t, err)
	assert.Empty(t, restored)

	data, err := os.ReadFile(filepath.Join(dest, "x.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("existing"), data)
}

func TestGC_DryRunMatchesRealRun(t *testing.T) {
	docDir := t.TempDir()
	shots := filepath.Join(docDir, "screenshots")
	live := writeImage(t, shots, "live.png", []byte("live"))

	s := New(docDir)
	_, err := s.Store(live)
	require.NoError(t, err)

	// Orphan: stored then removed from the working dir, never snapshotted.
	orphan := writeImage(t, shots, "orphan.png", []byte("orphan"))
	orphanHash, err := s.Store(orphan)
	require.NoError(t, err)
	require.NoError(t, os.Remove(orphan))

	dryRun, err := s.GC(true)
	require.NoError(t, err)
	assert.Equal(t, []string{orphanHash}, dryRun)
	assert.True(t, s.Exists(orphanHash), "dry run must not delete")

	removed, err := s.GC(false)
	require.NoError(t, err)
	assert.Equal(t, dryRun, removed)
	assert.False(t, s.Exists(orphanHash))
}

func TestLiveHashes_IncludesVersionManifests(t *testing.T) {
	docDir := t.TempDir()
	s := New(docDir)

	src := writeImage(t, t.TempDir(), "old.png", []byte("snapshotted"))
	hash, err := s.Store(src)
	require.NoError(t, err)

	versionDir := filepath.Join(docDir, "versions", "v1.0.0")
	require.NoError(t, os.MkdirAll(versionDir, 0o750))
	require.NoError(t, WriteManifest(filepath.Join(versionDir, ManifestName), Manifest{
		"old.png": {Hash: hash, SizeBytes: 11},
	}))

	live, err := s.LiveHashes()
	require.NoError(t, err)
	assert.True(t, live[hash])

	removed, err := s.GC(false)
	require.NoError(t, err)
	assert.Empty(t, removed)
}
