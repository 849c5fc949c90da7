package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCompiled(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
}

func TestPublish_CreatesRepoAndCommits(t *testing.T) {
	source := t.TempDir()
	writeCompiled(t, source, map[string]string{
		"manual_en.md":           "# Manual\n",
		"screenshots/step_1.png": "png",
		"compilation.json":       "{}",
	})

	pub := New(filepath.Join(t.TempDir(), "exports"))
	hash, err := pub.Publish(source, "publish 1.0.0")
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	history, err := pub.History(0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "publish 1.0.0", history[0].Message)
	assert.Equal(t, hash, history[0].Hash)
}

func TestPublish_NoChangesMakesNoCommit(t *testing.T) {
	source := t.TempDir()
	writeCompiled(t, source, map[string]string{"manual_en.md": "# Manual\n"})

	pub := New(filepath.Join(t.TempDir(), "exports"))
	first, err := pub.Publish(source, "initial")
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := pub.Publish(source, "identical")
	require.NoError(t, err)
	assert.Empty(t, second)

	history, err := pub.History(0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestPublish_SuccessiveVersions(t *testing.T) {
	source := t.TempDir()
	writeCompiled(t, source, map[string]string{"manual_en.md": "# v1\n"})

	pub := New(filepath.Join(t.TempDir(), "exports"))
	_, err := pub.Publish(source, "publish v1")
	require.NoError(t, err)

	writeCompiled(t, source, map[string]string{"manual_en.md": "# v2\n"})
	hash, err := pub.Publish(source, "publish v2")
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	history, err := pub.History(1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "publish v2", history[0].Message)
}

func TestHistory_NoRepoIsEmpty(t *testing.T) {
	pub := New(filepath.Join(t.TempDir(), "never-published"))
	history, err := pub.History(0)
	require.NoError(t, err)
	assert.Empty(t, history)
}
