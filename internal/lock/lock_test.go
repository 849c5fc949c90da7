package lock

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vderrors "github.com/stubborncoder/vdocs/internal/errors"
)

func TestAcquire_SecondHolderConflicts(t *testing.T) {
	dir := t.TempDir()

	l1, err := Acquire(dir)
	require.NoError(t, err)

	_, err = Acquire(dir)
	require.Error(t, err)
	assert.True(t, vderrors.IsConflict(err))

	require.NoError(t, l1.Unlock())

	l2, err := Acquire(dir)
	require.NoError(t, err)
	require.NoError(t, l2.Unlock())
}

func TestAcquire_ReclaimsStaleLock(t *testing.T) {
	dir := t.TempDir()

	stale, err := json.Marshal(map[string]any{
		"pid":         99999,
		"acquired_at": time.Now().Add(-time.Hour).UTC(),
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, lockFileName), stale, 0o600))

	l, err := Acquire(dir)
	require.NoError(t, err)
	require.NoError(t, l.Unlock())
}

func TestUnlock_Idempotent(t *testing.T) {
	dir := t.TempDir()
	l, err := Acquire(dir)
	require.NoError(t, err)

	require.NoError(t, l.Unlock())
	require.NoError(t, l.Unlock())
}
