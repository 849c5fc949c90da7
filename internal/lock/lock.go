// Package lock provides per-document and per-project advisory file locks.
// Only one mutating run may hold a target's lock; concurrent attempts fail
// fast with a conflict error instead of interleaving writes.
package lock

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	vderrors "github.com/stubborncoder/vdocs/internal/errors"
)

// staleAfter is the age past which a leftover lock file from a crashed
// process is reclaimed.
const staleAfter = 30 * time.Minute

const lockFileName = ".lock"

// Lock is a held advisory lock. Release it with Unlock.
type Lock struct {
	path string
}

type lockInfo struct {
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Acquire takes the advisory lock for the directory at targetDir. It returns
// a conflict error when another live holder exists.
func Acquire(targetDir string) (*Lock, error) {
	if err := os.MkdirAll(targetDir, 0o750); err != nil {
		return nil, vderrors.IOError("create lock target directory", err).WithContext("dir", targetDir)
	}
	path := filepath.Join(targetDir, lockFileName)

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600) // #nosec G304
		if err == nil {
			info := lockInfo{PID: os.Getpid(), AcquiredAt: time.Now().UTC()}
			data, _ := json.Marshal(info)
			_, werr := f.Write(data)
			cerr := f.Close()
			if werr == nil {
				werr = cerr
			}
			if werr != nil {
				_ = os.Remove(path)
				return nil, vderrors.IOError("write lock file", werr).WithContext("path", path)
			}
			return &Lock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, vderrors.IOError("create lock file", err).WithContext("path", path)
		}

		if !reclaimIfStale(path) {
			return nil, vderrors.Conflict("target is locked by another run").
				WithContext("path", path)
		}
	}

	return nil, vderrors.Conflict("target is locked by another run").WithContext("path", path)
}

// reclaimIfStale removes the lock file when its holder is clearly gone.
func reclaimIfStale(path string) bool {
	data, err := os.ReadFile(path) // #nosec G304 - lock path is store-internal
	if err != nil {
		return os.IsNotExist(err)
	}

	var info lockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		// Unparseable lock file: fall back to mtime.
		st, serr := os.Stat(path)
		if serr != nil || time.Since(st.ModTime()) < staleAfter {
			return false
		}
		return os.Remove(path) == nil
	}

	if time.Since(info.AcquiredAt) < staleAfter {
		return false
	}
	return os.Remove(path) == nil
}

// Unlock releases the lock. Safe to call once per acquired lock.
func (l *Lock) Unlock() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return vderrors.IOError("remove lock file", err).WithContext("path", l.path)
	}
	return nil
}
