// Package compilestore versions project-level compiled output. Writers
// always target `compiled/current/`; historical versions are timestamped
// snapshots under `compiled/versions/`. Projects compiled by older releases
// kept their files directly under `compiled/` — the store migrates that
// layout lazily and idempotently on first access.
package compilestore

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	vderrors "github.com/stubborncoder/vdocs/internal/errors"
	"github.com/stubborncoder/vdocs/internal/semver"
)

const (
	compiledDirName = "compiled"
	currentDirName  = "current"
	versionsDirName = "versions"
	historyFileName = "compilation_history.json"

	// migrationNotes labels the history entry seeded by a legacy migration.
	migrationNotes = "Migrated from legacy structure"
)

// Record describes one compilation: when it was built, which languages it
// covers, which source-document versions went in, and a merge-plan summary.
type Record struct {
	CreatedAt      time.Time         `json:"created_at"`
	Languages      []string          `json:"languages"`
	SourceVersions map[string]string `json:"source_versions,omitempty"`
	MergeSummary   string            `json:"merge_summary,omitempty"`
	Notes          string            `json:"notes,omitempty"`
	Tags           []string          `json:"tags,omitempty"`
}

// HistoryEntry is a snapshotted past compilation version.
type HistoryEntry struct {
	Version     string    `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	SnapshotDir string    `json:"snapshot_dir"`
	Notes       string    `json:"notes,omitempty"`
	Record      *Record   `json:"record,omitempty"`
}

// History is the persisted compilation_history.json.
type History struct {
	CurrentVersion string         `json:"current_version"`
	Current        *Record        `json:"current,omitempty"`
	Entries        []HistoryEntry `json:"entries"`
}

// Store versions the compiled output of one project.
type Store struct {
	projectDir string
}

// New creates a Store rooted at a project directory.
func New(projectDir string) *Store {
	return &Store{projectDir: projectDir}
}

func (s *Store) compiledDir() string {
	return filepath.Join(s.projectDir, compiledDirName)
}

func (s *Store) versionsDir() string {
	return filepath.Join(s.compiledDir(), versionsDirName)
}

func (s *Store) historyPath() string {
	return filepath.Join(s.projectDir, historyFileName)
}

// CurrentDirPath returns where current compiled output lives without
// creating or migrating anything. Read-only consumers use this.
func (s *Store) CurrentDirPath() string {
	return filepath.Join(s.compiledDir(), currentDirName)
}

// CurrentDir returns the directory compiled output is written to,
// performing the legacy-layout migration check first.
func (s *Store) CurrentDir() (string, error) {
	if err := s.migrateLegacyLayout(); err != nil {
		return "", err
	}
	dir := filepath.Join(s.compiledDir(), currentDirName)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", vderrors.IOError("create current compile directory", err)
	}
	return dir, nil
}

// migrateLegacyLayout moves files found directly under compiled/ into
// compiled/current/ and seeds a history entry. Repeated calls are no-ops.
func (s *Store) migrateLegacyLayout() error {
	entries, err := os.ReadDir(s.compiledDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return vderrors.IOError("read compiled directory", err)
	}

	var legacy []string
	for _, entry := range entries {
		name := entry.Name()
		if name == currentDirName || name == versionsDirName {
			continue
		}
		legacy = append(legacy, name)
	}
	if len(legacy) == 0 {
		return nil
	}

	currentDir := filepath.Join(s.compiledDir(), currentDirName)
	if err := os.MkdirAll(currentDir, 0o750); err != nil {
		return vderrors.IOError("create current compile directory", err)
	}
	for _, name := range legacy {
		if err := os.Rename(filepath.Join(s.compiledDir(), name), filepath.Join(currentDir, name)); err != nil {
			return vderrors.IOError("migrate legacy compiled file", err).WithContext("name", name)
		}
	}

	history, err := s.loadHistory()
	if err != nil {
		return err
	}
	history.Entries = append(history.Entries, HistoryEntry{
		Version:   history.CurrentVersion,
		CreatedAt: time.Now().UTC(),
		Notes:     migrationNotes,
	})
	return s.saveHistory(history)
}

func (s *Store) loadHistory() (*History, error) {
	data, err := os.ReadFile(s.historyPath()) // #nosec G304 - path is store-internal
	if err != nil {
		if os.IsNotExist(err) {
			return &History{CurrentVersion: semver.Initial.String(), Entries: []HistoryEntry{}}, nil
		}
		return nil, vderrors.IOError("read compilation history", err)
	}

	var history History
	if err := json.Unmarshal(data, &history); err != nil {
		// Corrupt history reads as pristine rather than blocking compiles.
		return &History{CurrentVersion: semver.Initial.String(), Entries: []HistoryEntry{}}, nil
	}
	if history.CurrentVersion == "" {
		history.CurrentVersion = semver.Initial.String()
	}
	if history.Entries == nil {
		history.Entries = []HistoryEntry{}
	}
	return &history, nil
}

func (s *Store) saveHistory(history *History) error {
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return vderrors.InternalError("marshal compilation history").WithContext("cause", err.Error())
	}
	if err := os.MkdirAll(s.projectDir, 0o750); err != nil {
		return vderrors.IOError("create project directory", err)
	}
	if err := os.WriteFile(s.historyPath(), data, 0o600); err != nil {
		return vderrors.IOError("write compilation history", err)
	}
	return nil
}

// History returns the persisted history with entries newest-first.
func (s *Store) History() (*History, error) {
	history, err := s.loadHistory()
	if err != nil {
		return nil, err
	}
	reversed := make([]HistoryEntry, len(history.Entries))
	for i, entry := range history.Entries {
		reversed[len(history.Entries)-1-i] = entry
	}
	history.Entries = reversed
	return history, nil
}

// AutoSaveBeforeCompile snapshots the current compilation before a new one
// is written, bumping the patch component. The first call on a pristine
// project returns "" and does nothing.
func (s *Store) AutoSaveBeforeCompile(notes string) (string, error) {
	currentDir, err := s.CurrentDir()
	if err != nil {
		return "", err
	}
	if empty, err := dirEmpty(currentDir); err != nil || empty {
		return "", err
	}

	history, err := s.loadHistory()
	if err != nil {
		return "", err
	}
	current, err := semver.Parse(history.CurrentVersion)
	if err != nil {
		current = semver.Initial
	}

	next := current.BumpPatch()
	if err := s.snapshot(history, current, next, notes); err != nil {
		return "", err
	}
	return next.String(), nil
}

// Bump snapshots the current compilation with an explicit minor or major
// bump. Patch bumps only happen through AutoSaveBeforeCompile.
func (s *Store) Bump(kind string, notes string) (string, error) {
	if _, err := s.CurrentDir(); err != nil {
		return "", err
	}

	history, err := s.loadHistory()
	if err != nil {
		return "", err
	}
	current, err := semver.Parse(history.CurrentVersion)
	if err != nil {
		current = semver.Initial
	}

	var next semver.Version
	switch kind {
	case "minor":
		next = current.BumpMinor()
	case "major":
		next = current.BumpMajor()
	default:
		return "", vderrors.ValidationError("bump kind must be minor or major").WithContext("kind", kind)
	}

	if err := s.snapshot(history, current, next, notes); err != nil {
		return "", err
	}
	return next.String(), nil
}

func (s *Store) snapshot(history *History, current, next semver.Version, notes string) error {
	ts := time.Now().UTC()
	snapName := "v" + current.String() + "_" + ts.Format("20060102_150405")
	snapDir := filepath.Join(s.versionsDir(), snapName)

	currentDir := filepath.Join(s.compiledDir(), currentDirName)
	if err := copyTree(currentDir, snapDir); err != nil {
		return err
	}

	history.Entries = append(history.Entries, HistoryEntry{
		Version:     current.String(),
		CreatedAt:   ts,
		SnapshotDir: filepath.Join(compiledDirName, versionsDirName, snapName),
		Notes:       notes,
		Record:      history.Current,
	})
	history.CurrentVersion = next.String()
	return s.saveHistory(history)
}

// RecordCompilation stores the record describing what the current
// compilation contains. Called by the compile pipeline after writing.
func (s *Store) RecordCompilation(record Record) error {
	history, err := s.loadHistory()
	if err != nil {
		return err
	}
	history.Current = &record
	return s.saveHistory(history)
}

// Restore atomically replaces current/ with the named version's snapshot,
// auto-saving the state being replaced first. It returns false when the
// version has no snapshot on disk.
func (s *Store) Restore(version string) (bool, error) {
	history, err := s.loadHistory()
	if err != nil {
		return false, err
	}
	if version == history.CurrentVersion {
		return true, nil
	}

	var target *HistoryEntry
	for i := len(history.Entries) - 1; i >= 0; i-- {
		if history.Entries[i].Version == version && history.Entries[i].SnapshotDir != "" {
			target = &history.Entries[i]
			break
		}
	}
	if target == nil {
		return false, nil
	}

	snapDir := filepath.Join(s.projectDir, target.SnapshotDir)
	if !dirExists(snapDir) {
		return false, nil
	}

	if _, err := s.AutoSaveBeforeCompile("auto-save before restoring v" + version); err != nil {
		return false, err
	}

	// Stage the snapshot next to current/ then swap.
	currentDir := filepath.Join(s.compiledDir(), currentDirName)
	staging := currentDir + ".restore"
	if err := os.RemoveAll(staging); err != nil {
		return false, vderrors.IOError("clear restore staging", err)
	}
	if err := copyTree(snapDir, staging); err != nil {
		return false, err
	}
	if err := os.RemoveAll(currentDir); err != nil {
		return false, vderrors.IOError("remove current compile directory", err)
	}
	if err := os.Rename(staging, currentDir); err != nil {
		return false, vderrors.IOError("swap restored compilation", err)
	}

	reloaded, err := s.loadHistory()
	if err != nil {
		return false, err
	}
	reloaded.Current = target.Record
	if err := s.saveHistory(reloaded); err != nil {
		return false, err
	}
	return true, nil
}

func dirExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}

func dirEmpty(path string) (bool, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, vderrors.IOError("read directory", err).WithContext("dir", path)
	}
	return len(entries) == 0, nil
}

func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o750)
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		in, err := os.Open(path) // #nosec G304 - paths are store-internal
		if err != nil {
			return err
		}
		defer in.Close()
		if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
			return err
		}
		out, err := os.Create(target) // #nosec G304
		if err != nil {
			return err
		}
		defer out.Close()
		if _, err := io.Copy(out, in); err != nil {
			return err
		}
		return out.Close()
	})
}

// CompiledFileName returns the merged markdown filename for a language.
func CompiledFileName(language string) string {
	return "manual_" + strings.ToLower(language) + ".md"
}
