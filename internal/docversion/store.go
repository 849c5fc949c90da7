// Package docversion implements hybrid versioning over document working
// state: an automatic patch bump before every overwrite, explicit
// minor/major bumps, restore, structural diff, and snapshot GC. Snapshots
// reference screenshots through blob-store manifests, so retaining many
// versions costs metadata, not image bytes.
package docversion

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/stubborncoder/vdocs/internal/blobstore"
	"github.com/stubborncoder/vdocs/internal/docstore"
	vderrors "github.com/stubborncoder/vdocs/internal/errors"
	"github.com/stubborncoder/vdocs/internal/lock"
	"github.com/stubborncoder/vdocs/internal/semver"
)

// BumpKind selects the component bumped by an explicit version bump.
// Patch bumps are only ever produced by AutoPatch.
type BumpKind string

const (
	BumpMinor BumpKind = "minor"
	BumpMajor BumpKind = "major"
)

const metadataSnapshotName = "metadata_snapshot.json"

// Store versions a single document.
type Store struct {
	docs  *docstore.Store
	docID string
	blobs *blobstore.Store
}

// New creates a version store for one document.
func New(docs *docstore.Store, docID string) *Store {
	return &Store{
		docs:  docs,
		docID: docID,
		blobs: docs.Blobs(docID),
	}
}

// Info describes one version of the document.
type Info struct {
	Version     string    `json:"version"`
	IsCurrent   bool      `json:"is_current"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	SnapshotDir string    `json:"snapshot_dir,omitempty"`
	Notes       string    `json:"notes,omitempty"`
}

func (s *Store) docDir() string {
	return s.docs.DocDir(s.docID)
}

func (s *Store) versionsDir() string {
	return filepath.Join(s.docDir(), "versions")
}

func (s *Store) snapshotDir(version semver.Version) string {
	return filepath.Join(s.versionsDir(), "v"+version.String())
}

// currentVersion reads the document's current version number.
func (s *Store) currentVersion() (semver.Version, *docstore.Metadata, error) {
	meta, err := s.docs.GetMetadata(s.docID)
	if err != nil {
		return semver.Version{}, nil, err
	}
	if meta == nil {
		return semver.Version{}, nil, vderrors.NotFound("document metadata not found").
			WithContext("doc_id", s.docID)
	}

	v, err := semver.Parse(meta.Version.Number)
	if err != nil {
		// Unparseable version numbers reset to the initial version rather
		// than blocking the document.
		v = semver.Initial
	}
	return v, meta, nil
}

// hasWorkingContent reports whether any language has working content.
func (s *Store) hasWorkingContent() bool {
	langs, err := s.docs.Languages(s.docID)
	if err == nil && len(langs) > 0 {
		return true
	}
	_, err = os.Stat(filepath.Join(s.docDir(), docstore.ContentFileName))
	return err == nil
}

// AutoPatch snapshots the current working state and bumps the patch
// component. It is called before any write that would overwrite working
// content. When the working directory has no content it returns "" and
// mutates nothing. Otherwise it returns the new current version string.
func (s *Store) AutoPatch(notes string) (string, error) {
	if !s.hasWorkingContent() {
		return "", nil
	}

	current, _, err := s.currentVersion()
	if err != nil {
		return "", err
	}

	next := current.BumpPatch()
	if err := s.snapshotAndAdvance(current, next, notes); err != nil {
		return "", err
	}
	return next.String(), nil
}

// Bump snapshots the current state and bumps the requested component.
// Requesting a patch bump is an input error; patch bumps only happen
// implicitly through AutoPatch. The document's advisory lock is held for
// the duration; a concurrent run makes this fail with a conflict.
func (s *Store) Bump(kind BumpKind, notes string) (string, error) {
	docLock, err := lock.Acquire(s.docDir())
	if err != nil {
		return "", err
	}
	defer func() { _ = docLock.Unlock() }()

	current, _, err := s.currentVersion()
	if err != nil {
		return "", err
	}

	var next semver.Version
	switch kind {
	case BumpMinor:
		next = current.BumpMinor()
	case BumpMajor:
		next = current.BumpMajor()
	default:
		return "", vderrors.ValidationError("bump kind must be minor or major").
			WithContext("kind", string(kind))
	}

	if err := s.snapshotAndAdvance(current, next, notes); err != nil {
		return "", err
	}
	return next.String(), nil
}

// snapshotAndAdvance writes the snapshot for the pre-bump version, appends
// the history entry, and advances the current version number. The snapshot
// is named after the version it is, not the next one.
func (s *Store) snapshotAndAdvance(current, next semver.Version, notes string) error {
	snapDir := s.snapshotDir(current)
	if err := os.MkdirAll(snapDir, 0o750); err != nil {
		return vderrors.IOError("create snapshot directory", err).WithContext("version", current.String())
	}

	// Per-language content, canonical filename on write.
	langs, err := s.docs.Languages(s.docID)
	if err != nil {
		return err
	}
	for _, lang := range langs {
		text, ok, err := s.docs.GetContent(s.docID, lang)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		langDir := filepath.Join(snapDir, lang)
		if err := os.MkdirAll(langDir, 0o750); err != nil {
			return vderrors.IOError("create snapshot language directory", err)
		}
		if err := os.WriteFile(filepath.Join(langDir, docstore.ContentFileName), []byte(text), 0o600); err != nil {
			return vderrors.IOError("write snapshot content", err).WithContext("language", lang)
		}
	}

	// Screenshot manifest via the blob store; the snapshot holds no image
	// bytes of its own.
	manifest, err := s.blobs.Snapshot(s.docs.ScreenshotsDir(s.docID))
	if err != nil {
		return err
	}
	if err := blobstore.WriteManifest(filepath.Join(snapDir, blobstore.ManifestName), manifest); err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := s.writeMetadataSnapshot(snapDir, current, now, notes); err != nil {
		return err
	}

	relSnapDir := filepath.Join("versions", "v"+current.String())
	return s.docs.UpdateMetadata(s.docID, func(meta *docstore.Metadata) {
		meta.Version.History = append(meta.Version.History, docstore.HistoryEntry{
			Version:     current.String(),
			CreatedAt:   now,
			SnapshotDir: relSnapDir,
			Notes:       notes,
		})
		meta.Version.Number = next.String()
	})
}

// metadataSnapshot is the snapshot-local copy of document metadata, with the
// mutable version subtree filtered out.
type metadataSnapshot struct {
	Version   string         `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
	Notes     string         `json:"notes"`
	Metadata  map[string]any `json:"metadata"`
}

func (s *Store) writeMetadataSnapshot(snapDir string, version semver.Version, at time.Time, notes string) error {
	meta, err := s.docs.GetMetadata(s.docID)
	if err != nil {
		return err
	}

	filtered := map[string]any{}
	if meta != nil {
		raw, err := json.Marshal(meta)
		if err != nil {
			return vderrors.InternalError("marshal metadata for snapshot").WithContext("cause", err.Error())
		}
		if err := json.Unmarshal(raw, &filtered); err != nil {
			return vderrors.InternalError("reshape metadata for snapshot").WithContext("cause", err.Error())
		}
		delete(filtered, "version")
	}

	snap := metadataSnapshot{
		Version:   version.String(),
		CreatedAt: at,
		Notes:     notes,
		Metadata:  filtered,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return vderrors.InternalError("marshal metadata snapshot").WithContext("cause", err.Error())
	}
	if err := os.WriteFile(filepath.Join(snapDir, metadataSnapshotName), data, 0o600); err != nil {
		return vderrors.IOError("write metadata snapshot", err)
	}
	return nil
}

// List returns the current version followed by history entries newest-first.
func (s *Store) List() ([]Info, error) {
	current, meta, err := s.currentVersion()
	if err != nil {
		return nil, err
	}

	infos := []Info{{Version: current.String(), IsCurrent: true}}
	history := meta.Version.History
	for i := len(history) - 1; i >= 0; i-- {
		entry := history[i]
		infos = append(infos, Info{
			Version:     entry.Version,
			CreatedAt:   entry.CreatedAt,
			SnapshotDir: entry.SnapshotDir,
			Notes:       entry.Notes,
		})
	}
	return infos, nil
}

// Get returns the Info for a version, or nil when the version is neither
// current nor in history.
func (s *Store) Get(version string) (*Info, error) {
	infos, err := s.List()
	if err != nil {
		return nil, err
	}
	for i := range infos {
		if infos[i].Version == version {
			return &infos[i], nil
		}
	}
	return nil, nil
}

// Restore overwrites the working content for one language from a past
// snapshot, after auto-patching the state being replaced. Restoring the
// current version is a no-op that returns true. A missing snapshot
// directory returns false without mutating. The document's advisory lock
// is held for the duration.
func (s *Store) Restore(version, language string) (bool, error) {
	docLock, err := lock.Acquire(s.docDir())
	if err != nil {
		return false, err
	}
	defer func() { _ = docLock.Unlock() }()

	current, _, err := s.currentVersion()
	if err != nil {
		return false, err
	}
	if version == current.String() {
		return true, nil
	}

	target, err := semver.Parse(version)
	if err != nil {
		return false, err
	}
	snapDir := s.snapshotDir(target)
	if st, serr := os.Stat(snapDir); serr != nil || !st.IsDir() {
		return false, nil
	}

	if _, err := s.AutoPatch("auto-save before restoring v" + version); err != nil {
		return false, err
	}

	// Content: snapshots written by the current layout use doc.md; older
	// snapshots may carry manual.md.
	var content []byte
	for _, name := range []string{docstore.ContentFileName, "manual.md"} {
		data, rerr := os.ReadFile(filepath.Join(snapDir, language, name)) // #nosec G304
		if rerr == nil {
			content = data
			break
		}
	}
	if content != nil {
		if err := s.docs.PutContent(s.docID, language, string(content)); err != nil {
			return false, err
		}
	}

	// Screenshots: manifest-based for current-format snapshots, raw copy
	// for snapshots predating the blob store.
	manifestPath := filepath.Join(snapDir, blobstore.ManifestName)
	if _, serr := os.Stat(manifestPath); serr == nil {
		manifest, err := blobstore.ReadManifest(manifestPath)
		if err != nil {
			return false, err
		}
		if _, err := s.blobs.Restore(manifest, s.docs.ScreenshotsDir(s.docID), true); err != nil {
			return false, err
		}
	} else if legacyShots := filepath.Join(snapDir, "screenshots"); dirExists(legacyShots) {
		if err := copyDirFiles(legacyShots, s.docs.ScreenshotsDir(s.docID)); err != nil {
			return false, err
		}
	}

	return true, nil
}

// GC deletes the oldest snapshot directories beyond keepCount, purges the
// corresponding history entries, and runs blob GC.
func (s *Store) GC(keepCount int) error {
	if keepCount < 0 {
		return vderrors.ValidationError("keep count must be non-negative")
	}

	_, meta, err := s.currentVersion()
	if err != nil {
		return err
	}

	history := meta.Version.History
	if len(history) <= keepCount {
		return nil
	}

	// History is append-ordered oldest first.
	pruned := history[:len(history)-keepCount]
	for _, entry := range pruned {
		v, perr := semver.Parse(entry.Version)
		if perr != nil {
			continue
		}
		if err := os.RemoveAll(s.snapshotDir(v)); err != nil {
			return vderrors.IOError("remove snapshot", err).WithContext("version", entry.Version)
		}
	}

	kept := make([]docstore.HistoryEntry, len(history)-len(pruned))
	copy(kept, history[len(pruned):])
	if err := s.docs.UpdateMetadata(s.docID, func(m *docstore.Metadata) {
		m.Version.History = kept
	}); err != nil {
		return err
	}

	_, err = s.blobs.GC(false)
	return err
}

func dirExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}

func copyDirFiles(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return vderrors.IOError("read legacy screenshots", err).WithContext("dir", src)
	}
	if err := os.MkdirAll(dst, 0o750); err != nil {
		return vderrors.IOError("create screenshots directory", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(src, entry.Name())) // #nosec G304
		if err != nil {
			return vderrors.IOError("read legacy screenshot", err).WithContext("name", entry.Name())
		}
		if err := os.WriteFile(filepath.Join(dst, entry.Name()), data, 0o600); err != nil {
			return vderrors.IOError("write restored screenshot", err).WithContext("name", entry.Name())
		}
	}
	return nil
}
