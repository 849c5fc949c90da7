// Package blobstore provides per-document content-addressable storage for
// screenshot assets. Blobs are stored once under `.blob_store/` keyed by a
// truncated SHA-256, and version snapshots reference them through JSON
// manifests instead of copying image bytes.
package blobstore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	vderrors "github.com/stubborncoder/vdocs/internal/errors"
)

// HashLen is the number of hex characters kept from the SHA-256 digest.
// 64 bits of collision resistance is plenty for per-document blob sets.
const HashLen = 16

// StoreDirName is the blob directory name under a document directory.
const StoreDirName = ".blob_store"

// ManifestName is the snapshot manifest filename.
const ManifestName = "screenshots.json"

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// IsImageFile reports whether filename has a recognized image extension.
func IsImageFile(filename string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Entry describes one snapshotted screenshot in a manifest.
type Entry struct {
	Hash       string    `json:"hash"`
	SizeBytes  int64     `json:"size_bytes"`
	CapturedAt time.Time `json:"captured_at"`
}

// Manifest maps original screenshot filenames to blob entries.
type Manifest map[string]Entry

// Store is a content-addressable blob store rooted inside one document
// directory. It is append-only from the perspective of a run; GC runs only
// when no run references the document.
type Store struct {
	docDir string
}

// New returns a Store for the given document directory. The blob directory
// is created lazily on first write.
func New(docDir string) *Store {
	return &Store{docDir: docDir}
}

// Dir returns the blob directory path.
func (s *Store) Dir() string {
	return filepath.Join(s.docDir, StoreDirName)
}

// Store copies the file at path into the blob store and returns its hash.
// If a blob with the same hash already exists the copy is skipped.
func (s *Store) Store(path string) (string, error) {
	hash, _, err := hashFile(path)
	if err != nil {
		return "", vderrors.IOError("hash source file", err).WithContext("path", path)
	}

	if s.Exists(hash) {
		return hash, nil
	}

	if err := os.MkdirAll(s.Dir(), 0o750); err != nil {
		return "", vderrors.IOError("create blob directory", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	dest := filepath.Join(s.Dir(), hash+ext)
	if err := copyFile(path, dest); err != nil {
		return "", vderrors.IOError("copy blob", err).WithContext("hash", hash)
	}

	return hash, nil
}

// Exists reports whether a blob with the given hash is present, under any
// extension.
func (s *Store) Exists(hash string) bool {
	_, ok := s.blobPath(hash)
	return ok
}

// blobPath locates the stored file for a hash, tolerating any of the
// recognized extensions.
func (s *Store) blobPath(hash string) (string, bool) {
	for ext := range imageExtensions {
		p := filepath.Join(s.Dir(), hash+ext)
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

// Snapshot stores every image file in sourceDir and returns the manifest for
// a version snapshot. Non-image files are skipped silently. A missing source
// directory yields an empty manifest.
func (s *Store) Snapshot(sourceDir string) (Manifest, error) {
	manifest := make(Manifest)

	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		if os.IsNotExist(err) {
			return manifest, nil
		}
		return nil, vderrors.IOError("read screenshots directory", err).WithContext("dir", sourceDir)
	}

	for _, entry := range entries {
		if entry.IsDir() || !IsImageFile(entry.Name()) {
			continue
		}
		src := filepath.Join(sourceDir, entry.Name())

		hash, err := s.Store(src)
		if err != nil {
			return nil, err
		}

		info, err := entry.Info()
		if err != nil {
			return nil, vderrors.IOError("stat screenshot", err).WithContext("path", src)
		}

		manifest[entry.Name()] = Entry{
			Hash:       hash,
			SizeBytes:  info.Size(),
			CapturedAt: info.ModTime().UTC(),
		}
	}

	return manifest, nil
}

// Restore materializes the manifest's files in destDir and returns the
// filenames restored. Missing blobs are logged and skipped, not fatal.
// Existing destination files are kept unless overwrite is set.
func (s *Store) Restore(manifest Manifest, destDir string, overwrite bool) ([]string, error) {
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return nil, vderrors.IOError("create restore directory", err).WithContext("dir", destDir)
	}

	restored := make([]string, 0, len(manifest))
	for filename, entry := range manifest {
		dest := filepath.Join(destDir, filename)
		if !overwrite {
			if _, err := os.Stat(dest); err == nil {
				continue
			}
		}

		src, ok := s.blobPath(entry.Hash)
		if !ok {
			slog.Warn("Blob missing during restore", "hash", entry.Hash, "filename", filename)
			continue
		}
		if err := copyFile(src, dest); err != nil {
			return restored, vderrors.IOError("restore blob", err).WithContext("filename", filename)
		}
		restored = append(restored, filename)
	}

	sort.Strings(restored)
	return restored, nil
}

// LiveHashes returns the union of hashes referenced by every version
// manifest under the document and the hashes of the current working
// screenshots.
func (s *Store) LiveHashes() (map[string]bool, error) {
	live := make(map[string]bool)

	// Version manifests.
	versionsDir := filepath.Join(s.docDir, "versions")
	versionDirs, err := os.ReadDir(versionsDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, vderrors.IOError("read versions directory", err)
	}
	for _, vd := range versionDirs {
		if !vd.IsDir() {
			continue
		}
		manifest, err := ReadManifest(filepath.Join(versionsDir, vd.Name(), ManifestName))
		if err != nil {
			continue // corrupt manifests are treated as absent
		}
		for _, entry := range manifest {
			live[entry.Hash] = true
		}
	}

	// Working screenshots.
	workDir := filepath.Join(s.docDir, "screenshots")
	entries, err := os.ReadDir(workDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, vderrors.IOError("read screenshots directory", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !IsImageFile(entry.Name()) {
			continue
		}
		hash, _, err := hashFile(filepath.Join(workDir, entry.Name()))
		if err != nil {
			continue
		}
		live[hash] = true
	}

	return live, nil
}

// GC removes blobs not in LiveHashes and returns the hashes removed.
// With dryRun set it returns the same list without deleting.
func (s *Store) GC(dryRun bool) ([]string, error) {
	live, err := s.LiveHashes()
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, vderrors.IOError("read blob directory", err)
	}

	var removed []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		hash := strings.TrimSuffix(name, filepath.Ext(name))
		if live[hash] {
			continue
		}
		removed = append(removed, hash)
		if !dryRun {
			if err := os.Remove(filepath.Join(s.Dir(), name)); err != nil {
				return removed, vderrors.IOError("remove blob", err).WithContext("hash", hash)
			}
		}
	}

	sort.Strings(removed)
	return removed, nil
}

// ReadManifest loads a screenshots.json manifest. A missing file returns an
// empty manifest; malformed JSON is an error.
func ReadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is store-internal
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, nil
		}
		return nil, vderrors.IOError("read manifest", err).WithContext("path", path)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, vderrors.IOError("parse manifest", err).WithContext("path", path)
	}
	return manifest, nil
}

// WriteManifest persists a manifest as 2-space-indented JSON.
func WriteManifest(path string, manifest Manifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return vderrors.InternalError("marshal manifest").WithContext("cause", err.Error())
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return vderrors.IOError("write manifest", err).WithContext("path", path)
	}
	return nil
}

func hashFile(path string) (hash string, size int64, err error) {
	f, err := os.Open(path) // #nosec G304 - path is store-internal
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil))[:HashLen], n, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 - paths are store-internal
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst) // #nosec G304
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
