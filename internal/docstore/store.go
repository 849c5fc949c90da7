// Package docstore manages the working (mutable) state of generated
// documents: per-language markdown content, screenshots, canonical metadata,
// and share tokens. Reads tolerate the historical layouts the system has
// migrated through; writes always use the current layout.
package docstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/stubborncoder/vdocs/internal/blobstore"
	vderrors "github.com/stubborncoder/vdocs/internal/errors"
	"github.com/stubborncoder/vdocs/internal/slug"
)

// ContentFileName is the canonical content filename written for each
// language.
const ContentFileName = "doc.md"

// legacyContentFileNames are accepted on read, newest layout first.
var legacyContentFileNames = []string{ContentFileName, "manual.md"}

// ConflictPolicy selects behavior when a slug already has a document.
type ConflictPolicy string

const (
	// ConflictReuse returns the existing document.
	ConflictReuse ConflictPolicy = "reuse"
	// ConflictNew picks the first unused numeric suffix.
	ConflictNew ConflictPolicy = "new"
)

// Store provides access to one user's documents.
type Store struct {
	userID  string
	userDir string
}

// New creates a Store rooted at the user's directory.
func New(userID, userDir string) *Store {
	return &Store{userID: userID, userDir: userDir}
}

// UserID returns the owning user id.
func (s *Store) UserID() string { return s.userID }

// DocsDir returns the directory holding all of the user's documents.
func (s *Store) DocsDir() string { return filepath.Join(s.userDir, "docs") }

// VideosDir returns the user's video directory.
func (s *Store) VideosDir() string { return filepath.Join(s.userDir, "videos") }

// DocDir returns the directory for one document.
func (s *Store) DocDir(docID string) string { return filepath.Join(s.DocsDir(), docID) }

// ScreenshotsDir returns the working screenshots directory for a document.
func (s *Store) ScreenshotsDir(docID string) string {
	return filepath.Join(s.DocDir(docID), "screenshots")
}

// Blobs returns the content-addressable blob store for a document.
func (s *Store) Blobs(docID string) *blobstore.Store {
	return blobstore.New(s.DocDir(docID))
}

// CreateDoc derives a document id from the video stem and creates the
// document directory with initial metadata. With ConflictReuse an existing
// document for the slug is returned as-is; with ConflictNew the first unused
// numeric suffix is chosen.
func (s *Store) CreateDoc(videoName string, policy ConflictPolicy) (docDir, docID string, err error) {
	base := slug.Stem(videoName)

	docID = base
	if s.docExists(docID) {
		switch policy {
		case ConflictReuse:
			return s.DocDir(docID), docID, nil
		case ConflictNew:
			for i := 2; ; i++ {
				candidate := fmt.Sprintf("%s-%d", base, i)
				if !s.docExists(candidate) {
					docID = candidate
					break
				}
			}
		default:
			return "", "", vderrors.ValidationError("unknown conflict policy").
				WithContext("policy", string(policy))
		}
	}

	docDir = s.DocDir(docID)
	if err := os.MkdirAll(filepath.Join(docDir, "screenshots"), 0o750); err != nil {
		return "", "", vderrors.IOError("create document directory", err).WithContext("doc_id", docID)
	}

	now := time.Now().UTC()
	meta := &Metadata{
		Title:     strings.TrimSuffix(videoName, filepath.Ext(videoName)),
		Video:     videoName,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   VersionInfo{Number: "1.0.0", History: []HistoryEntry{}},
	}
	if err := writeMetadataFile(filepath.Join(docDir, MetadataFileName), meta); err != nil {
		return "", "", err
	}

	return docDir, docID, nil
}

func (s *Store) docExists(docID string) bool {
	st, err := os.Stat(s.DocDir(docID))
	return err == nil && st.IsDir()
}

// PutContent writes the markdown body for a language using the current
// layout. The document directory must already exist.
func (s *Store) PutContent(docID, language, text string) error {
	docDir := s.DocDir(docID)
	if !s.docExists(docID) {
		return vderrors.NotFound("document not found").WithContext("doc_id", docID)
	}

	langDir := filepath.Join(docDir, language)
	if err := os.MkdirAll(langDir, 0o750); err != nil {
		return vderrors.IOError("create language directory", err).WithContext("language", language)
	}
	if err := os.WriteFile(filepath.Join(langDir, ContentFileName), []byte(text), 0o600); err != nil {
		return vderrors.IOError("write content", err).WithContext("doc_id", docID)
	}
	return nil
}

// GetContent returns the markdown body for a language, tolerating the three
// historical layouts: {lang}/doc.md, {lang}/manual.md, and root-level
// doc.md. The second return is false when no layout matches.
func (s *Store) GetContent(docID, language string) (string, bool, error) {
	docDir := s.DocDir(docID)

	candidates := make([]string, 0, len(legacyContentFileNames)+1)
	for _, name := range legacyContentFileNames {
		candidates = append(candidates, filepath.Join(docDir, language, name))
	}
	candidates = append(candidates, filepath.Join(docDir, ContentFileName))

	for _, path := range candidates {
		data, err := os.ReadFile(path) // #nosec G304 - path is store-internal
		if err == nil {
			return string(data), true, nil
		}
		if !os.IsNotExist(err) {
			return "", false, vderrors.IOError("read content", err).WithContext("path", path)
		}
	}
	return "", false, nil
}

// Languages returns the sorted set of language codes that have content.
func (s *Store) Languages(docID string) ([]string, error) {
	entries, err := os.ReadDir(s.DocDir(docID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, vderrors.NotFound("document not found").WithContext("doc_id", docID)
		}
		return nil, vderrors.IOError("read document directory", err)
	}

	var langs []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		for _, name := range legacyContentFileNames {
			if _, err := os.Stat(filepath.Join(s.DocDir(docID), entry.Name(), name)); err == nil {
				langs = append(langs, entry.Name())
				break
			}
		}
	}
	sort.Strings(langs)
	return langs, nil
}

// Screenshots returns the paths of image files in the working screenshots
// directory.
func (s *Store) Screenshots(docID string) ([]string, error) {
	dir := s.ScreenshotsDir(docID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, vderrors.IOError("read screenshots directory", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !blobstore.IsImageFile(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// GetMetadata loads the document metadata. Missing documents and malformed
// JSON both return nil.
func (s *Store) GetMetadata(docID string) (*Metadata, error) {
	return readMetadataFile(filepath.Join(s.DocDir(docID), MetadataFileName))
}

// UpdateMetadata applies mutate to the document metadata under a
// read-modify-write cycle and refreshes updated_at.
func (s *Store) UpdateMetadata(docID string, mutate func(*Metadata)) error {
	meta, err := s.GetMetadata(docID)
	if err != nil {
		return err
	}
	if meta == nil {
		return vderrors.NotFound("document metadata not found").WithContext("doc_id", docID)
	}

	mutate(meta)
	meta.Touch()
	return writeMetadataFile(filepath.Join(s.DocDir(docID), MetadataFileName), meta)
}

// ListDocs returns the sorted ids of all documents.
func (s *Store) ListDocs() ([]string, error) {
	entries, err := os.ReadDir(s.DocsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, vderrors.IOError("read docs directory", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			ids = append(ids, entry.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// FindByVideo returns the id of the document generated from the given video
// file, matching on recorded metadata first and the slug candidates second.
func (s *Store) FindByVideo(videoName string) (string, bool) {
	ids, err := s.ListDocs()
	if err != nil {
		return "", false
	}
	for _, id := range ids {
		meta, err := s.GetMetadata(id)
		if err == nil && meta != nil && meta.Video == videoName {
			return id, true
		}
	}
	return s.FindExisting(videoName)
}

// FindExisting returns the slug-derived document id for a video when such a
// directory already exists.
func (s *Store) FindExisting(videoName string) (string, bool) {
	base := slug.Stem(videoName)
	if s.docExists(base) {
		return base, true
	}
	return "", false
}

// DeleteDoc moves the document tree into the user's trash area, preserving
// versions for later recovery.
func (s *Store) DeleteDoc(docID string) error {
	if !s.docExists(docID) {
		return vderrors.NotFound("document not found").WithContext("doc_id", docID)
	}

	trashDir := filepath.Join(s.userDir, ".trash")
	if err := os.MkdirAll(trashDir, 0o750); err != nil {
		return vderrors.IOError("create trash directory", err)
	}

	dest := filepath.Join(trashDir, fmt.Sprintf("%s_%s", docID, time.Now().UTC().Format("20060102_150405")))
	if err := os.Rename(s.DocDir(docID), dest); err != nil {
		return vderrors.IOError("move document to trash", err).WithContext("doc_id", docID)
	}
	return nil
}
