package docstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	vderrors "github.com/stubborncoder/vdocs/internal/errors"
)

// MetadataFileName is the canonical per-document metadata file.
const MetadataFileName = "metadata.json"

// Metadata is the canonical document metadata (metadata.json).
type Metadata struct {
	Title     string      `json:"title"`
	Video     string      `json:"video,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	Version   VersionInfo `json:"version"`
	Tags      []string    `json:"tags,omitempty"`
	ProjectID string      `json:"project_id,omitempty"`
	ChapterID string      `json:"chapter_id,omitempty"`
	Share     *Share      `json:"share,omitempty"`
}

// VersionInfo tracks the current version number and the history of past
// versions.
type VersionInfo struct {
	Number  string         `json:"number"`
	History []HistoryEntry `json:"history"`
}

// HistoryEntry records one past version and its on-disk snapshot.
type HistoryEntry struct {
	Version     string    `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	SnapshotDir string    `json:"snapshot_dir"`
	Notes       string    `json:"notes"`
}

// Share records an active share token for one language of the document.
type Share struct {
	Token     string    `json:"token"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"created_at"`
}

// HasTag reports whether the document carries the given tag.
func (m *Metadata) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Touch advances UpdatedAt, guaranteeing a strictly greater timestamp even
// when successive mutations land within clock resolution.
func (m *Metadata) Touch() {
	now := time.Now().UTC()
	if !now.After(m.UpdatedAt) {
		now = m.UpdatedAt.Add(time.Millisecond)
	}
	m.UpdatedAt = now
}

// readMetadataFile loads a metadata.json. Missing or malformed files return
// nil so that partial user data never blocks the whole system.
func readMetadataFile(path string) (*Metadata, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is store-internal
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, vderrors.IOError("read metadata", err).WithContext("path", path)
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, nil // corrupt metadata reads as absent
	}
	return &meta, nil
}

// writeMetadataFile persists metadata as UTF-8 JSON with 2-space indent.
func writeMetadataFile(path string, meta *Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return vderrors.InternalError("marshal metadata").WithContext("cause", err.Error())
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return vderrors.IOError("create document directory", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return vderrors.IOError("write metadata", err).WithContext("path", path)
	}
	return nil
}
