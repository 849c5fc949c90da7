package projectstore

import (
	"sort"
	"strings"

	"github.com/stubborncoder/vdocs/internal/docstore"
	vderrors "github.com/stubborncoder/vdocs/internal/errors"
)

// Tags live in each document's metadata; the index is a scan over the
// user's docs. Tag names are case-insensitive and stored lowercased.

func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// AddTagToDoc adds a tag to a document, ignoring duplicates.
func (s *Store) AddTagToDoc(docID, tag string) error {
	tag = normalizeTag(tag)
	if tag == "" {
		return vderrors.ValidationError("tag must not be empty")
	}
	return s.docs.UpdateMetadata(docID, func(meta *docstore.Metadata) {
		if meta.HasTag(tag) {
			return
		}
		meta.Tags = append(meta.Tags, tag)
		sort.Strings(meta.Tags)
	})
}

// RemoveTagFromDoc removes a tag from a document. Removing an absent tag is
// a no-op.
func (s *Store) RemoveTagFromDoc(docID, tag string) error {
	tag = normalizeTag(tag)
	return s.docs.UpdateMetadata(docID, func(meta *docstore.Metadata) {
		for i, existing := range meta.Tags {
			if existing == tag {
				meta.Tags = append(meta.Tags[:i], meta.Tags[i+1:]...)
				return
			}
		}
	})
}

// ListAllTags returns every tag used by any of the user's documents, sorted.
func (s *Store) ListAllTags() ([]string, error) {
	docIDs, err := s.docs.ListDocs()
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	for _, docID := range docIDs {
		meta, err := s.docs.GetMetadata(docID)
		if err != nil || meta == nil {
			continue
		}
		for _, tag := range meta.Tags {
			seen[tag] = true
		}
	}

	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags, nil
}

// DocsByTag returns the ids of documents carrying the tag, sorted.
func (s *Store) DocsByTag(tag string) ([]string, error) {
	tag = normalizeTag(tag)
	docIDs, err := s.docs.ListDocs()
	if err != nil {
		return nil, err
	}

	var matched []string
	for _, docID := range docIDs {
		meta, err := s.docs.GetMetadata(docID)
		if err != nil || meta == nil {
			continue
		}
		if meta.HasTag(tag) {
			matched = append(matched, docID)
		}
	}
	sort.Strings(matched)
	return matched, nil
}
