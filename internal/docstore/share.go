package docstore

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	vderrors "github.com/stubborncoder/vdocs/internal/errors"
)

// NewShareToken returns a 256-bit cryptographically random URL-safe token.
func NewShareToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", vderrors.InternalError("generate share token").WithContext("cause", err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// CreateShare issues a share token for one language of a document. Any
// previous token is replaced, which revokes it.
func (s *Store) CreateShare(docID, language string) (string, error) {
	token, err := NewShareToken()
	if err != nil {
		return "", err
	}

	err = s.UpdateMetadata(docID, func(meta *Metadata) {
		meta.Share = &Share{
			Token:     token,
			Language:  language,
			CreatedAt: time.Now().UTC(),
		}
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// ResolveShare maps a token to (doc_id, language) within this user's
// documents. The third return is false when no document carries the token.
func (s *Store) ResolveShare(token string) (docID, language string, ok bool) {
	ids, err := s.ListDocs()
	if err != nil {
		return "", "", false
	}
	for _, id := range ids {
		meta, err := s.GetMetadata(id)
		if err != nil || meta == nil || meta.Share == nil {
			continue
		}
		if meta.Share.Token == token {
			return id, meta.Share.Language, true
		}
	}
	return "", "", false
}

// RevokeShare removes the document's share token. It returns false when no
// share was active.
func (s *Store) RevokeShare(docID string) (bool, error) {
	meta, err := s.GetMetadata(docID)
	if err != nil {
		return false, err
	}
	if meta == nil {
		return false, vderrors.NotFound("document metadata not found").WithContext("doc_id", docID)
	}
	if meta.Share == nil {
		return false, nil
	}

	err = s.UpdateMetadata(docID, func(m *Metadata) { m.Share = nil })
	if err != nil {
		return false, err
	}
	return true, nil
}
