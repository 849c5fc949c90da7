// Package share resolves share tokens across all users. Tokens are 256-bit
// randoms rendered URL-safe; a token points at either one document language
// or one project's compiled output. Resolution is read-only.
package share

import (
	"encoding/base64"
	"os"
	"path/filepath"

	"github.com/stubborncoder/vdocs/internal/docstore"
	vderrors "github.com/stubborncoder/vdocs/internal/errors"
	"github.com/stubborncoder/vdocs/internal/projectstore"
)

// Scope says what kind of target a token resolves to.
type Scope string

const (
	ScopeDocument Scope = "document"
	ScopeProject  Scope = "project"
)

// Target is the resolved owner and object of a token.
type Target struct {
	Scope     Scope
	UserID    string
	DocID     string
	ProjectID string
	Language  string
}

// Resolver locates share targets. The scan implementation walks every
// user's metadata; a reverse index can replace it without changing
// consumers.
type Resolver interface {
	Resolve(token string) (*Target, error)
}

// tokenLen is the URL-safe base64 length of 32 random bytes.
const tokenLen = 43

// ValidateToken rejects tokens with the wrong shape before any scan.
func ValidateToken(token string) error {
	if len(token) != tokenLen {
		return vderrors.ValidationError("malformed share token")
	}
	if _, err := base64.RawURLEncoding.DecodeString(token); err != nil {
		return vderrors.ValidationError("malformed share token")
	}
	return nil
}

// ScanResolver scans all users under the data directory.
type ScanResolver struct {
	usersDir string
}

// NewScanResolver creates a resolver over the users directory.
func NewScanResolver(usersDir string) *ScanResolver {
	return &ScanResolver{usersDir: usersDir}
}

// Resolve finds the token's target, returning a not-found error when no
// user holds it.
func (r *ScanResolver) Resolve(token string) (*Target, error) {
	if err := ValidateToken(token); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(r.usersDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, vderrors.NotFound("share token not found")
		}
		return nil, vderrors.IOError("read users directory", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		userID := entry.Name()
		userDir := filepath.Join(r.usersDir, userID)
		docs := docstore.New(userID, userDir)

		if docID, language, ok := docs.ResolveShare(token); ok {
			return &Target{Scope: ScopeDocument, UserID: userID, DocID: docID, Language: language}, nil
		}

		projects := projectstore.New(userDir, docs)
		if projectID, language, ok := projects.ResolveShare(token); ok {
			return &Target{Scope: ScopeProject, UserID: userID, ProjectID: projectID, Language: language}, nil
		}
	}
	return nil, vderrors.NotFound("share token not found")
}
