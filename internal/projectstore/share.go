package projectstore

import (
	"time"

	"github.com/stubborncoder/vdocs/internal/docstore"
	vderrors "github.com/stubborncoder/vdocs/internal/errors"
)

// CreateShare mints a share token for a project's compiled output in one
// language. An existing share is replaced.
func (s *Store) CreateShare(projectID, language string) (string, error) {
	token, err := docstore.NewShareToken()
	if err != nil {
		return "", err
	}
	_, err = s.mutate(projectID, func(project *Project) error {
		project.Share = &docstore.Share{Token: token, Language: language, CreatedAt: time.Now().UTC()}
		return nil
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// ResolveShare finds the project a token points at.
func (s *Store) ResolveShare(token string) (projectID, language string, ok bool) {
	projects, err := s.ListProjects()
	if err != nil {
		return "", "", false
	}
	for _, project := range projects {
		if project.Share != nil && project.Share.Token == token {
			return project.ID, project.Share.Language, true
		}
	}
	return "", "", false
}

// RevokeShare removes a project's share. It reports whether one existed.
func (s *Store) RevokeShare(projectID string) (bool, error) {
	existed := false
	_, err := s.mutate(projectID, func(project *Project) error {
		existed = project.Share != nil
		project.Share = nil
		return nil
	})
	if err != nil {
		if vderrors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return existed, nil
}
