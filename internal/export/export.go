// Package export publishes compiled output into a local git repository so
// every published state is retrievable by commit. The repository lives in
// the project's exports directory and is created on first publish.
package export

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	vderrors "github.com/stubborncoder/vdocs/internal/errors"
)

// CommitInfo is one published state.
type CommitInfo struct {
	Hash    string    `json:"hash"`
	Message string    `json:"message"`
	When    time.Time `json:"when"`
}

// Publisher commits snapshots of compiled output into one repository.
type Publisher struct {
	repoDir string
}

// New creates a publisher rooted at repoDir.
func New(repoDir string) *Publisher {
	return &Publisher{repoDir: repoDir}
}

// openOrInit opens the export repository, initializing it on first use.
func (p *Publisher) openOrInit() (*git.Repository, error) {
	repo, err := git.PlainOpen(p.repoDir)
	if err == nil {
		return repo, nil
	}
	if err != git.ErrRepositoryNotExists {
		return nil, vderrors.DependencyError("open export repository", err, false)
	}
	if mkErr := os.MkdirAll(p.repoDir, 0o750); mkErr != nil {
		return nil, vderrors.IOError("create export directory", mkErr)
	}
	repo, err = git.PlainInit(p.repoDir, false)
	if err != nil {
		return nil, vderrors.DependencyError("init export repository", err, false)
	}
	return repo, nil
}

// Publish copies sourceDir's files into the repository and commits them.
// It returns the new commit hash, or "" when nothing changed since the
// last publish.
func (p *Publisher) Publish(sourceDir, message string) (string, error) {
	repo, err := p.openOrInit()
	if err != nil {
		return "", err
	}

	if err := copyTreeInto(sourceDir, p.repoDir); err != nil {
		return "", err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return "", vderrors.DependencyError("open export worktree", err, false)
	}
	if err := worktree.AddGlob("."); err != nil {
		return "", vderrors.DependencyError("stage export files", err, false)
	}

	status, err := worktree.Status()
	if err != nil {
		return "", vderrors.DependencyError("read export status", err, false)
	}
	if status.IsClean() {
		return "", nil
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "vdocs",
			Email: "vdocs@localhost",
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", vderrors.DependencyError("commit export", err, false)
	}
	return hash.String(), nil
}

// History lists published states, newest first, up to limit (0 = all).
func (p *Publisher) History(limit int) ([]CommitInfo, error) {
	repo, err := git.PlainOpen(p.repoDir)
	if err != nil {
		if err == git.ErrRepositoryNotExists {
			return nil, nil
		}
		return nil, vderrors.DependencyError("open export repository", err, false)
	}

	iter, err := repo.Log(&git.LogOptions{})
	if err != nil {
		return nil, vderrors.DependencyError("read export log", err, false)
	}
	defer iter.Close()

	var commits []CommitInfo
	err = iter.ForEach(func(c *object.Commit) error {
		commits = append(commits, CommitInfo{
			Hash:    c.Hash.String(),
			Message: c.Message,
			When:    c.Author.When,
		})
		if limit > 0 && len(commits) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && err != io.EOF {
		return nil, vderrors.DependencyError("iterate export log", err, false)
	}
	return commits, nil
}

// copyTreeInto copies every regular file under src into dst, preserving
// relative paths and skipping git internals.
func copyTreeInto(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return vderrors.IOError("walk export source", err)
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return vderrors.IOError("resolve export path", err)
		}
		if rel == "." || rel == ".git" || strings.HasPrefix(rel, ".git"+string(filepath.Separator)) {
			return nil
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			if err := os.MkdirAll(target, 0o750); err != nil {
				return vderrors.IOError("create export subdirectory", err)
			}
			return nil
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 - paths are store-internal
	if err != nil {
		return vderrors.IOError("open export source file", err)
	}
	defer in.Close()

	out, err := os.Create(dst) // #nosec G304
	if err != nil {
		return vderrors.IOError("create export file", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return vderrors.IOError("copy export file", err)
	}
	return out.Close()
}
