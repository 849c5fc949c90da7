// Package projectstore manages project hierarchy: ordered chapters of
// documents, optional coarser sections, and the tag index. Each project is a
// directory under the user's projects/ tree holding a single project.json;
// every mutating operation validates fully before writing the file back.
package projectstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/stubborncoder/vdocs/internal/docstore"
	vderrors "github.com/stubborncoder/vdocs/internal/errors"
	"github.com/stubborncoder/vdocs/internal/slug"
)

const (
	// DefaultProjectID is created lazily and can never be deleted.
	DefaultProjectID = "__default__"

	// UncategorizedChapterTitle names the chapter docs land in when no
	// chapter is given.
	UncategorizedChapterTitle = "Uncategorized"

	projectFileName = "project.json"
	exportsDirName  = "exports"
)

// Chapter is an ordered group of documents. Order is 1-based and dense.
type Chapter struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Order       int      `json:"order"`
	DocIDs      []string `json:"doc_ids"`
}

// Section is an optional coarser grouping of chapters, same ordering rules.
type Section struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Order      int      `json:"order"`
	ChapterIDs []string `json:"chapter_ids"`
}

// Project is the persisted project.json.
type Project struct {
	ID              string          `json:"project_id"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	DefaultLanguage string          `json:"default_language,omitempty"`
	IsDefault       bool            `json:"is_default,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Chapters        []Chapter       `json:"chapters"`
	Sections        []Section       `json:"sections,omitempty"`
	Tags            []string        `json:"tags,omitempty"`
	TemplateID      string          `json:"template_id,omitempty"`
	ExportSettings  map[string]any  `json:"export_settings,omitempty"`
	Share           *docstore.Share `json:"share,omitempty"`
}

// Chapter returns the chapter with the given id, or nil.
func (p *Project) Chapter(chapterID string) *Chapter {
	for i := range p.Chapters {
		if p.Chapters[i].ID == chapterID {
			return &p.Chapters[i]
		}
	}
	return nil
}

// DocIDs returns every document id referenced by the project, in chapter
// order.
func (p *Project) DocIDs() []string {
	var ids []string
	for _, ch := range p.Chapters {
		ids = append(ids, ch.DocIDs...)
	}
	return ids
}

func (p *Project) touch() {
	now := time.Now().UTC()
	if !now.After(p.UpdatedAt) {
		now = p.UpdatedAt.Add(time.Millisecond)
	}
	p.UpdatedAt = now
}

// renumber restores the dense 1-based order on chapters and sections.
func (p *Project) renumber() {
	for i := range p.Chapters {
		p.Chapters[i].Order = i + 1
	}
	for i := range p.Sections {
		p.Sections[i].Order = i + 1
	}
}

// Store manages the projects of one user.
type Store struct {
	userDir string
	docs    *docstore.Store
}

// New creates a Store over the user's directory, using the doc store for
// back-reference and tag maintenance.
func New(userDir string, docs *docstore.Store) *Store {
	return &Store{userDir: userDir, docs: docs}
}

// ProjectsDir returns the root of the user's project tree.
func (s *Store) ProjectsDir() string { return filepath.Join(s.userDir, "projects") }

// ProjectDir returns the directory of one project.
// ExportsDir returns where published exports for one project live.
func (s *Store) ExportsDir(projectID string) string {
	return filepath.Join(s.ProjectDir(projectID), exportsDirName)
}

func (s *Store) ProjectDir(projectID string) string {
	return filepath.Join(s.ProjectsDir(), projectID)
}

func (s *Store) projectPath(projectID string) string {
	return filepath.Join(s.ProjectDir(projectID), projectFileName)
}

// CreateProject creates a project directory with project.json and exports/.
// Name collisions get a numeric suffix on the slug.
func (s *Store) CreateProject(name, description, defaultLanguage string) (string, error) {
	base := slug.Make(name)
	projectID := base
	for n := 2; s.projectExists(projectID); n++ {
		projectID = fmt.Sprintf("%s-%d", base, n)
	}

	now := time.Now().UTC()
	project := &Project{
		ID:              projectID,
		Name:            name,
		Description:     description,
		DefaultLanguage: defaultLanguage,
		CreatedAt:       now,
		UpdatedAt:       now,
		Chapters:        []Chapter{},
	}

	if err := os.MkdirAll(filepath.Join(s.ProjectDir(projectID), exportsDirName), 0o750); err != nil {
		return "", vderrors.IOError("create project directory", err)
	}
	if err := s.writeProject(project); err != nil {
		return "", err
	}
	return projectID, nil
}

// EnsureDefaultProject lazily creates the default project with an initial
// Uncategorized chapter. Repeated calls return the existing project.
func (s *Store) EnsureDefaultProject() (*Project, error) {
	project, err := s.GetProject(DefaultProjectID)
	if err == nil {
		return project, nil
	}
	if !vderrors.IsNotFound(err) {
		return nil, err
	}

	now := time.Now().UTC()
	project = &Project{
		ID:        DefaultProjectID,
		Name:      "Default",
		IsDefault: true,
		CreatedAt: now,
		UpdatedAt: now,
		Chapters: []Chapter{{
			ID:     slug.Make(UncategorizedChapterTitle),
			Title:  UncategorizedChapterTitle,
			Order:  1,
			DocIDs: []string{},
		}},
	}
	if err := os.MkdirAll(filepath.Join(s.ProjectDir(DefaultProjectID), exportsDirName), 0o750); err != nil {
		return nil, vderrors.IOError("create default project directory", err)
	}
	if err := s.writeProject(project); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *Store) projectExists(projectID string) bool {
	_, err := os.Stat(s.projectPath(projectID))
	return err == nil
}

// GetProject loads a project, returning a not-found error when absent.
func (s *Store) GetProject(projectID string) (*Project, error) {
	data, err := os.ReadFile(s.projectPath(projectID)) // #nosec G304 - path is store-internal
	if err != nil {
		if os.IsNotExist(err) {
			return nil, vderrors.NotFound("project not found").WithContext("project_id", projectID)
		}
		return nil, vderrors.IOError("read project", err)
	}
	var project Project
	if err := json.Unmarshal(data, &project); err != nil {
		return nil, vderrors.IOError("parse project", err).WithContext("project_id", projectID)
	}
	if project.Chapters == nil {
		project.Chapters = []Chapter{}
	}
	return &project, nil
}

// ListProjects returns all projects, default first, then by name.
func (s *Store) ListProjects() ([]*Project, error) {
	entries, err := os.ReadDir(s.ProjectsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, vderrors.IOError("read projects directory", err)
	}

	var projects []*Project
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		project, err := s.GetProject(entry.Name())
		if err != nil {
			continue
		}
		projects = append(projects, project)
	}
	sort.Slice(projects, func(i, j int) bool {
		if projects[i].IsDefault != projects[j].IsDefault {
			return projects[i].IsDefault
		}
		return projects[i].Name < projects[j].Name
	})
	return projects, nil
}

func (s *Store) writeProject(project *Project) error {
	data, err := json.MarshalIndent(project, "", "  ")
	if err != nil {
		return vderrors.InternalError("marshal project").WithContext("cause", err.Error())
	}
	if err := os.WriteFile(s.projectPath(project.ID), data, 0o600); err != nil {
		return vderrors.IOError("write project", err)
	}
	return nil
}

// mutate loads a project, applies fn, and persists only if fn succeeded.
// Ordering is renumbered and updated_at bumped on every successful write.
func (s *Store) mutate(projectID string, fn func(*Project) error) (*Project, error) {
	project, err := s.GetProject(projectID)
	if err != nil {
		return nil, err
	}
	if err := fn(project); err != nil {
		return nil, err
	}
	project.renumber()
	project.touch()
	if err := s.writeProject(project); err != nil {
		return nil, err
	}
	return project, nil
}

// UpdateProject applies a caller mutation to the project record.
func (s *Store) UpdateProject(projectID string, fn func(*Project) error) (*Project, error) {
	return s.mutate(projectID, fn)
}

// DeleteProject removes a project. With deleteDocs the owned documents are
// deleted too; otherwise their back-references are cleared. The default
// project cannot be deleted.
func (s *Store) DeleteProject(projectID string, deleteDocs bool) error {
	if projectID == DefaultProjectID {
		return vderrors.ValidationError("the default project cannot be deleted")
	}
	project, err := s.GetProject(projectID)
	if err != nil {
		return err
	}

	for _, docID := range project.DocIDs() {
		if deleteDocs {
			if err := s.docs.DeleteDoc(docID); err != nil && !vderrors.IsNotFound(err) {
				return err
			}
			continue
		}
		if err := s.clearDocRefs(docID); err != nil {
			return err
		}
	}

	if err := os.RemoveAll(s.ProjectDir(projectID)); err != nil {
		return vderrors.IOError("delete project directory", err)
	}
	return nil
}

func (s *Store) clearDocRefs(docID string) error {
	err := s.docs.UpdateMetadata(docID, func(meta *docstore.Metadata) {
		meta.ProjectID = ""
		meta.ChapterID = ""
	})
	if err != nil && !vderrors.IsNotFound(err) {
		return err
	}
	return nil
}

// AddChapter appends a chapter and returns its id.
func (s *Store) AddChapter(projectID, title, description string) (string, error) {
	var chapterID string
	_, err := s.mutate(projectID, func(project *Project) error {
		base := slug.Make(title)
		chapterID = base
		for n := 2; project.Chapter(chapterID) != nil; n++ {
			chapterID = fmt.Sprintf("%s-%d", base, n)
		}
		project.Chapters = append(project.Chapters, Chapter{
			ID:          chapterID,
			Title:       title,
			Description: description,
			DocIDs:      []string{},
		})
		return nil
	})
	return chapterID, err
}

// UpdateChapter renames or re-describes a chapter.
func (s *Store) UpdateChapter(projectID, chapterID, title, description string) error {
	_, err := s.mutate(projectID, func(project *Project) error {
		ch := project.Chapter(chapterID)
		if ch == nil {
			return vderrors.NotFound("chapter not found").WithContext("chapter_id", chapterID)
		}
		if title != "" {
			ch.Title = title
		}
		ch.Description = description
		return nil
	})
	return err
}

// DeleteChapter removes a chapter. With deleteDocs its documents are
// deleted; otherwise they leave the project with cleared back-references.
func (s *Store) DeleteChapter(projectID, chapterID string, deleteDocs bool) error {
	var orphaned []string
	_, err := s.mutate(projectID, func(project *Project) error {
		idx := -1
		for i := range project.Chapters {
			if project.Chapters[i].ID == chapterID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return vderrors.NotFound("chapter not found").WithContext("chapter_id", chapterID)
		}
		orphaned = project.Chapters[idx].DocIDs
		project.Chapters = append(project.Chapters[:idx], project.Chapters[idx+1:]...)
		return nil
	})
	if err != nil {
		return err
	}

	for _, docID := range orphaned {
		if deleteDocs {
			if err := s.docs.DeleteDoc(docID); err != nil && !vderrors.IsNotFound(err) {
				return err
			}
			continue
		}
		if err := s.clearDocRefs(docID); err != nil {
			return err
		}
	}
	return nil
}

// ReorderChapters rearranges chapters. The order list must be exactly the
// current set of chapter ids.
func (s *Store) ReorderChapters(projectID string, order []string) error {
	_, err := s.mutate(projectID, func(project *Project) error {
		reordered, err := reorderByID(order, project.Chapters, func(ch Chapter) string { return ch.ID })
		if err != nil {
			return err
		}
		project.Chapters = reordered
		return nil
	})
	return err
}

// reorderByID rearranges items to match the given id order, rejecting any
// order list that is not exactly the current id set.
func reorderByID[T any](order []string, items []T, id func(T) string) ([]T, error) {
	if len(order) != len(items) {
		return nil, vderrors.ValidationError("order list must contain every id exactly once").
			WithContext("expected", fmt.Sprint(len(items))).
			WithContext("got", fmt.Sprint(len(order)))
	}
	byID := make(map[string]T, len(items))
	for _, item := range items {
		byID[id(item)] = item
	}
	seen := make(map[string]bool, len(order))
	reordered := make([]T, 0, len(order))
	for _, want := range order {
		item, ok := byID[want]
		if !ok || seen[want] {
			return nil, vderrors.ValidationError("order list must contain every id exactly once").
				WithContext("id", want)
		}
		seen[want] = true
		reordered = append(reordered, item)
	}
	return reordered, nil
}

// AddDocToProject places a document in a chapter, defaulting to the
// Uncategorized chapter (created on demand). The document must exist.
func (s *Store) AddDocToProject(projectID, docID, chapterID string) error {
	meta, err := s.docs.GetMetadata(docID)
	if err != nil {
		return err
	}
	if meta == nil {
		return vderrors.NotFound("document not found").WithContext("doc_id", docID)
	}

	var placedIn string
	_, err = s.mutate(projectID, func(project *Project) error {
		for i := range project.Chapters {
			for _, existing := range project.Chapters[i].DocIDs {
				if existing == docID {
					return vderrors.Conflict("document already in project").
						WithContext("doc_id", docID).
						WithContext("chapter_id", project.Chapters[i].ID)
				}
			}
		}

		target := chapterID
		if target == "" {
			target = slug.Make(UncategorizedChapterTitle)
			if project.Chapter(target) == nil {
				project.Chapters = append(project.Chapters, Chapter{
					ID:     target,
					Title:  UncategorizedChapterTitle,
					DocIDs: []string{},
				})
			}
		}
		ch := project.Chapter(target)
		if ch == nil {
			return vderrors.NotFound("chapter not found").WithContext("chapter_id", target)
		}
		ch.DocIDs = append(ch.DocIDs, docID)
		placedIn = target
		return nil
	})
	if err != nil {
		return err
	}

	return s.docs.UpdateMetadata(docID, func(meta *docstore.Metadata) {
		meta.ProjectID = projectID
		meta.ChapterID = placedIn
	})
}

// RemoveDocFromProject takes a document out of whatever chapter holds it and
// clears its back-references.
func (s *Store) RemoveDocFromProject(projectID, docID string) error {
	_, err := s.mutate(projectID, func(project *Project) error {
		if !removeDoc(project, docID) {
			return vderrors.NotFound("document not in project").WithContext("doc_id", docID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return s.clearDocRefs(docID)
}

func removeDoc(project *Project, docID string) bool {
	for i := range project.Chapters {
		for j, existing := range project.Chapters[i].DocIDs {
			if existing == docID {
				project.Chapters[i].DocIDs = append(project.Chapters[i].DocIDs[:j], project.Chapters[i].DocIDs[j+1:]...)
				return true
			}
		}
	}
	return false
}

// MoveDocToChapter moves a document between chapters in one write, then
// updates its back-reference.
func (s *Store) MoveDocToChapter(projectID, docID, targetChapterID string) error {
	_, err := s.mutate(projectID, func(project *Project) error {
		target := project.Chapter(targetChapterID)
		if target == nil {
			return vderrors.NotFound("chapter not found").WithContext("chapter_id", targetChapterID)
		}
		if !removeDoc(project, docID) {
			return vderrors.NotFound("document not in project").WithContext("doc_id", docID)
		}
		target.DocIDs = append(target.DocIDs, docID)
		return nil
	})
	if err != nil {
		return err
	}
	return s.docs.UpdateMetadata(docID, func(meta *docstore.Metadata) {
		meta.ChapterID = targetChapterID
	})
}

// ReorderDocsInChapter rearranges a chapter's documents. The order list must
// be exactly the chapter's current document ids.
func (s *Store) ReorderDocsInChapter(projectID, chapterID string, order []string) error {
	_, err := s.mutate(projectID, func(project *Project) error {
		ch := project.Chapter(chapterID)
		if ch == nil {
			return vderrors.NotFound("chapter not found").WithContext("chapter_id", chapterID)
		}
		reordered, err := reorderByID(order, ch.DocIDs, func(id string) string { return id })
		if err != nil {
			return err
		}
		ch.DocIDs = reordered
		return nil
	})
	return err
}

// AddSection appends a section grouping existing chapters.
func (s *Store) AddSection(projectID, title string, chapterIDs []string) (string, error) {
	var sectionID string
	_, err := s.mutate(projectID, func(project *Project) error {
		for _, chID := range chapterIDs {
			if project.Chapter(chID) == nil {
				return vderrors.NotFound("chapter not found").WithContext("chapter_id", chID)
			}
		}
		base := slug.Make(title)
		sectionID = base
		for n := 2; sectionByID(project, sectionID) != nil; n++ {
			sectionID = fmt.Sprintf("%s-%d", base, n)
		}
		project.Sections = append(project.Sections, Section{
			ID:         sectionID,
			Title:      title,
			ChapterIDs: chapterIDs,
		})
		return nil
	})
	return sectionID, err
}

// ReorderSections rearranges sections with the same exact-set rule as
// chapter reordering.
func (s *Store) ReorderSections(projectID string, order []string) error {
	_, err := s.mutate(projectID, func(project *Project) error {
		reordered, err := reorderByID(order, project.Sections, func(sec Section) string { return sec.ID })
		if err != nil {
			return err
		}
		project.Sections = reordered
		return nil
	})
	return err
}

func sectionByID(project *Project, sectionID string) *Section {
	for i := range project.Sections {
		if project.Sections[i].ID == sectionID {
			return &project.Sections[i]
		}
	}
	return nil
}
