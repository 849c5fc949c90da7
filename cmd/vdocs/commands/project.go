package commands

import (
	"fmt"
	"strings"

	"github.com/stubborncoder/vdocs/internal/compile"
	"github.com/stubborncoder/vdocs/internal/compilestore"
	"github.com/stubborncoder/vdocs/internal/export"
)

// ProjectCmd groups project management subcommands.
type ProjectCmd struct {
	Create         ProjectCreateCmd        `cmd:"" help:"Create a project"`
	List           ProjectListCmd          `cmd:"" help:"List projects"`
	Show           ProjectShowCmd          `cmd:"" help:"Show a project's structure"`
	Delete         ProjectDeleteCmd        `cmd:"" help:"Delete a project"`
	ChapterAdd     ChapterAddCmd           `cmd:"" name:"chapter-add" help:"Add a chapter"`
	ChapterUpdate  ChapterUpdateCmd        `cmd:"" name:"chapter-update" help:"Rename a chapter"`
	ChapterDelete  ChapterDeleteCmd        `cmd:"" name:"chapter-delete" help:"Delete a chapter"`
	ChapterReorder ChapterReorderCmd       `cmd:"" name:"chapter-reorder" help:"Reorder chapters"`
	AddDoc         ProjectAddDocCmd        `cmd:"" name:"add-doc" help:"Add a document to a project"`
	RemoveDoc      ProjectRemoveDocCmd     `cmd:"" name:"remove-doc" help:"Remove a document from a project"`
	MoveDoc        ProjectMoveDocCmd       `cmd:"" name:"move-doc" help:"Move a document between chapters"`
	Compile        ProjectCompileCmd       `cmd:"" help:"Compile a project into per-language manuals"`
	Export         ProjectExportCmd        `cmd:"" help:"Publish compiled output into the project's export repository"`
	History        ProjectExportHistoryCmd `cmd:"" help:"List published export states"`
	Share          ProjectShareCmd         `cmd:"" help:"Create a share token for compiled output"`
	Unshare        ProjectUnshareCmd       `cmd:"" help:"Revoke the project's share token"`
}

// ProjectCreateCmd implements 'project create'.
type ProjectCreateCmd struct {
	Name        string `arg:"" help:"Project name"`
	Description string `short:"d" help:"Project description"`
	Language    string `short:"l" help:"Default language" default:"en"`
}

func (c *ProjectCreateCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	projectID, err := openProjects(cfg, root.User).CreateProject(c.Name, c.Description, c.Language)
	if err != nil {
		return err
	}
	fmt.Println(projectID)
	return nil
}

// ProjectListCmd implements 'project list'.
type ProjectListCmd struct{}

func (c *ProjectListCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	projects, err := openProjects(cfg, root.User).ListProjects()
	if err != nil {
		return err
	}
	for _, p := range projects {
		marker := " "
		if p.IsDefault {
			marker = "*"
		}
		fmt.Printf("%s %-32s %-24s %d chapters, %d docs\n",
			marker, p.ID, p.Name, len(p.Chapters), len(p.DocIDs()))
	}
	return nil
}

// ProjectShowCmd implements 'project show'.
type ProjectShowCmd struct {
	Project string `arg:"" help:"Project ID"`
}

func (c *ProjectShowCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	project, err := openProjects(cfg, root.User).GetProject(c.Project)
	if err != nil {
		return err
	}

	fmt.Printf("%s (%s)\n", project.Name, project.ID)
	if project.Description != "" {
		fmt.Println(project.Description)
	}
	for _, chapter := range project.Chapters {
		fmt.Printf("  %d. %s [%s]\n", chapter.Order, chapter.Title, chapter.ID)
		for _, docID := range chapter.DocIDs {
			fmt.Printf("     - %s\n", docID)
		}
	}
	return nil
}

// ProjectDeleteCmd implements 'project delete'.
type ProjectDeleteCmd struct {
	Project    string `arg:"" help:"Project ID"`
	DeleteDocs bool   `help:"Also delete the documents the project references"`
}

func (c *ProjectDeleteCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	return openProjects(cfg, root.User).DeleteProject(c.Project, c.DeleteDocs)
}

// ChapterAddCmd implements 'project chapter-add'.
type ChapterAddCmd struct {
	Project     string `arg:"" help:"Project ID"`
	Title       string `arg:"" help:"Chapter title"`
	Description string `short:"d" help:"Chapter description"`
}

func (c *ChapterAddCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	chapterID, err := openProjects(cfg, root.User).AddChapter(c.Project, c.Title, c.Description)
	if err != nil {
		return err
	}
	fmt.Println(chapterID)
	return nil
}

// ChapterUpdateCmd implements 'project chapter-update'.
type ChapterUpdateCmd struct {
	Project     string `arg:"" help:"Project ID"`
	Chapter     string `arg:"" help:"Chapter ID"`
	Title       string `short:"t" help:"New title"`
	Description string `short:"d" help:"New description"`
}

func (c *ChapterUpdateCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	return openProjects(cfg, root.User).UpdateChapter(c.Project, c.Chapter, c.Title, c.Description)
}

// ChapterDeleteCmd implements 'project chapter-delete'.
type ChapterDeleteCmd struct {
	Project    string `arg:"" help:"Project ID"`
	Chapter    string `arg:"" help:"Chapter ID"`
	DeleteDocs bool   `help:"Also delete the chapter's documents"`
}

func (c *ChapterDeleteCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	return openProjects(cfg, root.User).DeleteChapter(c.Project, c.Chapter, c.DeleteDocs)
}

// ChapterReorderCmd implements 'project chapter-reorder'.
type ChapterReorderCmd struct {
	Project string   `arg:"" help:"Project ID"`
	Order   []string `arg:"" help:"Chapter IDs in the desired order"`
}

func (c *ChapterReorderCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	return openProjects(cfg, root.User).ReorderChapters(c.Project, c.Order)
}

// ProjectAddDocCmd implements 'project add-doc'.
type ProjectAddDocCmd struct {
	Project string `arg:"" help:"Project ID"`
	Doc     string `arg:"" help:"Document ID"`
	Chapter string `short:"C" help:"Target chapter (defaults to Uncategorized)"`
}

func (c *ProjectAddDocCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	return openProjects(cfg, root.User).AddDocToProject(c.Project, c.Doc, c.Chapter)
}

// ProjectRemoveDocCmd implements 'project remove-doc'.
type ProjectRemoveDocCmd struct {
	Project string `arg:"" help:"Project ID"`
	Doc     string `arg:"" help:"Document ID"`
}

func (c *ProjectRemoveDocCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	return openProjects(cfg, root.User).RemoveDocFromProject(c.Project, c.Doc)
}

// ProjectMoveDocCmd implements 'project move-doc'.
type ProjectMoveDocCmd struct {
	Project string `arg:"" help:"Project ID"`
	Doc     string `arg:"" help:"Document ID"`
	Chapter string `arg:"" help:"Target chapter ID"`
}

func (c *ProjectMoveDocCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	return openProjects(cfg, root.User).MoveDocToChapter(c.Project, c.Doc, c.Chapter)
}

// ProjectCompileCmd implements 'project compile'. It compiles directly,
// without the conversational planning loop the server offers.
type ProjectCompileCmd struct {
	Project string `arg:"" help:"Project ID"`
	Notes   string `short:"n" help:"Compilation notes recorded in the history"`
}

func (c *ProjectCompileCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	docs := openDocs(cfg, root.User)
	projects := openProjects(cfg, root.User)
	store := compilestore.New(projects.ProjectDir(c.Project))

	result, err := compile.New(docs, projects, store).Run(c.Project, c.Notes)
	if err != nil {
		return err
	}
	fmt.Printf("compiled %d documents (%s) → %s\n",
		result.Documents, strings.Join(result.Languages, ","), result.OutputDir)
	return nil
}

// ProjectExportCmd implements 'project export'.
type ProjectExportCmd struct {
	Project string `arg:"" help:"Project ID"`
	Message string `short:"m" help:"Commit message" default:"publish compiled output"`
}

func (c *ProjectExportCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	projects := openProjects(cfg, root.User)
	store := compilestore.New(projects.ProjectDir(c.Project))

	current := store.CurrentDirPath()
	pub := export.New(projects.ExportsDir(c.Project))
	hash, err := pub.Publish(current, c.Message)
	if err != nil {
		return err
	}
	if hash == "" {
		fmt.Println("nothing changed since last export")
		return nil
	}
	fmt.Println(hash)
	return nil
}

// ProjectExportHistoryCmd implements 'project history'.
type ProjectExportHistoryCmd struct {
	Project string `arg:"" help:"Project ID"`
	Limit   int    `short:"n" help:"Number of entries to show (0 = all)"`
}

func (c *ProjectExportHistoryCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	projects := openProjects(cfg, root.User)
	history, err := export.New(projects.ExportsDir(c.Project)).History(c.Limit)
	if err != nil {
		return err
	}
	for _, commit := range history {
		fmt.Printf("%s  %s  %s\n",
			commit.Hash[:12], commit.When.Format("2006-01-02 15:04"),
			strings.TrimSpace(commit.Message))
	}
	return nil
}

// ProjectShareCmd implements 'project share'.
type ProjectShareCmd struct {
	Project  string `arg:"" help:"Project ID"`
	Language string `short:"l" help:"Language the token serves" default:"en"`
}

func (c *ProjectShareCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	token, err := openProjects(cfg, root.User).CreateShare(c.Project, c.Language)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

// ProjectUnshareCmd implements 'project unshare'.
type ProjectUnshareCmd struct {
	Project string `arg:"" help:"Project ID"`
}

func (c *ProjectUnshareCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	revoked, err := openProjects(cfg, root.User).RevokeShare(c.Project)
	if err != nil {
		return err
	}
	if !revoked {
		fmt.Println("project was not shared")
	}
	return nil
}
