package commands

import "fmt"

// TagCmd groups tag subcommands.
type TagCmd struct {
	Add    TagAddCmd    `cmd:"" help:"Add a tag to a document"`
	Remove TagRemoveCmd `cmd:"" help:"Remove a tag from a document"`
	List   TagListCmd   `cmd:"" help:"List all tags in use"`
	Search TagSearchCmd `cmd:"" help:"List documents carrying a tag"`
}

// TagAddCmd implements 'tag add'.
type TagAddCmd struct {
	Doc string `arg:"" help:"Document ID"`
	Tag string `arg:"" help:"Tag to add"`
}

func (c *TagAddCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	return openProjects(cfg, root.User).AddTagToDoc(c.Doc, c.Tag)
}

// TagRemoveCmd implements 'tag remove'.
type TagRemoveCmd struct {
	Doc string `arg:"" help:"Document ID"`
	Tag string `arg:"" help:"Tag to remove"`
}

func (c *TagRemoveCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	return openProjects(cfg, root.User).RemoveTagFromDoc(c.Doc, c.Tag)
}

// TagListCmd implements 'tag list'.
type TagListCmd struct{}

func (c *TagListCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	tags, err := openProjects(cfg, root.User).ListAllTags()
	if err != nil {
		return err
	}
	for _, tag := range tags {
		fmt.Println(tag)
	}
	return nil
}

// TagSearchCmd implements 'tag search'.
type TagSearchCmd struct {
	Tag string `arg:"" help:"Tag to search for"`
}

func (c *TagSearchCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	docIDs, err := openProjects(cfg, root.User).DocsByTag(c.Tag)
	if err != nil {
		return err
	}
	for _, docID := range docIDs {
		fmt.Println(docID)
	}
	return nil
}
