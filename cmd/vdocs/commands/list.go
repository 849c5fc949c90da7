package commands

import (
	"fmt"
	"strings"
)

// ListCmd implements the 'list' command.
type ListCmd struct {
	Tag string `short:"t" help:"Only list documents carrying this tag"`
}

func (l *ListCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	docs := openDocs(cfg, root.User)

	var docIDs []string
	if l.Tag != "" {
		docIDs, err = openProjects(cfg, root.User).DocsByTag(l.Tag)
	} else {
		docIDs, err = docs.ListDocs()
	}
	if err != nil {
		return err
	}
	if len(docIDs) == 0 {
		fmt.Println("no documents")
		return nil
	}

	for _, docID := range docIDs {
		meta, err := docs.GetMetadata(docID)
		if err != nil {
			fmt.Printf("%s\n", docID)
			continue
		}
		languages, _ := docs.Languages(docID)
		line := fmt.Sprintf("%-24s v%-8s %s", docID, meta.Version.Number, strings.Join(languages, ","))
		if len(meta.Tags) > 0 {
			line += "  [" + strings.Join(meta.Tags, ", ") + "]"
		}
		fmt.Println(line)
	}
	return nil
}

// ViewCmd implements the 'view' command.
type ViewCmd struct {
	Doc      string `arg:"" help:"Document ID"`
	Language string `short:"l" help:"Language to print" default:"en"`
}

func (v *ViewCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	docs := openDocs(cfg, root.User)

	content, found, err := docs.GetContent(v.Doc, v.Language)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("document %q has no %q content", v.Doc, v.Language)
	}
	fmt.Print(content)
	return nil
}
