// Package markdown provides Goldmark-based analysis of generated document
// bodies. The version and compilation stores use it to find which screenshot
// files a markdown body references.
package markdown

import (
	"path"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ImageRef is one image reference found in a markdown body.
type ImageRef struct {
	// Destination is the raw link destination as written.
	Destination string
	// Filename is the base filename of the destination, with any
	// "screenshots/" style prefix removed.
	Filename string
}

// ExtractImageRefs parses body and returns every image reference, in
// document order. Non-local destinations (http/https/data) are skipped.
func ExtractImageRefs(body []byte) []ImageRef {
	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(body))

	refs := make([]ImageRef, 0)
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		img, ok := n.(*gmast.Image)
		if !ok {
			return gmast.WalkContinue, nil
		}

		dest := string(img.Destination)
		if isRemote(dest) {
			return gmast.WalkContinue, nil
		}
		refs = append(refs, ImageRef{
			Destination: dest,
			Filename:    path.Base(dest),
		})
		return gmast.WalkContinue, nil
	})

	return refs
}

// ReferencedFilenames returns the set of local image filenames referenced by
// body.
func ReferencedFilenames(body []byte) map[string]bool {
	set := make(map[string]bool)
	for _, ref := range ExtractImageRefs(body) {
		set[ref.Filename] = true
	}
	return set
}

// RewriteImageDestinations returns body with every local image destination
// replaced by rewrite(filename). Rewriting operates on the raw text so the
// output remains byte-stable outside the replaced destinations; Goldmark is
// used only to discover which destinations to touch.
func RewriteImageDestinations(body string, rewrite func(filename string) string) string {
	refs := ExtractImageRefs([]byte(body))
	out := body
	for _, ref := range refs {
		newDest := rewrite(ref.Filename)
		if newDest == "" || newDest == ref.Destination {
			continue
		}
		out = strings.ReplaceAll(out, "("+ref.Destination+")", "("+newDest+")")
	}
	return out
}

func isRemote(dest string) bool {
	return strings.HasPrefix(dest, "http://") ||
		strings.HasPrefix(dest, "https://") ||
		strings.HasPrefix(dest, "data:")
}
