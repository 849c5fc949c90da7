package docversion

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	vderrors "github.com/stubborncoder/vdocs/internal/errors"
	"github.com/stubborncoder/vdocs/internal/semver"
)

// DiffSummary is a structural comparison of two versions of one language.
// It summarizes change magnitude; it is not a full textual diff.
type DiffSummary struct {
	LinesV1      int `json:"lines_v1"`
	LinesV2      int `json:"lines_v2"`
	CharsV1      int `json:"chars_v1"`
	CharsV2      int `json:"chars_v2"`
	LinesChanged int `json:"lines_changed"`
	CharsChanged int `json:"chars_changed"`
}

// Diff compares the content of two versions for a language. Either version
// may be the current one, in which case working content is used.
func (s *Store) Diff(v1, v2, language string) (*DiffSummary, error) {
	text1, err := s.contentAt(v1, language)
	if err != nil {
		return nil, err
	}
	text2, err := s.contentAt(v2, language)
	if err != nil {
		return nil, err
	}

	summary := &DiffSummary{
		LinesV1: countLines(text1),
		LinesV2: countLines(text2),
		CharsV1: len(text1),
		CharsV2: len(text2),
	}

	dmp := diffmatchpatch.New()
	lineText1, lineText2, lineArray := dmp.DiffLinesToChars(text1, text2)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(lineText1, lineText2, false), lineArray)
	for _, d := range diffs {
		if d.Type == diffmatchpatch.DiffEqual {
			continue
		}
		summary.LinesChanged += countLines(d.Text)
		summary.CharsChanged += len(d.Text)
	}

	return summary, nil
}

// contentAt returns the stored content for a version, using the working
// copy when version is current.
func (s *Store) contentAt(version, language string) (string, error) {
	current, _, err := s.currentVersion()
	if err != nil {
		return "", err
	}

	if version == current.String() {
		text, ok, err := s.docs.GetContent(s.docID, language)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", nil
		}
		return text, nil
	}

	info, err := s.Get(version)
	if err != nil {
		return "", err
	}
	if info == nil {
		return "", vderrors.NotFound("version not found").
			WithContext("doc_id", s.docID).
			WithContext("version", version)
	}

	return s.snapshotContent(version, language)
}

func (s *Store) snapshotContent(version, language string) (string, error) {
	v, err := semver.Parse(version)
	if err != nil {
		return "", err
	}
	for _, name := range []string{"doc.md", "manual.md"} {
		data, rerr := os.ReadFile(filepath.Join(s.snapshotDir(v), language, name)) // #nosec G304
		if rerr == nil {
			return string(data), nil
		}
	}
	return "", nil
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
