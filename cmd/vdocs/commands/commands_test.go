package commands

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newParser(t *testing.T) *kong.Kong {
	t.Helper()
	parser, err := kong.New(&CLI{}, kong.Name("vdocs"), kong.Exit(func(int) {}))
	require.NoError(t, err)
	return parser
}

func TestGrammar_ParsesCoreCommands(t *testing.T) {
	video := filepath.Join(t.TempDir(), "install.mp4")
	require.NoError(t, os.WriteFile(video, []byte("x"), 0o600))

	cases := [][]string{
		{"process", video},
		{"list"},
		{"list", "--tag", "setup"},
		{"view", "install"},
		{"project", "create", "Onboarding"},
		{"project", "chapter-add", "onboarding", "Intro"},
		{"project", "add-doc", "onboarding", "install"},
		{"project", "compile", "onboarding", "--notes", "first cut"},
		{"tag", "add", "install", "setup"},
		{"version", "bump", "install", "minor"},
		{"version", "diff", "install", "1.0.0", "1.1.0"},
		{"jobs", "list", "--all"},
		{"jobs", "seen", "some-job"},
	}
	for _, args := range cases {
		parser := newParser(t)
		ctx, err := parser.Parse(args)
		require.NoError(t, err, "args %v", args)
		assert.True(t, strings.HasPrefix(ctx.Command(), args[0]), "args %v parsed as %q", args, ctx.Command())
	}
}

func TestGrammar_UserFlagDefaults(t *testing.T) {
	cli := &CLI{}
	parser, err := kong.New(cli, kong.Exit(func(int) {}))
	require.NoError(t, err)

	_, err = parser.Parse([]string{"list"})
	require.NoError(t, err)
	assert.Equal(t, "default", cli.User)
	assert.Equal(t, "vdocs.yaml", cli.Config)
}

func TestGrammar_RejectsUnknownBumpKind(t *testing.T) {
	parser := newParser(t)
	_, err := parser.Parse([]string{"version", "bump", "install", "patch"})
	require.Error(t, err)
}
