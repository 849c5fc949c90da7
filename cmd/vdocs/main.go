package main

import (
	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/stubborncoder/vdocs/cmd/vdocs/commands"
	"github.com/stubborncoder/vdocs/internal/version"
)

func main() {
	// .env carries GEMINI_API_KEY and friends during local development.
	_ = godotenv.Load()

	cli := &commands.CLI{}
	ctx := kong.Parse(cli,
		kong.Name("vdocs"),
		kong.Description("Turn instructional videos into structured, versioned documentation."),
		kong.UsageOnError(),
		kong.Vars{"version": version.Version},
	)
	ctx.FatalIfErrorf(ctx.Run(&commands.Global{}))
}
