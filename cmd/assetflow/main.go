package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/assetflow/cmd/assetflow/commands"
	ferrors "git.home.luguber.info/inful/assetflow/internal/foundation/errors"
	"git.home.luguber.info/inful/assetflow/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("assetflow"),
		kong.Description("Task-graph build orchestrator for front-end assets."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	global := &commands.Global{Logger: slog.Default()}
	if err := parser.Run(global, cli); err != nil {
		ferrors.NewCLIErrorAdapter(cli.Verbose, global.Logger).HandleError(err)
	}
}
