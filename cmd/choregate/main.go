package main

import (
	"log/slog"
	"os"

	"git.home.luguber.info/inful/choregate/cmd/choregate/commands"
	"git.home.luguber.info/inful/choregate/internal/foundation/errors"
)

func main() {
	cli := &commands.CLI{}
	global := &commands.Global{}

	parser, err := commands.NewParser(cli, global)
	if err != nil {
		errors.NewCLIErrorAdapter(false, slog.Default()).HandleError(err)
		return
	}
	ctx, err := parser.Parse(os.Args[1:])
	if errors.IsClassified(err) {
		errors.NewCLIErrorAdapter(cli.Verbose, global.Logger).HandleError(err)
	}
	parser.FatalIfErrorf(err)

	if err := ctx.Run(global, cli); err != nil {
		errors.NewCLIErrorAdapter(cli.Verbose, global.Logger).HandleError(err)
	}
}
