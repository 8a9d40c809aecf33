package main

import (
	"github.com/alecthomas/kong"
)

var cli CLI

func main() {
	ctx := kong.Parse(
		&cli,
		kong.UsageOnError(),
		kong.Name("offers-cli"),
		kong.Description("Client for the Offers catalog service"),
	)

	// See the respective commands' Run() methods.
	err := ctx.Run(cli.newRunContext())
	ctx.FatalIfErrorf(err)
}
