package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/gitrevmissing/cmd"
)

const (
	version = "0.1.0"
)

func main() {
	app := &cli.App{
		Name:    "git-rev-missing",
		Usage:   "List commits in a branch or tag that are missing in another one",
		Version: version,
		Flags:   cmd.GlobalFlags(),
		Commands: []*cli.Command{
			cmd.MissingCommand(),
			cmd.ConfigCommand(),
			cmd.APICommand(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
