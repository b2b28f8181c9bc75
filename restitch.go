package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/restitch/cmd"
)

const (
	version = "0.1.0"
)

func main() {
	app := &cli.App{
		Name:    "restitch",
		Usage:   "Reconcile live comment threads against their archival copies",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE` (defaults to ./restitch.toml if present)",
			},
		},
		Commands: []*cli.Command{
			cmd.ViewCommand(),
			cmd.ServeCommand(),
			cmd.ConfigCommand(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
