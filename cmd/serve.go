package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/restitch/internal/api"
	"github.com/restitch/internal/config"
	"github.com/restitch/internal/logging"
	"github.com/restitch/internal/metrics"
	"github.com/restitch/internal/recon"
	"github.com/restitch/internal/view"
)

// ServeCommand returns the CLI command for starting the API server
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the restitch API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the API server (overrides the configured port)",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if port := c.Int("port"); port != 0 {
		cfg.Server.Port = port
	}

	log, closeLog, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closeLog()

	// Every load feeds both the log stream and the /metrics series.
	sink := recon.MultiSink{logging.NewSink(log), metrics.NewSink()}

	svc, err := view.FromConfig(cfg, sink, &log)
	if err != nil {
		return err
	}

	fmt.Printf("Starting restitch API server on port %d...\n", cfg.Server.Port)

	server := api.NewServer(cfg, svc, log)
	return server.Start()
}
