package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/restitch/internal/config"
	"github.com/restitch/internal/logging"
	"github.com/restitch/internal/render"
	"github.com/restitch/internal/retry"
	"github.com/restitch/internal/view"
)

// ViewCommand returns the view command
func ViewCommand() *cli.Command {
	return &cli.Command{
		Name:  "view",
		Usage: "Reconcile a thread and print it with removed bodies restored",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Usage:   "Approximate number of comments to load (0 loads one chunk)",
			},
			&cli.IntFlag{
				Name:  "context",
				Usage: "Number of ancestors to load above COMMENT_ID",
			},
			&cli.BoolFlag{
				Name:    "all",
				Aliases: []string{"a"},
				Usage:   "Keep loading until the whole thread is covered",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the reconciled thread as JSON",
			},
		},
		ArgsUsage: "THREAD_ID [COMMENT_ID]",
		Action:    runView,
	}
}

func runView(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("missing required argument: thread ID")
	}

	req := view.LoadRequest{
		ThreadID:  c.Args().Get(0),
		CommentID: c.Args().Get(1),
		Target:    c.Int("count"),
		All:       c.Bool("all"),
		Context:   c.Int("context"),
	}

	// Load configuration
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, closeLog, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closeLog()

	svc, err := view.FromConfig(cfg, logging.NewSink(log), &log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var tv *view.ThreadView
	result := retry.RetryWithBackoff(ctx, retry.FromConfig(cfg), func() error {
		var err error
		tv, err = svc.LoadThread(ctx, req)
		return err
	}, log)
	if !result.Success {
		return fmt.Errorf("failed to load thread: %w", result.LastError)
	}

	if c.Bool("json") {
		out, err := json.MarshalIndent(tv, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode thread: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Print(render.Thread(tv))
	return nil
}
