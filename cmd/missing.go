package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/gitrevmissing/internal/config"
	"github.com/gitrevmissing/internal/missing"
	"github.com/gitrevmissing/internal/output"
)

// MissingCommand returns the missing command
func MissingCommand() *cli.Command {
	return &cli.Command{
		Name:  "missing",
		Usage: "List commits of one revision that are missing in another",
		Description: "COMPARE_URL is a compare link of the hosting service, like\n" +
			"   https://github.com/owner/repo/compare/1.0...1.1 or\n" +
			"   https://gitlab.example.com/group/repo/-/compare/1.1...1.0",
		ArgsUsage: "COMPARE_URL",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "token",
				Aliases: []string{"t"},
				Usage:   "Access token for the git service",
				EnvVars: []string{"GITREVMISSING_TOKEN"},
			},
			&cli.IntFlag{
				Name:    "months",
				Aliases: []string{"m"},
				Usage:   "How many months back to look for commits (default: general.months)",
			},
			&cli.StringFlag{
				Name:  "since",
				Usage: "Only look at commits after `DATE` (2006-01-02), overrides --months",
			},
			&cli.Float64Flag{
				Name:  "patch-ratio",
				Usage: "Patch similarity above which a changed commit is suspicious",
			},
			&cli.Float64Flag{
				Name:  "message-ratio",
				Usage: "Message similarity above which two commits are compared by patch",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Number of commits classified concurrently",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, json or yaml",
				Value:   "text",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Action: runMissing,
	}
}

// applyFlags overrides configuration values with the flags that were set
func applyFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("patch-ratio") {
		cfg.General.PatchRatio = c.Float64("patch-ratio")
	}
	if c.IsSet("message-ratio") {
		cfg.General.MessageRatio = c.Float64("message-ratio")
	}
	if c.IsSet("workers") {
		cfg.General.Workers = c.Int("workers")
	}
	if c.IsSet("months") {
		cfg.General.Months = c.Int("months")
	}
}

func buildRequest(c *cli.Context) (missing.Request, error) {
	req := missing.Request{
		CompareURL: c.Args().Get(0),
		Token:      c.String("token"),
	}
	if s := c.String("since"); s != "" {
		since, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return req, fmt.Errorf("invalid --since %q: %w", s, err)
		}
		req.Since = since
	}
	return req, nil
}

func runMissing(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("missing required argument: COMPARE_URL")
	}
	if err := LoadEnvFileFlag(c); err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	applyFlags(c, cfg)
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	writer, err := output.GetWriter(c.String("format"))
	if err != nil {
		return err
	}
	req, err := buildRequest(c)
	if err != nil {
		return err
	}

	logger, runID, cleanup, err := startLogging(cfg, c.Bool("verbose"), errWriter(c))
	if err != nil {
		return err
	}
	defer cleanup()
	req.RunID = runID

	ctx, stop := signal.NotifyContext(contextOf(c), os.Interrupt)
	defer stop()

	svc := missing.NewService(cfg, logger)
	target, err := svc.Resolve(req)
	if err != nil {
		return err
	}
	logger.Debug().
		Str("root_url", target.RootURL).
		Str("repo", target.RepoID).
		Str("source", target.Source).
		Str("target", target.TargetRev).
		Msg("Parsed compare URL")

	report, err := svc.RunTarget(ctx, target, req)
	if err != nil {
		return err
	}

	return writer.Write(c.App.Writer, output.Comparison{
		RepoURL: target.RepoURL,
		Source:  target.Source,
		Target:  target.TargetRev,
	}, report)
}

func contextOf(c *cli.Context) context.Context {
	if c.Context != nil {
		return c.Context
	}
	return context.Background()
}
