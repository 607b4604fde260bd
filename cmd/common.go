package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/gitrevmissing/internal/config"
	"github.com/gitrevmissing/internal/logging"
)

// GlobalFlags are shared by every command
func GlobalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Load configuration from `FILE` (default: ./gitrevmissing.toml, then ~/.gitrevmissing.toml)",
		},
		&cli.StringFlag{
			Name:  "env-file",
			Usage: "Load environment variables from `FILE` before reading configuration",
		},
	}
}

// LoadEnvFileFlag loads --env-file when given
func LoadEnvFileFlag(c *cli.Context) error {
	if path := c.String("env-file"); path != "" {
		if err := LoadEnvFile(path); err != nil {
			return fmt.Errorf("failed to load env file: %w", err)
		}
	}
	return nil
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// startLogging configures zerolog from cfg and names the run. With
// general.log_dir set, the run's log is mirrored into run_<id>_<ts>.log.
func startLogging(cfg *config.Config, verbose bool, stderr io.Writer) (zerolog.Logger, string, func(), error) {
	level := cfg.General.LogLevel
	if verbose {
		level = "debug"
	}

	var (
		runID   = logging.NewRunID()
		out     = stderr
		runLog  *logging.RunLog
		cleanup = func() {}
	)
	if cfg.General.LogDir != "" {
		var err error
		runLog, err = logging.OpenRunLog(cfg.General.LogDir, runID)
		if err != nil {
			return zerolog.Nop(), "", cleanup, err
		}
		out = io.MultiWriter(stderr, runLog)
		cleanup = func() { _ = runLog.Close() }
	}

	logger, err := logging.Setup(level, cfg.General.LogFormat, out)
	if err != nil {
		cleanup()
		return zerolog.Nop(), "", func() {}, err
	}
	if runLog != nil {
		logger.Debug().Str("run_id", runID).Str("path", runLog.Path).Msg("Writing run log")
	}
	return logger, runID, cleanup, nil
}

func errWriter(c *cli.Context) io.Writer {
	if c.App != nil && c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}
