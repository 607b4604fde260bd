package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/gitrevmissing/internal/api"
	"github.com/gitrevmissing/internal/config"
	"github.com/gitrevmissing/internal/missing"
)

// APICommand returns the CLI command for starting the API server
func APICommand() *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Serve missing-commit lookups over HTTP",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the API server",
				Value:   8888,
				EnvVars: []string{"GITREVMISSING_PORT"},
			},
		},
		Action: func(c *cli.Context) error {
			if err := LoadEnvFileFlag(c); err != nil {
				return err
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			logger, _, cleanup, err := startLogging(cfg, false, errWriter(c))
			if err != nil {
				return err
			}
			defer cleanup()

			port := c.Int("port")
			fmt.Fprintf(c.App.Writer, "Starting git-rev-missing API server on port %d...\n", port)

			server, err := api.NewServer(port, missing.NewService(cfg, logger), logger)
			if err != nil {
				return err
			}
			return server.Start()
		},
	}
}
