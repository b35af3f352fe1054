package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/inrsta/dait-meetup-langfuse/internal/api"
	"github.com/inrsta/dait-meetup-langfuse/internal/config"
)

// ServeCommand returns the CLI command for starting the chat API server
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the daitchat API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the API server (overrides config)",
			},
			&cli.BoolFlag{
				Name:  "offline",
				Usage: "Disable the Langfuse sink, keep traces in memory",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if c.IsSet("port") {
				cfg.Server.Port = c.Int("port")
			}
			if c.Bool("offline") {
				cfg.Langfuse.Enabled = false
			}

			server, err := api.NewServer(cfg)
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}

			fmt.Printf("Starting daitchat API server on port %d...\n", cfg.Server.Port)
			return server.Start()
		},
	}
}
