package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/inrsta/dait-meetup-langfuse/cmd"
	"github.com/inrsta/dait-meetup-langfuse/internal/logging"
)

const (
	version = "0.1.0"
)

func main() {
	logging.Setup(true)

	app := &cli.App{
		Name:    "daitchat",
		Usage:   "Multi-provider LLM chat with Langfuse tracing and feedback scoring",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
			},
		},
		Commands: []*cli.Command{
			cmd.ServeCommand(),
			cmd.ChatCommand(),
			cmd.ConfigCommand(),
			cmd.EnvCommand(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
