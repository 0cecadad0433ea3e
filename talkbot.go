package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/cmd"
)

const (
	version = "0.1.0"
)

func main() {
	app := &cli.App{
		Name:    "talkbot",
		Usage:   "Nextcloud Talk bot that works on ERPNext and Deck tasks",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE` (default: search ./talkbot.toml, ./data/talkbot.toml, ~/.talkbot.toml)",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load environment overrides from `FILE` before reading the configuration",
			},
		},
		Commands: []*cli.Command{
			cmd.ServeCommand(),
			cmd.ConfigCommand(),
			cmd.BindingsCommand(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
