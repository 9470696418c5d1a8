package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("scoutctl failed")
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "scoutctl",
		Usage: "scouting device client: claims, drafts and the venue status monitor",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "scoutctl.yaml",
				Usage:   "path to the YAML configuration file",
				EnvVars: []string{"SCOUT_CONFIG"},
			},
			&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "optional dotenv file"},
			&cli.StringFlag{Name: "backend", Usage: "backend base URL (overrides config)"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error (overrides config)"},
		},
		Before: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			setupLogging(cfg)
			c.App.Metadata = map[string]any{configKey: cfg}
			return nil
		},
		Commands: []*cli.Command{
			loginCommand(),
			verifyCommand(),
			envCommand(),
			rosterCommand(),
			watchCommand(),
			claimCommand(),
			releaseCommand(),
			statusCommand(),
			scoutCommand(),
			submitCommand(),
			draftsCommand(),
			settingsCommand(),
			uploadCommand(),
			monitorCommand(),
		},
	}
}
