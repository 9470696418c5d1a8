package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/mcdev12/scoutsync/go/internal/monitor"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func monitorCommand() *cli.Command {
	return &cli.Command{
		Name:  "monitor",
		Usage: "serve the live status board to venue displays",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "listen address (overrides config)"},
		},
		Action: withServices(func(c *cli.Context, s *Services) error {
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := monitor.DefaultConfig()
			cfg.Addr = s.Config.Monitor.Addr
			if addr := c.String("addr"); addr != "" {
				cfg.Addr = addr
			}
			cfg.RefreshInterval = s.Config.Monitor.RefreshInterval

			svc := monitor.NewService(cfg, s.Scheduler, monitor.WithMetrics(s.Metrics))
			go s.Environment.Run(ctx)

			log.Info().
				Str("addr", cfg.Addr).
				Str("backend", s.Config.Backend.URL).
				Msg("starting status monitor")
			return svc.ListenAndServe(ctx, s.Metrics.Handler())
		}),
	}
}
