package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/mcdev12/scoutsync/go/internal/claim"
	"github.com/mcdev12/scoutsync/go/internal/models"
	"github.com/mcdev12/scoutsync/go/internal/monitor"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func withServices(fn func(c *cli.Context, s *Services) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		s, err := setupServices(configFrom(c))
		if err != nil {
			return err
		}
		defer s.Close()
		return fn(c, s)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var matchFlags = []cli.Flag{
	&cli.IntFlag{Name: "match", Aliases: []string{"m"}, Required: true, Usage: "match number"},
	&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Value: string(models.MatchTypeQualification), Usage: "match type: qm, sf or f"},
	&cli.StringFlag{Name: "alliance", Aliases: []string{"a"}, Required: true, Usage: "red or blue"},
}

func matchContext(c *cli.Context) (claim.Context, error) {
	matchType, err := models.ParseMatchType(c.String("type"))
	if err != nil {
		return claim.Context{}, err
	}
	alliance, err := models.ParseAlliance(c.String("alliance"))
	if err != nil {
		return claim.Context{}, err
	}
	if c.Int("match") <= 0 {
		return claim.Context{}, errors.New("match must be positive")
	}
	return claim.Context{
		MatchType: matchType,
		Match:     c.Int("match"),
		Alliance:  alliance,
		Mode:      models.ModeMatch,
	}, nil
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:      "login",
		Usage:     "exchange a passcode for a scouting identity",
		ArgsUsage: "<passcode>",
		Action: withServices(func(c *cli.Context, s *Services) error {
			if c.NArg() != 1 {
				return errors.New("login requires a passcode")
			}
			result := s.Client.Login(c.Context, c.Args().First())
			if !result.Success {
				return fmt.Errorf("login failed: %s", result.Error)
			}
			return printJSON(c.App.Writer, result)
		}),
	}
}

func verifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "check the stored identity with the backend",
		Action: withServices(func(c *cli.Context, s *Services) error {
			return printJSON(c.App.Writer, s.Client.Verify(c.Context))
		}),
	}
}

func envCommand() *cli.Command {
	return &cli.Command{
		Name:  "env",
		Usage: "sample connection hints and probe the backend once",
		Action: withServices(func(c *cli.Context, s *Services) error {
			return printJSON(c.App.Writer, s.Environment.Refresh(c.Context))
		}),
	}
}

func rosterCommand() *cli.Command {
	return &cli.Command{
		Name:  "roster",
		Usage: "print an alliance's teams with their claims",
		Flags: matchFlags,
		Action: withServices(func(c *cli.Context, s *Services) error {
			mc, err := matchContext(c)
			if err != nil {
				return err
			}
			roster := s.Client.GetTeamList(c.Context, mc.Match, mc.MatchType, mc.Alliance)
			return printRoster(c.App.Writer, roster, s.scouter())
		}),
	}
}

func printRoster(w io.Writer, roster models.Roster, self string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TEAM\tNAME\tCLAIMED BY")
	for _, t := range roster {
		by := t.ClaimedBy()
		switch {
		case by == "":
			by = "-"
		case by == self:
			by += " (you)"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", t.Number, t.Name, by)
	}
	return tw.Flush()
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "follow an alliance's claims live until interrupted",
		Flags: matchFlags,
		Action: withServices(func(c *cli.Context, s *Services) error {
			mc, err := matchContext(c)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			claims := s.newSynchronizer(ctx)
			go s.Environment.Run(ctx)

			last := ""
			unsubscribe := claims.Subscribe(func(st claim.Status) {
				line := fmt.Sprintf("%s online=%t watermark=%s", st.State, st.Online, st.Watermark)
				if line == last {
					return
				}
				last = line
				fmt.Fprintln(c.App.Writer, line)
				if err := printRoster(c.App.Writer, claims.Roster(), s.scouter()); err != nil {
					log.Error().Err(err).Msg("failed to print roster")
				}
			})
			defer unsubscribe()

			if err := claims.SetContext(ctx, mc); err != nil {
				return err
			}
			<-ctx.Done()
			return nil
		}),
	}
}

func claimCommand() *cli.Command {
	return &cli.Command{
		Name:  "claim",
		Usage: "claim a team for this scouter",
		Flags: append(append([]cli.Flag{}, matchFlags...),
			&cli.IntFlag{Name: "team", Required: true, Usage: "team number"},
		),
		Action: withServices(func(c *cli.Context, s *Services) error {
			mc, err := matchContext(c)
			if err != nil {
				return err
			}
			claims := s.newSynchronizer(c.Context)
			if err := claims.SetContext(c.Context, mc); err != nil {
				return err
			}
			if err := claims.Select(c.Context, c.Int("team")); err != nil {
				return err
			}
			return printJSON(c.App.Writer, claims.Status())
		}),
	}
}

func releaseCommand() *cli.Command {
	return &cli.Command{
		Name:  "release",
		Usage: "release a team's claim",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "match", Aliases: []string{"m"}, Required: true},
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Value: string(models.MatchTypeQualification)},
			&cli.IntFlag{Name: "team", Required: true},
		},
		Action: withServices(func(c *cli.Context, s *Services) error {
			matchType, err := models.ParseMatchType(c.String("type"))
			if err != nil {
				return err
			}
			if !s.Client.UnclaimTeam(c.Context, c.Int("match"), c.Int("team"), matchType) {
				return errors.New("release failed")
			}
			fmt.Fprintf(c.App.Writer, "released team %d in match %d\n", c.Int("team"), c.Int("match"))
			return nil
		}),
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "show active records, or one record with --match and --team",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "match", Aliases: []string{"m"}},
			&cli.IntFlag{Name: "team"},
		},
		Action: withServices(func(c *cli.Context, s *Services) error {
			if c.IsSet("match") && c.IsSet("team") {
				st := s.Client.GetStatus(c.Context, c.Int("match"), c.Int("team"))
				if st == nil {
					return errors.New("status unavailable")
				}
				return printJSON(c.App.Writer, st)
			}

			board := s.Client.GetAllStatuses(c.Context)
			if board == nil {
				return errors.New("status board unavailable")
			}
			tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MATCH\tTEAM\tSTATUS\tSCOUTER")
			for _, e := range monitor.ActiveEntries(board) {
				scouter := "-"
				if e.Scouter != nil {
					scouter = *e.Scouter
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", e.Match, e.Team, e.Status, scouter)
			}
			return tw.Flush()
		}),
	}
}

func uploadCommand() *cli.Command {
	return &cli.Command{
		Name:  "upload",
		Usage: "submit records that were completed while offline",
		Action: withServices(func(c *cli.Context, s *Services) error {
			if snap := s.Environment.Refresh(c.Context); !snap.Usable() {
				return errors.New("backend unreachable, nothing uploaded")
			}
			uploaded, err := s.newSession(c.Context).flow.UploadCompleted(c.Context)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "uploaded %d record(s)\n", uploaded)
			return nil
		}),
	}
}
