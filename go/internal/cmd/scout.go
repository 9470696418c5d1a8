package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mcdev12/scoutsync/go/internal/claim"
	"github.com/mcdev12/scoutsync/go/internal/models"
	"github.com/mcdev12/scoutsync/go/internal/scouting"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

var errNoSession = errors.New("no scouting session in progress, run `scout start` first")

// session is a flow bound to its own claim synchronizer for one command.
type session struct {
	claims *claim.Synchronizer
	flow   *scouting.Flow
}

func (s *Services) newSession(ctx context.Context) session {
	claims := s.newSynchronizer(ctx)
	return session{claims: claims, flow: s.newFlow(claims)}
}

// resume reloads the most recent in-progress draft into the session.
func (ss session) resume(ctx context.Context) error {
	d, err := ss.flow.FindResumable(ctx)
	if err != nil {
		return err
	}
	if d == nil {
		return errNoSession
	}
	return ss.flow.Resume(ctx, *d)
}

func scoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "scout",
		Usage: "enter match scouting data phase by phase",
		Subcommands: []*cli.Command{
			{
				Name:  "start",
				Usage: "claim a team and open its scouting session",
				Flags: append(append([]cli.Flag{}, matchFlags...),
					&cli.IntFlag{Name: "team", Required: true, Usage: "team number"},
					&cli.BoolFlag{Name: "manual", Usage: "enter the team by number even if it is not on the roster"},
				),
				Action: withServices(func(c *cli.Context, s *Services) error {
					mc, err := matchContext(c)
					if err != nil {
						return err
					}
					ss := s.newSession(c.Context)
					if err := ss.claims.SetContext(c.Context, mc); err != nil {
						return err
					}
					team := c.Int("team")
					if c.Bool("manual") {
						err = ss.claims.EnterManual(c.Context, team)
					} else {
						err = ss.claims.Select(c.Context, team)
					}
					if err != nil {
						return err
					}
					if err := ss.flow.Autosave(c.Context); err != nil {
						return err
					}
					return printJSON(c.App.Writer, ss.flow.Session())
				}),
			},
			{
				Name:  "resume",
				Usage: "show the session that the other scout commands continue",
				Action: withServices(func(c *cli.Context, s *Services) error {
					ss := s.newSession(c.Context)
					if err := ss.resume(c.Context); err != nil {
						return err
					}
					return printJSON(c.App.Writer, ss.flow.Session())
				}),
			},
			{
				Name:   "next",
				Usage:  "move the session to the next phase",
				Action: stepAction((*scouting.Flow).Next),
			},
			{
				Name:   "back",
				Usage:  "move the session to the previous phase",
				Action: stepAction((*scouting.Flow).Back),
			},
			{
				Name:      "answer",
				Usage:     "merge a JSON object into the session's answers",
				ArgsUsage: `'{"auto": {"l1": 2}}'`,
				Action: withServices(func(c *cli.Context, s *Services) error {
					if c.NArg() != 1 {
						return errors.New("answer requires one JSON object")
					}
					partial, err := models.DecodeAnswers([]byte(c.Args().First()))
					if err != nil {
						return err
					}
					ss := s.newSession(c.Context)
					if err := ss.resume(c.Context); err != nil {
						return err
					}
					ss.flow.UpdateAnswers(c.Context, partial)
					if err := ss.flow.Autosave(c.Context); err != nil {
						return err
					}
					return printJSON(c.App.Writer, ss.flow.Session().Answers)
				}),
			},
			{
				Name:  "discard",
				Usage: "drop the in-progress session without submitting",
				Action: withServices(func(c *cli.Context, s *Services) error {
					ss := s.newSession(c.Context)
					d, err := ss.flow.FindResumable(c.Context)
					if err != nil {
						return err
					}
					if d == nil {
						return errNoSession
					}
					if err := ss.flow.Discard(c.Context, *d); err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "discarded %s\n", d.Key)
					return nil
				}),
			},
			{
				Name:  "session",
				Usage: "interactive session with autosave: next, back, answer <json>, show, submit, quit",
				Action: withServices(func(c *cli.Context, s *Services) error {
					ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
					defer stop()

					ss := s.newSession(ctx)
					if err := ss.resume(ctx); err != nil {
						return err
					}
					go s.Environment.Run(ctx)
					go ss.flow.Run(ctx)

					return runSession(ctx, ss.flow, c.App.Reader, c.App.Writer)
				}),
			},
		},
	}
}

func stepAction(step func(*scouting.Flow, context.Context) error) cli.ActionFunc {
	return withServices(func(c *cli.Context, s *Services) error {
		ss := s.newSession(c.Context)
		if err := ss.resume(c.Context); err != nil {
			return err
		}
		if err := step(ss.flow, c.Context); err != nil {
			return err
		}
		if err := ss.flow.Autosave(c.Context); err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, ss.flow.Phase())
		return nil
	})
}

func submitCommand() *cli.Command {
	return &cli.Command{
		Name:  "submit",
		Usage: "submit the in-progress session, or keep it for upload when offline",
		Action: withServices(func(c *cli.Context, s *Services) error {
			ss := s.newSession(c.Context)
			if err := ss.resume(c.Context); err != nil {
				return err
			}
			return submit(c.Context, ss.flow, c.App.Writer)
		}),
	}
}

func submit(ctx context.Context, flow *scouting.Flow, w io.Writer) error {
	outcome, err := flow.Submit(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, outcome)
	if outcome == scouting.Failed {
		return errors.New("backend rejected the record, it was kept as a draft")
	}
	return nil
}

// runSession reads one command per line until quit, submit or end of input.
// The session is saved before returning.
func runSession(ctx context.Context, flow *scouting.Flow, r io.Reader, w io.Writer) error {
	defer func() {
		if err := flow.Autosave(context.WithoutCancel(ctx)); err != nil {
			log.Error().Err(err).Msg("failed to save session")
		}
	}()

	fmt.Fprintf(w, "phase %s\n", flow.Phase())
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		cmd, arg, _ := strings.Cut(strings.TrimSpace(scanner.Text()), " ")

		var err error
		switch cmd {
		case "":
			continue
		case "next":
			err = flow.Next(ctx)
		case "back":
			err = flow.Back(ctx)
		case "answer":
			var partial models.Answers
			if partial, err = models.DecodeAnswers([]byte(arg)); err == nil {
				flow.UpdateAnswers(ctx, partial)
			}
		case "show":
			err = printJSON(w, flow.Session())
		case "submit":
			return submit(ctx, flow, w)
		case "quit", "exit":
			return nil
		default:
			err = fmt.Errorf("unknown command %q", cmd)
		}

		if err != nil {
			fmt.Fprintf(w, "error: %v\n", err)
			continue
		}
		fmt.Fprintf(w, "phase %s\n", flow.Phase())
	}
	return scanner.Err()
}
