package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/mcdev12/scoutsync/go/internal/models"
	"github.com/mcdev12/scoutsync/go/internal/storage"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

func draftsCommand() *cli.Command {
	return &cli.Command{
		Name:  "drafts",
		Usage: "inspect scouting drafts stored on this device",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list drafts, newest first",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "status", Usage: "only drafts with these statuses"},
				},
				Action: withServices(func(c *cli.Context, s *Services) error {
					statuses := make([]models.Phase, 0, len(c.StringSlice("status")))
					for _, st := range c.StringSlice("status") {
						statuses = append(statuses, models.Phase(st))
					}
					drafts, err := s.Store.ListDrafts(c.Context, statuses...)
					if err != nil {
						return err
					}

					tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "KEY\tALLIANCE\tSCOUTER\tSTATUS\tUPDATED")
					for _, d := range drafts {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.Key, d.Alliance, d.Scouter, d.Status, d.UpdatedAt.Local().Format("15:04:05"))
					}
					return tw.Flush()
				}),
			},
			{
				Name:      "show",
				Usage:     "print one draft",
				ArgsUsage: "<type|match|team>",
				Action: withServices(func(c *cli.Context, s *Services) error {
					if c.NArg() != 1 {
						return errors.New("show requires a draft key")
					}
					d, err := s.Store.GetDraft(c.Context, c.Args().First())
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, d)
				}),
			},
			{
				Name:      "delete",
				Usage:     "delete one draft",
				ArgsUsage: "<type|match|team>",
				Action: withServices(func(c *cli.Context, s *Services) error {
					if c.NArg() != 1 {
						return errors.New("delete requires a draft key")
					}
					return s.Store.DeleteDraft(c.Context, c.Args().First())
				}),
			},
		},
	}
}

func settingsCommand() *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "read and change device settings",
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "print all settings, or one by name",
				ArgsUsage: "[name]",
				Action: withServices(func(c *cli.Context, s *Services) error {
					if c.NArg() == 0 {
						settings, err := s.Store.GetSettings(c.Context)
						if err != nil {
							return err
						}
						return printJSON(c.App.Writer, settings)
					}
					v, ok, err := s.Store.GetSetting(c.Context, c.Args().First())
					if err != nil {
						return err
					}
					if !ok {
						return fmt.Errorf("setting %q is not set", c.Args().First())
					}
					return printJSON(c.App.Writer, v)
				}),
			},
			{
				Name:      "set",
				Usage:     "merge name=value pairs into the settings (values are YAML scalars or documents)",
				ArgsUsage: "name=value...",
				Action: withServices(func(c *cli.Context, s *Services) error {
					patch, err := parseSettings(c.Args().Slice())
					if err != nil {
						return err
					}
					return s.Store.SetSettings(c.Context, patch)
				}),
			},
			{
				Name:  "clear",
				Usage: "remove every stored setting",
				Action: withServices(func(c *cli.Context, s *Services) error {
					return s.Store.ClearSettings(c.Context)
				}),
			},
		},
	}
}

// parseSettings turns name=value arguments into a settings patch. An empty
// value removes the setting.
func parseSettings(args []string) (storage.Settings, error) {
	if len(args) == 0 {
		return nil, errors.New("set requires at least one name=value")
	}
	patch := storage.Settings{}
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid setting %q, want name=value", arg)
		}
		if raw == "" {
			patch[name] = nil
			continue
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", name, err)
		}
		patch[name] = v
	}
	return patch, nil
}
