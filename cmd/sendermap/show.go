package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"sendermap/internal/config"
	"sendermap/internal/model"
	"sendermap/internal/treemap"
)

func registerShow(app *cli.App, cfg *config.Config) {
	var cutoff int
	var mode string
	var save bool
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "show",
		Usage: "Print the cached grouping without contacting Gmail",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "cutoff",
				Usage:       "senders with fewer emails are regrouped or hidden (default: saved cutoff)",
				Destination: &cutoff,
			},
			&cli.StringFlag{
				Name:        "mode",
				Usage:       "what to do with senders below the cutoff (regroup/hide, default: saved mode)",
				Destination: &mode,
			},
			&cli.BoolFlag{
				Name:        "save",
				Usage:       "remember --cutoff and --mode for later runs",
				Destination: &save,
			},
		},
		Action: func(c *cli.Context) error {
			return show(c, cfg, c.IsSet("cutoff"), cutoff, mode, save)
		},
	})
}

func show(c *cli.Context, cfg *config.Config, cutoffSet bool, cutoff int, mode string, save bool) error {
	e, err := setup(c, cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	svc := e.svc
	if !svc.HasData() {
		fmt.Fprintln(os.Stderr, "No cached data. Run `sendermap scan` first.")
		return nil
	}

	applied := svc.Cutoff()
	if cutoffSet {
		applied = treemap.ClampCutoff(svc.Senders(), cutoff)
	}
	m := svc.Mode()
	if mode != "" {
		m = model.ParseMode(mode)
	}

	if save {
		ctx := context.Background()
		applied = svc.SetCutoff(ctx, applied)
		svc.SetMode(ctx, m)
	}

	printGrouping(os.Stdout, treemap.Group(svc.Senders(), applied, m), svc.Total(), applied, m)
	return nil
}
