package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"sendermap/internal/config"
	"sendermap/internal/gmail"
	"sendermap/internal/model"
	"sendermap/internal/treemap"
)

func registerScan(app *cli.App, cfg *config.Config) {
	app.Commands = append(app.Commands, &cli.Command{
		Name:   "scan",
		Usage:  "Count unread mail by sender once and print the grouping",
		Action: func(c *cli.Context) error { return scan(c, cfg) },
	})
}

func scan(c *cli.Context, cfg *config.Config) error {
	e, err := setup(c, cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := gmail.NewService(ctx, cfg.ConfigDir, gmail.StdinPrompt())
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	client := gmail.NewClient(svc)
	e.svc.Connect(client, client)

	_, err = e.svc.RunIngestion(ctx, cfg.MaxResults, func(p model.Progress) {
		fmt.Fprintf(os.Stderr, "\rFetched %d / %d messages", p.Processed, p.Total)
	})
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}
	log.WithField("senders", len(e.svc.Senders())).Info("scan_done")

	printGrouping(os.Stdout, e.svc.GroupForDisplay(), e.svc.Total(), e.svc.Cutoff(), e.svc.Mode())
	return nil
}

func printGrouping(w io.Writer, entries []model.GroupedEntry, total, cutoff int, mode model.Mode) {
	fmt.Fprintf(w, "%d unread emails  (cutoff %d, below cutoff: %s)\n", total, cutoff, mode)
	if total == 0 {
		fmt.Fprintln(w, "No unread emails")
		return
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "Every sender is below the cutoff")
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "Sender", "Emails")
	for i, e := range entries {
		t.Row(strconv.Itoa(i+1), e.Key, strconv.Itoa(e.Value))
		if e.Metadata.ID == treemap.OthersID {
			for _, s := range e.Metadata.GroupedSenders {
				t.Row("", "  "+s.ID, strconv.Itoa(s.Size))
			}
		}
	}
	fmt.Fprintln(w, t.Render())
}
