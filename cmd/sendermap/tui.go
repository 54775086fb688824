package main

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"sendermap/internal/config"
	"sendermap/internal/tui"
)

func registerTUI(app *cli.App, cfg *config.Config) {
	app.Commands = append(app.Commands, &cli.Command{
		Name:   "tui",
		Usage:  "Browse the sender treemap (default)",
		Action: func(c *cli.Context) error { return runTUI(c, cfg) },
	})
}

func runTUI(c *cli.Context, cfg *config.Config) error {
	e, err := setup(c, cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	// The alternate screen owns the terminal, so logs go to a file.
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	log.SetOutput(f)

	appModel := tui.NewAppModel(e.svc, cfg.ConfigDir, cfg.MaxResults)
	p := tea.NewProgram(&appModel, tea.WithAltScreen())
	appModel.SetProgram(p)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run terminal UI: %w", err)
	}
	return nil
}
