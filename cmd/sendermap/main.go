package main

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"sendermap/internal/app"
	"sendermap/internal/cache"
	"sendermap/internal/config"
	"sendermap/internal/gmail"
	"sendermap/internal/store"
)

func main() {
	cfg := &config.Config{}
	cliApp := &cli.App{
		Name:  "sendermap",
		Usage: "see who fills your inbox",
		Description: `sendermap counts your unread Gmail messages by sender and draws
them as a treemap. Small senders can be merged into one "Others" cell or
hidden with a cutoff.`,
		Flags:  cfg.Parameters(),
		Action: func(c *cli.Context) error { return runTUI(c, cfg) },
	}

	registerTUI(cliApp, cfg)
	registerScan(cliApp, cfg)
	registerShow(cliApp, cfg)
	registerSignOut(cliApp, cfg)

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// env is what every command works with once the configuration is resolved.
type env struct {
	db  *store.SQLiteStore
	svc *app.Service
}

func (e *env) Close() {
	e.db.Close()
}

func setup(c *cli.Context, cfg *config.Config) (*env, error) {
	if err := cfg.Resolve(c.IsSet); err != nil {
		return nil, err
	}
	cfg.SetupLogging()

	db, err := store.NewSQLiteStore(cfg.CachePath)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	configDir := cfg.ConfigDir
	svc := app.NewService(cfg.IngestConfig(), cache.New(db), func() error {
		return gmail.SignOut(configDir)
	})
	svc.Restore(context.Background())

	log.WithFields(log.Fields{
		"config_dir":    cfg.ConfigDir,
		"cache_path":    cfg.CachePath,
		"query":         cfg.Query,
		"max_results":   cfg.MaxResults,
		"batch_size":    cfg.BatchSize,
		"fetch_attempt": cfg.FetchAttempts,
		"log_level":     cfg.LogLevel,
		"log_format":    cfg.LogFormat,
	}).Debug("starting")

	return &env{db: db, svc: svc}, nil
}
