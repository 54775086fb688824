// Package config holds the sendermap settings. Values come from defaults,
// then an optional YAML file, then command-line flags and SENDERMAP_*
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"sendermap/internal/ingest"
)

type Config struct {
	ConfigPath string `yaml:"-"`

	ConfigDir  string `yaml:"config_dir"`
	CachePath  string `yaml:"cache_path"`
	Query      string `yaml:"query"`
	MaxResults int64  `yaml:"max_results"`

	BatchSize     int           `yaml:"batch_size"`
	FetchAttempts int           `yaml:"fetch_attempts"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	MinDelay      time.Duration `yaml:"min_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	LogFile   string `yaml:"log_file"`
}

func DefaultConfig() Config {
	ic := ingest.DefaultConfig()
	return Config{
		Query:         ic.Query,
		MaxResults:    500,
		BatchSize:     ic.BatchSize,
		FetchAttempts: ic.Attempts,
		InitialDelay:  ic.InitialDelay,
		MinDelay:      ic.MinDelay,
		MaxDelay:      ic.MaxDelay,
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

func (cfg *Config) Parameters() []cli.Flag {
	def := DefaultConfig()

	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to a YAML config file",
			EnvVars:     []string{"SENDERMAP_CONFIG"},
			Destination: &cfg.ConfigPath,
		},
		&cli.StringFlag{
			Name:        "config-dir",
			Usage:       "directory holding client_secret.json, the token and the cache (default ~/.config/sendermap)",
			EnvVars:     []string{"SENDERMAP_CONFIG_DIR"},
			Destination: &cfg.ConfigDir,
		},
		&cli.StringFlag{
			Name:        "cache-path",
			Usage:       "sqlite cache file (default <config-dir>/sendermap.db)",
			EnvVars:     []string{"SENDERMAP_CACHE_PATH"},
			Destination: &cfg.CachePath,
		},
		&cli.StringFlag{
			Name:        "query",
			Usage:       "Gmail search query selecting the messages to count",
			EnvVars:     []string{"SENDERMAP_QUERY"},
			Destination: &cfg.Query,
			Value:       def.Query,
		},
		&cli.Int64Flag{
			Name:        "max-results",
			Usage:       "maximum number of messages per run (at most 500)",
			EnvVars:     []string{"SENDERMAP_MAX_RESULTS"},
			Destination: &cfg.MaxResults,
			Value:       def.MaxResults,
		},
		&cli.IntFlag{
			Name:        "batch-size",
			Usage:       "messages fetched concurrently per batch",
			EnvVars:     []string{"SENDERMAP_BATCH_SIZE"},
			Destination: &cfg.BatchSize,
			Value:       def.BatchSize,
		},
		&cli.IntFlag{
			Name:        "fetch-attempts",
			Usage:       "attempts per message when rate limited",
			EnvVars:     []string{"SENDERMAP_FETCH_ATTEMPTS"},
			Destination: &cfg.FetchAttempts,
			Value:       def.FetchAttempts,
		},
		&cli.DurationFlag{
			Name:        "initial-delay",
			Usage:       "pause between batches at the start of a run",
			EnvVars:     []string{"SENDERMAP_INITIAL_DELAY"},
			Destination: &cfg.InitialDelay,
			Value:       def.InitialDelay,
		},
		&cli.DurationFlag{
			Name:        "min-delay",
			Usage:       "shortest pause between batches",
			EnvVars:     []string{"SENDERMAP_MIN_DELAY"},
			Destination: &cfg.MinDelay,
			Value:       def.MinDelay,
		},
		&cli.DurationFlag{
			Name:        "max-delay",
			Usage:       "longest pause between batches",
			EnvVars:     []string{"SENDERMAP_MAX_DELAY"},
			Destination: &cfg.MaxDelay,
			Value:       def.MaxDelay,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "logging level",
			EnvVars:     []string{"SENDERMAP_LOG_LEVEL"},
			Destination: &cfg.LogLevel,
			Value:       def.LogLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "logging format (text/json)",
			EnvVars:     []string{"SENDERMAP_LOG_FORMAT"},
			Destination: &cfg.LogFormat,
			Value:       def.LogFormat,
		},
		&cli.StringFlag{
			Name:        "log-file",
			Usage:       "log destination while the terminal UI runs (default <config-dir>/sendermap.log)",
			EnvVars:     []string{"SENDERMAP_LOG_FILE"},
			Destination: &cfg.LogFile,
		},
	}
}

// fileFields pairs each flag with the Config field it fills from the file.
var fileFields = []struct {
	flag string
	copy func(dst, src *Config)
}{
	{"config-dir", func(d, s *Config) { d.ConfigDir = s.ConfigDir }},
	{"cache-path", func(d, s *Config) { d.CachePath = s.CachePath }},
	{"query", func(d, s *Config) { d.Query = s.Query }},
	{"max-results", func(d, s *Config) { d.MaxResults = s.MaxResults }},
	{"batch-size", func(d, s *Config) { d.BatchSize = s.BatchSize }},
	{"fetch-attempts", func(d, s *Config) { d.FetchAttempts = s.FetchAttempts }},
	{"initial-delay", func(d, s *Config) { d.InitialDelay = s.InitialDelay }},
	{"min-delay", func(d, s *Config) { d.MinDelay = s.MinDelay }},
	{"max-delay", func(d, s *Config) { d.MaxDelay = s.MaxDelay }},
	{"log-level", func(d, s *Config) { d.LogLevel = s.LogLevel }},
	{"log-format", func(d, s *Config) { d.LogFormat = s.LogFormat }},
	{"log-file", func(d, s *Config) { d.LogFile = s.LogFile }},
}

// LoadFile reads a YAML config file. Keys missing from the file keep their
// defaults.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.ConfigPath = path
	return cfg, nil
}

// Resolve merges the config file under any flag the user did not set,
// then fills in paths derived from the config directory. isSet reports
// whether a flag was given on the command line or through its environment
// variable.
func (cfg *Config) Resolve(isSet func(flag string) bool) error {
	if cfg.ConfigPath != "" {
		file, err := LoadFile(cfg.ConfigPath)
		if err != nil {
			return err
		}
		for _, f := range fileFields {
			if !isSet(f.flag) {
				f.copy(cfg, &file)
			}
		}
	}

	if cfg.ConfigDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("determine home directory: %w", err)
		}
		cfg.ConfigDir = filepath.Join(home, ".config", "sendermap")
	}
	if cfg.CachePath == "" {
		cfg.CachePath = filepath.Join(cfg.ConfigDir, "sendermap.db")
	}
	if cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(cfg.ConfigDir, "sendermap.log")
	}
	return cfg.validate()
}

func (cfg *Config) validate() error {
	if cfg.MaxResults <= 0 || cfg.MaxResults > 500 {
		return fmt.Errorf("max-results must be between 1 and 500, got %d", cfg.MaxResults)
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be positive, got %d", cfg.BatchSize)
	}
	if cfg.FetchAttempts <= 0 {
		return fmt.Errorf("fetch-attempts must be positive, got %d", cfg.FetchAttempts)
	}
	if cfg.MinDelay > cfg.MaxDelay {
		return fmt.Errorf("min-delay %v exceeds max-delay %v", cfg.MinDelay, cfg.MaxDelay)
	}
	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("log-level: %w", err)
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log-format must be text or json, got %q", cfg.LogFormat)
	}
	return nil
}

// IngestConfig converts the settings into ingestion parameters.
func (cfg *Config) IngestConfig() ingest.Config {
	return ingest.Config{
		Query:        cfg.Query,
		BatchSize:    cfg.BatchSize,
		Attempts:     cfg.FetchAttempts,
		InitialDelay: cfg.InitialDelay,
		MinDelay:     cfg.MinDelay,
		MaxDelay:     cfg.MaxDelay,
	}
}

// SetupLogging applies the level and format to the standard logger.
func (cfg *Config) SetupLogging() {
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}
	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}
}
