// Package config loads the pipeline configuration and resource files.
// Settings come from built-in defaults, an optional TOML file, and a
// small set of environment overrides, applied in that order.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/veille-labs/veille/pkg/veille/internalerr"
	"github.com/veille-labs/veille/pkg/veille/retry"
	"github.com/veille-labs/veille/pkg/veille/search"
)

//go:embed sample_config.toml
var sampleConfig string

const (
	storeDSNEnv       = "VEILLE_STORE_DSN"
	searchEndpointEnv = "VEILLE_SEARCH_ENDPOINT"
	searchIndexEnv    = "VEILLE_SEARCH_INDEX"
	logLevelEnv       = "VEILLE_LOG_LEVEL"
)

// Store driver names accepted in the [store] section.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Store selects and configures the persistence backend.
type Store struct {
	// Driver is one of "sqlite", "postgres" or "memory".
	Driver string `toml:"driver"`
	// DSN is the sqlite file path or the postgres connection string.
	DSN string `toml:"dsn"`
}

// Search configures the search engine the exporter feeds.
type Search struct {
	Endpoint string `toml:"endpoint"`
	Index    string `toml:"index"`
	// BulkSize caps how many documents a single _bulk request carries.
	BulkSize int `toml:"bulk_size"`
	// RequestsPerSecond throttles export traffic. Zero disables pacing.
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// Enrich tunes the enrichment run.
type Enrich struct {
	Workers       int `toml:"workers"`
	BatchSize     int `toml:"batch_size"`
	ProgressEvery int `toml:"progress_every"`
}

// Retry shapes the backoff schedule used for store and search calls.
// Durations are plain milliseconds so the TOML stays numeric.
type Retry struct {
	MaxAttempts      int     `toml:"max_attempts"`
	InitialBackoffMS int     `toml:"initial_backoff_ms"`
	MaxBackoffMS     int     `toml:"max_backoff_ms"`
	Multiplier       float64 `toml:"multiplier"`
}

// Resources points at optional files overriding the built-in resources.
type Resources struct {
	// Stopwords is a YAML file with english and french term lists.
	Stopwords string `toml:"stopwords"`
}

// Logging controls the slog handler the commands install.
type Logging struct {
	// Level is one of debug, info, warn or error.
	Level string `toml:"level"`
	// Format is "text" or "json".
	Format string `toml:"format"`
}

// Config carries every tunable of the pipeline commands.
type Config struct {
	Store     Store     `toml:"store"`
	Search    Search    `toml:"search"`
	Enrich    Enrich    `toml:"enrich"`
	Retry     Retry     `toml:"retry"`
	Resources Resources `toml:"resources"`
	Logging   Logging   `toml:"logging"`
}

// Default returns the configuration used when no file overrides it.
func Default() Config {
	return Config{
		Store: Store{
			Driver: DriverSQLite,
			DSN:    "veille.db",
		},
		Search: Search{
			Endpoint: "http://localhost:9200",
			Index:    search.DefaultIndex,
			BulkSize: 500,
		},
		Enrich: Enrich{
			Workers:       4,
			BatchSize:     100,
			ProgressEvery: 100,
		},
		Retry: Retry{
			MaxAttempts:      4,
			InitialBackoffMS: 250,
			MaxBackoffMS:     5000,
			Multiplier:       2.0,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from the defaults, the TOML file at path,
// and the environment, in that order. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(storeDSNEnv); v != "" {
		c.Store.DSN = v
	}

	if v := os.Getenv(searchEndpointEnv); v != "" {
		c.Search.Endpoint = v
	}

	if v := os.Getenv(searchIndexEnv); v != "" {
		c.Search.Index = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

// Validate reports values no command could run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite, DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("%w: unknown store driver %q", internalerr.ErrInvalidConfig, c.Store.Driver)
	}

	if c.Store.Driver != DriverMemory && c.Store.DSN == "" {
		return fmt.Errorf("%w: store dsn is required for driver %q", internalerr.ErrInvalidConfig, c.Store.Driver)
	}

	if c.Search.Endpoint == "" {
		return fmt.Errorf("%w: search endpoint is required", internalerr.ErrInvalidConfig)
	}

	if c.Search.Index == "" {
		return fmt.Errorf("%w: search index is required", internalerr.ErrInvalidConfig)
	}

	if c.Search.BulkSize < 0 || c.Search.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: search limits cannot be negative", internalerr.ErrInvalidConfig)
	}

	if c.Enrich.Workers < 0 || c.Enrich.BatchSize < 0 || c.Enrich.ProgressEvery < 0 {
		return fmt.Errorf("%w: enrich settings cannot be negative", internalerr.ErrInvalidConfig)
	}

	if c.Retry.MaxAttempts < 0 || c.Retry.InitialBackoffMS < 0 || c.Retry.MaxBackoffMS < 0 {
		return fmt.Errorf("%w: retry settings cannot be negative", internalerr.ErrInvalidConfig)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", internalerr.ErrInvalidConfig, c.Logging.Level)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", internalerr.ErrInvalidConfig, c.Logging.Format)
	}

	return nil
}

// RetryPolicy converts the retry section into the policy value taken by
// the store and search layers. Zero fields keep the policy defaults.
func (c *Config) RetryPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	if c.Retry.MaxAttempts > 0 {
		p.MaxAttempts = c.Retry.MaxAttempts
	}
	if c.Retry.InitialBackoffMS > 0 {
		p.InitialBackoff = time.Duration(c.Retry.InitialBackoffMS) * time.Millisecond
	}
	if c.Retry.MaxBackoffMS > 0 {
		p.MaxBackoff = time.Duration(c.Retry.MaxBackoffMS) * time.Millisecond
	}
	if c.Retry.Multiplier >= 1 {
		p.Multiplier = c.Retry.Multiplier
	}
	return p
}

// SlogLevel maps the configured level onto slog's scale.
func (l Logging) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// CreateSample writes a commented sample configuration to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
