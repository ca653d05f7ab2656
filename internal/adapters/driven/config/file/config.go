package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/vault"
	"github.com/custodia-labs/sercha-ingest/internal/connectors/rest"
	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "SERCHA_INGEST_"

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Ingestion sinks.
const (
	SinkJSONL  = "jsonl"
	SinkMemory = "memory"
)

// ErrMissingSecret is returned when no vault secret is configured.
var ErrMissingSecret = errors.New("vault secret is not configured (set " + EnvPrefix + "SECRET or vault.secret)")

// Duration is a time.Duration read from strings such as "90s" or "2h".
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the complete process configuration.
type Config struct {
	// DataDir holds the sqlite database and the default ingest directory.
	DataDir string `toml:"data_dir" env:"DATA_DIR"`

	// Owner is the caller identity used by the CLI.
	Owner string `toml:"owner" env:"OWNER"`

	Vault     VaultConfig     `toml:"vault"`
	Storage   StorageConfig   `toml:"storage"`
	HTTP      HTTPConfig      `toml:"http"`
	Sync      SyncConfig      `toml:"sync"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Ingest    IngestConfig    `toml:"ingest"`
}

// VaultConfig configures credential encryption.
type VaultConfig struct {
	Secret string `toml:"secret,omitempty" env:"SECRET"`
}

// StorageConfig selects the data source store.
type StorageConfig struct {
	Driver string `toml:"driver" env:"STORAGE_DRIVER"`
}

// HTTPConfig configures provider HTTP clients.
type HTTPConfig struct {
	Timeout       Duration `toml:"timeout" env:"HTTP_TIMEOUT"`
	RatePerSecond float64  `toml:"rate_per_second" env:"HTTP_RATE_PER_SECOND"`
	Burst         int      `toml:"burst" env:"HTTP_BURST"`
	UserAgent     string   `toml:"user_agent" env:"HTTP_USER_AGENT"`
}

// SyncConfig configures the orchestrator.
type SyncConfig struct {
	Workers    int      `toml:"workers" env:"SYNC_WORKERS"`
	StaleAfter Duration `toml:"stale_after" env:"SYNC_STALE_AFTER"`
}

// SchedulerConfig configures the daemon's background tasks.
type SchedulerConfig struct {
	Enabled         bool     `toml:"enabled" env:"SCHEDULER_ENABLED"`
	Interval        Duration `toml:"interval" env:"SCHEDULER_INTERVAL"`
	StaleResetEvery Duration `toml:"stale_reset_interval" env:"SCHEDULER_STALE_RESET_INTERVAL"`
	TickInterval    Duration `toml:"tick" env:"SCHEDULER_TICK"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `toml:"addr" env:"METRICS_ADDR"`
}

// IngestConfig selects where documents go.
type IngestConfig struct {
	Sink string `toml:"sink" env:"INGEST_SINK"`
	Dir  string `toml:"dir" env:"INGEST_DIR"`
}

// Default returns the built-in configuration. DataDir and Ingest.Dir are
// left empty and resolved by Load.
func Default() Config {
	sched := domain.DefaultSchedulerConfig()
	return Config{
		Owner:   defaultOwner(),
		Storage: StorageConfig{Driver: DriverSQLite},
		HTTP: HTTPConfig{
			Timeout:       Duration{rest.DefaultTimeout},
			RatePerSecond: rest.DefaultRate,
			Burst:         rest.DefaultBurst,
			UserAgent:     rest.DefaultUserAgent,
		},
		Sync: SyncConfig{
			Workers:    4,
			StaleAfter: Duration{sched.StaleAfter},
		},
		Scheduler: SchedulerConfig{
			Enabled:         sched.Enabled,
			Interval:        Duration{sched.GetTaskConfig(domain.TaskIDSourceSync).Interval},
			StaleResetEvery: Duration{sched.GetTaskConfig(domain.TaskIDStaleReset).Interval},
			TickInterval:    Duration{sched.TickInterval},
		},
		Metrics: MetricsConfig{Addr: ":9464"},
		Ingest:  IngestConfig{Sink: SinkJSONL},
	}
}

// DefaultPath returns ~/.sercha-ingest/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".sercha-ingest", "config.toml"), nil
}

// Load builds the configuration from defaults, the TOML file at path and
// the environment. A missing file is not an error. An empty path means
// DefaultPath.
func Load(path string) (*Config, error) {
	return load(path, os.Environ())
}

func load(path string, environ []string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := env.ParseWithOptions(&cfg, env.Options{
		Prefix:      EnvPrefix,
		Environment: envMap(environ),
	}); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.resolve(path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolve fills derived paths.
func (c *Config) resolve(configPath string) error {
	if c.DataDir == "" {
		c.DataDir = filepath.Join(filepath.Dir(configPath), "data")
	}
	if c.Ingest.Dir == "" {
		c.Ingest.Dir = filepath.Join(c.DataDir, "documents")
	}
	if c.Owner == "" {
		c.Owner = defaultOwner()
	}
	return nil
}

// Validate checks values that would otherwise fail later.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case DriverSQLite, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}
	switch c.Ingest.Sink {
	case SinkJSONL, SinkMemory:
	default:
		errs = append(errs, fmt.Errorf("ingest.sink: unknown sink %q", c.Ingest.Sink))
	}
	if c.Sync.Workers <= 0 {
		errs = append(errs, errors.New("sync.workers: must be positive"))
	}
	if c.HTTP.Timeout.Duration <= 0 {
		errs = append(errs, errors.New("http.timeout: must be positive"))
	}
	if c.Sync.StaleAfter.Duration <= 0 {
		errs = append(errs, errors.New("sync.stale_after: must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return nil
}

// RequireSecret returns the vault secret, ErrMissingSecret when none is
// set, or ErrInvalidInput when it is shorter than the vault accepts.
func (c *Config) RequireSecret() ([]byte, error) {
	if strings.TrimSpace(c.Vault.Secret) == "" {
		return nil, ErrMissingSecret
	}
	if len(c.Vault.Secret) < vault.MinSecretLength {
		return nil, fmt.Errorf("vault secret must be at least %d bytes: %w",
			vault.MinSecretLength, domain.ErrInvalidInput)
	}
	return []byte(c.Vault.Secret), nil
}

// RESTOptions returns the provider HTTP client options.
func (c *Config) RESTOptions() rest.Options {
	return rest.Options{
		Timeout:       c.HTTP.Timeout.Duration,
		RatePerSecond: c.HTTP.RatePerSecond,
		Burst:         c.HTTP.Burst,
		UserAgent:     c.HTTP.UserAgent,
	}
}

// SchedulerConfig returns the domain scheduler configuration.
func (c *Config) SchedulerConfig() domain.SchedulerConfig {
	return domain.SchedulerConfig{
		Enabled:      c.Scheduler.Enabled,
		TickInterval: c.Scheduler.TickInterval.Duration,
		StaleAfter:   c.Sync.StaleAfter.Duration,
		TaskConfigs: map[string]domain.TaskConfig{
			domain.TaskIDStaleReset: {
				Enabled:  c.Scheduler.StaleResetEvery.Duration > 0,
				Interval: c.Scheduler.StaleResetEvery.Duration,
			},
			domain.TaskIDSourceSync: {
				Enabled:  c.Scheduler.Interval.Duration > 0,
				Interval: c.Scheduler.Interval.Duration,
			},
		},
	}
}

// Save writes cfg to path as TOML, creating the directory. The vault
// secret is never written.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	cfg.Vault.Secret = ""
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func defaultOwner() string {
	for _, key := range []string{"USER", "USERNAME"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return "local"
}

func envMap(environ []string) map[string]string {
	out := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			out[k] = v
		}
	}
	return out
}
