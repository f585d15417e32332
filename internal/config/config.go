package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/warp/spirits-ledger/inventory"
)

// Config holds runtime configuration for the ledger server and CLI.
type Config struct {
	Addr                string        `env:"ADDR,default=:8080"`
	DBPath              string        `env:"DB_PATH,default=spirits.db"`
	LogLevel            string        `env:"LOG_LEVEL,default=info"`
	LogFormat           string        `env:"LOG_FORMAT,default=console"`
	CatalogPath         string        `env:"CATALOG_PATH"`
	NATSURL             string        `env:"NATS_URL"`
	NATSSubjectPrefix   string        `env:"NATS_SUBJECT_PREFIX,default=spirits"`
	AllowedOrigins      []string      `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:5173"`
	RateLimitPerMinute  int           `env:"RATE_LIMIT_PER_MINUTE,default=300"`
	UndoMode            string        `env:"UNDO_MODE,default=hard"`
	UndoRetention       time.Duration `env:"UNDO_RETENTION,default=720h"`
	ConsistencyInterval time.Duration `env:"CONSISTENCY_INTERVAL,default=1h"`
	SeedDefaultProducts bool          `env:"SEED_DEFAULT_PRODUCTS,default=true"`
	EventBufferSize     int           `env:"EVENT_BUFFER_SIZE,default=200"`
}

// Load returns a Config populated from environment variables.
func Load(ctx context.Context) (Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

// LoadFrom reads configuration from a fixed map instead of the environment.
func LoadFrom(ctx context.Context, env map[string]string) (Config, error) {
	return load(ctx, envconfig.MapLookuper(env))
}

func load(ctx context.Context, l envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the server could not start with.
func (c Config) Validate() error {
	if _, err := inventory.ParseUndoMode(c.UndoMode); err != nil {
		return err
	}
	if c.UndoRetention <= 0 {
		return fmt.Errorf("UNDO_RETENTION must be positive, got %s", c.UndoRetention)
	}
	if c.ConsistencyInterval < 0 {
		return fmt.Errorf("CONSISTENCY_INTERVAL cannot be negative, got %s", c.ConsistencyInterval)
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE cannot be negative, got %d", c.RateLimitPerMinute)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be console or json, got %q", c.LogFormat)
	}
	return nil
}

// ServiceOptions turns the undo settings into inventory options.
func (c Config) ServiceOptions() ([]inventory.Option, error) {
	undo, err := inventory.ParseUndoMode(c.UndoMode)
	if err != nil {
		return nil, err
	}
	return []inventory.Option{
		inventory.WithUndoStrategy(undo),
		inventory.WithRetention(c.UndoRetention),
	}, nil
}
