// Package config loads the troupe configuration: defaults, then an optional
// YAML file, then TROUPE_* environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "TROUPE_"

// NoModel disables the model of a stage, forcing its rule-based path.
const NoModel = "none"

// Config is the resolved configuration of an engine and its surfaces.
type Config struct {
	LogLevel     string                 `mapstructure:"log_level" env:"LOG_LEVEL"`
	Templates    string                 `mapstructure:"templates" env:"TEMPLATES"`
	Models       string                 `mapstructure:"models" env:"MODELS"`
	DefaultModel string                 `mapstructure:"default_model" env:"DEFAULT_MODEL"`
	FanOutLimit  int                    `mapstructure:"fanout_limit" env:"FANOUT_LIMIT"`
	Stages       map[string]StageConfig `mapstructure:"stages"`
	Table        TableConfig            `mapstructure:"table" envPrefix:"TABLE_"`
	Guard        GuardConfig            `mapstructure:"guard" envPrefix:"GUARD_"`
	Session      SessionConfig          `mapstructure:"session" envPrefix:"SESSION_"`
	HTTP         HTTPConfig             `mapstructure:"http" envPrefix:"HTTP_"`
}

// StageConfig selects the model of one stage. An empty Model falls back to
// DefaultModel; NoModel disables it.
type StageConfig struct {
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
}

// TableConfig selects the table snapshot source.
type TableConfig struct {
	Kind   string   `mapstructure:"kind" env:"KIND"`
	Path   string   `mapstructure:"path" env:"PATH"`
	Tables []string `mapstructure:"tables" env:"TABLES" envSeparator:","`
}

// GuardConfig configures the model failure breaker.
type GuardConfig struct {
	MaxFailures int           `mapstructure:"max_failures" env:"MAX_FAILURES"`
	Cooldown    time.Duration `mapstructure:"cooldown" env:"COOLDOWN"`
}

// SessionConfig selects the session store.
type SessionConfig struct {
	Store           string        `mapstructure:"store" env:"STORE"`
	Path            string        `mapstructure:"path" env:"PATH"`
	RedisAddr       string        `mapstructure:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword   string        `mapstructure:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB         int           `mapstructure:"redis_db" env:"REDIS_DB"`
	TTL             time.Duration `mapstructure:"ttl" env:"TTL"`
	DistributedLock bool          `mapstructure:"distributed_lock" env:"DISTRIBUTED_LOCK"`
	LockTTL         time.Duration `mapstructure:"lock_ttl" env:"LOCK_TTL"`
}

// HTTPConfig configures the HTTP surface.
type HTTPConfig struct {
	Addr    string `mapstructure:"addr" env:"ADDR"`
	Metrics bool   `mapstructure:"metrics" env:"METRICS"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		LogLevel: "info",
		Stages:   map[string]StageConfig{},
		Table:    TableConfig{Kind: "none"},
		Guard:    GuardConfig{MaxFailures: 3, Cooldown: 30 * time.Second},
		Session:  SessionConfig{Store: "memory", LockTTL: 30 * time.Second},
		HTTP:     HTTPConfig{Addr: ":8080", Metrics: true},
	}
}

// Load resolves the configuration. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           cfg,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

// Validate rejects unknown store and table kinds.
func (c Config) Validate() error {
	switch c.Session.Store {
	case "memory", "file", "redis":
	default:
		return fmt.Errorf("unknown session store %q (want memory, file or redis)", c.Session.Store)
	}
	if c.Session.Store == "redis" && c.Session.RedisAddr == "" {
		return fmt.Errorf("session store redis requires redis_addr")
	}
	if c.Session.DistributedLock && c.Session.Store != "redis" {
		return fmt.Errorf("distributed_lock requires the redis session store")
	}

	switch c.Table.Kind {
	case "", "none":
	case "file", "sqlite":
		if c.Table.Path == "" {
			return fmt.Errorf("table kind %s requires a path", c.Table.Kind)
		}
	default:
		return fmt.Errorf("unknown table kind %q (want none, file or sqlite)", c.Table.Kind)
	}

	if c.FanOutLimit < 0 {
		return fmt.Errorf("fanout_limit must not be negative")
	}
	return nil
}

// StageModel returns the model name configured for a stage, and whether
// the stage should use a model at all.
func (c Config) StageModel(stage string) (string, bool) {
	name := c.Stages[stage].Model
	if name == "" {
		name = c.DefaultModel
	}
	if name == "" || name == NoModel {
		return "", false
	}
	return name, true
}
