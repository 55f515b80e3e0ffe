// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads the identity service configuration.
//
// Sources are layered, later ones winning: built-in defaults, an optional
// YAML file, command-line flags the user set explicitly, then IDENTITY_*
// environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/gobwas/glob"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/identity/internal/logging"
	"github.com/holomush/identity/internal/xdg"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "IDENTITY_"

// Session store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Directory backends.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// MinTokenBytes is the smallest accepted session token entropy.
const MinTokenBytes = 33

// Config is the full service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http" envPrefix:"HTTP_" jsonschema:"description=Public HTTP API"`
	Metrics   MetricsConfig   `yaml:"metrics" envPrefix:"METRICS_" jsonschema:"description=Prometheus and health endpoints"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
	Session   SessionConfig   `yaml:"session" envPrefix:"SESSION_"`
	Redis     RedisConfig     `yaml:"redis" envPrefix:"REDIS_"`
	Directory DirectoryConfig `yaml:"directory" envPrefix:"DIRECTORY_" jsonschema:"description=User directory backend"`
	Tracing   TracingConfig   `yaml:"tracing" envPrefix:"TRACING_"`
}

// HTTPConfig configures the public API server.
type HTTPConfig struct {
	Addr            string        `yaml:"addr" env:"ADDR" jsonschema:"minLength=1"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:"," jsonschema:"description=CORS origin glob patterns"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" jsonschema:"type=string,pattern=^([0-9]+(ns|us|ms|s|m|h))+$"`
}

// MetricsConfig configures the observability server. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr" env:"ADDR"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `yaml:"format" env:"FORMAT" jsonschema:"enum=json,enum=text"`
	Level  string `yaml:"level" env:"LEVEL" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// SessionConfig configures session issuance and storage.
type SessionConfig struct {
	TTL        time.Duration `yaml:"ttl" env:"TTL" jsonschema:"type=string,pattern=^([0-9]+(ns|us|ms|s|m|h))+$"`
	TokenBytes int           `yaml:"token_bytes" env:"TOKEN_BYTES" jsonschema:"minimum=33"`
	Store      string        `yaml:"store" env:"STORE" jsonschema:"enum=memory,enum=redis,enum=postgres"`
	// SweepInterval is how often the memory and postgres stores drop
	// expired sessions. Zero disables the sweep; expired entries are still
	// never returned.
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL" jsonschema:"type=string,pattern=^([0-9]+(ns|us|ms|s|m|h))+$"`
}

// RedisConfig configures the redis session store.
type RedisConfig struct {
	Addr      string `yaml:"addr" env:"ADDR"`
	Password  string `yaml:"password" env:"PASSWORD"`
	DB        int    `yaml:"db" env:"DB" jsonschema:"minimum=0"`
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// DirectoryConfig selects the user directory backend.
type DirectoryConfig struct {
	Driver      string `yaml:"driver" env:"DRIVER" jsonschema:"enum=memory,enum=postgres,enum=sqlite"`
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
	SQLitePath  string `yaml:"sqlite_path" env:"SQLITE_PATH"`
	// AutoMigrate applies pending postgres migrations at startup.
	AutoMigrate bool `yaml:"auto_migrate" env:"AUTO_MIGRATE"`
	// MaxConns caps the postgres pool; zero keeps the driver default.
	MaxConns int32 `yaml:"max_conns" env:"MAX_CONNS" jsonschema:"minimum=0"`
	// ConnectAttempts and ConnectBackoff bound the startup wait for
	// postgres to answer a ping.
	ConnectAttempts uint64        `yaml:"connect_attempts" env:"CONNECT_ATTEMPTS" jsonschema:"minimum=1"`
	ConnectBackoff  time.Duration `yaml:"connect_backoff" env:"CONNECT_BACKOFF" jsonschema:"type=string,pattern=^([0-9]+(ns|us|ms|s|m|h))+$"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint" env:"ENDPOINT"`
	Insecure    bool    `yaml:"insecure" env:"INSECURE"`
	SampleRatio float64 `yaml:"sample_ratio" env:"SAMPLE_RATIO" jsonschema:"minimum=0,maximum=1"`
}

// Default returns the built-in configuration: an in-memory service on
// localhost with one hour sessions.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:            "127.0.0.1:8080",
			ShutdownTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9100"},
		Log:     LogConfig{Format: "json", Level: "info"},
		Session: SessionConfig{
			TTL:           time.Hour,
			TokenBytes:    MinTokenBytes,
			Store:         StoreMemory,
			SweepInterval: time.Minute,
		},
		Redis:     RedisConfig{Addr: "127.0.0.1:6379", KeyPrefix: "session:"},
		Directory: DirectoryConfig{
			Driver:          DriverMemory,
			SQLitePath:      xdg.SQLitePath(),
			ConnectAttempts: 5,
			ConnectBackoff:  200 * time.Millisecond,
		},
		Tracing:   TracingConfig{SampleRatio: 1},
	}
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"http-addr":        "http.addr",
	"metrics-addr":     "metrics.addr",
	"log-format":       "log.format",
	"log-level":        "log.level",
	"session-ttl":      "session.ttl",
	"session-store":    "session.store",
	"redis-addr":       "redis.addr",
	"directory-driver": "directory.driver",
	"database-url":     "directory.database_url",
	"sqlite-path":      "directory.sqlite_path",
	"tracing-endpoint": "tracing.endpoint",
}

// BindFlags registers the config override flags on fs, with the built-in
// defaults shown in help.
func BindFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("http-addr", d.HTTP.Addr, "HTTP API listen address")
	fs.String("metrics-addr", d.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.Duration("session-ttl", d.Session.TTL, "session expiry window")
	fs.String("session-store", d.Session.Store, "session store (memory, redis or postgres)")
	fs.String("redis-addr", d.Redis.Addr, "redis address")
	fs.String("directory-driver", d.Directory.Driver, "user directory (memory, postgres or sqlite)")
	fs.String("database-url", "", "PostgreSQL URL for the postgres directory")
	fs.String("sqlite-path", d.Directory.SQLitePath, "database file for the sqlite directory")
	fs.String("tracing-endpoint", "", "OTLP/HTTP collector host:port (empty = no export)")
}

// LoadOptions selects the sources for Load.
type LoadOptions struct {
	// Path is a YAML config file. Empty skips the file layer.
	Path string
	// Flags holds flags registered by BindFlags. Only flags the user set
	// override lower layers.
	Flags *pflag.FlagSet
	// Environ replaces the process environment, for tests.
	Environ map[string]string
}

// Load builds a Config from the layered sources and validates it.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	if opts.Path != "" {
		data, err := os.ReadFile(opts.Path)
		if err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", opts.Path).Wrap(err)
		}
		if err := ValidateYAML(data); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("path", opts.Path).Wrap(err)
		}
		if err := k.Load(file.Provider(opts.Path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", opts.Path).Wrap(err)
		}
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "decode config").Wrap(err)
	}

	if err := env.ParseWithOptions(cfg, env.Options{
		Prefix:      EnvPrefix,
		Environment: opts.Environ,
	}); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("source", "environment").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the semantic constraints the schema cannot express and
// reports every problem at once.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.HTTP.Addr == "" {
		add("http.addr is required")
	}
	for _, origin := range c.HTTP.AllowedOrigins {
		if _, err := glob.Compile(origin); err != nil {
			add("http.allowed_origins: invalid pattern %q", origin)
		}
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		add("http.shutdown_timeout must be positive")
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		add("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		add("log.level: unknown level %q", c.Log.Level)
	}

	if c.Session.TTL <= 0 {
		add("session.ttl must be positive")
	}
	if c.Session.TokenBytes < MinTokenBytes {
		add("session.token_bytes must be at least %d", MinTokenBytes)
	}
	if c.Session.SweepInterval < 0 {
		add("session.sweep_interval must not be negative")
	}
	switch c.Session.Store {
	case StoreMemory:
	case StoreRedis:
		if c.Redis.Addr == "" {
			add("redis.addr is required when session.store is redis")
		}
	case StorePostgres:
		if c.Directory.DatabaseURL == "" {
			add("directory.database_url is required when session.store is postgres")
		}
	default:
		add("session.store must be 'memory', 'redis' or 'postgres', got %q", c.Session.Store)
	}

	switch c.Directory.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Directory.DatabaseURL == "" {
			add("directory.database_url is required when directory.driver is postgres")
		}
	case DriverSQLite:
		if c.Directory.SQLitePath == "" {
			add("directory.sqlite_path is required when directory.driver is sqlite")
		}
	default:
		add("directory.driver must be 'memory', 'postgres' or 'sqlite', got %q", c.Directory.Driver)
	}

	if c.Directory.MaxConns < 0 {
		add("directory.max_conns must not be negative")
	}
	if c.Directory.ConnectAttempts == 0 {
		add("directory.connect_attempts must be at least 1")
	}
	if c.Directory.ConnectBackoff < 0 {
		add("directory.connect_backoff must not be negative")
	}

	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		add("tracing.sample_ratio must be between 0 and 1")
	}

	if len(problems) > 0 {
		return oops.Code("CONFIG_INVALID").
			With("problems", problems).
			Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// SweepSpec returns the session sweep's cron spec for SweepInterval, or ""
// when sweeping is disabled.
func (s SessionConfig) SweepSpec() string {
	if s.SweepInterval <= 0 {
		return ""
	}
	return "@every " + s.SweepInterval.String()
}

// UsesPostgres reports whether any backend needs the PostgreSQL pool.
func (c *Config) UsesPostgres() bool {
	return c.Directory.Driver == DriverPostgres || c.Session.Store == StorePostgres
}
