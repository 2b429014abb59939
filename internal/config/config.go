// Package config loads the gosession binary configuration.
//
// Sources, highest priority first:
//  1. explicit path (--config);
//  2. CONFIG_PATH;
//  3. ./local.yaml;
//  4. environment only.
//
// Environment variables always overlay the file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env     string        `yaml:"env" env:"ENV" env-default:"local"`
	HTTP    HTTPConfig    `yaml:"http"`
	Metrics MetricsConfig `yaml:"metrics"`
	API     APIConfig     `yaml:"api"`
	Session SessionConfig `yaml:"session"`
	Redis   RedisConfig   `yaml:"redis"`
	Log     LogConfig     `yaml:"log"`
}

// HTTPConfig is the demo site listener.
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"127.0.0.1"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
}

func (h HTTPConfig) Addr() string { return net.JoinHostPort(h.Host, h.Port) }

// MetricsConfig is the Prometheus listener. Disabled keeps engine metrics off.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"METRICS_ENABLED" env-default:"true"`
	Host    string `yaml:"host" env:"METRICS_HOST" env-default:"127.0.0.1"`
	Port    string `yaml:"port" env:"METRICS_PORT" env-default:"9090"`
}

func (m MetricsConfig) Addr() string { return net.JoinHostPort(m.Host, m.Port) }

// APIConfig points at the GraphQL API. An empty Endpoint starts the embedded
// development API on the same listener under /graphql.
type APIConfig struct {
	Endpoint     string        `yaml:"endpoint" env:"API_ENDPOINT"`
	Secret       string        `yaml:"secret" env:"API_SECRET" env-default:"dev-secret-change-me-0123456789"`
	AccessTTL    time.Duration `yaml:"access_ttl" env:"API_ACCESS_TTL" env-default:"15m"`
	RefreshDelay time.Duration `yaml:"refresh_delay" env:"API_REFRESH_DELAY" env-default:"0s"`
	Timeout      time.Duration `yaml:"timeout" env:"API_TIMEOUT" env-default:"10s"`
}

// SessionConfig overrides the engine defaults the binary exposes.
type SessionConfig struct {
	LoginPath      string        `yaml:"login_path" env:"SESSION_LOGIN_PATH" env-default:"/auth/login"`
	SecureCookies  bool          `yaml:"secure_cookies" env:"SESSION_SECURE_COOKIES" env-default:"true"`
	ExpiryBuffer   time.Duration `yaml:"expiry_buffer" env:"SESSION_EXPIRY_BUFFER" env-default:"60s"`
	RefreshTimeout time.Duration `yaml:"refresh_timeout" env:"SESSION_REFRESH_TIMEOUT" env-default:"10s"`
	Audit          bool          `yaml:"audit" env:"SESSION_AUDIT" env-default:"true"`
}

// RedisConfig selects the client token storage for the load test. An empty Addr
// runs miniredis in process.
type RedisConfig struct {
	Addr   string `yaml:"addr" env:"REDIS_ADDR"`
	Prefix string `yaml:"prefix" env:"REDIS_PREFIX" env-default:"gosession"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// SlogLevel parses Level, defaulting to info.
func (l LogConfig) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(l.Level))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// NewLogger builds the process logger.
func (l LogConfig) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: l.SlogLevel()}
	if strings.EqualFold(l.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// EngineConfig maps the file settings onto the library defaults.
func (c *Config) EngineConfig() goSession.Config {
	cfg := goSession.DefaultConfig()
	cfg.Cookie.Secure = c.Session.SecureCookies
	cfg.Guard.LoginPath = c.Session.LoginPath
	cfg.Store.ExpiryBuffer = c.Session.ExpiryBuffer
	cfg.Store.RedisPrefix = c.Redis.Prefix
	cfg.Refresh.Timeout = c.Session.RefreshTimeout
	cfg.Audit.Enabled = c.Session.Audit
	cfg.Metrics.Enabled = c.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = c.Metrics.Enabled
	return cfg
}

// Validate checks the fields the library does not.
func (c *Config) Validate() error {
	if len(c.API.Secret) < 16 && c.API.Endpoint == "" {
		return errors.New("api.secret must be at least 16 bytes for the embedded API")
	}
	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be > 0")
	}
	engineCfg := c.EngineConfig()
	return engineCfg.Validate()
}

// MustLoad panics if Load fails.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

func Load(path string) (*Config, error) {
	var cfg Config

	tryRead := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}
		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		return &cfg, nil
	}

	switch {
	case path != "":
		return tryRead(path)
	case os.Getenv("CONFIG_PATH") != "":
		return tryRead(os.Getenv("CONFIG_PATH"))
	}

	if _, err := os.Stat("local.yaml"); err == nil {
		return tryRead("local.yaml")
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}
	return &cfg, nil
}
