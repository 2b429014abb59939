package goSession

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/session"
)

// Config holds every tunable of an Engine. Obtain one from [DefaultConfig], adjust
// it, and pass it to [Builder.WithConfig]; the builder keeps its own copy.
type Config struct {
	Cookie  CookieConfig
	Store   StoreConfig
	Refresh RefreshConfig
	Guard   GuardConfig
	Client  ClientConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig names and scopes the three session cookies written by the guard.
type CookieConfig struct {
	AccessName  string
	RefreshName string
	UserName    string
	Path        string
	Domain      string
	Secure      bool
	SameSite    http.SameSite
	// RefreshMaxAge is the lifetime of the refresh cookie. The access and user
	// cookies live for the pair's ExpiresIn.
	RefreshMaxAge time.Duration
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig controls client-side token persistence.
type StoreConfig struct {
	// KeyPrefix is prepended to access_token, refresh_token and token_expiry.
	KeyPrefix string
	// ExpiryBuffer is how long before expiry a token already counts as expired.
	ExpiryBuffer time.Duration
	// RedisPrefix namespaces the Pub/Sub change channel of a Redis-backed store.
	RedisPrefix string
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig controls the refresh coordinator.
type RefreshConfig struct {
	// Timeout bounds one token exchange regardless of the callers waiting on it.
	Timeout time.Duration
}

/*
====================================
GUARD CONFIG
====================================
*/

// GuardConfig controls server-side request checks.
type GuardConfig struct {
	LoginPath string
	// NextParam is the query parameter carrying the originally requested path.
	NextParam string
}

/*
====================================
CLIENT CONFIG
====================================
*/

// ClientConfig controls the client-side session controller.
type ClientConfig struct {
	// HomePath is the hard-navigation target after logout.
	HomePath string
	// SyncDebounce coalesces storage change notifications from other tabs.
	SyncDebounce time.Duration
}

// AuditConfig controls async audit dispatch.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters and the guard latency histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults: Secure, SameSite=Strict cookies on
// "/", a 7 day refresh cookie, a 60s expiry buffer and /auth/login as login route.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Cookie: CookieConfig{
			AccessName:    "accessToken",
			RefreshName:   "refreshToken",
			UserName:      "user",
			Path:          "/",
			Secure:        true,
			SameSite:      http.SameSiteStrictMode,
			RefreshMaxAge: 7 * 24 * time.Hour,
		},
		Store: StoreConfig{
			KeyPrefix:    "gosession:",
			ExpiryBuffer: session.DefaultExpiryBuffer,
			RedisPrefix:  "gosession",
		},
		Refresh: RefreshConfig{
			Timeout: 10 * time.Second,
		},
		Guard: GuardConfig{
			LoginPath: "/auth/login",
			NextParam: "next",
		},
		Client: ClientConfig{
			HomePath:     "/",
			SyncDebounce: 150 * time.Millisecond,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Cookies
	names := []string{c.Cookie.AccessName, c.Cookie.RefreshName, c.Cookie.UserName}
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			return errors.New("Cookie names must be non-empty")
		}
		if strings.ContainsAny(name, " ;,=\t\r\n") {
			return errors.New("Cookie names must be valid tokens")
		}
		if _, dup := seen[name]; dup {
			return errors.New("Cookie names must be distinct")
		}
		seen[name] = struct{}{}
	}
	if !strings.HasPrefix(c.Cookie.Path, "/") {
		return errors.New("Cookie Path must start with /")
	}
	if c.Cookie.RefreshMaxAge <= 0 {
		return errors.New("Cookie RefreshMaxAge must be > 0")
	}
	if c.Cookie.SameSite == http.SameSiteNoneMode && !c.Cookie.Secure {
		return errors.New("Cookie SameSite=None requires Secure")
	}

	// Store
	if c.Store.KeyPrefix == "" {
		return errors.New("Store KeyPrefix must be non-empty")
	}
	if c.Store.ExpiryBuffer < 0 {
		return errors.New("Store ExpiryBuffer must be >= 0")
	}

	// Refresh
	if c.Refresh.Timeout < 0 {
		return errors.New("Refresh Timeout must be >= 0")
	}

	// Guard
	if !strings.HasPrefix(c.Guard.LoginPath, "/") {
		return errors.New("Guard LoginPath must be an absolute path")
	}

	// Client
	if !strings.HasPrefix(c.Client.HomePath, "/") {
		return errors.New("Client HomePath must be an absolute path")
	}
	if c.Client.SyncDebounce < 0 {
		return errors.New("Client SyncDebounce must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when Audit is enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
