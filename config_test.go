package goSession

import (
	"net/http"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Cookie.SameSite != http.SameSiteStrictMode || !cfg.Cookie.Secure {
		t.Fatal("default cookies must be Secure and SameSite=Strict")
	}
	if cfg.Store.ExpiryBuffer != 60*time.Second {
		t.Fatalf("unexpected default expiry buffer %s", cfg.Store.ExpiryBuffer)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults",
			mutate:    func(*Config) {},
			wantValid: true,
		},
		{
			name: "empty access cookie name",
			mutate: func(c *Config) {
				c.Cookie.AccessName = " "
			},
			wantValid: false,
		},
		{
			name: "duplicate cookie names",
			mutate: func(c *Config) {
				c.Cookie.UserName = c.Cookie.AccessName
			},
			wantValid: false,
		},
		{
			name: "cookie name with separator",
			mutate: func(c *Config) {
				c.Cookie.RefreshName = "refresh;token"
			},
			wantValid: false,
		},
		{
			name: "relative cookie path",
			mutate: func(c *Config) {
				c.Cookie.Path = "admin"
			},
			wantValid: false,
		},
		{
			name: "zero refresh max age",
			mutate: func(c *Config) {
				c.Cookie.RefreshMaxAge = 0
			},
			wantValid: false,
		},
		{
			name: "samesite none without secure",
			mutate: func(c *Config) {
				c.Cookie.SameSite = http.SameSiteNoneMode
				c.Cookie.Secure = false
			},
			wantValid: false,
		},
		{
			name: "insecure cookies for local development",
			mutate: func(c *Config) {
				c.Cookie.Secure = false
			},
			wantValid: true,
		},
		{
			name: "negative expiry buffer",
			mutate: func(c *Config) {
				c.Store.ExpiryBuffer = -time.Second
			},
			wantValid: false,
		},
		{
			name: "zero expiry buffer",
			mutate: func(c *Config) {
				c.Store.ExpiryBuffer = 0
			},
			wantValid: true,
		},
		{
			name: "empty key prefix",
			mutate: func(c *Config) {
				c.Store.KeyPrefix = ""
			},
			wantValid: false,
		},
		{
			name: "relative login path",
			mutate: func(c *Config) {
				c.Guard.LoginPath = "auth/login"
			},
			wantValid: false,
		},
		{
			name: "negative debounce",
			mutate: func(c *Config) {
				c.Client.SyncDebounce = -time.Millisecond
			},
			wantValid: false,
		},
		{
			name: "audit enabled without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "histograms without metrics",
			mutate: func(c *Config) {
				c.Metrics.EnableLatencyHistograms = true
			},
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestBuilderRequiresAPI(t *testing.T) {
	if _, err := New().Build(); err == nil {
		t.Fatal("expected error without api collaborator")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithAPI(newFakeAPI())
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestBuildConfigImmutableAgainstExternalMutation(t *testing.T) {
	cfg := DefaultConfig()
	b := New().WithConfig(cfg).WithAPI(newFakeAPI())
	cfg.Guard.LoginPath = "/elsewhere"

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	got := engine.Config()
	if got.Guard.LoginPath != "/auth/login" {
		t.Fatalf("engine config mutated externally: %q", got.Guard.LoginPath)
	}
	got.Guard.LoginPath = "/changed"
	if engine.Config().Guard.LoginPath != "/auth/login" {
		t.Fatal("Config() must return a copy")
	}
}
