package goSession

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var testUser = &User{ID: "u-1", Name: "Ada", Email: "ada@example.com", Role: "admin", IsActive: true}

// fakeAPI answers Me from a token table and Refresh from a refresh table. Unknown
// access tokens yield meErr (default "invalid token").
type fakeAPI struct {
	mu        sync.Mutex
	users     map[string]*User
	pairs     map[string]*TokenPair
	meErr     map[string]error
	loginErr  error
	payload   *AuthPayload
	release   chan struct{}
	meCalls   atomic.Int64
	refreshes atomic.Int64
	logins    atomic.Int64
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		users: map[string]*User{},
		pairs: map[string]*TokenPair{},
		meErr: map[string]error{},
	}
}

func (f *fakeAPI) Login(context.Context, Credentials) (*AuthPayload, error) {
	f.logins.Add(1)
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.payload, nil
}

func (f *fakeAPI) Register(ctx context.Context, _ Registration) (*AuthPayload, error) {
	return f.Login(ctx, Credentials{})
}

func (f *fakeAPI) Refresh(_ context.Context, token string) (*TokenPair, error) {
	f.refreshes.Add(1)
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	pair, ok := f.pairs[token]
	if !ok {
		return nil, errors.New("invalid refresh token")
	}
	out := *pair
	return &out, nil
}

func (f *fakeAPI) Me(_ context.Context, token string) (*User, error) {
	f.meCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.meErr[token]; ok {
		return nil, err
	}
	if u, ok := f.users[token]; ok {
		return u, nil
	}
	return nil, errors.New("invalid token")
}

func fixedClock() func() time.Time {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return now }
}

func newServerEngine(t *testing.T, api API) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	engine, err := New().
		WithConfig(cfg).
		WithAPI(api).
		WithClock(fixedClock()).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func newClientEngine(t *testing.T, api API) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Metrics.Enabled = true

	engine, err := New().
		WithConfig(cfg).
		WithAPI(api).
		WithEnvironment(ClientEnvironment).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}
