package goSession

import (
	"context"
	"errors"
	"testing"
)

func TestRestoreRequiresClient(t *testing.T) {
	engine := newServerEngine(t, newFakeAPI())
	if _, err := engine.Restore(context.Background()); !errors.Is(err, ErrNotClient) {
		t.Fatalf("expected ErrNotClient, got %v", err)
	}
}

func TestRestoreEmptyStoreSkipsNetwork(t *testing.T) {
	api := newFakeAPI()
	engine := newClientEngine(t, api)

	if _, err := engine.Restore(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if api.meCalls.Load() != 0 || api.refreshes.Load() != 0 {
		t.Fatal("expected no api calls")
	}
}

func TestRestoreTransportErrorClearsWithoutRefresh(t *testing.T) {
	api := newFakeAPI()
	api.meErr["a1"] = errors.New("dial tcp 10.0.0.1:443: connection refused")
	api.pairs["r1"] = &TokenPair{AccessToken: "a2", RefreshToken: "r2", ExpiresIn: 600}
	engine := newClientEngine(t, api)
	ctx := context.Background()
	if err := engine.Store().Write(ctx, TokenPair{AccessToken: "a1", RefreshToken: "r1", ExpiresIn: 600}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if _, err := engine.Restore(ctx); err == nil {
		t.Fatal("expected restore to fail")
	}
	if got := api.refreshes.Load(); got != 0 {
		t.Fatalf("expected no refresh for a non-auth error, got %d", got)
	}
	if _, ok := engine.Store().Read(ctx); ok {
		t.Fatal("expected store cleared after failed restore")
	}
}

func TestRestoreNullUserFallsBackToRefresh(t *testing.T) {
	api := newFakeAPI()
	api.users["a1"] = nil
	api.pairs["r1"] = &TokenPair{AccessToken: "a2", RefreshToken: "r2", ExpiresIn: 600}
	api.users["a2"] = testUser
	engine := newClientEngine(t, api)
	ctx := context.Background()
	if err := engine.Store().Write(ctx, TokenPair{AccessToken: "a1", RefreshToken: "r1", ExpiresIn: 600}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	user, err := engine.Restore(ctx)
	if err != nil || user != testUser {
		t.Fatalf("expected restored user, got %v %v", user, err)
	}
	if got := engine.MetricsSnapshot().Counters[MetricSessionRestored]; got != 1 {
		t.Fatalf("expected session restored metric, got %d", got)
	}
}
