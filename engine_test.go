package goSession

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/classify"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

func TestLoginErrorKeepsMessageVerbatim(t *testing.T) {
	api := newFakeAPI()
	api.loginErr = gqlerror.List{{Message: "Invalid credentials"}}
	engine := newClientEngine(t, api)

	_, err := engine.Login(context.Background(), Credentials{Email: "a@b.c", Password: "x"})
	if err == nil {
		t.Fatal("expected login error")
	}
	if err.Error() != api.loginErr.Error() {
		t.Fatalf("message not preserved: %q", err.Error())
	}
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	var list gqlerror.List
	if !errors.As(err, &list) {
		t.Fatal("expected the GraphQL error list to remain reachable")
	}
	if got := engine.MetricsSnapshot().Counters[MetricLoginFailure]; got != 1 {
		t.Fatalf("expected login failure metric, got %d", got)
	}
}

func TestLoginTransportErrorKind(t *testing.T) {
	api := newFakeAPI()
	api.loginErr = &url.Error{Op: "Post", URL: "http://api/graphql", Err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}}
	engine := newClientEngine(t, api)

	_, err := engine.Login(context.Background(), Credentials{})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if KindOf(err) != classify.KindTransport {
		t.Fatalf("unexpected kind %s", KindOf(err))
	}
}

func TestLoginRejectsEmptyPayload(t *testing.T) {
	api := newFakeAPI()
	api.payload = &AuthPayload{User: testUser}
	engine := newClientEngine(t, api)

	if _, err := engine.Login(context.Background(), Credentials{}); err == nil {
		t.Fatal("expected incomplete token pair to fail login")
	}
}

func TestClientRefreshPersistsAndFailureClears(t *testing.T) {
	api := newFakeAPI()
	api.pairs["r1"] = &TokenPair{AccessToken: "a2", RefreshToken: "r2", ExpiresIn: 600}
	engine := newClientEngine(t, api)
	ctx := context.Background()

	pair := engine.Refresh(ctx, "r1")
	if pair == nil || pair.AccessToken != "a2" {
		t.Fatalf("unexpected refresh result %+v", pair)
	}
	rec, ok := engine.Store().Read(ctx)
	if !ok || rec.RefreshToken != "r2" {
		t.Fatalf("expected store to hold the new pair, got %+v ok=%v", rec, ok)
	}

	if engine.Refresh(ctx, "r2") != nil {
		t.Fatal("expected unknown refresh token to fail")
	}
	if _, ok := engine.Store().Read(ctx); ok {
		t.Fatal("expected failed refresh to clear the store")
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricRefreshStarted] != 2 || snap.Counters[MetricRefreshSuccess] != 1 || snap.Counters[MetricRefreshFailure] != 1 {
		t.Fatalf("unexpected refresh metrics %+v", snap.Counters)
	}
}

func TestServerEngineNeverPersists(t *testing.T) {
	api := newFakeAPI()
	api.pairs["r1"] = &TokenPair{AccessToken: "a2", RefreshToken: "r2", ExpiresIn: 600}
	engine := newServerEngine(t, api)
	ctx := context.Background()

	if engine.IsClient() {
		t.Fatal("default environment must be server")
	}
	if err := engine.Store().Write(ctx, TokenPair{AccessToken: "a", RefreshToken: "r", ExpiresIn: 60}); err != nil {
		t.Fatalf("server write must be a silent no-op, got %v", err)
	}
	if _, ok := engine.Store().Read(ctx); ok {
		t.Fatal("server store must always read as absent")
	}
	if engine.Refresh(ctx, "r1") == nil {
		t.Fatal("server refresh should still exchange tokens")
	}
}

func TestLogoutClearsStoreAndAudits(t *testing.T) {
	sink := NewChannelSink(16)
	cfg := DefaultConfig()
	cfg.Audit.Enabled = true
	engine, err := New().
		WithConfig(cfg).
		WithAPI(newFakeAPI()).
		WithEnvironment(ClientEnvironment).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	ctx := WithRequestID(context.Background(), "req-42")
	if err := engine.Store().Write(ctx, TokenPair{AccessToken: "secret-access", RefreshToken: "secret-refresh", ExpiresIn: 60}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := engine.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, ok := engine.Store().Read(ctx); ok {
		t.Fatal("expected store cleared")
	}

	select {
	case ev := <-sink.Events():
		if ev.EventType != auditEventLogout || ev.Scope != "client" || ev.RequestID != "req-42" || !ev.Success {
			t.Fatalf("unexpected event %+v", ev)
		}
		if strings.Contains(fmt.Sprintf("%+v", ev), "secret") {
			t.Fatal("audit event leaked a token value")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected logout audit event")
	}
}

func TestErrorUnwrapsToKindAndCause(t *testing.T) {
	cause := errors.New("Email already registered")
	err := error(&Error{Kind: classify.KindValidation, Op: opRegister, Err: cause})

	if err.Error() != "Email already registered" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, ErrValidation) || !errors.Is(err, cause) {
		t.Fatal("expected both kind sentinel and cause in the chain")
	}
	if errors.Is(err, ErrTransport) {
		t.Fatal("unexpected transport match")
	}
	if auditErrorCode(err) != auditErrValidation {
		t.Fatalf("unexpected audit code %s", auditErrorCode(err))
	}
}
