package flows

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/goSession/session"
)

type fakeGuardAPI struct {
	users        map[string]*session.User
	meErr        map[string]error
	refreshed    map[string]*session.TokenPair
	meCalls      []string
	refreshCalls []string
}

func (f *fakeGuardAPI) deps() GuardDeps {
	return GuardDeps{
		Me: func(_ context.Context, token string) (*session.User, error) {
			f.meCalls = append(f.meCalls, token)
			if err := f.meErr[token]; err != nil {
				return nil, err
			}
			return f.users[token], nil
		},
		Refresh: func(_ context.Context, token string) *session.TokenPair {
			f.refreshCalls = append(f.refreshCalls, token)
			return f.refreshed[token]
		},
	}
}

var guardUser = &session.User{ID: "u1", Name: "Ada", Role: "admin"}

func TestRunGuardNoCookiesMakesNoCalls(t *testing.T) {
	api := &fakeGuardAPI{}
	res := RunGuard(context.Background(), GuardCookies{}, api.deps())
	if res.Outcome != GuardNoCredentials {
		t.Fatalf("expected no_credentials, got %s", res.Outcome)
	}
	if len(api.meCalls) != 0 || len(api.refreshCalls) != 0 {
		t.Fatalf("expected no collaborator calls, got me=%d refresh=%d", len(api.meCalls), len(api.refreshCalls))
	}
}

func TestRunGuardAcceptsValidAccessToken(t *testing.T) {
	api := &fakeGuardAPI{users: map[string]*session.User{"good": guardUser}}
	res := RunGuard(context.Background(), GuardCookies{AccessToken: "good", RefreshToken: "r"}, api.deps())
	if res.Outcome != GuardAuthenticated || res.User != guardUser {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(api.refreshCalls) != 0 {
		t.Fatalf("refresh must not run for a valid access token")
	}
}

func TestRunGuardFallbackChain(t *testing.T) {
	pair := &session.TokenPair{AccessToken: "new-1", RefreshToken: "new-2", ExpiresIn: 3600}
	api := &fakeGuardAPI{
		users:     map[string]*session.User{"new-1": guardUser},
		meErr:     map[string]error{"expired-xyz": errors.New("jwt expired")},
		refreshed: map[string]*session.TokenPair{"valid-abc": pair},
	}

	res := RunGuard(context.Background(), GuardCookies{AccessToken: "expired-xyz", RefreshToken: "valid-abc"}, api.deps())
	if res.Outcome != GuardRefreshed {
		t.Fatalf("expected refreshed, got %s (%v)", res.Outcome, res.Err)
	}
	if res.Pair != pair || res.User != guardUser {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := api.meCalls; len(got) != 2 || got[0] != "expired-xyz" || got[1] != "new-1" {
		t.Fatalf("unexpected me calls %v", got)
	}
	if res.RefreshCalls != 1 {
		t.Fatalf("expected one refresh, got %d", res.RefreshCalls)
	}
}

func TestRunGuardNonAuthErrorSkipsRefresh(t *testing.T) {
	api := &fakeGuardAPI{
		meErr:     map[string]error{"a": errors.New("dial tcp 10.0.0.1:443: connection refused")},
		refreshed: map[string]*session.TokenPair{"r": {AccessToken: "x", RefreshToken: "y", ExpiresIn: 1}},
	}
	res := RunGuard(context.Background(), GuardCookies{AccessToken: "a", RefreshToken: "r"}, api.deps())
	if res.Outcome != GuardNonAuthError {
		t.Fatalf("expected non_auth_error, got %s", res.Outcome)
	}
	if len(api.refreshCalls) != 0 {
		t.Fatalf("expected zero refresh calls, got %d", len(api.refreshCalls))
	}
}

func TestRunGuardNullUserFallsBackToRefresh(t *testing.T) {
	api := &fakeGuardAPI{
		users:     map[string]*session.User{"new": guardUser},
		refreshed: map[string]*session.TokenPair{"r": {AccessToken: "new", RefreshToken: "r2", ExpiresIn: 60}},
	}
	res := RunGuard(context.Background(), GuardCookies{AccessToken: "stale", RefreshToken: "r"}, api.deps())
	if res.Outcome != GuardRefreshed {
		t.Fatalf("expected refreshed, got %s", res.Outcome)
	}
}

func TestRunGuardTerminalOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		cookies GuardCookies
		api     *fakeGuardAPI
		want    GuardOutcome
	}{
		{
			name:    "rejected access without refresh",
			cookies: GuardCookies{AccessToken: "a"},
			api:     &fakeGuardAPI{meErr: map[string]error{"a": errors.New("Unauthorized")}},
			want:    GuardNoRefreshToken,
		},
		{
			name:    "refresh only and exchange fails",
			cookies: GuardCookies{RefreshToken: "r"},
			api:     &fakeGuardAPI{},
			want:    GuardRefreshFailed,
		},
		{
			name:    "refreshed token resolves no user",
			cookies: GuardCookies{RefreshToken: "r"},
			api: &fakeGuardAPI{
				refreshed: map[string]*session.TokenPair{"r": {AccessToken: "n", RefreshToken: "m", ExpiresIn: 60}},
			},
			want: GuardUserMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := RunGuard(context.Background(), tt.cookies, tt.api.deps())
			if res.Outcome != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, res.Outcome)
			}
			if res.Outcome.Authenticated() {
				t.Fatalf("terminal outcome must not authenticate")
			}
			if res.User != nil || res.Pair != nil {
				t.Fatalf("terminal outcome must not carry a user or pair")
			}
		})
	}
}
