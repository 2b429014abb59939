package goSession

import (
	"context"
	"net/http"

	"github.com/MrEthical07/goSession/session"
)

// User is the identity returned by the API. Only Role is interpreted, by equality.
type User = session.User

// TokenPair is the result of a login, registration or refresh exchange.
type TokenPair = session.TokenPair

// Credentials are the login inputs.
type Credentials = session.Credentials

// Registration carries the account creation inputs.
type Registration = session.Registration

// AuthPayload is the login and registration response.
type AuthPayload = session.AuthPayload

// State is the client-side session snapshot exposed to the UI layer.
type State = session.State

// Environment tells the engine whether it runs in a client (token storage
// available) or on a server (per-request cookies only).
type Environment = session.Environment

var (
	// ClientEnvironment enables the token store.
	ClientEnvironment Environment = session.Client
	// ServerEnvironment turns every token store operation into a no-op.
	ServerEnvironment Environment = session.Server
)

// API is the collaborator executing the four session operations against the backend.
//
// Implementations must be safe for concurrent use. Me returns (nil, nil) when the
// backend answers without a user.
type API interface {
	Login(ctx context.Context, creds Credentials) (*AuthPayload, error)
	Register(ctx context.Context, reg Registration) (*AuthPayload, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Me(ctx context.Context, accessToken string) (*User, error)
}

// CookieJar is the request/response cookie facility the guard works against.
// Set with MaxAge < 0 deletes a cookie; a later Get for that name reports absent.
type CookieJar interface {
	Get(name string) (string, bool)
	Set(cookie *http.Cookie)
}

// GuardOutcome describes how CheckAuth reached its answer.
type GuardOutcome int

const (
	GuardOutcomeNone GuardOutcome = iota
	// GuardAuthenticated means the access cookie was accepted as is.
	GuardAuthenticated
	// GuardRefreshed means a new pair was obtained and the cookies were rewritten.
	GuardRefreshed
	// GuardNoCredentials means neither token cookie was present.
	GuardNoCredentials
	// GuardNonAuthError means the user lookup failed for a reason unrelated to credentials.
	GuardNonAuthError
	// GuardNoRefreshToken means the access token was rejected and no refresh cookie exists.
	GuardNoRefreshToken
	// GuardRefreshFailed means the refresh exchange was rejected or failed.
	GuardRefreshFailed
	// GuardUserMissing means the renewed access token did not resolve a user.
	GuardUserMissing
)

func (o GuardOutcome) String() string {
	switch o {
	case GuardAuthenticated:
		return "authenticated"
	case GuardRefreshed:
		return "refreshed"
	case GuardNoCredentials:
		return "no_credentials"
	case GuardNonAuthError:
		return "non_auth_error"
	case GuardNoRefreshToken:
		return "no_refresh_token"
	case GuardRefreshFailed:
		return "refresh_failed"
	case GuardUserMissing:
		return "user_missing"
	default:
		return "none"
	}
}

// CheckResult is the answer of [Engine.CheckAuth].
//
// When Authenticated is false, RedirectTo names the login route and every session
// cookie has already been cleared on the jar. When Refreshed is true, the jar already
// carries the renewed cookies and AccessToken holds the new access token.
type CheckResult struct {
	Authenticated bool
	User          *User
	RedirectTo    string
	AccessToken   string
	Refreshed     bool
	Outcome       GuardOutcome
	// Err is the last collaborator failure seen, for logging only.
	Err error
}
