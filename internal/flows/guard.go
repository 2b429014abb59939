package flows

import (
	"context"

	"github.com/MrEthical07/goSession/classify"
	"github.com/MrEthical07/goSession/session"
)

// GuardOutcome classifies how a guard run ended for root-level mapping.
type GuardOutcome int

const (
	GuardOutcomeNone GuardOutcome = iota
	// GuardAuthenticated: the presented access token was accepted.
	GuardAuthenticated
	// GuardRefreshed: authenticated with a pair obtained from the refresh token.
	GuardRefreshed
	// GuardNoCredentials: neither cookie was present. No network call was made.
	GuardNoCredentials
	// GuardNonAuthError: me() failed for a reason unrelated to credentials.
	GuardNonAuthError
	// GuardNoRefreshToken: the access token was rejected and nothing can renew it.
	GuardNoRefreshToken
	// GuardRefreshFailed: the refresh exchange returned no pair.
	GuardRefreshFailed
	// GuardUserMissing: a refreshed access token still did not resolve a user.
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

// Authenticated reports whether the outcome grants access.
func (o GuardOutcome) Authenticated() bool {
	return o == GuardAuthenticated || o == GuardRefreshed
}

// GuardCookies holds the request-supplied token values. Empty means absent.
type GuardCookies struct {
	AccessToken  string
	RefreshToken string
}

// GuardResult carries the terminal state of one guard run. Pair is set only for
// GuardRefreshed; Err holds the last collaborator failure, if any.
type GuardResult struct {
	Outcome        GuardOutcome
	User           *session.User
	Pair           *session.TokenPair
	Err            error
	Classification classify.Result
	RefreshCalls   int
}

// GuardDeps captures guard flow dependencies.
type GuardDeps struct {
	Me       func(ctx context.Context, accessToken string) (*session.User, error)
	Refresh  func(ctx context.Context, refreshToken string) *session.TokenPair
	Classify func(error) classify.Result
}

// RunGuard derives the authentication state of one request from its cookies:
// verify the access token, fall back to the refresh token when the failure is
// auth-shaped or the user is missing, then verify again with the renewed token.
// Cookie writes are left to the caller.
func RunGuard(ctx context.Context, cookies GuardCookies, deps GuardDeps) GuardResult {
	if cookies.AccessToken == "" {
		if cookies.RefreshToken == "" {
			return GuardResult{Outcome: GuardNoCredentials}
		}
		return runGuardRefresh(ctx, cookies.RefreshToken, deps, GuardResult{})
	}

	user, err := deps.Me(ctx, cookies.AccessToken)
	if err == nil && user != nil {
		return GuardResult{Outcome: GuardAuthenticated, User: user}
	}

	res := GuardResult{Err: err}
	if err != nil {
		res.Classification = classifyWith(deps, err)
		if !res.Classification.IsAuthError {
			res.Outcome = GuardNonAuthError
			return res
		}
	}

	if cookies.RefreshToken == "" {
		res.Outcome = GuardNoRefreshToken
		return res
	}
	return runGuardRefresh(ctx, cookies.RefreshToken, deps, res)
}

func runGuardRefresh(ctx context.Context, refreshToken string, deps GuardDeps, res GuardResult) GuardResult {
	res.RefreshCalls++
	pair := deps.Refresh(ctx, refreshToken)
	if pair == nil {
		res.Outcome = GuardRefreshFailed
		return res
	}

	user, err := deps.Me(ctx, pair.AccessToken)
	if err != nil || user == nil {
		res.Outcome = GuardUserMissing
		res.Err = err
		if err != nil {
			res.Classification = classifyWith(deps, err)
		}
		return res
	}

	res.Outcome = GuardRefreshed
	res.User = user
	res.Pair = pair
	res.Err = nil
	return res
}

func classifyWith(deps GuardDeps, err error) classify.Result {
	if deps.Classify != nil {
		return deps.Classify(err)
	}
	return classify.Classify(err)
}
