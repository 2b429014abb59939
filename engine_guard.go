package goSession

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrEthical07/goSession/internal/flows"
)

// CheckAuth decides from cookies alone whether a request is authenticated.
//
// The access cookie is verified with Me. If that fails with an auth-shaped error, or
// Me returns no user, the refresh cookie is exchanged and the new access token is
// verified again. A non-auth failure (network outage, malformed response) ends the
// check without a refresh attempt. Renewed cookies are written to jar before
// CheckAuth returns; every unauthenticated outcome clears all three session cookies
// and sets RedirectTo to the login path.
//
// CheckAuth keeps no state between requests and never touches the token store.
func (e *Engine) CheckAuth(ctx context.Context, jar CookieJar) CheckResult {
	if e == nil || e.api == nil || jar == nil {
		fallback := e
		if fallback == nil {
			fallback = &Engine{config: defaultConfig()}
		}
		if jar != nil {
			fallback.clearSessionCookies(jar)
		}
		return CheckResult{RedirectTo: fallback.config.Guard.LoginPath}
	}

	start := time.Now()
	cookies := flows.GuardCookies{}
	cookies.AccessToken, _ = jar.Get(e.config.Cookie.AccessName)
	cookies.RefreshToken, _ = jar.Get(e.config.Cookie.RefreshName)

	res := flows.RunGuard(ctx, cookies, e.flowDeps.Guard)
	out := e.mapGuardResult(ctx, jar, cookies, res)

	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricGuardLatency, time.Since(start))
	}
	return out
}

func (e *Engine) mapGuardResult(ctx context.Context, jar CookieJar, cookies flows.GuardCookies, res flows.GuardResult) CheckResult {
	outcome := guardOutcome(res.Outcome)

	switch res.Outcome {
	case flows.GuardAuthenticated:
		e.metricInc(MetricGuardAuthenticated)
		return CheckResult{
			Authenticated: true,
			User:          res.User,
			AccessToken:   cookies.AccessToken,
			Outcome:       outcome,
		}

	case flows.GuardRefreshed:
		if err := e.writeSessionCookies(jar, res.Pair, res.User); err != nil {
			e.logger.WarnContext(ctx, "goSession: user cookie encoding failed", slog.String("error", err.Error()))
		}
		e.metricInc(MetricGuardRefreshed)
		e.emitAudit(ctx, auditEventGuardRefreshed, true, res.User, nil, nil)
		return CheckResult{
			Authenticated: true,
			User:          res.User,
			AccessToken:   res.Pair.AccessToken,
			Refreshed:     true,
			Outcome:       outcome,
		}
	}

	e.clearSessionCookies(jar)
	if res.Outcome == flows.GuardNonAuthError {
		e.metricInc(MetricGuardNonAuthError)
		e.logger.WarnContext(ctx, "goSession: session check failed without auth error",
			slog.String("request_id", RequestIDFromContext(ctx)),
			slog.String("kind", res.Classification.Kind.String()),
		)
	}
	e.metricInc(MetricGuardUnauthenticated)
	e.emitAudit(ctx, auditEventGuardUnauthenticated, false, nil, e.guardAuditError(res), func() map[string]string {
		return map[string]string{"outcome": outcome.String()}
	})

	return CheckResult{
		RedirectTo: e.config.Guard.LoginPath,
		Outcome:    outcome,
		Err:        res.Err,
	}
}

func (e *Engine) guardAuditError(res flows.GuardResult) error {
	switch res.Outcome {
	case flows.GuardNoCredentials:
		return ErrNoSession
	case flows.GuardRefreshFailed:
		return ErrAuthInvalid
	}
	if res.Err == nil {
		return nil
	}
	return &Error{Kind: res.Classification.Kind, Op: opMe, Err: res.Err}
}

func guardOutcome(o flows.GuardOutcome) GuardOutcome {
	switch o {
	case flows.GuardAuthenticated:
		return GuardAuthenticated
	case flows.GuardRefreshed:
		return GuardRefreshed
	case flows.GuardNoCredentials:
		return GuardNoCredentials
	case flows.GuardNonAuthError:
		return GuardNonAuthError
	case flows.GuardNoRefreshToken:
		return GuardNoRefreshToken
	case flows.GuardRefreshFailed:
		return GuardRefreshFailed
	case flows.GuardUserMissing:
		return GuardUserMissing
	default:
		return GuardOutcomeNone
	}
}

// IssueSession writes the three session cookies for a fresh login or registration.
func (e *Engine) IssueSession(jar CookieJar, payload *AuthPayload) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := checkPayload(payload); err != nil {
		return err
	}
	return e.writeSessionCookies(jar, &payload.Tokens, payload.User)
}

// ClearSession expires the three session cookies.
func (e *Engine) ClearSession(jar CookieJar) {
	if e == nil || jar == nil {
		return
	}
	e.clearSessionCookies(jar)
}
