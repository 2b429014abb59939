package goSession

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MrEthical07/goSession/session"
)

// Restore re-derives the signed-in user from the token store. It is the I/O half
// of a client controller's initialization.
//
// An access token inside the expiry buffer is refreshed first. If Me then fails
// with an auth-shaped error, the stored refresh token is exchanged once and the new
// access token verified again. Every failure leaves the store empty.
func (e *Engine) Restore(ctx context.Context) (*User, error) {
	if e == nil || e.api == nil {
		return nil, ErrEngineNotReady
	}
	if !e.IsClient() {
		return nil, ErrNotClient
	}

	rec, ok := e.store.Read(ctx)
	if !ok {
		return nil, ErrNoSession
	}

	access := rec.AccessToken
	refreshed := false
	if e.store.IsExpired(ctx, e.config.Store.ExpiryBuffer) {
		pair := e.Refresh(ctx, rec.RefreshToken)
		if pair == nil {
			return nil, e.restoreFailed(ctx, ErrAuthInvalid)
		}
		access = pair.AccessToken
		refreshed = true
	}

	user, err := e.Me(ctx, access)
	if !refreshed && ((err == nil && user == nil) || isAuthKind(err)) {
		pair := e.Refresh(ctx, rec.RefreshToken)
		if pair == nil {
			return nil, e.restoreFailed(ctx, ErrAuthInvalid)
		}
		user, err = e.Me(ctx, pair.AccessToken)
	}
	if err != nil {
		return nil, e.restoreFailed(ctx, err)
	}
	if user == nil {
		return nil, e.restoreFailed(ctx, ErrNoSession)
	}

	e.metricInc(MetricSessionRestored)
	e.emitAudit(ctx, auditEventSessionRestored, true, user, nil, func() map[string]string {
		if refreshed {
			return map[string]string{"refreshed": "true"}
		}
		return nil
	})
	return user, nil
}

func (e *Engine) restoreFailed(ctx context.Context, err error) error {
	if clearErr := e.store.Clear(ctx); clearErr != nil && !errors.Is(clearErr, session.ErrStale) {
		e.logger.WarnContext(ctx, "goSession: token store clear failed", slog.String("error", clearErr.Error()))
	}
	e.emitAudit(ctx, auditEventSessionRestored, false, nil, err, nil)
	return err
}

func isAuthKind(err error) bool {
	return errors.Is(err, ErrAuthExpired) || errors.Is(err, ErrAuthInvalid)
}
