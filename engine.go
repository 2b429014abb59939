package goSession

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/goSession/classify"
	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/refresh"
	"github.com/MrEthical07/goSession/session"
)

// Engine owns the token store, the refresh coordinator, metrics and audit for one
// execution context. Build a client Engine and a server Engine separately; they
// never share state.
//
// Engine methods are safe for concurrent use.
type Engine struct {
	config    Config
	api       API
	env       Environment
	storage   session.Storage
	store     *session.Store
	refresher *refresh.Coordinator
	flowDeps  flows.Deps
	audit     *audit.Dispatcher
	metrics   *Metrics
	logger    *slog.Logger
	clock     func() time.Time
}

// Close flushes pending audit events and stops the dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return defaultConfig()
	}
	return cloneConfig(e.config)
}

// IsClient reports whether the engine persists tokens.
func (e *Engine) IsClient() bool {
	return e != nil && session.IsClient(e.env)
}

// Store returns the token store. On a server engine every store operation is a no-op.
func (e *Engine) Store() *session.Store {
	if e == nil {
		return nil
	}
	return e.store
}

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger {
	if e == nil || e.logger == nil {
		return slog.Default()
	}
	return e.logger
}

// AuditDropped reports events dropped because the audit buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of every counter. It is empty when metrics are disabled.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Classify runs the error classifier and counts auth-shaped results.
func (e *Engine) Classify(err error) classify.Result {
	res := classify.Classify(err)
	if res.IsAuthError {
		e.metricInc(MetricClassifyAuth)
	}
	return res
}

// Login exchanges credentials for a user and token pair. It does not touch the
// token store; the caller decides where the pair goes. Failures are returned as
// *Error with the API message intact.
func (e *Engine) Login(ctx context.Context, creds Credentials) (*AuthPayload, error) {
	if e == nil || e.api == nil {
		return nil, ErrEngineNotReady
	}
	payload, err := e.api.Login(ctx, creds)
	if err == nil {
		err = checkPayload(payload)
	}
	if err != nil {
		err = wrapAPIError(opLogin, err)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, nil, err, nil)
		e.logger.InfoContext(ctx, "goSession: login rejected", slog.String("kind", KindOf(err).String()))
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, payload.User, nil, nil)
	return payload, nil
}

// Register creates an account and returns its user and token pair. Same error
// contract as [Engine.Login].
func (e *Engine) Register(ctx context.Context, reg Registration) (*AuthPayload, error) {
	if e == nil || e.api == nil {
		return nil, ErrEngineNotReady
	}
	payload, err := e.api.Register(ctx, reg)
	if err == nil {
		err = checkPayload(payload)
	}
	if err != nil {
		err = wrapAPIError(opRegister, err)
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, false, nil, err, nil)
		e.logger.InfoContext(ctx, "goSession: registration rejected", slog.String("kind", KindOf(err).String()))
		return nil, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, payload.User, nil, nil)
	return payload, nil
}

// Me resolves the user behind accessToken. A nil user with a nil error means the
// API answered without one.
func (e *Engine) Me(ctx context.Context, accessToken string) (*User, error) {
	if e == nil || e.api == nil {
		return nil, ErrEngineNotReady
	}
	user, err := e.api.Me(ctx, accessToken)
	if err != nil {
		res := e.Classify(err)
		return nil, &Error{Kind: res.Kind, Op: opMe, Err: err}
	}
	return user, nil
}

// Refresh exchanges refreshToken through the single-flight coordinator. Concurrent
// callers for the same slot share one exchange and receive the same pair, or nil.
// On a client engine the store is rewritten on success and cleared on failure.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) *TokenPair {
	if e == nil || e.refresher == nil {
		return nil
	}
	return e.refresher.Refresh(ctx, refreshToken)
}

// RefreshInFlight reports how many exchanges are currently running.
func (e *Engine) RefreshInFlight() int {
	if e == nil || e.refresher == nil {
		return 0
	}
	return e.refresher.InFlight()
}

// Logout clears the token store. It never calls the API.
func (e *Engine) Logout(ctx context.Context) error {
	if e == nil {
		return ErrEngineNotReady
	}
	err := e.store.Clear(ctx)
	if errors.Is(err, session.ErrStale) {
		// A later operation owns the store now.
		return nil
	}
	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, err == nil, nil, err, nil)
	if err != nil {
		e.logger.WarnContext(ctx, "goSession: token store clear failed", slog.String("error", err.Error()))
	}
	return err
}

func (e *Engine) onRefreshStart(ctx context.Context) {
	e.metricInc(MetricRefreshStarted)
	e.logger.DebugContext(ctx, "goSession: refresh exchange started")
}

func (e *Engine) onRefreshShared(context.Context) {
	e.metricInc(MetricRefreshShared)
}

func (e *Engine) onRefreshSettle(ctx context.Context, pair *TokenPair, err error) {
	if errors.Is(err, session.ErrStale) {
		e.logger.DebugContext(ctx, "goSession: refreshed pair discarded, session changed meanwhile")
		return
	}
	if err != nil {
		wrapped := wrapAPIError(opRefresh, err)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, nil, wrapped, nil)
		e.logger.WarnContext(ctx, "goSession: refresh exchange failed", slog.String("kind", KindOf(wrapped).String()))
		return
	}
	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, nil, nil, func() map[string]string {
		return map[string]string{"expires_in": formatSeconds(pair.ExpiresIn)}
	})
}

func checkPayload(p *AuthPayload) error {
	if p == nil || p.User == nil {
		return ErrNilResponse
	}
	if !p.Tokens.Valid() {
		return session.ErrIncompletePair
	}
	return nil
}

func formatSeconds(s int64) string {
	return (time.Duration(s) * time.Second).String()
}
