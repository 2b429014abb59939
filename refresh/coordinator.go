package refresh

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goSession/session"
	"golang.org/x/sync/singleflight"
)

// Scope selects how refresh slots are keyed.
type Scope uint8

const (
	// ScopeProcess shares one in-flight refresh across the whole process.
	ScopeProcess Scope = iota
	// ScopeToken shares an in-flight refresh only between callers holding the same token.
	ScopeToken
)

const processKey = "process"

// ErrEmptyToken is reported to OnSettle when Refresh is called without a token.
var ErrEmptyToken = errors.New("empty refresh token")

// Exchanger performs the network token exchange.
type Exchanger interface {
	Refresh(ctx context.Context, refreshToken string) (*session.TokenPair, error)
}

// ExchangeFunc adapts a function to [Exchanger].
type ExchangeFunc func(ctx context.Context, refreshToken string) (*session.TokenPair, error)

// Refresh implements [Exchanger].
func (f ExchangeFunc) Refresh(ctx context.Context, refreshToken string) (*session.TokenPair, error) {
	return f(ctx, refreshToken)
}

// TokenStore is the subset of [session.Store] the coordinator writes to.
type TokenStore interface {
	Write(ctx context.Context, pair session.TokenPair) error
	Clear(ctx context.Context) error
}

// Config carries coordinator dependencies and hooks. Hooks may be nil.
type Config struct {
	Exchanger Exchanger
	Store     TokenStore
	Scope     Scope
	// Timeout bounds one exchange independently of any caller's context. Zero means none.
	Timeout time.Duration

	// OnStart runs once per network exchange.
	OnStart func(ctx context.Context)
	// OnShared runs for every caller whose result was shared with at least one other caller.
	OnShared func(ctx context.Context)
	// OnSettle runs once per exchange with its outcome.
	OnSettle func(ctx context.Context, pair *session.TokenPair, err error)
}

// Coordinator runs refresh exchanges. It is safe for concurrent use.
type Coordinator struct {
	cfg      Config
	group    singleflight.Group
	inFlight atomic.Int64
}

// New returns a coordinator. A nil Store is allowed (server contexts persist nothing).
func New(cfg Config) *Coordinator {
	return &Coordinator{cfg: cfg}
}

// InFlight returns the number of exchanges currently running.
func (c *Coordinator) InFlight() int {
	return int(c.inFlight.Load())
}

// Refresh exchanges refreshToken for a new pair, joining any exchange already in
// flight for the same slot. It returns nil when the exchange fails or ctx is done
// before the shared result arrives; a caller that stops waiting does not cancel the
// exchange for the others.
func (c *Coordinator) Refresh(ctx context.Context, refreshToken string) *session.TokenPair {
	if c == nil || c.cfg.Exchanger == nil {
		return nil
	}
	if refreshToken == "" {
		c.clear(ctx)
		if c.cfg.OnSettle != nil {
			c.cfg.OnSettle(ctx, nil, ErrEmptyToken)
		}
		return nil
	}

	ch := c.group.DoChan(c.key(refreshToken), func() (interface{}, error) {
		return c.exchange(ctx, refreshToken), nil
	})

	select {
	case res := <-ch:
		if res.Shared && c.cfg.OnShared != nil {
			c.cfg.OnShared(ctx)
		}
		pair, _ := res.Val.(*session.TokenPair)
		return pair
	case <-ctx.Done():
		return nil
	}
}

func (c *Coordinator) exchange(ctx context.Context, refreshToken string) *session.TokenPair {
	c.inFlight.Add(1)
	defer c.inFlight.Add(-1)

	runCtx := context.WithoutCancel(ctx)
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, c.cfg.Timeout)
		defer cancel()
	}

	if c.cfg.OnStart != nil {
		c.cfg.OnStart(runCtx)
	}

	pair, err := c.cfg.Exchanger.Refresh(runCtx, refreshToken)
	if err == nil && !pair.Valid() {
		err = errors.New("refresh returned an incomplete token pair")
	}
	if err == nil && c.cfg.Store != nil {
		err = c.cfg.Store.Write(runCtx, *pair)
	}
	if err != nil {
		c.clear(runCtx)
		if c.cfg.OnSettle != nil {
			c.cfg.OnSettle(runCtx, nil, err)
		}
		return nil
	}

	if c.cfg.OnSettle != nil {
		c.cfg.OnSettle(runCtx, pair, nil)
	}
	return pair
}

func (c *Coordinator) clear(ctx context.Context) {
	if c.cfg.Store == nil {
		return
	}
	_ = c.cfg.Store.Clear(context.WithoutCancel(ctx))
}

// key never exposes the raw token as a map key.
func (c *Coordinator) key(refreshToken string) string {
	if c.cfg.Scope != ScopeToken {
		return processKey
	}
	sum := sha256.Sum256([]byte(refreshToken))
	return hex.EncodeToString(sum[:])
}
