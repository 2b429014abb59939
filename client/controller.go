package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/session"
)

// ErrSuperseded is returned by Login and Register when a later operation replaced
// the session before the API answered. The result was discarded.
var ErrSuperseded = errors.New("session changed while the request was in flight")

// Navigator performs a full navigation. Logout uses it to reset the whole UI.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to [Navigator].
type NavigatorFunc func(path string)

// Navigate calls f(path).
func (f NavigatorFunc) Navigate(path string) { f(path) }

type noopNavigator struct{}

func (noopNavigator) Navigate(string) {}

// Option configures a Controller.
type Option func(*Controller)

// WithNavigator sets the navigator used by Logout.
func WithNavigator(nav Navigator) Option {
	return func(c *Controller) {
		if nav != nil {
			c.nav = nav
		}
	}
}

// Controller holds the session of one client context. Its methods are safe for
// concurrent use.
type Controller struct {
	engine   *goSession.Engine
	nav      Navigator
	logger   *slog.Logger
	home     string
	debounce time.Duration

	// storeMu orders token store mutations against settled.
	storeMu sync.Mutex

	mu    sync.Mutex
	state goSession.State
	gen   uint64
	// settled is the generation of the last operation that decided the
	// session. Store mutations from older generations are rejected.
	settled uint64
	subs    map[uint64]func(goSession.State)
	nextSub uint64
}

// New returns a controller in the uninitialized state. engine must be built for
// a client environment.
func New(engine *goSession.Engine, opts ...Option) (*Controller, error) {
	if engine == nil {
		return nil, goSession.ErrEngineNotReady
	}
	if !engine.IsClient() {
		return nil, goSession.ErrNotClient
	}

	cfg := engine.Config()
	c := &Controller{
		engine:   engine,
		nav:      noopNavigator{},
		logger:   engine.Logger(),
		home:     cfg.Client.HomePath,
		debounce: cfg.Client.SyncDebounce,
		state:    goSession.State{},
		subs:     make(map[uint64]func(goSession.State)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// State returns the current session.
func (c *Controller) State() goSession.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Generation returns the number of operations started so far.
func (c *Controller) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Subscribe registers fn for every state change. fn runs on the goroutine that
// caused the change and must not block.
func (c *Controller) Subscribe(fn func(goSession.State)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// Initialize re-derives the session from the token store and always leaves it
// initialized, unless a later operation superseded this one.
func (c *Controller) Initialize(ctx context.Context) goSession.State {
	gen := c.begin(func(s *goSession.State) { s.IsLoading = true }, false)

	user, err := c.engine.Restore(session.WithFence(ctx, c.fence(gen, false)))
	if err != nil && !errors.Is(err, goSession.ErrNoSession) {
		c.logger.DebugContext(ctx, "goSession: session restore failed", slog.String("kind", goSession.KindOf(err).String()))
	}

	next := session.Anonymous(true)
	if user != nil {
		next = session.Authenticated(user)
	}
	if !c.settle(gen, next) {
		c.logger.DebugContext(ctx, "goSession: stale initialization discarded", slog.Uint64("generation", gen))
	}
	return c.State()
}

// Login authenticates with creds and persists the returned token pair. On failure
// the session is left as it was and the API error is returned unchanged.
func (c *Controller) Login(ctx context.Context, creds goSession.Credentials) (*goSession.User, error) {
	return c.authenticate(ctx, func(ctx context.Context) (*goSession.AuthPayload, error) {
		return c.engine.Login(ctx, creds)
	})
}

// Register creates an account and signs in as it. Same contract as Login.
func (c *Controller) Register(ctx context.Context, reg goSession.Registration) (*goSession.User, error) {
	return c.authenticate(ctx, func(ctx context.Context) (*goSession.AuthPayload, error) {
		return c.engine.Register(ctx, reg)
	})
}

func (c *Controller) authenticate(ctx context.Context, call func(context.Context) (*goSession.AuthPayload, error)) (*goSession.User, error) {
	gen := c.begin(func(s *goSession.State) { s.IsLoading = true }, false)

	payload, err := call(ctx)
	if err != nil {
		c.update(gen, func(s *goSession.State) { s.IsLoading = false })
		return nil, err
	}

	err = c.engine.Store().Write(session.WithFence(ctx, c.fence(gen, true)), payload.Tokens)
	switch {
	case errors.Is(err, session.ErrStale):
		return nil, ErrSuperseded
	case err != nil:
		c.update(gen, func(s *goSession.State) { s.IsLoading = false })
		return nil, err
	}
	if !c.settle(gen, session.Authenticated(payload.User)) {
		return nil, ErrSuperseded
	}
	return payload.User, nil
}

// Logout clears the token store, resets the session and navigates to the home
// path. Pending operations from earlier generations are discarded.
func (c *Controller) Logout(ctx context.Context) error {
	gen := c.begin(func(s *goSession.State) { *s = session.Anonymous(true) }, true)
	err := c.engine.Logout(session.WithFence(ctx, c.fence(gen, false)))
	c.logger.DebugContext(ctx, "goSession: logged out", slog.Uint64("generation", gen))
	c.nav.Navigate(c.home)
	return err
}

// RefreshToken exchanges the stored refresh token. Any failure logs the session
// out and returns false. A result that arrives after another operation decided
// the session is dropped without logging out.
func (c *Controller) RefreshToken(ctx context.Context) bool {
	gen := c.Generation()
	rec, ok := c.engine.Store().Read(ctx)
	if !ok {
		_ = c.Logout(ctx)
		return false
	}
	if c.engine.Refresh(session.WithFence(ctx, c.fence(gen, false)), rec.RefreshToken) == nil {
		if c.superseded(gen) {
			return false
		}
		_ = c.Logout(ctx)
		return false
	}
	return true
}

// Watch re-runs Initialize when another context changes the access or refresh
// token. Bursts of changes within the debounce window collapse into one run.
// Watch blocks until ctx is done or the storage stops announcing changes.
func (c *Controller) Watch(ctx context.Context) error {
	store := c.engine.Store()
	changes, err := store.Watch(ctx)
	if err != nil {
		return err
	}
	keys := store.Keys()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case change, ok := <-changes:
			if !ok {
				return ctx.Err()
			}
			if !keys.Tracks(change.Key) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(c.debounce)
			} else {
				timer.Reset(c.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			c.Initialize(ctx)
		}
	}
}

// begin starts a new generation and applies mutate to the state. A deciding
// operation settles the session at once, fencing off older store mutations.
func (c *Controller) begin(mutate func(*goSession.State), deciding bool) uint64 {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	if deciding {
		c.settled = gen
	}
	mutate(&c.state)
	snapshot := c.state
	subs := c.subscribersLocked()
	c.mu.Unlock()

	notify(subs, snapshot)
	return gen
}

// settle records the session decided by gen unless a newer operation already
// decided it. Operations started after gen keep their loading flag.
func (c *Controller) settle(gen uint64, next goSession.State) bool {
	c.mu.Lock()
	if c.settled > gen {
		c.mu.Unlock()
		return false
	}
	c.settled = gen
	if gen != c.gen {
		next.IsLoading = c.state.IsLoading
	}
	c.state = next
	snapshot := c.state
	subs := c.subscribersLocked()
	c.mu.Unlock()

	notify(subs, snapshot)
	return true
}

func (c *Controller) superseded(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settled > gen
}

// fence admits store mutations of gen while no newer operation has decided the
// session. With claim set, a successful mutation decides it for gen.
func (c *Controller) fence(gen uint64, claim bool) session.Fence {
	return func(apply func() error) error {
		c.storeMu.Lock()
		defer c.storeMu.Unlock()
		if c.superseded(gen) {
			return session.ErrStale
		}
		if err := apply(); err != nil {
			return err
		}
		if claim {
			c.mu.Lock()
			if c.settled < gen {
				c.settled = gen
			}
			c.mu.Unlock()
		}
		return nil
	}
}

func (c *Controller) update(gen uint64, mutate func(*goSession.State)) bool {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return false
	}
	mutate(&c.state)
	snapshot := c.state
	subs := c.subscribersLocked()
	c.mu.Unlock()

	notify(subs, snapshot)
	return true
}

func (c *Controller) subscribersLocked() []func(goSession.State) {
	if len(c.subs) == 0 {
		return nil
	}
	out := make([]func(goSession.State), 0, len(c.subs))
	for _, fn := range c.subs {
		out = append(out, fn)
	}
	return out
}

func notify(subs []func(goSession.State), s goSession.State) {
	for _, fn := range subs {
		fn(s)
	}
}
