package session

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"
)

// DefaultExpiryBuffer is how long before the recorded expiry a token already counts
// as expired, so that a token about to lapse mid-request is refreshed up front.
const DefaultExpiryBuffer = 60 * time.Second

// ErrIncompletePair is returned by [Store.Write] when either token is empty.
var ErrIncompletePair = errors.New("token pair is incomplete")

// Keys names the three storage keys that make up a [Record].
type Keys struct {
	Access  string
	Refresh string
	Expiry  string
}

// DefaultKeys returns the key names under prefix.
func DefaultKeys(prefix string) Keys {
	return Keys{
		Access:  prefix + "access_token",
		Refresh: prefix + "refresh_token",
		Expiry:  prefix + "token_expiry",
	}
}

func (k Keys) all() []string {
	return []string{k.Access, k.Refresh, k.Expiry}
}

// Tracks reports whether key names the access or the refresh token.
func (k Keys) Tracks(key string) bool {
	return key == k.Access || key == k.Refresh
}

// Store persists the token record of the current client.
//
// Every method is a silent no-op (and Read reports absent) when the store was built
// for a non-client [Environment].
type Store struct {
	storage Storage
	env     Environment
	keys    Keys
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a [Store].
type Option func(*Store)

// WithKeys overrides the storage key names.
func WithKeys(keys Keys) Option {
	return func(s *Store) { s.keys = keys }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger used for backend failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore builds a store over storage for env.
func NewStore(storage Storage, env Environment, opts ...Option) *Store {
	s := &Store{
		storage: storage,
		env:     env,
		keys:    DefaultKeys("gosession:"),
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Keys returns the storage key names.
func (s *Store) Keys() Keys {
	return s.keys
}

func (s *Store) active() bool {
	return s != nil && s.storage != nil && IsClient(s.env)
}

// Write persists pair with ExpiresAt = now + ExpiresIn seconds. All three keys are
// written in one storage call; an incomplete pair is rejected and nothing is written.
// A [Fence] on ctx may reject the write with [ErrStale].
func (s *Store) Write(ctx context.Context, pair TokenPair) error {
	if !s.active() {
		return nil
	}
	if !pair.Valid() {
		return ErrIncompletePair
	}

	return fenced(ctx, func() error {
		expiresAt := s.now().UnixMilli() + pair.ExpiresIn*1000
		return s.storage.SetMulti(ctx, map[string]string{
			s.keys.Access:  pair.AccessToken,
			s.keys.Refresh: pair.RefreshToken,
			s.keys.Expiry:  strconv.FormatInt(expiresAt, 10),
		})
	})
}

// Read returns the stored record. Missing fields, an unparsable expiry and backend
// failures all read as absent.
func (s *Store) Read(ctx context.Context) (Record, bool) {
	if !s.active() {
		return Record{}, false
	}

	values, err := s.storage.GetMulti(ctx, s.keys.all()...)
	if err != nil {
		s.logger.WarnContext(ctx, "goSession: token store read failed", slog.String("error", err.Error()))
		return Record{}, false
	}

	access := values[s.keys.Access]
	refresh := values[s.keys.Refresh]
	rawExpiry := values[s.keys.Expiry]
	if access == "" || refresh == "" || rawExpiry == "" {
		return Record{}, false
	}

	expiresAt, err := strconv.ParseInt(rawExpiry, 10, 64)
	if err != nil {
		return Record{}, false
	}

	return Record{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	}, true
}

// Clear removes all three keys. Clearing an empty store is not an error.
func (s *Store) Clear(ctx context.Context) error {
	if !s.active() {
		return nil
	}
	return fenced(ctx, func() error {
		return s.storage.Delete(ctx, s.keys.all()...)
	})
}

// IsExpired reports whether the stored access token is expired or within buffer of
// expiring. An absent record is expired. A negative buffer is treated as zero.
func (s *Store) IsExpired(ctx context.Context, buffer time.Duration) bool {
	rec, ok := s.Read(ctx)
	if !ok {
		return true
	}
	if buffer < 0 {
		buffer = 0
	}
	return s.now().UnixMilli() >= rec.ExpiresAt-buffer.Milliseconds()
}

// Watch forwards change announcements from the backend.
func (s *Store) Watch(ctx context.Context) (<-chan Change, error) {
	if !s.active() {
		return nil, ErrWatchUnsupported
	}
	w, ok := s.storage.(Watcher)
	if !ok {
		return nil, ErrWatchUnsupported
	}
	return w.Watch(ctx)
}
