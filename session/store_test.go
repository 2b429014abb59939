package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestStore(t *testing.T, now time.Time) (*Store, *MemoryStorage) {
	t.Helper()
	mem := NewMemoryStorage()
	return NewStore(mem, Client, WithClock(fixedClock(now))), mem
}

func TestStoreWriteReadRoundTrip(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	store, _ := newTestStore(t, now)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, TokenPair{AccessToken: "a-1", RefreshToken: "r-1", ExpiresIn: 3600}))

	rec, ok := store.Read(ctx)
	require.True(t, ok)
	assert.Equal(t, "a-1", rec.AccessToken)
	assert.Equal(t, "r-1", rec.RefreshToken)
	assert.Equal(t, now.UnixMilli()+3_600_000, rec.ExpiresAt)
}

func TestStoreClearIsIdempotent(t *testing.T) {
	store, mem := newTestStore(t, time.Now())
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, TokenPair{AccessToken: "a", RefreshToken: "r", ExpiresIn: 60}))
	require.NoError(t, store.Clear(ctx))
	_, ok := store.Read(ctx)
	require.False(t, ok)
	require.Equal(t, 0, mem.Len())

	require.NoError(t, store.Clear(ctx))
	_, ok = store.Read(ctx)
	require.False(t, ok)
	require.Equal(t, 0, mem.Len())
}

func TestStoreExpiryBuffer(t *testing.T) {
	now := time.Now()
	store, _ := newTestStore(t, now)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, TokenPair{AccessToken: "a", RefreshToken: "r", ExpiresIn: 30}))

	assert.True(t, store.IsExpired(ctx, 60*time.Second))
	assert.False(t, store.IsExpired(ctx, 10*time.Second))
	assert.True(t, store.IsExpired(ctx, DefaultExpiryBuffer))
}

func TestStoreAbsentRecordIsExpired(t *testing.T) {
	store, _ := newTestStore(t, time.Now())
	assert.True(t, store.IsExpired(context.Background(), 0))
}

func TestStoreReadTreatsPartialRecordAsAbsent(t *testing.T) {
	store, mem := newTestStore(t, time.Now())
	ctx := context.Background()
	keys := store.Keys()

	require.NoError(t, mem.SetMulti(ctx, map[string]string{keys.Access: "a", keys.Expiry: "123"}))
	_, ok := store.Read(ctx)
	assert.False(t, ok, "missing refresh token must read as absent")

	require.NoError(t, mem.SetMulti(ctx, map[string]string{keys.Refresh: "r", keys.Expiry: "not-a-number"}))
	_, ok = store.Read(ctx)
	assert.False(t, ok, "corrupt expiry must read as absent")
}

func TestStoreRejectsIncompletePair(t *testing.T) {
	store, mem := newTestStore(t, time.Now())

	err := store.Write(context.Background(), TokenPair{AccessToken: "a", ExpiresIn: 60})
	require.ErrorIs(t, err, ErrIncompletePair)
	assert.Equal(t, 0, mem.Len())
}

func TestStoreIsNoOpOutsideClient(t *testing.T) {
	mem := NewMemoryStorage()
	store := NewStore(mem, Server)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, TokenPair{AccessToken: "a", RefreshToken: "r", ExpiresIn: 60}))
	assert.Equal(t, 0, mem.Len())

	_, ok := store.Read(ctx)
	assert.False(t, ok)
	require.NoError(t, store.Clear(ctx))

	_, err := store.Watch(ctx)
	assert.ErrorIs(t, err, ErrWatchUnsupported)
}

func TestMemoryTabsAnnounceToOtherTabsOnly(t *testing.T) {
	mem := NewMemoryStorage()
	tabA, tabB := mem.Tab(), mem.Tab()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changesA, err := tabA.Watch(ctx)
	require.NoError(t, err)
	changesB, err := tabB.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, tabA.SetMulti(ctx, map[string]string{"k": "v"}))

	select {
	case c := <-changesB:
		assert.Equal(t, "k", c.Key)
	case <-time.After(time.Second):
		t.Fatal("tab B did not observe the change")
	}

	select {
	case c := <-changesA:
		t.Fatalf("writer observed its own change %q", c.Key)
	default:
	}

	// Rewriting the same value is not a change.
	require.NoError(t, tabA.SetMulti(ctx, map[string]string{"k": "v"}))
	select {
	case c := <-changesB:
		t.Fatalf("unexpected change %q", c.Key)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestMemoryWatchClosesOnCancel(t *testing.T) {
	mem := NewMemoryStorage()
	ctx, cancel := context.WithCancel(context.Background())

	changes, err := mem.Tab().Watch(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-changes:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("watch channel not closed")
	}
}

func TestStoreFenceRejectsStaleMutations(t *testing.T) {
	store, mem := newTestStore(t, time.Now())
	current := true
	ctx := WithFence(context.Background(), func(apply func() error) error {
		if !current {
			return ErrStale
		}
		return apply()
	})

	require.NoError(t, store.Write(ctx, TokenPair{AccessToken: "a", RefreshToken: "r", ExpiresIn: 60}))

	current = false
	assert.ErrorIs(t, store.Write(ctx, TokenPair{AccessToken: "a2", RefreshToken: "r2", ExpiresIn: 60}), ErrStale)
	assert.ErrorIs(t, store.Clear(ctx), ErrStale)

	rec, ok := store.Read(ctx)
	require.True(t, ok)
	assert.Equal(t, "a", rec.AccessToken)
	assert.Equal(t, 3, mem.Len())

	require.NoError(t, store.Clear(context.WithoutCancel(context.Background())))
	assert.Zero(t, mem.Len())
}
