package session

import (
	"context"
	"errors"
)

// ErrStale is returned by [Store.Write] and [Store.Clear] when the fence carried by
// the context rejected the mutation. Nothing was written.
var ErrStale = errors.New("token store mutation superseded")

// Fence decides whether a store mutation still belongs to the current operation. It
// must call apply at most once, and only while the mutation is current; otherwise
// it returns ErrStale. Implementations serialize apply with whatever makes the
// mutation stale.
type Fence func(apply func() error) error

type fenceContextKey struct{}

// WithFence returns a context whose store mutations go through f. The fence survives
// context.WithoutCancel, so an exchange shared by the refresh coordinator is fenced by
// the context that started it.
func WithFence(ctx context.Context, f Fence) context.Context {
	if f == nil {
		return ctx
	}
	return context.WithValue(ctx, fenceContextKey{}, f)
}

func fenced(ctx context.Context, apply func() error) error {
	f, ok := ctx.Value(fenceContextKey{}).(Fence)
	if !ok {
		return apply()
	}
	return f(apply)
}
