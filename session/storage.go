package session

import (
	"context"
	"errors"
	"sync"
)

// ErrStorageUnavailable wraps backend failures reported by a [Storage].
var ErrStorageUnavailable = errors.New("storage unavailable")

// ErrWatchUnsupported is returned by [Store.Watch] when the backend cannot announce changes.
var ErrWatchUnsupported = errors.New("storage does not support change notifications")

// Storage is the key/value facility the token store persists into.
//
// SetMulti and Delete must apply all keys as one unit.
type Storage interface {
	GetMulti(ctx context.Context, keys ...string) (map[string]string, error)
	SetMulti(ctx context.Context, values map[string]string) error
	Delete(ctx context.Context, keys ...string) error
}

// Change announces that Key was modified by another storage view.
type Change struct {
	Key string
}

// Watcher is implemented by storages that can announce changes made elsewhere.
// The returned channel is closed when ctx is done.
type Watcher interface {
	Watch(ctx context.Context) (<-chan Change, error)
}

const watchBuffer = 16

// MemoryStorage is an in-process storage shared by any number of tab views.
// The zero value is not usable; call [NewMemoryStorage].
type MemoryStorage struct {
	mu       sync.Mutex
	data     map[string]string
	watchers map[*memoryWatcher]struct{}
	nextTab  uint64
}

type memoryWatcher struct {
	origin uint64
	ch     chan Change
}

// NewMemoryStorage returns an empty storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		data:     make(map[string]string),
		watchers: make(map[*memoryWatcher]struct{}),
	}
}

// Tab returns a new view over the shared data. Changes written through a view are
// announced to watchers of all other views, never to its own.
func (m *MemoryStorage) Tab() *MemoryTab {
	m.mu.Lock()
	m.nextTab++
	id := m.nextTab
	m.mu.Unlock()
	return &MemoryTab{root: m, origin: id}
}

// GetMulti implements [Storage]. Missing keys are omitted from the result.
func (m *MemoryStorage) GetMulti(ctx context.Context, keys ...string) (map[string]string, error) {
	return m.getMulti(keys)
}

// SetMulti implements [Storage] with origin 0.
func (m *MemoryStorage) SetMulti(ctx context.Context, values map[string]string) error {
	m.setMulti(0, values)
	return nil
}

// Delete implements [Storage] with origin 0.
func (m *MemoryStorage) Delete(ctx context.Context, keys ...string) error {
	m.delete(0, keys)
	return nil
}

// Watch implements [Watcher] with origin 0.
func (m *MemoryStorage) Watch(ctx context.Context) (<-chan Change, error) {
	return m.watch(ctx, 0), nil
}

// Len returns the number of stored keys.
func (m *MemoryStorage) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

func (m *MemoryStorage) getMulti(keys []string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := m.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *MemoryStorage) setMulti(origin uint64, values map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, v := range values {
		if old, ok := m.data[k]; ok && old == v {
			continue
		}
		m.data[k] = v
		m.notifyLocked(origin, k)
	}
}

func (m *MemoryStorage) delete(origin uint64, keys []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		if _, ok := m.data[k]; !ok {
			continue
		}
		delete(m.data, k)
		m.notifyLocked(origin, k)
	}
}

// notifyLocked never blocks: a watcher that is behind only needs to learn that
// something changed, so overflowing notifications are dropped.
func (m *MemoryStorage) notifyLocked(origin uint64, key string) {
	for w := range m.watchers {
		if w.origin == origin {
			continue
		}
		select {
		case w.ch <- Change{Key: key}:
		default:
		}
	}
}

func (m *MemoryStorage) watch(ctx context.Context, origin uint64) <-chan Change {
	w := &memoryWatcher{origin: origin, ch: make(chan Change, watchBuffer)}

	m.mu.Lock()
	m.watchers[w] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.watchers, w)
		close(w.ch)
		m.mu.Unlock()
	}()

	return w.ch
}

// MemoryTab is one view over a [MemoryStorage].
type MemoryTab struct {
	root   *MemoryStorage
	origin uint64
}

// GetMulti implements [Storage].
func (t *MemoryTab) GetMulti(ctx context.Context, keys ...string) (map[string]string, error) {
	return t.root.getMulti(keys)
}

// SetMulti implements [Storage].
func (t *MemoryTab) SetMulti(ctx context.Context, values map[string]string) error {
	t.root.setMulti(t.origin, values)
	return nil
}

// Delete implements [Storage].
func (t *MemoryTab) Delete(ctx context.Context, keys ...string) error {
	t.root.delete(t.origin, keys)
	return nil
}

// Watch implements [Watcher].
func (t *MemoryTab) Watch(ctx context.Context) (<-chan Change, error) {
	return t.root.watch(ctx, t.origin), nil
}
