package gate

import (
	"context"
	"sync"
	"time"
)

// keyedMutex provides a mutex per string key with bounded acquisition.
// The gate keys it by (account, destination) so admission for one
// destination serializes without blocking unrelated destinations.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	ch   chan struct{}
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{entries: make(map[string]*lockEntry)}
}

// acquire blocks until the key's lock is held, the timeout elapses, or
// the context is canceled. On success it returns a release func that
// must be called exactly once.
func (k *keyedMutex) acquire(ctx context.Context, key string, timeout time.Duration) (func(), error) {
	k.mu.Lock()
	entry, ok := k.entries[key]
	if !ok {
		entry = &lockEntry{ch: make(chan struct{}, 1)}
		k.entries[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case entry.ch <- struct{}{}:
		return func() {
			<-entry.ch
			k.put(key, entry)
		}, nil
	case <-timer.C:
		k.put(key, entry)
		return nil, context.DeadlineExceeded
	case <-ctx.Done():
		k.put(key, entry)
		return nil, ctx.Err()
	}
}

func (k *keyedMutex) put(key string, entry *lockEntry) {
	k.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(k.entries, key)
	}
	k.mu.Unlock()
}
