// Package lock serializes work per key, in process or across processes via Redis.
package lock

import (
	"context"
	"sync"
	"time"

	appErrors "github.com/noah-isme/sma-substitute/pkg/errors"
)

// Locker hands out exclusive ownership of a key until unlock is called.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// MemoryLocker is a keyed mutex for a single process.
type MemoryLocker struct {
	wait time.Duration

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	slot chan struct{}
	refs int
}

// NewMemoryLocker builds a locker. A positive wait bounds how long Lock blocks.
func NewMemoryLocker(wait time.Duration) *MemoryLocker {
	return &MemoryLocker{wait: wait, entries: make(map[string]*entry)}
}

// Lock blocks until key is free, ctx is done or the wait elapses.
func (l *MemoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{slot: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	var timeout <-chan time.Time
	if l.wait > 0 {
		timer := time.NewTimer(l.wait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case e.slot <- struct{}{}:
	case <-ctx.Done():
		l.drop(key, e)
		return nil, ctx.Err()
	case <-timeout:
		l.drop(key, e)
		return nil, appErrors.Clone(appErrors.ErrLockTimeout, "timed out waiting for lock "+key)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.slot
			l.drop(key, e)
		})
	}, nil
}

func (l *MemoryLocker) drop(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

// held reports the number of keys with waiters or owners.
func (l *MemoryLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
