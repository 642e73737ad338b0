package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jordanlanch/leaddesk/pkg/store"
)

// Locker is an in-process per-key lock. The ttl is ignored: holders always release.
type Locker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

var _ store.Locker = (*Locker)(nil)

// NewLocker creates an empty Locker.
func NewLocker() *Locker {
	return &Locker{slots: make(map[string]chan struct{})}
}

func (l *Locker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

// Lock blocks until key is free or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Leaser is an in-process expiring claim table.
type Leaser struct {
	mu     sync.Mutex
	leases map[string]time.Time
	now    func() time.Time
}

var _ store.Leaser = (*Leaser)(nil)

// NewLeaser creates an empty Leaser.
func NewLeaser() *Leaser {
	return &Leaser{leases: make(map[string]time.Time), now: time.Now}
}

// Claim takes key for ttl unless another holder's lease is still live.
func (l *Leaser) Claim(ctx context.Context, key string, ttl time.Duration) (bool, func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if until, held := l.leases[key]; held && now.Before(until) {
		return false, func() {}, nil
	}
	until := now.Add(ttl)
	l.leases[key] = until
	return true, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.leases[key].Equal(until) {
			delete(l.leases, key)
		}
	}, nil
}

// Cursors is an in-process counter table.
type Cursors struct {
	mu     sync.Mutex
	values map[string]int64
}

var _ store.CursorStore = (*Cursors)(nil)

// NewCursors creates an empty counter table.
func NewCursors() *Cursors {
	return &Cursors{values: make(map[string]int64)}
}

// Next increments and returns the counter for key, starting at 1.
func (c *Cursors) Next(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.values[key]++
	return c.values[key], nil
}
