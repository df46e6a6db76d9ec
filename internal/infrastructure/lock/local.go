package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yokitheyo/imageeditor/internal/domain"
)

type localLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
	wait  time.Duration
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocal returns an in-process locker. wait bounds how long Lock blocks;
// zero means until ctx is done.
func NewLocal(wait time.Duration) Locker {
	return &localLocker{slots: make(map[string]*slot), wait: wait}
}

func (l *localLocker) Lock(ctx context.Context, key string) (Release, error) {
	key = imageKey(key)
	s := l.acquireSlot(key)

	var timeout <-chan time.Time
	if l.wait > 0 {
		t := time.NewTimer(l.wait)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case s.ch <- struct{}{}:
	case <-timeout:
		l.releaseSlot(key)
		return nil, fmt.Errorf("%w: %s", domain.ErrLockBusy, key)
	case <-ctx.Done():
		l.releaseSlot(key)
		return nil, fmt.Errorf("%w: %w", domain.ErrLockBusy, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.releaseSlot(key)
		})
	}, nil
}

func (l *localLocker) acquireSlot(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *localLocker) releaseSlot(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.slots[key]
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
