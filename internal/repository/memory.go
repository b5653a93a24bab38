package repository

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memoryLock struct {
	ch   chan struct{}
	refs int
}

// MemorySlotLocker serializes admission per key inside one process.
type MemorySlotLocker struct {
	mu    sync.Mutex
	locks map[string]*memoryLock
	wait  time.Duration
}

func NewMemorySlotLocker(wait time.Duration) *MemorySlotLocker {
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &MemorySlotLocker{
		locks: make(map[string]*memoryLock),
		wait:  wait,
	}
}

func (r *MemorySlotLocker) Lock(ctx context.Context, key string) (func(), error) {
	r.mu.Lock()
	l, ok := r.locks[key]
	if !ok {
		l = &memoryLock{ch: make(chan struct{}, 1)}
		r.locks[key] = l
	}
	l.refs++
	r.mu.Unlock()

	timer := time.NewTimer(r.wait)
	defer timer.Stop()

	select {
	case l.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-l.ch
				r.unref(key, l)
			})
		}, nil
	case <-ctx.Done():
		r.unref(key, l)
		return nil, ctx.Err()
	case <-timer.C:
		r.unref(key, l)
		return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
	}
}

func (r *MemorySlotLocker) unref(key string, l *memoryLock) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(r.locks, key)
	}
}

// Held returns the number of keys currently tracked.
func (r *MemorySlotLocker) Held() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}
