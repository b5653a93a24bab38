package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"courtbook/internal/domain"

	"github.com/rs/zerolog"
)

// FailoverSlotLocker uses the primary locker and switches to the fallback
// when the primary errors. It retries the primary after recoverAfter.
type FailoverSlotLocker struct {
	primary      domain.SlotLocker
	fallback     domain.SlotLocker
	logger       *zerolog.Logger
	recoverAfter time.Duration

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverSlotLocker(primary, fallback domain.SlotLocker, logger *zerolog.Logger) *FailoverSlotLocker {
	return &FailoverSlotLocker{
		primary:      primary,
		fallback:     fallback,
		logger:       logger,
		recoverAfter: time.Minute,
	}
}

func (r *FailoverSlotLocker) Lock(ctx context.Context, key string) (func(), error) {
	if r.usePrimary() {
		release, err := r.primary.Lock(ctx, key)
		if err == nil {
			if r.isDown.CompareAndSwap(true, false) {
				r.logger.Info().Msg("Primary slot locker recovered")
			}
			return release, nil
		}
		// contention and cancellation are not outages
		if errors.Is(err, ErrLockTimeout) || ctx.Err() != nil {
			return nil, err
		}
		r.logger.Error().Err(err).Msg("Primary slot locker failed, falling back to memory")
		r.markDown()
	}

	return r.fallback.Lock(ctx, key)
}

func (r *FailoverSlotLocker) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.lastCheck) > r.recoverAfter {
		r.lastCheck = time.Now()
		return true
	}
	return false
}

func (r *FailoverSlotLocker) markDown() {
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
	r.isDown.Store(true)
}
