package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockLocker struct {
	mock.Mock
}

func (m *mockLocker) Lock(ctx context.Context, key string) (func(), error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func()), args.Error(1)
}

func TestFailoverSlotLocker(t *testing.T) {
	logger := zerolog.New(io.Discard)
	ctx := context.Background()
	noop := func() {}

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary, fallback := new(mockLocker), new(mockLocker)
		f := NewFailoverSlotLocker(primary, fallback, &logger)

		primary.On("Lock", ctx, "k").Return(noop, nil).Once()
		release, err := f.Lock(ctx, "k")
		require.NoError(t, err)
		assert.NotNil(t, release)
		fallback.AssertNotCalled(t, "Lock", mock.Anything, mock.Anything)
	})

	t.Run("PrimaryFailure", func(t *testing.T) {
		primary, fallback := new(mockLocker), new(mockLocker)
		f := NewFailoverSlotLocker(primary, fallback, &logger)

		primary.On("Lock", ctx, "k").Return(nil, errors.New("connection refused")).Once()
		fallback.On("Lock", ctx, "k").Return(noop, nil).Twice()

		_, err := f.Lock(ctx, "k")
		require.NoError(t, err)
		assert.True(t, f.isDown.Load())

		// stays on fallback until the recovery window passes
		_, err = f.Lock(ctx, "k")
		require.NoError(t, err)
		primary.AssertNumberOfCalls(t, "Lock", 1)
	})

	t.Run("Recovery", func(t *testing.T) {
		primary, fallback := new(mockLocker), new(mockLocker)
		f := NewFailoverSlotLocker(primary, fallback, &logger)
		f.recoverAfter = 0
		f.isDown.Store(true)
		f.lastCheck = time.Now().Add(-time.Second)

		primary.On("Lock", ctx, "k").Return(noop, nil).Once()
		_, err := f.Lock(ctx, "k")
		require.NoError(t, err)
		assert.False(t, f.isDown.Load())
	})

	t.Run("TimeoutIsNotOutage", func(t *testing.T) {
		primary, fallback := new(mockLocker), new(mockLocker)
		f := NewFailoverSlotLocker(primary, fallback, &logger)

		primary.On("Lock", ctx, "k").Return(nil, ErrLockTimeout).Once()
		_, err := f.Lock(ctx, "k")
		assert.ErrorIs(t, err, ErrLockTimeout)
		assert.False(t, f.isDown.Load())
		fallback.AssertNotCalled(t, "Lock", mock.Anything, mock.Anything)
	})

	t.Run("WithMemoryFallback", func(t *testing.T) {
		primary := new(mockLocker)
		primary.On("Lock", mock.Anything, mock.Anything).Return(nil, errors.New("down"))
		f := NewFailoverSlotLocker(primary, NewMemorySlotLocker(time.Second), &logger)

		release, err := f.Lock(ctx, "k")
		require.NoError(t, err)
		release()
	})
}
