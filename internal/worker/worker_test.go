package worker

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"courtbook/internal/events"
	"courtbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusUpdate struct {
	status    string
	errMsg    string
	nextRetry *time.Time
}

type fakeOutbox struct {
	mu      sync.Mutex
	pending []models.OutboxEvent
	updates map[int64][]statusUpdate
	err     error
}

func newFakeOutbox(events ...models.OutboxEvent) *fakeOutbox {
	return &fakeOutbox{pending: events, updates: make(map[int64][]statusUpdate)}
}

func (f *fakeOutbox) CreateOutboxEvent(_ context.Context, e *models.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.ID = int64(len(f.pending) + 1)
	f.pending = append(f.pending, *e)
	return nil
}

func (f *fakeOutbox) GetPendingOutboxEvents(_ context.Context, limit int) ([]models.OutboxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []models.OutboxEvent
	for _, e := range f.pending {
		last := f.last(e.ID)
		if last == models.OutboxCompleted || last == models.OutboxFailed {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeOutbox) UpdateOutboxEventStatus(_ context.Context, id int64, status, errMsg string, next *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[id] = append(f.updates[id], statusUpdate{status: status, errMsg: errMsg, nextRetry: next})
	return nil
}

func (f *fakeOutbox) last(id int64) string {
	u := f.updates[id]
	if len(u) == 0 {
		return ""
	}
	return u[len(u)-1].status
}

func (f *fakeOutbox) lastStatus(id int64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last(id)
}

type fakePublisher struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, key string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, key)
	return nil
}

func (p *fakePublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

func newWorker(store *fakeOutbox, pub *fakePublisher, retry RetryPolicy) *OutboxWorker {
	logger := zerolog.New(io.Discard)
	return NewOutboxWorker(store, pub, retry, 10*time.Millisecond, 10, &logger)
}

func TestProcessBatchSuccess(t *testing.T) {
	store := newFakeOutbox(
		models.OutboxEvent{ID: 1, EventType: events.EventBookingCreated, Payload: "{}"},
		models.OutboxEvent{ID: 2, EventType: events.EventBookingCancelled, Payload: "{}"},
	)
	pub := &fakePublisher{}
	w := newWorker(store, pub, RetryPolicy{})

	n, err := w.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"booking.created", "booking.cancelled"}, pub.published())
	assert.Equal(t, models.OutboxCompleted, store.lastStatus(1))
	assert.Equal(t, models.OutboxCompleted, store.lastStatus(2))
}

func TestProcessBatchRetry(t *testing.T) {
	store := newFakeOutbox(models.OutboxEvent{ID: 1, EventType: events.EventBookingCreated, Payload: "{}"})
	pub := &fakePublisher{err: errors.New("broker down")}
	w := newWorker(store, pub, RetryPolicy{MaxRetries: 3, InitialDelay: time.Second})

	before := time.Now()
	_, err := w.ProcessBatch(context.Background())
	require.NoError(t, err)

	u := store.updates[1]
	require.Len(t, u, 1)
	assert.Equal(t, models.OutboxRetry, u[0].status)
	assert.Equal(t, "broker down", u[0].errMsg)
	require.NotNil(t, u[0].nextRetry)
	assert.True(t, u[0].nextRetry.After(before))
}

func TestProcessBatchFailsAfterMaxRetries(t *testing.T) {
	store := newFakeOutbox(models.OutboxEvent{ID: 1, EventType: events.EventBookingCreated, Payload: "{}", RetryCount: 2})
	pub := &fakePublisher{err: errors.New("broker down")}
	w := newWorker(store, pub, RetryPolicy{MaxRetries: 3})

	_, err := w.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.OutboxFailed, store.lastStatus(1))
	assert.Nil(t, store.updates[1][0].nextRetry)
}

func TestProcessBatchFetchError(t *testing.T) {
	store := newFakeOutbox()
	store.err = errors.New("db closed")
	w := newWorker(store, &fakePublisher{}, RetryPolicy{})

	_, err := w.ProcessBatch(context.Background())
	assert.Error(t, err)
}

func TestStartDeliversOnNotify(t *testing.T) {
	store := newFakeOutbox()
	pub := &fakePublisher{}
	logger := zerolog.New(io.Discard)
	w := NewOutboxWorker(store, pub, RetryPolicy{}, time.Hour, 10, &logger)

	bus := events.NewEventBus()
	events.NewOutboxRecorder(store).Attach(bus)
	w.Attach(bus)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.NoError(t, bus.PublishJSON(events.EventBookingConfirmed, events.AuditEvent{BookingID: 9}))

	assert.Eventually(t, func() bool {
		return len(pub.published()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "booking.confirmed", pub.published()[0])

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestRetryPolicy(t *testing.T) {
	p := RetryPolicy{InitialDelay: time.Second, MaxDelay: 5 * time.Second, BackoffFactor: 2}
	assert.Equal(t, time.Second, p.NextDelay(0))
	assert.Equal(t, time.Second, p.NextDelay(1))
	assert.Equal(t, 2*time.Second, p.NextDelay(2))
	assert.Equal(t, 4*time.Second, p.NextDelay(3))
	assert.Equal(t, 5*time.Second, p.NextDelay(4))

	d := RetryPolicy{}.WithDefaults()
	assert.Equal(t, 5, d.MaxRetries)
	assert.Equal(t, 2*time.Second, d.InitialDelay)
	assert.True(t, d.Exhausted(5))
	assert.False(t, d.Exhausted(4))
}
