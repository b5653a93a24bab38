package worker

import (
	"context"
	"errors"
	"time"

	"courtbook/internal/domain"
	"courtbook/internal/events"
	"courtbook/internal/metrics"
	"courtbook/internal/models"

	"github.com/rs/zerolog"
)

// OutboxWorker delivers persisted audit events to the broker.
type OutboxWorker struct {
	store        domain.OutboxStore
	publisher    domain.Publisher
	retryPolicy  RetryPolicy
	pollInterval time.Duration
	batchSize    int
	logger       zerolog.Logger
	wake         chan struct{}
}

func NewOutboxWorker(store domain.OutboxStore, publisher domain.Publisher, retry RetryPolicy, pollInterval time.Duration, batchSize int, logger *zerolog.Logger) *OutboxWorker {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 20
	}
	return &OutboxWorker{
		store:        store,
		publisher:    publisher,
		retryPolicy:  retry.WithDefaults(),
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger.With().Str("component", "outbox_worker").Logger(),
		wake:         make(chan struct{}, 1),
	}
}

// Notify asks the worker to poll now instead of waiting for the next tick.
func (w *OutboxWorker) Notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Attach wakes the worker whenever bus emits an audit event. It must be
// attached after the outbox recorder so the row exists when the worker polls.
func (w *OutboxWorker) Attach(bus *events.EventBus) {
	bus.SubscribeAll(func(*events.Event) error {
		w.Notify()
		return nil
	})
}

// Start runs the delivery loop until ctx is done.
func (w *OutboxWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("Outbox worker started")
	defer w.logger.Info().Msg("Outbox worker stopped")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		for {
			n, err := w.ProcessBatch(ctx)
			if err != nil {
				w.logger.Error().Err(err).Msg("Failed to fetch pending outbox events")
				break
			}
			if n < w.batchSize {
				break
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.wake:
		}
	}
}

// ProcessBatch delivers up to batchSize due events and returns how many it
// handled.
func (w *OutboxWorker) ProcessBatch(ctx context.Context) (int, error) {
	pending, err := w.store.GetPendingOutboxEvents(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}
	for i := range pending {
		if ctx.Err() != nil {
			return i, nil
		}
		w.processEvent(ctx, &pending[i])
	}
	return len(pending), nil
}

func (w *OutboxWorker) processEvent(ctx context.Context, event *models.OutboxEvent) {
	err := w.publisher.Publish(ctx, events.RoutingKey(event.EventType), []byte(event.Payload))
	if err == nil {
		if err := w.store.UpdateOutboxEventStatus(ctx, event.ID, models.OutboxCompleted, "", nil); err != nil {
			w.logger.Error().Err(err).Int64("event_id", event.ID).Msg("Failed to mark outbox event completed")
		}
		metrics.IncOutbox(models.OutboxCompleted)
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	w.retryOrFail(ctx, event, err)
}

func (w *OutboxWorker) retryOrFail(ctx context.Context, event *models.OutboxEvent, cause error) {
	attempt := event.RetryCount + 1
	log := w.logger.With().Int64("event_id", event.ID).Str("type", event.EventType).Int("attempt", attempt).Logger()

	if w.retryPolicy.Exhausted(attempt) {
		log.Error().Err(cause).Msg("Outbox event delivery failed permanently")
		if err := w.store.UpdateOutboxEventStatus(ctx, event.ID, models.OutboxFailed, cause.Error(), nil); err != nil {
			log.Error().Err(err).Msg("Failed to mark outbox event failed")
		}
		metrics.IncOutbox(models.OutboxFailed)
		return
	}

	next := time.Now().Add(w.retryPolicy.NextDelay(attempt))
	log.Warn().Err(cause).Time("next_retry_at", next).Msg("Outbox event delivery failed, scheduling retry")
	if err := w.store.UpdateOutboxEventStatus(ctx, event.ID, models.OutboxRetry, cause.Error(), &next); err != nil {
		log.Error().Err(err).Msg("Failed to schedule outbox retry")
	}
	metrics.IncOutbox(models.OutboxRetry)
}
