package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"courtbook/internal/domain"
	"courtbook/internal/models"
)

// OutboxRecorder persists every bus event into the outbox table so the
// worker can deliver it after the request has returned.
type OutboxRecorder struct {
	store   domain.OutboxStore
	timeout time.Duration
}

func NewOutboxRecorder(store domain.OutboxStore) *OutboxRecorder {
	return &OutboxRecorder{store: store, timeout: 5 * time.Second}
}

// Attach subscribes the recorder to every audit event type on bus.
func (r *OutboxRecorder) Attach(bus *EventBus) {
	bus.SubscribeAll(r.Handle)
}

func (r *OutboxRecorder) Handle(event *Event) error {
	var audit AuditEvent
	if err := json.Unmarshal(event.Payload, &audit); err != nil {
		return fmt.Errorf("decode audit event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	row := &models.OutboxEvent{
		EventType: event.Type,
		BookingID: audit.BookingID,
		Payload:   string(event.Payload),
		Status:    models.OutboxPending,
	}
	if err := r.store.CreateOutboxEvent(ctx, row); err != nil {
		return fmt.Errorf("persist outbox event: %w", err)
	}
	event.ID = row.ID
	return nil
}
