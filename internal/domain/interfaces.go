package domain

import (
	"context"
	"time"

	"courtbook/internal/models"
)

// Ledger stores bookings. Conditional writes re-check overlap inside the
// storage transaction and fail with a KindConflict rejection.
type Ledger interface {
	CreateBookingIfFree(ctx context.Context, booking *models.Booking) error
	UpdateBookingIfFree(ctx context.Context, booking *models.Booking, fromVersion int64) error
	UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, state string) error
	UpdatePaymentStatusWithVersion(ctx context.Context, id, fromVersion int64, status string) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	GetBookingByReference(ctx context.Context, reference string) (*models.Booking, error)
	ActiveBookings(ctx context.Context, fieldCode string, date time.Time) ([]*models.Booking, error)
	CountBookingsByField(ctx context.Context, fieldCode string) (int, error)
	MaxBookingSequence(ctx context.Context) (int64, error)
}

// FieldStore persists the field catalog.
type FieldStore interface {
	GetField(ctx context.Context, code string) (*models.Field, error)
	ListFields(ctx context.Context, activeOnly bool) ([]*models.Field, error)
	UpsertField(ctx context.Context, field *models.Field) error
	DeactivateField(ctx context.Context, code string) error
}

// FieldRegistry is the read side of the catalog used by admission. Get may
// serve a cached copy; Current always reflects the store.
type FieldRegistry interface {
	Get(ctx context.Context, code string) (*models.Field, error)
	Current(ctx context.Context, code string) (*models.Field, error)
}

// OutboxStore queues audit events for delivery.
type OutboxStore interface {
	CreateOutboxEvent(ctx context.Context, event *models.OutboxEvent) error
	GetPendingOutboxEvents(ctx context.Context, limit int) ([]models.OutboxEvent, error)
	UpdateOutboxEventStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

// SlotLocker serializes admission per (field, date) key.
type SlotLocker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Publisher delivers an encoded event to an external broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// Sequencer hands out booking reference numbers. Advance moves it past numbers
// stored by other writers.
type Sequencer interface {
	Next() (int64, string, error)
	Advance(last int64)
}

type Clock interface {
	Now() time.Time
}

// SystemClock reads wall-clock time in a fixed location.
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now().UTC()
	}
	return time.Now().In(c.Location)
}

// SlotKey is the lock key for a field and date.
func SlotKey(fieldCode string, date time.Time) string {
	return fieldCode + ":" + date.Format(models.DateLayout)
}
