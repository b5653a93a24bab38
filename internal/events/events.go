package events

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

const (
	EventBookingCreated        = "booking_created"
	EventBookingConfirmed      = "booking_confirmed"
	EventBookingStarted        = "booking_started"
	EventBookingCompleted      = "booking_completed"
	EventBookingCancelled      = "booking_cancelled"
	EventBookingReopened       = "booking_reopened"
	EventBookingUpdated        = "booking_updated"
	EventBookingPaymentChanged = "booking_payment_changed"
)

// AllEventTypes lists every audit event the core emits.
var AllEventTypes = []string{
	EventBookingCreated,
	EventBookingConfirmed,
	EventBookingStarted,
	EventBookingCompleted,
	EventBookingCancelled,
	EventBookingReopened,
	EventBookingUpdated,
	EventBookingPaymentChanged,
}

// AuditEvent is emitted on every creation, transition and edit of a booking.
type AuditEvent struct {
	BookingID     int64     `json:"booking_id"`
	Reference     string    `json:"reference"`
	FieldCode     string    `json:"field_code"`
	Date          string    `json:"date"`
	StartTime     float64   `json:"start_time"`
	EndTime       float64   `json:"end_time"`
	FromState     string    `json:"from_state,omitempty"`
	ToState       string    `json:"to_state"`
	PaymentStatus string    `json:"payment_status,omitempty"`
	Actor         string    `json:"actor"`
	Timestamp     time.Time `json:"timestamp"`
	Note          string    `json:"note"`
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// ErrorHandler is told about handler failures.
type ErrorHandler func(event *Event, err error)

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	onError     ErrorHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// OnError registers a callback for handler failures.
func (b *EventBus) OnError(h ErrorHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = h
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers a handler for every audit event type.
func (b *EventBus) SubscribeAll(handler EventHandler) {
	for _, t := range AllEventTypes {
		b.Subscribe(t, handler)
	}
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	onError := b.onError
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil && onError != nil {
			onError(event, err)
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}

// RoutingKey maps an event type to a broker topic, e.g. booking_created
// becomes booking.created.
func RoutingKey(eventType string) string {
	return strings.Replace(eventType, "_", ".", 1)
}
