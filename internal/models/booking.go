package models

import "time"

type Booking struct {
	ID            int64     `json:"id"`
	Sequence      int64     `json:"-"`
	Reference     string    `json:"reference"`
	FieldCode     string    `json:"field_code"`
	FieldName     string    `json:"field_name"`
	RequesterID   string    `json:"requester_id"`
	Date          time.Time `json:"date"`
	StartTime     float64   `json:"start_time"`
	EndTime       float64   `json:"end_time"`
	Participants  int       `json:"participants"`
	Notes         string    `json:"notes,omitempty"`
	State         string    `json:"state"`         // draft, confirmed, in_progress, completed, cancelled
	PaymentStatus string    `json:"payment_status"` // pending, partial, paid
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Version       int64     `json:"version"`
}

// Duration is the booked length in hours, zero for an inverted range.
func (b *Booking) Duration() float64 {
	if b.EndTime <= b.StartTime {
		return 0
	}
	return b.EndTime - b.StartTime
}

// IsActive reports whether the booking occupies its slot.
func (b *Booking) IsActive() bool {
	return b.State != StateCancelled
}

// DateKey returns the booking date in DateLayout.
func (b *Booking) DateKey() string {
	return b.Date.Format(DateLayout)
}
