package api

import (
	"context"
	"time"

	"courtbook/internal/models"
	"courtbook/internal/service"

	"github.com/shopspring/decimal"
)

// BookingCore is the booking API surface served over HTTP and gRPC.
type BookingCore interface {
	RequestBooking(ctx context.Context, req service.BookingRequest) (*models.Booking, error)
	Transition(ctx context.Context, id int64, action, actor string) (*models.Booking, error)
	UpdateBooking(ctx context.Context, id int64, changes service.BookingChanges, actor string) (*models.Booking, error)
	SetPaymentStatus(ctx context.Context, id int64, status, actor string) (*models.Booking, error)
	ListActive(ctx context.Context, fieldCode string, date time.Time) ([]*models.Booking, error)
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	GetBookingByReference(ctx context.Context, reference string) (*models.Booking, error)
	TotalAmount(ctx context.Context, id int64) (decimal.Decimal, error)
	CheckSlot(ctx context.Context, fieldCode string, date time.Time, start, end float64, excludeID int64) ([]*models.Booking, error)
	Location() *time.Location
}

// FieldCatalog lists the bookable fields.
type FieldCatalog interface {
	List(ctx context.Context, activeOnly bool) ([]*models.Field, error)
	Get(ctx context.Context, code string) (*models.Field, error)
}

type bookingView struct {
	ID            int64     `json:"id"`
	Reference     string    `json:"reference"`
	FieldCode     string    `json:"field_code"`
	FieldName     string    `json:"field_name,omitempty"`
	RequesterID   string    `json:"requester_id"`
	Date          string    `json:"date"`
	StartTime     float64   `json:"start_time"`
	EndTime       float64   `json:"end_time"`
	Slot          string    `json:"slot"`
	Duration      float64   `json:"duration"`
	Participants  int       `json:"participants"`
	Notes         string    `json:"notes,omitempty"`
	State         string    `json:"state"`
	PaymentStatus string    `json:"payment_status"`
	Version       int64     `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func newBookingView(b *models.Booking) bookingView {
	return bookingView{
		ID:            b.ID,
		Reference:     b.Reference,
		FieldCode:     b.FieldCode,
		FieldName:     b.FieldName,
		RequesterID:   b.RequesterID,
		Date:          b.DateKey(),
		StartTime:     b.StartTime,
		EndTime:       b.EndTime,
		Slot:          models.FormatHour(b.StartTime) + "-" + models.FormatHour(b.EndTime),
		Duration:      b.Duration(),
		Participants:  b.Participants,
		Notes:         b.Notes,
		State:         b.State,
		PaymentStatus: b.PaymentStatus,
		Version:       b.Version,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

func newBookingViews(bookings []*models.Booking) []bookingView {
	out := make([]bookingView, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, newBookingView(b))
	}
	return out
}
