// Package conflict detects overlapping bookings on a field.
package conflict

import (
	"context"
	"fmt"
	"time"

	"courtbook/internal/domain"
	"courtbook/internal/models"
)

// Interval is a half-open [Start, End) range of fractional hours.
type Interval struct {
	Start float64
	End   float64
}

// Overlaps reports whether two half-open intervals intersect.
func Overlaps(a, b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}

// Source supplies the bookings of a field on a date, in creation order.
type Source interface {
	ActiveBookings(ctx context.Context, fieldCode string, date time.Time) ([]*models.Booking, error)
}

// Scan returns the bookings that block iv on fieldCode/date. Cancelled
// bookings and excludeID never block. Input order is preserved.
func Scan(bookings []*models.Booking, fieldCode string, date time.Time, iv Interval, excludeID int64) []*models.Booking {
	dateKey := date.Format(models.DateLayout)
	var out []*models.Booking
	for _, b := range bookings {
		if b.ID == excludeID && excludeID != 0 {
			continue
		}
		if !b.IsActive() || b.FieldCode != fieldCode || b.DateKey() != dateKey {
			continue
		}
		if Overlaps(iv, Interval{Start: b.StartTime, End: b.EndTime}) {
			out = append(out, b)
		}
	}
	return out
}

type Detector struct {
	source Source
}

func NewDetector(source Source) *Detector {
	return &Detector{source: source}
}

// FindConflicts returns every active booking intersecting [start, end).
func (d *Detector) FindConflicts(ctx context.Context, fieldCode string, date time.Time, start, end float64, excludeID int64) ([]*models.Booking, error) {
	bookings, err := d.source.ActiveBookings(ctx, fieldCode, date)
	if err != nil {
		return nil, fmt.Errorf("load active bookings: %w", err)
	}
	return Scan(bookings, fieldCode, date, Interval{Start: start, End: end}, excludeID), nil
}

// HasConflict reports whether any active booking intersects [start, end).
func (d *Detector) HasConflict(ctx context.Context, fieldCode string, date time.Time, start, end float64, excludeID int64) (bool, error) {
	conflicts, err := d.FindConflicts(ctx, fieldCode, date, start, end, excludeID)
	if err != nil {
		return false, err
	}
	return len(conflicts) > 0, nil
}

// Rejection builds the SLOT_TAKEN rejection for the first blocking booking.
// blocking may be nil when the store only knows that a conflict exists.
func Rejection(blocking *models.Booking) *domain.RejectionError {
	rej := &domain.RejectionError{
		Kind:    domain.KindConflict,
		Reason:  domain.ReasonSlotTaken,
		Message: "requested time overlaps an active booking",
	}
	if blocking != nil {
		rej.Message = fmt.Sprintf("requested time overlaps booking %s (%s-%s)",
			blocking.Reference, models.FormatHour(blocking.StartTime), models.FormatHour(blocking.EndTime))
		rej.Conflict = &domain.ConflictInfo{
			BookingID: blocking.ID,
			Reference: blocking.Reference,
			StartTime: blocking.StartTime,
			EndTime:   blocking.EndTime,
		}
	}
	return rej
}
