package conflict

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"courtbook/internal/domain"
	"courtbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	bookings []*models.Booking
	err      error
}

func (s *staticSource) ActiveBookings(_ context.Context, _ string, _ time.Time) ([]*models.Booking, error) {
	return s.bookings, s.err
}

var day = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func booking(id int64, start, end float64, state string) *models.Booking {
	return &models.Booking{ID: id, FieldCode: "Court-1", Date: day, StartTime: start, EndTime: end, State: state}
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		a, b Interval
		want bool
	}{
		{Interval{14, 15.5}, Interval{15, 16}, true},
		{Interval{14, 15.5}, Interval{15.5, 16}, false},
		{Interval{14, 15}, Interval{13, 14}, false},
		{Interval{14, 18}, Interval{15, 16}, true},
		{Interval{15, 16}, Interval{14, 18}, true},
		{Interval{14, 15}, Interval{14, 15}, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Overlaps(tt.a, tt.b), "%v vs %v", tt.a, tt.b)
		assert.Equal(t, tt.want, Overlaps(tt.b, tt.a), "symmetry %v vs %v", tt.b, tt.a)
	}
}

func TestScan(t *testing.T) {
	other := booking(4, 14, 16, models.StateDraft)
	other.FieldCode = "Court-2"
	nextDay := booking(5, 14, 16, models.StateDraft)
	nextDay.Date = day.AddDate(0, 0, 1)

	bookings := []*models.Booking{
		booking(1, 14, 15.5, models.StateConfirmed),
		booking(2, 15, 17, models.StateCancelled),
		booking(3, 15.5, 17, models.StateDraft),
		other,
		nextDay,
	}

	got := Scan(bookings, "Court-1", day, Interval{15, 16}, 0)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, int64(3), got[1].ID)

	got = Scan(bookings, "Court-1", day, Interval{15, 16}, 1)
	require.Len(t, got, 1)
	assert.Equal(t, int64(3), got[0].ID)

	assert.Empty(t, Scan(bookings, "Court-1", day, Interval{10, 14}, 0))
}

func TestDetector(t *testing.T) {
	src := &staticSource{bookings: []*models.Booking{booking(1, 14, 15.5, models.StateDraft)}}
	d := NewDetector(src)
	ctx := context.Background()

	has, err := d.HasConflict(ctx, "Court-1", day, 15, 16, 0)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = d.HasConflict(ctx, "Court-1", day, 15.5, 16.5, 0)
	require.NoError(t, err)
	assert.False(t, has)

	// a booking never conflicts with itself on re-validation
	has, err = d.HasConflict(ctx, "Court-1", day, 14, 15.5, 1)
	require.NoError(t, err)
	assert.False(t, has)

	src.err = errors.New("db down")
	_, err = d.FindConflicts(ctx, "Court-1", day, 15, 16, 0)
	assert.Error(t, err)
}

func TestScan_AdmittedSetNeverOverlaps(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	var admitted []*models.Booking

	for i := 1; i <= 500; i++ {
		start := float64(rng.Intn(40)) / 2
		end := start + float64(1+rng.Intn(7))/2
		if end > 24 {
			continue
		}
		if len(Scan(admitted, "Court-1", day, Interval{start, end}, 0)) == 0 {
			admitted = append(admitted, booking(int64(i), start, end, models.StateDraft))
		}
	}

	require.NotEmpty(t, admitted)
	for i, a := range admitted {
		for _, b := range admitted[i+1:] {
			assert.False(t, a.StartTime < b.EndTime && b.StartTime < a.EndTime,
				"bookings %d and %d overlap", a.ID, b.ID)
		}
	}
}

func TestRejection(t *testing.T) {
	b := booking(7, 14, 15.5, models.StateConfirmed)
	b.Reference = "BK/00007"

	rej := Rejection(b)
	assert.ErrorIs(t, rej, domain.ErrConflict)
	require.NotNil(t, rej.Conflict)
	assert.Equal(t, "BK/00007", rej.Conflict.Reference)
	assert.Contains(t, rej.Message, "14:00-15:30")

	assert.Nil(t, Rejection(nil).Conflict)
}
