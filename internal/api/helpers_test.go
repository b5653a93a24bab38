package api

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"courtbook/internal/database"
	"courtbook/internal/models"
	"courtbook/internal/registry"
	"courtbook/internal/repository"
	"courtbook/internal/rules"
	"courtbook/internal/sequence"
	"courtbook/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// Bookings in these tests are made for 2026-03-10 with the clock at
// 2026-03-09 10:00 UTC.
const testDay = "2026-03-10"

var testNow = time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

type testCore struct {
	svc      *service.BookingService
	registry *registry.Registry
}

func newTestCore(t *testing.T) *testCore {
	t.Helper()
	logger := zerolog.New(io.Discard)

	db, err := database.NewDB(filepath.Join(t.TempDir(), "api.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	reg := registry.New(db, db, &logger)
	field := &models.Field{
		Code:        "Court-1",
		Name:        "Court 1",
		SportType:   models.SportFootball,
		SurfaceType: models.SurfaceSynthetic,
		Capacity:    10,
		HourlyRate:  20,
		OpeningTime: 7,
		ClosingTime: 22,
		IsActive:    true,
	}
	field.SetOpenDays([7]bool{true, true, true, true, true, true, true})
	require.NoError(t, reg.Sync(context.Background(), []*models.Field{field}))

	seq := sequence.New("BK", 5)
	seq.Init(0)

	svc := service.NewBookingService(db, reg, repository.NewMemorySlotLocker(time.Second), nil, seq,
		fixedClock{now: testNow}, service.Settings{Rules: rules.DefaultSettings(), Location: time.UTC}, &logger)
	return &testCore{svc: svc, registry: reg}
}
