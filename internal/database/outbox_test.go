package database

import (
	"context"
	"testing"
	"time"

	"courtbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxCRUD(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	event := &models.OutboxEvent{EventType: "booking_created", BookingID: 100, Payload: `{"test": true}`}
	require.NoError(t, db.CreateOutboxEvent(ctx, event))
	assert.Equal(t, models.OutboxPending, event.Status)

	events, err := db.GetPendingOutboxEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(100), events[0].BookingID)

	require.NoError(t, db.UpdateOutboxEventStatus(ctx, events[0].ID, models.OutboxCompleted, "", nil))
	events, err = db.GetPendingOutboxEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)

	errMsg := "broker down"
	require.NoError(t, db.CreateOutboxEvent(ctx, &models.OutboxEvent{
		EventType: "booking_cancelled", BookingID: 101, Payload: "{}", Status: models.OutboxFailed, LastError: &errMsg,
	}))
	failed, err := db.GetFailedOutboxEvents(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "broker down", *failed[0].LastError)
}

func TestOutboxRetry(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	event := &models.OutboxEvent{EventType: "booking_confirmed", BookingID: 102, Payload: "{}"}
	require.NoError(t, db.CreateOutboxEvent(ctx, event))

	nextRetry := time.Now().Add(time.Hour)
	require.NoError(t, db.UpdateOutboxEventStatus(ctx, event.ID, models.OutboxRetry, "temporary", &nextRetry))

	events, err := db.GetPendingOutboxEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events, "future retry is not due")

	pastRetry := time.Now().Add(-time.Hour)
	require.NoError(t, db.UpdateOutboxEventStatus(ctx, event.ID, models.OutboxRetry, "temporary", &pastRetry))

	events, err = db.GetPendingOutboxEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 2, events[0].RetryCount)
}

func TestOutboxOrder(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	for i := int64(1); i <= 3; i++ {
		require.NoError(t, db.CreateOutboxEvent(ctx, &models.OutboxEvent{EventType: "e", BookingID: i, Payload: "{}"}))
	}
	events, err := db.GetPendingOutboxEvents(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int64(1), events[0].BookingID)
	assert.Equal(t, int64(2), events[1].BookingID)
}
