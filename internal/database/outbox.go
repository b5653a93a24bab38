package database

import (
	"context"
	"fmt"
	"time"

	"courtbook/internal/models"
)

const outboxColumns = `id, event_type, booking_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at`

func (db *DB) CreateOutboxEvent(ctx context.Context, event *models.OutboxEvent) error {
	query := `INSERT INTO event_outbox (event_type, booking_id, payload, status, retry_count, last_error, created_at, next_retry_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if event.Status == "" {
		event.Status = models.OutboxPending
	}
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		event.EventType,
		event.BookingID,
		event.Payload,
		event.Status,
		event.RetryCount,
		event.LastError,
		now,
		event.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	event.ID = id
	event.CreatedAt = now
	return nil
}

// GetPendingOutboxEvents returns due events in insertion order.
func (db *DB) GetPendingOutboxEvents(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	query := `SELECT ` + outboxColumns + ` FROM event_outbox
              WHERE status IN (?, ?) AND (next_retry_at IS NULL OR next_retry_at <= ?)
              ORDER BY id ASC LIMIT ?`
	return db.queryOutbox(ctx, query, models.OutboxPending, models.OutboxRetry, time.Now(), limit)
}

func (db *DB) GetFailedOutboxEvents(ctx context.Context) ([]models.OutboxEvent, error) {
	query := `SELECT ` + outboxColumns + ` FROM event_outbox WHERE status = ? ORDER BY created_at DESC`
	return db.queryOutbox(ctx, query, models.OutboxFailed)
}

func (db *DB) queryOutbox(ctx context.Context, query string, args ...any) ([]models.OutboxEvent, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}
	defer rows.Close()

	var events []models.OutboxEvent
	for rows.Next() {
		var e models.OutboxEvent
		err := rows.Scan(
			&e.ID, &e.EventType, &e.BookingID, &e.Payload, &e.Status, &e.RetryCount,
			&e.LastError, &e.CreatedAt, &e.ProcessedAt, &e.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (db *DB) UpdateOutboxEventStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var query string
	var args []interface{}
	now := time.Now()

	switch status {
	case models.OutboxRetry:
		query = `UPDATE event_outbox SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, id}
	case models.OutboxCompleted, models.OutboxFailed:
		query = `UPDATE event_outbox SET status = ?, last_error = ?, next_retry_at = ?, processed_at = ? WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, &now, id}
	default:
		query = `UPDATE event_outbox SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, id}
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update outbox event status: %w", err)
	}
	return nil
}
