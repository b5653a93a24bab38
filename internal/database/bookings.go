package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"courtbook/internal/conflict"
	"courtbook/internal/domain"
	"courtbook/internal/models"
)

const bookingSelect = `SELECT b.id, b.ref_seq, b.reference, b.field_code, COALESCE(f.name, ''), b.requester_id,
	b.booking_date, b.start_time, b.end_time, b.participants, b.notes, b.state, b.payment_status,
	b.created_at, b.updated_at, b.version
	FROM bookings b LEFT JOIN fields f ON f.code = b.field_code`

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	var dateStr string
	err := row.Scan(
		&b.ID, &b.Sequence, &b.Reference, &b.FieldCode, &b.FieldName, &b.RequesterID,
		&dateStr, &b.StartTime, &b.EndTime, &b.Participants, &b.Notes, &b.State, &b.PaymentStatus,
		&b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	b.Date, err = time.Parse(models.DateLayout, dateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse booking date %s: %w", dateStr, err)
	}
	return &b, nil
}

func queryBookings(ctx context.Context, q queryer, query string, args ...any) ([]*models.Booking, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func activeBookings(ctx context.Context, q queryer, fieldCode string, date time.Time) ([]*models.Booking, error) {
	query := bookingSelect + ` WHERE b.field_code = ? AND b.booking_date = ? AND b.state <> ?
              ORDER BY b.created_at ASC, b.id ASC`
	bookings, err := queryBookings(ctx, q, query, fieldCode, date.Format(models.DateLayout), models.StateCancelled)
	if err != nil {
		return nil, fmt.Errorf("failed to get active bookings: %w", err)
	}
	return bookings, nil
}

// ActiveBookings returns non-cancelled bookings of a field on a date in
// creation order.
func (db *DB) ActiveBookings(ctx context.Context, fieldCode string, date time.Time) ([]*models.Booking, error) {
	return activeBookings(ctx, db, fieldCode, date)
}

// CreateBookingIfFree re-checks overlap and inserts the booking inside one
// write transaction. The overlap trigger backs the check at the storage level.
// A reference number already stored yields domain.ErrSequenceTaken.
func (db *DB) CreateBookingIfFree(ctx context.Context, booking *models.Booking) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := activeBookings(ctx, tx, booking.FieldCode, booking.Date)
		if err != nil {
			return err
		}
		iv := conflict.Interval{Start: booking.StartTime, End: booking.EndTime}
		if blocking := conflict.Scan(existing, booking.FieldCode, booking.Date, iv, 0); len(blocking) > 0 {
			return conflict.Rejection(blocking[0])
		}

		query := `INSERT INTO bookings (
                    ref_seq, reference, field_code, requester_id, booking_date, start_time, end_time,
                    participants, notes, state, payment_status, created_at, updated_at, version
                  ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		now := time.Now()
		result, err := tx.ExecContext(ctx, query,
			booking.Sequence,
			booking.Reference,
			booking.FieldCode,
			booking.RequesterID,
			booking.Date.Format(models.DateLayout),
			booking.StartTime,
			booking.EndTime,
			booking.Participants,
			booking.Notes,
			booking.State,
			booking.PaymentStatus,
			now,
			now,
			1,
		)
		if isOverlapAbort(err) {
			return conflict.Rejection(nil)
		}
		if isReferenceTaken(err) {
			return fmt.Errorf("%w: %v", domain.ErrSequenceTaken, err)
		}
		if err != nil {
			return fmt.Errorf("failed to insert booking in tx: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id in tx: %w", err)
		}
		booking.ID = id
		booking.CreatedAt = now
		booking.UpdatedAt = now
		booking.Version = 1
		return nil
	})
}

// UpdateBookingIfFree rewrites the field, slot, participants, notes and state
// of a booking after re-checking overlap against every other active booking.
func (db *DB) UpdateBookingIfFree(ctx context.Context, booking *models.Booking, fromVersion int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if booking.State != models.StateCancelled {
			existing, err := activeBookings(ctx, tx, booking.FieldCode, booking.Date)
			if err != nil {
				return err
			}
			iv := conflict.Interval{Start: booking.StartTime, End: booking.EndTime}
			if blocking := conflict.Scan(existing, booking.FieldCode, booking.Date, iv, booking.ID); len(blocking) > 0 {
				return conflict.Rejection(blocking[0])
			}
		}

		query := `UPDATE bookings SET field_code = ?, booking_date = ?, start_time = ?, end_time = ?,
                    participants = ?, notes = ?, state = ?, version = version + 1, updated_at = ?
                  WHERE id = ? AND version = ?`
		now := time.Now()
		result, err := tx.ExecContext(ctx, query,
			booking.FieldCode,
			booking.Date.Format(models.DateLayout),
			booking.StartTime,
			booking.EndTime,
			booking.Participants,
			booking.Notes,
			booking.State,
			now,
			booking.ID,
			fromVersion,
		)
		if isOverlapAbort(err) {
			return conflict.Rejection(nil)
		}
		if err != nil {
			return fmt.Errorf("failed to update booking: %w", err)
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return ErrConcurrentModification
		}
		booking.Version = fromVersion + 1
		booking.UpdatedAt = now
		return nil
	})
}

func (db *DB) UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, state string) error {
	query := `UPDATE bookings SET state = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query, state, time.Now(), id, fromVersion)
	if isOverlapAbort(err) {
		return conflict.Rejection(nil)
	}
	if err != nil {
		return fmt.Errorf("failed to update booking state: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func (db *DB) UpdatePaymentStatusWithVersion(ctx context.Context, id, fromVersion int64, status string) error {
	query := `UPDATE bookings SET payment_status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query, status, time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	b, err := scanBooking(db.QueryRowContext(ctx, bookingSelect+` WHERE b.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

func (db *DB) GetBookingByReference(ctx context.Context, reference string) (*models.Booking, error) {
	b, err := scanBooking(db.QueryRowContext(ctx, bookingSelect+` WHERE b.reference = ?`, reference))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking by reference: %w", err)
	}
	return b, nil
}

// GetBookingsByDateRange returns every booking, cancelled included, between
// two dates inclusive.
func (db *DB) GetBookingsByDateRange(ctx context.Context, startDate, endDate time.Time) ([]*models.Booking, error) {
	query := bookingSelect + ` WHERE b.booking_date >= ? AND b.booking_date <= ?
              ORDER BY b.booking_date ASC, b.start_time ASC`
	bookings, err := queryBookings(ctx, db, query, startDate.Format(models.DateLayout), endDate.Format(models.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings by date range: %w", err)
	}
	return bookings, nil
}

func (db *DB) CountBookingsByField(ctx context.Context, fieldCode string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE field_code = ?`, fieldCode).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

// MaxBookingSequence returns the highest reference number stored, or 0.
func (db *DB) MaxBookingSequence(ctx context.Context) (int64, error) {
	var last sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(ref_seq) FROM bookings`).Scan(&last); err != nil {
		return 0, fmt.Errorf("failed to get max booking sequence: %w", err)
	}
	return last.Int64, nil
}
