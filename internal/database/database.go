package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"courtbook/internal/domain"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

var ErrConcurrentModification = domain.ErrConcurrentModification

// overlapAbort is the message raised by the overlap triggers.
const overlapAbort = "booking_overlap"

type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := path + "?_txlock=immediate&_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// каждое соединение к :memory: получает свою базу
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	d := &DB{DB: db, path: path, logger: logger}
	if err := d.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	if err := d.ensureBookingNotesColumn(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return d, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) createTables() error {
	queries := []string{
		// Таблица площадок
		`CREATE TABLE IF NOT EXISTS fields (
            code TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            sport_type TEXT NOT NULL,
            surface_type TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            capacity INTEGER NOT NULL CHECK (capacity >= 2),
            hourly_rate REAL NOT NULL CHECK (hourly_rate > 0),
            opening_time REAL NOT NULL,
            closing_time REAL NOT NULL,
            monday BOOLEAN NOT NULL DEFAULT 1,
            tuesday BOOLEAN NOT NULL DEFAULT 1,
            wednesday BOOLEAN NOT NULL DEFAULT 1,
            thursday BOOLEAN NOT NULL DEFAULT 1,
            friday BOOLEAN NOT NULL DEFAULT 1,
            saturday BOOLEAN NOT NULL DEFAULT 1,
            sunday BOOLEAN NOT NULL DEFAULT 1,
            is_active BOOLEAN NOT NULL DEFAULT 1,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            CHECK (opening_time >= 0 AND closing_time <= 24 AND opening_time < closing_time)
        )`,
		// Таблица бронирований
		`CREATE TABLE IF NOT EXISTS bookings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            ref_seq INTEGER NOT NULL UNIQUE,
            reference TEXT NOT NULL UNIQUE,
            field_code TEXT NOT NULL REFERENCES fields(code),
            requester_id TEXT NOT NULL,
            booking_date TEXT NOT NULL,
            start_time REAL NOT NULL,
            end_time REAL NOT NULL,
            participants INTEGER NOT NULL,
            state TEXT NOT NULL DEFAULT 'draft',
            payment_status TEXT NOT NULL DEFAULT 'pending',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            version INTEGER NOT NULL DEFAULT 1,
            CHECK (end_time > start_time)
        )`,
		// Очередь событий для брокера
		`CREATE TABLE IF NOT EXISTS event_outbox (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            event_type TEXT NOT NULL,
            booking_id INTEGER NOT NULL,
            payload TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME NOT NULL,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_field_date ON bookings(field_code, booking_date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_state ON bookings(state)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_status ON event_outbox(status, next_retry_at)`,

		// Ни одна пара активных бронирований одной площадки на одну дату не пересекается
		`CREATE TRIGGER IF NOT EXISTS trg_bookings_no_overlap_insert
            BEFORE INSERT ON bookings
            WHEN NEW.state <> 'cancelled' AND EXISTS (
                SELECT 1 FROM bookings b
                WHERE b.field_code = NEW.field_code
                  AND b.booking_date = NEW.booking_date
                  AND b.state <> 'cancelled'
                  AND b.start_time < NEW.end_time
                  AND NEW.start_time < b.end_time
            )
        BEGIN
            SELECT RAISE(ABORT, 'booking_overlap');
        END`,
		`CREATE TRIGGER IF NOT EXISTS trg_bookings_no_overlap_update
            BEFORE UPDATE OF field_code, booking_date, start_time, end_time, state ON bookings
            WHEN NEW.state <> 'cancelled' AND EXISTS (
                SELECT 1 FROM bookings b
                WHERE b.id <> NEW.id
                  AND b.field_code = NEW.field_code
                  AND b.booking_date = NEW.booking_date
                  AND b.state <> 'cancelled'
                  AND b.start_time < NEW.end_time
                  AND NEW.start_time < b.end_time
            )
        BEGIN
            SELECT RAISE(ABORT, 'booking_overlap');
        END`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// ensureBookingNotesColumn upgrades ledgers created before notes were stored.
func (db *DB) ensureBookingNotesColumn() error {
	_, err := db.Exec(`ALTER TABLE bookings ADD COLUMN notes TEXT NOT NULL DEFAULT ''`)
	if err != nil && !strings.Contains(err.Error(), "duplicate column name") {
		return fmt.Errorf("failed to add notes column: %w", err)
	}
	return nil
}

func isOverlapAbort(err error) bool {
	return err != nil && strings.Contains(err.Error(), overlapAbort)
}

// isReferenceTaken matches a UNIQUE violation on bookings.ref_seq or
// bookings.reference.
func isReferenceTaken(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.ExtendedCode != sqlite3.ErrConstraintUnique {
		return false
	}
	return strings.Contains(sqliteErr.Error(), "bookings.ref")
}

func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
