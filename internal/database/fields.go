package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"courtbook/internal/domain"
	"courtbook/internal/models"
)

const fieldColumns = `code, name, sport_type, surface_type, description, capacity, hourly_rate,
	opening_time, closing_time, monday, tuesday, wednesday, thursday, friday, saturday, sunday,
	is_active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanField(row rowScanner) (*models.Field, error) {
	var f models.Field
	err := row.Scan(
		&f.Code, &f.Name, &f.SportType, &f.SurfaceType, &f.Description, &f.Capacity, &f.HourlyRate,
		&f.OpeningTime, &f.ClosingTime, &f.Monday, &f.Tuesday, &f.Wednesday, &f.Thursday,
		&f.Friday, &f.Saturday, &f.Sunday, &f.IsActive, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (db *DB) GetField(ctx context.Context, code string) (*models.Field, error) {
	query := `SELECT ` + fieldColumns + ` FROM fields WHERE code = ?`
	f, err := scanField(db.QueryRowContext(ctx, query, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrFieldNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get field: %w", err)
	}
	return f, nil
}

func (db *DB) ListFields(ctx context.Context, activeOnly bool) ([]*models.Field, error) {
	query := `SELECT ` + fieldColumns + ` FROM fields`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY code`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list fields: %w", err)
	}
	defer rows.Close()

	var fields []*models.Field
	for rows.Next() {
		f, err := scanField(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan field: %w", err)
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}

// UpsertField inserts a field or updates every attribute except its code.
func (db *DB) UpsertField(ctx context.Context, f *models.Field) error {
	query := `INSERT INTO fields (` + fieldColumns + `)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(code) DO UPDATE SET
                name = excluded.name,
                sport_type = excluded.sport_type,
                surface_type = excluded.surface_type,
                description = excluded.description,
                capacity = excluded.capacity,
                hourly_rate = excluded.hourly_rate,
                opening_time = excluded.opening_time,
                closing_time = excluded.closing_time,
                monday = excluded.monday,
                tuesday = excluded.tuesday,
                wednesday = excluded.wednesday,
                thursday = excluded.thursday,
                friday = excluded.friday,
                saturday = excluded.saturday,
                sunday = excluded.sunday,
                is_active = excluded.is_active,
                updated_at = excluded.updated_at`
	now := time.Now()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	f.UpdatedAt = now

	_, err := db.ExecContext(ctx, query,
		f.Code, f.Name, f.SportType, f.SurfaceType, f.Description, f.Capacity, f.HourlyRate,
		f.OpeningTime, f.ClosingTime, f.Monday, f.Tuesday, f.Wednesday, f.Thursday,
		f.Friday, f.Saturday, f.Sunday, f.IsActive, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert field: %w", err)
	}
	return nil
}

func (db *DB) DeactivateField(ctx context.Context, code string) error {
	query := `UPDATE fields SET is_active = 0, updated_at = ? WHERE code = ?`
	result, err := db.ExecContext(ctx, query, time.Now(), code)
	if err != nil {
		return fmt.Errorf("failed to deactivate field: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return domain.ErrFieldNotFound
	}
	return nil
}

// SyncFields upserts the configured catalog in one transaction.
func (db *DB) SyncFields(ctx context.Context, fields []*models.Field) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO fields (`+fieldColumns+`)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(code) DO UPDATE SET
                name = excluded.name, sport_type = excluded.sport_type,
                surface_type = excluded.surface_type, description = excluded.description,
                capacity = excluded.capacity, hourly_rate = excluded.hourly_rate,
                opening_time = excluded.opening_time, closing_time = excluded.closing_time,
                monday = excluded.monday, tuesday = excluded.tuesday, wednesday = excluded.wednesday,
                thursday = excluded.thursday, friday = excluded.friday, saturday = excluded.saturday,
                sunday = excluded.sunday, is_active = excluded.is_active, updated_at = excluded.updated_at`)
		if err != nil {
			return fmt.Errorf("failed to prepare field sync: %w", err)
		}
		defer stmt.Close()

		now := time.Now()
		for _, f := range fields {
			_, err := stmt.ExecContext(ctx,
				f.Code, f.Name, f.SportType, f.SurfaceType, f.Description, f.Capacity, f.HourlyRate,
				f.OpeningTime, f.ClosingTime, f.Monday, f.Tuesday, f.Wednesday, f.Thursday,
				f.Friday, f.Saturday, f.Sunday, f.IsActive, now, now,
			)
			if err != nil {
				return fmt.Errorf("failed to sync field %s: %w", f.Code, err)
			}
		}
		db.logger.Info().Int("count", len(fields)).Msg("Fields synced")
		return nil
	})
}
