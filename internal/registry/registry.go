// Package registry is the field catalog as seen by the scheduling core.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"courtbook/internal/domain"
	"courtbook/internal/models"

	"github.com/rs/zerolog"
)

// BookingCounter reports how many bookings reference a field.
type BookingCounter interface {
	CountBookingsByField(ctx context.Context, fieldCode string) (int, error)
}

// DefaultCacheTTL bounds how long Get serves a field without re-reading it.
const DefaultCacheTTL = 30 * time.Second

type cachedField struct {
	field    *models.Field
	loadedAt time.Time
}

// Registry keeps a read-through cache of the field store. Other processes
// (scripts/sync_fields.go) write the same store, so cached entries expire
// after ttl and admission reads through with Current.
type Registry struct {
	store   domain.FieldStore
	counter BookingCounter
	logger  zerolog.Logger
	ttl     time.Duration
	now     func() time.Time

	mu    sync.RWMutex
	cache map[string]cachedField
}

// Option configures a Registry.
type Option func(*Registry)

// WithCacheTTL sets the cache lifetime. A non-positive ttl disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(r *Registry) { r.ttl = ttl }
}

func New(store domain.FieldStore, counter BookingCounter, logger *zerolog.Logger, opts ...Option) *Registry {
	r := &Registry{
		store:   store,
		counter: counter,
		logger:  logger.With().Str("component", "registry").Logger(),
		ttl:     DefaultCacheTTL,
		now:     time.Now,
		cache:   make(map[string]cachedField),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns a copy of the field or a NOT_FOUND rejection. The copy may be
// up to ttl old.
func (r *Registry) Get(ctx context.Context, code string) (*models.Field, error) {
	r.mu.RLock()
	entry, ok := r.cache[code]
	r.mu.RUnlock()
	if ok && r.now().Sub(entry.loadedAt) < r.ttl {
		cp := *entry.field
		return &cp, nil
	}
	return r.Current(ctx, code)
}

// Current reads the field from the store and refreshes the cache.
func (r *Registry) Current(ctx context.Context, code string) (*models.Field, error) {
	f, err := r.store.GetField(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			r.invalidate(code)
			return nil, &domain.RejectionError{
				Kind:    domain.KindNotFound,
				Reason:  domain.ReasonFieldNotFound,
				Message: fmt.Sprintf("field %q not found", code),
			}
		}
		return nil, err
	}

	if r.ttl > 0 {
		r.mu.Lock()
		r.cache[code] = cachedField{field: f, loadedAt: r.now()}
		r.mu.Unlock()
	}

	cp := *f
	return &cp, nil
}

func (r *Registry) List(ctx context.Context, activeOnly bool) ([]*models.Field, error) {
	return r.store.ListFields(ctx, activeOnly)
}

// Upsert validates and stores a field. The code of an existing field is its
// identity and cannot be changed through this path.
func (r *Registry) Upsert(ctx context.Context, f *models.Field) error {
	if err := ValidateField(f); err != nil {
		return err
	}
	if err := r.store.UpsertField(ctx, f); err != nil {
		return err
	}
	r.invalidate(f.Code)
	r.logger.Info().Str("field", f.Code).Msg("Field saved")
	return nil
}

// Deactivate hides a field from new bookings. Existing bookings stay valid.
func (r *Registry) Deactivate(ctx context.Context, code string) error {
	if err := r.store.DeactivateField(ctx, code); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &domain.RejectionError{
				Kind:    domain.KindNotFound,
				Reason:  domain.ReasonFieldNotFound,
				Message: fmt.Sprintf("field %q not found", code),
			}
		}
		return err
	}
	r.invalidate(code)
	r.logger.Info().Str("field", code).Msg("Field deactivated")
	return nil
}

// Sync upserts a configured catalog. Every field is validated before any is
// written.
func (r *Registry) Sync(ctx context.Context, fields []*models.Field) error {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if err := ValidateField(f); err != nil {
			return err
		}
		if seen[f.Code] {
			return domain.Reject(domain.ReasonInvalidField, "duplicate field code %q", f.Code)
		}
		seen[f.Code] = true
	}
	for _, f := range fields {
		if err := r.store.UpsertField(ctx, f); err != nil {
			return fmt.Errorf("sync field %s: %w", f.Code, err)
		}
		r.invalidate(f.Code)
	}
	r.logger.Info().Int("count", len(fields)).Msg("Field catalog synced")
	return nil
}

// BookingCount returns the number of bookings ever made on a field.
func (r *Registry) BookingCount(ctx context.Context, code string) (int, error) {
	if _, err := r.Get(ctx, code); err != nil {
		return 0, err
	}
	return r.counter.CountBookingsByField(ctx, code)
}

func (r *Registry) invalidate(code string) {
	r.mu.Lock()
	delete(r.cache, code)
	r.mu.Unlock()
}

// IsOpenOn reports whether f opens on weekday (0=Monday..6=Sunday).
func IsOpenOn(f *models.Field, weekday int) bool {
	return f.IsOpenOn(weekday)
}

// OperatingWindow returns the opening and closing hour of f.
func OperatingWindow(f *models.Field) (float64, float64) {
	return f.OperatingWindow()
}

// ValidateField checks the static invariants of a field.
func ValidateField(f *models.Field) error {
	switch {
	case f == nil:
		return domain.Reject(domain.ReasonInvalidField, "field is required")
	case strings.TrimSpace(f.Code) == "":
		return domain.Reject(domain.ReasonInvalidField, "field code is required")
	case strings.TrimSpace(f.Name) == "":
		return domain.Reject(domain.ReasonInvalidField, "field %s: name is required", f.Code)
	case f.Capacity < models.MinCapacity:
		return domain.Reject(domain.ReasonInvalidField, "field %s: capacity must be at least %d", f.Code, models.MinCapacity)
	case f.HourlyRate <= 0:
		return domain.Reject(domain.ReasonInvalidField, "field %s: hourly rate must be positive", f.Code)
	case f.OpeningTime < 0 || f.OpeningTime >= 24:
		return domain.Reject(domain.ReasonInvalidField, "field %s: opening time must be in [0, 24)", f.Code)
	case f.ClosingTime < 0 || f.ClosingTime > 24:
		return domain.Reject(domain.ReasonInvalidField, "field %s: closing time must be in [0, 24]", f.Code)
	case f.ClosingTime <= f.OpeningTime:
		return domain.Reject(domain.ReasonInvalidField, "field %s: closing time must be after opening time", f.Code)
	}
	return nil
}
