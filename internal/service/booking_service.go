package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"courtbook/internal/conflict"
	"courtbook/internal/domain"
	"courtbook/internal/events"
	"courtbook/internal/lifecycle"
	"courtbook/internal/metrics"
	"courtbook/internal/models"
	"courtbook/internal/rules"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// maxAttempts bounds optimistic retries on concurrent row updates.
const maxAttempts = 3

// SystemActor is recorded when a change has no human author.
const SystemActor = "system"

// BookingRequest is an inbound request to occupy a slot.
type BookingRequest struct {
	FieldCode    string
	RequesterID  string
	Date         time.Time
	StartTime    float64
	EndTime      float64
	Participants int
	Notes        string
	Actor        string
}

// BookingChanges lists the attributes an edit may replace. Nil means keep.
type BookingChanges struct {
	FieldCode    *string
	Date         *time.Time
	StartTime    *float64
	EndTime      *float64
	Participants *int
	Notes        *string
}

func (c BookingChanges) affectsAdmission() bool {
	return c.FieldCode != nil || c.Date != nil || c.StartTime != nil || c.EndTime != nil || c.Participants != nil
}

type Settings struct {
	Rules    rules.Settings
	Location *time.Location
}

type BookingService struct {
	ledger   domain.Ledger
	fields   domain.FieldRegistry
	locker   domain.SlotLocker
	eventBus domain.EventPublisher
	seq      domain.Sequencer
	clock    domain.Clock
	pipeline *rules.Pipeline
	detector *conflict.Detector
	loc      *time.Location
	logger   zerolog.Logger
}

func NewBookingService(
	ledger domain.Ledger,
	fields domain.FieldRegistry,
	locker domain.SlotLocker,
	eventBus domain.EventPublisher,
	seq domain.Sequencer,
	clock domain.Clock,
	settings Settings,
	logger *zerolog.Logger,
) *BookingService {
	loc := settings.Location
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = domain.SystemClock{Location: loc}
	}
	return &BookingService{
		ledger:   ledger,
		fields:   fields,
		locker:   locker,
		eventBus: eventBus,
		seq:      seq,
		clock:    clock,
		pipeline: rules.NewPipeline(settings.Rules),
		detector: conflict.NewDetector(ledger),
		loc:      loc,
		logger:   logger.With().Str("component", "booking_service").Logger(),
	}
}

// Location is the timezone bookings are evaluated in.
func (s *BookingService) Location() *time.Location {
	return s.loc
}

// RequestBooking admits a new booking in draft state or returns the reason it
// was rejected. Rules, overlap check and insert run as one unit under the
// (field, date) lock.
func (s *BookingService) RequestBooking(ctx context.Context, req BookingRequest) (*models.Booking, error) {
	started := time.Now()
	booking, err := s.requestBooking(ctx, req)
	s.observeAdmission(err, started)
	if err != nil {
		s.logRejection(err, req.FieldCode, req.Date, "request")
		return nil, err
	}

	s.logger.Info().
		Int64("booking_id", booking.ID).
		Str("reference", booking.Reference).
		Str("field", booking.FieldCode).
		Str("date", booking.DateKey()).
		Msg("Booking admitted")
	s.publishEvent(events.EventBookingCreated, booking, "", actorOr(req.Actor, req.RequesterID),
		fmt.Sprintf("Booking %s created for %s on %s %s-%s", booking.Reference, booking.FieldCode,
			booking.DateKey(), models.FormatHour(booking.StartTime), models.FormatHour(booking.EndTime)))
	return booking, nil
}

func (s *BookingService) requestBooking(ctx context.Context, req BookingRequest) (*models.Booking, error) {
	field, err := s.activeField(ctx, req.FieldCode)
	if err != nil {
		return nil, err
	}

	booking := &models.Booking{
		FieldCode:     field.Code,
		FieldName:     field.Name,
		RequesterID:   req.RequesterID,
		Date:          s.localDate(req.Date),
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		Participants:  req.Participants,
		Notes:         req.Notes,
		State:         models.StateDraft,
		PaymentStatus: models.PaymentPending,
	}

	if err := s.pipeline.Evaluate(rules.CandidateFrom(booking), field, s.clock.Now()); err != nil {
		return nil, err
	}

	release, err := s.locker.Lock(ctx, domain.SlotKey(booking.FieldCode, booking.Date))
	if err != nil {
		return nil, fmt.Errorf("acquire slot lock: %w", err)
	}
	defer release()

	if err := s.checkOverlap(ctx, booking); err != nil {
		return nil, err
	}

	if err := s.insert(ctx, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

// insert numbers the booking and stores it. Another instance sharing the
// ledger may have used the number; the counter is then advanced past the
// stored maximum and the insert retried.
func (s *BookingService) insert(ctx context.Context, booking *models.Booking) error {
	for attempt := 1; ; attempt++ {
		var err error
		booking.Sequence, booking.Reference, err = s.seq.Next()
		if err != nil {
			return fmt.Errorf("next booking reference: %w", err)
		}

		err = s.ledger.CreateBookingIfFree(ctx, booking)
		if !errors.Is(err, domain.ErrSequenceTaken) || attempt >= maxAttempts {
			return err
		}

		last, err := s.ledger.MaxBookingSequence(ctx)
		if err != nil {
			return err
		}
		s.logger.Warn().Int64("sequence", booking.Sequence).Int64("stored", last).
			Msg("Booking reference taken by another writer, advancing counter")
		s.seq.Advance(last)
	}
}

// Transition applies a lifecycle action. Reopening re-runs admission under
// the slot lock; every other action only touches the booking row.
func (s *BookingService) Transition(ctx context.Context, id int64, action, actor string) (*models.Booking, error) {
	booking, from, err := s.transition(ctx, id, action)
	if err != nil {
		metrics.IncTransition(action, resultLabel(err))
		if rej, ok := domain.AsRejection(err); ok {
			s.logger.Info().Int64("booking_id", id).Str("action", action).
				Str("kind", string(rej.Kind)).Str("reason", string(rej.Reason)).Msg("Transition rejected")
		}
		return nil, err
	}
	metrics.IncTransition(action, "ok")

	s.publishEvent(transitionEvent(action), booking, from, actorOr(actor, SystemActor),
		fmt.Sprintf("%s: %s -> %s", lifecycle.Note(action), from, booking.State))
	return booking, nil
}

func (s *BookingService) transition(ctx context.Context, id int64, action string) (*models.Booking, string, error) {
	for attempt := 1; ; attempt++ {
		booking, err := s.ledger.GetBooking(ctx, id)
		if err != nil {
			return nil, "", err
		}
		from := booking.State

		to, err := lifecycle.Next(from, action)
		if err != nil {
			return nil, from, err
		}

		if lifecycle.RequiresAdmission(from, to) {
			err = s.readmit(ctx, booking, func(b *models.Booking) { b.State = to })
		} else {
			err = s.ledger.UpdateBookingStatusWithVersion(ctx, id, booking.Version, to)
			if err == nil {
				booking.State = to
				booking.Version++
			}
		}

		if errors.Is(err, domain.ErrConcurrentModification) && attempt < maxAttempts {
			continue
		}
		if err != nil {
			return nil, from, err
		}
		return booking, from, nil
	}
}

// UpdateBooking edits a draft, confirmed or in-progress booking. Changes to
// the slot or participants are re-admitted against the current ledger.
func (s *BookingService) UpdateBooking(ctx context.Context, id int64, changes BookingChanges, actor string) (*models.Booking, error) {
	for attempt := 1; ; attempt++ {
		booking, err := s.ledger.GetBooking(ctx, id)
		if err != nil {
			return nil, err
		}
		if booking.State == models.StateCompleted || booking.State == models.StateCancelled {
			return nil, &domain.RejectionError{
				Kind:    domain.KindIllegalTransition,
				Reason:  domain.ReasonIllegalTransition,
				Message: fmt.Sprintf("cannot edit a %s booking", booking.State),
			}
		}

		apply := func(b *models.Booking) {
			if changes.FieldCode != nil {
				b.FieldCode = *changes.FieldCode
			}
			if changes.Date != nil {
				b.Date = *changes.Date
			}
			if changes.StartTime != nil {
				b.StartTime = *changes.StartTime
			}
			if changes.EndTime != nil {
				b.EndTime = *changes.EndTime
			}
			if changes.Participants != nil {
				b.Participants = *changes.Participants
			}
			if changes.Notes != nil {
				b.Notes = *changes.Notes
			}
		}

		if changes.affectsAdmission() {
			started := time.Now()
			err = s.readmit(ctx, booking, apply)
			s.observeAdmission(err, started)
		} else {
			from := booking.Version
			apply(booking)
			err = s.ledger.UpdateBookingIfFree(ctx, booking, from)
		}

		if errors.Is(err, domain.ErrConcurrentModification) && attempt < maxAttempts {
			continue
		}
		if err != nil {
			s.logRejection(err, booking.FieldCode, booking.Date, "update")
			return nil, err
		}

		s.publishEvent(events.EventBookingUpdated, booking, booking.State, actorOr(actor, SystemActor),
			fmt.Sprintf("Booking %s updated: %s on %s %s-%s", booking.Reference, booking.FieldCode,
				booking.DateKey(), models.FormatHour(booking.StartTime), models.FormatHour(booking.EndTime)))
		return booking, nil
	}
}

// readmit applies mutate to booking and re-runs the rule set and overlap
// check for the resulting values before persisting them.
func (s *BookingService) readmit(ctx context.Context, booking *models.Booking, mutate func(*models.Booking)) error {
	fromVersion := booking.Version
	mutate(booking)
	booking.Date = s.localDate(booking.Date)

	field, err := s.activeField(ctx, booking.FieldCode)
	if err != nil {
		return err
	}
	booking.FieldName = field.Name

	if err := s.pipeline.Evaluate(rules.CandidateFrom(booking), field, s.clock.Now()); err != nil {
		return err
	}

	release, err := s.locker.Lock(ctx, domain.SlotKey(booking.FieldCode, booking.Date))
	if err != nil {
		return fmt.Errorf("acquire slot lock: %w", err)
	}
	defer release()

	if err := s.checkOverlap(ctx, booking); err != nil {
		return err
	}
	return s.ledger.UpdateBookingIfFree(ctx, booking, fromVersion)
}

// SetPaymentStatus moves the payment axis. It never affects the lifecycle
// state or slot occupancy.
func (s *BookingService) SetPaymentStatus(ctx context.Context, id int64, status, actor string) (*models.Booking, error) {
	if !models.IsValidPaymentStatus(status) {
		return nil, domain.Reject(domain.ReasonInvalidPaymentStatus, "unknown payment status %q", status)
	}

	for attempt := 1; ; attempt++ {
		booking, err := s.ledger.GetBooking(ctx, id)
		if err != nil {
			return nil, err
		}
		if booking.PaymentStatus == status {
			return booking, nil
		}
		previous := booking.PaymentStatus

		err = s.ledger.UpdatePaymentStatusWithVersion(ctx, id, booking.Version, status)
		if errors.Is(err, domain.ErrConcurrentModification) && attempt < maxAttempts {
			continue
		}
		if err != nil {
			return nil, err
		}

		booking.PaymentStatus = status
		booking.Version++
		s.publishEvent(events.EventBookingPaymentChanged, booking, booking.State, actorOr(actor, SystemActor),
			fmt.Sprintf("Payment status changed: %s -> %s", previous, status))
		return booking, nil
	}
}

// ListActive returns the non-cancelled bookings of a field on a date.
func (s *BookingService) ListActive(ctx context.Context, fieldCode string, date time.Time) ([]*models.Booking, error) {
	if _, err := s.fields.Get(ctx, fieldCode); err != nil {
		return nil, err
	}
	return s.ledger.ActiveBookings(ctx, fieldCode, s.localDate(date))
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return s.ledger.GetBooking(ctx, id)
}

func (s *BookingService) GetBookingByReference(ctx context.Context, reference string) (*models.Booking, error) {
	return s.ledger.GetBookingByReference(ctx, reference)
}

// TotalAmount is duration times the field's current hourly rate.
func (s *BookingService) TotalAmount(ctx context.Context, id int64) (decimal.Decimal, error) {
	booking, err := s.ledger.GetBooking(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	field, err := s.fields.Current(ctx, booking.FieldCode)
	if err != nil {
		return decimal.Zero, err
	}
	return Amount(booking.Duration(), field.HourlyRate), nil
}

// Amount computes hours × rate rounded to cents.
func Amount(hours, rate float64) decimal.Decimal {
	return decimal.NewFromFloat(hours).Mul(decimal.NewFromFloat(rate)).Round(2)
}

// CheckSlot returns the active bookings that would block [start, end) on the
// field and date. It takes no lock and is advisory only.
func (s *BookingService) CheckSlot(ctx context.Context, fieldCode string, date time.Time, start, end float64, excludeID int64) ([]*models.Booking, error) {
	if _, err := s.fields.Get(ctx, fieldCode); err != nil {
		return nil, err
	}
	return s.detector.FindConflicts(ctx, fieldCode, s.localDate(date), start, end, excludeID)
}

// activeField reads through the registry cache: activation, hours and rate can
// change from another process.
func (s *BookingService) activeField(ctx context.Context, code string) (*models.Field, error) {
	field, err := s.fields.Current(ctx, code)
	if err != nil {
		return nil, err
	}
	if !field.IsActive {
		return nil, domain.Reject(domain.ReasonResourceInactive, "field %s is not accepting bookings", code)
	}
	return field, nil
}

func (s *BookingService) checkOverlap(ctx context.Context, booking *models.Booking) error {
	conflicts, err := s.detector.FindConflicts(ctx, booking.FieldCode, booking.Date, booking.StartTime, booking.EndTime, booking.ID)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return conflict.Rejection(conflicts[0])
	}
	return nil
}

func (s *BookingService) localDate(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, s.loc)
}

func (s *BookingService) publishEvent(eventType string, b *models.Booking, from, actor, note string) {
	if s.eventBus == nil {
		return
	}
	payload := events.AuditEvent{
		BookingID:     b.ID,
		Reference:     b.Reference,
		FieldCode:     b.FieldCode,
		Date:          b.DateKey(),
		StartTime:     b.StartTime,
		EndTime:       b.EndTime,
		FromState:     from,
		ToState:       b.State,
		PaymentStatus: b.PaymentStatus,
		Actor:         actor,
		Timestamp:     s.clock.Now(),
		Note:          note,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("type", eventType).Int64("booking_id", b.ID).Msg("Failed to publish event")
	}
}

func (s *BookingService) observeAdmission(err error, started time.Time) {
	took := time.Since(started)
	if err == nil {
		metrics.ObserveAdmission("accepted", "", took)
		return
	}
	if rej, ok := domain.AsRejection(err); ok {
		metrics.ObserveAdmission("rejected", string(rej.Reason), took)
		return
	}
	metrics.ObserveAdmission("error", "", took)
}

func (s *BookingService) logRejection(err error, fieldCode string, date time.Time, op string) {
	rej, ok := domain.AsRejection(err)
	if !ok {
		s.logger.Error().Err(err).Str("op", op).Str("field", fieldCode).Msg("Booking operation failed")
		return
	}
	s.logger.Info().
		Str("op", op).
		Str("field", fieldCode).
		Str("date", date.Format(models.DateLayout)).
		Str("kind", string(rej.Kind)).
		Str("reason", string(rej.Reason)).
		Msg("Booking rejected")
}

func transitionEvent(action string) string {
	switch action {
	case lifecycle.ActionConfirm:
		return events.EventBookingConfirmed
	case lifecycle.ActionStart:
		return events.EventBookingStarted
	case lifecycle.ActionComplete:
		return events.EventBookingCompleted
	case lifecycle.ActionCancel:
		return events.EventBookingCancelled
	default:
		return events.EventBookingReopened
	}
}

func resultLabel(err error) string {
	if rej, ok := domain.AsRejection(err); ok {
		switch rej.Kind {
		case domain.KindIllegalTransition:
			return "illegal"
		case domain.KindNotFound:
			return "not_found"
		default:
			return "rejected"
		}
	}
	return "error"
}

func actorOr(actor, fallback string) string {
	if actor == "" {
		return fallback
	}
	return actor
}
