package domain

import (
	"errors"
	"fmt"
)

// Kind is the top-level rejection category returned to callers.
type Kind string

const (
	KindValidation        Kind = "VALIDATION_REJECTED"
	KindConflict          Kind = "CONFLICT_REJECTED"
	KindIllegalTransition Kind = "ILLEGAL_TRANSITION"
	KindNotFound          Kind = "NOT_FOUND"
)

// Reason is the machine-readable sub-code of a rejection.
type Reason string

const (
	ReasonPastDatetime          Reason = "PAST_DATETIME"
	ReasonInsufficientLeadTime  Reason = "INSUFFICIENT_LEAD_TIME"
	ReasonInvalidTimeRange      Reason = "INVALID_TIME_RANGE"
	ReasonDurationOutOfBounds   Reason = "DURATION_OUT_OF_BOUNDS"
	ReasonDurationNotHalfHour   Reason = "DURATION_NOT_HALF_HOUR"
	ReasonResourceClosedWeekday Reason = "RESOURCE_CLOSED_WEEKDAY"
	ReasonOutsideOperatingHours Reason = "OUTSIDE_OPERATING_HOURS"
	ReasonCapacityExceeded      Reason = "CAPACITY_EXCEEDED"
	ReasonEmptyParticipants     Reason = "EMPTY_PARTICIPANTS"
	ReasonResourceInactive      Reason = "RESOURCE_INACTIVE"
	ReasonInvalidField          Reason = "INVALID_FIELD"
	ReasonInvalidPaymentStatus  Reason = "INVALID_PAYMENT_STATUS"
	ReasonSlotTaken             Reason = "SLOT_TAKEN"
	ReasonIllegalTransition     Reason = "ILLEGAL_TRANSITION"
	ReasonFieldNotFound         Reason = "FIELD_NOT_FOUND"
	ReasonBookingNotFound       Reason = "BOOKING_NOT_FOUND"
)

// ConflictInfo identifies the active booking that blocked a candidate.
type ConflictInfo struct {
	BookingID int64   `json:"booking_id"`
	Reference string  `json:"reference"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

// RejectionError is returned for every business rejection. It is never retried
// by the core.
type RejectionError struct {
	Kind     Kind
	Reason   Reason
	Message  string
	Conflict *ConflictInfo
}

func (e *RejectionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Reason, e.Message)
}

// Is matches sentinels by kind, and by reason when the target carries one.
func (e *RejectionError) Is(target error) bool {
	t, ok := target.(*RejectionError)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

var (
	ErrValidation        = &RejectionError{Kind: KindValidation}
	ErrConflict          = &RejectionError{Kind: KindConflict}
	ErrIllegalTransition = &RejectionError{Kind: KindIllegalTransition}
	ErrNotFound          = &RejectionError{Kind: KindNotFound}

	ErrFieldNotFound   = &RejectionError{Kind: KindNotFound, Reason: ReasonFieldNotFound, Message: "field not found"}
	ErrBookingNotFound = &RejectionError{Kind: KindNotFound, Reason: ReasonBookingNotFound, Message: "booking not found"}

	ErrConcurrentModification = errors.New("concurrent modification")
	// ErrSequenceTaken means another writer already stored the reference number.
	ErrSequenceTaken = errors.New("booking reference already taken")
)

// Reject builds a validation rejection.
func Reject(reason Reason, format string, args ...any) *RejectionError {
	return &RejectionError{Kind: KindValidation, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// AsRejection extracts a *RejectionError from err.
func AsRejection(err error) (*RejectionError, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
