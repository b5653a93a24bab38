package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRejectionError_Is(t *testing.T) {
	err := Reject(ReasonCapacityExceeded, "capacity is %d", 10)

	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, &RejectionError{Kind: KindValidation, Reason: ReasonCapacityExceeded})
	assert.NotErrorIs(t, err, &RejectionError{Kind: KindValidation, Reason: ReasonEmptyParticipants})
	assert.NotErrorIs(t, err, ErrConflict)
	assert.Equal(t, "VALIDATION_REJECTED: CAPACITY_EXCEEDED: capacity is 10", err.Error())

	wrapped := fmt.Errorf("create booking: %w", err)
	rej, ok := AsRejection(wrapped)
	require.True(t, ok)
	assert.Equal(t, ReasonCapacityExceeded, rej.Reason)

	_, ok = AsRejection(errors.New("plain"))
	assert.False(t, ok)

	assert.ErrorIs(t, ErrBookingNotFound, ErrNotFound)
	assert.Equal(t, "ILLEGAL_TRANSITION: ILLEGAL_TRANSITION", (&RejectionError{Kind: KindIllegalTransition, Reason: ReasonIllegalTransition}).Error())
}
