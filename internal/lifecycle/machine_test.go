package lifecycle

import (
	"testing"

	"courtbook/internal/domain"
	"courtbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext(t *testing.T) {
	tests := []struct {
		from, action, want string
		ok                 bool
	}{
		{models.StateDraft, ActionConfirm, models.StateConfirmed, true},
		{models.StateConfirmed, ActionStart, models.StateInProgress, true},
		{models.StateInProgress, ActionComplete, models.StateCompleted, true},
		{models.StateDraft, ActionCancel, models.StateCancelled, true},
		{models.StateConfirmed, ActionCancel, models.StateCancelled, true},
		{models.StateInProgress, ActionCancel, models.StateCancelled, true},
		{models.StateCancelled, ActionCancel, models.StateCancelled, true},
		{models.StateCancelled, ActionReopen, models.StateDraft, true},

		{models.StateConfirmed, ActionConfirm, "", false},
		{models.StateDraft, ActionStart, "", false},
		{models.StateConfirmed, ActionComplete, "", false},
		{models.StateDraft, ActionReopen, "", false},
		{models.StateDraft, "archive", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"_"+tt.action, func(t *testing.T) {
			got, err := Next(tt.from, tt.action)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				return
			}
			assert.ErrorIs(t, err, domain.ErrIllegalTransition)
			assert.Equal(t, tt.from, got)
		})
	}
}

func TestCompletedIsTerminal(t *testing.T) {
	for _, action := range Actions() {
		got, err := Next(models.StateCompleted, action)
		assert.ErrorIs(t, err, domain.ErrIllegalTransition, action)
		assert.Equal(t, models.StateCompleted, got)
	}
}

func TestRequiresAdmission(t *testing.T) {
	assert.True(t, RequiresAdmission(models.StateCancelled, models.StateDraft))
	assert.False(t, RequiresAdmission(models.StateCancelled, models.StateCancelled))
	assert.False(t, RequiresAdmission(models.StateDraft, models.StateConfirmed))
	assert.Equal(t, "Booking cancelled", Note(ActionCancel))
}
