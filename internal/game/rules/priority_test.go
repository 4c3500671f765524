package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityMachineTransitions(t *testing.T) {
	t.Run("normal phase cycle", func(t *testing.T) {
		pm := NewPriorityMachine(2)
		assert.Equal(t, StatePhaseEntry, pm.State())

		require.NoError(t, pm.Transition(StateBasedCheck))
		require.NoError(t, pm.Transition(StateAwaitingAction))
		require.NoError(t, pm.Transition(StateResolving))
		require.NoError(t, pm.Transition(StateBasedCheck))
		require.NoError(t, pm.Transition(StateAwaitingAction))
		require.NoError(t, pm.Transition(StatePhaseExit))
		require.NoError(t, pm.Transition(StatePhaseEntry))
	})

	t.Run("illegal transitions rejected", func(t *testing.T) {
		pm := NewPriorityMachine(2)

		err := pm.Transition(StateResolving)
		require.Error(t, err)
		assert.Equal(t, StatePhaseEntry, pm.State())

		require.NoError(t, pm.Transition(StateBasedCheck))
		err = pm.Transition(StatePhaseEntry)
		require.Error(t, err)
	})

	t.Run("suppressed phase skips straight to exit", func(t *testing.T) {
		pm := NewPriorityMachine(2)
		require.NoError(t, pm.Transition(StateBasedCheck))
		require.NoError(t, pm.Transition(StatePhaseExit))
	})
}

func TestPriorityMachinePassTracking(t *testing.T) {
	pm := NewPriorityMachine(2)

	assert.False(t, pm.RecordPass(), "one pass of two should not complete the round")
	assert.True(t, pm.RecordPass(), "second consecutive pass completes the round")

	pm.ResetPasses()
	assert.Equal(t, 0, pm.Passes())

	// An action in between resets the count.
	assert.False(t, pm.RecordPass())
	pm.RecordAction()
	assert.False(t, pm.RecordPass())
	assert.True(t, pm.RecordPass())
}
