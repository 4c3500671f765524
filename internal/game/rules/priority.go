package rules

import (
	"fmt"
	"sync"
)

// PriorityState identifies where the engine is inside a phase.
type PriorityState string

const (
	// StatePhaseEntry runs phase entry actions before anyone may act.
	StatePhaseEntry PriorityState = "PHASE_ENTRY"
	// StateBasedCheck runs the state-based effect loop to a fixpoint.
	StateBasedCheck PriorityState = "STATE_BASED_CHECK"
	// StateAwaitingAction waits on the priority player's decision.
	StateAwaitingAction PriorityState = "AWAITING_ACTION"
	// StateResolving resolves the top item of the stack.
	StateResolving PriorityState = "RESOLVING"
	// StatePhaseExit runs phase exit actions; no further priority this phase.
	StatePhaseExit PriorityState = "PHASE_EXIT"
)

var priorityTransitions = map[PriorityState][]PriorityState{
	StatePhaseEntry:     {StateBasedCheck, StatePhaseExit},
	StateBasedCheck:     {StateAwaitingAction, StatePhaseExit},
	StateAwaitingAction: {StateBasedCheck, StateResolving, StatePhaseExit},
	StateResolving:      {StateBasedCheck},
	StatePhaseExit:      {StatePhaseEntry},
}

// PriorityMachine tracks the in-phase state and consecutive priority passes.
// An action by any player resets the pass count; when every player has
// passed in succession the phase proposal fires (resolve the top of the
// stack, or exit the phase when the stack is empty).
type PriorityMachine struct {
	mu          sync.Mutex
	state       PriorityState
	playerCount int
	passes      int
}

// NewPriorityMachine creates a machine starting at phase entry.
func NewPriorityMachine(playerCount int) *PriorityMachine {
	return &PriorityMachine{
		state:       StatePhaseEntry,
		playerCount: playerCount,
	}
}

// State returns the current state.
func (pm *PriorityMachine) State() PriorityState {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.state
}

// Transition moves to the next state, validating it against the allowed
// transitions for the current state.
func (pm *PriorityMachine) Transition(next PriorityState) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	for _, allowed := range priorityTransitions[pm.state] {
		if allowed == next {
			pm.state = next
			return nil
		}
	}
	return fmt.Errorf("illegal transition %s -> %s", pm.state, next)
}

// RecordPass notes that the priority player passed. It returns true when
// every player has now passed consecutively.
func (pm *PriorityMachine) RecordPass() bool {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.passes++
	return pm.passes >= pm.playerCount
}

// RecordAction notes that the priority player took an action, resetting the
// consecutive pass count.
func (pm *PriorityMachine) RecordAction() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.passes = 0
}

// ResetPasses clears the pass count, used after a stack item resolves.
func (pm *PriorityMachine) ResetPasses() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.passes = 0
}

// Passes returns the current consecutive pass count.
func (pm *PriorityMachine) Passes() int {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.passes
}
