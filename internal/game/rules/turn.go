package rules

import (
	"fmt"
	"strings"
	"sync"
)

// Phase represents the phases of a turn, in order.
type Phase int

const (
	PhaseRecovery Phase = iota
	PhaseTurnStart
	PhaseDraw
	PhaseMain
	PhaseTurnEnd
	PhaseCleanup
)

var phaseNames = map[Phase]string{
	PhaseRecovery:  "RECOVERY",
	PhaseTurnStart: "TURN_START",
	PhaseDraw:      "DRAW",
	PhaseMain:      "MAIN",
	PhaseTurnEnd:   "TURN_END",
	PhaseCleanup:   "CLEANUP",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE_%d", int(p))
}

// GrantsPriority reports whether players receive priority during this phase.
// Recovery and Cleanup are procedural: no player acts in them unless a
// trigger forces an extra priority round in Cleanup.
func (p Phase) GrantsPriority() bool {
	switch p {
	case PhaseRecovery, PhaseCleanup:
		return false
	default:
		return true
	}
}

var turnSequence = []Phase{
	PhaseRecovery,
	PhaseTurnStart,
	PhaseDraw,
	PhaseMain,
	PhaseTurnEnd,
	PhaseCleanup,
}

// TurnManager tracks active/priority player and turn progression. It is safe
// for concurrent use: the session goroutine advances it while view builders
// read it from transport goroutines.
type TurnManager struct {
	mu             sync.Mutex
	orderIndex     int
	turnNumber     int
	activePlayer   string
	priorityPlayer string
	cleanupRepeats int
}

// NewTurnManager creates a new turn manager initialized at turn 1, recovery
// phase, with the given player active.
func NewTurnManager(activePlayer string) *TurnManager {
	active := strings.TrimSpace(activePlayer)
	return &TurnManager{
		orderIndex:     0,
		turnNumber:     1,
		activePlayer:   active,
		priorityPlayer: active,
	}
}

// CurrentPhase returns the phase currently in progress.
func (tm *TurnManager) CurrentPhase() Phase {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return turnSequence[tm.orderIndex]
}

// TurnNumber returns the current turn number (1-based).
func (tm *TurnManager) TurnNumber() int {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.turnNumber
}

// ActivePlayer returns the player who currently has the turn.
func (tm *TurnManager) ActivePlayer() string {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.activePlayer
}

// PriorityPlayer returns the player who currently has priority.
func (tm *TurnManager) PriorityPlayer() string {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.priorityPlayer
}

// SetPriority sets the player who currently has priority.
func (tm *TurnManager) SetPriority(player string) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.priorityPlayer = strings.TrimSpace(player)
}

// RepeatCleanup requests one extra round of the cleanup phase. Used when a
// trigger fires during cleanup and must be resolved before the turn ends.
// Each trigger occurrence buys exactly one repeat.
func (tm *TurnManager) RepeatCleanup() {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if turnSequence[tm.orderIndex] == PhaseCleanup {
		tm.cleanupRepeats++
	}
}

// AdvancePhase advances to the next phase in the turn structure. When the
// end of the turn is reached the turn number is incremented and the active
// player rotates to nextActivePlayer if provided. A pending cleanup repeat
// keeps the turn in cleanup for one more round instead of advancing.
func (tm *TurnManager) AdvancePhase(nextActivePlayer string) Phase {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if turnSequence[tm.orderIndex] == PhaseCleanup && tm.cleanupRepeats > 0 {
		tm.cleanupRepeats--
		tm.priorityPlayer = tm.activePlayer
		return turnSequence[tm.orderIndex]
	}

	tm.orderIndex++
	if tm.orderIndex >= len(turnSequence) {
		tm.orderIndex = 0
		tm.turnNumber++
		tm.cleanupRepeats = 0
		if next := strings.TrimSpace(nextActivePlayer); next != "" {
			tm.activePlayer = next
		}
	}

	// Priority reverts to the active player at the start of a phase.
	tm.priorityPlayer = tm.activePlayer

	return turnSequence[tm.orderIndex]
}
