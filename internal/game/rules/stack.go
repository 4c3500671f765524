package rules

import (
	"errors"
	"sync"
)

// StackEntryKind describes the type of object on the stack.
type StackEntryKind string

const (
	// StackEntryKindCard represents a card being played.
	StackEntryKindCard StackEntryKind = "CARD"
	// StackEntryKindTriggered represents a queued triggered effect.
	StackEntryKindTriggered StackEntryKind = "TRIGGERED"
	// StackEntryKindAbility represents an activated ability.
	StackEntryKindAbility StackEntryKind = "ABILITY"
)

// StackEntry represents a single object on the stack. Targets and Modes are
// fixed when the entry is pushed and never re-chosen; an entry whose targets
// have all become invalid is removed without resolving.
type StackEntry struct {
	ID          string
	Controller  string
	Description string
	Kind        StackEntryKind
	SourceID    string
	CardID      string
	Targets     []string
	Modes       []string
	Metadata    map[string]string
	Resolve     func() error
	OnRemove    func()
}

// StackManager manages the game stack.
type StackManager struct {
	mu      sync.Mutex
	entries []StackEntry
}

// NewStackManager creates a new stack manager.
func NewStackManager() *StackManager {
	return &StackManager{
		entries: make([]StackEntry, 0, 16),
	}
}

// Push adds an entry to the top of the stack.
func (sm *StackManager) Push(entry StackEntry) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.entries = append(sm.entries, entry)
}

// Pop removes the top entry from the stack.
func (sm *StackManager) Pop() (StackEntry, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if len(sm.entries) == 0 {
		return StackEntry{}, errors.New("stack empty")
	}

	idx := len(sm.entries) - 1
	entry := sm.entries[idx]
	sm.entries = sm.entries[:idx]
	return entry, nil
}

// Remove deletes an entry from anywhere in the stack by ID.
func (sm *StackManager) Remove(id string) (StackEntry, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for idx := len(sm.entries) - 1; idx >= 0; idx-- {
		if sm.entries[idx].ID == id {
			entry := sm.entries[idx]
			sm.entries = append(sm.entries[:idx], sm.entries[idx+1:]...)
			return entry, true
		}
	}
	return StackEntry{}, false
}

// Peek returns the top entry without removing it.
func (sm *StackManager) Peek() (StackEntry, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if len(sm.entries) == 0 {
		return StackEntry{}, false
	}
	return sm.entries[len(sm.entries)-1], true
}

// List returns a copy of all stack entries (topmost last).
func (sm *StackManager) List() []StackEntry {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	cpy := make([]StackEntry, len(sm.entries))
	copy(cpy, sm.entries)
	return cpy
}

// IsEmpty returns whether the stack is empty.
func (sm *StackManager) IsEmpty() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.entries) == 0
}

// Size returns the number of entries on the stack.
func (sm *StackManager) Size() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.entries)
}

// RemoveIllegalEntries removes every entry the checker rejects, invoking each
// removed entry's OnRemove hook. Returns the IDs of removed entries.
func (sm *StackManager) RemoveIllegalEntries(checker *LegalityChecker) []string {
	if checker == nil {
		return nil
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()

	var removedIDs []string
	valid := make([]StackEntry, 0, len(sm.entries))

	for _, entry := range sm.entries {
		result := checker.CheckStackEntryLegality(entry)
		if !result.Legal {
			removedIDs = append(removedIDs, entry.ID)
			if entry.OnRemove != nil {
				entry.OnRemove()
			}
		} else {
			valid = append(valid, entry)
		}
	}

	sm.entries = valid
	return removedIDs
}
