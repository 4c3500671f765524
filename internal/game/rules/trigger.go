package rules

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Rule encapsulates the logic for reacting to a specific event and producing
// stack entries when its condition is satisfied. Rules never resolve inline:
// matches are queued and pushed onto the stack at the next priority window.
type Rule struct {
	ID         string
	SourceID   string
	Controller string
	EventType  EventType
	Condition  func(Event) bool
	Build      func(Event) StackEntry
	Once       bool

	seq uint64
}

// RuleManager stores registered rules and evaluates them against events in
// deterministic registration order.
type RuleManager struct {
	mu      sync.Mutex
	rules   []*Rule
	nextSeq uint64
}

// NewRuleManager creates an empty rule manager.
func NewRuleManager() *RuleManager {
	return &RuleManager{rules: make([]*Rule, 0, 16)}
}

// Register adds a new rule. Rules fire in registration order, so the caller
// controls global ordering by registering in the desired sequence.
func (rm *RuleManager) Register(rule Rule) string {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	rule.seq = rm.nextSeq
	rm.nextSeq++
	rm.rules = append(rm.rules, &rule)
	return rule.ID
}

// Unregister removes a rule by ID.
func (rm *RuleManager) Unregister(id string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	for i, rule := range rm.rules {
		if rule.ID == id {
			rm.rules = append(rm.rules[:i], rm.rules[i+1:]...)
			return
		}
	}
}

// UnregisterBySource removes all rules registered by a source card.
func (rm *RuleManager) UnregisterBySource(sourceID string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	kept := rm.rules[:0]
	for _, rule := range rm.rules {
		if rule.SourceID != sourceID {
			kept = append(kept, rule)
		}
	}
	rm.rules = kept
}

// match pairs a produced stack entry with the rule that produced it, so the
// queue can order by controller before pushing.
type match struct {
	entry      StackEntry
	controller string
	seq        uint64
}

// Handle evaluates the event against all registered rules, in registration
// order, and returns the matches produced. The entries are not pushed onto
// any stack here; the caller queues them for the next priority window.
func (rm *RuleManager) Handle(event Event) []StackEntry {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if len(rm.rules) == 0 {
		return nil
	}

	var (
		entries  []StackEntry
		toRemove []string
	)

	for _, rule := range rm.rules {
		if rule.EventType != event.Type {
			continue
		}
		if rule.Condition != nil && !rule.Condition(event) {
			continue
		}
		if rule.Build == nil {
			continue
		}

		entry := rule.Build(event)
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		if entry.Controller == "" {
			entry.Controller = rule.Controller
		}
		entries = append(entries, entry)

		if rule.Once {
			toRemove = append(toRemove, rule.ID)
		}
	}

	for _, id := range toRemove {
		for i, rule := range rm.rules {
			if rule.ID == id {
				rm.rules = append(rm.rules[:i], rm.rules[i+1:]...)
				break
			}
		}
	}

	return entries
}

// TriggerQueue collects pending triggered entries between priority windows.
// Drain orders them active player first, then remaining players in turn
// order, preserving arrival order within each player.
type TriggerQueue struct {
	mu      sync.Mutex
	pending []match
	nextSeq uint64
}

// NewTriggerQueue creates an empty trigger queue.
func NewTriggerQueue() *TriggerQueue {
	return &TriggerQueue{pending: make([]match, 0, 8)}
}

// Enqueue adds entries produced by rule evaluation.
func (tq *TriggerQueue) Enqueue(entries ...StackEntry) {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	for _, entry := range entries {
		tq.pending = append(tq.pending, match{
			entry:      entry,
			controller: entry.Controller,
			seq:        tq.nextSeq,
		})
		tq.nextSeq++
	}
}

// Len returns the number of queued entries.
func (tq *TriggerQueue) Len() int {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	return len(tq.pending)
}

// Drain empties the queue and returns the entries in push order: the active
// player's triggers first, then each remaining player in the given turn
// order, arrival order preserved within a player. turnOrder must start with
// the active player.
func (tq *TriggerQueue) Drain(turnOrder []string) []StackEntry {
	tq.mu.Lock()
	defer tq.mu.Unlock()

	if len(tq.pending) == 0 {
		return nil
	}

	rank := make(map[string]int, len(turnOrder))
	for i, player := range turnOrder {
		rank[player] = i
	}
	playerRank := func(player string) int {
		if r, ok := rank[player]; ok {
			return r
		}
		return len(turnOrder)
	}

	sort.SliceStable(tq.pending, func(i, j int) bool {
		ri, rj := playerRank(tq.pending[i].controller), playerRank(tq.pending[j].controller)
		if ri != rj {
			return ri < rj
		}
		return tq.pending[i].seq < tq.pending[j].seq
	})

	entries := make([]StackEntry, len(tq.pending))
	for i, m := range tq.pending {
		entries[i] = m.entry
	}
	tq.pending = tq.pending[:0]
	return entries
}
