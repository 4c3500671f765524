package scrip

import (
	"sync"
)

// Pool represents a player's available scrip per currency kind.
type Pool struct {
	mu      sync.RWMutex
	amounts map[Kind]int
}

// NewPool creates a new empty pool.
func NewPool() *Pool {
	return &Pool{amounts: make(map[Kind]int)}
}

// Add credits scrip of one kind. Non-positive amounts are ignored.
func (p *Pool) Add(kind Kind, amount int) {
	if amount <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.amounts[kind] += amount
}

// Get returns the available amount of one kind.
func (p *Pool) Get(kind Kind) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.amounts[kind]
}

// Total returns the total scrip across all kinds.
func (p *Pool) Total() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	total := 0
	for _, amount := range p.amounts {
		total += amount
	}
	return total
}

// Spend debits scrip of one kind. Returns false without mutating if the
// pool holds less than the requested amount.
func (p *Pool) Spend(kind Kind, amount int) bool {
	if amount <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.amounts[kind] < amount {
		return false
	}
	p.amounts[kind] -= amount
	return true
}

// Empty discards all scrip in the pool.
func (p *Pool) Empty() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.amounts = make(map[Kind]int)
}

// Copy creates a deep copy of the pool.
func (p *Pool) Copy() *Pool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := NewPool()
	for kind, amount := range p.amounts {
		out.amounts[kind] = amount
	}
	return out
}

// Restore overwrites the pool's contents from a previously taken copy.
func (p *Pool) Restore(from *Pool) {
	snapshot := from.Copy()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.amounts = snapshot.amounts
}

// Snapshot returns the per-kind amounts for views and reports.
func (p *Pool) Snapshot() map[Kind]int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[Kind]int, len(p.amounts))
	for kind, amount := range p.amounts {
		out[kind] = amount
	}
	return out
}
