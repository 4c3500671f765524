package scrip

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInsufficient is returned when a cost cannot be paid from the pool. The
// payment is all-or-nothing: on this error the pool is unchanged.
var ErrInsufficient = errors.New("insufficient scrip")

// Modifier adjusts the computed cost of playing a card. Additive modifiers
// apply before subtractive ones; subtraction floors at zero per currency.
type Modifier struct {
	ID          string
	Delta       Cost
	Subtractive bool
	AppliesTo   func(cardID string) bool
}

// Ability is an activated scrip ability: a resource conversion the player may
// choose to run while paying a cost. Consumes is debited before Produces is
// credited.
type Ability struct {
	ID       string
	SourceID string
	Consumes Cost
	Produces map[Kind]int
}

// Resolver computes final costs and performs atomic payment.
type Resolver struct {
	mu        sync.Mutex
	modifiers []*Modifier
}

// NewResolver creates a resolver with no modifiers registered.
func NewResolver() *Resolver {
	return &Resolver{modifiers: make([]*Modifier, 0)}
}

// AddModifier registers a cost modifier.
func (r *Resolver) AddModifier(m *Modifier) {
	if m == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modifiers = append(r.modifiers, m)
}

// RemoveModifier removes a modifier by ID.
func (r *Resolver) RemoveModifier(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, m := range r.modifiers {
		if m.ID == id {
			r.modifiers = append(r.modifiers[:i], r.modifiers[i+1:]...)
			return
		}
	}
}

// Compute returns the final cost of playing a card: base cost, then all
// applicable additive modifiers, then all applicable subtractive modifiers
// floored at zero per currency.
func (r *Resolver) Compute(cardID string, base Cost) Cost {
	r.mu.Lock()
	defer r.mu.Unlock()

	final := base.Copy()
	for _, m := range r.modifiers {
		if m.Subtractive {
			continue
		}
		if m.AppliesTo == nil || m.AppliesTo(cardID) {
			final = final.Add(m.Delta)
		}
	}
	for _, m := range r.modifiers {
		if !m.Subtractive {
			continue
		}
		if m.AppliesTo == nil || m.AppliesTo(cardID) {
			final = final.Subtract(m.Delta)
		}
	}
	return final
}

// Pay settles a cost from the player's pool, running the chosen scrip
// abilities first. The whole attempt is atomic: if any activation cannot be
// funded or the final cost cannot be covered, ErrInsufficient is returned and
// the pool is left exactly as it was, including any speculative activations.
func (r *Resolver) Pay(pool *Pool, cost Cost, activations []*Ability) error {
	if pool == nil {
		return fmt.Errorf("pay: nil pool")
	}

	// Simulate on a copy; the live pool is only touched on success.
	work := pool.Copy()

	for _, ability := range activations {
		if ability == nil {
			continue
		}
		if err := settle(work, ability.Consumes); err != nil {
			return fmt.Errorf("activating %s: %w", ability.ID, err)
		}
		for kind, amount := range ability.Produces {
			work.Add(kind, amount)
		}
	}

	if err := settle(work, cost); err != nil {
		return err
	}

	pool.Restore(work)
	return nil
}

// settle debits a cost from the working pool: exact kinds first, then the
// Any component drawn from remaining kinds in canonical order.
func settle(work *Pool, cost Cost) error {
	for _, kind := range Kinds {
		need := cost.Of(kind)
		if need == 0 {
			continue
		}
		if !work.Spend(kind, need) {
			return fmt.Errorf("%w: need %d %s, have %d", ErrInsufficient, need, kind, work.Get(kind))
		}
	}

	remaining := cost.Any
	for _, kind := range Kinds {
		if remaining == 0 {
			break
		}
		take := work.Get(kind)
		if take > remaining {
			take = remaining
		}
		if take > 0 {
			work.Spend(kind, take)
			remaining -= take
		}
	}
	if remaining > 0 {
		return fmt.Errorf("%w: %d generic scrip unpaid", ErrInsufficient, remaining)
	}
	return nil
}

// CanPay reports whether the cost could be paid right now with the given
// activations, without mutating the pool.
func (r *Resolver) CanPay(pool *Pool, cost Cost, activations []*Ability) bool {
	return r.Pay(pool.Copy(), cost, activations) == nil
}
