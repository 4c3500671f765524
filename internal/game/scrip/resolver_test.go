package scrip

import (
	"errors"
	"testing"
)

func TestComputeAppliesAdditiveBeforeSubtractive(t *testing.T) {
	r := NewResolver()
	r.AddModifier(&Modifier{ID: "tax", Delta: NewCost(map[Kind]int{Corp1: 2}, 0)})
	r.AddModifier(&Modifier{ID: "discount", Delta: NewCost(map[Kind]int{Corp1: 1}, 1), Subtractive: true})

	base := NewCost(map[Kind]int{Corp1: 1}, 2)
	final := r.Compute("card-1", base)

	if got := final.Of(Corp1); got != 2 {
		t.Errorf("Expected 2 CORP1, got %d", got)
	}
	if final.Any != 1 {
		t.Errorf("Expected 1 generic, got %d", final.Any)
	}
}

func TestComputeFloorsAtZero(t *testing.T) {
	r := NewResolver()
	r.AddModifier(&Modifier{ID: "big-discount", Delta: NewCost(map[Kind]int{Corp2: 5}, 5), Subtractive: true})

	final := r.Compute("card-1", NewCost(map[Kind]int{Corp2: 2}, 1))

	if !final.IsFree() {
		t.Errorf("Expected free cost, got %s", final)
	}
}

func TestComputeAppliesToFilter(t *testing.T) {
	r := NewResolver()
	r.AddModifier(&Modifier{
		ID:        "targeted",
		Delta:     NewCost(nil, 3),
		AppliesTo: func(cardID string) bool { return cardID == "card-a" },
	})

	if got := r.Compute("card-a", NewCost(nil, 1)).Any; got != 4 {
		t.Errorf("Expected 4 generic for card-a, got %d", got)
	}
	if got := r.Compute("card-b", NewCost(nil, 1)).Any; got != 1 {
		t.Errorf("Expected 1 generic for card-b, got %d", got)
	}
}

func TestRemoveModifier(t *testing.T) {
	r := NewResolver()
	r.AddModifier(&Modifier{ID: "tax", Delta: NewCost(nil, 2)})
	r.RemoveModifier("tax")

	if got := r.Compute("card-1", NewCost(nil, 1)).Any; got != 1 {
		t.Errorf("Expected modifier removed, got %d generic", got)
	}
}

func TestPaySpendsExactKindsAndGeneric(t *testing.T) {
	r := NewResolver()
	pool := NewPool()
	pool.Add(Corp1, 2)
	pool.Add(Corp3, 2)

	err := r.Pay(pool, NewCost(map[Kind]int{Corp1: 1}, 2), nil)
	if err != nil {
		t.Fatalf("Expected payment to succeed, got %v", err)
	}
	if pool.Total() != 1 {
		t.Errorf("Expected 1 scrip remaining, got %d", pool.Total())
	}
}

func TestPayFailureLeavesPoolUnchanged(t *testing.T) {
	r := NewResolver()
	pool := NewPool()
	pool.Add(Corp1, 1)
	pool.Add(Corp2, 2)

	err := r.Pay(pool, NewCost(map[Kind]int{Corp1: 2}, 0), nil)
	if !errors.Is(err, ErrInsufficient) {
		t.Fatalf("Expected ErrInsufficient, got %v", err)
	}
	if pool.Get(Corp1) != 1 || pool.Get(Corp2) != 2 {
		t.Errorf("Pool changed on failed payment: %v", pool.Snapshot())
	}
}

func TestPayRunsActivationsBeforeCost(t *testing.T) {
	r := NewResolver()
	pool := NewPool()
	pool.Add(Corp1, 2)

	convert := &Ability{
		ID:       "convert",
		Consumes: NewCost(map[Kind]int{Corp1: 2}, 0),
		Produces: map[Kind]int{Corp4: 3},
	}

	err := r.Pay(pool, NewCost(map[Kind]int{Corp4: 3}, 0), []*Ability{convert})
	if err != nil {
		t.Fatalf("Expected payment via conversion to succeed, got %v", err)
	}
	if !pool.Empty() {
		t.Errorf("Expected empty pool, got %v", pool.Snapshot())
	}
}

func TestPayRollsBackActivationsOnFailure(t *testing.T) {
	r := NewResolver()
	pool := NewPool()
	pool.Add(Corp1, 2)

	convert := &Ability{
		ID:       "convert",
		Consumes: NewCost(map[Kind]int{Corp1: 2}, 0),
		Produces: map[Kind]int{Corp4: 1},
	}

	// Conversion funds 1 CORP4 but the cost wants 2; the whole attempt
	// must unwind, including the conversion itself.
	err := r.Pay(pool, NewCost(map[Kind]int{Corp4: 2}, 0), []*Ability{convert})
	if !errors.Is(err, ErrInsufficient) {
		t.Fatalf("Expected ErrInsufficient, got %v", err)
	}
	if pool.Get(Corp1) != 2 {
		t.Errorf("Expected activation rolled back, CORP1 = %d", pool.Get(Corp1))
	}
	if pool.Get(Corp4) != 0 {
		t.Errorf("Expected no CORP4 after rollback, got %d", pool.Get(Corp4))
	}
}

func TestPayUnfundedActivationFails(t *testing.T) {
	r := NewResolver()
	pool := NewPool()
	pool.Add(Corp2, 1)

	convert := &Ability{
		ID:       "convert",
		Consumes: NewCost(map[Kind]int{Corp2: 3}, 0),
		Produces: map[Kind]int{Corp5: 9},
	}

	err := r.Pay(pool, NewCost(nil, 0), []*Ability{convert})
	if !errors.Is(err, ErrInsufficient) {
		t.Fatalf("Expected ErrInsufficient, got %v", err)
	}
	if pool.Get(Corp2) != 1 {
		t.Errorf("Expected pool unchanged, CORP2 = %d", pool.Get(Corp2))
	}
}

func TestCanPayDoesNotMutate(t *testing.T) {
	r := NewResolver()
	pool := NewPool()
	pool.Add(Corp3, 2)

	if !r.CanPay(pool, NewCost(nil, 2), nil) {
		t.Error("Expected CanPay true")
	}
	if pool.Get(Corp3) != 2 {
		t.Errorf("CanPay mutated pool, CORP3 = %d", pool.Get(Corp3))
	}
	if r.CanPay(pool, NewCost(nil, 3), nil) {
		t.Error("Expected CanPay false for unaffordable cost")
	}
}
