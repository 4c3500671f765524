package scrip

import (
	"testing"
)

func TestCostTotal(t *testing.T) {
	c := NewCost(map[Kind]int{Corp1: 2, Corp3: 1}, 2)
	if c.Total() != 5 {
		t.Errorf("Expected total 5, got %d", c.Total())
	}
}

func TestCostIsFree(t *testing.T) {
	if !NewCost(nil, 0).IsFree() {
		t.Error("Expected empty cost to be free")
	}
	if NewCost(nil, 1).IsFree() {
		t.Error("Expected generic cost not to be free")
	}
}

func TestCostFactions(t *testing.T) {
	c := NewCost(map[Kind]int{Corp4: 1, Corp2: 3}, 5)
	factions := c.Factions()

	if len(factions) != 2 {
		t.Fatalf("Expected 2 factions, got %d", len(factions))
	}
	if factions[0] != Corp2 || factions[1] != Corp4 {
		t.Errorf("Expected canonical order [CORP2 CORP4], got %v", factions)
	}
}

func TestCostFactionsIgnoresGeneric(t *testing.T) {
	if got := NewCost(nil, 4).Factions(); len(got) != 0 {
		t.Errorf("Expected no factions for generic-only cost, got %v", got)
	}
}

func TestCostSubtractFloors(t *testing.T) {
	a := NewCost(map[Kind]int{Corp1: 1}, 2)
	b := NewCost(map[Kind]int{Corp1: 3}, 1)

	got := a.Subtract(b)
	if got.Of(Corp1) != 0 {
		t.Errorf("Expected CORP1 floored at 0, got %d", got.Of(Corp1))
	}
	if got.Any != 1 {
		t.Errorf("Expected 1 generic, got %d", got.Any)
	}
}

func TestCostCopyIsIndependent(t *testing.T) {
	a := NewCost(map[Kind]int{Corp5: 2}, 0)
	b := a.Copy()
	b.Amounts[Corp5] = 9

	if a.Of(Corp5) != 2 {
		t.Errorf("Copy aliases original, got %d", a.Of(Corp5))
	}
}

func TestCostString(t *testing.T) {
	if got := NewCost(nil, 0).String(); got != "free" {
		t.Errorf("Expected \"free\", got %q", got)
	}
	if got := NewCost(map[Kind]int{Corp1: 2}, 1).String(); got == "" {
		t.Error("Expected non-empty string")
	}
}
