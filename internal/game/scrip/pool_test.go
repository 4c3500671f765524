package scrip

import (
	"testing"
)

func TestPoolAddAndGet(t *testing.T) {
	pool := NewPool()
	pool.Add(Corp1, 3)
	pool.Add(Corp1, 2)

	if pool.Get(Corp1) != 5 {
		t.Errorf("Expected 5 CORP1, got %d", pool.Get(Corp1))
	}
	if pool.Total() != 5 {
		t.Errorf("Expected total 5, got %d", pool.Total())
	}
}

func TestPoolSpendRefusesWhenShort(t *testing.T) {
	pool := NewPool()
	pool.Add(Corp2, 1)

	if pool.Spend(Corp2, 2) {
		t.Error("Expected spend to refuse")
	}
	if pool.Get(Corp2) != 1 {
		t.Errorf("Refused spend mutated pool, got %d", pool.Get(Corp2))
	}
	if !pool.Spend(Corp2, 1) {
		t.Error("Expected spend to succeed")
	}
	if !pool.Empty() {
		t.Error("Expected empty pool")
	}
}

func TestPoolCopyAndRestore(t *testing.T) {
	pool := NewPool()
	pool.Add(Corp3, 2)

	work := pool.Copy()
	work.Spend(Corp3, 2)
	work.Add(Corp4, 7)

	if pool.Get(Corp3) != 2 || pool.Get(Corp4) != 0 {
		t.Errorf("Copy aliases original: %v", pool.Snapshot())
	}

	pool.Restore(work)
	if pool.Get(Corp3) != 0 || pool.Get(Corp4) != 7 {
		t.Errorf("Restore did not take: %v", pool.Snapshot())
	}
}
