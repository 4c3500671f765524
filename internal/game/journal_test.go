package game

import (
	"path/filepath"
	"testing"

	"github.com/technomancy/server-go/internal/game/rules"
)

func TestJournalRoundTrip(t *testing.T) {
	store := NewStore(123)
	store.AddPlayer("alice", "Alice", 20)
	store.AddPlayer("bob", "Bob", 20)
	store.ChangeHealth("bob", -3)
	store.RecordPhase(1, rules.PhaseMain)

	rec := NewJournalRecorder("journal-game")
	rec.SetSeed(123)
	rec.Record(store.History())

	path := filepath.Join(t.TempDir(), "game.journal")
	if err := rec.Snapshot().SaveToFile(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := LoadJournalFromFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Metadata.GameID != "journal-game" {
		t.Errorf("game ID = %q", loaded.Metadata.GameID)
	}
	if loaded.Seed != 123 {
		t.Errorf("seed = %d", loaded.Seed)
	}
	if len(loaded.Atoms) != store.HistoryLen() {
		t.Fatalf("atom count = %d, want %d", len(loaded.Atoms), store.HistoryLen())
	}
	for i, atom := range loaded.Atoms {
		if atom.Kind != store.History()[i].Kind {
			t.Fatalf("atom %d kind = %q, want %q", i, atom.Kind, store.History()[i].Kind)
		}
	}
}

func TestLoadJournalMissingFile(t *testing.T) {
	if _, err := LoadJournalFromFile(filepath.Join(t.TempDir(), "absent.journal")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
