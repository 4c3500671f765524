package game

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
	"sync"
	"time"
)

const journalFormatVersion = 1

// journalMetadata describes a saved journal file.
type journalMetadata struct {
	Version   int
	GameID    string
	CreatedAt time.Time
	AtomCount int
}

// Journal is the exportable form of a game's atom history. Replaying the
// atoms against a fresh store with the same seed reproduces the game.
type Journal struct {
	Metadata journalMetadata
	Seed     int64
	Atoms    []Atom
}

// SaveToFile writes the journal as gob compressed with gzip.
func (j *Journal) SaveToFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create journal file: %w", err)
	}
	defer f.Close()

	zw := gzip.NewWriter(f)
	defer zw.Close()

	j.Metadata.Version = journalFormatVersion
	j.Metadata.AtomCount = len(j.Atoms)
	if err := gob.NewEncoder(zw).Encode(j); err != nil {
		return fmt.Errorf("encode journal: %w", err)
	}
	return nil
}

// LoadJournalFromFile reads a journal written by SaveToFile.
func LoadJournalFromFile(path string) (*Journal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal file: %w", err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("read journal file: %w", err)
	}
	defer zr.Close()

	var j Journal
	if err := gob.NewDecoder(zr).Decode(&j); err != nil {
		return nil, fmt.Errorf("decode journal: %w", err)
	}
	if j.Metadata.Version != journalFormatVersion {
		return nil, fmt.Errorf("unsupported journal version %d", j.Metadata.Version)
	}
	return &j, nil
}

// JournalRecorder collects atoms during a session for later export.
type JournalRecorder struct {
	mu      sync.Mutex
	journal *Journal
}

// NewJournalRecorder creates a recorder for the given game.
func NewJournalRecorder(gameID string) *JournalRecorder {
	return &JournalRecorder{
		journal: &Journal{
			Metadata: journalMetadata{
				Version:   journalFormatVersion,
				GameID:    gameID,
				CreatedAt: time.Now(),
			},
		},
	}
}

// Record replaces the recorded history with the given atoms. The store's
// history is already cumulative, so the latest snapshot is complete.
func (r *JournalRecorder) Record(atoms []Atom) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.journal.Atoms = atoms
	r.journal.Metadata.AtomCount = len(atoms)
}

// SetSeed stores the rng seed needed to reproduce shuffles.
func (r *JournalRecorder) SetSeed(seed int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.journal.Seed = seed
}

// Snapshot returns the journal in its current state.
func (r *JournalRecorder) Snapshot() *Journal {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *r.journal
	copied.Atoms = append([]Atom(nil), r.journal.Atoms...)
	return &copied
}
