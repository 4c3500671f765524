package cards

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DeckFile represents the top-level YAML structure of a deck list file.
type DeckFile struct {
	Decks []DeckEntry `yaml:"decks"`
}

// DeckEntry represents a single deck in the YAML file.
type DeckEntry struct {
	Name  string      `yaml:"name"`
	Cards []CardCount `yaml:"cards"`
}

// CardCount represents a card and its count in a deck.
type CardCount struct {
	Name  string `yaml:"name"`
	Count int    `yaml:"count"`
}

// Deck is a named, resolved card list.
type Deck struct {
	Name  string
	Cards []*Definition
}

// Level returns the sum of card levels across the deck. Modes cap the
// allowed level; exceeding it is a loss condition checked at setup.
func (d *Deck) Level() int {
	total := 0
	for _, def := range d.Cards {
		total += def.Level
	}
	return total
}

// Size returns the number of cards in the deck.
func (d *Deck) Size() int {
	return len(d.Cards)
}

// ParseDeckFile parses a YAML deck file against a catalog and returns the
// decks by name.
func ParseDeckFile(path string, catalog *Catalog) (map[string]*Deck, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseDecks(data, catalog)
}

// ParseDecks parses YAML deck bytes against a catalog.
func ParseDecks(data []byte, catalog *Catalog) (map[string]*Deck, error) {
	var df DeckFile
	if err := yaml.Unmarshal(data, &df); err != nil {
		return nil, fmt.Errorf("parse deck YAML: %w", err)
	}

	decks := make(map[string]*Deck, len(df.Decks))
	for _, entry := range df.Decks {
		deck := &Deck{Name: entry.Name}
		for _, cc := range entry.Cards {
			def, ok := catalog.Lookup(cc.Name)
			if !ok {
				return nil, fmt.Errorf("deck %q: unknown card %q", entry.Name, cc.Name)
			}
			for i := 0; i < cc.Count; i++ {
				deck.Cards = append(deck.Cards, def)
			}
		}
		decks[entry.Name] = deck
	}
	return decks, nil
}

// ValidateDeck checks a deck against the mode's size and level limits.
func ValidateDeck(deck *Deck, deckSize, maxLevel int) error {
	if deck.Size() != deckSize {
		return fmt.Errorf("deck %q: %d cards, mode requires %d", deck.Name, deck.Size(), deckSize)
	}
	if maxLevel > 0 && deck.Level() > maxLevel {
		return fmt.Errorf("deck %q: level %d exceeds mode maximum %d", deck.Name, deck.Level(), maxLevel)
	}
	return nil
}
