package cards

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/technomancy/server-go/internal/game/scrip"
)

// CatalogFile is the top-level YAML structure of a card catalog.
type CatalogFile struct {
	Cards []CatalogEntry `yaml:"cards"`
}

// CatalogEntry is one card in the catalog YAML.
type CatalogEntry struct {
	Name       string         `yaml:"name"`
	Kind       string         `yaml:"kind"`
	Subkind    string         `yaml:"subkind"`
	Cost       map[string]int `yaml:"cost"`
	Any        int            `yaml:"any"`
	Power      int            `yaml:"power"`
	Health     int            `yaml:"health"`
	Level      int            `yaml:"level"`
	Text       string         `yaml:"text"`
	Effect     string         `yaml:"effect"`
	NumTargets int            `yaml:"num_targets"`
	Abilities  []AbilityDef   `yaml:"abilities"`
}

// Catalog maps card names to their definitions.
type Catalog struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{defs: make(map[string]*Definition)}
}

// Register adds a definition, replacing any previous card of the same name.
func (c *Catalog) Register(def *Definition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defs[def.Name] = def
}

// Lookup returns the definition for a card name.
func (c *Catalog) Lookup(name string) (*Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.defs[name]
	return def, ok
}

// Names returns all registered card names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.defs))
	for name := range c.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered cards.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.defs)
}

// LoadCatalog parses a YAML card catalog file into a Catalog.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCatalog(data)
}

// ParseCatalog parses YAML catalog bytes.
func ParseCatalog(data []byte) (*Catalog, error) {
	var cf CatalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse catalog YAML: %w", err)
	}

	catalog := NewCatalog()
	for _, entry := range cf.Cards {
		def, err := entry.toDefinition()
		if err != nil {
			return nil, err
		}
		catalog.Register(def)
	}
	return catalog, nil
}

func (e CatalogEntry) toDefinition() (*Definition, error) {
	kind, ok := ParseKind(e.Kind)
	if !ok {
		return nil, fmt.Errorf("card %q: unknown kind %q", e.Name, e.Kind)
	}

	amounts := make(map[scrip.Kind]int, len(e.Cost))
	for name, amount := range e.Cost {
		sk, ok := scrip.ParseKind(name)
		if !ok {
			return nil, fmt.Errorf("card %q: unknown currency %q", e.Name, name)
		}
		amounts[sk] = amount
	}

	return &Definition{
		Name:       e.Name,
		Kind:       kind,
		Subkind:    e.Subkind,
		Cost:       scrip.NewCost(amounts, e.Any),
		Power:      e.Power,
		Health:     e.Health,
		Level:      e.Level,
		Text:       e.Text,
		Effect:     e.Effect,
		NumTargets: e.NumTargets,
		Abilities:  e.Abilities,
	}, nil
}
