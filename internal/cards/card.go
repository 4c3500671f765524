package cards

import (
	"strings"

	"github.com/google/uuid"

	"github.com/technomancy/server-go/internal/game/scrip"
)

// Kind classifies a card and determines its play timing.
type Kind string

const (
	// KindQuickhack may be played whenever its controller holds priority.
	KindQuickhack Kind = "QUICKHACK"
	// KindProgram is a one-shot effect, active player only, empty stack.
	KindProgram Kind = "PROGRAM"
	// KindAgent is a persistent unit with power and health.
	KindAgent Kind = "AGENT"
	// KindBuilding is a persistent structure, at most one per turn.
	KindBuilding Kind = "BUILDING"
)

// ParseKind converts a string into a Kind, case-insensitively.
func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToUpper(strings.TrimSpace(s))) {
	case KindQuickhack:
		return KindQuickhack, true
	case KindProgram:
		return KindProgram, true
	case KindAgent:
		return KindAgent, true
	case KindBuilding:
		return KindBuilding, true
	}
	return "", false
}

// AbilityDef describes an activated scrip ability printed on a card. The
// ability converts Consumes into Produces during cost payment.
type AbilityDef struct {
	Name     string         `yaml:"name"`
	Consumes map[string]int `yaml:"consumes"`
	Any      int            `yaml:"any"`
	Produces map[string]int `yaml:"produces"`
}

// ToScrip materializes the definition into a payable ability bound to the
// given source instance.
func (a AbilityDef) ToScrip(sourceID string) *scrip.Ability {
	consumes := make(map[scrip.Kind]int, len(a.Consumes))
	for name, amount := range a.Consumes {
		if kind, ok := scrip.ParseKind(name); ok {
			consumes[kind] = amount
		}
	}
	produces := make(map[scrip.Kind]int, len(a.Produces))
	for name, amount := range a.Produces {
		if kind, ok := scrip.ParseKind(name); ok {
			produces[kind] = amount
		}
	}
	return &scrip.Ability{
		ID:       uuid.NewString(),
		SourceID: sourceID,
		Consumes: scrip.NewCost(consumes, a.Any),
		Produces: produces,
	}
}

// Definition is the immutable printed face of a card. Instances reference a
// definition; in-game modifications go through the property layer, never
// through the definition.
type Definition struct {
	Name       string
	Kind       Kind
	Subkind    string
	Cost       scrip.Cost
	Power      int
	Health     int
	Level      int
	Text       string
	Effect     string
	NumTargets int
	Abilities  []AbilityDef
}

// Factions returns the corp currencies present in the printed cost.
func (d *Definition) Factions() []scrip.Kind {
	return d.Cost.Factions()
}

// IsPersistent reports whether the card stays on the field after resolving.
func (d *Definition) IsPersistent() bool {
	return d.Kind == KindAgent || d.Kind == KindBuilding
}

// Instance is a concrete copy of a card inside one game. Damage accumulates
// on agents between recovery phases; effective health is base health (after
// property resolution) minus damage.
type Instance struct {
	ID         string
	Definition *Definition
	OwnerID    string
	Controller string
	Damage     int
}

// NewInstance mints a fresh instance of a definition owned by a player.
func NewInstance(def *Definition, ownerID string) *Instance {
	return &Instance{
		ID:         uuid.NewString(),
		Definition: def,
		OwnerID:    ownerID,
		Controller: ownerID,
	}
}

// Name returns the printed name.
func (in *Instance) Name() string {
	return in.Definition.Name
}

// Kind returns the printed kind.
func (in *Instance) Kind() Kind {
	return in.Definition.Kind
}
