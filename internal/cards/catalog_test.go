package cards

import (
	"testing"

	"github.com/technomancy/server-go/internal/game/scrip"
)

const testCatalogYAML = `
cards:
  - name: Breach Protocol
    kind: quickhack
    cost:
      corp1: 1
    any: 1
    effect: damage
    num_targets: 1
    text: Deal 3 damage to a target.
  - name: Street Samurai
    kind: agent
    subkind: mercenary
    cost:
      corp2: 2
    power: 3
    health: 4
    level: 2
  - name: Corp Tower
    kind: building
    any: 3
    level: 3
    abilities:
      - name: Exchange Desk
        consumes:
          corp1: 1
        produces:
          corp2: 1
`

func TestParseCatalog(t *testing.T) {
	catalog, err := ParseCatalog([]byte(testCatalogYAML))
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	if catalog.Len() != 3 {
		t.Fatalf("expected 3 cards, got %d", catalog.Len())
	}

	def, ok := catalog.Lookup("Breach Protocol")
	if !ok {
		t.Fatal("expected Breach Protocol in catalog")
	}
	if def.Kind != KindQuickhack {
		t.Errorf("expected quickhack, got %s", def.Kind)
	}
	if def.Cost.Of(scrip.Corp1) != 1 || def.Cost.Any != 1 {
		t.Errorf("unexpected cost %s", def.Cost)
	}
	if def.NumTargets != 1 {
		t.Errorf("expected 1 target, got %d", def.NumTargets)
	}

	agent, _ := catalog.Lookup("Street Samurai")
	if agent.Power != 3 || agent.Health != 4 {
		t.Errorf("unexpected stats %d/%d", agent.Power, agent.Health)
	}
	if agent.Subkind != "mercenary" {
		t.Errorf("expected mercenary subkind, got %q", agent.Subkind)
	}
	if !agent.IsPersistent() {
		t.Error("agent should be persistent")
	}

	factions := agent.Factions()
	if len(factions) != 1 || factions[0] != scrip.Corp2 {
		t.Errorf("expected faction [CORP2], got %v", factions)
	}
}

func TestParseCatalogRejectsUnknownKind(t *testing.T) {
	_, err := ParseCatalog([]byte("cards:\n  - name: Bad\n    kind: sorcery\n"))
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestParseCatalogRejectsUnknownCurrency(t *testing.T) {
	_, err := ParseCatalog([]byte("cards:\n  - name: Bad\n    kind: program\n    cost:\n      gold: 1\n"))
	if err == nil {
		t.Fatal("expected error for unknown currency")
	}
}

func TestAbilityDefToScrip(t *testing.T) {
	catalog, err := ParseCatalog([]byte(testCatalogYAML))
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	tower, _ := catalog.Lookup("Corp Tower")
	if len(tower.Abilities) != 1 {
		t.Fatalf("expected 1 ability, got %d", len(tower.Abilities))
	}

	ability := tower.Abilities[0].ToScrip("instance-1")
	if ability.SourceID != "instance-1" {
		t.Errorf("expected source instance-1, got %s", ability.SourceID)
	}
	if ability.Consumes.Of(scrip.Corp1) != 1 {
		t.Errorf("unexpected consumes %s", ability.Consumes)
	}
	if ability.Produces[scrip.Corp2] != 1 {
		t.Errorf("unexpected produces %v", ability.Produces)
	}
}

func TestNewInstance(t *testing.T) {
	def := &Definition{Name: "Street Samurai", Kind: KindAgent, Health: 4}

	a := NewInstance(def, "Alice")
	b := NewInstance(def, "Alice")

	if a.ID == b.ID {
		t.Error("instances should get distinct IDs")
	}
	if a.Controller != "Alice" || a.OwnerID != "Alice" {
		t.Errorf("expected Alice as owner and controller, got %s/%s", a.OwnerID, a.Controller)
	}
	if a.Name() != "Street Samurai" || a.Kind() != KindAgent {
		t.Errorf("instance does not reflect definition")
	}
}
