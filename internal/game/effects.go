package game

import (
	"fmt"
	"sync"

	"github.com/technomancy/server-go/internal/game/properties"
	"github.com/technomancy/server-go/internal/game/rules"
	"github.com/technomancy/server-go/internal/game/scrip"
)

// EffectFunc applies a resolving stack entry to the game. The entry's
// targets were fixed at play time; individual targets that have since become
// invalid are skipped without error.
type EffectFunc func(s *Session, entry rules.StackEntry) error

// EffectRegistry maps the effect tags found on card definitions to their
// implementations. Card data ships the tags; the engine ships the code.
type EffectRegistry struct {
	mu      sync.Mutex
	effects map[string]EffectFunc
}

// NewEffectRegistry creates an empty registry.
func NewEffectRegistry() *EffectRegistry {
	return &EffectRegistry{effects: make(map[string]EffectFunc)}
}

// Register binds an effect tag to its implementation, replacing any prior
// binding.
func (r *EffectRegistry) Register(name string, fn EffectFunc) {
	if name == "" || fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.effects[name] = fn
}

// Lookup returns the implementation for a tag.
func (r *EffectRegistry) Lookup(name string) (EffectFunc, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn, ok := r.effects[name]
	return fn, ok
}

// DefaultEffects returns a registry preloaded with the stock effects. The
// magnitude of each effect is the card's printed power.
func DefaultEffects() *EffectRegistry {
	r := NewEffectRegistry()
	r.Register("deal_damage", effectDealDamage)
	r.Register("draw_cards", effectDrawCards)
	r.Register("gain_health", effectGainHealth)
	r.Register("boost_power", effectBoostPower)
	r.Register("gain_scrip", effectGainScrip)
	return r
}

func effectMagnitude(s *Session, entry rules.StackEntry) int {
	inst, ok := s.store.Card(entry.CardID)
	if !ok {
		return 0
	}
	return inst.Definition.Power
}

// effectDealDamage deals the card's power to each still-valid target. Card
// targets accumulate damage markers; player targets lose health.
func effectDealDamage(s *Session, entry rules.StackEntry) error {
	amount := effectMagnitude(s, entry)
	if amount <= 0 {
		return nil
	}
	for _, target := range entry.Targets {
		if _, ok := s.store.Card(target); ok {
			zone, inPlay := s.store.CardZone(target)
			if !inPlay || zone.Kind != rules.ZoneField {
				continue
			}
			s.store.DamageCard(target, amount)
			s.publish(rules.NewEventWithAmount(rules.EventDamageDealt, target, entry.CardID, entry.Controller, amount))
			continue
		}
		if p, ok := s.store.PlayerSnapshot(target); ok && !p.Lost && !p.Left {
			s.store.ChangeHealth(target, -amount)
			evt := rules.NewEventWithAmount(rules.EventHealthChange, target, entry.CardID, entry.Controller, -amount)
			evt.PlayerID = target
			s.publish(evt)
		}
	}
	return nil
}

// effectDrawCards draws the card's power worth of cards for its controller.
func effectDrawCards(s *Session, entry rules.StackEntry) error {
	count := effectMagnitude(s, entry)
	for i := 0; i < count; i++ {
		if !s.drawCard(entry.Controller) {
			return nil
		}
	}
	return nil
}

// effectGainHealth restores health to the controller.
func effectGainHealth(s *Session, entry rules.StackEntry) error {
	amount := effectMagnitude(s, entry)
	if amount <= 0 {
		return nil
	}
	s.store.ChangeHealth(entry.Controller, amount)
	evt := rules.NewEventWithAmount(rules.EventHealthChange, entry.Controller, entry.CardID, entry.Controller, amount)
	evt.PlayerID = entry.Controller
	s.publish(evt)
	return nil
}

// effectBoostPower grants each targeted fielded card bonus power until end
// of turn.
func effectBoostPower(s *Session, entry rules.StackEntry) error {
	amount := effectMagnitude(s, entry)
	if amount == 0 {
		return nil
	}
	for _, target := range entry.Targets {
		zone, ok := s.store.CardZone(target)
		if !ok || zone.Kind != rules.ZoneField {
			continue
		}
		s.store.AddProperty(properties.Property{
			TargetID: target,
			Key:      "power",
			Layer:    properties.LayerPowerHealth,
			Op:       properties.OpAdd,
			Amount:   amount,
			Duration: properties.DurationEndOfTurn,
			SourceID: entry.CardID,
		})
		s.publish(rules.NewEventWithAmount(rules.EventPropertyChange, target, entry.CardID, entry.Controller, amount))
	}
	return nil
}

// effectGainScrip credits the controller with scrip of the card's first
// faction, or Corp1 for factionless cards.
func effectGainScrip(s *Session, entry rules.StackEntry) error {
	amount := effectMagnitude(s, entry)
	if amount <= 0 {
		return nil
	}
	inst, ok := s.store.Card(entry.CardID)
	if !ok {
		return fmt.Errorf("gain_scrip: source card %s is gone", entry.CardID)
	}
	kind := scrip.Corp1
	if factions := inst.Definition.Factions(); len(factions) > 0 {
		kind = factions[0]
	}
	s.store.AddScrip(entry.Controller, kind, amount)
	evt := rules.NewEventWithAmount(rules.EventScripAdded, entry.Controller, entry.CardID, entry.Controller, amount)
	evt.Data = string(kind)
	s.publish(evt)
	return nil
}
