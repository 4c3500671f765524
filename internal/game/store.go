package game

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/technomancy/server-go/internal/cards"
	"github.com/technomancy/server-go/internal/game/properties"
	"github.com/technomancy/server-go/internal/game/rules"
	"github.com/technomancy/server-go/internal/game/scrip"
)

// Zone locates an ordered card list. Deck, hand and discard are per player;
// the field and the stack are shared.
type Zone struct {
	Kind   int
	Player string
}

func (z Zone) String() string {
	names := map[int]string{
		rules.ZoneDeck:    "deck",
		rules.ZoneHand:    "hand",
		rules.ZoneField:   "field",
		rules.ZoneDiscard: "discard",
		rules.ZoneStack:   "stack",
	}
	name := names[z.Kind]
	if z.Player != "" {
		return name + ":" + z.Player
	}
	return name
}

// Atom is one recorded state mutation. Every change to the store goes
// through an atom; the history is the authoritative record of the game and
// replays deterministically.
type Atom struct {
	Seq       uint64
	Kind      string
	PlayerID  string
	CardID    string
	From      Zone
	To        Zone
	Amount    int
	Currency  string
	Key       string
	Value     string
	Timestamp time.Time
}

// Atom kinds.
const (
	AtomSetup        = "SETUP"
	AtomShuffle      = "SHUFFLE"
	AtomMoveCard     = "MOVE_CARD"
	AtomHealthChange = "HEALTH_CHANGE"
	AtomDamage       = "DAMAGE"
	AtomClearDamage  = "CLEAR_DAMAGE"
	AtomScripChange  = "SCRIP_CHANGE"
	AtomProperty     = "PROPERTY"
	AtomPhaseChange  = "PHASE_CHANGE"
	AtomStateChange  = "STATE_CHANGE"
	AtomKeep         = "KEEP_DECISION"
	AtomResult       = "RESULT"
)

// Player is the store's record of one participant.
type Player struct {
	PlayerID      string
	Name          string
	Health        int
	Pool          *scrip.Pool
	MulliganCount int
	KeptHand      bool
	Lost          bool
	Won           bool
	Left          bool
	Conceded      bool
}

// Store owns all mutable game state: players, card instances, zone order,
// scrip pools and the property resolver. Mutations append atoms to the
// history. The session serializes access; the mutex guards the few reads
// that arrive from other goroutines (views).
type Store struct {
	mu          sync.RWMutex
	players     map[string]*Player
	playerOrder []string
	cards       map[string]*cards.Instance
	zones       map[Zone][]string
	props       *properties.Resolver
	rng         *rand.Rand
	history     []Atom
	nextSeq     uint64
}

// NewStore creates an empty store with a deterministic rng seed.
func NewStore(seed int64) *Store {
	return &Store{
		players: make(map[string]*Player),
		cards:   make(map[string]*cards.Instance),
		zones:   make(map[Zone][]string),
		props:   properties.NewResolver(),
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// Properties exposes the property resolver.
func (s *Store) Properties() *properties.Resolver {
	return s.props
}

func (s *Store) record(atom Atom) {
	atom.Seq = s.nextSeq
	atom.Timestamp = time.Now()
	s.nextSeq++
	s.history = append(s.history, atom)
}

// History returns a copy of the atom history.
func (s *Store) History() []Atom {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cpy := make([]Atom, len(s.history))
	copy(cpy, s.history)
	return cpy
}

// HistoryLen returns the number of recorded atoms.
func (s *Store) HistoryLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// AddPlayer registers a player with the mode's starting health.
func (s *Store) AddPlayer(playerID, name string, health int) *Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &Player{
		PlayerID: playerID,
		Name:     name,
		Health:   health,
		Pool:     scrip.NewPool(),
	}
	s.players[playerID] = p
	s.playerOrder = append(s.playerOrder, playerID)
	s.record(Atom{Kind: AtomSetup, PlayerID: playerID, Amount: health})
	return p
}

// Player returns the record for a player ID. The pointer is shared with the
// session goroutine; callers on other goroutines should use PlayerSnapshot
// or the flag mutators instead of touching fields directly.
func (s *Store) Player(playerID string) (*Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[playerID]
	return p, ok
}

// PlayerSnapshot returns a copy of the player record, safe to read off the
// session goroutine. The Pool pointer is shared; it carries its own lock.
func (s *Store) PlayerSnapshot(playerID string) (Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[playerID]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// SetKeptHand marks a player's opening hand as kept.
func (s *Store) SetKeptHand(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.players[playerID]; ok {
		p.KeptHand = true
	}
}

// RecordMulligan increments a player's mulligan count and returns the new
// total.
func (s *Store) RecordMulligan(playerID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok {
		return 0
	}
	p.MulliganCount++
	return p.MulliganCount
}

// MarkLost flags a player as having lost.
func (s *Store) MarkLost(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.players[playerID]; ok {
		p.Lost = true
	}
}

// MarkWon flags a player as the winner.
func (s *Store) MarkWon(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.players[playerID]; ok {
		p.Won = true
	}
}

// MarkConceded flags a player as having conceded.
func (s *Store) MarkConceded(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.players[playerID]; ok {
		p.Conceded = true
	}
}

// PlayerOrder returns the turn order, starting player first.
func (s *Store) PlayerOrder() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cpy := make([]string, len(s.playerOrder))
	copy(cpy, s.playerOrder)
	return cpy
}

// TurnOrderFrom returns the player order rotated so the given player comes
// first. Used to drain the trigger queue active player first.
func (s *Store) TurnOrderFrom(playerID string) []string {
	order := s.PlayerOrder()
	for i, id := range order {
		if id == playerID {
			return append(order[i:], order[:i]...)
		}
	}
	return order
}

// AddCard registers an instance and places it at the bottom of a zone.
func (s *Store) AddCard(inst *cards.Instance, zone Zone) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards[inst.ID] = inst
	s.zones[zone] = append(s.zones[zone], inst.ID)
}

// Card returns an instance by ID.
func (s *Store) Card(cardID string) (*cards.Instance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.cards[cardID]
	return inst, ok
}

// ZoneList returns a copy of the ordered card IDs in a zone.
func (s *Store) ZoneList(zone Zone) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.zones[zone]
	cpy := make([]string, len(ids))
	copy(cpy, ids)
	return cpy
}

// ZoneSize returns the number of cards in a zone.
func (s *Store) ZoneSize(zone Zone) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.zones[zone])
}

// CardZone returns the zone currently holding a card.
func (s *Store) CardZone(cardID string) (Zone, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findZone(cardID)
}

func (s *Store) findZone(cardID string) (Zone, bool) {
	for zone, ids := range s.zones {
		for _, id := range ids {
			if id == cardID {
				return zone, true
			}
		}
	}
	return Zone{}, false
}

// MoveCard removes a card from its current zone and appends it to the
// destination. The two steps are atomic: a card is never in two zones and
// never in none.
func (s *Store) MoveCard(cardID string, to Zone) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	from, ok := s.findZone(cardID)
	if !ok {
		return fmt.Errorf("move %s: %w", cardID, ErrInvalidTarget)
	}

	ids := s.zones[from]
	for i, id := range ids {
		if id == cardID {
			s.zones[from] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	s.zones[to] = append(s.zones[to], cardID)
	s.record(Atom{Kind: AtomMoveCard, CardID: cardID, From: from, To: to})
	return nil
}

// Shuffle permutes a player's deck with the store rng.
func (s *Store) Shuffle(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	zone := Zone{Kind: rules.ZoneDeck, Player: playerID}
	ids := s.zones[zone]
	s.rng.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
	s.record(Atom{Kind: AtomShuffle, PlayerID: playerID, Amount: len(ids)})
}

// DrawCard moves the top card of a player's deck to their hand. Drawing
// from an empty deck returns false; the caller decides the consequence.
func (s *Store) DrawCard(playerID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deck := Zone{Kind: rules.ZoneDeck, Player: playerID}
	ids := s.zones[deck]
	if len(ids) == 0 {
		return "", false
	}

	cardID := ids[0]
	s.zones[deck] = ids[1:]
	hand := Zone{Kind: rules.ZoneHand, Player: playerID}
	s.zones[hand] = append(s.zones[hand], cardID)
	s.record(Atom{Kind: AtomMoveCard, CardID: cardID, From: deck, To: hand})
	return cardID, true
}

// ChangeHealth applies a delta to a player's health and returns the result.
func (s *Store) ChangeHealth(playerID string, delta int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.players[playerID]
	if p == nil {
		return 0
	}
	p.Health += delta
	s.record(Atom{Kind: AtomHealthChange, PlayerID: playerID, Amount: delta})
	return p.Health
}

// DamageCard marks damage on a card instance.
func (s *Store) DamageCard(cardID string, amount int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst := s.cards[cardID]
	if inst == nil {
		return
	}
	inst.Damage += amount
	s.record(Atom{Kind: AtomDamage, CardID: cardID, Amount: amount})
}

// ClearDamage removes all damage from a card, done in recovery.
func (s *Store) ClearDamage(cardID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst := s.cards[cardID]
	if inst == nil || inst.Damage == 0 {
		return
	}
	cleared := inst.Damage
	inst.Damage = 0
	s.record(Atom{Kind: AtomClearDamage, CardID: cardID, Amount: cleared})
}

// AddScrip credits a player's pool.
func (s *Store) AddScrip(playerID string, kind scrip.Kind, amount int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.players[playerID]
	if p == nil {
		return
	}
	p.Pool.Add(kind, amount)
	s.record(Atom{Kind: AtomScripChange, PlayerID: playerID, Currency: string(kind), Amount: amount})
}

// RecordPayment journals a completed payment. The pool itself was already
// mutated atomically by the resolver.
func (s *Store) RecordPayment(playerID string, cost scrip.Cost) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(Atom{Kind: AtomScripChange, PlayerID: playerID, Amount: -cost.Total(), Value: cost.String()})
}

// AddProperty records a property mutation through the resolver, stamping it
// with a fresh timestamp.
func (s *Store) AddProperty(p properties.Property) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := s.props.Add(p)
	s.record(Atom{Kind: AtomProperty, CardID: p.TargetID, Key: p.Key, Value: "add"})
	return added.ID
}

// RemovePropertiesBySource drops every property a source granted.
func (s *Store) RemovePropertiesBySource(sourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.props.RemoveBySource(sourceID)
	s.record(Atom{Kind: AtomProperty, CardID: sourceID, Value: "remove_by_source"})
}

// ExpireEndOfTurn drops end-of-turn properties, done in cleanup.
func (s *Store) ExpireEndOfTurn() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.props.ExpireEndOfTurn()
	s.record(Atom{Kind: AtomProperty, Value: "expire_eot"})
}

// RecordPhase journals a phase change.
func (s *Store) RecordPhase(turn int, phase rules.Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(Atom{Kind: AtomPhaseChange, Amount: turn, Value: phase.String()})
}

// RecordState journals a session state change.
func (s *Store) RecordState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(Atom{Kind: AtomStateChange, Value: string(state)})
}

// RecordKeep journals a mulligan keep decision.
func (s *Store) RecordKeep(playerID string, keep bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value := "redraw"
	if keep {
		value = "keep"
	}
	s.record(Atom{Kind: AtomKeep, PlayerID: playerID, Value: value})
}

// RecordResult journals the game result.
func (s *Store) RecordResult(winnerID, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(Atom{Kind: AtomResult, PlayerID: winnerID, Value: reason})
}

// EffectivePower resolves a card's power through the property layer.
func (s *Store) EffectivePower(cardID string) int {
	inst, ok := s.Card(cardID)
	if !ok {
		return 0
	}
	return s.props.EffectiveIntFrom(cardID, "power", inst.Definition.Power)
}

// EffectiveHealth resolves a card's health through the property layer and
// subtracts marked damage.
func (s *Store) EffectiveHealth(cardID string) int {
	inst, ok := s.Card(cardID)
	if !ok {
		return 0
	}
	base := s.props.EffectiveIntFrom(cardID, "health", inst.Definition.Health)
	return base - inst.Damage
}

// Controller resolves who controls a card, honoring control-layer
// properties.
func (s *Store) Controller(cardID string) string {
	inst, ok := s.Card(cardID)
	if !ok {
		return ""
	}
	return s.props.EffectiveTextFrom(cardID, "controller", inst.Controller)
}

// FindCard implements rules.GameStateAccessor.
func (s *Store) FindCard(cardID string) (rules.CardInfo, bool) {
	inst, ok := s.Card(cardID)
	if !ok {
		return rules.CardInfo{}, false
	}
	zone, _ := s.CardZone(cardID)
	return rules.CardInfo{
		ID:           inst.ID,
		Name:         inst.Name(),
		Kind:         string(inst.Kind()),
		Zone:         zone.Kind,
		ControllerID: s.Controller(cardID),
		OwnerID:      inst.OwnerID,
	}, true
}

// FindPlayer implements rules.GameStateAccessor.
func (s *Store) FindPlayer(playerID string) (rules.PlayerInfo, bool) {
	p, ok := s.PlayerSnapshot(playerID)
	if !ok {
		return rules.PlayerInfo{}, false
	}
	return rules.PlayerInfo{
		PlayerID: p.PlayerID,
		Name:     p.Name,
		Health:   p.Health,
		Lost:     p.Lost,
		Left:     p.Left,
	}, true
}

// GetCardZone implements rules.GameStateAccessor.
func (s *Store) GetCardZone(cardID string) (int, bool) {
	zone, ok := s.CardZone(cardID)
	return zone.Kind, ok
}
