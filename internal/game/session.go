package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/technomancy/server-go/internal/cards"
	"github.com/technomancy/server-go/internal/game/rules"
	"github.com/technomancy/server-go/internal/game/scrip"
)

const (
	// maxTurns aborts runaway games (two auto-pass policies, degenerate
	// decks) with a draw.
	maxTurns = 500
	// maxConsecutiveRejections is how many illegal replies in a row a
	// player gets before the disconnect policy takes over.
	maxConsecutiveRejections = 3
)

// Session drives one game from setup to a final result. All game state
// mutation happens on the goroutine running Run; the session suspends only
// inside gateway calls, which carry the session context. Views may be built
// from other goroutines through the store's own locking.
type Session struct {
	gameID string
	config Config
	logger *zap.Logger

	store   *Store
	catalog *cards.Catalog
	effects *EffectRegistry

	bus       *rules.EventBus
	ruleset   *rules.RuleManager
	triggers  *rules.TriggerQueue
	stack     *rules.StackManager
	turns     *rules.TurnManager
	machine   *rules.PriorityMachine
	legality  *rules.LegalityChecker
	costs     *scrip.Resolver
	watchers  *rules.WatcherRegistry
	buildings *rules.BuildingsPlayedWatcher

	mu       sync.Mutex
	gateways map[string]PlayerGateway
	autoPass map[string]bool

	state     State
	winnerID  string
	reason    string
	termErr   error
	startedAt time.Time
	finishedAt time.Time

	analytics  *analytics
	journal    *JournalRecorder
	onFinished func(*Session)
}

// NewSession creates a session for the given configuration. Decks are
// instantiated from the catalog immediately; gateways attach before Run.
func NewSession(gameID string, cfg Config, catalog *cards.Catalog, effects *EffectRegistry, logger *zap.Logger) (*Session, error) {
	if len(cfg.Players) < 2 {
		return nil, fmt.Errorf("session %s: need at least two players, got %d", gameID, len(cfg.Players))
	}
	if cfg.Disconnect == "" {
		cfg.Disconnect = PolicyAutoPass
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if effects == nil {
		effects = DefaultEffects()
	}

	s := &Session{
		gameID:    gameID,
		config:    cfg,
		logger:    logger,
		store:     NewStore(seed),
		catalog:   catalog,
		effects:   effects,
		bus:       rules.NewEventBus(),
		ruleset:   rules.NewRuleManager(),
		triggers:  rules.NewTriggerQueue(),
		stack:     rules.NewStackManager(),
		machine:   rules.NewPriorityMachine(len(cfg.Players)),
		costs:     scrip.NewResolver(),
		watchers:  rules.NewWatcherRegistry(),
		buildings: rules.NewBuildingsPlayedWatcher(),
		gateways:  make(map[string]PlayerGateway),
		autoPass:  make(map[string]bool),
		state:     StateCreated,
		analytics: newAnalytics(),
	}
	s.legality = rules.NewLegalityChecker(s.store)
	s.watchers.AddWatcher(s.buildings)
	s.watchers.AddWatcher(rules.NewCardsDrawnWatcher())
	if cfg.RecordReplay {
		s.journal = NewJournalRecorder(gameID)
		s.journal.SetSeed(seed)
	}

	for _, ps := range cfg.Players {
		s.store.AddPlayer(ps.PlayerID, ps.Name, cfg.Mode.StartingHealth)
		deck := Zone{Kind: rules.ZoneDeck, Player: ps.PlayerID}
		for _, name := range ps.Cards {
			def, ok := catalog.Lookup(name)
			if !ok {
				return nil, fmt.Errorf("session %s: player %s: unknown card %q", gameID, ps.PlayerID, name)
			}
			s.store.AddCard(cards.NewInstance(def, ps.PlayerID), deck)
		}
	}
	s.turns = rules.NewTurnManager(cfg.Players[0].PlayerID)
	return s, nil
}

// GameID returns the session's identifier.
func (s *Session) GameID() string {
	return s.gameID
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AttachGateway binds a player's gateway. Replacing a gateway mid-game is
// how reconnection works; the auto-pass mark is cleared so the player acts
// again.
func (s *Session) AttachGateway(playerID string, gw PlayerGateway) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gateways[playerID] = gw
	delete(s.autoPass, playerID)
}

// Rules exposes the rule manager so card setup can register triggers.
func (s *Session) Rules() *rules.RuleManager {
	return s.ruleset
}

// Costs exposes the cost resolver so card setup can register modifiers.
func (s *Session) Costs() *scrip.Resolver {
	return s.costs
}

// Store exposes the state store, primarily for tests and views.
func (s *Session) Store() *Store {
	return s.store
}

// Journal returns the recorded replay journal, or nil when the session was
// created without replay recording.
func (s *Session) Journal() *Journal {
	if s.journal == nil {
		return nil
	}
	return s.journal.Snapshot()
}

// OnFinished registers a callback invoked once when the game ends.
func (s *Session) OnFinished(fn func(*Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFinished = fn
}

// Run drives the game to completion. It returns ErrSessionTerminated when
// the context is cancelled before a natural result.
func (s *Session) Run(ctx context.Context) error {
	s.startedAt = time.Now()

	s.setState(StateAwaitingFirstSetup)
	s.setup(ctx)

	if !s.finished() {
		s.setState(StateMulligan)
		s.runMulligan(ctx)
	}

	if !s.finished() {
		s.setState(StateNormal)
		s.runTurns(ctx)
	}

	if !s.finished() {
		// the loop only exits finished or terminated; belt and braces
		s.finish("", "terminated")
	}
	s.flushJournal()

	s.mu.Lock()
	err := s.termErr
	s.mu.Unlock()
	return err
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.store.RecordState(state)
	if s.logger != nil {
		s.logger.Info("session state change",
			zap.String("game_id", s.gameID),
			zap.String("state", string(state)))
	}
}

func (s *Session) finished() bool {
	return s.State() == StateFinished
}

// finish records the result exactly once.
func (s *Session) finish(winnerID, reason string) {
	s.mu.Lock()
	if s.state == StateFinished {
		s.mu.Unlock()
		return
	}
	s.state = StateFinished
	s.winnerID = winnerID
	s.reason = reason
	s.finishedAt = time.Now()
	fn := s.onFinished
	s.mu.Unlock()

	if winnerID != "" {
		s.store.MarkWon(winnerID)
	}
	s.store.RecordResult(winnerID, reason)
	s.store.RecordState(StateFinished)

	evt := rules.NewEvent(rules.EventGameEnded, "", "", winnerID)
	evt.Data = reason
	s.bus.Publish(evt)

	if s.logger != nil {
		s.logger.Info("game finished",
			zap.String("game_id", s.gameID),
			zap.String("winner", winnerID),
			zap.String("reason", reason))
	}
	s.flushJournal()
	if fn != nil {
		fn(s)
	}
}

// terminate ends the session without a winner after context cancellation.
func (s *Session) terminate(cause error) {
	s.mu.Lock()
	if s.termErr == nil {
		s.termErr = fmt.Errorf("%w: %v", ErrSessionTerminated, cause)
	}
	s.mu.Unlock()
	s.finish("", "terminated")
}

// FinalReport summarizes the finished game.
func (s *Session) FinalReport() FinalStateReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return FinalStateReport{
		GameID:     s.gameID,
		WinnerID:   s.winnerID,
		Reason:     s.reason,
		Turns:      s.turns.TurnNumber(),
		HistoryLen: s.store.HistoryLen(),
		StartedAt:  s.startedAt,
		FinishedAt: s.finishedAt,
		Analytics:  s.analytics.report(),
	}
}

// publish delivers an event to watchers, trigger rules and bus listeners.
// Rule matches are queued; they reach the stack at the next state-based
// check.
func (s *Session) publish(event rules.Event) {
	s.watchers.NotifyWatchers(event)
	if entries := s.ruleset.Handle(event); len(entries) > 0 {
		s.triggers.Enqueue(entries...)
	}
	s.bus.Publish(event)
}

// --- zones ---

func (s *Session) deckZone(playerID string) Zone {
	return Zone{Kind: rules.ZoneDeck, Player: playerID}
}

func (s *Session) handZone(playerID string) Zone {
	return Zone{Kind: rules.ZoneHand, Player: playerID}
}

func (s *Session) discardZone(playerID string) Zone {
	return Zone{Kind: rules.ZoneDiscard, Player: playerID}
}

func (s *Session) fieldZone() Zone {
	return Zone{Kind: rules.ZoneField}
}

func (s *Session) stackZone() Zone {
	return Zone{Kind: rules.ZoneStack}
}

// --- setup ---

func (s *Session) setup(ctx context.Context) {
	mode := s.config.Mode

	for _, ps := range s.config.Players {
		size := s.store.ZoneSize(s.deckZone(ps.PlayerID))
		if mode.DeckSize > 0 && size != mode.DeckSize {
			s.playerLoses(ps.PlayerID, "deck_size")
			continue
		}
		if mode.MaxDeckLevel > 0 {
			level := 0
			for _, id := range s.store.ZoneList(s.deckZone(ps.PlayerID)) {
				if inst, ok := s.store.Card(id); ok {
					level += inst.Definition.Level
				}
			}
			if level > mode.MaxDeckLevel {
				s.playerLoses(ps.PlayerID, "deck_level")
			}
		}
	}
	if s.finished() {
		return
	}

	for _, id := range s.store.PlayerOrder() {
		s.store.Shuffle(id)
		s.publish(rules.NewEvent(rules.EventShuffle, "", "", id))
		for i := 0; i < mode.StartingHand; i++ {
			if _, ok := s.store.DrawCard(id); !ok {
				break
			}
		}
	}

	s.publish(rules.NewEvent(rules.EventGameSetup, "", "", ""))
	s.syncAll(ctx)
}

// --- mulligan ---

func (s *Session) runMulligan(ctx context.Context) {
	for {
		if s.finished() || ctx.Err() != nil {
			if ctx.Err() != nil {
				s.terminate(ctx.Err())
			}
			return
		}

		var pending []string
		for _, id := range s.store.PlayerOrder() {
			p, ok := s.store.PlayerSnapshot(id)
			if ok && !p.KeptHand && !p.Lost && !p.Left {
				pending = append(pending, id)
			}
		}
		if len(pending) == 0 {
			return
		}

		for _, id := range pending {
			if s.finished() {
				return
			}
			s.mulliganStep(ctx, id)
		}
		s.syncAll(ctx)
	}
}

func (s *Session) mulliganStep(ctx context.Context, playerID string) {
	if _, ok := s.store.PlayerSnapshot(playerID); !ok {
		return
	}
	hand := s.store.ZoneList(s.handZone(playerID))

	// a hand this small is always kept
	if len(hand) <= 1 {
		s.store.SetKeptHand(playerID)
		s.store.RecordKeep(playerID, true)
		s.publish(rules.NewEventWithAmount(rules.EventKeepDecision, "", "", playerID, len(hand)))
		return
	}

	keep := s.requestKeep(ctx, playerID, hand)
	if s.finished() {
		return
	}
	if keep {
		s.store.SetKeptHand(playerID)
		s.store.RecordKeep(playerID, true)
		s.publish(rules.NewEventWithAmount(rules.EventKeepDecision, "", "", playerID, len(hand)))
		return
	}

	redraw := len(hand) - 1
	for _, cid := range hand {
		if err := s.store.MoveCard(cid, s.deckZone(playerID)); err != nil && s.logger != nil {
			s.logger.Warn("mulligan reshuffle", zap.String("card_id", cid), zap.Error(err))
		}
	}
	s.store.Shuffle(playerID)
	for i := 0; i < redraw; i++ {
		if _, ok := s.store.DrawCard(playerID); !ok {
			break
		}
	}
	s.store.RecordMulligan(playerID)
	s.store.RecordKeep(playerID, false)
	s.publish(rules.NewEventWithAmount(rules.EventKeepDecision, "", "", playerID, -redraw))
}

func (s *Session) requestKeep(ctx context.Context, playerID string, hand []string) bool {
	if s.isAutoPass(playerID) {
		return true
	}
	gw := s.gateway(playerID)
	if gw == nil {
		s.applyDisconnect(playerID)
		return true
	}
	keep, err := gw.RequestKeepDecision(ctx, s.buildCardViews(hand))
	if err != nil {
		if ctx.Err() != nil {
			s.terminate(ctx.Err())
			return true
		}
		s.applyDisconnect(playerID)
		return true
	}
	return keep
}

// --- turn loop ---

func (s *Session) runTurns(ctx context.Context) {
	prev := rules.Phase(-1)
	for !s.finished() {
		if ctx.Err() != nil {
			s.terminate(ctx.Err())
			return
		}
		phase := s.turns.CurrentPhase()
		repeat := phase == rules.PhaseCleanup && prev == rules.PhaseCleanup
		s.runPhase(ctx, phase, repeat)
		if s.finished() {
			return
		}
		prev = phase
		s.turns.AdvancePhase(s.nextPlayer(s.turns.ActivePlayer()))
		if s.turns.TurnNumber() > maxTurns {
			s.finish("", "turn_limit")
			return
		}
	}
}

func (s *Session) runPhase(ctx context.Context, phase rules.Phase, repeat bool) {
	turn := s.turns.TurnNumber()
	active := s.turns.ActivePlayer()

	if !repeat {
		s.store.RecordPhase(turn, phase)
		if phase == rules.PhaseRecovery {
			s.watchers.ResetWatchers()
			s.publish(rules.NewEventWithAmount(rules.EventTurnStart, "", "", active, turn))
		}
		evt := rules.NewEvent(rules.EventPhaseStart, "", "", active)
		evt.Data = phase.String()
		s.publish(evt)

		s.phaseEntry(ctx, phase, active)
		if s.finished() {
			return
		}
	}

	s.transition(rules.StateBasedCheck)
	s.stateBasedCycle()
	if s.finished() {
		return
	}

	// suppressed phases still get a round when triggers put something on
	// the stack; a phase never ends with a non-empty stack
	if phase.GrantsPriority() || !s.stack.IsEmpty() {
		s.transition(rules.StateAwaitingAction)
		s.priorityLoop(ctx)
		if s.finished() {
			return
		}
	} else {
		s.transition(rules.StatePhaseExit)
	}

	if phase == rules.PhaseCleanup && s.triggers.Len() > 0 {
		s.turns.RepeatCleanup()
	}

	end := rules.NewEvent(rules.EventPhaseEnd, "", "", active)
	end.Data = phase.String()
	s.publish(end)
	s.transition(rules.StatePhaseEntry)
}

// phaseEntry performs the unconditional actions a phase opens with.
func (s *Session) phaseEntry(ctx context.Context, phase rules.Phase, active string) {
	switch phase {
	case rules.PhaseRecovery:
		for _, id := range s.store.ZoneList(s.fieldZone()) {
			if s.store.Controller(id) == active {
				s.recoverCard(id)
			}
		}
	case rules.PhaseDraw:
		s.drawCard(active)
	case rules.PhaseTurnEnd:
		s.publish(rules.NewEventWithAmount(rules.EventTurnEnd, "", "", active, s.turns.TurnNumber()))
	case rules.PhaseCleanup:
		s.store.ExpireEndOfTurn()
		s.enforceHandLimit(ctx, active)
	}
}

// recoverCard clears accumulated damage. A card that does not exist or is
// not deployed recovers as a no-op.
func (s *Session) recoverCard(cardID string) {
	zone, ok := s.store.CardZone(cardID)
	if !ok || zone.Kind != rules.ZoneField {
		return
	}
	s.store.ClearDamage(cardID)
}

// drawCard draws one card for the player, losing the game on an empty deck.
func (s *Session) drawCard(playerID string) bool {
	cardID, ok := s.store.DrawCard(playerID)
	if !ok {
		s.playerLoses(playerID, "deck_out")
		return false
	}
	s.publish(rules.NewEvent(rules.EventDrawCard, cardID, "", playerID))
	return true
}

// enforceHandLimit makes the active player discard down to the mode's hand
// limit during cleanup.
func (s *Session) enforceHandLimit(ctx context.Context, playerID string) {
	limit := s.config.Mode.HandLimit
	if limit <= 0 {
		return
	}
	hand := s.store.ZoneList(s.handZone(playerID))
	excess := len(hand) - limit
	if excess <= 0 {
		return
	}

	chosen := s.requestDiscards(ctx, playerID, hand, excess)
	for _, cid := range chosen {
		if err := s.store.MoveCard(cid, s.discardZone(playerID)); err != nil {
			continue
		}
		s.publish(rules.NewEvent(rules.EventDiscardCard, cid, "", playerID))
	}
}

func (s *Session) requestDiscards(ctx context.Context, playerID string, hand []string, count int) []string {
	if s.isAutoPass(playerID) {
		return hand[:count]
	}
	gw := s.gateway(playerID)
	if gw == nil {
		s.applyDisconnect(playerID)
		return hand[:count]
	}

	options := make([]Choice, 0, len(hand))
	inHand := make(map[string]bool, len(hand))
	for _, cid := range hand {
		inHand[cid] = true
		options = append(options, Choice{ID: cid, Label: s.buildCardView(cid).Name})
	}

	for attempt := 0; attempt < 2; attempt++ {
		picked, err := gw.RequestChoices(ctx, "Discard down to your hand limit", options, count, count)
		if err != nil {
			if ctx.Err() != nil {
				s.terminate(ctx.Err())
				return nil
			}
			s.applyDisconnect(playerID)
			return hand[:count]
		}
		if err := validateChoices(picked, inHand, count); err != nil {
			if s.logger != nil {
				s.logger.Warn("discard choice rejected",
					zap.String("game_id", s.gameID),
					zap.String("player_id", playerID),
					zap.Error(err))
			}
			continue
		}
		return picked
	}

	// two bad replies; the policy acts for the player
	s.applyDisconnect(playerID)
	if s.finished() || s.config.Disconnect == PolicyForfeit {
		return nil
	}
	return hand[:count]
}

// validateChoices checks a choice reply against what was offered.
func validateChoices(picked []string, offered map[string]bool, count int) error {
	if len(picked) != count {
		return fmt.Errorf("%w: expected %d choices, got %d", ErrProtocolViolation, count, len(picked))
	}
	seen := make(map[string]bool, len(picked))
	for _, id := range picked {
		if !offered[id] {
			return fmt.Errorf("%w: %q was not offered", ErrProtocolViolation, id)
		}
		if seen[id] {
			return fmt.Errorf("%w: %q chosen twice", ErrProtocolViolation, id)
		}
		seen[id] = true
	}
	return nil
}

// --- state-based checks and triggers ---

// stateBasedCycle runs state-based actions and trigger placement until both
// are stable. Nothing reaches a player while the cycle is unsettled.
func (s *Session) stateBasedCycle() {
	for {
		changed := s.stateBasedOnce()
		drained := s.drainTriggers()
		if !changed && drained == 0 {
			break
		}
	}
	s.checkGameEnd()
}

func (s *Session) stateBasedOnce() bool {
	changed := false

	for _, id := range s.store.PlayerOrder() {
		p, ok := s.store.PlayerSnapshot(id)
		if !ok || p.Lost || p.Left {
			continue
		}
		if p.Health <= 0 {
			s.store.MarkLost(id)
			changed = true
		}
	}

	for _, id := range s.store.ZoneList(s.fieldZone()) {
		inst, ok := s.store.Card(id)
		if !ok || inst.Kind() != cards.KindAgent {
			continue
		}
		if s.store.EffectiveHealth(id) <= 0 {
			controller := s.store.Controller(id)
			if err := s.store.MoveCard(id, s.discardZone(inst.OwnerID)); err != nil {
				continue
			}
			s.store.RemovePropertiesBySource(id)
			s.publish(rules.NewEvent(rules.EventAgentDied, id, "", controller))
			changed = true
		}
	}

	return changed
}

// drainTriggers moves queued trigger entries onto the stack in active player
// order. Any push resets the pass flags.
func (s *Session) drainTriggers() int {
	entries := s.triggers.Drain(s.store.TurnOrderFrom(s.turns.ActivePlayer()))
	for _, entry := range entries {
		s.stack.Push(entry)
		s.analytics.recordPush(s.stack.Size())
	}
	if len(entries) > 0 {
		s.analytics.recordTriggers(len(entries))
		s.machine.ResetPasses()
	}
	return len(entries)
}

func (s *Session) checkGameEnd() {
	var alive []string
	lost := 0
	for _, id := range s.store.PlayerOrder() {
		p, ok := s.store.PlayerSnapshot(id)
		if !ok {
			continue
		}
		if p.Lost || p.Left {
			lost++
			continue
		}
		alive = append(alive, id)
	}
	if lost == 0 {
		return
	}
	switch len(alive) {
	case 0:
		s.finish("", "draw")
	case 1:
		s.finish(alive[0], "health")
	}
}

// playerLoses marks a loss from a named cause and settles the game.
func (s *Session) playerLoses(playerID, reason string) {
	if _, ok := s.store.PlayerSnapshot(playerID); !ok {
		return
	}
	s.store.MarkLost(playerID)

	var alive []string
	for _, id := range s.store.PlayerOrder() {
		other, ok := s.store.PlayerSnapshot(id)
		if ok && !other.Lost && !other.Left {
			alive = append(alive, id)
		}
	}
	switch len(alive) {
	case 0:
		s.finish("", reason)
	case 1:
		s.finish(alive[0], reason)
	}
}

// Concede concedes on behalf of a player, from inside or outside the loop.
func (s *Session) Concede(playerID, reason string) {
	if _, ok := s.store.PlayerSnapshot(playerID); !ok {
		return
	}
	if reason == "" {
		reason = "concede"
	}
	s.store.MarkConceded(playerID)
	s.playerLoses(playerID, reason)
}

// --- priority ---

func (s *Session) priorityLoop(ctx context.Context) {
	s.turns.SetPriority(s.turns.ActivePlayer())
	s.machine.ResetPasses()
	rejections := 0

	for {
		if ctx.Err() != nil {
			s.terminate(ctx.Err())
			return
		}
		if s.finished() {
			return
		}

		playerID := s.turns.PriorityPlayer()
		action := s.requestAction(ctx, playerID)
		if s.finished() {
			return
		}

		switch action.Type {
		case ActionConcede:
			s.Concede(playerID, "concede")
			return

		case ActionPlayCard:
			if err := s.playCard(playerID, action); err != nil {
				if s.logger != nil {
					s.logger.Warn("action rejected",
						zap.String("game_id", s.gameID),
						zap.String("player_id", playerID),
						zap.String("card_id", action.CardID),
						zap.Error(err))
				}
				rejections++
				if rejections >= maxConsecutiveRejections {
					s.applyDisconnect(playerID)
					rejections = 0
				}
				continue
			}
			rejections = 0
			s.machine.RecordAction()
			s.transition(rules.StateBasedCheck)
			s.stateBasedCycle()
			if s.finished() {
				return
			}
			s.transition(rules.StateAwaitingAction)
			s.syncAll(ctx)

		case ActionPass:
			rejections = 0
			s.analytics.recordPass()
			if !s.machine.RecordPass() {
				s.turns.SetPriority(s.nextPlayer(playerID))
				continue
			}
			if s.stack.IsEmpty() {
				s.transition(rules.StatePhaseExit)
				return
			}
			s.resolveTop()
			if s.finished() {
				return
			}
			s.machine.ResetPasses()
			s.turns.SetPriority(s.turns.ActivePlayer())
			s.syncAll(ctx)

		default:
			rejections++
			if rejections >= maxConsecutiveRejections {
				s.applyDisconnect(playerID)
				rejections = 0
			}
		}
	}
}

func (s *Session) requestAction(ctx context.Context, playerID string) Action {
	if s.isAutoPass(playerID) {
		return Action{Type: ActionPass}
	}
	gw := s.gateway(playerID)
	if gw == nil {
		s.applyDisconnect(playerID)
		return Action{Type: ActionPass}
	}
	action, err := gw.RequestAction(ctx, s.buildPlayerView(playerID))
	if err != nil {
		if ctx.Err() != nil {
			s.terminate(ctx.Err())
			return Action{Type: ActionPass}
		}
		s.applyDisconnect(playerID)
		return Action{Type: ActionPass}
	}
	return action
}

// playCard validates and applies a play action. Any error leaves the game
// unchanged; payment in particular is all-or-nothing.
func (s *Session) playCard(playerID string, action Action) error {
	inst, ok := s.store.Card(action.CardID)
	if !ok {
		return fmt.Errorf("%w: no such card %q", ErrIllegalAction, action.CardID)
	}
	zone, ok := s.store.CardZone(action.CardID)
	if !ok || zone != s.handZone(playerID) {
		return fmt.Errorf("%w: card %s is not in your hand", ErrIllegalAction, action.CardID)
	}
	def := inst.Definition

	timing := s.legality.CheckPlayTiming(string(def.Kind), rules.PlayContext{
		PlayerID:        playerID,
		ActivePlayer:    s.turns.ActivePlayer(),
		StackEmpty:      s.stack.IsEmpty(),
		BuildingsTurn:   s.buildings.Count(playerID),
		HoldingPriority: s.turns.PriorityPlayer() == playerID,
	})
	if !timing.Legal {
		return fmt.Errorf("%w: %s", ErrIllegalAction, timing.Reason)
	}

	if len(action.Targets) != def.NumTargets {
		return fmt.Errorf("%w: %s takes %d targets, got %d",
			ErrInvalidTarget, def.Name, def.NumTargets, len(action.Targets))
	}
	for _, target := range action.Targets {
		if err := s.checkTarget(target); err != nil {
			return err
		}
	}

	abilities, err := s.resolveActivations(playerID, action.Activations)
	if err != nil {
		return err
	}

	player, ok := s.store.PlayerSnapshot(playerID)
	if !ok {
		return fmt.Errorf("%w: unknown player %q", ErrIllegalAction, playerID)
	}
	cost := s.costs.Compute(inst.ID, def.Cost)
	if err := s.costs.Pay(player.Pool, cost, abilities); err != nil {
		return fmt.Errorf("%w: %s costs %s", ErrInsufficientResources, def.Name, cost.String())
	}
	s.store.RecordPayment(playerID, cost)
	s.publish(rules.NewEventWithAmount(rules.EventScripPaid, "", inst.ID, playerID, cost.Total()))

	if err := s.store.MoveCard(inst.ID, s.stackZone()); err != nil {
		return err
	}
	entry := rules.StackEntry{
		ID:          uuid.NewString(),
		Controller:  playerID,
		Description: def.Name,
		Kind:        rules.StackEntryKindCard,
		SourceID:    inst.ID,
		CardID:      inst.ID,
		Targets:     action.Targets,
		Modes:       action.Modes,
	}
	s.stack.Push(entry)
	s.analytics.recordPush(s.stack.Size())
	s.analytics.recordPlay(s.turns.TurnNumber())

	played := rules.NewEvent(rules.EventCardPlayed, inst.ID, inst.ID, playerID)
	played.Metadata["kind"] = string(def.Kind)
	played.Data = def.Name
	s.publish(played)
	return nil
}

// checkTarget accepts fielded cards and players still in the game.
func (s *Session) checkTarget(target string) error {
	if zone, ok := s.store.CardZone(target); ok {
		if zone.Kind == rules.ZoneField {
			return nil
		}
		return fmt.Errorf("%w: card %s is not deployed", ErrInvalidTarget, target)
	}
	if p, ok := s.store.PlayerSnapshot(target); ok {
		if p.Lost || p.Left {
			return fmt.Errorf("%w: player %s has left the game", ErrInvalidTarget, target)
		}
		return nil
	}
	return fmt.Errorf("%w: %q is neither a deployed card nor a player", ErrInvalidTarget, target)
}

// resolveActivations maps ability references to payable scrip abilities.
func (s *Session) resolveActivations(playerID string, refs []AbilityRef) ([]*scrip.Ability, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	abilities := make([]*scrip.Ability, 0, len(refs))
	for _, ref := range refs {
		inst, ok := s.store.Card(ref.CardID)
		if !ok {
			return nil, fmt.Errorf("%w: no such card %q", ErrIllegalAction, ref.CardID)
		}
		zone, ok := s.store.CardZone(ref.CardID)
		if !ok || zone.Kind != rules.ZoneField {
			return nil, fmt.Errorf("%w: %s is not deployed", ErrIllegalAction, inst.Name())
		}
		if s.store.Controller(ref.CardID) != playerID {
			return nil, fmt.Errorf("%w: you do not control %s", ErrIllegalAction, inst.Name())
		}
		if ref.Index < 0 || ref.Index >= len(inst.Definition.Abilities) {
			return nil, fmt.Errorf("%w: %s has no ability %d", ErrIllegalAction, inst.Name(), ref.Index)
		}
		abilities = append(abilities, inst.Definition.Abilities[ref.Index].ToScrip(inst.ID))
	}
	return abilities, nil
}

// resolveTop resolves or fizzles the top of the stack, then re-runs the
// state-based cycle.
func (s *Session) resolveTop() {
	s.transition(rules.StateResolving)
	entry, err := s.stack.Pop()
	if err != nil {
		s.transition(rules.StateBasedCheck)
		return
	}

	result := s.legality.CheckStackEntryLegality(entry)
	if !result.Legal {
		if entry.OnRemove != nil {
			entry.OnRemove()
		}
		s.discardStackCard(entry)
		evt := rules.NewEvent(rules.EventStackRemoved, entry.CardID, entry.SourceID, entry.Controller)
		evt.Data = result.Reason
		s.publish(evt)
	} else {
		if entry.Resolve != nil {
			if err := entry.Resolve(); err != nil && s.logger != nil {
				s.logger.Error("stack entry resolution",
					zap.String("game_id", s.gameID),
					zap.String("entry", entry.Description),
					zap.Error(err))
			}
		} else if entry.Kind == rules.StackEntryKindCard {
			s.resolveCard(entry)
		}
		evt := rules.NewEvent(rules.EventStackResolved, entry.CardID, entry.SourceID, entry.Controller)
		evt.Data = entry.Description
		s.publish(evt)
	}

	s.transition(rules.StateBasedCheck)
	s.stateBasedCycle()
	if !s.finished() {
		s.transition(rules.StateAwaitingAction)
	}
}

// resolveCard applies a card's effect and moves it to its resting zone.
func (s *Session) resolveCard(entry rules.StackEntry) {
	inst, ok := s.store.Card(entry.CardID)
	if !ok {
		return
	}
	def := inst.Definition

	if def.Effect != "" {
		fn, ok := s.effects.Lookup(def.Effect)
		if !ok {
			if s.logger != nil {
				s.logger.Error("unknown effect tag",
					zap.String("game_id", s.gameID),
					zap.String("card", def.Name),
					zap.String("effect", def.Effect))
			}
		} else if err := fn(s, entry); err != nil && s.logger != nil {
			s.logger.Error("effect application",
				zap.String("game_id", s.gameID),
				zap.String("card", def.Name),
				zap.Error(err))
		}
	}
	if s.finished() {
		return
	}

	dest := s.discardZone(inst.OwnerID)
	if def.IsPersistent() {
		dest = s.fieldZone()
	}
	if err := s.store.MoveCard(entry.CardID, dest); err != nil {
		return
	}
	moved := rules.NewEvent(rules.EventZoneChange, entry.CardID, "", entry.Controller)
	moved.Data = dest.String()
	s.publish(moved)
}

// discardStackCard sends a fizzled card from the stack to its owner's
// discard pile.
func (s *Session) discardStackCard(entry rules.StackEntry) {
	if entry.CardID == "" {
		return
	}
	inst, ok := s.store.Card(entry.CardID)
	if !ok {
		return
	}
	if zone, ok := s.store.CardZone(entry.CardID); !ok || zone.Kind != rules.ZoneStack {
		return
	}
	_ = s.store.MoveCard(entry.CardID, s.discardZone(inst.OwnerID))
}

// --- gateway plumbing ---

func (s *Session) gateway(playerID string) PlayerGateway {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gateways[playerID]
}

func (s *Session) isAutoPass(playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoPass[playerID]
}

// applyDisconnect enforces the configured policy for an unresponsive or
// misbehaving player.
func (s *Session) applyDisconnect(playerID string) {
	if s.config.Disconnect == PolicyForfeit {
		s.Concede(playerID, "forfeit")
		return
	}
	s.mu.Lock()
	s.autoPass[playerID] = true
	s.mu.Unlock()
	if s.logger != nil {
		s.logger.Info("player switched to auto-pass",
			zap.String("game_id", s.gameID),
			zap.String("player_id", playerID))
	}
}

// syncAll pushes fresh views to every connected player.
func (s *Session) syncAll(ctx context.Context) {
	for _, id := range s.store.PlayerOrder() {
		if s.isAutoPass(id) {
			continue
		}
		gw := s.gateway(id)
		if gw == nil {
			continue
		}
		if err := gw.SyncState(ctx, s.buildPlayerView(id)); err != nil {
			if ctx.Err() != nil {
				s.terminate(ctx.Err())
				return
			}
			s.applyDisconnect(id)
		}
	}
}

// --- misc ---

func (s *Session) nextPlayer(playerID string) string {
	order := s.store.PlayerOrder()
	for i, id := range order {
		if id == playerID {
			return order[(i+1)%len(order)]
		}
	}
	if len(order) > 0 {
		return order[0]
	}
	return playerID
}

func (s *Session) transition(state rules.PriorityState) {
	if err := s.machine.Transition(state); err != nil && s.logger != nil {
		s.logger.Debug("priority transition",
			zap.String("game_id", s.gameID),
			zap.Error(err))
	}
}

func (s *Session) flushJournal() {
	if s.journal == nil {
		return
	}
	s.journal.Record(s.store.History())
}
