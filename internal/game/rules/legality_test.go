package rules

import (
	"testing"
)

// fakeGameState implements GameStateAccessor for testing
type fakeGameState struct {
	cards   map[string]CardInfo
	players map[string]PlayerInfo
}

func (f *fakeGameState) FindCard(cardID string) (CardInfo, bool) {
	card, ok := f.cards[cardID]
	return card, ok
}

func (f *fakeGameState) FindPlayer(playerID string) (PlayerInfo, bool) {
	player, ok := f.players[playerID]
	return player, ok
}

func (f *fakeGameState) GetCardZone(cardID string) (int, bool) {
	card, ok := f.cards[cardID]
	return card.Zone, ok
}

func newFakeGameState() *fakeGameState {
	return &fakeGameState{
		cards:   make(map[string]CardInfo),
		players: make(map[string]PlayerInfo),
	}
}

func TestLegalityChecker_ControllerValidation(t *testing.T) {
	state := newFakeGameState()
	state.players["player1"] = PlayerInfo{
		PlayerID: "player1",
		Name:     "Player 1",
		Health:   25,
	}

	checker := NewLegalityChecker(state)

	entry := StackEntry{
		ID:         "entry1",
		Controller: "player1",
		Kind:       StackEntryKindCard,
	}

	result := checker.CheckStackEntryLegality(entry)
	if !result.Legal {
		t.Errorf("Expected legal entry, got illegal: %s", result.Reason)
	}

	entry.Controller = "nonexistent"
	result = checker.CheckStackEntryLegality(entry)
	if result.Legal {
		t.Error("Expected illegal entry (controller not found), got legal")
	}
	if result.Reason != "Controller not found" {
		t.Errorf("Expected reason 'Controller not found', got '%s'", result.Reason)
	}

	state.players["player2"] = PlayerInfo{
		PlayerID: "player2",
		Health:   0,
		Lost:     true,
	}
	entry.Controller = "player2"
	result = checker.CheckStackEntryLegality(entry)
	if result.Legal {
		t.Error("Expected illegal entry (controller lost), got legal")
	}
}

func TestLegalityChecker_TargetValidation(t *testing.T) {
	state := newFakeGameState()
	state.players["player1"] = PlayerInfo{PlayerID: "player1", Health: 25}
	state.cards["agent1"] = CardInfo{ID: "agent1", Kind: KindAgent, Zone: ZoneField}

	checker := NewLegalityChecker(state)

	entry := StackEntry{
		ID:         "entry1",
		Controller: "player1",
		Kind:       StackEntryKindCard,
		Targets:    []string{"agent1"},
	}

	result := checker.CheckStackEntryLegality(entry)
	if !result.Legal {
		t.Errorf("Expected legal entry with valid target, got illegal: %s", result.Reason)
	}

	// Target moved to the discard pile: all targets invalid, entry fizzles.
	state.cards["agent1"] = CardInfo{ID: "agent1", Kind: KindAgent, Zone: ZoneDiscard}
	result = checker.CheckStackEntryLegality(entry)
	if result.Legal {
		t.Error("Expected illegal entry (target moved), got legal")
	}

	entry.Targets = []string{"nonexistent"}
	result = checker.CheckStackEntryLegality(entry)
	if result.Legal {
		t.Error("Expected illegal entry (target not found), got legal")
	}
}

func TestLegalityChecker_PartialTargetsStayLegal(t *testing.T) {
	state := newFakeGameState()
	state.players["player1"] = PlayerInfo{PlayerID: "player1", Health: 25}
	state.cards["agent1"] = CardInfo{ID: "agent1", Kind: KindAgent, Zone: ZoneField}
	state.cards["agent2"] = CardInfo{ID: "agent2", Kind: KindAgent, Zone: ZoneDiscard}

	checker := NewLegalityChecker(state)

	entry := StackEntry{
		ID:         "entry1",
		Controller: "player1",
		Targets:    []string{"agent1", "agent2"},
	}

	result := checker.CheckStackEntryLegality(entry)
	if !result.Legal {
		t.Errorf("Expected legal entry with one valid target, got illegal: %s", result.Reason)
	}
}

func TestCheckPlayTimingQuickhack(t *testing.T) {
	checker := NewLegalityChecker(newFakeGameState())

	// A quickhack only needs priority, even off-turn with a busy stack.
	result := checker.CheckPlayTiming(KindQuickhack, PlayContext{
		PlayerID:        "player2",
		ActivePlayer:    "player1",
		StackEmpty:      false,
		HoldingPriority: true,
	})
	if !result.Legal {
		t.Errorf("Expected quickhack legal, got: %s", result.Reason)
	}

	result = checker.CheckPlayTiming(KindQuickhack, PlayContext{
		PlayerID:        "player2",
		ActivePlayer:    "player1",
		HoldingPriority: false,
	})
	if result.Legal {
		t.Error("Expected illegal without priority")
	}
}

func TestCheckPlayTimingSlowCards(t *testing.T) {
	checker := NewLegalityChecker(newFakeGameState())

	base := PlayContext{
		PlayerID:        "player1",
		ActivePlayer:    "player1",
		StackEmpty:      true,
		HoldingPriority: true,
	}

	for _, kind := range []string{KindProgram, KindAgent, KindBuilding} {
		if result := checker.CheckPlayTiming(kind, base); !result.Legal {
			t.Errorf("Expected %s legal for the active player, got: %s", kind, result.Reason)
		}
	}

	offTurn := base
	offTurn.PlayerID = "player2"
	if result := checker.CheckPlayTiming(KindAgent, offTurn); result.Legal {
		t.Error("Expected agent illegal off-turn")
	}

	busyStack := base
	busyStack.StackEmpty = false
	if result := checker.CheckPlayTiming(KindProgram, busyStack); result.Legal {
		t.Error("Expected program illegal with non-empty stack")
	}
}

func TestCheckPlayTimingBuildingLimit(t *testing.T) {
	checker := NewLegalityChecker(newFakeGameState())

	ctx := PlayContext{
		PlayerID:        "player1",
		ActivePlayer:    "player1",
		StackEmpty:      true,
		HoldingPriority: true,
		BuildingsTurn:   1,
	}

	if result := checker.CheckPlayTiming(KindBuilding, ctx); result.Legal {
		t.Error("Expected second building this turn to be illegal")
	}
	if result := checker.CheckPlayTiming(KindAgent, ctx); !result.Legal {
		t.Errorf("Expected agent unaffected by building limit, got: %s", result.Reason)
	}
}
