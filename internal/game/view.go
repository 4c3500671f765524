package game

import (
	"time"

	"github.com/technomancy/server-go/internal/game/rules"
	"github.com/technomancy/server-go/internal/game/scrip"
)

// PlayerView is one player's visible slice of the game: their own hand, the
// shared field and stack, and counts for everything hidden.
type PlayerView struct {
	GameID         string         `json:"game_id"`
	State          State          `json:"state"`
	Turn           int            `json:"turn"`
	Phase          string         `json:"phase"`
	ActivePlayerID string         `json:"active_player"`
	PriorityPlayer string         `json:"priority_player"`
	You            SelfView       `json:"you"`
	Playable       []string       `json:"playable,omitempty"`
	Opponents      []OpponentView `json:"opponents,omitempty"`
	Field          []CardView     `json:"field,omitempty"`
	Stack          []StackView    `json:"stack,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// SelfView is the viewing player's own state.
type SelfView struct {
	PlayerID  string             `json:"player_id"`
	Name      string             `json:"name"`
	Health    int                `json:"health"`
	Hand      []CardView         `json:"hand,omitempty"`
	DeckCount int                `json:"deck_count"`
	Discard   []CardView         `json:"discard,omitempty"`
	Pool      map[scrip.Kind]int `json:"pool,omitempty"`
	KeptHand  bool               `json:"kept_hand"`
}

// OpponentView hides an opponent's hand and deck behind counts.
type OpponentView struct {
	PlayerID  string             `json:"player_id"`
	Name      string             `json:"name"`
	Health    int                `json:"health"`
	HandCount int                `json:"hand_count"`
	DeckCount int                `json:"deck_count"`
	Discard   []CardView         `json:"discard,omitempty"`
	Pool      map[scrip.Kind]int `json:"pool,omitempty"`
}

// CardView is the visible face of a card instance.
type CardView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Subkind    string `json:"subkind,omitempty"`
	Cost       string `json:"cost"`
	Power      int    `json:"power"`
	Health     int    `json:"health"`
	Damage     int    `json:"damage"`
	Text       string `json:"text,omitempty"`
	Controller string `json:"controller"`
	OwnerID    string `json:"owner"`
}

// StackView is one pending stack entry, bottom first in PlayerView.Stack.
type StackView struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Controller  string   `json:"controller"`
	Targets     []string `json:"targets,omitempty"`
}

// FinalStateReport summarizes a finished game.
type FinalStateReport struct {
	GameID     string          `json:"game_id"`
	WinnerID   string          `json:"winner_id"`
	Reason     string          `json:"reason"`
	Turns      int             `json:"turns"`
	HistoryLen int             `json:"history_len"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Analytics  AnalyticsReport `json:"analytics"`
}

// playableCards lists the hand cards whose timing is currently legal for
// the player. Payment is not pre-checked here since it depends on which
// abilities the player chooses to activate; the play itself re-validates.
func (s *Session) playableCards(playerID string) []string {
	var out []string
	for _, id := range s.store.ZoneList(Zone{Kind: rules.ZoneHand, Player: playerID}) {
		inst, ok := s.store.Card(id)
		if !ok {
			continue
		}
		result := s.legality.CheckPlayTiming(string(inst.Kind()), rules.PlayContext{
			PlayerID:        playerID,
			ActivePlayer:    s.turns.ActivePlayer(),
			StackEmpty:      s.stack.IsEmpty(),
			BuildingsTurn:   s.buildings.Count(playerID),
			HoldingPriority: s.turns.PriorityPlayer() == playerID,
		})
		if result.Legal {
			out = append(out, id)
		}
	}
	return out
}

func (s *Session) buildCardView(cardID string) CardView {
	inst, ok := s.store.Card(cardID)
	if !ok {
		return CardView{ID: cardID}
	}
	return CardView{
		ID:         inst.ID,
		Name:       inst.Name(),
		Kind:       string(inst.Kind()),
		Subkind:    inst.Definition.Subkind,
		Cost:       inst.Definition.Cost.String(),
		Power:      s.store.EffectivePower(cardID),
		Health:     s.store.EffectiveHealth(cardID),
		Damage:     inst.Damage,
		Text:       inst.Definition.Text,
		Controller: s.store.Controller(cardID),
		OwnerID:    inst.OwnerID,
	}
}

func (s *Session) buildCardViews(ids []string) []CardView {
	views := make([]CardView, 0, len(ids))
	for _, id := range ids {
		views = append(views, s.buildCardView(id))
	}
	return views
}

// buildPlayerView assembles the visible state for one player.
func (s *Session) buildPlayerView(playerID string) PlayerView {
	view := PlayerView{
		GameID:    s.gameID,
		State:     s.State(),
		UpdatedAt: time.Now(),
	}
	if s.turns != nil {
		view.Turn = s.turns.TurnNumber()
		view.Phase = s.turns.CurrentPhase().String()
		view.ActivePlayerID = s.turns.ActivePlayer()
		view.PriorityPlayer = s.turns.PriorityPlayer()
		if view.State == StateNormal && view.PriorityPlayer == playerID {
			view.Playable = s.playableCards(playerID)
		}
	}

	for _, id := range s.store.PlayerOrder() {
		p, ok := s.store.PlayerSnapshot(id)
		if !ok {
			continue
		}
		discard := s.buildCardViews(s.store.ZoneList(Zone{Kind: rules.ZoneDiscard, Player: id}))
		deckCount := s.store.ZoneSize(Zone{Kind: rules.ZoneDeck, Player: id})
		handIDs := s.store.ZoneList(Zone{Kind: rules.ZoneHand, Player: id})

		if id == playerID {
			view.You = SelfView{
				PlayerID:  p.PlayerID,
				Name:      p.Name,
				Health:    p.Health,
				Hand:      s.buildCardViews(handIDs),
				DeckCount: deckCount,
				Discard:   discard,
				Pool:      p.Pool.Snapshot(),
				KeptHand:  p.KeptHand,
			}
		} else {
			view.Opponents = append(view.Opponents, OpponentView{
				PlayerID:  p.PlayerID,
				Name:      p.Name,
				Health:    p.Health,
				HandCount: len(handIDs),
				DeckCount: deckCount,
				Discard:   discard,
				Pool:      p.Pool.Snapshot(),
			})
		}
	}

	view.Field = s.buildCardViews(s.store.ZoneList(Zone{Kind: rules.ZoneField}))

	for _, entry := range s.stack.List() {
		view.Stack = append(view.Stack, StackView{
			ID:          entry.ID,
			Description: entry.Description,
			Controller:  entry.Controller,
			Targets:     entry.Targets,
		})
	}

	return view
}
