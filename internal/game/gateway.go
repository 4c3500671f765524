package game

import (
	"context"
)

// ActionType enumerates what a player may do when asked for an action.
type ActionType string

const (
	// ActionPass passes priority.
	ActionPass ActionType = "PASS"
	// ActionPlayCard plays a card from hand with fixed targets and modes.
	ActionPlayCard ActionType = "PLAY_CARD"
	// ActionConcede concedes the game.
	ActionConcede ActionType = "CONCEDE"
)

// Action is a player's reply to RequestAction. Targets and modes are fixed
// here and never re-chosen later; Activations names ability indices on cards
// the player controls, run during cost payment.
type Action struct {
	Type        ActionType   `json:"type"`
	CardID      string       `json:"card_id,omitempty"`
	Targets     []string     `json:"targets,omitempty"`
	Modes       []string     `json:"modes,omitempty"`
	Activations []AbilityRef `json:"activations,omitempty"`
}

// AbilityRef points at one activated ability on a fielded card.
type AbilityRef struct {
	CardID string `json:"card_id"`
	Index  int    `json:"index"`
}

// Choice is one selectable option offered to a player.
type Choice struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// PlayerGateway is the engine's window to one player. Every call suspends
// the session until the player (or the policy acting for them) replies; the
// context carries session cancellation. Replies are re-validated against
// current game state before being applied.
type PlayerGateway interface {
	// SyncState pushes the player's current view. Best effort; an error
	// triggers the session's disconnect policy.
	SyncState(ctx context.Context, view PlayerView) error

	// RequestKeepDecision asks whether to keep the drawn hand.
	RequestKeepDecision(ctx context.Context, hand []CardView) (bool, error)

	// RequestAction asks the priority player for their next action.
	RequestAction(ctx context.Context, view PlayerView) (Action, error)

	// RequestChoices asks the player to pick between min and max of the
	// offered options. The reply must name offered IDs only.
	RequestChoices(ctx context.Context, prompt string, options []Choice, min, max int) ([]string, error)
}
