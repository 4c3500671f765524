package rules

import (
	"fmt"
)

// Zone identifiers shared across the rules package.
const (
	ZoneDeck = iota
	ZoneHand
	ZoneField
	ZoneDiscard
	ZoneStack
)

// Card kind names as the legality layer sees them.
const (
	KindQuickhack = "QUICKHACK"
	KindProgram   = "PROGRAM"
	KindAgent     = "AGENT"
	KindBuilding  = "BUILDING"
)

// LegalityChecker validates play timing and stack entries before resolution.
type LegalityChecker struct {
	gameState GameStateAccessor
}

// GameStateAccessor provides access to game state needed for legality checks.
type GameStateAccessor interface {
	// FindCard finds a card by ID in any zone
	FindCard(cardID string) (CardInfo, bool)
	// FindPlayer finds player info by ID
	FindPlayer(playerID string) (PlayerInfo, bool)
	// GetCardZone returns the zone a card is currently in
	GetCardZone(cardID string) (int, bool)
}

// CardInfo provides information about a card for legality checks.
type CardInfo struct {
	ID           string
	Name         string
	Kind         string
	Zone         int
	ControllerID string
	OwnerID      string
}

// PlayerInfo provides information about a player for legality checks.
type PlayerInfo struct {
	PlayerID string
	Name     string
	Health   int
	Lost     bool
	Left     bool
}

// LegalityResult represents the result of a legality check.
type LegalityResult struct {
	Legal   bool
	Reason  string
	Details map[string]string
}

// NewLegalityChecker creates a new legality checker.
func NewLegalityChecker(gameState GameStateAccessor) *LegalityChecker {
	return &LegalityChecker{
		gameState: gameState,
	}
}

// PlayContext captures the state relevant to play-timing checks.
type PlayContext struct {
	PlayerID        string
	ActivePlayer    string
	StackEmpty      bool
	BuildingsTurn   int
	HoldingPriority bool
}

// CheckPlayTiming validates whether a card of the given kind may be played
// right now. Quickhacks go whenever the player holds priority; every other
// kind needs the active player and an empty stack. At most one building may
// be played per turn.
func (lc *LegalityChecker) CheckPlayTiming(kind string, ctx PlayContext) LegalityResult {
	if !ctx.HoldingPriority {
		return LegalityResult{
			Legal:  false,
			Reason: "Player does not hold priority",
		}
	}

	if kind == KindQuickhack {
		return LegalityResult{Legal: true, Reason: "Quickhack timing satisfied"}
	}

	if ctx.PlayerID != ctx.ActivePlayer {
		return LegalityResult{
			Legal:  false,
			Reason: "Only the active player may play this card",
			Details: map[string]string{
				"kind": kind,
			},
		}
	}
	if !ctx.StackEmpty {
		return LegalityResult{
			Legal:  false,
			Reason: "Stack must be empty",
			Details: map[string]string{
				"kind": kind,
			},
		}
	}
	if kind == KindBuilding && ctx.BuildingsTurn >= 1 {
		return LegalityResult{
			Legal:  false,
			Reason: "Only one building may be played per turn",
		}
	}

	return LegalityResult{Legal: true, Reason: "Timing satisfied"}
}

// CheckStackEntryLegality validates a stack entry before resolution. An
// entry is illegal when its controller left the game or when all of its
// declared targets have become invalid.
func (lc *LegalityChecker) CheckStackEntryLegality(entry StackEntry) LegalityResult {
	if lc == nil || lc.gameState == nil {
		return LegalityResult{
			Legal:  true,
			Reason: "Legality checker not initialized",
		}
	}

	if entry.Controller != "" {
		player, found := lc.gameState.FindPlayer(entry.Controller)
		if !found {
			return LegalityResult{
				Legal:  false,
				Reason: "Controller not found",
				Details: map[string]string{
					"controller_id": entry.Controller,
				},
			}
		}
		if player.Lost || player.Left {
			return LegalityResult{
				Legal:  false,
				Reason: "Controller has left or lost the game",
				Details: map[string]string{
					"controller_id": entry.Controller,
				},
			}
		}
	}

	if len(entry.Targets) > 0 {
		if result := lc.validateTargets(entry.Targets); !result.Legal {
			return result
		}
	}

	return LegalityResult{
		Legal:  true,
		Reason: "All legality checks passed",
	}
}

// validateTargets checks whether any declared target is still legal. Targets
// are fixed at play time, so an entry stays legal as long as at least one
// target remains valid; it fizzles only when every target is gone.
func (lc *LegalityChecker) validateTargets(targets []string) LegalityResult {
	validCount := 0
	var invalid []string

	for _, targetID := range targets {
		if _, found := lc.gameState.FindCard(targetID); found {
			zone, hasZone := lc.gameState.GetCardZone(targetID)
			if hasZone && zone == ZoneField {
				validCount++
				continue
			}
			invalid = append(invalid, fmt.Sprintf("%s (zone)", targetID))
		} else if player, found := lc.gameState.FindPlayer(targetID); found {
			if !player.Lost && !player.Left {
				validCount++
				continue
			}
			invalid = append(invalid, fmt.Sprintf("%s (lost/left)", targetID))
		} else {
			invalid = append(invalid, fmt.Sprintf("%s (not found)", targetID))
		}
	}

	if validCount == 0 {
		return LegalityResult{
			Legal:  false,
			Reason: "All targets are illegal",
			Details: map[string]string{
				"invalid_targets": fmt.Sprintf("%v", invalid),
			},
		}
	}

	return LegalityResult{
		Legal:  true,
		Reason: "At least one target is legal",
	}
}
