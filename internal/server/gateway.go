package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/technomancy/server-go/internal/game"
)

// WSGateway adapts one websocket connection into a game.PlayerGateway. The
// session goroutine blocks in request until the connection's read pump
// delivers a reply with the matching request ID, or the context ends.
type WSGateway struct {
	gameID   string
	playerID string
	send     func(Envelope) error

	mu      sync.Mutex
	pending map[string]chan json.RawMessage
}

// NewWSGateway creates a gateway writing through the given send function.
func NewWSGateway(gameID, playerID string, send func(Envelope) error) *WSGateway {
	return &WSGateway{
		gameID:   gameID,
		playerID: playerID,
		send:     send,
		pending:  make(map[string]chan json.RawMessage),
	}
}

// Resolve hands an incoming reply to the waiting request. It returns false
// when no request with that ID is outstanding.
func (g *WSGateway) Resolve(requestID string, payload json.RawMessage) bool {
	g.mu.Lock()
	ch, ok := g.pending[requestID]
	if ok {
		delete(g.pending, requestID)
	}
	g.mu.Unlock()
	if !ok {
		return false
	}
	ch <- payload
	return true
}

func (g *WSGateway) request(ctx context.Context, msgType MessageType, payload any) (json.RawMessage, error) {
	env, err := NewEnvelope(msgType, payload)
	if err != nil {
		return nil, err
	}
	env.RequestID = uuid.NewString()
	env.GameID = g.gameID
	env.PlayerID = g.playerID

	ch := make(chan json.RawMessage, 1)
	g.mu.Lock()
	g.pending[env.RequestID] = ch
	g.mu.Unlock()

	if err := g.send(env); err != nil {
		g.mu.Lock()
		delete(g.pending, env.RequestID)
		g.mu.Unlock()
		return nil, fmt.Errorf("send %s: %w", msgType, err)
	}

	select {
	case reply := <-ch:
		return reply, nil
	case <-ctx.Done():
		g.mu.Lock()
		delete(g.pending, env.RequestID)
		g.mu.Unlock()
		return nil, ctx.Err()
	}
}

// SyncState implements game.PlayerGateway.
func (g *WSGateway) SyncState(_ context.Context, view game.PlayerView) error {
	env, err := NewEnvelope(TypeGameState, StatePayload{View: view})
	if err != nil {
		return err
	}
	env.GameID = g.gameID
	env.PlayerID = g.playerID
	return g.send(env)
}

// RequestKeepDecision implements game.PlayerGateway.
func (g *WSGateway) RequestKeepDecision(ctx context.Context, hand []game.CardView) (bool, error) {
	raw, err := g.request(ctx, TypeKeepRequest, KeepRequestPayload{Hand: hand})
	if err != nil {
		return false, err
	}
	var reply KeepReplyPayload
	if err := json.Unmarshal(raw, &reply); err != nil {
		return false, fmt.Errorf("%w: %v", game.ErrProtocolViolation, err)
	}
	return reply.Keep, nil
}

// RequestAction implements game.PlayerGateway.
func (g *WSGateway) RequestAction(ctx context.Context, view game.PlayerView) (game.Action, error) {
	raw, err := g.request(ctx, TypeActionRequest, ActionRequestPayload{View: view})
	if err != nil {
		return game.Action{}, err
	}
	var reply ActionReplyPayload
	if err := json.Unmarshal(raw, &reply); err != nil {
		return game.Action{}, fmt.Errorf("%w: %v", game.ErrProtocolViolation, err)
	}
	return reply.Action, nil
}

// RequestChoices implements game.PlayerGateway.
func (g *WSGateway) RequestChoices(ctx context.Context, prompt string, options []game.Choice, min, max int) ([]string, error) {
	raw, err := g.request(ctx, TypeChoicesRequest, ChoicesRequestPayload{
		Prompt:  prompt,
		Options: options,
		Min:     min,
		Max:     max,
	})
	if err != nil {
		return nil, err
	}
	var reply ChoicesReplyPayload
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("%w: %v", game.ErrProtocolViolation, err)
	}
	return reply.Picked, nil
}
