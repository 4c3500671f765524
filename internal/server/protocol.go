package server

import (
	"encoding/json"
	"fmt"

	"github.com/technomancy/server-go/internal/game"
)

// ProtocolVersion is bumped on any incompatible envelope change. Both sides
// reject envelopes carrying a different version.
const ProtocolVersion = 1

// MessageType discriminates websocket envelopes.
type MessageType string

const (
	// client to server
	TypeCreateGame   MessageType = "create_game"
	TypeJoinGame     MessageType = "join_game"
	TypeStartGame    MessageType = "start_game"
	TypeActionReply  MessageType = "action_reply"
	TypeKeepReply    MessageType = "keep_reply"
	TypeChoicesReply MessageType = "choices_reply"
	TypeConcede      MessageType = "concede"

	// server to client
	TypeGameCreated    MessageType = "game_created"
	TypeGameState      MessageType = "game_state"
	TypeActionRequest  MessageType = "action_request"
	TypeKeepRequest    MessageType = "keep_request"
	TypeChoicesRequest MessageType = "choices_request"
	TypeGameOver       MessageType = "game_over"
	TypeError          MessageType = "error"
)

// Envelope is the wire frame every message travels in. RequestID correlates
// a server request with the player's reply.
type Envelope struct {
	Version   int             `json:"version"`
	Type      MessageType     `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	GameID    string          `json:"game_id,omitempty"`
	PlayerID  string          `json:"player_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope wraps a payload struct into an envelope.
func NewEnvelope(msgType MessageType, payload any) (Envelope, error) {
	env := Envelope{Version: ProtocolVersion, Type: msgType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("encode %s payload: %w", msgType, err)
		}
		env.Payload = raw
	}
	return env, nil
}

// Decode unmarshals the payload into the given struct.
func (e Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s envelope has no payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// PlayerSpec names one participant of a new game.
type PlayerSpec struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Deck []string `json:"deck"`
}

// CreateGamePayload asks the server to build a game.
type CreateGamePayload struct {
	Mode       string       `json:"mode"`
	Seed       int64        `json:"seed,omitempty"`
	Disconnect string       `json:"disconnect,omitempty"`
	Players    []PlayerSpec `json:"players"`
}

// GameCreatedPayload answers a create request.
type GameCreatedPayload struct {
	GameID string `json:"game_id"`
}

// ActionRequestPayload asks the priority player for an action.
type ActionRequestPayload struct {
	View game.PlayerView `json:"view"`
}

// ActionReplyPayload carries the chosen action.
type ActionReplyPayload struct {
	Action game.Action `json:"action"`
}

// KeepRequestPayload asks for a mulligan decision.
type KeepRequestPayload struct {
	Hand []game.CardView `json:"hand"`
}

// KeepReplyPayload answers a keep request.
type KeepReplyPayload struct {
	Keep bool `json:"keep"`
}

// ChoicesRequestPayload offers options during a forced choice.
type ChoicesRequestPayload struct {
	Prompt  string        `json:"prompt"`
	Options []game.Choice `json:"options"`
	Min     int           `json:"min"`
	Max     int           `json:"max"`
}

// ChoicesReplyPayload names the chosen option IDs.
type ChoicesReplyPayload struct {
	Picked []string `json:"picked"`
}

// StatePayload pushes a fresh view.
type StatePayload struct {
	View game.PlayerView `json:"view"`
}

// GameOverPayload reports the final result.
type GameOverPayload struct {
	Report game.FinalStateReport `json:"report"`
}

// ErrorPayload reports a rejected request.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
