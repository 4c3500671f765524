package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	env, err := NewEnvelope(TypeCreateGame, CreateGamePayload{
		Mode: "matrix",
		Players: []PlayerSpec{
			{ID: "alice", Name: "Alice", Deck: []string{"Zap", "Zap"}},
			{ID: "bob", Name: "Bob", Deck: []string{"Spike"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, ProtocolVersion, env.Version)

	raw, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded Envelope
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, TypeCreateGame, decoded.Type)

	var payload CreateGamePayload
	require.NoError(t, decoded.Decode(&payload))
	assert.Equal(t, "matrix", payload.Mode)
	assert.Len(t, payload.Players, 2)
	assert.Equal(t, []string{"Zap", "Zap"}, payload.Players[0].Deck)
}

func TestEnvelopeWithoutPayload(t *testing.T) {
	env, err := NewEnvelope(TypeStartGame, nil)
	require.NoError(t, err)
	assert.Empty(t, env.Payload)

	var payload CreateGamePayload
	assert.Error(t, env.Decode(&payload))
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	env := Envelope{
		Version: ProtocolVersion,
		Type:    TypeKeepReply,
		Payload: json.RawMessage(`{"keep": "not-a-bool"}`),
	}
	var payload KeepReplyPayload
	assert.Error(t, env.Decode(&payload))
}
