package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/technomancy/server-go/internal/cards"
	"github.com/technomancy/server-go/internal/game"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	catalog := cards.NewCatalog()
	catalog.Register(&cards.Definition{Name: "Idle", Kind: cards.KindProgram})

	s := NewServer(game.NewEngine(catalog, nil), nil)
	s.RegisterMode(game.Mode{
		Name:           "test",
		StartingHealth: 20,
		HandLimit:      6,
		StartingHand:   3,
	})
	return s
}

func testClient(s *Server) *client {
	c := &client{
		send:   make(chan Envelope, 16),
		server: s,
	}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	return c
}

func mustEnvelope(t *testing.T, msgType MessageType, payload any) Envelope {
	t.Helper()
	env, err := NewEnvelope(msgType, payload)
	require.NoError(t, err)
	return env
}

func receive(t *testing.T, c *client) Envelope {
	t.Helper()
	select {
	case env := <-c.send:
		return env
	default:
		t.Fatal("expected a queued envelope")
		return Envelope{}
	}
}

func TestCreateThenJoinGame(t *testing.T) {
	s := testServer(t)
	c := testClient(s)

	deck := []string{"Idle", "Idle", "Idle"}
	create := mustEnvelope(t, TypeCreateGame, CreateGamePayload{
		Mode: "test",
		Seed: 7,
		Players: []PlayerSpec{
			{ID: "alice", Name: "Alice", Deck: deck},
			{ID: "bob", Name: "Bob", Deck: deck},
		},
	})
	create.RequestID = "req-1"
	s.handleEnvelope(c, create)

	reply := receive(t, c)
	require.Equal(t, TypeGameCreated, reply.Type)
	require.Equal(t, "req-1", reply.RequestID)

	var created GameCreatedPayload
	require.NoError(t, reply.Decode(&created))
	require.NotEmpty(t, created.GameID)
	require.Equal(t, 1, s.engine.GameCount())

	join := mustEnvelope(t, TypeJoinGame, nil)
	join.GameID = created.GameID
	join.PlayerID = "alice"
	s.handleEnvelope(c, join)

	state := receive(t, c)
	require.Equal(t, TypeGameState, state.Type)
	var payload StatePayload
	require.NoError(t, state.Decode(&payload))
	require.Equal(t, created.GameID, payload.View.GameID)
	require.Equal(t, "alice", payload.View.You.PlayerID)
}

func TestCreateWithUnknownModeRejected(t *testing.T) {
	s := testServer(t)
	c := testClient(s)

	create := mustEnvelope(t, TypeCreateGame, CreateGamePayload{Mode: "nope"})
	s.handleEnvelope(c, create)

	reply := receive(t, c)
	require.Equal(t, TypeError, reply.Type)
	var errPayload ErrorPayload
	require.NoError(t, reply.Decode(&errPayload))
	require.Equal(t, "bad_mode", errPayload.Code)
}

func TestCreateAppliesDefaultDisconnectPolicy(t *testing.T) {
	s := testServer(t)
	s.SetDefaultDisconnectPolicy(game.PolicyForfeit)
	c := testClient(s)

	deck := []string{"Idle"}
	create := mustEnvelope(t, TypeCreateGame, CreateGamePayload{
		Mode: "test",
		Players: []PlayerSpec{
			{ID: "alice", Deck: deck},
			{ID: "bob", Deck: deck},
		},
	})
	s.handleEnvelope(c, create)

	reply := receive(t, c)
	require.Equal(t, TypeGameCreated, reply.Type)
}

func TestReplyWithoutJoinRejected(t *testing.T) {
	s := testServer(t)
	c := testClient(s)

	reply := Envelope{
		Version:   ProtocolVersion,
		Type:      TypeActionReply,
		RequestID: "orphan",
		Payload:   json.RawMessage(`{"action":{"type":"PASS"}}`),
	}
	s.handleEnvelope(c, reply)

	errEnv := receive(t, c)
	require.Equal(t, TypeError, errEnv.Type)
	var errPayload ErrorPayload
	require.NoError(t, errEnv.Decode(&errPayload))
	require.Equal(t, "not_joined", errPayload.Code)
}

func TestGatewaySendAfterDisconnectFailsCleanly(t *testing.T) {
	s := testServer(t)
	c := testClient(s)
	gw := NewWSGateway("game-1", "alice", c.enqueue)

	// tear the client down the way the read pump does on connection loss
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	close(c.send)

	err := gw.SyncState(context.Background(), game.PlayerView{GameID: "game-1"})
	require.Error(t, err)

	_, err = gw.RequestKeepDecision(context.Background(), nil)
	require.Error(t, err)
}

func TestShutdownContextTerminatesSessions(t *testing.T) {
	s := testServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	s.SetBaseContext(ctx)
	c := testClient(s)

	deck := make([]string, 0, 40)
	for i := 0; i < 40; i++ {
		deck = append(deck, "Idle")
	}
	create := mustEnvelope(t, TypeCreateGame, CreateGamePayload{
		Mode: "test",
		Players: []PlayerSpec{
			{ID: "alice", Deck: deck},
			{ID: "bob", Deck: deck},
		},
	})
	s.handleEnvelope(c, create)
	reply := receive(t, c)
	var created GameCreatedPayload
	require.NoError(t, reply.Decode(&created))

	// alice joins so the session blocks awaiting her replies
	join := mustEnvelope(t, TypeJoinGame, nil)
	join.GameID = created.GameID
	join.PlayerID = "alice"
	s.handleEnvelope(c, join)
	<-c.send // initial state push

	start := mustEnvelope(t, TypeStartGame, nil)
	start.GameID = created.GameID
	s.handleEnvelope(c, start)

	// wait for the first engine-initiated request, then pull the plug
	select {
	case <-c.send:
	case <-time.After(5 * time.Second):
		t.Fatal("expected an engine request")
	}
	cancel()

	session, err := s.engine.Session(created.GameID)
	require.NoError(t, err)
	deadline := time.Now().Add(5 * time.Second)
	for session.State() != game.StateFinished {
		if time.Now().After(deadline) {
			t.Fatal("session did not terminate on shutdown")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestGameOverBroadcastTargetsGameClients(t *testing.T) {
	s := testServer(t)
	inGame := testClient(s)
	other := testClient(s)

	inGame.mu.Lock()
	inGame.game = "game-1"
	inGame.mu.Unlock()
	other.mu.Lock()
	other.game = "game-2"
	other.mu.Unlock()

	s.NotifyGameOver(game.FinalStateReport{GameID: "game-1", WinnerID: "alice"})

	env := receive(t, inGame)
	require.Equal(t, TypeGameOver, env.Type)
	require.Equal(t, "game-1", env.GameID)

	select {
	case env := <-other.send:
		t.Fatalf("client of another game received %s", env.Type)
	default:
	}
}
