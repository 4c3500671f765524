package game

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Mode: Mode{Name: "test", StartingHealth: 20, HandLimit: 6, StartingHand: 3},
		Players: []PlayerSetup{
			{PlayerID: "alice", Name: "Alice", Cards: testDeck()},
			{PlayerID: "bob", Name: "Bob", Cards: testDeck()},
		},
		Seed: 99,
	}
}

func TestEngineCreateAndQuery(t *testing.T) {
	engine := NewEngine(testCatalog(), nil)

	gameID, err := engine.CreateGame(testConfig())
	require.NoError(t, err)
	require.NotEmpty(t, gameID)
	assert.Equal(t, 1, engine.GameCount())

	session, err := engine.Session(gameID)
	require.NoError(t, err)
	assert.Equal(t, StateCreated, session.State())

	_, err = engine.Session("nope")
	assert.True(t, errors.Is(err, ErrGameNotFound))

	_, err = engine.GameView("nope", "alice")
	assert.True(t, errors.Is(err, ErrGameNotFound))
}

func TestEngineRunsGameToCompletion(t *testing.T) {
	engine := NewEngine(testCatalog(), nil)

	var mu sync.Mutex
	var report FinalStateReport
	done := make(chan struct{})
	engine.OnFinished(func(r FinalStateReport) {
		mu.Lock()
		report = r
		mu.Unlock()
		close(done)
	})

	gameID, err := engine.CreateGame(testConfig())
	require.NoError(t, err)

	aliceGW := &fakeGateway{keep: true}
	aliceGW.onAction = func(view PlayerView) Action {
		return Action{Type: ActionConcede}
	}
	require.NoError(t, engine.AttachGateway(gameID, "alice", aliceGW))
	require.NoError(t, engine.AttachGateway(gameID, "bob", &fakeGateway{keep: true}))

	require.NoError(t, engine.StartGame(context.Background(), gameID))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("game did not finish")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, gameID, report.GameID)
	assert.Equal(t, "bob", report.WinnerID)
	assert.Equal(t, "concede", report.Reason)
}

func TestEngineViewsDuringRunningGame(t *testing.T) {
	engine := NewEngine(testCatalog(), nil)

	gameID, err := engine.CreateGame(testConfig())
	require.NoError(t, err)

	done := make(chan struct{})
	engine.OnFinished(func(FinalStateReport) { close(done) })

	var actions int32
	aliceGW := &fakeGateway{keep: true}
	aliceGW.onAction = func(view PlayerView) Action {
		if atomic.AddInt32(&actions, 1) > 40 {
			return Action{Type: ActionConcede}
		}
		return Action{Type: ActionPass}
	}
	require.NoError(t, engine.AttachGateway(gameID, "alice", aliceGW))
	require.NoError(t, engine.AttachGateway(gameID, "bob", &fakeGateway{keep: true}))

	// hammer views from other goroutines while the session runs
	var wg sync.WaitGroup
	stop := make(chan struct{})
	for _, id := range []string{"alice", "bob"} {
		wg.Add(1)
		go func(playerID string) {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if _, err := engine.GameView(gameID, playerID); err != nil {
					return
				}
			}
		}(id)
	}

	require.NoError(t, engine.StartGame(context.Background(), gameID))

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("game did not finish")
	}
	close(stop)
	wg.Wait()

	report, err := engine.FinalReport(gameID)
	require.NoError(t, err)
	assert.Equal(t, "bob", report.WinnerID)
}

func TestEngineAbortTerminatesSession(t *testing.T) {
	engine := NewEngine(testCatalog(), nil)
	gameID, err := engine.CreateGame(testConfig())
	require.NoError(t, err)

	// block until cancelled so the abort is what ends the game
	blocked := &fakeGateway{keep: true, block: true}
	require.NoError(t, engine.AttachGateway(gameID, "alice", blocked))
	require.NoError(t, engine.AttachGateway(gameID, "bob", &fakeGateway{keep: true}))
	require.NoError(t, engine.StartGame(context.Background(), gameID))

	require.NoError(t, engine.Abort(gameID))

	session, err := engine.Session(gameID)
	require.NoError(t, err)
	deadline := time.After(5 * time.Second)
	for session.State() != StateFinished {
		select {
		case <-deadline:
			t.Fatal("abort did not finish the session")
		case <-time.After(10 * time.Millisecond):
		}
	}
	report := session.FinalReport()
	assert.Empty(t, report.WinnerID)
	assert.Equal(t, "terminated", report.Reason)
}

func TestEngineDoubleStartRejected(t *testing.T) {
	engine := NewEngine(testCatalog(), nil)
	gameID, err := engine.CreateGame(testConfig())
	require.NoError(t, err)

	require.NoError(t, engine.AttachGateway(gameID, "alice", &fakeGateway{keep: true}))
	require.NoError(t, engine.AttachGateway(gameID, "bob", &fakeGateway{keep: true}))
	require.NoError(t, engine.StartGame(context.Background(), gameID))

	err = engine.StartGame(context.Background(), gameID)
	assert.True(t, errors.Is(err, ErrIllegalAction))

	require.NoError(t, engine.Abort(gameID))
}

func TestEngineRemoveGame(t *testing.T) {
	engine := NewEngine(testCatalog(), nil)
	gameID, err := engine.CreateGame(testConfig())
	require.NoError(t, err)

	engine.RemoveGame(gameID)
	assert.Equal(t, 0, engine.GameCount())
	_, err = engine.Session(gameID)
	assert.True(t, errors.Is(err, ErrGameNotFound))
}

func TestEngineConcurrentGames(t *testing.T) {
	engine := NewEngine(testCatalog(), nil)

	const games = 8
	var wg sync.WaitGroup
	ids := make([]string, games)
	for i := 0; i < games; i++ {
		gameID, err := engine.CreateGame(testConfig())
		require.NoError(t, err)
		ids[i] = gameID

		concede := &fakeGateway{keep: true}
		concede.onAction = func(view PlayerView) Action {
			return Action{Type: ActionConcede}
		}
		require.NoError(t, engine.AttachGateway(gameID, "alice", concede))
		require.NoError(t, engine.AttachGateway(gameID, "bob", &fakeGateway{keep: true}))

		session, err := engine.Session(gameID)
		require.NoError(t, err)
		wg.Add(1)
		session.OnFinished(func(*Session) { wg.Done() })
	}

	for _, id := range ids {
		require.NoError(t, engine.StartGame(context.Background(), id))
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(10 * time.Second):
		t.Fatal("concurrent games did not all finish")
	}

	for _, id := range ids {
		report, err := engine.FinalReport(id)
		require.NoError(t, err)
		assert.Equal(t, "bob", report.WinnerID)
	}
}
