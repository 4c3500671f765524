package game

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/technomancy/server-go/internal/cards"
)

// Engine owns every live session. It hands out game IDs, starts and stops
// session goroutines and answers state queries from the transport layer.
type Engine struct {
	mu       sync.Mutex
	sessions map[string]*Session
	cancels  map[string]context.CancelFunc

	catalog *cards.Catalog
	effects *EffectRegistry
	logger  *zap.Logger

	onFinished func(FinalStateReport)
}

// NewEngine creates an engine backed by the given card catalog.
func NewEngine(catalog *cards.Catalog, logger *zap.Logger) *Engine {
	return &Engine{
		sessions: make(map[string]*Session),
		cancels:  make(map[string]context.CancelFunc),
		catalog:  catalog,
		effects:  DefaultEffects(),
		logger:   logger,
	}
}

// Effects exposes the effect registry so servers can add custom effects
// before games start.
func (e *Engine) Effects() *EffectRegistry {
	return e.effects
}

// OnFinished registers a callback receiving the final report of every game.
// Used by the repository layer to persist results.
func (e *Engine) OnFinished(fn func(FinalStateReport)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onFinished = fn
}

// CreateGame builds a session and returns its ID. The session does not run
// until StartGame.
func (e *Engine) CreateGame(cfg Config) (string, error) {
	gameID := uuid.NewString()
	session, err := NewSession(gameID, cfg, e.catalog, e.effects, e.logger)
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	e.sessions[gameID] = session
	finished := e.onFinished
	e.mu.Unlock()

	if finished != nil {
		session.OnFinished(func(s *Session) {
			// callbacks run off the session goroutine so a slow
			// persistence layer cannot stall the game teardown
			go finished(s.FinalReport())
		})
	}

	if e.logger != nil {
		e.logger.Info("game created",
			zap.String("game_id", gameID),
			zap.String("mode", cfg.Mode.Name),
			zap.Int("players", len(cfg.Players)))
	}
	return gameID, nil
}

// Session returns the session for a game ID.
func (e *Engine) Session(gameID string) (*Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	session, ok := e.sessions[gameID]
	if !ok {
		return nil, fmt.Errorf("game %s: %w", gameID, ErrGameNotFound)
	}
	return session, nil
}

// AttachGateway binds a player's gateway to a created game.
func (e *Engine) AttachGateway(gameID, playerID string, gw PlayerGateway) error {
	session, err := e.Session(gameID)
	if err != nil {
		return err
	}
	session.AttachGateway(playerID, gw)
	return nil
}

// StartGame runs the session on its own goroutine. The parent context bounds
// the whole game; Abort cancels it early.
func (e *Engine) StartGame(ctx context.Context, gameID string) error {
	session, err := e.Session(gameID)
	if err != nil {
		return err
	}
	if session.State() != StateCreated {
		return fmt.Errorf("%w: game %s already started", ErrIllegalAction, gameID)
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancels[gameID] = cancel
	e.mu.Unlock()

	go func() {
		defer cancel()
		if err := session.Run(runCtx); err != nil && e.logger != nil {
			e.logger.Warn("session ended abnormally",
				zap.String("game_id", gameID),
				zap.Error(err))
		}
		e.mu.Lock()
		delete(e.cancels, gameID)
		e.mu.Unlock()
	}()
	return nil
}

// Concede concedes the game for one player.
func (e *Engine) Concede(gameID, playerID string) error {
	session, err := e.Session(gameID)
	if err != nil {
		return err
	}
	session.Concede(playerID, "concede")
	return nil
}

// Abort cancels a running game without a winner.
func (e *Engine) Abort(gameID string) error {
	e.mu.Lock()
	cancel, ok := e.cancels[gameID]
	e.mu.Unlock()
	if !ok {
		_, err := e.Session(gameID)
		if err != nil {
			return err
		}
		return nil
	}
	cancel()
	return nil
}

// GameView builds the current view of a game for one player.
func (e *Engine) GameView(gameID, playerID string) (PlayerView, error) {
	session, err := e.Session(gameID)
	if err != nil {
		return PlayerView{}, err
	}
	return session.buildPlayerView(playerID), nil
}

// FinalReport returns the result of a finished game.
func (e *Engine) FinalReport(gameID string) (FinalStateReport, error) {
	session, err := e.Session(gameID)
	if err != nil {
		return FinalStateReport{}, err
	}
	if session.State() != StateFinished {
		return FinalStateReport{}, fmt.Errorf("%w: game %s still running", ErrIllegalAction, gameID)
	}
	return session.FinalReport(), nil
}

// RemoveGame drops a finished or aborted game from the registry.
func (e *Engine) RemoveGame(gameID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cancel, ok := e.cancels[gameID]; ok {
		cancel()
		delete(e.cancels, gameID)
	}
	delete(e.sessions, gameID)
}

// GameCount returns the number of registered games.
func (e *Engine) GameCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}
