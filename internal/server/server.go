package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/technomancy/server-go/internal/game"
)

// Server exposes the engine over websocket. One connection serves one
// player; game lifecycle commands and in-game replies share the same
// envelope stream.
type Server struct {
	engine *game.Engine
	logger *zap.Logger

	upgrader websocket.Upgrader
	modes    map[string]game.Mode

	recordReplays bool
	defaultPolicy game.DisconnectPolicy
	baseCtx       context.Context

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewServer wires a websocket server around an engine.
func NewServer(engine *game.Engine, logger *zap.Logger) *Server {
	return &Server{
		engine: engine,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		modes: map[string]game.Mode{
			"matrix": game.MatrixMode(),
		},
		clients: make(map[*client]struct{}),
		baseCtx: context.Background(),
	}
}

// SetBaseContext bounds every started session's lifetime. Cancelling the
// context during shutdown terminates running games.
func (s *Server) SetBaseContext(ctx context.Context) {
	if ctx != nil {
		s.baseCtx = ctx
	}
}

// EnableReplayRecording makes every created game record a replay journal.
func (s *Server) EnableReplayRecording() {
	s.recordReplays = true
}

// SetDefaultDisconnectPolicy applies to games whose create request does not
// name a policy.
func (s *Server) SetDefaultDisconnectPolicy(policy game.DisconnectPolicy) {
	s.defaultPolicy = policy
}

// RegisterMode adds a selectable game mode.
func (s *Server) RegisterMode(mode game.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modes[mode.Name] = mode
}

// Routes returns the HTTP mux serving the websocket endpoint.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// NotifyGameOver pushes the final report to every client of the game.
func (s *Server) NotifyGameOver(report game.FinalStateReport) {
	env, err := NewEnvelope(TypeGameOver, GameOverPayload{Report: report})
	if err != nil {
		return
	}
	env.GameID = report.GameID

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		if c.gameID() == report.GameID {
			c.enqueue(env)
		}
	}
}

type client struct {
	conn   *websocket.Conn
	send   chan Envelope
	server *Server

	mu      sync.Mutex
	game    string
	player  string
	gateway *WSGateway
	closed  bool
}

func (c *client) gameID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.game
}

// enqueue hands an envelope to the write pump. A client that cannot keep up
// loses the message; the next state sync supersedes it anyway. Sessions keep
// writing through an attached gateway after the connection dies, so a torn
// down client reports an error instead of reaching the closed channel.
func (c *client) enqueue(env Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	select {
	case c.send <- env:
		return nil
	default:
		return websocket.ErrCloseSent
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("websocket upgrade", zap.Error(err))
		}
		return
	}

	c := &client{
		conn:   conn,
		send:   make(chan Envelope, 64),
		server: s,
	}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	go c.writePump()
	go c.readPump()
}

func (c *client) readPump() {
	defer func() {
		c.server.mu.Lock()
		delete(c.server.clients, c)
		c.server.mu.Unlock()
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.send)
		c.conn.Close()
	}()

	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			return
		}
		if env.Version != ProtocolVersion {
			c.sendError("", "bad_version", "unsupported protocol version")
			continue
		}
		c.server.handleEnvelope(c, env)
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for env := range c.send {
		if err := c.conn.WriteJSON(env); err != nil {
			return
		}
	}
}

func (c *client) sendError(requestID, code, message string) {
	env, err := NewEnvelope(TypeError, ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	env.RequestID = requestID
	c.enqueue(env)
}

func (s *Server) handleEnvelope(c *client, env Envelope) {
	switch env.Type {
	case TypeCreateGame:
		s.handleCreate(c, env)
	case TypeJoinGame:
		s.handleJoin(c, env)
	case TypeStartGame:
		if err := s.engine.StartGame(s.baseCtx, env.GameID); err != nil {
			c.sendError(env.RequestID, "start_failed", err.Error())
		}
	case TypeConcede:
		if err := s.engine.Concede(env.GameID, env.PlayerID); err != nil {
			c.sendError(env.RequestID, "concede_failed", err.Error())
		}
	case TypeActionReply, TypeKeepReply, TypeChoicesReply:
		s.handleReply(c, env)
	default:
		c.sendError(env.RequestID, "bad_type", "unknown message type")
	}
}

func (s *Server) handleCreate(c *client, env Envelope) {
	var payload CreateGamePayload
	if err := env.Decode(&payload); err != nil {
		c.sendError(env.RequestID, "bad_payload", err.Error())
		return
	}

	s.mu.Lock()
	mode, ok := s.modes[payload.Mode]
	s.mu.Unlock()
	if !ok {
		c.sendError(env.RequestID, "bad_mode", "unknown game mode "+payload.Mode)
		return
	}

	policy := game.DisconnectPolicy(payload.Disconnect)
	if policy == "" {
		policy = s.defaultPolicy
	}
	cfg := game.Config{
		Mode:         mode,
		Seed:         payload.Seed,
		Disconnect:   policy,
		RecordReplay: s.recordReplays,
	}
	for _, ps := range payload.Players {
		cfg.Players = append(cfg.Players, game.PlayerSetup{
			PlayerID: ps.ID,
			Name:     ps.Name,
			Cards:    ps.Deck,
		})
	}

	gameID, err := s.engine.CreateGame(cfg)
	if err != nil {
		c.sendError(env.RequestID, "create_failed", err.Error())
		return
	}

	reply, err := NewEnvelope(TypeGameCreated, GameCreatedPayload{GameID: gameID})
	if err != nil {
		return
	}
	reply.RequestID = env.RequestID
	reply.GameID = gameID
	c.enqueue(reply)
}

func (s *Server) handleJoin(c *client, env Envelope) {
	gw := NewWSGateway(env.GameID, env.PlayerID, c.enqueue)
	if err := s.engine.AttachGateway(env.GameID, env.PlayerID, gw); err != nil {
		c.sendError(env.RequestID, "join_failed", err.Error())
		return
	}

	c.mu.Lock()
	c.game = env.GameID
	c.player = env.PlayerID
	c.gateway = gw
	c.mu.Unlock()

	if s.logger != nil {
		s.logger.Info("player joined",
			zap.String("game_id", env.GameID),
			zap.String("player_id", env.PlayerID))
	}

	view, err := s.engine.GameView(env.GameID, env.PlayerID)
	if err != nil {
		return
	}
	state, err := NewEnvelope(TypeGameState, StatePayload{View: view})
	if err != nil {
		return
	}
	state.RequestID = env.RequestID
	state.GameID = env.GameID
	c.enqueue(state)
}

func (s *Server) handleReply(c *client, env Envelope) {
	c.mu.Lock()
	gw := c.gateway
	c.mu.Unlock()
	if gw == nil {
		c.sendError(env.RequestID, "not_joined", "join a game before replying")
		return
	}
	if !gw.Resolve(env.RequestID, env.Payload) {
		c.sendError(env.RequestID, "stale_reply", "no request with that ID is pending")
	}
}
