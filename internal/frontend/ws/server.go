// Package ws accepts players over WebSocket, one text frame per message.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/duelbroker/internal/config"
	"github.com/cory-johannsen/duelbroker/internal/game/session"
)

// shutdownTimeout bounds the HTTP server drain on Stop.
const shutdownTimeout = 5 * time.Second

// Broker is the session core a connection is attached to.
type Broker interface {
	Connect(p *session.Player) (*session.Session, error)
	Disconnect(p *session.Player)
	Receive(p *session.Player, raw string)
}

// Server upgrades HTTP requests on the configured path and attaches each
// WebSocket to the broker as a player.
type Server struct {
	cfg        config.WebSocketConfig
	broker     Broker
	logger     *zap.Logger
	upgrader   websocket.Upgrader
	httpServer *http.Server

	mu       sync.Mutex
	listener net.Listener
	conns    map[*websocket.Conn]struct{}
	stopping bool
	wg       sync.WaitGroup
}

// NewServer creates a WebSocket server with the given configuration.
//
// Precondition: broker and logger must be non-nil; cfg.Path must start with "/".
// Postcondition: Returns a Server ready to be started with Start.
func NewServer(cfg config.WebSocketConfig, broker Broker, logger *zap.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		broker: broker,
		logger: logger,
		conns:  make(map[*websocket.Conn]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Path, s.handle)
	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start listens and serves until Stop is called. It blocks.
//
// Postcondition: Returns nil after Stop, or the listen/serve error.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr(), err)
	}
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		lis.Close()
		return nil
	}
	s.listener = lis
	s.mu.Unlock()

	s.logger.Info("websocket server listening",
		zap.String("addr", lis.Addr().String()),
		zap.String("path", s.cfg.Path),
	)
	if err := s.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving websocket: %w", err)
	}
	return nil
}

// Stop shuts the HTTP server down, closes every player connection, and waits
// for their disconnects to reach the broker.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return
	}
	s.stopping = true
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("websocket http shutdown", zap.Error(err))
	}
	for _, c := range conns {
		c.Close()
	}
	s.wg.Wait()
	s.logger.Info("websocket server stopped", zap.Int("closed", len(conns)))
}

// Addr returns the listening address, or empty string if not yet listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	s.logger.Debug("rejecting websocket origin", zap.String("origin", origin))
	return false
}

// track registers conn for shutdown. It reports false once Stop has begun.
func (s *Server) track(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.wg.Done()
}

// handle upgrades one request and runs the player until the socket closes.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}
	if !s.track(conn) {
		conn.Close()
		return
	}
	defer s.untrack(conn)

	start := time.Now()
	id := uuid.NewString()
	logger := s.logger.With(
		zap.String("player_id", id),
		zap.String("remote_addr", conn.RemoteAddr().String()),
	)
	out := session.NewOutbox(id, s.cfg.OutboxSize)
	player := session.NewPlayer(id, out)

	writerDone := make(chan struct{})
	go s.writeLoop(conn, out, logger, writerDone)
	defer func() {
		out.Close()
		<-writerDone
		conn.Close()
	}()

	if _, err := s.broker.Connect(player); err != nil {
		logger.Error("attaching player", zap.Error(err))
		return
	}
	defer s.broker.Disconnect(player)
	logger.Info("player connected")

	s.readLoop(conn, player, logger)
	logger.Info("player disconnected", zap.Duration("duration", time.Since(start)))
}

func (s *Server) readLoop(conn *websocket.Conn, player *session.Player, logger *zap.Logger) {
	conn.SetReadLimit(s.cfg.MaxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("unexpected websocket close", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
		if kind != websocket.TextMessage || len(data) == 0 {
			continue
		}
		s.broker.Receive(player, string(data))
	}
}

// writeLoop drains out to conn and keeps the peer alive with pings.
func (s *Server) writeLoop(conn *websocket.Conn, out *session.Outbox, logger *zap.Logger, done chan<- struct{}) {
	ticker := time.NewTicker(s.cfg.PingPeriod())
	defer func() {
		ticker.Stop()
		close(done)
	}()

	for {
		select {
		case msg, ok := <-out.Messages():
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				logger.Debug("write failed", zap.Error(err))
				conn.Close()
				for range out.Messages() {
				}
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				for range out.Messages() {
				}
				return
			}
		}
	}
}
