// Package tcp accepts players over plain TCP, one text message per line.
package tcp

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/duelbroker/internal/config"
	"github.com/cory-johannsen/duelbroker/internal/game/session"
)

// Broker is the session core a connection is attached to.
type Broker interface {
	Connect(p *session.Player) (*session.Session, error)
	Disconnect(p *session.Player)
	Receive(p *session.Player, raw string)
}

// Acceptor listens for TCP connections and attaches each one to the broker
// as a player.
type Acceptor struct {
	cfg    config.TCPConfig
	broker Broker
	logger *zap.Logger

	listener net.Listener
	wg       sync.WaitGroup
	quit     chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewAcceptor creates a TCP acceptor with the given configuration.
//
// Precondition: broker and logger must be non-nil; cfg.MaxLineBytes and
// cfg.OutboxSize must be > 0.
// Postcondition: Returns an Acceptor ready to be started with ListenAndServe.
func NewAcceptor(cfg config.TCPConfig, broker Broker, logger *zap.Logger) *Acceptor {
	return &Acceptor{
		cfg:    cfg,
		broker: broker,
		logger: logger,
		quit:   make(chan struct{}),
	}
}

// ListenAndServe starts the TCP listener and accepts connections until Stop is called.
// This method blocks until the acceptor is stopped.
//
// Precondition: The acceptor must not already be running.
// Postcondition: The listener is closed when this method returns.
func (a *Acceptor) ListenAndServe() error {
	start := time.Now()

	listener, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Addr(), err)
	}

	a.mu.Lock()
	select {
	case <-a.quit:
		a.mu.Unlock()
		listener.Close()
		return nil
	default:
	}
	a.listener = listener
	a.running = true
	a.mu.Unlock()

	a.logger.Info("tcp acceptor listening",
		zap.String("addr", listener.Addr().String()),
		zap.Duration("startup", time.Since(start)),
	)

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-a.quit:
				return nil
			default:
				a.logger.Error("accepting connection", zap.Error(err))
				continue
			}
		}

		a.wg.Add(1)
		go a.handleConn(conn)
	}
}

// handleConn runs one player's connection from connect to disconnect.
func (a *Acceptor) handleConn(raw net.Conn) {
	defer a.wg.Done()
	start := time.Now()

	conn := NewConn(raw, a.cfg.MaxLineBytes, a.cfg.ReadTimeout, a.cfg.WriteTimeout)
	id := uuid.NewString()
	logger := a.logger.With(
		zap.String("player_id", id),
		zap.String("remote_addr", conn.RemoteAddr()),
	)

	out := session.NewOutbox(id, a.cfg.OutboxSize)
	player := session.NewPlayer(id, out)

	writerDone := make(chan struct{})
	go a.writeLoop(conn, out, logger, writerDone)

	done := make(chan struct{})
	go func() {
		select {
		case <-a.quit:
			conn.Close()
		case <-done:
		}
	}()

	defer func() {
		close(done)
		conn.Close()
		out.Close()
		<-writerDone
	}()

	if _, err := a.broker.Connect(player); err != nil {
		logger.Error("attaching player", zap.Error(err))
		return
	}
	defer a.broker.Disconnect(player)
	logger.Info("player connected")

	for {
		line, err := conn.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Info("player disconnected", zap.Duration("duration", time.Since(start)))
			} else {
				logger.Debug("connection closed",
					zap.Error(err),
					zap.Duration("duration", time.Since(start)),
				)
			}
			return
		}
		if line == "" {
			continue
		}
		a.broker.Receive(player, line)
	}
}

// writeLoop drains out to conn until out is closed.
func (a *Acceptor) writeLoop(conn *Conn, out *session.Outbox, logger *zap.Logger, done chan<- struct{}) {
	defer close(done)
	for msg := range out.Messages() {
		if err := conn.WriteLine(msg); err != nil {
			logger.Debug("write failed", zap.Error(err))
			conn.Close()
			for range out.Messages() {
			}
			return
		}
	}
}

// Stop closes the listener and every connection, waiting for their
// disconnects to reach the broker.
//
// Postcondition: All connections are closed and goroutines have exited.
func (a *Acceptor) Stop() {
	a.mu.Lock()
	select {
	case <-a.quit:
		a.mu.Unlock()
		return
	default:
	}
	close(a.quit)
	a.running = false
	if a.listener != nil {
		a.listener.Close()
	}
	a.mu.Unlock()

	a.wg.Wait()
	a.logger.Info("tcp acceptor stopped")
}

// Addr returns the actual listening address, or empty string if not yet listening.
func (a *Acceptor) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return ""
}

// IsRunning returns whether the acceptor is currently accepting connections.
func (a *Acceptor) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}
