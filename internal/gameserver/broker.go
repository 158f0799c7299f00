// Package gameserver exposes the session core to transport frontends: player
// connect and disconnect, inbound message routing, and simulated latency.
package gameserver

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/duelbroker/internal/game/session"
)

// Stats is a point-in-time view of broker load.
type Stats struct {
	// Sessions is the number of live sessions in the Registry.
	Sessions int
	// Active is the number of sessions with both players started.
	Active int
	// Pending is the number of input messages held by the latency simulator.
	Pending int
}

// Broker is the single entry point frontends call into. One mutex serializes
// every Registry, Matchmaker, Controller, and Router call.
type Broker struct {
	logger     *zap.Logger
	registry   *session.Registry
	controller *session.Controller
	matchmaker *session.Matchmaker
	router     *Router
	latency    *LatencySimulator

	mu     sync.Mutex
	closed bool
}

// NewBroker wires a session core around newEngine.
//
// Precondition: newEngine and logger must be non-nil.
// Postcondition: Returns a Broker with no sessions and latency simulation disabled.
func NewBroker(newEngine session.EngineFactory, logger *zap.Logger) *Broker {
	registry := session.NewRegistry(newEngine, logger.Named("registry"))
	controller := session.NewController(registry, logger.Named("controller"))
	b := &Broker{
		logger:     logger,
		registry:   registry,
		controller: controller,
		matchmaker: session.NewMatchmaker(registry, controller, logger.Named("matchmaker")),
		router:     NewRouter(logger.Named("router")),
	}
	b.latency = NewLatencySimulator(b.route, logger.Named("latency"))
	return b
}

// Connect places a newly connected player into a session.
//
// Precondition: p must be non-nil and not previously connected.
// Postcondition: Returns p's session, or an error when the broker is closed or
// a session could not be created; the frontend should then drop the connection.
func (b *Broker) Connect(p *session.Player) (*session.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("connecting player %s: broker is closed", p.ID())
	}
	s, err := b.matchmaker.FindSessionFor(p)
	if err != nil {
		return nil, fmt.Errorf("connecting player %s: %w", p.ID(), err)
	}
	return s, nil
}

// Disconnect ends the session p is seated in. Unseated players are ignored.
func (b *Broker) Disconnect(p *session.Player) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := p.Session()
	if s == nil {
		b.logger.Debug("disconnect of unseated player", zap.String("player_id", p.ID()))
		return
	}
	b.controller.End(s.ID(), p.ID())
}

// Receive accepts one raw message from p. Input-class messages are held by
// the latency simulator when it is enabled; everything else is routed now.
func (b *Broker) Receive(p *session.Player, raw string) {
	if b.latency.Submit(p, raw) {
		return
	}
	b.route(p, raw)
}

// SetFakeLatency enables latency simulation with delay d, or disables it
// when d <= 0, flushing held messages in order.
func (b *Broker) SetFakeLatency(d time.Duration) {
	b.latency.Enable(d)
}

// FakeLatency returns the current simulated delay, zero when disabled.
func (b *Broker) FakeLatency() time.Duration {
	return b.latency.Delay()
}

// Stats returns current load figures.
func (b *Broker) Stats() Stats {
	b.mu.Lock()
	st := Stats{
		Sessions: b.registry.Count(),
		Active:   b.registry.ActiveCount(),
	}
	b.mu.Unlock()
	st.Pending = b.latency.Pending()
	return st
}

// Close stops latency simulation and ends every session without notifying
// or re-matchmaking players. Later Connect calls fail.
//
// Postcondition: every engine is stopped and the Registry is empty.
func (b *Broker) Close() {
	b.latency.Close()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	n := b.registry.Count()
	b.controller.EndAll()
	b.logger.Info("broker closed", zap.Int("sessions_ended", n))
}

func (b *Broker) route(p *session.Player, raw string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.router.Route(p, raw)
}
