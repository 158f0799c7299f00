package session

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/duelbroker/internal/game/protocol"
)

// Controller starts full sessions and tears sessions down.
type Controller struct {
	registry   *Registry
	matchmaker *Matchmaker
	logger     *zap.Logger
}

// NewController creates a Controller. It re-matchmakes orphaned players once a
// Matchmaker has been linked with NewMatchmaker.
//
// Precondition: registry and logger must be non-nil.
func NewController(registry *Registry, logger *zap.Logger) *Controller {
	return &Controller{registry: registry, logger: logger}
}

// Start tells the guest whom they joined, then tells both players to reset at
// the engine's current clock, and marks the session active.
//
// Precondition: s has two players and is not active.
// Postcondition: s is active and both players have been sent the ready notice;
// or ErrNotReady is returned and nothing is sent.
func (c *Controller) Start(s *Session) error {
	if s.playerCount != MaxPlayers || s.guest == nil || s.active {
		return fmt.Errorf("starting session %s with %d players (active=%t): %w",
			s.id, s.playerCount, s.active, ErrNotReady)
	}

	c.notify(s.guest, protocol.JoinedNotice(s.host.id))

	ready := protocol.ReadyNotice(s.engine.LocalTime())
	c.notify(s.guest, ready)
	c.notify(s.host, ready)

	s.active = true
	s.state = StateActive

	c.logger.Info("session started",
		zap.String("session_id", s.id),
		zap.String("host_id", s.host.id),
		zap.String("guest_id", s.guest.id),
	)
	return nil
}

// End tears down the session stored under sessionID because leavingPlayerID
// departed. The engine is stopped first; every other participant is told the
// session ended and is re-submitted to the Matchmaker after the session has
// been removed.
//
// Postcondition: Returns false, changing nothing, if the session does not exist.
func (c *Controller) End(sessionID, leavingPlayerID string) bool {
	s, ok := c.registry.Lookup(sessionID)
	if !ok {
		c.logger.Debug("end: session not found",
			zap.String("session_id", sessionID),
			zap.String("player_id", leavingPlayerID),
		)
		return false
	}

	orphans := c.teardown(s, leavingPlayerID)

	for _, p := range orphans {
		c.notify(p, protocol.EndedNotice())
		if c.matchmaker == nil {
			continue
		}
		if _, err := c.matchmaker.FindSessionFor(p); err != nil {
			c.logger.Error("re-matchmaking orphaned player",
				zap.String("player_id", p.id),
				zap.Error(err),
			)
		}
	}
	return true
}

// EndAll tears down every session without notifying or re-matchmaking anyone.
//
// Postcondition: The Registry is empty and every engine is stopped.
func (c *Controller) EndAll() {
	for _, s := range c.registry.Sessions() {
		c.teardown(s, "")
	}
}

// teardown stops the engine, unlinks all participants, and removes s.
// It returns the participants other than leavingPlayerID.
func (c *Controller) teardown(s *Session, leavingPlayerID string) []*Player {
	s.state = StateEnding
	s.engine.Stop()
	s.active = false

	if leavingPlayerID != "" && !s.Has(leavingPlayerID) {
		c.logger.Warn("ending session for a non-participant",
			zap.String("session_id", s.id),
			zap.String("player_id", leavingPlayerID),
		)
	}

	var orphans []*Player
	for _, p := range s.participants() {
		p.session = nil
		p.hosting = false
		if p.id != leavingPlayerID {
			orphans = append(orphans, p)
		}
	}

	c.registry.Destroy(s.id)
	s.state = StateEnded
	return orphans
}

func (c *Controller) notify(p *Player, msg string) {
	if err := p.Send(msg); err != nil {
		c.logger.Debug("dropping notice",
			zap.String("player_id", p.id),
			zap.String("notice", msg),
			zap.Error(err),
		)
	}
}
