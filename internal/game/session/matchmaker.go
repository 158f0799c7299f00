package session

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/duelbroker/internal/game/protocol"
)

// Matchmaker places arriving and orphaned players into sessions.
type Matchmaker struct {
	registry   *Registry
	controller *Controller
	logger     *zap.Logger
}

// NewMatchmaker creates a Matchmaker and links it to controller so that ended
// sessions re-submit their remaining player here.
//
// Precondition: registry, controller, and logger must be non-nil.
func NewMatchmaker(registry *Registry, controller *Controller, logger *zap.Logger) *Matchmaker {
	m := &Matchmaker{
		registry:   registry,
		controller: controller,
		logger:     logger,
	}
	controller.matchmaker = m
	return m
}

// FindSessionFor seats player as the guest of the oldest session with
// capacity and starts it, or creates a new session hosted by player.
//
// Precondition: player must be non-nil.
// Postcondition: Returns the session player now occupies. Exactly one session
// is joined or created. Returns ErrAlreadySeated if player has a session, or
// the Registry's error if creation fails.
func (m *Matchmaker) FindSessionFor(player *Player) (*Session, error) {
	if player.session != nil {
		return nil, fmt.Errorf("matchmaking player %s: %w", player.id, ErrAlreadySeated)
	}

	m.logger.Debug("looking for a session",
		zap.String("player_id", player.id),
		zap.Int("live", m.registry.Count()),
	)

	for _, s := range m.registry.Sessions() {
		if !s.HasCapacity() || s.host == player {
			continue
		}
		m.seat(s, player)
		if err := m.controller.Start(s); err != nil {
			return nil, err
		}
		return s, nil
	}

	s, err := m.registry.Create(player)
	if err != nil {
		return nil, err
	}
	if err := player.Send(protocol.HostingNotice(s.engine.LocalTime())); err != nil {
		m.logger.Debug("dropping hosting notice",
			zap.String("player_id", player.id),
			zap.Error(err),
		)
	}
	return s, nil
}

func (m *Matchmaker) seat(s *Session, guest *Player) {
	s.guest = guest
	s.playerCount++
	s.state = StateStarting
	s.engine.AttachGuest(guest.id)
	guest.session = s
	guest.hosting = false

	m.logger.Info("player joined session",
		zap.String("session_id", s.id),
		zap.String("host_id", s.host.id),
		zap.String("guest_id", guest.id),
	)
}
