// Package session holds the two-player session model and the components that
// create, fill, start, and tear down sessions: the Registry, the Matchmaker,
// and the lifecycle Controller.
//
// None of the types in this package synchronize internally. The owner (the
// gameserver Broker) serializes every call, which is what keeps matchmaking's
// read-then-seat step from double-seating a session.
package session

import (
	"errors"
	"time"
)

var (
	// ErrNotReady is returned by Start when a session is not a full, inactive pair.
	ErrNotReady = errors.New("session not ready to start")
	// ErrAlreadySeated is returned when a player who already has a session is matchmade.
	ErrAlreadySeated = errors.New("player already seated")
)

// MaxPlayers is the number of participants in a full session.
const MaxPlayers = 2

// Engine is the simulation engine a Session owns.
type Engine interface {
	// Start begins the engine's own fixed-interval tick.
	Start()
	// LocalTime returns the authoritative clock in seconds.
	LocalTime() float64
	// AttachGuest links the engine's second player slot.
	AttachGuest(playerID string)
	// Stop halts ticking; no tick runs after it returns. Idempotent.
	Stop()
}

// EngineFactory builds the engine for a session hosted by hostID.
type EngineFactory func(hostID string) Engine

// State is a session's lifecycle phase.
type State string

const (
	StateForming  State = "forming"
	StateStarting State = "starting"
	StateActive   State = "active"
	StateEnding   State = "ending"
	StateEnded    State = "ended"
)

// Session is one two-player matchup.
//
// Invariant: host is never nil; guest is assigned at most once; active implies
// playerCount == MaxPlayers.
type Session struct {
	id          string
	host        *Player
	guest       *Player
	playerCount int
	active      bool
	state       State
	engine      Engine
	createdAt   time.Time
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Host returns the first player admitted.
func (s *Session) Host() *Player { return s.host }

// Guest returns the second player, or nil while the session is forming.
func (s *Session) Guest() *Player { return s.guest }

// PlayerCount returns 1 or 2.
func (s *Session) PlayerCount() int { return s.playerCount }

// Active reports whether both players have been told the session is ready.
func (s *Session) Active() bool { return s.active }

// State returns the lifecycle phase.
func (s *Session) State() State { return s.state }

// Engine returns the owned simulation engine.
func (s *Session) Engine() Engine { return s.engine }

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// HasCapacity reports whether a guest can still be seated.
func (s *Session) HasCapacity() bool {
	return s.state == StateForming && s.guest == nil && s.playerCount < MaxPlayers
}

// Has reports whether playerID is the host or the guest.
func (s *Session) Has(playerID string) bool {
	return (s.host != nil && s.host.id == playerID) || (s.guest != nil && s.guest.id == playerID)
}

// CounterpartOf returns the other participant relative to playerID.
//
// Postcondition: Returns nil when playerID is not a participant or the other
// slot is empty.
func (s *Session) CounterpartOf(playerID string) *Player {
	switch {
	case s.host != nil && s.host.id == playerID:
		return s.guest
	case s.guest != nil && s.guest.id == playerID:
		return s.host
	default:
		return nil
	}
}

// participants returns the occupied slots, host first.
func (s *Session) participants() []*Player {
	out := make([]*Player, 0, MaxPlayers)
	if s.host != nil {
		out = append(out, s.host)
	}
	if s.guest != nil {
		out = append(out, s.guest)
	}
	return out
}
