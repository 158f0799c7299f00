package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxIDAttempts bounds the retries on a session id collision.
const maxIDAttempts = 8

// Registry is the single source of truth for which sessions exist.
// It is not safe for concurrent use.
type Registry struct {
	newEngine EngineFactory
	newID     func() (uuid.UUID, error)
	now       func() time.Time
	logger    *zap.Logger

	sessions map[string]*Session
	order    []string
	live     int
}

// NewRegistry creates an empty Registry.
//
// Precondition: newEngine and logger must be non-nil.
func NewRegistry(newEngine EngineFactory, logger *zap.Logger) *Registry {
	return &Registry{
		newEngine: newEngine,
		newID:     uuid.NewRandom,
		now:       time.Now,
		logger:    logger,
		sessions:  make(map[string]*Session),
	}
}

// Create allocates a session hosted by host, starts its engine, and stores it.
//
// Precondition: host must be non-nil and unseated.
// Postcondition: Returns the stored session with playerCount 1, host.Hosting()
// true, and host.Session() pointing at it; or an error if no unique id could be
// generated, in which case nothing is stored.
func (r *Registry) Create(host *Player) (*Session, error) {
	id, err := r.uniqueID()
	if err != nil {
		return nil, fmt.Errorf("creating session for player %s: %w", host.id, err)
	}

	s := &Session{
		id:          id,
		host:        host,
		playerCount: 1,
		state:       StateForming,
		createdAt:   r.now(),
	}
	s.engine = r.newEngine(host.id)

	r.sessions[id] = s
	r.order = append(r.order, id)
	r.live++

	s.engine.Start()
	host.session = s
	host.hosting = true

	r.logger.Info("session created",
		zap.String("session_id", id),
		zap.String("host_id", host.id),
		zap.Int("live", r.live),
	)
	return s, nil
}

func (r *Registry) uniqueID() (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		u, err := r.newID()
		if err != nil {
			return "", fmt.Errorf("generating session id: %w", err)
		}
		id := u.String()
		if _, exists := r.sessions[id]; !exists {
			return id, nil
		}
	}
	return "", fmt.Errorf("generating session id: %d consecutive collisions", maxIDAttempts)
}

// Lookup returns the session stored under id.
//
// Postcondition: Returns (session, true) if found, or (nil, false) otherwise.
func (r *Registry) Lookup(id string) (*Session, bool) {
	s, ok := r.sessions[id]
	return s, ok
}

// Destroy stops the session's engine and removes it.
//
// Postcondition: Returns false, changing nothing, if id is not stored.
func (r *Registry) Destroy(id string) bool {
	s, ok := r.sessions[id]
	if !ok {
		r.logger.Debug("destroy: session not found", zap.String("session_id", id))
		return false
	}

	s.engine.Stop()
	delete(r.sessions, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.live--

	r.logger.Info("session removed",
		zap.String("session_id", id),
		zap.Duration("age", r.now().Sub(s.createdAt)),
		zap.Int("live", r.live),
	)
	return true
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	return r.live
}

// Sessions returns the live sessions, oldest first.
func (r *Registry) Sessions() []*Session {
	out := make([]*Session, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.sessions[id])
	}
	return out
}

// ActiveCount returns the number of sessions whose players were told to start.
func (r *Registry) ActiveCount() int {
	n := 0
	for _, s := range r.sessions {
		if s.active {
			n++
		}
	}
	return n
}
