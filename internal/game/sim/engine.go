// Package sim provides the per-session simulation engine: an authoritative
// clock advanced on a fixed-interval tick, two player slots, and the queue of
// player inputs the tick consumes.
package sim

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/duelbroker/internal/game/protocol"
)

// DefaultTickInterval is the default physics step.
const DefaultTickInterval = 15 * time.Millisecond

// Engine advances a session's authoritative time.
//
// Invariant: once Stop returns, no Update body executes again.
type Engine struct {
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	clockMs int64
	lastMs  int64
	seeded  bool
	ticks   uint64
	hostID  string
	guestID string
	pending map[string][]protocol.Input
	lastSeq map[string]int
	started bool
	stopped bool

	done chan struct{}
	once sync.Once
}

// New creates a stopped Engine with hostID occupying the first slot.
//
// Precondition: hostID must be non-empty; logger must be non-nil.
// Postcondition: Returns an Engine whose clock reads 0 until its first Update.
// A non-positive interval falls back to DefaultTickInterval.
func New(hostID string, interval time.Duration, logger *zap.Logger) *Engine {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Engine{
		interval: interval,
		logger:   logger,
		now:      time.Now,
		hostID:   hostID,
		pending:  make(map[string][]protocol.Input),
		lastSeq:  make(map[string]int),
		done:     make(chan struct{}),
	}
}

// Start seeds the clock baseline and launches the tick goroutine.
// Calling Start more than once, or after Stop, has no effect.
//
// Postcondition: Update is invoked once per interval until Stop is called.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.started || e.stopped {
		e.mu.Unlock()
		return
	}
	e.started = true
	e.mu.Unlock()

	e.Update(e.now().UnixMilli())

	go func() {
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		for {
			select {
			case t := <-ticker.C:
				e.Update(t.UnixMilli())
			case <-e.done:
				return
			}
		}
	}()
}

// Update advances the clock by the wall time elapsed since the previous update
// and drains queued player inputs. The first call only records the baseline.
//
// Postcondition: No effect if the engine has been stopped or nowMs is in the past.
func (e *Engine) Update(nowMs int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return
	}
	if !e.seeded {
		e.lastMs = nowMs
		e.seeded = true
		return
	}
	if nowMs < e.lastMs {
		return
	}
	e.clockMs += nowMs - e.lastMs
	e.lastMs = nowMs
	e.ticks++

	for id, inputs := range e.pending {
		for _, in := range inputs {
			if in.Seq > e.lastSeq[id] {
				e.lastSeq[id] = in.Seq
			}
		}
		delete(e.pending, id)
	}
}

// Stop halts the tick goroutine. Safe to call multiple times.
//
// Postcondition: No Update runs after Stop returns; queued inputs are discarded.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.stopped = true
	e.pending = make(map[string][]protocol.Input)
	e.mu.Unlock()

	e.once.Do(func() { close(e.done) })
}

// Stopped reports whether Stop has been called.
func (e *Engine) Stopped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}

// LocalTime returns the authoritative clock in seconds, millisecond resolution.
func (e *Engine) LocalTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return float64(e.clockMs) / 1000
}

// Ticks returns the number of clock-advancing updates performed.
func (e *Engine) Ticks() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ticks
}

// AttachGuest links the second player slot.
//
// Precondition: guestID must be non-empty and differ from the host.
func (e *Engine) AttachGuest(guestID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.guestID = guestID
}

// HandleInput queues an input for the next tick.
//
// Postcondition: Returns false, dropping the input, when playerID occupies no
// slot or the engine is stopped.
func (e *Engine) HandleInput(playerID string, in protocol.Input) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped || playerID == "" || (playerID != e.hostID && playerID != e.guestID) {
		return false
	}
	e.pending[playerID] = append(e.pending[playerID], in)
	e.logger.Debug("input queued",
		zap.String("player_id", playerID),
		zap.Int("seq", in.Seq),
		zap.Strings("commands", in.Commands),
	)
	return true
}

// LastInputSeq returns the highest input sequence processed for playerID.
func (e *Engine) LastInputSeq(playerID string) (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	seq, ok := e.lastSeq[playerID]
	return seq, ok
}
