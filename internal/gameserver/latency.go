package gameserver

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/duelbroker/internal/game/protocol"
	"github.com/cory-johannsen/duelbroker/internal/game/session"
)

// DeliverFunc routes a message that the LatencySimulator released.
type DeliverFunc func(sender *session.Player, raw string)

type delayed struct {
	sender *session.Player
	raw    string
}

// LatencySimulator holds input-class messages back and releases one per
// delay interval, oldest first.
//
// Invariant: deliver is never called with mu held.
type LatencySimulator struct {
	deliver DeliverFunc
	logger  *zap.Logger

	// ctl serializes Enable, Disable, and Close.
	ctl sync.Mutex

	mu     sync.Mutex
	delay  time.Duration
	queue  []delayed
	stop   chan struct{}
	done   chan struct{}
	closed bool
}

// NewLatencySimulator creates a disabled simulator.
//
// Precondition: deliver and logger must be non-nil.
func NewLatencySimulator(deliver DeliverFunc, logger *zap.Logger) *LatencySimulator {
	return &LatencySimulator{deliver: deliver, logger: logger}
}

// Enable starts delaying input messages by delay. A delay <= 0 disables.
// Re-enabling with a new delay keeps already queued messages.
func (l *LatencySimulator) Enable(delay time.Duration) {
	if delay <= 0 {
		l.Disable()
		return
	}
	l.ctl.Lock()
	defer l.ctl.Unlock()

	l.halt()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.delay = delay
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	go l.run(delay, l.stop, l.done)

	l.logger.Info("latency simulation enabled", zap.Duration("delay", delay))
}

// Disable stops delaying and synchronously routes every queued message in
// order. Inputs submitted while the flush runs are queued behind it.
//
// Postcondition: Pending() == 0 and Enabled() is false.
func (l *LatencySimulator) Disable() {
	l.ctl.Lock()
	defer l.ctl.Unlock()

	if !l.halt() {
		return
	}
	flushed := 0
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.delay = 0
			l.mu.Unlock()
			break
		}
		next := l.queue[0]
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.deliver(next.sender, next.raw)
		flushed++
	}
	l.logger.Info("latency simulation disabled", zap.Int("flushed", flushed))
}

// Close stops the simulator and discards queued messages. Later calls to
// Enable are ignored.
func (l *LatencySimulator) Close() {
	l.ctl.Lock()
	defer l.ctl.Unlock()

	l.halt()

	l.mu.Lock()
	dropped := len(l.queue)
	l.queue = nil
	l.delay = 0
	l.closed = true
	l.mu.Unlock()

	if dropped > 0 {
		l.logger.Info("latency simulator closed with pending messages", zap.Int("dropped", dropped))
	}
}

// Submit queues raw when the simulator is enabled and raw is an input-class
// message. It returns false when the caller should route raw immediately.
func (l *LatencySimulator) Submit(sender *session.Player, raw string) bool {
	if !protocol.IsInput(raw) {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.delay <= 0 {
		return false
	}
	l.queue = append(l.queue, delayed{sender: sender, raw: raw})
	return true
}

// Enabled reports whether input messages are currently being delayed.
func (l *LatencySimulator) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.delay > 0
}

// Delay returns the configured delay, or zero when disabled.
func (l *LatencySimulator) Delay() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.delay
}

// Pending returns the number of queued messages.
func (l *LatencySimulator) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// halt stops the release goroutine and waits for it to exit. It reports
// whether one was running.
//
// Precondition: ctl must be held.
func (l *LatencySimulator) halt() bool {
	l.mu.Lock()
	stop, done := l.stop, l.done
	l.stop, l.done = nil, nil
	l.mu.Unlock()

	if stop == nil {
		return false
	}
	close(stop)
	<-done
	return true
}

func (l *LatencySimulator) run(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if next, ok := l.pop(); ok {
				l.deliver(next.sender, next.raw)
			}
		}
	}
}

func (l *LatencySimulator) pop() (delayed, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return delayed{}, false
	}
	next := l.queue[0]
	l.queue = l.queue[1:]
	return next, true
}
