package gameserver

import (
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/duelbroker/internal/game/protocol"
	"github.com/cory-johannsen/duelbroker/internal/game/session"
)

// recorder is a concurrency-safe Sender that keeps every message.
type recorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recorder) Send(msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

func (r *recorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		return ""
	}
	return r.msgs[len(r.msgs)-1]
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = nil
}

// stubEngine records lifecycle calls and accepted inputs.
type stubEngine struct {
	mu      sync.Mutex
	hostID  string
	guestID string
	clock   float64
	stopped bool
	inputs  []protocol.Input
}

func (e *stubEngine) Start() {}

func (e *stubEngine) LocalTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock
}

func (e *stubEngine) AttachGuest(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.guestID = id
}

func (e *stubEngine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
}

func (e *stubEngine) isStopped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}

func (e *stubEngine) HandleInput(playerID string, in protocol.Input) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped || (playerID != e.hostID && playerID != e.guestID) {
		return false
	}
	e.inputs = append(e.inputs, in)
	return true
}

func (e *stubEngine) received() []protocol.Input {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]protocol.Input(nil), e.inputs...)
}

type harness struct {
	broker  *Broker
	mu      sync.Mutex
	engines []*stubEngine
	senders map[string]*recorder
}

func newHarness(t testing.TB) *harness {
	t.Helper()
	return newHarnessWithLogger(t, zaptest.NewLogger(t))
}

func newObservedHarness(t testing.TB) (*harness, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	return newHarnessWithLogger(t, zap.New(core)), logs
}

func newHarnessWithLogger(t testing.TB, logger *zap.Logger) *harness {
	t.Helper()
	h := &harness{senders: make(map[string]*recorder)}
	h.broker = NewBroker(func(hostID string) session.Engine {
		h.mu.Lock()
		defer h.mu.Unlock()
		e := &stubEngine{hostID: hostID, clock: float64(len(h.engines)) + 0.25}
		h.engines = append(h.engines, e)
		return e
	}, logger)
	t.Cleanup(h.broker.Close)
	return h
}

func (h *harness) player(id string) *session.Player {
	r := &recorder{}
	h.senders[id] = r
	return session.NewPlayer(id, r)
}

func (h *harness) engine(i int) *stubEngine {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.engines[i]
}

// connectPair connects two players who end up in the same active session.
func (h *harness) connectPair(t testing.TB, a, b string) (*session.Player, *session.Player) {
	t.Helper()
	pa, pb := h.player(a), h.player(b)
	if _, err := h.broker.Connect(pa); err != nil {
		t.Fatalf("connect %s: %v", a, err)
	}
	if _, err := h.broker.Connect(pb); err != nil {
		t.Fatalf("connect %s: %v", b, err)
	}
	if pa.Session() != pb.Session() || !pa.Session().Active() {
		t.Fatalf("%s and %s were not paired", a, b)
	}
	return pa, pb
}
