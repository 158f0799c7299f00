package session

import (
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap/zaptest"
)

// recorder is a Sender that keeps every message it is given.
type recorder struct {
	msgs []string
	fail bool
}

func (r *recorder) Send(msg string) error {
	if r.fail {
		return errors.New("connection gone")
	}
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recorder) count(msg string) int {
	n := 0
	for _, m := range r.msgs {
		if m == msg {
			n++
		}
	}
	return n
}

// fakeEngine is an Engine whose clock is set by the test.
type fakeEngine struct {
	hostID  string
	guestID string
	clock   float64
	started int
	stopped bool
}

func (e *fakeEngine) Start()                { e.started++ }
func (e *fakeEngine) LocalTime() float64    { return e.clock }
func (e *fakeEngine) AttachGuest(id string) { e.guestID = id }
func (e *fakeEngine) Stop()                 { e.stopped = true }

type fixture struct {
	registry   *Registry
	controller *Controller
	matchmaker *Matchmaker
	engines    []*fakeEngine
	senders    map[string]*recorder
}

func newFixture(t testing.TB) *fixture {
	t.Helper()
	f := &fixture{senders: make(map[string]*recorder)}
	logger := zaptest.NewLogger(t)
	f.registry = NewRegistry(func(hostID string) Engine {
		e := &fakeEngine{hostID: hostID, clock: float64(len(f.engines)) + 0.5}
		f.engines = append(f.engines, e)
		return e
	}, logger)
	f.controller = NewController(f.registry, logger)
	f.matchmaker = NewMatchmaker(f.registry, f.controller, logger)
	return f
}

func (f *fixture) player(id string) *Player {
	r := &recorder{}
	f.senders[id] = r
	return NewPlayer(id, r)
}

func (f *fixture) players(n int) []*Player {
	out := make([]*Player, n)
	for i := range out {
		out[i] = f.player(fmt.Sprintf("p%d", i))
	}
	return out
}
