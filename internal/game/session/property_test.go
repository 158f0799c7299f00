package session

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"
)

// TestPropertyConnectDisconnectInvariants drives random connect/disconnect
// sequences through the Matchmaker and Controller and checks the registry and
// back-reference invariants after every step.
func TestPropertyConnectDisconnectInvariants(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(t)
		var connected []*Player
		next := 0
		guestsSeen := make(map[*Session]*Player)

		steps := rapid.IntRange(1, 60).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			if len(connected) == 0 || rapid.Bool().Draw(rt, "connect") {
				p := f.player(fmt.Sprintf("p%d", next))
				next++
				if _, err := f.matchmaker.FindSessionFor(p); err != nil {
					rt.Fatalf("matchmaking %s: %v", p.ID(), err)
				}
				connected = append(connected, p)
			} else {
				idx := rapid.IntRange(0, len(connected)-1).Draw(rt, "leaver")
				p := connected[idx]
				connected = append(connected[:idx], connected[idx+1:]...)
				s := p.Session()
				if s == nil {
					rt.Fatalf("connected player %s has no session", p.ID())
				}
				partner := s.CounterpartOf(p.ID())
				var before int
				if partner != nil {
					before = f.senders[partner.ID()].count("s.e")
				}
				if !f.controller.End(s.ID(), p.ID()) {
					rt.Fatalf("ending live session %s failed", s.ID())
				}
				if partner != nil && f.senders[partner.ID()].count("s.e") != before+1 {
					rt.Fatalf("partner %s did not receive exactly one end notice", partner.ID())
				}
			}

			checkInvariants(rt, f, connected, guestsSeen)
		}
	})
}

func checkInvariants(rt *rapid.T, f *fixture, connected []*Player, guestsSeen map[*Session]*Player) {
	sessions := f.registry.Sessions()
	if f.registry.Count() != len(sessions) || f.registry.Count() < 0 {
		rt.Fatalf("live count %d != stored sessions %d", f.registry.Count(), len(sessions))
	}

	seated := 0
	open := 0
	ids := make(map[string]bool)
	for _, s := range sessions {
		if ids[s.ID()] {
			rt.Fatalf("duplicate session id %s", s.ID())
		}
		ids[s.ID()] = true
		if s.PlayerCount() < 1 || s.PlayerCount() > MaxPlayers {
			rt.Fatalf("session %s has %d players", s.ID(), s.PlayerCount())
		}
		if s.Active() && s.PlayerCount() < MaxPlayers {
			rt.Fatalf("session %s active with %d players", s.ID(), s.PlayerCount())
		}
		if s.PlayerCount() == 1 {
			open++
		}
		if g := s.Guest(); g != nil {
			if prev, ok := guestsSeen[s]; ok && prev != g {
				rt.Fatalf("session %s guest replaced", s.ID())
			}
			guestsSeen[s] = g
		}
		for _, p := range s.participants() {
			if p.Session() != s {
				rt.Fatalf("player %s back-reference is inconsistent", p.ID())
			}
			seated++
		}
		if !s.Host().Hosting() {
			rt.Fatalf("host %s of %s lost hosting flag", s.Host().ID(), s.ID())
		}
	}

	if open > 1 {
		rt.Fatalf("%d under-full sessions; matchmaking should have paired them", open)
	}
	if seated != len(connected) {
		rt.Fatalf("%d seated players, %d connected", seated, len(connected))
	}
	for _, p := range connected {
		if p.Session() == nil {
			rt.Fatalf("connected player %s stranded", p.ID())
		}
	}
}
