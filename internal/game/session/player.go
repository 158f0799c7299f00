package session

// Sender delivers one text message to a connected client.
// Implementations must not block.
type Sender interface {
	Send(msg string) error
}

// Player is the broker's handle on one connection. The frontend creates it;
// the session components only read and write its session back-reference and
// hosting flag.
//
// Invariant: if session is non-nil, session.Has(id) is true.
type Player struct {
	id      string
	out     Sender
	session *Session
	hosting bool
}

// NewPlayer creates an unseated Player.
//
// Precondition: id must be non-empty and unique among connected players; out must be non-nil.
func NewPlayer(id string, out Sender) *Player {
	return &Player{id: id, out: out}
}

// ID returns the player's unique identifier.
func (p *Player) ID() string { return p.id }

// Session returns the player's current session, or nil.
func (p *Player) Session() *Session { return p.session }

// Hosting reports whether the player hosts their current session.
func (p *Player) Hosting() bool { return p.hosting }

// Send delivers msg to the player's connection.
//
// Postcondition: Returns the Sender's error; delivery is at most once.
func (p *Player) Send(msg string) error {
	return p.out.Send(msg)
}
