package gameserver

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/duelbroker/internal/game/protocol"
	"github.com/cory-johannsen/duelbroker/internal/game/session"
)

// InputSink is implemented by session engines that accept player input.
type InputSink interface {
	HandleInput(playerID string, in protocol.Input) bool
}

// Router dispatches a parsed client message by kind.
// It is not safe for concurrent use; the Broker serializes calls.
type Router struct {
	logger *zap.Logger
}

// NewRouter creates a Router.
//
// Precondition: logger must be non-nil.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{logger: logger}
}

// Route handles one raw message from sender.
//
// Precondition: sender must be non-nil.
// Postcondition: move and time messages reach only the sender's counterpart,
// verbatim; a ping yields exactly one reply to the sender; inputs are handed to
// the session engine; everything else is dropped.
func (r *Router) Route(sender *session.Player, raw string) {
	msg := protocol.Parse(raw)
	switch msg.Kind {
	case protocol.KindMove, protocol.KindTime:
		r.relay(sender, msg)
	case protocol.KindPing:
		echo, _ := msg.Arg(0)
		if err := sender.Send(protocol.PingReply(echo)); err != nil {
			r.logger.Debug("dropping ping reply",
				zap.String("player_id", sender.ID()),
				zap.Error(err),
			)
		}
	case protocol.KindInput:
		r.input(sender, msg)
	default:
		r.logger.Debug("dropping unrecognized message",
			zap.String("player_id", sender.ID()),
			zap.String("tag", msg.Tag),
		)
	}
}

func (r *Router) relay(sender *session.Player, msg protocol.Message) {
	s := sender.Session()
	if s == nil {
		r.logger.Debug("dropping relay from unseated player",
			zap.String("player_id", sender.ID()),
			zap.Stringer("kind", msg.Kind),
		)
		return
	}
	counterpart := s.CounterpartOf(sender.ID())
	if counterpart == nil {
		r.logger.Debug("dropping relay without counterpart",
			zap.String("session_id", s.ID()),
			zap.String("player_id", sender.ID()),
		)
		return
	}
	if err := counterpart.Send(msg.Raw); err != nil {
		r.logger.Debug("relay send failed",
			zap.String("session_id", s.ID()),
			zap.String("player_id", counterpart.ID()),
			zap.Error(err),
		)
	}
}

func (r *Router) input(sender *session.Player, msg protocol.Message) {
	s := sender.Session()
	if s == nil {
		r.logger.Debug("dropping input from unseated player", zap.String("player_id", sender.ID()))
		return
	}
	in, err := protocol.ParseInput(msg)
	if err != nil {
		r.logger.Debug("dropping malformed input",
			zap.String("session_id", s.ID()),
			zap.String("player_id", sender.ID()),
			zap.Error(err),
		)
		return
	}
	sink, ok := s.Engine().(InputSink)
	if !ok {
		return
	}
	if !sink.HandleInput(sender.ID(), in) {
		r.logger.Debug("engine rejected input",
			zap.String("session_id", s.ID()),
			zap.String("player_id", sender.ID()),
			zap.Int("seq", in.Seq),
		)
	}
}
