// Package protocol parses the dot-delimited text messages exchanged with
// game clients and encodes the notices the server originates.
package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Separator splits a raw message into segments. The first segment is the tag.
const Separator = "."

// Client tags consumed by the broker.
const (
	TagMove = "z"
	TagTime = "t"
	TagPing = "p"
	// InputPrefix marks the input class: any tag beginning with it.
	InputPrefix = "i"
)

// Kind is the closed set of message kinds the broker recognizes.
type Kind int

const (
	// KindUnrecognized covers empty messages and tags owned by other collaborators.
	KindUnrecognized Kind = iota
	// KindMove is a position/movement update relayed to the counterpart.
	KindMove
	// KindTime is a timestamp message relayed to the counterpart.
	KindTime
	// KindPing is a probe answered directly to the sender.
	KindPing
	// KindInput is a player input destined for the session engine.
	KindInput
)

// String returns a short lowercase name for the kind.
func (k Kind) String() string {
	switch k {
	case KindMove:
		return "move"
	case KindTime:
		return "time"
	case KindPing:
		return "ping"
	case KindInput:
		return "input"
	default:
		return "unrecognized"
	}
}

// Relayed reports whether messages of this kind are forwarded verbatim to
// the sender's counterpart.
func (k Kind) Relayed() bool {
	return k == KindMove || k == KindTime
}

// Message is a parsed inbound client message.
type Message struct {
	// Kind is the recognized message kind.
	Kind Kind
	// Tag is the first segment of the raw message.
	Tag string
	// Args are the segments following the tag.
	Args []string
	// Raw is the message exactly as received.
	Raw string
}

// Arg returns the i-th segment after the tag and whether it was present.
func (m Message) Arg(i int) (string, bool) {
	if i < 0 || i >= len(m.Args) {
		return "", false
	}
	return m.Args[i], true
}

// Parse classifies a raw client message.
//
// Postcondition: Returns a Message whose Raw equals raw. Empty input, an empty
// tag, and a ping without a payload segment all yield KindUnrecognized.
func Parse(raw string) Message {
	msg := Message{Raw: raw}
	if raw == "" {
		return msg
	}

	parts := strings.Split(raw, Separator)
	msg.Tag = parts[0]
	msg.Args = parts[1:]

	switch {
	case msg.Tag == TagMove:
		msg.Kind = KindMove
	case msg.Tag == TagTime:
		msg.Kind = KindTime
	case msg.Tag == TagPing:
		if len(msg.Args) > 0 {
			msg.Kind = KindPing
		}
	case strings.HasPrefix(msg.Tag, InputPrefix):
		msg.Kind = KindInput
	}
	return msg
}

// IsInput reports whether raw carries an input-class tag without fully parsing it.
func IsInput(raw string) bool {
	tag, _, _ := strings.Cut(raw, Separator)
	return strings.HasPrefix(tag, InputPrefix)
}

// Input is a decoded player input: "i.<cmd>-<cmd>.<time>.<seq>".
type Input struct {
	// Commands are the individual input commands, in the order sent.
	Commands []string
	// Time is the client clock at which the input was sampled, in seconds.
	Time float64
	// Seq is the client's monotonically increasing input sequence number.
	Seq int
}

// ParseInput decodes the payload of a KindInput message.
//
// Precondition: msg.Kind must be KindInput.
// Postcondition: Returns the decoded Input, or an error if a segment is missing or malformed.
func ParseInput(msg Message) (Input, error) {
	if msg.Kind != KindInput {
		return Input{}, fmt.Errorf("message kind %s is not an input", msg.Kind)
	}
	if len(msg.Args) < 3 {
		return Input{}, fmt.Errorf("input %q: expected 3 segments, got %d", msg.Raw, len(msg.Args))
	}

	var commands []string
	if msg.Args[0] != "" {
		commands = strings.Split(msg.Args[0], "-")
	}
	t, err := ParseClock(msg.Args[1])
	if err != nil {
		return Input{}, fmt.Errorf("input %q: %w", msg.Raw, err)
	}
	seq, err := strconv.Atoi(msg.Args[2])
	if err != nil {
		return Input{}, fmt.Errorf("input %q: parsing sequence: %w", msg.Raw, err)
	}
	return Input{Commands: commands, Time: t, Seq: seq}, nil
}
