package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Server notices. Every server-originated message starts with "s.".
const (
	noticeHosting = "s.h."
	noticeJoined  = "s.j."
	noticeReady   = "s.r."
	noticeEnded   = "s.e"
	noticePing    = "s.p."
)

// FormatClock renders an engine clock value with its decimal point replaced
// by a hyphen, so the value survives dot-delimited framing.
//
// Postcondition: Returns the shortest decimal rendering of t with the first '.' replaced by '-'.
func FormatClock(t float64) string {
	return strings.Replace(strconv.FormatFloat(t, 'f', -1, 64), ".", "-", 1)
}

// ParseClock is the inverse of FormatClock.
//
// Postcondition: Returns the decoded seconds, or an error if s is not a number.
func ParseClock(s string) (float64, error) {
	t, err := strconv.ParseFloat(strings.Replace(s, "-", ".", 1), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing clock %q: %w", s, err)
	}
	return t, nil
}

// HostingNotice tells a player they now host a session created at clock t.
func HostingNotice(t float64) string {
	return noticeHosting + FormatClock(t)
}

// JoinedNotice tells a guest they joined the session hosted by hostID.
func JoinedNotice(hostID string) string {
	return noticeJoined + hostID
}

// ReadyNotice tells both players to reset and resume at clock t.
func ReadyNotice(t float64) string {
	return noticeReady + FormatClock(t)
}

// EndedNotice tells a player their session has ended.
func EndedNotice() string {
	return noticeEnded
}

// PingReply echoes a ping probe payload back to its sender.
func PingReply(echo string) string {
	return noticePing + echo
}
