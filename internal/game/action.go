package game

import "fmt"

// Kind is one player action verb.
type Kind string

const (
	KindMove   Kind = "move"
	KindFlip   Kind = "flip"
	KindFlag   Kind = "flag"
	KindUnflag Kind = "unflag"
)

// ParseKind maps a wire action string onto a Kind.
func ParseKind(raw string) (Kind, bool) {
	switch Kind(raw) {
	case KindMove, KindFlip, KindFlag, KindUnflag:
		return Kind(raw), true
	default:
		return "", false
	}
}

// Severity grades a rejection for the security monitor.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rejection reasons. Security reasons feed the monitor and earn the client a
// notice; rule reasons are expected during normal play and stay silent.
const (
	ReasonBanned          = "banned"
	ReasonDead            = "dead"
	ReasonInvalidSession  = "invalid_session"
	ReasonSessionMismatch = "session_mismatch"
	ReasonRateLimited     = "rate_limited"
	ReasonReplay          = "replay"
	ReasonDuplicate       = "duplicate"
	ReasonBadSequence     = "bad_sequence"

	ReasonOutOfBounds    = "out_of_bounds"
	ReasonNotAdjacent    = "not_adjacent"
	ReasonOwnTile        = "own_tile"
	ReasonNotWalkable    = "not_walkable"
	ReasonNotCovered     = "not_covered"
	ReasonAlreadyFlagged = "already_flagged"
	ReasonNoFlags        = "no_flags"
	ReasonUnflagDisabled = "unflag_disabled"
	ReasonGameEnded      = "game_ended"
)

// Rejection is the structured refusal every gate failure surfaces as.
type Rejection struct {
	Reason     string
	Severity   Severity
	Disconnect bool
	// Security marks gate failures (authorization and abuse) as opposed to
	// rule failures.
	Security bool
}

func ruleRejection(reason string) *Rejection {
	return &Rejection{Reason: reason, Severity: SeverityLow}
}

// Frame is one planned outbound message. An empty ConnID fans out to every
// subscriber; Close tears the connection down after the frame is flushed.
type Frame struct {
	ConnID  string
	Topic   string
	Payload any
	Close   bool
}

func broadcast(topic string, payload any) Frame {
	return Frame{Topic: topic, Payload: payload}
}

func unicast(connID, topic string, payload any) Frame {
	return Frame{ConnID: connID, Topic: topic, Payload: payload}
}

// actionPayload is the canonical payload string fed to the replay guard's
// content hash.
func actionPayload(x, y int) string {
	return fmt.Sprintf("%d,%d", x, y)
}
