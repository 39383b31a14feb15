package security

import (
	"context"

	"github.com/fed135/mine-land/logging"
)

const (
	// EventActionRejected is emitted when a security gate refuses an action.
	EventActionRejected logging.EventType = "security.action_rejected"
	// EventSessionMismatch is emitted when a session binds another player.
	EventSessionMismatch logging.EventType = "security.session_mismatch"
	// EventPlayerFlagged is emitted when replay strikes mark a player for
	// operator review.
	EventPlayerFlagged logging.EventType = "security.player_flagged"
	// EventPlayerBanned is emitted when a player enters the ban set.
	EventPlayerBanned logging.EventType = "security.player_banned"
)

// RejectionPayload captures the gate decision surfaced to the dashboard.
type RejectionPayload struct {
	Action     string `json:"action"`
	Reason     string `json:"reason"`
	Severity   string `json:"severity"`
	Disconnect bool   `json:"disconnect,omitempty"`
}

// FlagPayload carries the strike counter that crossed the review threshold.
type FlagPayload struct {
	Strikes int `json:"strikes"`
}

// BanPayload records who or what issued the ban.
type BanPayload struct {
	RiskScore int    `json:"riskScore"`
	IssuedBy  string `json:"issuedBy"`
}

func severityFor(raw string) logging.Severity {
	switch raw {
	case "high":
		return logging.SeverityWarn
	case "medium":
		return logging.SeverityInfo
	default:
		return logging.SeverityDebug
	}
}

// ActionRejected publishes a gate rejection.
func ActionRejected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload RejectionPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventActionRejected,
		Tick:     tick,
		Actor:    actor,
		Severity: severityFor(payload.Severity),
		Category: logging.CategorySecurity,
		Payload:  payload,
	})
}

// SessionMismatch publishes a disconnect-worthy identity failure.
func SessionMismatch(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload RejectionPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSessionMismatch,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategorySecurity,
		Payload:  payload,
	})
}

// PlayerFlagged publishes a review flag raised by the replay guard.
func PlayerFlagged(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload FlagPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPlayerFlagged,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategorySecurity,
		Payload:  payload,
	})
}

// PlayerBanned publishes a ban decision.
func PlayerBanned(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload BanPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPlayerBanned,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategorySecurity,
		Payload:  payload,
	})
}
