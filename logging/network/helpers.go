package network

import (
	"context"

	"github.com/fed135/mine-land/logging"
)

const (
	// EventConnectionOpened is emitted when a socket subscribes to the hub.
	EventConnectionOpened logging.EventType = "network.connection_opened"
	// EventConnectionClosed is emitted when a socket leaves the hub.
	EventConnectionClosed logging.EventType = "network.connection_closed"
	// EventCommandDropped is emitted when backpressure sheds an inbound command.
	EventCommandDropped logging.EventType = "network.command_dropped"
)

// ConnectionPayload captures the hub population around a lifecycle change.
type ConnectionPayload struct {
	ConnID      string `json:"connId"`
	Subscribers int    `json:"subscribers"`
}

// DropPayload captures one shed command and the running drop count for its
// connection.
type DropPayload struct {
	ConnID string `json:"connId"`
	Topic  string `json:"topic"`
	Count  uint64 `json:"count"`
}

// ConnectionOpened publishes a subscribe event.
func ConnectionOpened(ctx context.Context, pub logging.Publisher, tick uint64, payload ConnectionPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventConnectionOpened,
		Tick:     tick,
		Actor:    logging.WorldRef(),
		Severity: logging.SeverityDebug,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

// ConnectionClosed publishes an unsubscribe event.
func ConnectionClosed(ctx context.Context, pub logging.Publisher, tick uint64, payload ConnectionPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventConnectionClosed,
		Tick:     tick,
		Actor:    logging.WorldRef(),
		Severity: logging.SeverityDebug,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

// CommandDropped publishes a backpressure shed. Callers throttle this to
// power-of-two drop counts so a flooding client cannot flood the sinks.
func CommandDropped(ctx context.Context, pub logging.Publisher, tick uint64, payload DropPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCommandDropped,
		Tick:     tick,
		Actor:    logging.WorldRef(),
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}
