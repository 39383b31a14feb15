package gameplay

import (
	"context"

	"github.com/fed135/mine-land/logging"
)

const (
	// EventPlayerJoined is emitted when a welcome creates or resumes a player.
	EventPlayerJoined logging.EventType = "gameplay.player_joined"
	// EventPlayerEvicted is emitted when the idle sweeper removes a player.
	EventPlayerEvicted logging.EventType = "gameplay.player_evicted"
	// EventTileFlipped is emitted for every accepted flip.
	EventTileFlipped logging.EventType = "gameplay.tile_flipped"
	// EventTileFlagged is emitted for every accepted flag.
	EventTileFlagged logging.EventType = "gameplay.tile_flagged"
	// EventExplosion is emitted once per detonation, chained ones included.
	EventExplosion logging.EventType = "gameplay.explosion"
	// EventPlayerDeath is emitted per player caught in a blast radius.
	EventPlayerDeath logging.EventType = "gameplay.player_death"
	// EventGameEnd is emitted exactly once, when no armed mines remain.
	EventGameEnd logging.EventType = "gameplay.game_end"
)

// JoinPayload captures how a player entered the world.
type JoinPayload struct {
	Username     string `json:"username"`
	Reconnection bool   `json:"reconnection"`
	X            int    `json:"x"`
	Y            int    `json:"y"`
}

// EvictionPayload captures the idle window that triggered removal.
type EvictionPayload struct {
	IdleSeconds int `json:"idleSeconds"`
}

// TilePayload describes the tile an action landed on.
type TilePayload struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Kind string `json:"kind,omitempty"`
}

// ExplosionPayload summarizes one detonation.
type ExplosionPayload struct {
	X        int      `json:"x"`
	Y        int      `json:"y"`
	Affected int      `json:"affected"`
	Chained  int      `json:"chained"`
	Killed   []string `json:"killed,omitempty"`
}

// DeathPayload carries the cause of a player death.
type DeathPayload struct {
	Reason string `json:"reason"`
}

// GameEndPayload carries the final mine accounting.
type GameEndPayload struct {
	Reason       string `json:"reason"`
	FlaggedMines int    `json:"flaggedMines"`
	TotalMines   int    `json:"totalMines"`
}

// PlayerJoined publishes a welcome or reconnect event.
func PlayerJoined(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload JoinPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPlayerJoined,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryGameplay,
		Payload:  payload,
	})
}

// PlayerEvicted publishes an idle-eviction event.
func PlayerEvicted(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload EvictionPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPlayerEvicted,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryGameplay,
		Payload:  payload,
	})
}

// TileFlipped publishes a reveal event. Flips are the hottest path, so they
// log at debug severity.
func TileFlipped(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload TilePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventTileFlipped,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryGameplay,
		Payload:  payload,
	})
}

// TileFlagged publishes a flag placement event.
func TileFlagged(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload TilePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventTileFlagged,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryGameplay,
		Payload:  payload,
	})
}

// Explosion publishes one detonation with its casualties.
func Explosion(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ExplosionPayload) {
	if pub == nil {
		return
	}
	targets := make([]logging.EntityRef, 0, len(payload.Killed))
	for _, id := range payload.Killed {
		targets = append(targets, logging.PlayerRef(id))
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventExplosion,
		Tick:     tick,
		Actor:    actor,
		Targets:  targets,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryGameplay,
		Payload:  payload,
	})
}

// PlayerDeath publishes a death event for one casualty.
func PlayerDeath(ctx context.Context, pub logging.Publisher, tick uint64, target logging.EntityRef, payload DeathPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPlayerDeath,
		Tick:     tick,
		Actor:    logging.WorldRef(),
		Targets:  []logging.EntityRef{target},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryGameplay,
		Payload:  payload,
	})
}

// GameEnd publishes the end-of-match event.
func GameEnd(ctx context.Context, pub logging.Publisher, tick uint64, payload GameEndPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventGameEnd,
		Tick:     tick,
		Actor:    logging.WorldRef(),
		Severity: logging.SeverityInfo,
		Category: logging.CategoryGameplay,
		Payload:  payload,
	})
}
