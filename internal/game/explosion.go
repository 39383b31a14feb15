package game

import (
	"context"
	"time"

	"github.com/fed135/mine-land/internal/grid"
	"github.com/fed135/mine-land/internal/net/proto"
	"github.com/fed135/mine-land/logging"
	loggameplay "github.com/fed135/mine-land/logging/gameplay"
)

// fuse is one scheduled chain detonation. The mine behind it is already
// sealed, so nothing can double-arm it.
type fuse struct {
	origin grid.Pos
	due    time.Time
}

// igniteLocked seals a mine the moment it is triggered or caught in a blast:
// any flag on it is refunded to the accounting (not the player), the mine
// leaves the armed count, and the tile is revealed. Returns false when the
// mine was already sealed.
func (e *Engine) igniteLocked(t *grid.Tile) bool {
	if t == nil || t.Kind != grid.KindMine || t.Exploded {
		return false
	}
	if t.Flagged {
		t.Flagged = false
		t.FlaggedBy = ""
		e.flaggedMines--
	}
	t.Exploded = true
	t.Revealed = true
	e.totalMines--
	return true
}

// explodeLocked resolves one detonation at an already-sealed origin: it burns
// the blast footprint, kills every player inside the Euclidean radius, and
// arms a delayed fuse for every not-yet-sealed mine it uncovers.
func (e *Engine) explodeLocked(origin grid.Pos, now time.Time) []Frame {
	affected := []proto.TileView{proto.RevealedTileView(origin, e.grid.At(origin))}
	chained := 0

	for dy := -ExplosionRadius; dy <= ExplosionRadius; dy++ {
		for dx := -ExplosionRadius; dx <= ExplosionRadius; dx++ {
			if dx*dx+dy*dy > ExplosionRadius*ExplosionRadius || (dx == 0 && dy == 0) {
				continue
			}
			p := grid.Pos{X: origin.X + dx, Y: origin.Y + dy}
			t := e.grid.At(p)
			if t == nil || t.Revealed {
				continue
			}
			if t.Kind == grid.KindMine {
				if e.igniteLocked(t) {
					e.fuses = append(e.fuses, fuse{origin: p, due: now.Add(ChainDelay)})
					chained++
					affected = append(affected, proto.RevealedTileView(p, t))
				}
				continue
			}
			if t.Flagged {
				// Flags on safe ground survive the blast.
				continue
			}
			t.Revealed = true
			t.Exploded = true
			t.Kind = grid.KindExplosion
			t.Number = 0
			affected = append(affected, proto.RevealedTileView(p, t))
		}
	}

	var killed []string
	for _, victim := range e.players.WithinEuclidean(origin, ExplosionRadius) {
		if !victim.Alive {
			continue
		}
		victim.Alive = false
		killed = append(killed, victim.ID)
	}

	e.deps.Metrics.Add("game_explosions_total", 1)
	if chained > 0 {
		e.deps.Metrics.Add("game_chained_explosions_total", uint64(chained))
	}
	loggameplay.Explosion(context.Background(), e.deps.Publisher, e.tick, logging.WorldRef(), loggameplay.ExplosionPayload{
		X:        origin.X,
		Y:        origin.Y,
		Affected: len(affected),
		Chained:  chained,
		Killed:   killed,
	})

	frames := []Frame{broadcast(proto.TopicExplosion, proto.ExplosionEvent{
		X:             origin.X,
		Y:             origin.Y,
		AffectedTiles: affected,
		KilledPlayers: killed,
	})}
	for _, id := range killed {
		victim := e.players.Get(id)
		if victim != nil {
			frames = append(frames, broadcast(proto.TopicPlayerUpdate, proto.PlayerUpdate{Player: victim.Public()}))
		}
		loggameplay.PlayerDeath(context.Background(), e.deps.Publisher, e.tick, logging.PlayerRef(id), loggameplay.DeathPayload{
			Reason: DeathReasonExplosion,
		})
		frames = append(frames, broadcast(proto.TopicPlayerDeath, proto.PlayerDeath{
			PlayerID: id,
			Reason:   DeathReasonExplosion,
			Delay:    DeathNoticeDelayMillis,
		}))
	}
	return frames
}

// detonateDueLocked fires every fuse whose delay has elapsed. New fuses armed
// by a detonation carry a fresh delay, so the work list always shrinks within
// one call.
func (e *Engine) detonateDueLocked(now time.Time) []Frame {
	if len(e.fuses) == 0 {
		return nil
	}
	var frames []Frame
	remaining := e.fuses[:0]
	pending := e.fuses
	e.fuses = nil
	for _, f := range pending {
		if f.due.After(now) {
			remaining = append(remaining, f)
			continue
		}
		frames = append(frames, e.explodeLocked(f.origin, now)...)
	}
	e.fuses = append(e.fuses, remaining...)
	if len(frames) > 0 {
		frames = append(frames, e.checkGameEndLocked(now)...)
	}
	return frames
}
