package game

import (
	"context"
	"time"

	"github.com/fed135/mine-land/internal/grid"
	"github.com/fed135/mine-land/internal/net/proto"
	"github.com/fed135/mine-land/internal/player"
	"github.com/fed135/mine-land/logging"
	loggameplay "github.com/fed135/mine-land/logging/gameplay"
)

// applyMoveLocked steps the actor one tile. Dead players keep moving as
// spectator ghosts; walkability is the only rule.
func (e *Engine) applyMoveLocked(actor *player.Player, target grid.Pos, req proto.ActionRequest) ([]Frame, *Rejection) {
	if !e.grid.Walkable(target) {
		return nil, ruleRejection(ReasonNotWalkable)
	}

	e.players.MoveTo(actor.ID, target)

	return []Frame{
		e.viewportFrameLocked(actor, req.ViewportWidth, req.ViewportHeight),
		broadcast(proto.TopicPlayerUpdate, proto.PlayerUpdate{Player: actor.Public()}),
	}, nil
}

// applyFlipLocked reveals one covered tile. There is no flood reveal: an
// empty tile uncovers only itself.
func (e *Engine) applyFlipLocked(actor *player.Player, target grid.Pos, now time.Time, req proto.ActionRequest) ([]Frame, *Rejection) {
	t := e.grid.At(target)
	if t.Revealed {
		return nil, ruleRejection(ReasonNotCovered)
	}
	if t.Flagged {
		return nil, ruleRejection(ReasonAlreadyFlagged)
	}

	if t.Kind == grid.KindMine {
		var blast []Frame
		if e.igniteLocked(t) {
			blast = e.explodeLocked(target, now)
		}
		// The actor's own viewport goes out ahead of every broadcast the
		// action produced; it is materialized after the blast so it already
		// shows the burned ground.
		frames := []Frame{
			e.viewportFrameLocked(actor, req.ViewportWidth, req.ViewportHeight),
			e.tileUpdateLocked(target, "flip", actor.ID, now),
		}
		frames = append(frames, blast...)
		frames = append(frames, e.checkGameEndLocked(now)...)
		return frames, nil
	}

	t.Revealed = true
	if t.Kind == grid.KindFlagToken {
		actor.Flags += FlagTokenGrant
		// The collected cell turns into regular ground with its true
		// neighbor count.
		if n := e.grid.AdjacentMines(target); n > 0 {
			t.Kind = grid.KindNumbered
			t.Number = uint8(n)
		} else {
			t.Kind = grid.KindEmpty
		}
		e.deps.Metrics.Add("game_flag_tokens_collected_total", 1)
	}
	actor.Score += RevealScore

	loggameplay.TileFlipped(context.Background(), e.deps.Publisher, e.tick, logging.PlayerRef(actor.ID), loggameplay.TilePayload{
		X:    target.X,
		Y:    target.Y,
		Kind: t.Kind.String(),
	})

	return []Frame{
		e.viewportFrameLocked(actor, req.ViewportWidth, req.ViewportHeight),
		e.tileUpdateLocked(target, "flip", actor.ID, now),
		broadcast(proto.TopicPlayerUpdate, proto.PlayerUpdate{Player: actor.Public()}),
		e.leaderboardLocked(),
	}, nil
}

// applyFlagLocked spends one flag on a covered tile. Flagging a mine scores
// and advances the win condition; flags are permanent once placed.
func (e *Engine) applyFlagLocked(actor *player.Player, target grid.Pos, now time.Time, req proto.ActionRequest) ([]Frame, *Rejection) {
	t := e.grid.At(target)
	if t.Revealed {
		return nil, ruleRejection(ReasonNotCovered)
	}
	if t.Flagged {
		return nil, ruleRejection(ReasonAlreadyFlagged)
	}
	if actor.Flags < 1 {
		return nil, ruleRejection(ReasonNoFlags)
	}

	actor.Flags--
	t.Flagged = true
	t.FlaggedBy = actor.ID

	scored := false
	if t.Kind == grid.KindMine {
		actor.Score += MineFlagScore
		e.flaggedMines++
		scored = true
		e.deps.Metrics.Add("game_mines_flagged_total", 1)
	}

	loggameplay.TileFlagged(context.Background(), e.deps.Publisher, e.tick, logging.PlayerRef(actor.ID), loggameplay.TilePayload{
		X: target.X,
		Y: target.Y,
	})

	frames := []Frame{
		e.viewportFrameLocked(actor, req.ViewportWidth, req.ViewportHeight),
		e.tileUpdateLocked(target, "flag", actor.ID, now),
		broadcast(proto.TopicPlayerUpdate, proto.PlayerUpdate{Player: actor.Public()}),
	}
	if scored {
		frames = append(frames, e.leaderboardLocked())
		frames = append(frames, e.checkGameEndLocked(now)...)
	}
	return frames, nil
}
