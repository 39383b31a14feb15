package game

import (
	"context"
	"time"

	"github.com/fed135/mine-land/internal/grid"
	"github.com/fed135/mine-land/internal/net/proto"
	"github.com/fed135/mine-land/internal/player"
	"github.com/fed135/mine-land/internal/security"
	"github.com/fed135/mine-land/internal/session"
	"github.com/fed135/mine-land/logging"
	logsecurity "github.com/fed135/mine-land/logging/security"
)

// HandleAction is the single entry point for player actions. The gates run in
// a fixed order and short-circuit on the first failure: ban set, aliveness,
// session, rate limit, replay guard, geometry, then the rule handler.
func (e *Engine) HandleAction(connID string, req proto.ActionRequest) []Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.deps.Clock()

	actor := e.players.ByConnection(connID)
	if actor == nil {
		e.deps.Logger.Printf("action from unknown conn %s dropped", connID)
		return nil
	}
	kind, ok := ParseKind(req.Action)
	if !ok {
		e.deps.Logger.Printf("unknown action %q from %s dropped", req.Action, actor.ID)
		return nil
	}
	target := grid.Pos{X: req.X, Y: req.Y}

	if rej := e.gateLocked(actor, kind, req, target); rej != nil {
		return e.rejectLocked(actor, kind, *rej)
	}

	frames, rej := e.applyRuleLocked(actor, kind, target, now, req)
	if rej != nil {
		return e.rejectLocked(actor, kind, *rej)
	}

	e.guard.Commit(actor.ID, string(kind), actionPayload(req.X, req.Y))
	e.deps.Metrics.Add("game_actions_accepted_total", 1)
	return frames
}

func (e *Engine) gateLocked(actor *player.Player, kind Kind, req proto.ActionRequest, target grid.Pos) *Rejection {
	if e.monitor.IsBanned(actor.ID) {
		return &Rejection{Reason: ReasonBanned, Severity: SeverityHigh, Disconnect: true, Security: true}
	}

	if kind != KindMove && !actor.Alive {
		return ruleRejection(ReasonDead)
	}

	if _, err := e.sessions.Validate(req.SessionID, req.SessionToken, actor.ID); err != nil {
		if err == session.ErrMismatch {
			return &Rejection{Reason: ReasonSessionMismatch, Severity: SeverityHigh, Disconnect: true, Security: true}
		}
		return &Rejection{Reason: ReasonInvalidSession, Severity: SeverityHigh, Security: true}
	}

	if !e.limiter.Allow(actor.ID, string(kind)) {
		return &Rejection{Reason: ReasonRateLimited, Severity: SeverityMedium, Security: true}
	}

	switch e.guard.Check(actor.ID, string(kind), actionPayload(req.X, req.Y)) {
	case security.VerdictReplay:
		return &Rejection{Reason: ReasonReplay, Severity: SeverityHigh, Security: true}
	case security.VerdictDuplicate:
		return &Rejection{Reason: ReasonDuplicate, Severity: SeverityLow, Security: true}
	case security.VerdictAnomaly:
		return &Rejection{Reason: ReasonBadSequence, Severity: SeverityHigh, Security: true}
	}

	if !e.grid.InBounds(target) {
		return ruleRejection(ReasonOutOfBounds)
	}
	switch kind {
	case KindMove:
		if grid.Manhattan(actor.Pos, target) != 1 {
			return ruleRejection(ReasonNotAdjacent)
		}
	default:
		if target == actor.Pos {
			return ruleRejection(ReasonOwnTile)
		}
		if grid.Chebyshev(actor.Pos, target) > 1 {
			return ruleRejection(ReasonNotAdjacent)
		}
		if e.ended {
			return ruleRejection(ReasonGameEnded)
		}
	}
	return nil
}

func (e *Engine) applyRuleLocked(actor *player.Player, kind Kind, target grid.Pos, now time.Time, req proto.ActionRequest) ([]Frame, *Rejection) {
	switch kind {
	case KindMove:
		return e.applyMoveLocked(actor, target, req)
	case KindFlip:
		return e.applyFlipLocked(actor, target, now, req)
	case KindFlag:
		return e.applyFlagLocked(actor, target, now, req)
	default:
		// Unflag stays in the protocol but placed flags are permanent.
		return nil, ruleRejection(ReasonUnflagDisabled)
	}
}

// rejectLocked accounts for a refused action. Security rejections feed the
// monitor and earn the client a notice; rule rejections are part of normal
// play and stay silent.
func (e *Engine) rejectLocked(actor *player.Player, kind Kind, rej Rejection) []Frame {
	e.deps.Metrics.Add("game_actions_rejected_total", 1)
	e.deps.Metrics.Add("game_reject_"+rej.Reason+"_total", 1)

	if !rej.Security {
		return nil
	}

	ctx := context.Background()
	payload := logsecurity.RejectionPayload{
		Action:     string(kind),
		Reason:     rej.Reason,
		Severity:   string(rej.Severity),
		Disconnect: rej.Disconnect,
	}
	if rej.Reason == ReasonSessionMismatch {
		logsecurity.SessionMismatch(ctx, e.deps.Publisher, e.tick, logging.PlayerRef(actor.ID), payload)
	} else {
		logsecurity.ActionRejected(ctx, e.deps.Publisher, e.tick, logging.PlayerRef(actor.ID), payload)
	}

	var frames []Frame
	crossed := e.monitor.RecordRejection(actor.ID, string(kind), rej.Reason, string(rej.Severity))

	if rej.Reason == ReasonReplay && e.guard.Strikes(actor.ID) >= security.ReviewStrikes {
		if e.monitor.Flag(actor.ID) {
			logsecurity.PlayerFlagged(ctx, e.deps.Publisher, e.tick, logging.PlayerRef(actor.ID), logsecurity.FlagPayload{
				Strikes: e.guard.Strikes(actor.ID),
			})
		}
		if e.cfg.AutoBan && !e.monitor.IsBanned(actor.ID) {
			crossed = true
		}
	}
	if crossed {
		frames = append(frames, e.banLocked(actor.ID, "auto")...)
	}

	reject := unicast(actor.ConnID, proto.TopicActionRejected, proto.ActionRejected{
		Action:   string(kind),
		Reason:   rej.Reason,
		Severity: string(rej.Severity),
	})
	reject.Close = rej.Disconnect
	frames = append(frames, reject)
	return frames
}
