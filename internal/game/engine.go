// Package game is the authoritative engine: the action pipeline, the rule
// handlers, the explosion scheduler, and the lifecycle glue between players,
// sessions, and the security guards. Every mutation of the grid and the
// player registry happens under the engine mutex, which is the single-writer
// lock of the whole world.
package game

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fed135/mine-land/internal/grid"
	"github.com/fed135/mine-land/internal/net/proto"
	"github.com/fed135/mine-land/internal/player"
	"github.com/fed135/mine-land/internal/security"
	"github.com/fed135/mine-land/internal/session"
	"github.com/fed135/mine-land/internal/telemetry"
	"github.com/fed135/mine-land/internal/viewport"
	"github.com/fed135/mine-land/logging"
	loggameplay "github.com/fed135/mine-land/logging/gameplay"
	logsecurity "github.com/fed135/mine-land/logging/security"
)

// Config tunes one engine instance.
type Config struct {
	Grid          grid.Config
	SessionSecret []byte
	AdminKey      string
	AutoBan       bool
}

// Deps are the injected seams: everything here has a working default.
type Deps struct {
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Publisher logging.Publisher
	Clock     func() time.Time
}

func (d Deps) normalized() Deps {
	if d.Logger == nil {
		d.Logger = telemetry.NopLogger()
	}
	if d.Metrics == nil {
		d.Metrics = telemetry.NopMetrics()
	}
	if d.Publisher == nil {
		d.Publisher = logging.NopPublisher()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return d
}

// Engine owns the world. Callers reach it through the hub's single loop
// goroutine plus read-only diagnostics, so the mutex sees little contention.
type Engine struct {
	mu   sync.Mutex
	cfg  Config
	deps Deps

	grid     *grid.Grid
	players  *player.Registry
	sessions *session.Manager
	limiter  *security.RateLimiter
	guard    *security.ReplayGuard
	monitor  *security.Monitor

	spawnPick *rand.Rand

	tick         uint64
	startedAt    time.Time
	totalMines   int
	flaggedMines int
	ended        bool
	endedAt      time.Time

	fuses []fuse

	lastSweep time.Time
	lastGC    time.Time
}

// NewEngine generates the world and wires the security layer around it.
func NewEngine(cfg Config, deps Deps) *Engine {
	deps = deps.normalized()
	g := grid.Generate(cfg.Grid)
	now := deps.Clock()
	e := &Engine{
		cfg:        cfg,
		deps:       deps,
		grid:       g,
		players:    player.NewRegistry(),
		sessions:   session.NewManager(cfg.SessionSecret, SessionMaxAge, SessionIdleTimeout, deps.Clock),
		limiter:    security.NewRateLimiter(deps.Clock),
		guard:      security.NewReplayGuard(deps.Clock),
		monitor:    security.NewMonitor(cfg.AutoBan, deps.Clock),
		spawnPick:  grid.NewDeterministicRNG(cfg.Grid.Seed, "spawn-picks"),
		startedAt:  now,
		totalMines: g.Mines,
		lastSweep:  now,
		lastGC:     now,
	}
	deps.Metrics.Store("game_total_mines", uint64(g.Mines))
	return e
}

// Welcome creates a player at a random spawn, or restores an existing one
// when the presented session resumes. An invalid or expired session falls
// back to a fresh identity rather than refusing the connection.
func (e *Engine) Welcome(connID string, prefs proto.Preferences) []Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.deps.Clock()

	if prefs.SessionID != "" && prefs.SessionToken != "" {
		if sess, err := e.sessions.Resume(prefs.SessionID, prefs.SessionToken); err == nil {
			if p := e.players.Get(sess.PlayerID); p != nil {
				return e.resumeLocked(connID, p, sess, now)
			}
		}
	}

	id := "player-" + uuid.NewString()
	name := proto.CleanUsername(prefs.Name)
	p := &player.Player{
		ID:        id,
		Username:  name,
		Color:     proto.NormalizeColor(prefs.Color),
		Pos:       e.pickSpawnLocked(),
		Flags:     StartingFlags,
		Alive:     true,
		Connected: true,
		ConnID:    connID,
		JoinedAt:  now,
	}

	sess, err := e.sessions.Create(id, name)
	if err != nil {
		e.deps.Logger.Printf("welcome failed for conn %s: %v", connID, err)
		return nil
	}
	p.SessionID = sess.ID
	e.players.Add(p)
	e.deps.Metrics.Add("game_players_created_total", 1)

	loggameplay.PlayerJoined(context.Background(), e.deps.Publisher, e.tick, logging.PlayerRef(id), loggameplay.JoinPayload{
		Username: name,
		X:        p.Pos.X,
		Y:        p.Pos.Y,
	})

	return []Frame{
		unicast(connID, proto.TopicSessionAssigned, proto.SessionAssigned{
			SessionID:    sess.ID,
			SessionToken: sess.Token,
		}),
		unicast(connID, proto.TopicWelcome, e.welcomeLocked(p)),
		broadcast(proto.TopicPlayerUpdate, proto.PlayerUpdate{Player: p.Public()}),
	}
}

func (e *Engine) resumeLocked(connID string, p *player.Player, sess session.Session, now time.Time) []Frame {
	if p.ConnID != "" && p.ConnID != connID {
		// The old socket is stale; the new one wins.
		e.players.SetConnection(p.ID, "")
	}
	e.players.SetConnection(p.ID, connID)
	p.Connected = true
	e.deps.Metrics.Add("game_reconnections_total", 1)

	loggameplay.PlayerJoined(context.Background(), e.deps.Publisher, e.tick, logging.PlayerRef(p.ID), loggameplay.JoinPayload{
		Username:     p.Username,
		Reconnection: true,
		X:            p.Pos.X,
		Y:            p.Pos.Y,
	})

	return []Frame{
		unicast(connID, proto.TopicSessionAssigned, proto.SessionAssigned{
			SessionID:      sess.ID,
			SessionToken:   sess.Token,
			IsReconnection: true,
		}),
		unicast(connID, proto.TopicWelcome, e.welcomeLocked(p)),
		broadcast(proto.TopicPlayerUpdate, proto.PlayerUpdate{Player: p.Public()}),
	}
}

// Disconnect marks the player offline but keeps the record; the idle sweeper
// performs the eventual eviction.
func (e *Engine) Disconnect(connID string) []Frame {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.players.ByConnection(connID)
	if p == nil {
		return nil
	}
	e.players.SetConnection(p.ID, "")
	p.Connected = false
	return []Frame{broadcast(proto.TopicPlayerUpdate, proto.PlayerUpdate{Player: p.Public()})}
}

// Tick advances time-driven work: due chain explosions, the idle sweep, and
// guard garbage collection. It runs before command processing each loop tick.
func (e *Engine) Tick(now time.Time) []Frame {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.tick++
	var frames []Frame

	frames = append(frames, e.detonateDueLocked(now)...)

	if now.Sub(e.lastSweep) >= SweepInterval {
		e.lastSweep = now
		frames = append(frames, e.sweepLocked(now)...)
	}
	if now.Sub(e.lastGC) >= GuardGCInterval {
		e.lastGC = now
		e.limiter.GC()
		e.guard.GC()
	}
	return frames
}

func (e *Engine) sweepLocked(now time.Time) []Frame {
	var frames []Frame
	for _, sess := range e.sessions.SweepIdle() {
		p := e.players.Remove(sess.PlayerID)
		e.limiter.Forget(sess.PlayerID)
		e.guard.Forget(sess.PlayerID)
		if p == nil {
			continue
		}
		e.deps.Metrics.Add("game_players_evicted_total", 1)
		loggameplay.PlayerEvicted(context.Background(), e.deps.Publisher, e.tick, logging.PlayerRef(p.ID), loggameplay.EvictionPayload{
			IdleSeconds: int(now.Sub(sess.LastActive) / time.Second),
		})
		if p.ConnID != "" {
			frames = append(frames, Frame{ConnID: p.ConnID, Close: true})
		}
		p.Connected = false
		frames = append(frames,
			broadcast(proto.TopicPlayerUpdate, proto.PlayerUpdate{Player: p.Public()}),
			e.leaderboardLocked(),
		)
	}
	return frames
}

// Reset regenerates the grid and returns every surviving player to a spawn
// with a zeroed score. Sessions survive so clients can keep playing without a
// fresh handshake.
func (e *Engine) Reset(seed string) []Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.deps.Clock()

	cfg := e.cfg.Grid
	if seed != "" {
		cfg.Seed = seed
	}
	e.grid = grid.Generate(cfg)
	e.cfg.Grid = cfg
	e.spawnPick = grid.NewDeterministicRNG(cfg.Seed, "spawn-picks")
	e.totalMines = e.grid.Mines
	e.flaggedMines = 0
	e.ended = false
	e.endedAt = time.Time{}
	e.fuses = nil
	e.startedAt = now
	e.deps.Metrics.Store("game_total_mines", uint64(e.grid.Mines))

	frames := []Frame{broadcast(proto.TopicGameEnd, proto.GameEnd{
		Reason:    EndReasonReset,
		Timestamp: now.UnixMilli(),
	})}
	for _, p := range e.players.All() {
		e.players.MoveTo(p.ID, e.pickSpawnLocked())
		p.Score = 0
		p.Flags = StartingFlags
		p.Alive = true
		frames = append(frames, broadcast(proto.TopicPlayerUpdate, proto.PlayerUpdate{Player: p.Public()}))
	}
	frames = append(frames, e.leaderboardLocked())
	return frames
}

// Dashboard answers the operator dashboard, gated by the admin key. A ban
// command invalidates the target's sessions and drops their connection.
func (e *Engine) Dashboard(connID string, req proto.DashboardRequest) []Frame {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cfg.AdminKey == "" || req.AdminKey != e.cfg.AdminKey {
		e.deps.Logger.Printf("dashboard request with bad admin key from conn %s", connID)
		return nil
	}

	var frames []Frame
	if req.Command == "ban" && req.PlayerID != "" {
		frames = append(frames, e.banLocked(req.PlayerID, "operator")...)
	}

	snap := e.monitor.View()
	frames = append(frames, unicast(connID, proto.TopicDashboard, dashboardView{
		Security:       snap,
		Players:        e.players.Len(),
		Sessions:       e.sessions.Len(),
		LimiterTracked: e.limiter.Tracked(),
		PendingFuses:   len(e.fuses),
		Tick:           e.tick,
	}))
	return frames
}

type dashboardView struct {
	Security       security.Snapshot `json:"security"`
	Players        int               `json:"players"`
	Sessions       int               `json:"sessions"`
	LimiterTracked int               `json:"limiterTracked"`
	PendingFuses   int               `json:"pendingFuses"`
	Tick           uint64            `json:"tick"`
}

func (e *Engine) banLocked(playerID, issuedBy string) []Frame {
	e.monitor.Ban(playerID)
	e.sessions.InvalidateByPlayer(playerID)
	logsecurity.PlayerBanned(context.Background(), e.deps.Publisher, e.tick, logging.PlayerRef(playerID), logsecurity.BanPayload{
		RiskScore: e.monitor.RiskScore(playerID),
		IssuedBy:  issuedBy,
	})

	var frames []Frame
	if p := e.players.Get(playerID); p != nil {
		if p.ConnID != "" {
			frames = append(frames, Frame{ConnID: p.ConnID, Close: true})
			e.players.SetConnection(playerID, "")
		}
		p.Connected = false
		frames = append(frames, broadcast(proto.TopicPlayerUpdate, proto.PlayerUpdate{Player: p.Public()}))
	}
	return frames
}

// Diagnostics is the operator-facing counters block for the HTTP endpoint.
type Diagnostics struct {
	Tick          uint64 `json:"tick"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
	Players       int    `json:"players"`
	Connected     int    `json:"connected"`
	Sessions      int    `json:"sessions"`
	TotalMines    int    `json:"totalMines"`
	FlaggedMines  int    `json:"flaggedMines"`
	Progress      int    `json:"progress"`
	PendingFuses  int    `json:"pendingFuses"`
	Ended         bool   `json:"ended"`
}

// Snapshot copies the diagnostics view.
func (e *Engine) Snapshot() Diagnostics {
	e.mu.Lock()
	defer e.mu.Unlock()

	connected := 0
	for _, p := range e.players.All() {
		if p.Connected {
			connected++
		}
	}
	return Diagnostics{
		Tick:          e.tick,
		UptimeSeconds: int64(e.deps.Clock().Sub(e.startedAt) / time.Second),
		Players:       e.players.Len(),
		Connected:     connected,
		Sessions:      e.sessions.Len(),
		TotalMines:    e.totalMines,
		FlaggedMines:  e.flaggedMines,
		Progress:      e.progressLocked(),
		PendingFuses:  len(e.fuses),
		Ended:         e.ended,
	}
}

func (e *Engine) pickSpawnLocked() grid.Pos {
	spawns := e.grid.Spawns()
	if len(spawns) == 0 {
		return grid.Pos{X: e.grid.Width / 2, Y: e.grid.Height / 2}
	}
	return spawns[e.spawnPick.Intn(len(spawns))]
}

// progressLocked is the flagged-mine percentage exposed to clients; the raw
// remaining count stays server-side.
func (e *Engine) progressLocked() int {
	if e.totalMines <= 0 {
		return 100
	}
	return e.flaggedMines * 100 / e.totalMines
}

func (e *Engine) welcomeLocked(p *player.Player) proto.Welcome {
	return proto.Welcome{
		PlayerID: p.ID,
		Player:   p.Public(),
		GameState: proto.GameState{
			StartTime:      e.startedAt.UnixMilli(),
			Ended:          e.ended,
			MinesRemaining: e.progressLocked(),
		},
		Viewport: viewport.Materialize(e.grid, e.players, p, viewport.DefaultExtent, viewport.DefaultExtent),
	}
}

func (e *Engine) viewportFrameLocked(p *player.Player, halfX, halfY int) Frame {
	window := viewport.Materialize(e.grid, e.players, p, halfX, halfY)
	return unicast(p.ConnID, proto.TopicViewport, proto.ViewportUpdate{
		TargetPlayerID: p.ID,
		Tiles:          window.Tiles,
		Players:        window.Players,
	})
}

func (e *Engine) leaderboardLocked() Frame {
	ranked := e.players.Leaderboard(0)
	entries := make([]proto.LeaderboardEntry, 0, len(ranked))
	for _, p := range ranked {
		entries = append(entries, proto.LeaderboardEntry{
			ID:       p.ID,
			Username: p.Username,
			Score:    p.Score,
			Flags:    p.Flags,
			Alive:    p.Alive,
			Color:    p.Color,
		})
	}
	return broadcast(proto.TopicLeaderboard, proto.LeaderboardUpdate{Players: entries})
}

func (e *Engine) tileUpdateLocked(p grid.Pos, action, playerID string, now time.Time) Frame {
	return broadcast(proto.TopicTileUpdate, proto.TileUpdate{
		X:         p.X,
		Y:         p.Y,
		Action:    action,
		PlayerID:  playerID,
		Timestamp: now.UnixMilli(),
	})
}

// checkGameEndLocked announces the end of the match exactly once, when every
// remaining mine is flagged.
func (e *Engine) checkGameEndLocked(now time.Time) []Frame {
	if e.ended || e.flaggedMines < e.totalMines {
		return nil
	}
	e.ended = true
	e.endedAt = now
	e.deps.Metrics.Add("game_ended_total", 1)
	loggameplay.GameEnd(context.Background(), e.deps.Publisher, e.tick, loggameplay.GameEndPayload{
		Reason:       EndReasonCleared,
		FlaggedMines: e.flaggedMines,
		TotalMines:   e.totalMines,
	})
	return []Frame{broadcast(proto.TopicGameEnd, proto.GameEnd{
		Reason:    EndReasonCleared,
		Timestamp: now.UnixMilli(),
	})}
}

// String implements fmt.Stringer for debug logs.
func (e *Engine) String() string {
	snap := e.Snapshot()
	return fmt.Sprintf("engine{players=%d mines=%d/%d ended=%v}", snap.Players, snap.FlaggedMines, snap.TotalMines, snap.Ended)
}
