package game

import (
	"testing"
	"time"

	"github.com/fed135/mine-land/internal/grid"
	"github.com/fed135/mine-land/internal/net/proto"
)

func TestMoveRequiresWalkableGround(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	e := newTestEngine(clock, false)
	p, creds := join(t, e, "conn-1")
	start := p.Pos

	// Every neighbor of the spawn is still covered.
	if frames := act(e, p, creds, "move", grid.Pos{X: start.X + 1, Y: start.Y}); frames != nil {
		t.Fatalf("stepping onto covered ground must be refused silently")
	}
	if p.Pos != start {
		t.Fatalf("a refused move must not change the position")
	}
}

func TestMoveStepsOneTile(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	e := newTestEngine(clock, false)
	p, creds := join(t, e, "conn-1")
	target := grid.Pos{X: p.Pos.X + 1, Y: p.Pos.Y}
	e.grid.At(target).Revealed = true

	frames := act(e, p, creds, "move", target)
	if _, ok := findFrame(frames, proto.TopicViewport); !ok {
		t.Fatalf("a move must refresh the mover's viewport")
	}
	if _, ok := findFrame(frames, proto.TopicPlayerUpdate); !ok {
		t.Fatalf("a move must broadcast the new position")
	}
	if p.Pos != target {
		t.Fatalf("got %v, want %v", p.Pos, target)
	}
}

func TestMoveRefusesDiagonalsAndJumps(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	e := newTestEngine(clock, false)
	p, creds := join(t, e, "conn-1")
	start := p.Pos

	targets := []grid.Pos{
		{X: start.X + 1, Y: start.Y + 1},
		{X: start.X + 2, Y: start.Y},
		start,
	}
	for _, target := range targets {
		e.grid.At(target).Revealed = true
		clock.advance(1100 * time.Millisecond)
		if frames := act(e, p, creds, "move", target); frames != nil {
			t.Fatalf("move to %v is not cardinal-adjacent and must be refused", target)
		}
	}
}

func TestDeadPlayersKeepMoving(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	e := newTestEngine(clock, false)
	p, creds := join(t, e, "conn-1")
	p.Alive = false
	target := grid.Pos{X: p.Pos.X + 1, Y: p.Pos.Y}
	e.grid.At(target).Revealed = true

	if frames := act(e, p, creds, "move", target); frames == nil {
		t.Fatalf("dead players spectate by moving")
	}
	clock.advance(1100 * time.Millisecond)
	if frames := act(e, p, creds, "flip", grid.Pos{X: p.Pos.X, Y: p.Pos.Y + 1}); frames != nil {
		t.Fatalf("dead players must not touch tiles")
	}
}

func TestFlipRevealsAndScores(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	e := newTestEngine(clock, false)
	p, creds := join(t, e, "conn-1")
	target := grid.Pos{X: p.Pos.X + 1, Y: p.Pos.Y}

	frames := act(e, p, creds, "flip", target)
	if !e.grid.At(target).Revealed {
		t.Fatalf("flip must reveal the tile")
	}
	if p.Score != RevealScore {
		t.Fatalf("got score %d, want %d", p.Score, RevealScore)
	}
	tile, ok := findFrame(frames, proto.TopicTileUpdate)
	if !ok {
		t.Fatalf("flip must broadcast a tile update")
	}
	if update := tile.Payload.(proto.TileUpdate); update.Action != "flip" || update.PlayerID != p.ID {
		t.Fatalf("unexpected tile update: %+v", update)
	}
	if _, ok := findFrame(frames, proto.TopicLeaderboard); !ok {
		t.Fatalf("scoring must refresh the leaderboard")
	}
}

func TestFlipDoesNotFlood(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	e := newTestEngine(clock, false)
	p, creds := join(t, e, "conn-1")
	target := grid.Pos{X: p.Pos.X + 1, Y: p.Pos.Y}

	act(e, p, creds, "flip", target)
	revealed := 0
	for y := 0; y < e.grid.Height; y++ {
		for x := 0; x < e.grid.Width; x++ {
			if e.grid.At(grid.Pos{X: x, Y: y}).Revealed {
				revealed++
			}
		}
	}
	// The spawn tile plus the one flipped tile; empty ground never cascades.
	if revealed != 2 {
		t.Fatalf("flip must reveal exactly one tile, world has %d revealed", revealed)
	}
}

func TestFlipFlagTokenGrantsFlags(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	e := newTestEngine(clock, false)
	p, creds := join(t, e, "conn-1")
	target := grid.Pos{X: p.Pos.X + 1, Y: p.Pos.Y}
	e.grid.At(target).Kind = grid.KindFlagToken

	act(e, p, creds, "flip", target)
	if p.Flags != StartingFlags+FlagTokenGrant {
		t.Fatalf("got %d flags, want %d", p.Flags, StartingFlags+FlagTokenGrant)
	}
	if p.Score != RevealScore {
		t.Fatalf("token collection still scores the reveal, got %d", p.Score)
	}
	tile := e.grid.At(target)
	if tile.Kind != grid.KindEmpty {
		t.Fatalf("collected token must leave plain ground, got %v", tile.Kind)
	}
}

func TestFlipCollectedTokenShowsNeighborCount(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	e := newTestEngine(clock, false)
	p, creds := join(t, e, "conn-1")
	target := grid.Pos{X: p.Pos.X + 1, Y: p.Pos.Y}
	e.grid.At(target).Kind = grid.KindFlagToken
	placeMine(e, grid.Pos{X: target.X + 1, Y: target.Y})
	placeMine(e, grid.Pos{X: target.X + 1, Y: target.Y + 1})

	act(e, p, creds, "flip", target)
	tile := e.grid.At(target)
	if tile.Kind != grid.KindNumbered || tile.Number != 2 {
		t.Fatalf("collected token must carry its true neighbor count, got %v/%d", tile.Kind, tile.Number)
	}
}

func TestFlipRefusals(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	e := newTestEngine(clock, false)
	p, creds := join(t, e, "conn-1")
	start := p.Pos

	revealed := grid.Pos{X: start.X + 1, Y: start.Y}
	e.grid.At(revealed).Revealed = true
	flagged := grid.Pos{X: start.X - 1, Y: start.Y}
	e.grid.At(flagged).Flagged = true

	cases := []struct {
		name   string
		target grid.Pos
	}{
		{"own tile", start},
		{"already revealed", revealed},
		{"flagged tile", flagged},
		{"too far", grid.Pos{X: start.X + 2, Y: start.Y}},
		{"out of bounds", grid.Pos{X: -1, Y: start.Y}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clock.advance(1100 * time.Millisecond)
			if frames := act(e, p, creds, "flip", tc.target); frames != nil {
				t.Fatalf("flip must be refused silently, got %+v", frames)
			}
		})
	}
	if p.Score != 0 {
		t.Fatalf("refused flips must not score, got %d", p.Score)
	}
}

func TestFlagSpendsAndScoresMines(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	e := newTestEngine(clock, false)
	p, creds := join(t, e, "conn-1")
	mine := grid.Pos{X: p.Pos.X + 1, Y: p.Pos.Y}
	safe := grid.Pos{X: p.Pos.X, Y: p.Pos.Y + 1}
	placeMine(e, mine)
	placeMine(e, grid.Pos{X: 2, Y: 2})

	act(e, p, creds, "flag", mine)
	if p.Flags != StartingFlags-1 {
		t.Fatalf("got %d flags, want %d", p.Flags, StartingFlags-1)
	}
	if p.Score != MineFlagScore {
		t.Fatalf("got score %d, want %d", p.Score, MineFlagScore)
	}
	if e.flaggedMines != 1 {
		t.Fatalf("mine flag must advance the win condition")
	}
	tile := e.grid.At(mine)
	if !tile.Flagged || tile.FlaggedBy != p.ID {
		t.Fatalf("tile must record the flagger: %+v", tile)
	}

	clock.advance(1100 * time.Millisecond)
	act(e, p, creds, "flag", safe)
	if p.Score != MineFlagScore {
		t.Fatalf("flagging safe ground must not score, got %d", p.Score)
	}
	if e.flaggedMines != 1 {
		t.Fatalf("safe flags must not advance the win condition")
	}
}

func TestFlagRequiresBudget(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	e := newTestEngine(clock, false)
	p, creds := join(t, e, "conn-1")
	p.Flags = 0

	target := grid.Pos{X: p.Pos.X + 1, Y: p.Pos.Y}
	if frames := act(e, p, creds, "flag", target); frames != nil {
		t.Fatalf("flagging without budget must be refused silently")
	}
	if e.grid.At(target).Flagged {
		t.Fatalf("refused flag must not mark the tile")
	}
}

func TestUnflagIsRefused(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	e := newTestEngine(clock, false)
	p, creds := join(t, e, "conn-1")
	target := grid.Pos{X: p.Pos.X + 1, Y: p.Pos.Y}
	act(e, p, creds, "flag", target)

	clock.advance(1100 * time.Millisecond)
	if frames := act(e, p, creds, "unflag", target); frames != nil {
		t.Fatalf("placed flags are permanent; unflag must be refused")
	}
	if !e.grid.At(target).Flagged {
		t.Fatalf("the flag must survive the attempt")
	}
	if p.Flags != StartingFlags-1 {
		t.Fatalf("no refund on a refused unflag, got %d flags", p.Flags)
	}
}
