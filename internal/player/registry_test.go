package player

import (
	"testing"

	"github.com/fed135/mine-land/internal/grid"
)

func newTestPlayer(id string, pos grid.Pos) *Player {
	return &Player{
		ID:        id,
		Username:  "u-" + id,
		Pos:       pos,
		Alive:     true,
		Connected: true,
	}
}

func TestRegistryIndices(t *testing.T) {
	r := NewRegistry()
	p := newTestPlayer("p1", grid.Pos{X: 5, Y: 5})
	p.ConnID = "c1"
	p.SessionID = "s1"
	r.Add(p)

	if r.Get("p1") != p || r.ByConnection("c1") != p || r.BySession("s1") != p {
		t.Fatalf("indices out of step after Add")
	}

	r.SetConnection("p1", "c2")
	if r.ByConnection("c1") != nil || r.ByConnection("c2") != p {
		t.Fatalf("connection reindex failed")
	}

	r.SetSession("p1", "s2")
	if r.BySession("s1") != nil || r.BySession("s2") != p {
		t.Fatalf("session reindex failed")
	}

	r.MoveTo("p1", grid.Pos{X: 6, Y: 5})
	if got := r.At(grid.Pos{X: 5, Y: 5}); len(got) != 0 {
		t.Fatalf("old cell still indexed: %v", got)
	}
	if got := r.At(grid.Pos{X: 6, Y: 5}); len(got) != 1 || got[0] != p {
		t.Fatalf("new cell not indexed")
	}

	removed := r.Remove("p1")
	if removed != p || r.Get("p1") != nil || r.ByConnection("c2") != nil ||
		r.BySession("s2") != nil || len(r.At(grid.Pos{X: 6, Y: 5})) != 0 {
		t.Fatalf("remove left stale index entries")
	}
}

func TestWithinEuclidean(t *testing.T) {
	r := NewRegistry()
	center := grid.Pos{X: 10, Y: 10}
	inside := newTestPlayer("a", grid.Pos{X: 12, Y: 12}) // distance² = 8
	edge := newTestPlayer("b", grid.Pos{X: 13, Y: 10})   // distance² = 9
	outside := newTestPlayer("c", grid.Pos{X: 13, Y: 11})
	r.Add(inside)
	r.Add(edge)
	r.Add(outside)

	got := r.WithinEuclidean(center, 3)
	if len(got) != 2 {
		t.Fatalf("expected 2 players within radius, got %d", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("unexpected order or members: %v, %v", got[0].ID, got[1].ID)
	}
}

func TestLeaderboard(t *testing.T) {
	r := NewRegistry()
	scores := map[string]int{"p1": 5, "p2": 12, "p3": 0, "p4": 12, "p5": 3}
	for id, score := range scores {
		p := newTestPlayer(id, grid.Pos{})
		p.Score = score
		r.Add(p)
	}

	board := r.Leaderboard(3)
	if len(board) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(board))
	}
	// p2 and p4 tie at 12; usernames u-p2 < u-p4.
	if board[0].ID != "p2" || board[1].ID != "p4" || board[2].ID != "p1" {
		t.Fatalf("unexpected ranking: %s, %s, %s", board[0].ID, board[1].ID, board[2].ID)
	}
	for _, p := range board {
		if p.Score <= 0 {
			t.Fatalf("zero-score players must be filtered")
		}
	}
}

func TestAddReplacesExistingID(t *testing.T) {
	r := NewRegistry()
	old := newTestPlayer("p1", grid.Pos{X: 1, Y: 1})
	old.ConnID = "c-old"
	r.Add(old)

	replacement := newTestPlayer("p1", grid.Pos{X: 2, Y: 2})
	replacement.ConnID = "c-new"
	r.Add(replacement)

	if r.Len() != 1 {
		t.Fatalf("expected a single record, got %d", r.Len())
	}
	if r.ByConnection("c-old") != nil {
		t.Fatalf("stale connection index survived replacement")
	}
	if got := r.At(grid.Pos{X: 1, Y: 1}); len(got) != 0 {
		t.Fatalf("stale position index survived replacement")
	}
}

func TestPublicProjection(t *testing.T) {
	p := newTestPlayer("p1", grid.Pos{X: 3, Y: 4})
	p.Score = 9
	p.Flags = 2
	p.Color = "hsl(120, 70%, 50%)"
	p.SessionID = "secret-session"

	pub := p.Public()
	if pub.ID != "p1" || pub.X != 3 || pub.Y != 4 || pub.Score != 9 || pub.Flags != 2 {
		t.Fatalf("projection dropped fields: %+v", pub)
	}
	if pub.Color != "hsl(120, 70%, 50%)" {
		t.Fatalf("color lost: %q", pub.Color)
	}
}
