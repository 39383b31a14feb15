package viewport

import (
	"encoding/json"
	"testing"

	"github.com/fed135/mine-land/internal/grid"
	"github.com/fed135/mine-land/internal/player"
)

func testWorld() (*grid.Grid, *player.Registry, *player.Player) {
	g := grid.New(30, 30)
	reg := player.NewRegistry()
	viewer := &player.Player{
		ID:        "viewer",
		Username:  "viewer",
		Pos:       grid.Pos{X: 15, Y: 15},
		Alive:     true,
		Connected: true,
		ConnID:    "conn-viewer",
	}
	reg.Add(viewer)
	return g, reg, viewer
}

func TestExtentClamps(t *testing.T) {
	cases := []struct {
		requested int
		want      int
	}{
		{0, DefaultExtent},
		{-5, DefaultExtent},
		{7, 7},
		{MaxExtent, MaxExtent},
		{MaxExtent + 1, MaxExtent},
	}
	for _, tc := range cases {
		if got := Extent(tc.requested); got != tc.want {
			t.Fatalf("Extent(%d) = %d, want %d", tc.requested, got, tc.want)
		}
	}
}

func TestRevealedTilesTravelInFull(t *testing.T) {
	g, reg, viewer := testWorld()
	p := grid.Pos{X: 10, Y: 10}
	tile := g.At(p)
	tile.Kind = grid.KindNumbered
	tile.Number = 3
	tile.Revealed = true

	window := Materialize(g, reg, viewer, 10, 10)
	for _, view := range window.Tiles {
		if view.X == p.X && view.Y == p.Y {
			if !view.Revealed || view.Kind != "numbered" || view.Number != 3 {
				t.Fatalf("revealed tile lost content: %+v", view)
			}
			return
		}
	}
	t.Fatalf("revealed tile missing from the window")
}

func TestCoveredMineStaysHidden(t *testing.T) {
	g, reg, viewer := testWorld()
	adjacent := grid.Pos{X: viewer.Pos.X + 1, Y: viewer.Pos.Y}
	g.At(adjacent).Kind = grid.KindMine

	window := Materialize(g, reg, viewer, 10, 10)
	for _, view := range window.Tiles {
		if view.X == adjacent.X && view.Y == adjacent.Y {
			if view.Revealed || view.Kind != "" || view.Number != 0 {
				t.Fatalf("covered mine leaked content: %+v", view)
			}
			return
		}
	}
	t.Fatalf("adjacent covered tile must be present as a stub")
}

func TestDistantCoveredTilesOmitted(t *testing.T) {
	g, reg, viewer := testWorld()

	window := Materialize(g, reg, viewer, 10, 10)
	// Only the 8 covered neighbors around the viewer plus the viewer's own
	// covered tile survive sanitization on a blank grid.
	if len(window.Tiles) != 9 {
		t.Fatalf("expected the 3x3 stub block, got %d tiles", len(window.Tiles))
	}
	for _, view := range window.Tiles {
		if grid.Chebyshev(grid.Pos{X: view.X, Y: view.Y}, viewer.Pos) > 1 {
			t.Fatalf("covered tile beyond distance 1 leaked: %+v", view)
		}
	}
}

func TestFlaggedTilesAlwaysVisible(t *testing.T) {
	g, reg, viewer := testWorld()
	far := grid.Pos{X: viewer.Pos.X + 8, Y: viewer.Pos.Y}
	tile := g.At(far)
	tile.Kind = grid.KindMine
	tile.Flagged = true
	tile.FlaggedBy = "someone"

	window := Materialize(g, reg, viewer, 10, 10)
	for _, view := range window.Tiles {
		if view.X == far.X && view.Y == far.Y {
			if !view.Flagged || view.FlaggedBy != "someone" {
				t.Fatalf("flag state is public: %+v", view)
			}
			if view.Kind != "" {
				t.Fatalf("the flagged mine's kind must stay hidden: %+v", view)
			}
			return
		}
	}
	t.Fatalf("flagged tile missing from the window")
}

func TestWindowClipsAtWorldEdge(t *testing.T) {
	g, reg, viewer := testWorld()
	reg.MoveTo(viewer.ID, grid.Pos{X: 0, Y: 0})

	window := Materialize(g, reg, viewer, 10, 10)
	for _, view := range window.Tiles {
		if view.X < 0 || view.Y < 0 {
			t.Fatalf("out-of-bounds tile leaked: %+v", view)
		}
	}
}

func TestPlayersFilteredToWindow(t *testing.T) {
	g, reg, viewer := testWorld()
	inside := &player.Player{ID: "a-inside", Pos: grid.Pos{X: 18, Y: 18}, Connected: true}
	offline := &player.Player{ID: "b-offline", Pos: grid.Pos{X: 16, Y: 16}, Connected: false}
	outside := &player.Player{ID: "c-outside", Pos: grid.Pos{X: 28, Y: 15}, Connected: true}
	reg.Add(inside)
	reg.Add(offline)
	reg.Add(outside)

	window := Materialize(g, reg, viewer, 10, 10)
	if len(window.Players) != 2 {
		t.Fatalf("expected viewer plus one neighbor, got %d", len(window.Players))
	}
	if window.Players[0].ID != "a-inside" || window.Players[1].ID != "viewer" {
		t.Fatalf("players must come back sorted by id: %+v", window.Players)
	}
}

func TestMaterializationIsDeterministic(t *testing.T) {
	g, reg, viewer := testWorld()
	g.At(grid.Pos{X: 12, Y: 12}).Revealed = true
	g.At(grid.Pos{X: 20, Y: 20}).Flagged = true

	first, err := json.Marshal(Materialize(g, reg, viewer, 10, 10))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, err := json.Marshal(Materialize(g, reg, viewer, 10, 10))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(first) != string(second) {
		t.Fatalf("two materializations without a world change must be identical")
	}
}

func TestNilWorldYieldsEmptyWindow(t *testing.T) {
	window := Materialize(nil, nil, nil, 10, 10)
	if len(window.Tiles) != 0 || len(window.Players) != 0 {
		t.Fatalf("nil inputs must yield an empty window: %+v", window)
	}
}
