package grid

import "testing"

func TestInBoundsAndObstacles(t *testing.T) {
	g := New(5, 5, map[Cell]struct{}{{2, 2}: {}})

	cases := []struct {
		c    Cell
		want bool
	}{
		{Cell{0, 0}, true},
		{Cell{4, 4}, true},
		{Cell{-1, 0}, false},
		{Cell{0, 5}, false},
	}
	for _, tc := range cases {
		if got := g.InBounds(tc.c); got != tc.want {
			t.Errorf("InBounds(%v) = %v, want %v", tc.c, got, tc.want)
		}
	}

	if !g.IsObstacle(Cell{2, 2}) {
		t.Error("expected (2,2) to be an obstacle")
	}
	if g.IsFree(Cell{2, 2}) {
		t.Error("obstacle cell must not be free")
	}
}

func TestManhattanAndDirection(t *testing.T) {
	if d := Manhattan(Cell{0, 0}, Cell{3, 4}); d != 7 {
		t.Errorf("Manhattan = %d, want 7", d)
	}
	if d := Direction(Cell{1, 1}, Cell{2, 0}); d != (Dir{1, -1}) {
		t.Errorf("Direction = %v, want {1,-1}", d)
	}
}

func TestIsTurn(t *testing.T) {
	if IsTurn(Zero, Dir{1, 0}) {
		t.Error("no prior direction is never a turn")
	}
	if !IsTurn(Dir{1, 0}, Dir{0, 1}) {
		t.Error("perpendicular move must be a turn")
	}
	if IsTurn(Dir{1, 0}, Dir{1, 0}) {
		t.Error("continuing straight is not a turn")
	}
}

func TestWallRectNormalizesCorners(t *testing.T) {
	cells, err := WallRect(3, 3, 1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cells) != 9 {
		t.Fatalf("expected 3x3=9 cells, got %d", len(cells))
	}
	for _, want := range []Cell{{1, 1}, {2, 2}, {3, 3}} {
		if _, ok := cells[want]; !ok {
			t.Errorf("missing expected cell %v", want)
		}
	}
}

func TestCorridorScore(t *testing.T) {
	g := New(5, 5, nil)
	if s := g.CorridorScore(Cell{2, 2}); s != 8 {
		t.Errorf("open center cell should have corridor score 8, got %d", s)
	}
	if s := g.CorridorScore(Cell{0, 0}); s != 3 {
		t.Errorf("corner cell should have corridor score 3, got %d", s)
	}
}

func TestIsNarrowPassage(t *testing.T) {
	g := New(5, 5, map[Cell]struct{}{
		{1, 2}: {}, {3, 2}: {},
	})
	if !g.IsNarrowPassage(Cell{2, 2}) {
		t.Error("cell flanked by two obstacles should be a narrow passage")
	}
}
