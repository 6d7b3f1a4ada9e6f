package board

import (
	"testing"
	"time"
)

func TestFromGrid_TransposesOrientation(t *testing.T) {
	// Column-major input: raw[x][y]. Two columns of three cells.
	raw := [][]uint8{
		{1, 2, 3},
		{4, 5, 6},
	}
	s, err := FromGrid(raw, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("FromGrid: %v", err)
	}
	if s.Width != 2 || s.Height != 3 {
		t.Fatalf("dims: got %dx%d want 2x3", s.Width, s.Height)
	}
	if got := s.At(0, 0); got != 1 {
		t.Fatalf("At(0,0): got %d want 1", got)
	}
	if got := s.At(1, 0); got != 4 {
		t.Fatalf("At(1,0): got %d want 4", got)
	}
	if got := s.At(0, 2); got != 3 {
		t.Fatalf("At(0,2): got %d want 3", got)
	}
	if got := s.At(1, 2); got != 6 {
		t.Fatalf("At(1,2): got %d want 6", got)
	}
}

func TestFromGrid_RejectsRaggedAndEmpty(t *testing.T) {
	if _, err := FromGrid(nil, time.Unix(0, 0)); err == nil {
		t.Fatalf("expected error for empty grid")
	}
	if _, err := FromGrid([][]uint8{{1, 2}, {3}}, time.Unix(0, 0)); err == nil {
		t.Fatalf("expected error for ragged grid")
	}
}

func TestInBounds(t *testing.T) {
	s, err := FromGrid([][]uint8{{0, 0}, {0, 0}, {0, 0}}, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("FromGrid: %v", err)
	}
	// 3 wide, 2 tall.
	cases := []struct {
		x, y int
		want bool
	}{
		{0, 0, true}, {2, 1, true}, {3, 0, false}, {0, 2, false}, {-1, 0, false}, {0, -1, false},
	}
	for _, c := range cases {
		if got := s.InBounds(c.x, c.y); got != c.want {
			t.Fatalf("InBounds(%d,%d): got %v want %v", c.x, c.y, got, c.want)
		}
	}
}

func TestColorHex(t *testing.T) {
	c := Color{ID: 3, Name: "ORANGE", R: 255, G: 169, B: 0}
	if got := c.Hex(); got != "#ffa900" {
		t.Fatalf("Hex: got %q", got)
	}
}
