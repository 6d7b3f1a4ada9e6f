package board

import (
	"fmt"
	"time"
)

// Snapshot is a point-in-time copy of the remote canvas. It is never
// mutated after construction; each fetch produces a fresh one.
type Snapshot struct {
	Width     int
	Height    int
	FetchedAt time.Time

	cells [][]uint8 // cells[y][x]
}

// FromGrid builds a Snapshot from the grid as served by the canvas
// authority. The authority serves the grid column-major relative to the
// rendered site, so the grid is transposed here: pattern coordinates then
// line up with what players see.
func FromGrid(raw [][]uint8, fetchedAt time.Time) (*Snapshot, error) {
	if len(raw) == 0 || len(raw[0]) == 0 {
		return nil, fmt.Errorf("empty board grid")
	}
	h := len(raw[0])
	w := len(raw)
	for i, col := range raw {
		if len(col) != h {
			return nil, fmt.Errorf("ragged board grid: column %d has %d cells, want %d", i, len(col), h)
		}
	}

	cells := make([][]uint8, h)
	for y := 0; y < h; y++ {
		row := make([]uint8, w)
		for x := 0; x < w; x++ {
			row[x] = raw[x][y]
		}
		cells[y] = row
	}
	return &Snapshot{Width: w, Height: h, FetchedAt: fetchedAt, cells: cells}, nil
}

// InBounds reports whether (x, y) is a valid cell coordinate.
func (s *Snapshot) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < s.Width && y < s.Height
}

// At returns the color id at (x, y). The coordinate must be in bounds.
func (s *Snapshot) At(x, y int) uint8 {
	return s.cells[y][x]
}

// Rows returns the cell grid row by row for rendering. The returned slices
// alias the snapshot; callers must not modify them.
func (s *Snapshot) Rows() [][]uint8 {
	return s.cells
}
