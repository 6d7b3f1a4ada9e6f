// Package diff compares a board snapshot against the configured pattern set
// and produces the ordered list of pixels that disagree with the desired
// state. The output order is the correction order: tier first, then the
// pattern's declared pixel order. Pure; inputs are read-only.
package diff

import (
	"github.com/ShadowDevAt42/ftplace-script/internal/board"
	"github.com/ShadowDevAt42/ftplace-script/internal/pattern"
)

// Write is one pixel the canvas must be corrected to. Tier is carried for
// journaling only; execution order is fully encoded by the slice order.
type Write struct {
	X     int
	Y     int
	Color uint8
	Tier  pattern.Tier
}

// Skipped is a pattern pixel whose absolute coordinate falls outside the
// snapshot. Skips are warnings, never errors.
type Skipped struct {
	X    int
	Y    int
	Tier pattern.Tier
}

// Compute walks the targets in tier order and each pattern in declared
// order, emitting a Write for every cell whose current color differs from
// the desired one. Overlapping targets are not deduplicated: the
// higher-tier write executes first, and a still-disagreeing cell is picked
// up again on a later cycle's snapshot.
func Compute(snap *board.Snapshot, set *pattern.Set) ([]Write, []Skipped) {
	var writes []Write
	var skipped []Skipped

	for _, tg := range set.Targets() {
		p := tg.Pattern
		for _, px := range p.Pixels {
			x := p.OriginX + px.DX
			y := p.OriginY + px.DY
			if !snap.InBounds(x, y) {
				skipped = append(skipped, Skipped{X: x, Y: y, Tier: tg.Tier})
				continue
			}
			if snap.At(x, y) != px.Color {
				writes = append(writes, Write{X: x, Y: y, Color: px.Color, Tier: tg.Tier})
			}
		}
	}
	return writes, skipped
}
