package board

import "fmt"

// Color ids accepted by the canvas authority.
const (
	MinColorID uint8 = 1
	MaxColorID uint8 = 16
)

type Color struct {
	ID   uint8  `json:"id"`
	Name string `json:"name"`
	R    uint8  `json:"red"`
	G    uint8  `json:"green"`
	B    uint8  `json:"blue"`
}

func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Palette maps color ids to their definitions. It is built from the board
// response and exposed read-only to the artifact writer alongside the
// snapshot.
type Palette map[uint8]Color

func (p Palette) ByID(id uint8) (Color, bool) {
	c, ok := p[id]
	return c, ok
}

// ValidColorID reports whether id is in the range the authority accepts.
// Pattern validation uses this; the palette itself may carry fewer entries
// while the site is mid-event.
func ValidColorID(id uint8) bool {
	return id >= MinColorID && id <= MaxColorID
}
