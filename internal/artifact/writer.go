// Package artifact persists a visual and textual record of each board
// snapshot: a palette listing, the raw color-id matrix, and a PNG render.
// Strictly passive; failures are logged and never touch the cycle.
package artifact

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ShadowDevAt42/ftplace-script/internal/board"
	"github.com/ShadowDevAt42/ftplace-script/internal/scheduler"
)

type Writer struct {
	dir string
	log *log.Logger
}

// NewWriter persists snapshots under <dataDir>/map.
func NewWriter(dataDir string, logger *log.Logger) *Writer {
	return &Writer{dir: filepath.Join(dataDir, "map"), log: logger}
}

func (w *Writer) RecordSnapshot(snap *board.Snapshot, pal board.Palette) {
	ts := snap.FetchedAt.Format("2006-01-02_15-04-05")
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		w.log.Printf("artifact: mkdir: %v", err)
		return
	}
	if err := w.writeColors(pal, ts); err != nil {
		w.log.Printf("artifact: colors: %v", err)
	}
	if err := w.writeMatrix(snap, ts); err != nil {
		w.log.Printf("artifact: matrix: %v", err)
	}
	if err := w.writePNG(snap, pal, ts); err != nil {
		w.log.Printf("artifact: png: %v", err)
	}
	w.log.Printf("board artifacts saved with timestamp %s", ts)
}

func (w *Writer) RecordCycle(scheduler.CycleReport) {}

func (w *Writer) RecordPlacement(scheduler.PlacementReport) {}

func (w *Writer) writeColors(pal board.Palette, ts string) error {
	ids := make([]int, 0, len(pal))
	for id := range pal {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)

	var b strings.Builder
	for _, id := range ids {
		c := pal[uint8(id)]
		fmt.Fprintf(&b, "Color %d: %s %s (RGB: %d,%d,%d)\n", c.ID, c.Name, c.Hex(), c.R, c.G, c.B)
	}
	return os.WriteFile(filepath.Join(w.dir, fmt.Sprintf("colors_%s.txt", ts)), []byte(b.String()), 0o644)
}

func (w *Writer) writeMatrix(snap *board.Snapshot, ts string) error {
	var b strings.Builder
	for _, row := range snap.Rows() {
		for _, id := range row {
			fmt.Fprintf(&b, "%2d ", id)
		}
		b.WriteByte('\n')
	}
	return os.WriteFile(filepath.Join(w.dir, fmt.Sprintf("board_%s.txt", ts)), []byte(b.String()), 0o644)
}

func (w *Writer) writePNG(snap *board.Snapshot, pal board.Palette, ts string) error {
	img := image.NewRGBA(image.Rect(0, 0, snap.Width, snap.Height))
	for y, row := range snap.Rows() {
		for x, id := range row {
			c, ok := pal.ByID(id)
			if !ok {
				continue
			}
			img.Set(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 255})
		}
	}
	f, err := os.Create(filepath.Join(w.dir, fmt.Sprintf("board_%s.png", ts)))
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
