// Package journal persists a compressed JSONL record of everything the
// reconciliation loop does: one entry per cycle, one per pixel write, one
// per board fetch. Files rotate hourly under <dataDir>/journal.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/ShadowDevAt42/ftplace-script/internal/board"
	"github.com/ShadowDevAt42/ftplace-script/internal/scheduler"
)

type jsonlZstdWriter struct {
	baseDir string
	prefix  string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func newJSONLZstdWriter(baseDir, prefix string) *jsonlZstdWriter {
	return &jsonlZstdWriter{baseDir: baseDir, prefix: prefix}
}

func (w *jsonlZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := time.Now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *jsonlZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *jsonlZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.curHour = hour
	return nil
}

func (w *jsonlZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	// Forget the hour so a late Write reopens instead of hitting the nil
	// buffer.
	w.curHour = ""
	return err1
}

type snapshotEntry struct {
	FetchedAt time.Time `json:"fetched_at"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Colors    int       `json:"colors"`
}

// Journal implements scheduler.Recorder. Write errors are logged, never
// surfaced: the journal is a passive record and must not degrade a cycle.
type Journal struct {
	cycles     *jsonlZstdWriter
	placements *jsonlZstdWriter
	snapshots  *jsonlZstdWriter
	log        *log.Logger
}

func New(dataDir string, logger *log.Logger) *Journal {
	dir := filepath.Join(dataDir, "journal")
	return &Journal{
		cycles:     newJSONLZstdWriter(dir, "cycles"),
		placements: newJSONLZstdWriter(dir, "placements"),
		snapshots:  newJSONLZstdWriter(dir, "snapshots"),
		log:        logger,
	}
}

func (j *Journal) RecordSnapshot(snap *board.Snapshot, pal board.Palette) {
	e := snapshotEntry{FetchedAt: snap.FetchedAt, Width: snap.Width, Height: snap.Height, Colors: len(pal)}
	if err := j.snapshots.Write(e); err != nil {
		j.log.Printf("journal: snapshot entry: %v", err)
	}
}

func (j *Journal) RecordCycle(c scheduler.CycleReport) {
	if err := j.cycles.Write(c); err != nil {
		j.log.Printf("journal: cycle entry: %v", err)
	}
}

func (j *Journal) RecordPlacement(p scheduler.PlacementReport) {
	if err := j.placements.Write(p); err != nil {
		j.log.Printf("journal: placement entry: %v", err)
	}
}

func (j *Journal) Close() error {
	var err error
	for _, w := range []*jsonlZstdWriter{j.cycles, j.placements, j.snapshots} {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
