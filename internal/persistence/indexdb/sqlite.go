// Package indexdb keeps a queryable sqlite index of cycles, placements and
// snapshots. It is a secondary read model: writes are buffered through a
// single writer goroutine and dropped rather than ever stalling the
// reconciliation loop; the zstd journal remains the source of truth.
package indexdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ShadowDevAt42/ftplace-script/internal/board"
	"github.com/ShadowDevAt42/ftplace-script/internal/scheduler"
)

type reqKind int

const (
	reqCycle reqKind = iota + 1
	reqPlacement
	reqSnapshot
)

type req struct {
	kind      reqKind
	cycle     scheduler.CycleReport
	placement scheduler.PlacementReport
	snapshot  snapshotRow
}

type snapshotRow struct {
	FetchedAt string
	Width     int
	Height    int
	Colors    int
}

type Index struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

func Open(path string) (*Index, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	ix := &Index{
		db: db,
		ch: make(chan req, 4096),
	}
	ix.wg.Add(1)
	go func() {
		defer ix.wg.Done()
		ix.loop()
	}()
	return ix, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-only workload; NORMAL is enough durability for
	// a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cycles (
			seq INTEGER PRIMARY KEY,
			started_at TEXT NOT NULL,
			outcome TEXT NOT NULL,
			diff_size INTEGER NOT NULL,
			batch INTEGER NOT NULL,
			placed INTEGER NOT NULL,
			skipped INTEGER NOT NULL,
			wait_seconds REAL NOT NULL,
			err TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS placements (
			cycle INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			color INTEGER NOT NULL,
			tier TEXT NOT NULL,
			status TEXT NOT NULL,
			err TEXT,
			PRIMARY KEY (cycle, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_placements_pos ON placements(x, y);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			fetched_at TEXT PRIMARY KEY,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			colors INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (ix *Index) Close() error {
	var err error
	ix.once.Do(func() {
		ix.closed.Store(true)
		close(ix.ch)
		ix.wg.Wait()
		err = ix.db.Close()
	})
	return err
}

// Recorder methods: non-blocking sends, drop on a full buffer.

func (ix *Index) RecordCycle(c scheduler.CycleReport) {
	if ix == nil || ix.closed.Load() {
		return
	}
	select {
	case ix.ch <- req{kind: reqCycle, cycle: c}:
	default:
	}
}

func (ix *Index) RecordPlacement(p scheduler.PlacementReport) {
	if ix == nil || ix.closed.Load() {
		return
	}
	select {
	case ix.ch <- req{kind: reqPlacement, placement: p}:
	default:
	}
}

func (ix *Index) RecordSnapshot(snap *board.Snapshot, pal board.Palette) {
	if ix == nil || ix.closed.Load() {
		return
	}
	r := snapshotRow{
		FetchedAt: snap.FetchedAt.UTC().Format(time.RFC3339Nano),
		Width:     snap.Width,
		Height:    snap.Height,
		Colors:    len(pal),
	}
	select {
	case ix.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
	}
}

func (ix *Index) loop() {
	insertCycle, _ := ix.db.Prepare(`INSERT OR REPLACE INTO cycles(seq,started_at,outcome,diff_size,batch,placed,skipped,wait_seconds,err) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertPlacement, _ := ix.db.Prepare(`INSERT OR REPLACE INTO placements(cycle,seq,x,y,color,tier,status,err) VALUES(?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := ix.db.Prepare(`INSERT OR REPLACE INTO snapshots(fetched_at,width,height,colors) VALUES(?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertCycle, insertPlacement, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	for r := range ix.ch {
		switch r.kind {
		case reqCycle:
			if insertCycle == nil {
				continue
			}
			c := r.cycle
			_, _ = insertCycle.Exec(
				c.Seq,
				c.StartedAt.UTC().Format(time.RFC3339Nano),
				c.Outcome,
				c.DiffSize,
				c.Batch,
				c.Placed,
				c.Skipped,
				c.Wait.Seconds(),
				c.Err,
			)
		case reqPlacement:
			if insertPlacement == nil {
				continue
			}
			p := r.placement
			_, _ = insertPlacement.Exec(p.Cycle, p.Seq, p.X, p.Y, int(p.Color), p.Tier.String(), p.Status, p.Err)
		case reqSnapshot:
			if insertSnapshot == nil {
				continue
			}
			s := r.snapshot
			_, _ = insertSnapshot.Exec(s.FetchedAt, s.Width, s.Height, s.Colors)
		}
	}
}

// Totals reports row counts per table; used by tests and ad-hoc checks.
type Totals struct {
	Cycles     int
	Placements int
	Snapshots  int
}

func (ix *Index) Totals() (Totals, error) {
	var t Totals
	row := ix.db.QueryRow(`SELECT
		(SELECT COUNT(*) FROM cycles),
		(SELECT COUNT(*) FROM placements),
		(SELECT COUNT(*) FROM snapshots)`)
	if err := row.Scan(&t.Cycles, &t.Placements, &t.Snapshots); err != nil {
		return Totals{}, err
	}
	return t, nil
}
