// Package scheduler drives the perpetual reconciliation loop: fetch a
// board snapshot, diff it against the pattern set, submit a bounded batch
// of corrections, wait out the quota window, repeat. One cycle at a time,
// strictly in diff order; failures degrade the cycle, not the process,
// except dead credentials, which halt the loop for the operator.
package scheduler

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/ShadowDevAt42/ftplace-script/internal/board"
	"github.com/ShadowDevAt42/ftplace-script/internal/client"
	"github.com/ShadowDevAt42/ftplace-script/internal/diff"
	"github.com/ShadowDevAt42/ftplace-script/internal/pattern"
)

// Defaults mirror the site's rate limit: at most 10 pixels per 31-minute
// window, one second between writes.
const (
	DefaultBatchSize = 10
	DefaultWindow    = 31 * time.Minute
	DefaultPacing    = time.Second
)

// Canvas is the slice of the canvas client the loop drives.
type Canvas interface {
	FetchBoard(ctx context.Context) (*board.Snapshot, board.Palette, error)
	PlacePixel(ctx context.Context, x, y int, colorID uint8) (time.Duration, error)
}

// Cycle outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeClean       = "clean"
	OutcomeQuota       = "quota"
	OutcomeFetchFailed = "fetch_failed"
	OutcomeWriteFailed = "write_failed"
	OutcomeAuthFailed  = "auth_failed"
)

// CycleReport summarizes one full cycle for the recorders.
type CycleReport struct {
	Seq       int           `json:"seq"`
	StartedAt time.Time     `json:"started_at"`
	Outcome   string        `json:"outcome"`
	DiffSize  int           `json:"diff_size"`
	Batch     int           `json:"batch"`
	Placed    int           `json:"placed"`
	Skipped   int           `json:"skipped"`
	Wait      time.Duration `json:"wait_ns"`
	Err       string        `json:"err,omitempty"`
}

// PlacementReport is one pixel write attempt.
type PlacementReport struct {
	Cycle  int          `json:"cycle"`
	Seq    int          `json:"seq"`
	X      int          `json:"x"`
	Y      int          `json:"y"`
	Color  uint8        `json:"color"`
	Tier   pattern.Tier `json:"tier"`
	Status string       `json:"status"`
	Err    string       `json:"err,omitempty"`
}

// Recorder receives what the loop observed. Implementations must be fast
// or internally buffered; they are called from the loop goroutine and must
// never submit canvas writes of their own.
type Recorder interface {
	RecordSnapshot(snap *board.Snapshot, pal board.Palette)
	RecordCycle(CycleReport)
	RecordPlacement(PlacementReport)
}

type Config struct {
	BatchSize int
	Window    time.Duration
	Pacing    time.Duration
	Clock     Clock
	Logger    *log.Logger
	Recorders []Recorder
}

func (c *Config) defaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.Pacing <= 0 {
		c.Pacing = DefaultPacing
	}
	if c.Clock == nil {
		c.Clock = RealClock()
	}
	if c.Logger == nil {
		c.Logger = log.New(os.Stdout, "[scheduler] ", log.LstdFlags|log.Lmicroseconds)
	}
}

type Scheduler struct {
	canvas Canvas
	set    *pattern.Set
	cfg    Config
}

func New(canvas Canvas, set *pattern.Set, cfg Config) *Scheduler {
	cfg.defaults()
	return &Scheduler{canvas: canvas, set: set, cfg: cfg}
}

// Run loops until ctx is cancelled. The 31-minute window is measured
// cycle-start to cycle-start; an authoritative cooldown hint from the
// server can only extend the wait, never shorten it below the window, so
// the quota holds even against optimistic server timers.
func (s *Scheduler) Run(ctx context.Context) error {
	for seq := 1; ; seq++ {
		start := s.cfg.Clock.Now()
		rep := CycleReport{Seq: seq, StartedAt: start}

		hint, fatal := s.runCycle(ctx, &rep)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if fatal != nil {
			// Dead credentials do not self-heal; another window of the
			// same rejection changes nothing. Stop and tell the operator.
			s.record(func(r Recorder) { r.RecordCycle(rep) })
			s.cfg.Logger.Printf("cycle %d: %s, stopping: %v", seq, rep.Outcome, fatal)
			return fatal
		}

		wait := s.cfg.Window - s.cfg.Clock.Now().Sub(start)
		if rep.Outcome == OutcomeFetchFailed {
			// Failed cycles sit out a full cooldown window.
			wait = s.cfg.Window
		}
		if hint > wait {
			wait = hint
		}
		if wait < 0 {
			wait = 0
		}
		rep.Wait = wait
		s.record(func(r Recorder) { r.RecordCycle(rep) })
		s.cfg.Logger.Printf("cycle %d: %s (diff=%d placed=%d skipped=%d), next cycle in %s",
			seq, rep.Outcome, rep.DiffSize, rep.Placed, rep.Skipped, wait.Round(time.Second))

		if err := s.cfg.Clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// runCycle executes FETCHING, DIFFING and SUBMITTING for one cycle and
// returns the authority's cooldown hint, if any. A non-nil error means the
// credentials are gone for good and the loop must stop.
func (s *Scheduler) runCycle(ctx context.Context, rep *CycleReport) (time.Duration, error) {
	snap, pal, err := s.canvas.FetchBoard(ctx)
	if err != nil {
		rep.Err = err.Error()
		var ae *client.AuthError
		if errors.As(err, &ae) {
			rep.Outcome = OutcomeAuthFailed
			return 0, err
		}
		rep.Outcome = OutcomeFetchFailed
		s.cfg.Logger.Printf("cycle %d: board fetch failed: %v", rep.Seq, err)
		return 0, nil
	}
	s.record(func(r Recorder) { r.RecordSnapshot(snap, pal) })

	writes, skipped := diff.Compute(snap, s.set)
	rep.DiffSize = len(writes)
	rep.Skipped = len(skipped)
	for _, sk := range skipped {
		s.cfg.Logger.Printf("cycle %d: warning: %s pixel (%d,%d) outside %dx%d board, skipped",
			rep.Seq, sk.Tier, sk.X, sk.Y, snap.Width, snap.Height)
	}

	if len(writes) == 0 {
		rep.Outcome = OutcomeClean
		return 0, nil
	}

	batch := writes
	if len(batch) > s.cfg.BatchSize {
		batch = batch[:s.cfg.BatchSize]
	}
	rep.Batch = len(batch)

	return s.submit(ctx, rep, batch)
}

func (s *Scheduler) submit(ctx context.Context, rep *CycleReport, batch []diff.Write) (time.Duration, error) {
	var hint time.Duration
	rep.Outcome = OutcomeOK

	for i, w := range batch {
		d, err := s.canvas.PlacePixel(ctx, w.X, w.Y, w.Color)
		if err != nil {
			if ctx.Err() != nil {
				return 0, nil
			}
			pr := PlacementReport{Cycle: rep.Seq, Seq: i, X: w.X, Y: w.Y, Color: w.Color, Tier: w.Tier, Err: err.Error()}

			var tee *client.TooEarlyError
			if errors.As(err, &tee) {
				// Quota spent server-side: end the batch, keep the hint.
				pr.Status = "too_early"
				s.record(func(r Recorder) { r.RecordPlacement(pr) })
				s.cfg.Logger.Printf("cycle %d: quota reached after %d writes, authority asks for %s",
					rep.Seq, rep.Placed, tee.RetryAfter.Round(time.Second))
				rep.Outcome = OutcomeQuota
				return tee.RetryAfter, nil
			}

			// The client already spent its one refresh-and-retry; an auth
			// error surfacing here means the credentials are dead.
			var ae *client.AuthError
			if errors.As(err, &ae) {
				pr.Status = "auth_failed"
				s.record(func(r Recorder) { r.RecordPlacement(pr) })
				rep.Outcome = OutcomeAuthFailed
				rep.Err = err.Error()
				return 0, err
			}

			// A write that exhausted its retries aborts the rest of the
			// batch; the cycle waits its window out rather than hammering.
			pr.Status = "failed"
			s.record(func(r Recorder) { r.RecordPlacement(pr) })
			s.cfg.Logger.Printf("cycle %d: write (%d,%d) failed, aborting batch: %v", rep.Seq, w.X, w.Y, err)
			rep.Outcome = OutcomeWriteFailed
			rep.Err = err.Error()
			return hint, nil
		}

		rep.Placed++
		s.record(func(r Recorder) {
			r.RecordPlacement(PlacementReport{Cycle: rep.Seq, Seq: i, X: w.X, Y: w.Y, Color: w.Color, Tier: w.Tier, Status: "ok"})
		})
		if d > 0 && d > hint {
			hint = d
		}

		if i < len(batch)-1 {
			if err := s.cfg.Clock.Sleep(ctx, s.cfg.Pacing); err != nil {
				return 0, nil
			}
		}
	}
	return hint, nil
}

func (s *Scheduler) record(fn func(Recorder)) {
	for _, r := range s.cfg.Recorders {
		if r != nil {
			fn(r)
		}
	}
}
