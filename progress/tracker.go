// Package progress accounts bytes transferred against a known total.
//
// A Tracker is the one object in a staging run shared between goroutines.
// Every mutation goes through a single mutex, and the Status returned by
// Advance is computed inside the same critical section as the increment, so
// concurrent callers always observe a state consistent with some total order
// of their updates.
package progress

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/pithecene-io/stager/sizefmt"
)

var (
	// ErrTrackerClosed is returned by Advance and AdvanceTo after Close.
	ErrTrackerClosed = errors.New("progress tracker closed")

	// ErrNegativeDelta is returned when Advance is given a negative delta.
	ErrNegativeDelta = errors.New("progress delta must not be negative")
)

// Status is a point-in-time view of a Tracker.
type Status struct {
	Label string `json:"label"`
	Seen  int64  `json:"seen_bytes"`
	Total int64  `json:"total_bytes"`
	// Percent may exceed 100 when the total was an estimate.
	Percent float64 `json:"percent"`
}

// SeenFormatted returns Seen rendered with binary units.
func (s Status) SeenFormatted() string { return sizefmt.Size(s.Seen) }

// TotalFormatted returns Total rendered with binary units.
func (s Status) TotalFormatted() string { return sizefmt.Size(s.Total) }

// String renders the status line, e.g. "data.bin.zip  1.00 MiB / 2.00 MiB  (50.00%)".
func (s Status) String() string {
	return fmt.Sprintf("%s  %s / %s  (%.2f%%)",
		s.Label, s.SeenFormatted(), s.TotalFormatted(), s.Percent)
}

// Tracker is a mutex-guarded byte accumulator with two states: active and closed.
type Tracker struct {
	mu       sync.Mutex
	label    string
	total    int64
	seen     int64
	closed   bool
	out      io.Writer
	observer func(Status)
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithWriter echoes every rendered status to w as "\r<line>", overwriting
// the previous line on a terminal.
func WithWriter(w io.Writer) Option {
	return func(t *Tracker) { t.out = w }
}

// WithObserver registers fn to receive every Status produced by an update.
// fn runs while the tracker lock is held and must not call back into the tracker.
func WithObserver(fn func(Status)) Option {
	return func(t *Tracker) { t.observer = fn }
}

// New creates an active tracker.
// A total of zero (or less) is stored as 1 so percentages never divide by zero.
func New(label string, total int64, opts ...Option) *Tracker {
	if total <= 0 {
		total = 1
	}
	t := &Tracker{label: label, total: total}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Advance adds delta bytes and returns the status after this increment.
func (t *Tracker) Advance(delta int64) (Status, error) {
	if delta < 0 {
		return Status{}, ErrNegativeDelta
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return t.snapshotLocked(), ErrTrackerClosed
	}
	t.seen += delta
	return t.publishLocked(), nil
}

// AdvanceTo moves the tracker to an absolute byte position.
// Positions behind the current one leave the count unchanged, so Seen never decreases.
func (t *Tracker) AdvanceTo(position int64) (Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return t.snapshotLocked(), ErrTrackerClosed
	}
	if position > t.seen {
		t.seen = position
	}
	return t.publishLocked(), nil
}

// Snapshot returns the current status without modifying it.
func (t *Tracker) Snapshot() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Close stops the tracker from accepting updates. Calling it again has no effect.
// It always returns nil; the error result lets a Tracker be used as an io.Closer.
func (t *Tracker) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

// Closed reports whether Close has been called.
func (t *Tracker) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *Tracker) snapshotLocked() Status {
	return Status{
		Label:   t.label,
		Seen:    t.seen,
		Total:   t.total,
		Percent: sizefmt.Ratio(t.seen, t.total),
	}
}

// publishLocked renders the current state to the writer and observer.
// Write errors are ignored.
func (t *Tracker) publishLocked() Status {
	s := t.snapshotLocked()
	if t.out != nil {
		_, _ = fmt.Fprintf(t.out, "\r%s", s)
	}
	if t.observer != nil {
		t.observer(s)
	}
	return s
}
