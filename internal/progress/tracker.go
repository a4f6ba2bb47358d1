package progress

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrFinished is returned for updates after a terminal phase.
	ErrFinished = errors.New("progress: import already finished")
	// ErrTransition is returned for a phase change the contract forbids.
	ErrTransition = errors.New("progress: invalid phase transition")
)

// Tracker owns the progress of one import run and emits every change through
// a Func. It starts in the parsing phase. Safe for concurrent use; reports
// are emitted while holding the lock, so they arrive in order.
type Tracker struct {
	mu     sync.Mutex
	cur    Progress
	report Func
}

// NewTracker creates a Tracker and emits the initial parsing report. A nil
// report is allowed.
func NewTracker(report Func) *Tracker {
	t := &Tracker{cur: Progress{Phase: PhaseParsing}, report: report}
	t.emit()
	return t
}

// Current returns the latest progress.
func (t *Tracker) Current() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cur
}

// Start moves from parsing to importing with total items to write. A zero
// total completes the run straight away.
func (t *Tracker) Start(total int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cur.Phase.Terminal() {
		return ErrFinished
	}
	if t.cur.Phase != PhaseParsing {
		return fmt.Errorf("%w: start from %s", ErrTransition, t.cur.Phase)
	}
	if total < 0 {
		return fmt.Errorf("%w: negative total %d", ErrTransition, total)
	}
	t.cur.Total = total
	t.cur.Processed = 0
	t.cur.Phase = PhaseImporting
	if total == 0 {
		t.cur.Phase = PhaseComplete
	}
	t.emit()
	return nil
}

// Advance records n more processed items. Reaching the total completes the
// run; going past it is an error and changes nothing.
func (t *Tracker) Advance(n int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cur.Phase.Terminal() {
		return ErrFinished
	}
	if t.cur.Phase != PhaseImporting {
		return fmt.Errorf("%w: advance during %s", ErrTransition, t.cur.Phase)
	}
	if n < 0 {
		return fmt.Errorf("%w: processed cannot decrease", ErrTransition)
	}
	if t.cur.Processed+n > t.cur.Total {
		return fmt.Errorf("%w: advancing %d past total %d (processed %d)", ErrTransition, n, t.cur.Total, t.cur.Processed)
	}
	t.cur.Processed += n
	if t.cur.Processed == t.cur.Total {
		t.cur.Phase = PhaseComplete
	}
	t.emit()
	return nil
}

// Fail moves the run to the error phase.
func (t *Tracker) Fail(err error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cur.Phase.Terminal() {
		return ErrFinished
	}
	t.cur = t.cur.Failed(err)
	t.emit()
	return nil
}

func (t *Tracker) emit() {
	if t.report != nil {
		t.report(t.cur)
	}
}
