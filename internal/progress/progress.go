// Package progress is the reporting contract of long-running imports. The
// caller driving an import emits Progress values; consumers render them.
//
// Observed phases run parsing -> importing -> complete, or move to error from
// any non-terminal phase. Complete and error are terminal.
package progress

import (
	"errors"
	"fmt"
)

// Phase is the stage an import has reached.
type Phase string

const (
	PhaseParsing   Phase = "parsing"
	PhaseImporting Phase = "importing"
	PhaseComplete  Phase = "complete"
	PhaseError     Phase = "error"
)

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool {
	switch p {
	case PhaseParsing, PhaseImporting, PhaseComplete, PhaseError:
		return true
	}
	return false
}

// Terminal reports whether no update may follow p.
func (p Phase) Terminal() bool { return p == PhaseComplete || p == PhaseError }

// Progress is one report of an import run.
type Progress struct {
	Phase     Phase  `json:"phase"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Error     string `json:"error,omitempty"`

	// Cause is the error behind an error phase, for errors.Is checks. It is
	// not persisted.
	Cause error `json:"-"`
}

// Func receives progress reports.
type Func func(Progress)

// Percentage returns Processed/Total as a percentage clamped to [0,100]. A
// zero Total yields 0.
func (p Progress) Percentage() float64 {
	if p.Total <= 0 {
		return 0
	}
	pct := float64(p.Processed) * 100 / float64(p.Total)
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	default:
		return pct
	}
}

// Failed returns p moved to the error phase with err as payload.
func (p Progress) Failed(err error) Progress {
	p.Phase = PhaseError
	p.Cause = err
	if err != nil {
		p.Error = err.Error()
	}
	return p
}

// Validate checks that phase, counts and error payload agree.
func (p Progress) Validate() error {
	var errs []error
	if !p.Phase.Valid() {
		errs = append(errs, fmt.Errorf("unknown phase %q", p.Phase))
	}
	if p.Processed < 0 || p.Total < 0 {
		errs = append(errs, fmt.Errorf("negative counts %d/%d", p.Processed, p.Total))
	}
	if p.Processed > p.Total {
		errs = append(errs, fmt.Errorf("processed %d exceeds total %d", p.Processed, p.Total))
	}
	switch p.Phase {
	case PhaseComplete:
		if p.Processed != p.Total {
			errs = append(errs, fmt.Errorf("complete with %d of %d processed", p.Processed, p.Total))
		}
	case PhaseParsing, PhaseImporting:
		if p.Total > 0 && p.Processed == p.Total {
			errs = append(errs, fmt.Errorf("%s with all %d processed, expected complete", p.Phase, p.Total))
		}
	}
	if p.Phase != PhaseError && (p.Error != "" || p.Cause != nil) {
		errs = append(errs, fmt.Errorf("error payload in phase %q", p.Phase))
	}
	return errors.Join(errs...)
}

func (p Progress) String() string {
	s := fmt.Sprintf("%s %d/%d (%.0f%%)", p.Phase, p.Processed, p.Total, p.Percentage())
	if p.Error != "" {
		s += ": " + p.Error
	}
	return s
}
