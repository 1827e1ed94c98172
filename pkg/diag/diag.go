// Package diag accumulates the diagnostics of a generator run.
//
// Work never stops at the first problem: every stage reports into a Set and
// the caller decides at the end whether the run failed.
package diag

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-multierror"
)

type Severity int

const (
	// Fatal diagnostics fail the run.
	Fatal Severity = iota
	// Recoverable diagnostics are printed as errors but the offending input is
	// only skipped.
	Recoverable
	// Warning diagnostics are advisory.
	Warning
)

func (s Severity) String() string {
	switch s {
	case Fatal:
		return "fatal"
	case Recoverable:
		return "recoverable"
	case Warning:
		return "warning"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// Reporter receives diagnostics.
type Reporter interface {
	Report(sev Severity, err error)
}

// PositionError attaches a source location to an error. Line is 0-based.
type PositionError struct {
	Path string
	Line int
	Err  error
}

func (e *PositionError) Error() string {
	return fmt.Sprintf("in %s(%d): %v", e.Path, e.Line, e.Err)
}

func (e *PositionError) Unwrap() error { return e.Err }

// At wraps err with a source location.
func At(path string, line int, err error) error {
	return &PositionError{Path: path, Line: line, Err: err}
}

// Set is a Reporter that keeps every diagnostic and optionally prints them as
// they arrive.
type Set struct {
	logger   log.Logger
	out      io.Writer
	errs     *multierror.Error
	warnings []error
	counts   map[Severity]int
}

// NewSet creates a Set printing to out. out may be nil.
func NewSet(logger log.Logger, out io.Writer) *Set {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Set{
		logger: logger,
		out:    out,
		counts: make(map[Severity]int),
	}
}

var (
	errorPrefix   = color.New(color.FgRed, color.Bold)
	warningPrefix = color.New(color.FgYellow, color.Bold)
)

func (s *Set) Report(sev Severity, err error) {
	if err == nil {
		return
	}
	s.counts[sev]++
	switch sev {
	case Fatal:
		s.errs = multierror.Append(s.errs, err)
	case Warning:
		s.warnings = append(s.warnings, err)
	}
	level.Debug(s.logger).Log("msg", "diagnostic", "severity", sev, "err", err)

	if s.out == nil {
		return
	}
	prefix := errorPrefix
	label := "Error:"
	if sev == Warning {
		prefix = warningPrefix
		label = "Warning:"
	}
	_, _ = prefix.Fprint(s.out, label)
	_, _ = fmt.Fprintf(s.out, " %v\n", err)
}

// Failed reports whether any fatal diagnostic was recorded.
func (s *Set) Failed() bool {
	return s.errs != nil
}

// Err returns every fatal diagnostic, or nil.
func (s *Set) Err() error {
	return s.errs.ErrorOrNil()
}

func (s *Set) Errors() []error {
	if s.errs == nil {
		return nil
	}
	return append([]error(nil), s.errs.Errors...)
}

func (s *Set) Warnings() []error {
	return append([]error(nil), s.warnings...)
}

// Count returns how many diagnostics of sev were reported.
func (s *Set) Count(sev Severity) int {
	return s.counts[sev]
}
