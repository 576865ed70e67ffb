// Package diag is the process-wide diagnostic sink of spec.md §7/§9: source
// errors and warnings accumulate here during lexing, parsing and semantic
// checking, and are validated at phase boundaries and rendered once at the
// end of a run. Register allocation adds nothing here: pkg/regalloc has no
// sink and no uninitialized-use check.
//
// It is grounded on the teacher corpus's kanso-lang-kanso error reporter
// (internal/errors/reporter.go), simplified to the single-line
// "source:line:column: level: message" format spec.md §6 requires (rather
// than that reporter's multi-line, source-snippet Rust-style rendering) and
// colorized the same way, with github.com/fatih/color.
package diag

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
)

// Level distinguishes a fatal source error from an advisory warning.
type Level uint8

const (
	Error Level = iota
	Warning
)

func (l Level) String() string {
	if l == Warning {
		return "warning"
	}
	return "error"
}

// Pos is a source location. The zero value (Line == 0) means "no specific
// location" and is rendered without a line:column suffix — used for internal
// malformation diagnostics that have no source position to point at.
type Pos struct {
	Line   int
	Column int
}

// Diagnostic is a single recorded error or warning.
type Diagnostic struct {
	Level   Level
	Pos     Pos
	Message string
}

func (d Diagnostic) String(source string) string {
	if d.Pos.Line == 0 {
		return fmt.Sprintf("%s: %s: %s", source, d.Level, d.Message)
	}
	return fmt.Sprintf("%s:%d:%d: %s: %s", source, d.Pos.Line, d.Pos.Column, d.Level, d.Message)
}

// Sink accumulates diagnostics for one compilation run. It is created at
// startup, threaded (by reference, not as an ambient global) through every
// phase that can detect a source error, and drained once at the end — the
// "process-wide diagnostic sink" of spec.md §9, modelled here as an
// explicit value an implementer can thread through a context instead, per
// that same section's note that behavior must match either way.
type Sink struct {
	Source string // source file path, used as the leading field of each line
	items  []Diagnostic
}

func NewSink(source string) *Sink {
	return &Sink{Source: source}
}

func (s *Sink) Errorf(pos Pos, format string, args ...any) {
	s.items = append(s.items, Diagnostic{Level: Error, Pos: pos, Message: fmt.Sprintf(format, args...)})
}

func (s *Sink) Warnf(pos Pos, format string, args ...any) {
	s.items = append(s.items, Diagnostic{Level: Warning, Pos: pos, Message: fmt.Sprintf(format, args...)})
}

// HasErrors reports whether any Error-level diagnostic has been recorded.
// Warnings alone never fail a compilation (spec.md §7).
func (s *Sink) HasErrors() bool {
	for _, d := range s.items {
		if d.Level == Error {
			return true
		}
	}
	return false
}

// Validate is the phase-boundary check of spec.md §7: "compilation phases
// call a validate step at natural boundaries... to convert accumulated
// errors into process exit." It returns ErrHasErrors if any error-level
// diagnostic is outstanding; callers abort the run on a non-nil return.
func (s *Sink) Validate() error {
	if s.HasErrors() {
		return ErrHasErrors
	}
	return nil
}

// ErrHasErrors is returned by Validate when the sink holds at least one
// Error-level diagnostic.
var ErrHasErrors = fmt.Errorf("diag: one or more errors were reported")

// Render prints every accumulated diagnostic to w in source order (stable
// sort by line then column, ties broken by recording order), one per line,
// in the "source:line:column: level: message" format of spec.md §6,
// colorized red/bold for errors and yellow/bold for warnings.
func (s *Sink) Render(w io.Writer) {
	items := make([]Diagnostic, len(s.items))
	copy(items, s.items)
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Pos.Line != items[j].Pos.Line {
			return items[i].Pos.Line < items[j].Pos.Line
		}
		return items[i].Pos.Column < items[j].Pos.Column
	})

	errColor := color.New(color.FgRed, color.Bold)
	warnColor := color.New(color.FgYellow, color.Bold)

	for _, d := range items {
		c := errColor
		if d.Level == Warning {
			c = warnColor
		}
		fmt.Fprintln(w, c.Sprint(d.String(s.Source)))
	}
}

// Internal is the distinct error type of spec.md §7/§9 for malformations
// that are always programming errors — a missing terminator, an unresolved
// jump label, an unknown instruction kind — never accumulated alongside
// ordinary source diagnostics. It short-circuits compilation immediately:
// callers return it straight up the call stack rather than recording it in
// a Sink, matching the "internal-error diagnostic" language of spec.md §7.
type Internal struct {
	Message string
	Cause   error
}

func (e *Internal) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("internal error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("internal error: %s", e.Message)
}

func (e *Internal) Unwrap() error { return e.Cause }

func NewInternal(cause error, format string, args ...any) *Internal {
	return &Internal{Message: fmt.Sprintf(format, args...), Cause: cause}
}
