package curvelog

import (
	"errors"
	"fmt"
)

var (
	// ErrNotText: the input bytes are not valid UTF-8 text.
	ErrNotText = errors.New("input is not utf-8 text")
	// ErrEmptyInput: the caller supplied no content at all.
	ErrEmptyInput = errors.New("input is empty")
	// ErrInvalidDuration: a duration string does not match the T# grammar.
	ErrInvalidDuration = errors.New("invalid duration")
)

// DiagnosticKind classifies a recoverable data problem.
type DiagnosticKind string

const (
	// KindMalformedLine: a data-looking line inside the section failed the sample grammar.
	KindMalformedLine DiagnosticKind = "malformed_line"
	// KindOrphanSample: a valid sample appeared before any record header in the section.
	KindOrphanSample DiagnosticKind = "orphan_sample"
	// KindDurationDecode: a sample's time field could not be decoded.
	KindDurationDecode DiagnosticKind = "duration_decode"
	// KindZeroInterval: two consecutive timed samples share the same elapsed time.
	KindZeroInterval DiagnosticKind = "zero_interval"
	// KindNonMonotonicTime: elapsed time went backwards between consecutive timed samples.
	KindNonMonotonicTime DiagnosticKind = "non_monotonic_time"
	// KindNonFiniteVelocity: a velocity step overflowed float64; the previous velocity is kept.
	KindNonFiniteVelocity DiagnosticKind = "non_finite_velocity"
)

// Diagnostic reports one recovered problem alongside the parsed data.
// Record and Sample are 1-based; zero means "not attached to one".
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Line    int            `json:"line,omitempty"`
	Record  int            `json:"record,omitempty"`
	Sample  int            `json:"sample,omitempty"`
	Text    string         `json:"text,omitempty"`
	Message string         `json:"message"`
}

func (d Diagnostic) String() string {
	switch {
	case d.Line > 0 && d.Record > 0:
		return fmt.Sprintf("%s (record %d, line %d): %s", d.Kind, d.Record, d.Line, d.Message)
	case d.Line > 0:
		return fmt.Sprintf("%s (line %d): %s", d.Kind, d.Line, d.Message)
	case d.Record > 0:
		return fmt.Sprintf("%s (record %d): %s", d.Kind, d.Record, d.Message)
	default:
		return fmt.Sprintf("%s: %s", d.Kind, d.Message)
	}
}

// Warning reports whether the diagnostic should reach the user as a warning
// rather than debug detail.
func (d Diagnostic) Warning() bool {
	switch d.Kind {
	case KindMalformedLine, KindDurationDecode, KindNonMonotonicTime, KindNonFiniteVelocity:
		return true
	default:
		return false
	}
}

// DurationError describes why a duration string failed to decode.
type DurationError struct {
	Input  string
	Reason string
}

func (e *DurationError) Error() string {
	return fmt.Sprintf("invalid duration %q: %s", e.Input, e.Reason)
}

func (e *DurationError) Unwrap() error { return ErrInvalidDuration }

// CountByKind tallies diagnostics per kind.
func CountByKind(diags []Diagnostic) map[DiagnosticKind]int {
	out := make(map[DiagnosticKind]int, 5)
	for _, d := range diags {
		out[d.Kind]++
	}
	return out
}
