package core

// errors.go defines the error taxonomy of a comparison run.
//
// Run-fatal errors stop the run before any report is produced:
//   - ErrInsufficientSnapshots: fewer than two sources
//   - *LoadError: a snapshot could not be loaded
//   - *SinkError: the report could not be written
//
// Pair-local errors are recorded as a diagnostic for that pair only:
//   - *MissingKeyColumnError (ErrMissingKeyColumn)
//   - *SchemaMismatchError (ErrSchemaMismatch)

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
)

var (
	// ErrInsufficientSnapshots is returned when fewer than two snapshots are supplied.
	ErrInsufficientSnapshots = errors.New("at least two snapshots are required for comparison")

	// ErrMissingKeyColumn matches every *MissingKeyColumnError.
	ErrMissingKeyColumn = errors.New("key column missing")

	// ErrSchemaMismatch matches every *SchemaMismatchError.
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// maxSuggestionDistance bounds the edit distance of a "did you mean" hint.
const maxSuggestionDistance = 3

// MissingKeyColumnError reports a record that lacks the declared key column.
type MissingKeyColumnError struct {
	Source     string // Snapshot source, empty when grouping loose records
	Column     string // Declared key column
	Line       int    // Line of the first offending record, 0 if unknown
	Suggestion string // Closest existing column name, if any
}

func (e *MissingKeyColumnError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "key column missing: %q", e.Column)
	if e.Source != "" {
		fmt.Fprintf(&b, " not found in %s", e.Source)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " (line %d)", e.Line)
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&b, "; did you mean %q?", e.Suggestion)
	}
	return b.String()
}

// Is makes errors.Is(err, ErrMissingKeyColumn) succeed.
func (e *MissingKeyColumnError) Is(target error) bool {
	return target == ErrMissingKeyColumn
}

// SchemaMismatchError reports two snapshots whose columns differ beyond the key column.
type SchemaMismatchError struct {
	Previous       string
	Current        string
	OnlyInPrevious []string
	OnlyInCurrent  []string
}

func (e *SchemaMismatchError) Error() string {
	var parts []string
	if len(e.OnlyInPrevious) > 0 {
		parts = append(parts, fmt.Sprintf("only in %s: %s", e.Previous, strings.Join(e.OnlyInPrevious, ", ")))
	}
	if len(e.OnlyInCurrent) > 0 {
		parts = append(parts, fmt.Sprintf("only in %s: %s", e.Current, strings.Join(e.OnlyInCurrent, ", ")))
	}
	return fmt.Sprintf("schema mismatch between %s and %s (%s)", e.Previous, e.Current, strings.Join(parts, "; "))
}

// Is makes errors.Is(err, ErrSchemaMismatch) succeed.
func (e *SchemaMismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}

// LoadError is returned by snapshot loaders. The core propagates it unmodified.
type LoadError struct {
	Source string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	msg := fmt.Sprintf("load %s: %s", e.Source, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// NewLoadError builds a LoadError for source.
func NewLoadError(source, reason string, err error) *LoadError {
	return &LoadError{Source: source, Reason: reason, Err: err}
}

// SinkError is returned by report sinks. The core propagates it unmodified.
type SinkError struct {
	Location string
	Err      error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink write failed for %s: %v", e.Location, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

// suggestColumn returns the column closest to want, or "" if none is close enough.
func suggestColumn(want string, columns []string) string {
	best := ""
	bestDist := maxSuggestionDistance + 1
	for _, c := range columns {
		d := levenshtein.ComputeDistance(strings.ToLower(want), strings.ToLower(c))
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
