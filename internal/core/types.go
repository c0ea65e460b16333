package core

import (
	"strconv"
	"time"
)

// Value is a normalized cell value. The zero Value is the canonical "no value"
// that loaders produce for blank and null cells.
type Value struct {
	Text  string
	Valid bool
}

// Text returns a non-null Value holding s.
func Text(s string) Value {
	return Value{Text: s, Valid: true}
}

// Null returns the canonical "no value".
func Null() Value {
	return Value{}
}

// IsNull reports whether v carries no value.
func (v Value) IsNull() bool {
	return !v.Valid
}

// String returns the display form of v. Null renders as an empty string.
func (v Value) String() string {
	if !v.Valid {
		return ""
	}
	return v.Text
}

// Key is the value of the grouping column for one record.
// The null Key groups every record with a blank key value.
type Key Value

// String returns the display form of the key.
func (k Key) String() string {
	if !k.Valid {
		return "(blank)"
	}
	return k.Text
}

// Record is one row of a snapshot: an ordered mapping from column name to value.
// Columns is typically shared by every record of a snapshot and must not be
// modified once loaded.
type Record struct {
	Line    int      // 1-based line in the source, 0 if unknown
	Columns []string // Column names in source order
	Values  []Value  // Values, parallel to Columns
}

// NewRecord builds a record from parallel column and value slices.
func NewRecord(line int, columns []string, values []Value) Record {
	return Record{Line: line, Columns: columns, Values: values}
}

// Get returns the value of column and whether the record has that column.
func (r Record) Get(column string) (Value, bool) {
	for i, c := range r.Columns {
		if c == column {
			if i < len(r.Values) {
				return r.Values[i], true
			}
			return Value{}, false
		}
	}
	return Value{}, false
}

// Has reports whether the record carries column.
func (r Record) Has(column string) bool {
	_, ok := r.Get(column)
	return ok
}

// Label returns a short human-readable reference to the record.
func (r Record) Label() string {
	if r.Line <= 0 {
		return "record"
	}
	return "line " + strconv.Itoa(r.Line)
}

// Snapshot is one full capture of a table at a point in time.
type Snapshot struct {
	Source  string   // Source identifier, e.g. a file name
	Ordinal int      // Position in the compared series (0-based)
	Columns []string // Declared schema in source order
	Records []Record
}

// RowDeltaKind classifies a RowDelta.
type RowDeltaKind string

const (
	RowAdded   RowDeltaKind = "added"
	RowRemoved RowDeltaKind = "removed"
	RowChanged RowDeltaKind = "changed"
)

// RowDelta describes how one unmatched record relates between two groups
// sharing a key. Previous is set for removed and changed rows, Current for
// added and changed rows.
type RowDelta struct {
	Kind           RowDeltaKind
	Previous       Record
	Current        Record
	ChangedColumns []string // Columns that differ, RowChanged only
}

// KeyDeltaKind classifies a KeyDelta.
type KeyDeltaKind string

const (
	KeyAdded     KeyDeltaKind = "added"
	KeyRemoved   KeyDeltaKind = "removed"
	KeyChanged   KeyDeltaKind = "changed"
	KeyUnchanged KeyDeltaKind = "unchanged"
)

// KeyDelta is the per-key outcome of comparing two groups.
// Records is set for KeyAdded and KeyRemoved, Rows for KeyChanged.
type KeyDelta struct {
	Kind    KeyDeltaKind
	Key     Key
	Records []Record
	Rows    []RowDelta
}

// ComparisonResult holds the outcome of comparing one consecutive snapshot pair.
type ComparisonResult struct {
	Index     int    // 1-based pair number
	Previous  string // Source of the earlier snapshot
	Current   string // Source of the later snapshot
	Deltas    []KeyDelta
	Unchanged int   // Number of keys present on both sides with no changes
	Err       error // Set when the pair could not be compared
}

// Failed reports whether the pair could not be compared.
func (r ComparisonResult) Failed() bool {
	return r.Err != nil
}

// RunMetadata describes one comparison run.
type RunMetadata struct {
	ID          string
	GeneratedAt time.Time
	KeyColumn   string
	Sources     []string
}

// Summary counts the outcome of one section.
type Summary struct {
	KeysAdded     int
	KeysRemoved   int
	KeysChanged   int
	KeysUnchanged int
	RowsAdded     int
	RowsRemoved   int
	RowsChanged   int
}

// Diagnostic explains why a pair could not be compared.
type Diagnostic struct {
	Code    string
	Message string
}

// Section is the display form of one ComparisonResult.
type Section struct {
	Index         int
	Previous      string
	Current       string
	Added         []KeyDelta
	Removed       []KeyDelta
	Changed       []KeyDelta
	Summary       Summary
	NoDifferences bool
	Diagnostic    *Diagnostic
}

// Report is the assembled outcome of a comparison run.
type Report struct {
	ID          string
	GeneratedAt time.Time
	BaseSource  string
	KeyColumn   string
	Sources     []string
	Sections    []Section
}

// Totals sums the summaries of every section.
func (r Report) Totals() Summary {
	var t Summary
	for _, s := range r.Sections {
		t.KeysAdded += s.Summary.KeysAdded
		t.KeysRemoved += s.Summary.KeysRemoved
		t.KeysChanged += s.Summary.KeysChanged
		t.KeysUnchanged += s.Summary.KeysUnchanged
		t.RowsAdded += s.Summary.RowsAdded
		t.RowsRemoved += s.Summary.RowsRemoved
		t.RowsChanged += s.Summary.RowsChanged
	}
	return t
}

// Failures returns the number of sections that carry a diagnostic.
func (r Report) Failures() int {
	n := 0
	for _, s := range r.Sections {
		if s.Diagnostic != nil {
			n++
		}
	}
	return n
}
