package sink

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/snapdiff/internal/core"
	"github.com/JonMunkholm/snapdiff/internal/source"
)

// DefaultTitle is the report title used when none is configured.
const DefaultTitle = "Snapshot Comparison Report"

// Document is the serialization-friendly view of a core.Report shared by all
// renderers and stores. Record values keep their column order.
type Document struct {
	ID          string          `json:"id" yaml:"id"`
	Title       string          `json:"title" yaml:"title"`
	GeneratedAt time.Time       `json:"generated_at" yaml:"generated_at"`
	BaseSource  string          `json:"base_source" yaml:"base_source"`
	KeyColumn   string          `json:"key_column" yaml:"key_column"`
	Sources     []string        `json:"sources" yaml:"sources"`
	Totals      SummaryDoc      `json:"totals" yaml:"totals"`
	Comparisons []ComparisonDoc `json:"comparisons" yaml:"comparisons"`
}

// SummaryDoc counts the outcome of one comparison or a whole run.
type SummaryDoc struct {
	KeysAdded     int `json:"keys_added" yaml:"keys_added"`
	KeysRemoved   int `json:"keys_removed" yaml:"keys_removed"`
	KeysChanged   int `json:"keys_changed" yaml:"keys_changed"`
	KeysUnchanged int `json:"keys_unchanged" yaml:"keys_unchanged"`
	RowsAdded     int `json:"rows_added" yaml:"rows_added"`
	RowsRemoved   int `json:"rows_removed" yaml:"rows_removed"`
	RowsChanged   int `json:"rows_changed" yaml:"rows_changed"`
}

// ComparisonDoc is one consecutive snapshot pair.
type ComparisonDoc struct {
	Index         int            `json:"index" yaml:"index"`
	Previous      string         `json:"previous" yaml:"previous"`
	Current       string         `json:"current" yaml:"current"`
	NoDifferences bool           `json:"no_differences" yaml:"no_differences"`
	Error         *DiagnosticDoc `json:"error,omitempty" yaml:"error,omitempty"`
	Summary       SummaryDoc     `json:"summary" yaml:"summary"`
	Added         []KeyDoc       `json:"added" yaml:"added"`
	Removed       []KeyDoc       `json:"removed" yaml:"removed"`
	Changed       []KeyDoc       `json:"changed" yaml:"changed"`
}

// DiagnosticDoc explains a skipped pair.
type DiagnosticDoc struct {
	Code    string `json:"code" yaml:"code"`
	Message string `json:"message" yaml:"message"`
}

// KeyDoc is the delta of one key. Records is set for added and removed keys,
// Rows for changed keys.
type KeyDoc struct {
	Key     string      `json:"key" yaml:"key"`
	Blank   bool        `json:"blank,omitempty" yaml:"blank,omitempty"`
	Records []RecordDoc `json:"records,omitempty" yaml:"records,omitempty"`
	Rows    []RowDoc    `json:"rows,omitempty" yaml:"rows,omitempty"`
}

// RowDoc is one row-level delta inside a changed key.
type RowDoc struct {
	Kind     string        `json:"kind" yaml:"kind"`
	Previous *RecordDoc    `json:"previous,omitempty" yaml:"previous,omitempty"`
	Current  *RecordDoc    `json:"current,omitempty" yaml:"current,omitempty"`
	Changes  []FieldChange `json:"changes,omitempty" yaml:"changes,omitempty"`
}

// FieldChange is one differing column of a changed row.
type FieldChange struct {
	Column   string  `json:"column" yaml:"column"`
	Previous *string `json:"previous" yaml:"previous"`
	Current  *string `json:"current" yaml:"current"`
}

// RecordDoc is a record with its source line.
type RecordDoc struct {
	Line   int    `json:"line,omitempty" yaml:"line,omitempty"`
	Values Fields `json:"values" yaml:"values"`
}

// Field is one column of a record. A nil Value is a null cell.
type Field struct {
	Column string
	Value  *string
}

// Fields is an ordered set of columns. It encodes as a JSON object or YAML
// mapping whose keys keep the source column order.
type Fields []Field

// Get returns the value of column.
func (f Fields) Get(column string) (*string, bool) {
	for _, fld := range f {
		if fld.Column == column {
			return fld.Value, true
		}
	}
	return nil, false
}

// MarshalJSON implements json.Marshaler.
func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, fld := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(fld.Column)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(fld.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler, keeping the object's key order.
func (f *Fields) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*f = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("fields: expected object, got %v", tok)
	}

	out := Fields{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		col, ok := tok.(string)
		if !ok {
			return fmt.Errorf("fields: expected column name, got %v", tok)
		}
		var v *string
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("fields: column %q: %w", col, err)
		}
		out = append(out, Field{Column: col, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*f = out
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (f Fields) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, fld := range f {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: fld.Column}
		val := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
		if fld.Value != nil {
			val = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: *fld.Value}
		}
		node.Content = append(node.Content, key, val)
	}
	return node, nil
}

// NewDocument builds the Document of report.
func NewDocument(report core.Report, title string) *Document {
	if title == "" {
		title = DefaultTitle
	}

	doc := &Document{
		ID:          report.ID,
		Title:       title,
		GeneratedAt: report.GeneratedAt,
		BaseSource:  report.BaseSource,
		KeyColumn:   report.KeyColumn,
		Sources:     append([]string{}, report.Sources...),
		Totals:      summaryDoc(report.Totals()),
		Comparisons: make([]ComparisonDoc, 0, len(report.Sections)),
	}

	for _, sec := range report.Sections {
		doc.Comparisons = append(doc.Comparisons, comparisonDoc(sec))
	}
	return doc
}

func comparisonDoc(sec core.Section) ComparisonDoc {
	c := ComparisonDoc{
		Index:         sec.Index,
		Previous:      sec.Previous,
		Current:       sec.Current,
		NoDifferences: sec.NoDifferences,
		Summary:       summaryDoc(sec.Summary),
		Added:         keyDocs(sec.Added),
		Removed:       keyDocs(sec.Removed),
		Changed:       keyDocs(sec.Changed),
	}
	if sec.Diagnostic != nil {
		c.Error = &DiagnosticDoc{Code: sec.Diagnostic.Code, Message: sec.Diagnostic.Message}
	}
	return c
}

func keyDocs(deltas []core.KeyDelta) []KeyDoc {
	out := make([]KeyDoc, 0, len(deltas))
	for _, d := range deltas {
		kd := KeyDoc{Key: d.Key.Text, Blank: !d.Key.Valid}
		for _, r := range d.Records {
			kd.Records = append(kd.Records, recordDoc(r))
		}
		for _, row := range d.Rows {
			kd.Rows = append(kd.Rows, rowDoc(row))
		}
		out = append(out, kd)
	}
	return out
}

func rowDoc(row core.RowDelta) RowDoc {
	rd := RowDoc{Kind: string(row.Kind)}
	if row.Kind != core.RowAdded {
		prev := recordDoc(row.Previous)
		rd.Previous = &prev
	}
	if row.Kind != core.RowRemoved {
		curr := recordDoc(row.Current)
		rd.Current = &curr
	}
	for _, col := range row.ChangedColumns {
		p, _ := row.Previous.Get(col)
		c, _ := row.Current.Get(col)
		rd.Changes = append(rd.Changes, FieldChange{Column: col, Previous: valuePtr(p), Current: valuePtr(c)})
	}
	return rd
}

func recordDoc(r core.Record) RecordDoc {
	fields := make(Fields, 0, len(r.Columns))
	for i, col := range r.Columns {
		var v core.Value
		if i < len(r.Values) {
			v = r.Values[i]
		}
		fields = append(fields, Field{Column: col, Value: valuePtr(v)})
	}
	return RecordDoc{Line: r.Line, Values: fields}
}

func valuePtr(v core.Value) *string {
	if !v.Valid {
		return nil
	}
	s := v.Text
	return &s
}

func summaryDoc(s core.Summary) SummaryDoc {
	return SummaryDoc(s)
}

// DisplayName shortens a source for headings: file paths become their base
// name, other sources are shown in full.
func DisplayName(src string) string {
	if !isFileSource(src) {
		return src
	}
	return filepath.Base(strings.TrimPrefix(src, "csv:"))
}

func isFileSource(src string) bool {
	scheme, ok := source.Scheme(src)
	return !ok || scheme == "csv"
}

// KeyLabel is the display form of a key.
func (k KeyDoc) KeyLabel() string {
	if k.Blank {
		return "(blank)"
	}
	return k.Key
}
