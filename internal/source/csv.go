package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/JonMunkholm/snapdiff/internal/core"
	"github.com/JonMunkholm/snapdiff/internal/logging"
)

// CSVLoader reads snapshots from CSV files.
type CSVLoader struct {
	// Delimiter is the field separator (default: ',').
	Delimiter rune

	// Normalizer converts cells to values (default: NewNormalizer(nil)).
	Normalizer *Normalizer
}

// NewCSVLoader creates a CSVLoader.
func NewCSVLoader(delimiter rune, nullValues []string) *CSVLoader {
	return &CSVLoader{Delimiter: delimiter, Normalizer: NewNormalizer(nullValues)}
}

// Load reads the CSV file named by source. A "csv:" prefix is accepted.
func (l *CSVLoader) Load(ctx context.Context, source string, ordinal int) (core.Snapshot, error) {
	path := strings.TrimPrefix(source, "csv:")

	if err := ctx.Err(); err != nil {
		return core.Snapshot{}, core.NewLoadError(source, "cancelled", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return core.Snapshot{}, core.NewLoadError(source, "open", err)
	}
	defer f.Close()

	counter := NewCountingReader(f)
	snap, err := l.ReadSnapshot(counter, path, ordinal)
	if err != nil {
		return core.Snapshot{}, err
	}

	logging.FromContext(ctx).Debug("csv snapshot read",
		"source", path,
		"bytes", counter.BytesRead,
		"columns", len(snap.Columns),
		"records", len(snap.Records),
	)
	return snap, nil
}

// ReadSnapshot parses a CSV stream. The first non-empty row is the header.
// Rows shorter than the header are padded with null values; extra non-blank
// cells beyond the header fail the load. Rows with no value at all are skipped.
func (l *CSVLoader) ReadSnapshot(r io.Reader, source string, ordinal int) (core.Snapshot, error) {
	normalizer := l.Normalizer
	if normalizer == nil {
		normalizer = NewNormalizer(nil)
	}

	cr := csv.NewReader(NewTextReader(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	if l.Delimiter != 0 {
		cr.Comma = l.Delimiter
	}

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return core.Snapshot{}, core.NewLoadError(source, "empty file: no header row", nil)
	}
	if err != nil {
		return core.Snapshot{}, core.NewLoadError(source, "parse error in header", err)
	}

	columns, err := headerColumns(header, normalizer)
	if err != nil {
		return core.Snapshot{}, core.NewLoadError(source, "invalid header", err)
	}

	snap := core.Snapshot{Source: source, Ordinal: ordinal, Columns: columns}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return core.Snapshot{}, core.NewLoadError(source, "parse error", err)
		}
		line, _ := cr.FieldPos(0)

		values, err := rowValues(row, len(columns), normalizer)
		if err != nil {
			return core.Snapshot{}, core.NewLoadError(source, fmt.Sprintf("line %d", line), err)
		}
		if values == nil {
			continue
		}
		snap.Records = append(snap.Records, core.NewRecord(line, columns, values))
	}

	return snap, nil
}

// headerColumns normalizes header names and rejects duplicates.
// Trailing blank header cells are dropped.
func headerColumns(header []string, n *Normalizer) ([]string, error) {
	end := len(header)
	for end > 0 && CleanCell(header[end-1]) == "" {
		end--
	}
	if end == 0 {
		return nil, errors.New("header row has no column names")
	}

	seen := make(map[string]int, end)
	columns := make([]string, end)
	for i := 0; i < end; i++ {
		name := n.Column(header[i], i)
		if first, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate column %q at positions %d and %d", name, first+1, i+1)
		}
		seen[name] = i
		columns[i] = name
	}
	return columns, nil
}

// rowValues normalizes one data row to width values. It returns nil for a
// row without any value.
func rowValues(row []string, width int, n *Normalizer) ([]core.Value, error) {
	for i := width; i < len(row); i++ {
		if CleanCell(row[i]) != "" {
			return nil, fmt.Errorf("wrong number of fields: %d, header has %d", len(row), width)
		}
	}

	values := make([]core.Value, width)
	empty := true
	for i := 0; i < width && i < len(row); i++ {
		values[i] = n.Value(row[i])
		if values[i].Valid {
			empty = false
		}
	}
	if empty {
		return nil, nil
	}
	return values, nil
}
