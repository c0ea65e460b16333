package core

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			name:     "nil error returns empty",
			err:      nil,
			wantCode: "",
		},
		{
			name:     "insufficient snapshots",
			err:      ErrInsufficientSnapshots,
			wantCode: "RUN001",
		},
		{
			name:     "busy",
			err:      fmt.Errorf("compare: %w", ErrTooManyRuns),
			wantCode: "RUN002",
		},
		{
			name:     "missing key column",
			err:      &MissingKeyColumnError{Column: "Part Location"},
			wantCode: "KEY001",
		},
		{
			name:     "schema mismatch",
			err:      &SchemaMismatchError{Previous: "a", Current: "b"},
			wantCode: "SCH001",
		},
		{
			name:     "load error for missing file",
			err:      NewLoadError("v1.csv", "open", os.ErrNotExist),
			wantCode: "LOAD001",
		},
		{
			name:     "load error for bad csv",
			err:      NewLoadError("v1.csv", "record on line 3", errors.New("wrong number of fields")),
			wantCode: "LOAD002",
		},
		{
			name:     "load error defaults to unreadable",
			err:      NewLoadError("v1.csv", "empty header", nil),
			wantCode: "LOAD002",
		},
		{
			name:     "rate limited",
			err:      errors.New("rate limit exceeded"),
			wantCode: "RUN003",
		},
		{
			name:     "stored report missing",
			err:      fmt.Errorf("get abc: %w", errors.New("report not found")),
			wantCode: "RPT001",
		},
		{
			name:     "unsupported source",
			err:      NewLoadError("ftp://x", "unsupported source scheme", nil),
			wantCode: "LOAD003",
		},
		{
			name:     "database down",
			err:      NewLoadError("postgres:parts", "query", errors.New("dial tcp: connection refused")),
			wantCode: "LOAD004",
		},
		{
			name:     "sink failure",
			err:      &SinkError{Location: "/ro/report.txt", Err: os.ErrPermission},
			wantCode: "SINK001",
		},
		{
			name:     "unknown format",
			err:      &SinkError{Location: "report", Err: errors.New(`unknown format "pdf"`)},
			wantCode: "SINK002",
		},
		{
			name:     "unknown error returns default",
			err:      errors.New("some random internal error"),
			wantCode: "ERR000",
		},
		{
			name:     "case insensitive matching",
			err:      errors.New("Connection Refused by peer"),
			wantCode: "LOAD004",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if tt.err != nil && got.Action == "" {
				t.Error("MapError() action is empty")
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(ErrInsufficientSnapshots)
	want := "At least two snapshots are required (Code: RUN001). Select two or more files to compare"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}

	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("nil error is user facing")
	}
	if !IsUserFacing(ErrSchemaMismatch) {
		t.Error("schema mismatch should be user facing")
	}
	if IsUserFacing(errors.New("boom")) {
		t.Error("unmatched error should not be user facing")
	}
}

func TestLoadErrorUnwrap(t *testing.T) {
	err := NewLoadError("v1.csv", "open", os.ErrNotExist)
	if !errors.Is(err, os.ErrNotExist) {
		t.Error("LoadError does not unwrap to its cause")
	}
	if !strings.HasPrefix(err.Error(), "load v1.csv: open") {
		t.Errorf("Error() = %q", err.Error())
	}
}
