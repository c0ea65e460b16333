package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/text/encoding/unicode"

	"github.com/JonMunkholm/snapdiff/internal/core"
)

func readCSV(t *testing.T, input string) core.Snapshot {
	t.Helper()
	snap, err := NewCSVLoader(',', nil).ReadSnapshot(strings.NewReader(input), "test.csv", 0)
	if err != nil {
		t.Fatalf("ReadSnapshot() error = %v", err)
	}
	return snap
}

func cell(t *testing.T, r core.Record, col string) core.Value {
	t.Helper()
	v, ok := r.Get(col)
	if !ok {
		t.Fatalf("record has no column %q", col)
	}
	return v
}

func TestReadSnapshot_Basic(t *testing.T) {
	snap := readCSV(t, "Part Location,Material,PartNumber\nL1,Glass,PN1\nL2,,NULL\n")

	want := []string{"Part Location", "Material", "PartNumber"}
	if strings.Join(snap.Columns, "|") != strings.Join(want, "|") {
		t.Errorf("Columns = %v, want %v", snap.Columns, want)
	}
	if snap.Source != "test.csv" {
		t.Errorf("Source = %q", snap.Source)
	}
	if len(snap.Records) != 2 {
		t.Fatalf("Records = %d, want 2", len(snap.Records))
	}

	second := snap.Records[1]
	if !cell(t, second, "Material").IsNull() {
		t.Error("blank cell not null")
	}
	if !cell(t, second, "PartNumber").IsNull() {
		t.Error("NULL marker not null")
	}
	if second.Line != 3 {
		t.Errorf("Line = %d, want 3", second.Line)
	}
}

func TestReadSnapshot_Cleaning(t *testing.T) {
	input := "\xEF\xBB\xBFPart Location,Material,Size\n" +
		"=\"007\", Glass ,12\"\n" +
		"L2,Cafe\u0301,'x'\n"
	snap := readCSV(t, input)

	if snap.Columns[0] != "Part Location" {
		t.Errorf("first column = %q, BOM not stripped", snap.Columns[0])
	}

	first := snap.Records[0]
	if got := cell(t, first, "Part Location"); got != core.Text("007") {
		t.Errorf("Excel formula cell = %v, want 007", got)
	}
	if got := cell(t, first, "Material"); got != core.Text("Glass") {
		t.Errorf("whitespace not trimmed: %q", got.Text)
	}
	if got := cell(t, first, "Size"); got != core.Text(`12"`) {
		t.Errorf("unmatched quote altered: %q", got.Text)
	}

	second := snap.Records[1]
	if got := cell(t, second, "Material"); got != core.Text("Café") {
		t.Errorf("value not NFC normalized: %q", got.Text)
	}
	if got := cell(t, second, "Size"); got != core.Text("x") {
		t.Errorf("matched quotes not stripped: %q", got.Text)
	}
}

func TestReadSnapshot_RowShapes(t *testing.T) {
	snap := readCSV(t, "A,B,C\n1,2\n,,\n\n3,4,5,,\n")

	if len(snap.Records) != 2 {
		t.Fatalf("Records = %d, want 2 (blank rows skipped)", len(snap.Records))
	}
	if !cell(t, snap.Records[0], "C").IsNull() {
		t.Error("short row not padded with null")
	}
	if got := cell(t, snap.Records[1], "C"); got != core.Text("5") {
		t.Errorf("C = %v, want 5", got)
	}
	if snap.Records[1].Line != 5 {
		t.Errorf("Line = %d, want 5", snap.Records[1].Line)
	}
}

func TestReadSnapshot_Errors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantCode string
		wantText string
	}{
		{"empty input", "", "LOAD002", "no header"},
		{"blank header", ",,\n1,2,3\n", "LOAD002", "no column names"},
		{"duplicate column", "A,B,A\n1,2,3\n", "LOAD002", "duplicate column"},
		{"extra cells", "A,B\n1,2,3\n", "LOAD002", "wrong number of fields"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCSVLoader(',', nil).ReadSnapshot(strings.NewReader(tt.input), "bad.csv", 0)
			var le *core.LoadError
			if !errors.As(err, &le) {
				t.Fatalf("error = %v, want *core.LoadError", err)
			}
			if le.Source != "bad.csv" {
				t.Errorf("Source = %q", le.Source)
			}
			if !strings.Contains(err.Error(), tt.wantText) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantText)
			}
			if got := core.MapError(err).Code; got != tt.wantCode {
				t.Errorf("MapError code = %s, want %s", got, tt.wantCode)
			}
		})
	}
}

func TestReadSnapshot_BlankHeaderNamed(t *testing.T) {
	snap := readCSV(t, "A,,C\n1,2,3\n")
	if snap.Columns[1] != "Unnamed: 1" {
		t.Errorf("Columns[1] = %q, want %q", snap.Columns[1], "Unnamed: 1")
	}
}

func TestReadSnapshot_Delimiter(t *testing.T) {
	snap, err := NewCSVLoader(';', nil).ReadSnapshot(strings.NewReader("A;B\n1,5;2\n"), "semi.csv", 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := cell(t, snap.Records[0], "A"); got != core.Text("1,5") {
		t.Errorf("A = %v, want 1,5", got)
	}
}

func TestReadSnapshot_Encoding(t *testing.T) {
	t.Run("utf16 with bom", func(t *testing.T) {
		enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
		data, err := enc.String("A,B\nÆble,2\n")
		if err != nil {
			t.Fatal(err)
		}
		snap := readCSV(t, data)
		if got := cell(t, snap.Records[0], "A"); got != core.Text("Æble") {
			t.Errorf("A = %q, want Æble", got.Text)
		}
	})

	t.Run("invalid utf8", func(t *testing.T) {
		snap := readCSV(t, "A\nab\xffc\n")
		if got := cell(t, snap.Records[0], "A"); got != core.Text("ab\uFFFDc") {
			t.Errorf("A = %q, want replacement character", got.Text)
		}
	})
}

func TestCSVLoader_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "v1.csv")
	if err := os.WriteFile(path, []byte("Part Location,Material\nL1,Glass\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewCSVLoader(',', nil)
	for _, src := range []string{path, "csv:" + path} {
		snap, err := l.Load(context.Background(), src, 2)
		if err != nil {
			t.Fatalf("Load(%q) error = %v", src, err)
		}
		if snap.Ordinal != 2 || len(snap.Records) != 1 {
			t.Errorf("Load(%q) = ordinal %d, %d records", src, snap.Ordinal, len(snap.Records))
		}
		if snap.Source != path {
			t.Errorf("Source = %q, want %q", snap.Source, path)
		}
	}

	_, err := l.Load(context.Background(), filepath.Join(dir, "missing.csv"), 0)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v, want ErrNotExist", err)
	}
	if got := core.MapError(err).Code; got != "LOAD001" {
		t.Errorf("MapError code = %s, want LOAD001", got)
	}
}
