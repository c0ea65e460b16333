package source

import (
	"testing"

	"github.com/JonMunkholm/snapdiff/internal/core"
)

func TestCleanCell(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  abc  ", "abc"},
		{`="00123"`, "00123"},
		{`"quoted"`, "quoted"},
		{`'single'`, "single"},
		{`12"`, `12"`},
		{`"`, `"`},
		{`=SUM(A1)`, `=SUM(A1)`},
		{"", ""},
	}

	for _, tt := range tests {
		if got := CleanCell(tt.in); got != tt.want {
			t.Errorf("CleanCell(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizer_Value(t *testing.T) {
	n := NewNormalizer([]string{"-", "NULL"})

	tests := []struct {
		in   string
		want core.Value
	}{
		{"", core.Null()},
		{"   ", core.Null()},
		{"-", core.Null()},
		{"NULL", core.Null()},
		{"N/A", core.Text("N/A")},
		{" Glass ", core.Text("Glass")},
	}

	for _, tt := range tests {
		if got := n.Value(tt.in); got != tt.want {
			t.Errorf("Value(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestNormalizer_Defaults(t *testing.T) {
	if !NewNormalizer(nil).Value("N/A").IsNull() {
		t.Error("default null markers not applied")
	}
	if NewNormalizer([]string{}).Value("N/A").IsNull() {
		t.Error("empty list should only treat blanks as null")
	}
}
