package source

import (
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/JonMunkholm/snapdiff/internal/core"
)

// DefaultNullValues are the cell contents treated as "no value" when a
// Normalizer is built without an explicit list.
var DefaultNullValues = []string{"NULL", "null", "N/A", "NaN", "nan"}

// Normalizer turns raw cell text into a core.Value.
// Blank cells and configured null markers become the null Value.
type Normalizer struct {
	nulls map[string]struct{}
}

// NewNormalizer creates a Normalizer. A nil list selects DefaultNullValues;
// an empty non-nil list treats only blank cells as null.
func NewNormalizer(nullValues []string) *Normalizer {
	if nullValues == nil {
		nullValues = DefaultNullValues
	}
	n := &Normalizer{nulls: make(map[string]struct{}, len(nullValues))}
	for _, v := range nullValues {
		n.nulls[v] = struct{}{}
	}
	return n
}

// Value normalizes one cell.
func (n *Normalizer) Value(raw string) core.Value {
	s := norm.NFC.String(CleanCell(raw))
	if s == "" {
		return core.Null()
	}
	if _, ok := n.nulls[s]; ok {
		return core.Null()
	}
	return core.Text(s)
}

// Column normalizes a header cell. Blank headers get a positional name.
func (n *Normalizer) Column(raw string, index int) string {
	s := norm.NFC.String(CleanCell(raw))
	if s == "" {
		return "Unnamed: " + strconv.Itoa(index)
	}
	return s
}

// CleanCell removes common spreadsheet-export artifacts from a cell:
//   - surrounding whitespace
//   - the Excel text formula wrapper ="..."
//   - one pair of matching surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}

	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		s = s[1 : len(s)-1]
	}

	return strings.TrimSpace(s)
}
