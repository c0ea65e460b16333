package core

import (
	"fmt"
	"sort"
	"strings"
)

var partColumns = []string{"Part Location", "Material", "PartNumber"}

// part builds a record over partColumns.
func part(line int, loc, material, number string) Record {
	return NewRecord(line, partColumns, []Value{Text(loc), Text(material), Text(number)})
}

func snapshot(source string, records ...Record) Snapshot {
	return Snapshot{Source: source, Columns: partColumns, Records: records}
}

func mustGroup(s Snapshot) *Groups {
	g, err := GroupSnapshot(s, "Part Location")
	if err != nil {
		panic(err)
	}
	return g
}

// describeRow renders a row delta independent of its position, for set comparisons.
func describeRow(k Key, r RowDelta) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s", k, r.Kind, recordText(r.Previous), recordText(r.Current), strings.Join(r.ChangedColumns, ","))
}

func recordText(r Record) string {
	parts := make([]string, len(r.Values))
	for i, v := range r.Values {
		parts[i] = v.String()
	}
	return strings.Join(parts, ";")
}

// deltaSet flattens deltas into a sorted list of descriptions.
func deltaSet(deltas []KeyDelta) []string {
	var out []string
	for _, d := range deltas {
		switch d.Kind {
		case KeyAdded, KeyRemoved:
			for _, r := range d.Records {
				out = append(out, fmt.Sprintf("%s|key-%s|%s", d.Key, d.Kind, recordText(r)))
			}
		case KeyChanged:
			for _, r := range d.Rows {
				out = append(out, describeRow(d.Key, r))
			}
		}
	}
	sort.Strings(out)
	return out
}
