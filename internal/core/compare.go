package core

// compare.go implements the pairwise comparator.
//
// For every key present in either snapshot the comparator emits exactly one
// KeyDelta. Keys are visited in natural order of their text (the null key
// first), so "L2" sorts before "L10" and output is stable across runs.
//
// Records sharing a key are matched greedily: each previous record, in order,
// takes the first unmatched current record that is equal on every column
// except the key column. What is left over is reported depending on whether
// anything matched:
//
//   - no match at all: the group was edited in place, so leftovers are paired
//     by position into RowChanged, and any surplus becomes RowRemoved/RowAdded
//   - at least one match: leftovers are separate additions and removals and
//     are never paired; a leftover identical to a row that did persist is
//     a duplicate of unchanged content and is not reported

import (
	"sort"

	"facette.io/natsort"
)

// Compare returns one KeyDelta per key in the union of prev and curr,
// including KeyUnchanged entries.
func Compare(prev, curr *Groups, keyColumn string) []KeyDelta {
	keys := unionKeys(prev, curr)
	deltas := make([]KeyDelta, 0, len(keys))

	for _, k := range keys {
		p, inPrev := prev.Get(k)
		c, inCurr := curr.Get(k)

		switch {
		case !inPrev:
			deltas = append(deltas, KeyDelta{Kind: KeyAdded, Key: k, Records: c})
		case !inCurr:
			deltas = append(deltas, KeyDelta{Kind: KeyRemoved, Key: k, Records: p})
		default:
			deltas = append(deltas, compareGroup(k, p, c, keyColumn))
		}
	}

	return deltas
}

// ComparePair groups both snapshots, checks that their schemas agree, and
// compares them. Only non-unchanged deltas are kept in the result. A pair that
// cannot be compared is returned with Err set and no deltas.
func ComparePair(prev, curr Snapshot, keyColumn string) ComparisonResult {
	result := ComparisonResult{
		Previous: prev.Source,
		Current:  curr.Source,
	}

	for _, s := range []Snapshot{prev, curr} {
		if err := checkKeyColumn(s, keyColumn); err != nil {
			result.Err = err
			return result
		}
	}

	prevGroups, err := GroupSnapshot(prev, keyColumn)
	if err != nil {
		result.Err = err
		return result
	}
	currGroups, err := GroupSnapshot(curr, keyColumn)
	if err != nil {
		result.Err = err
		return result
	}

	if err := checkSchema(prev, curr, keyColumn); err != nil {
		result.Err = err
		return result
	}

	for _, d := range Compare(prevGroups, currGroups, keyColumn) {
		if d.Kind == KeyUnchanged {
			result.Unchanged++
			continue
		}
		result.Deltas = append(result.Deltas, d)
	}

	return result
}

// compareGroup runs the greedy row matching for one key.
func compareGroup(k Key, prev, curr []Record, keyColumn string) KeyDelta {
	if len(prev) == 0 && len(curr) == 0 {
		return KeyDelta{Kind: KeyUnchanged, Key: k}
	}

	cols := comparedColumns(prev, curr, keyColumn)
	prevCells := projectAll(prev, cols)
	currCells := projectAll(curr, cols)

	matchedPrev := make([]bool, len(prev))
	matchedCurr := make([]bool, len(curr))
	matches := 0

	for i := range prev {
		for j := range curr {
			if matchedCurr[j] {
				continue
			}
			if equalCells(prevCells[i], currCells[j]) {
				matchedPrev[i] = true
				matchedCurr[j] = true
				matches++
				break
			}
		}
	}

	leftPrev := leftovers(prevCells, matchedPrev)
	leftCurr := leftovers(currCells, matchedCurr)

	var rows []RowDelta
	if matches == 0 {
		n := min(len(leftPrev), len(leftCurr))
		for x := 0; x < n; x++ {
			i, j := leftPrev[x], leftCurr[x]
			rows = append(rows, RowDelta{
				Kind:           RowChanged,
				Previous:       prev[i],
				Current:        curr[j],
				ChangedColumns: changedColumns(prevCells[i], currCells[j], cols),
			})
		}
		leftPrev, leftCurr = leftPrev[n:], leftCurr[n:]
	}
	for _, i := range leftPrev {
		rows = append(rows, RowDelta{Kind: RowRemoved, Previous: prev[i]})
	}
	for _, j := range leftCurr {
		rows = append(rows, RowDelta{Kind: RowAdded, Current: curr[j]})
	}

	if len(rows) == 0 {
		return KeyDelta{Kind: KeyUnchanged, Key: k}
	}
	return KeyDelta{Kind: KeyChanged, Key: k, Rows: rows}
}

// leftovers returns the indexes of unmatched records. An unmatched record that
// is an exact duplicate of a matched record on the same side is dropped: its
// content persisted, so it is neither an addition nor a removal.
func leftovers(cells [][]cell, matched []bool) []int {
	var out []int
	for i := range cells {
		if matched[i] || duplicatesMatched(cells, matched, i) {
			continue
		}
		out = append(out, i)
	}
	return out
}

func duplicatesMatched(cells [][]cell, matched []bool, i int) bool {
	for m := range cells {
		if matched[m] && equalCells(cells[i], cells[m]) {
			return true
		}
	}
	return false
}

// cell is one projected column of a record. A column the record lacks is
// distinct from a column holding a null value.
type cell struct {
	value   Value
	present bool
}

// comparedColumns lists every column seen in either group except the key
// column, previous-side columns first.
func comparedColumns(prev, curr []Record, keyColumn string) []string {
	seen := map[string]bool{keyColumn: true}
	var cols []string
	for _, group := range [][]Record{prev, curr} {
		for _, r := range group {
			for _, c := range r.Columns {
				if !seen[c] {
					seen[c] = true
					cols = append(cols, c)
				}
			}
		}
	}
	return cols
}

func projectAll(records []Record, cols []string) [][]cell {
	out := make([][]cell, len(records))
	for i, r := range records {
		row := make([]cell, len(cols))
		for j, c := range cols {
			v, ok := r.Get(c)
			row[j] = cell{value: v, present: ok}
		}
		out[i] = row
	}
	return out
}

func equalCells(a, b []cell) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func changedColumns(a, b []cell, cols []string) []string {
	var out []string
	for i := range cols {
		if a[i] != b[i] {
			out = append(out, cols[i])
		}
	}
	return out
}

// unionKeys returns every key of prev and curr in natural order.
func unionKeys(prev, curr *Groups) []Key {
	seen := make(map[Key]bool, prev.Len()+curr.Len())
	var keys []Key
	for _, g := range []*Groups{prev, curr} {
		for _, k := range g.order {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.SliceStable(keys, func(i, j int) bool {
		return keyLess(keys[i], keys[j])
	})
	return keys
}

// keyLess is a total order on keys: null first, then natural order, then
// plain byte order for keys natural order considers equal.
func keyLess(a, b Key) bool {
	if a.Valid != b.Valid {
		return !a.Valid
	}
	ab := natsort.Compare(a.Text, b.Text)
	ba := natsort.Compare(b.Text, a.Text)
	if ab != ba {
		return ab
	}
	return a.Text < b.Text
}

// checkKeyColumn fails when a snapshot's declared schema lacks the key column.
func checkKeyColumn(s Snapshot, keyColumn string) error {
	if len(s.Columns) == 0 {
		return nil
	}
	for _, c := range s.Columns {
		if c == keyColumn {
			return nil
		}
	}
	return &MissingKeyColumnError{
		Source:     s.Source,
		Column:     keyColumn,
		Suggestion: suggestColumn(keyColumn, s.Columns),
	}
}

// checkSchema fails when the two snapshots' column sets differ beyond the key column.
func checkSchema(prev, curr Snapshot, keyColumn string) error {
	prevCols := schemaOf(prev)
	currCols := schemaOf(curr)

	inCurr := make(map[string]bool, len(currCols))
	for _, c := range currCols {
		inCurr[c] = true
	}
	inPrev := make(map[string]bool, len(prevCols))
	for _, c := range prevCols {
		inPrev[c] = true
	}

	mismatch := &SchemaMismatchError{Previous: prev.Source, Current: curr.Source}
	for _, c := range prevCols {
		if c != keyColumn && !inCurr[c] {
			mismatch.OnlyInPrevious = append(mismatch.OnlyInPrevious, c)
		}
	}
	for _, c := range currCols {
		if c != keyColumn && !inPrev[c] {
			mismatch.OnlyInCurrent = append(mismatch.OnlyInCurrent, c)
		}
	}

	if len(mismatch.OnlyInPrevious) > 0 || len(mismatch.OnlyInCurrent) > 0 {
		return mismatch
	}
	return nil
}

// schemaOf returns the declared columns, or those of the first record when
// the snapshot declares none.
func schemaOf(s Snapshot) []string {
	if len(s.Columns) > 0 {
		return s.Columns
	}
	if len(s.Records) > 0 {
		return s.Records[0].Columns
	}
	return nil
}
