package core

import "errors"

// Groups partitions the records of one snapshot by key value.
// Records keep the order in which they were encountered, and keys remember
// the order in which they were first seen.
type Groups struct {
	keyColumn string
	order     []Key
	byKey     map[Key][]Record
}

// GroupSnapshot partitions the records of s by the value of keyColumn.
func GroupSnapshot(s Snapshot, keyColumn string) (*Groups, error) {
	g, err := GroupRecords(s.Records, keyColumn)
	if err != nil {
		var mk *MissingKeyColumnError
		if errors.As(err, &mk) {
			mk.Source = s.Source
			if mk.Suggestion == "" {
				mk.Suggestion = suggestColumn(keyColumn, s.Columns)
			}
		}
		return nil, err
	}
	return g, nil
}

// GroupRecords partitions records by the value of keyColumn.
// It fails with a *MissingKeyColumnError if any record lacks the column.
// A record with a blank key value is grouped under the null Key.
func GroupRecords(records []Record, keyColumn string) (*Groups, error) {
	g := &Groups{
		keyColumn: keyColumn,
		byKey:     make(map[Key][]Record),
	}

	for _, r := range records {
		v, ok := r.Get(keyColumn)
		if !ok {
			return nil, &MissingKeyColumnError{
				Column:     keyColumn,
				Line:       r.Line,
				Suggestion: suggestColumn(keyColumn, r.Columns),
			}
		}
		k := Key(v)
		if _, seen := g.byKey[k]; !seen {
			g.order = append(g.order, k)
		}
		g.byKey[k] = append(g.byKey[k], r)
	}

	return g, nil
}

// KeyColumn returns the column the records were grouped by.
func (g *Groups) KeyColumn() string {
	return g.keyColumn
}

// Get returns the records sharing k and whether k is present.
func (g *Groups) Get(k Key) ([]Record, bool) {
	recs, ok := g.byKey[k]
	return recs, ok
}

// Has reports whether k is present.
func (g *Groups) Has(k Key) bool {
	_, ok := g.byKey[k]
	return ok
}

// Keys returns the keys in first-seen order.
func (g *Groups) Keys() []Key {
	out := make([]Key, len(g.order))
	copy(out, g.order)
	return out
}

// Len returns the number of distinct keys.
func (g *Groups) Len() int {
	return len(g.order)
}

// Flatten returns every record, key by key in first-seen order.
func (g *Groups) Flatten() []Record {
	var out []Record
	for _, k := range g.order {
		out = append(out, g.byKey[k]...)
	}
	return out
}
