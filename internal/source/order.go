package source

import (
	"fmt"
	"path/filepath"
	"sort"

	"facette.io/natsort"
)

// Sort modes for Order.
const (
	SortNatural = "natural"
	SortName    = "name"
	SortNone    = "none"
)

// Order returns sources in comparison order, by base name. "natural" puts
// v2 before v10, "name" is plain byte order and "none" keeps the given order.
func Order(sources []string, mode string) ([]string, error) {
	out := append([]string(nil), sources...)

	switch mode {
	case SortNatural, "":
		sort.SliceStable(out, func(i, j int) bool {
			return natsort.Compare(baseName(out[i]), baseName(out[j])) && !natsort.Compare(baseName(out[j]), baseName(out[i]))
		})
	case SortName:
		sort.SliceStable(out, func(i, j int) bool {
			return baseName(out[i]) < baseName(out[j])
		})
	case SortNone:
	default:
		return nil, fmt.Errorf("unknown sort mode %q", mode)
	}

	return out, nil
}

func baseName(source string) string {
	if scheme, ok := Scheme(source); ok && scheme != "csv" {
		return source
	}
	return filepath.Base(source)
}
