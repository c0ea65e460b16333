package sink

import (
	"fmt"
	"io"
	"sort"
	"sync"
)

// Format renders a Document in one output format.
type Format struct {
	Name        string // Registry key, e.g. "json"
	Extension   string // File extension including the dot
	ContentType string // HTTP content type
	Render      func(w io.Writer, doc *Document) error
}

var (
	formats   = make(map[string]Format)
	formatsMu sync.RWMutex
)

// RegisterFormat adds a format to the registry.
// Panics if a format with the same name is already registered.
func RegisterFormat(f Format) {
	formatsMu.Lock()
	defer formatsMu.Unlock()

	if _, exists := formats[f.Name]; exists {
		panic(fmt.Sprintf("format already registered: %s", f.Name))
	}
	formats[f.Name] = f
}

// LookupFormat returns a format by name.
func LookupFormat(name string) (Format, bool) {
	formatsMu.RLock()
	defer formatsMu.RUnlock()

	f, ok := formats[name]
	return f, ok
}

// FormatNames returns the registered format names, sorted.
func FormatNames() []string {
	formatsMu.RLock()
	defer formatsMu.RUnlock()

	names := make([]string, 0, len(formats))
	for n := range formats {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Render writes doc to w in the named format.
func Render(w io.Writer, format string, doc *Document) error {
	f, ok := LookupFormat(format)
	if !ok {
		return fmt.Errorf("unknown format %q", format)
	}
	return f.Render(w, doc)
}
