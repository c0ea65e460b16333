package source

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/JonMunkholm/snapdiff/internal/core"
)

// Mux dispatches source identifiers to loaders by scheme prefix.
// Identifiers without a scheme go to the default loader.
type Mux struct {
	mu       sync.RWMutex
	loaders  map[string]core.SnapshotLoader
	fallback core.SnapshotLoader
}

// NewMux creates a Mux. fallback handles identifiers without a scheme and
// may be nil.
func NewMux(fallback core.SnapshotLoader) *Mux {
	return &Mux{
		loaders:  make(map[string]core.SnapshotLoader),
		fallback: fallback,
	}
}

// Register adds a loader for scheme, replacing any existing one.
func (m *Mux) Register(scheme string, l core.SnapshotLoader) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaders[strings.ToLower(scheme)] = l
}

// Schemes returns the registered schemes.
func (m *Mux) Schemes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.loaders))
	for s := range m.loaders {
		out = append(out, s)
	}
	return out
}

// Load implements core.SnapshotLoader.
func (m *Mux) Load(ctx context.Context, source string, ordinal int) (core.Snapshot, error) {
	l, err := m.resolve(source)
	if err != nil {
		return core.Snapshot{}, err
	}
	return l.Load(ctx, source, ordinal)
}

func (m *Mux) resolve(source string) (core.SnapshotLoader, error) {
	scheme, ok := Scheme(source)

	m.mu.RLock()
	defer m.mu.RUnlock()

	if ok {
		if l, found := m.loaders[scheme]; found {
			return l, nil
		}
		return nil, core.NewLoadError(source, fmt.Sprintf("unsupported source scheme %q", scheme), nil)
	}
	if m.fallback == nil {
		return nil, core.NewLoadError(source, "unsupported source: no default loader", nil)
	}
	return m.fallback, nil
}

// Scheme returns the lowercased scheme of source, if it has one.
// Single-letter prefixes are treated as Windows drive letters, not schemes.
func Scheme(source string) (string, bool) {
	i := strings.IndexByte(source, ':')
	if i < 2 {
		return "", false
	}
	for j, r := range source[:i] {
		letter := r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'
		if j == 0 && !letter {
			return "", false
		}
		if !letter && !(r >= '0' && r <= '9') && r != '+' && r != '-' && r != '.' {
			return "", false
		}
	}
	return strings.ToLower(source[:i]), true
}
