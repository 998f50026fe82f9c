package etl

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
)

// ── Source ──────────────────────────────────────────────────
// A Source turns a locator (a path or a URL) into the raw bytes of a feed.
// Implementations live in etl/sources/, one file per source type.
// Resolving the locator is the only I/O before extraction starts.

// SourceSpec describes a source type.
type SourceSpec struct {
	Type    string   `json:"type"`
	Label   string   `json:"label"`
	Schemes []string `json:"schemes"`
	Help    string   `json:"help,omitempty"`
}

// Source is the interface every feed source must implement.
type Source interface {
	// Spec returns metadata about this source type.
	Spec() SourceSpec

	// Match reports whether this source can open locator.
	Match(locator string) bool

	// Open returns the document behind locator. The caller closes it.
	Open(ctx context.Context, locator string) (io.ReadCloser, error)
}

// ── Source Registry ────────────────────────────────────────
// Compile-time registration via init() in each source file.

var (
	registryMu sync.RWMutex
	registry   = map[string]Source{}
)

// RegisterSource registers a source by its spec type.
// Called from init() in each source implementation file.
func RegisterSource(s Source) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[s.Spec().Type] = s
}

// GetSource returns a registered source by type, or an error if not found.
func GetSource(typ string) (Source, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[typ]
	if !ok {
		return nil, fmt.Errorf("unknown source type: %q", typ)
	}
	return s, nil
}

// ResolveSource returns the first registered source, in type order,
// that matches locator.
func ResolveSource(locator string) (Source, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	for _, typ := range sortedTypes() {
		if s := registry[typ]; s.Match(locator) {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNoSource, locator)
}

// ListSources returns the specs of all registered sources, sorted by type.
func ListSources() []SourceSpec {
	registryMu.RLock()
	defer registryMu.RUnlock()
	specs := make([]SourceSpec, 0, len(registry))
	for _, typ := range sortedTypes() {
		specs = append(specs, registry[typ].Spec())
	}
	return specs
}

// sortedTypes must be called with registryMu held.
func sortedTypes() []string {
	types := make([]string, 0, len(registry))
	for typ := range registry {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}
