// Package enrich serves enrichment lookups (industry codes, business
// descriptions) shown next to questions. Lookups run on a bounded pool so a
// slow source never stalls a respondent session.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownKind is returned when no lookuper is registered for a kind.
var ErrUnknownKind = errors.New("unknown lookup kind")

// Result is the outcome of one lookup.
type Result struct {
	Kind  string `json:"kind"`
	Input string `json:"input"`
	Found bool   `json:"found"`
	Code  string `json:"code,omitempty"`
	Text  string `json:"text,omitempty"`
}

// Lookuper is the interface all lookup sources must satisfy.
type Lookuper interface {
	// Kind returns the key this lookuper is registered under.
	Kind() string
	// Lookup resolves input. A miss is a Result with Found false, not an error.
	Lookup(ctx context.Context, input string) (Result, error)
}

// Registry maps lookup kinds to their sources.
// It is safe for concurrent reads; Register should only be called at startup.
type Registry struct {
	mu        sync.RWMutex
	lookupers map[string]Lookuper
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{lookupers: make(map[string]Lookuper)}
}

// Register adds a lookuper. Panics on duplicate kind to surface misconfiguration early.
func (r *Registry) Register(l Lookuper) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.lookupers[l.Kind()]; exists {
		panic(fmt.Sprintf("lookup registry: duplicate kind %q", l.Kind()))
	}
	r.lookupers[l.Kind()] = l
}

// Get returns the lookuper for kind.
func (r *Registry) Get(kind string) (Lookuper, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.lookupers[kind]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownKind, kind)
	}
	return l, nil
}

// Kinds returns all registered kinds, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.lookupers))
	for k := range r.lookupers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// FromTables builds a registry holding one Table per configured kind.
func FromTables(tables map[string]map[string]string) *Registry {
	r := NewRegistry()
	for kind, entries := range tables {
		r.Register(NewTable(kind, entries))
	}
	return r
}
