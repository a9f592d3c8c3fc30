package adapter

import (
	"fmt"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Registry owns the set of registered adapters and answers which of them
// are relevant to a query.
type Registry struct {
	mu       sync.RWMutex
	order    []string
	adapters map[string]ServerAdapter
	caps     CapabilitySet
}

func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]ServerAdapter),
		caps:     make(CapabilitySet),
	}
}

// Register adds an adapter keyed by its configured name. Duplicate names
// are rejected with ErrDuplicateAdapter rather than silently replaced;
// names that would collide with the qualified-name separators are
// rejected with ErrInvalidAdapterName.
func (r *Registry) Register(a ServerAdapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := a.Name()
	if !validAdapterName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidAdapterName, name)
	}
	if _, ok := r.adapters[name]; ok {
		return ErrDuplicateAdapter
	}
	r.adapters[name] = a
	r.order = append(r.order, name)
	return nil
}

// validAdapterName guards the two namespaces the name ends up in: the
// qualified form "name:tool" and the provider wire form "name__tool".
// Names holding ":" or "__", or ending in "_", would not split back
// unambiguously.
func validAdapterName(name string) bool {
	if name == "" {
		return false
	}
	if strings.Contains(name, QualifierSep) || strings.Contains(name, "__") {
		return false
	}
	return !strings.HasSuffix(name, "_")
}

// Get returns the adapter registered under name.
func (r *Registry) Get(name string) (ServerAdapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	return a, ok
}

// Names returns adapter names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// SetCapabilities records the discovered capabilities for one adapter.
// Called by the multi-server client after each (re)initialization; an
// adapter whose discovery failed gets no entry and stays out of the
// aggregated set.
func (r *Registry) SetCapabilities(name string, caps []Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caps[name] = caps
}

// AggregateCapabilities returns a copy of the merged capability set.
// Tool name collisions across adapters are avoided structurally: the
// merged namespace is always adapter-qualified ("A:X", "B:X").
func (r *Registry) AggregateCapabilities() CapabilitySet {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(CapabilitySet, len(r.caps))
	for name, caps := range r.caps {
		cp := make([]Capability, len(caps))
		copy(cp, caps)
		out[name] = cp
	}
	return out
}

// DetermineRelevantAdapters returns the names of adapters that should see
// this query. An adapter is relevant if its intent rules recognize the
// query, or (fallback) if its capability names/descriptions match query
// tokens. When nothing matches, every adapter is relevant so the model
// can decide.
func (r *Registry) DetermineRelevantAdapters(query string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var relevant []string
	for _, name := range r.order {
		a := r.adapters[name]
		if len(a.ParseQueryIntent(query)) > 0 {
			relevant = append(relevant, name)
			continue
		}
		if capabilityMatch(query, r.caps[name]) {
			relevant = append(relevant, name)
		}
	}

	if len(relevant) == 0 {
		relevant = make([]string, len(r.order))
		copy(relevant, r.order)
	}
	return relevant
}

func capabilityMatch(query string, caps []Capability) bool {
	tokens := queryTokens(query)
	if len(tokens) == 0 {
		return false
	}
	for _, c := range caps {
		nameLower := strings.ToLower(c.Name)
		descLower := strings.ToLower(c.Description)
		for _, tok := range tokens {
			if strings.Contains(nameLower, tok) || strings.Contains(descLower, tok) {
				return true
			}
			if fuzzy.Match(tok, nameLower) {
				return true
			}
		}
	}
	return false
}

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "what": {}, "show": {},
	"give": {}, "get": {}, "have": {}, "about": {}, "please": {},
	"can": {}, "you": {}, "all": {}, "list": {}, "tell": {},
}

func queryTokens(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	var out []string
	for _, f := range fields {
		if len(f) < 3 {
			continue
		}
		if _, skip := stopWords[f]; skip {
			continue
		}
		out = append(out, f)
	}
	return out
}
