package channel

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

// Registry holds an immutable set of channel definitions, keyed by id and
// by lower-cased alias. Build a fresh Registry on config reload and swap it
// in via Provider; never mutate one in place.
type Registry struct {
	byID    map[string]Definition
	byAlias map[string]string // lower(alias) -> id
	ordered []string          // ids, sorted for stable listings
}

// NewRegistry validates every spec and rejects duplicate aliases.
func NewRegistry(specs map[string]Spec) (*Registry, error) {
	r := &Registry{
		byID:    make(map[string]Definition, len(specs)),
		byAlias: make(map[string]string, len(specs)),
	}
	for id, spec := range specs {
		def, err := NewDefinition(id, spec)
		if err != nil {
			return nil, err
		}
		alias := strings.ToLower(def.Alias)
		if prev, dup := r.byAlias[alias]; dup {
			return nil, fmt.Errorf("channel %q: alias %q already used by channel %q", id, def.Alias, prev)
		}
		r.byID[def.ID] = def
		r.byAlias[alias] = def.ID
		r.ordered = append(r.ordered, def.ID)
	}
	sort.Strings(r.ordered)
	return r, nil
}

// ByID returns the definition for id.
func (r *Registry) ByID(id string) (Definition, bool) {
	def, ok := r.byID[id]
	return def, ok
}

// ByAlias resolves a quick-send alias (case-insensitive).
func (r *Registry) ByAlias(alias string) (Definition, bool) {
	id, ok := r.byAlias[strings.ToLower(strings.TrimSpace(alias))]
	if !ok {
		return Definition{}, false
	}
	return r.byID[id], true
}

// All returns every definition in stable id order.
func (r *Registry) All() []Definition {
	out := make([]Definition, 0, len(r.ordered))
	for _, id := range r.ordered {
		out = append(out, r.byID[id])
	}
	return out
}

// Len reports the number of definitions.
func (r *Registry) Len() int { return len(r.byID) }

// Provider hands out the current Registry and lets the config reload path
// swap in a new one atomically. Readers query fresh on each decision.
type Provider struct {
	v atomic.Pointer[Registry]
}

func NewProvider(r *Registry) *Provider {
	p := &Provider{}
	p.v.Store(r)
	return p
}

func (p *Provider) Current() *Registry { return p.v.Load() }

func (p *Provider) Swap(r *Registry) {
	if r != nil {
		p.v.Store(r)
	}
}
