// File: filterchain/builder.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Builder holds the filter template a service applies to every session
// it creates.

package filterchain

import (
	"sync"

	"github.com/momentics/hioload-mina/api"
)

// Builder is an ordered, named filter list. Filter instances are shared
// by every chain built from it.
type Builder struct {
	mu      sync.RWMutex
	entries []*entry
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) AddFirst(name string, f api.Filter) error { return b.insert(name, f, first) }
func (b *Builder) AddLast(name string, f api.Filter) error  { return b.insert(name, f, last) }

func (b *Builder) AddBefore(base, name string, f api.Filter) error {
	return b.insert(name, f, before(base))
}

func (b *Builder) AddAfter(base, name string, f api.Filter) error {
	return b.insert(name, f, after(base))
}

func (b *Builder) insert(name string, f api.Filter, pos position) error {
	if err := validate(name, f); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if indexOf(b.entries, name) >= 0 {
		return duplicate(name)
	}
	i, err := pos(b.entries)
	if err != nil {
		return err
	}
	b.entries = insertAt(b.entries, i, &entry{name: name, filter: f})
	return nil
}

// Remove deletes name from the template.
func (b *Builder) Remove(name string) (api.Filter, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := indexOf(b.entries, name)
	if i < 0 {
		return nil, notFound(name)
	}
	f := b.entries[i].filter
	b.entries = removeAt(b.entries, i)
	return f, nil
}

// Replace swaps the filter registered under name.
func (b *Builder) Replace(name string, f api.Filter) (api.Filter, error) {
	if err := validate(name, f); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	i := indexOf(b.entries, name)
	if i < 0 {
		return nil, notFound(name)
	}
	old := b.entries[i].filter
	b.entries = replaceAt(b.entries, i, &entry{name: name, filter: f})
	return old, nil
}

// Clear empties the template.
func (b *Builder) Clear() {
	b.mu.Lock()
	b.entries = nil
	b.mu.Unlock()
}

func (b *Builder) Get(name string) api.Filter {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if i := indexOf(b.entries, name); i >= 0 {
		return b.entries[i].filter
	}
	return nil
}

func (b *Builder) Contains(name string) bool {
	return b.Get(name) != nil
}

func (b *Builder) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return names(b.entries)
}

// BuildChain appends the template to chain, stopping at the first error.
func (b *Builder) BuildChain(chain api.FilterChain) error {
	b.mu.RLock()
	es := b.entries
	b.mu.RUnlock()
	for _, e := range es {
		if err := chain.AddLast(e.name, e.filter); err != nil {
			return err
		}
	}
	return nil
}
