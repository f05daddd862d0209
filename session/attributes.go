// File: session/attributes.go
// Package session
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Thread-safe attribute store for sessions.

package session

import (
	"sync"

	"github.com/momentics/hioload-mina/api"
)

// attributeMap is the api.AttributeMap owned by a Session. After release
// it behaves as an empty map that ignores writes.
type attributeMap struct {
	mu       sync.RWMutex
	store    map[any]any
	released bool
}

var _ api.AttributeMap = (*attributeMap)(nil)

// NewAttributeMap creates an empty, thread-safe attribute store.
func NewAttributeMap() api.AttributeMap {
	return newAttributeMap()
}

func newAttributeMap() *attributeMap {
	return &attributeMap{
		store: make(map[any]any),
	}
}

// Get fetches a value, returning (value, exists).
func (a *attributeMap) Get(key any) (any, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.store[key]
	return v, ok
}

// Set stores a key-value pair and returns the previous value.
func (a *attributeMap) Set(key, value any) (any, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return nil, false
	}
	prev, ok := a.store[key]
	a.store[key] = value
	return prev, ok
}

// SetIfAbsent stores value only if key is missing.
func (a *attributeMap) SetIfAbsent(key, value any) (any, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if cur, ok := a.store[key]; ok {
		return cur, true
	}
	if a.released {
		return value, false
	}
	a.store[key] = value
	return value, false
}

// Remove deletes a key and returns what was stored.
func (a *attributeMap) Remove(key any) (any, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	prev, ok := a.store[key]
	delete(a.store, key)
	return prev, ok
}

// Contains reports whether key is present.
func (a *attributeMap) Contains(key any) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.store[key]
	return ok
}

// Keys returns all present keys.
func (a *attributeMap) Keys() []any {
	a.mu.RLock()
	defer a.mu.RUnlock()

	keys := make([]any, 0, len(a.store))
	for k := range a.store {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of entries.
func (a *attributeMap) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.store)
}

// release drops every entry and rejects later writes.
func (a *attributeMap) release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.released = true
	a.store = make(map[any]any)
}
