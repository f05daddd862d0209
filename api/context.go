// File: api/context.go
// Package api
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-session attribute bag. Keys are opaque and compared with ==,
// values are arbitrary. Key[T] restores static typing on top of it.

package api

// AttributeMap is a thread-safe key/value store owned by a session.
type AttributeMap interface {
	// Get fetches a value, returning (value, exists).
	Get(key any) (any, bool)
	// Set stores value and returns the previous value, if any.
	Set(key, value any) (any, bool)
	// SetIfAbsent stores value only when key is missing. It returns the
	// value now associated with key and whether it was already present.
	SetIfAbsent(key, value any) (any, bool)
	// Remove deletes key and returns the removed value, if any.
	Remove(key any) (any, bool)
	// Contains reports whether key is present.
	Contains(key any) bool
	// Keys returns all present keys in no particular order.
	Keys() []any
	// Len returns the number of stored attributes.
	Len() int
}

// Key is a typed attribute key. Identity is the pointer, so two keys
// created with the same name never collide.
type Key[T any] struct {
	name string
}

// NewKey creates a new typed attribute key.
func NewKey[T any](name string) *Key[T] {
	return &Key[T]{name: name}
}

// String returns the diagnostic name of the key.
func (k *Key[T]) String() string {
	return k.name
}

// Get returns the typed value stored under k.
func (k *Key[T]) Get(m AttributeMap) (T, bool) {
	return k.cast(m.Get(k))
}

// Set stores v under k and returns the previous typed value.
func (k *Key[T]) Set(m AttributeMap, v T) (T, bool) {
	return k.cast(m.Set(k, v))
}

// SetIfAbsent stores v unless k is already present and returns the value
// that ends up associated with k.
func (k *Key[T]) SetIfAbsent(m AttributeMap, v T) (T, bool) {
	cur, loaded := m.SetIfAbsent(k, v)
	t, _ := cur.(T)
	return t, loaded
}

// Remove deletes k and returns the removed typed value.
func (k *Key[T]) Remove(m AttributeMap) (T, bool) {
	return k.cast(m.Remove(k))
}

func (k *Key[T]) cast(v any, ok bool) (T, bool) {
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
