// Package resource provides the string-keyed registry scenes use to keep
// named resources (images, sounds, lookup tables) alive across reloads.
package resource

import (
	"reflect"
	"sort"
)

// DefaultCapacity is the initial capacity used when New is given zero.
const DefaultCapacity = 16

// Table maps string keys to values of type V.
//
// Insert has upsert semantics: inserting an existing key replaces its value.
// When a destructor is configured it is called for every value that leaves
// the table, whether overwritten, removed or cleared. Re-inserting the value
// already stored under a key is a no-op.
//
// The zero Table is empty and ready to use, without a destructor.
// Table is not safe for concurrent use; it is owned by the frame thread.
type Table[V any] struct {
	entries map[string]V
	destroy func(V)
}

// New creates a table with room for capacity entries and an optional
// destructor.
func New[V any](capacity int, destroy func(V)) *Table[V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Table[V]{
		entries: make(map[string]V, capacity),
		destroy: destroy,
	}
}

// Insert stores value under key, destroying the previous value if the key
// already existed. It reports false only for the empty key.
func (t *Table[V]) Insert(key string, value V) bool {
	if key == "" {
		return false
	}
	if t.entries == nil {
		t.entries = make(map[string]V, DefaultCapacity)
	}
	if old, ok := t.entries[key]; ok {
		if same(old, value) {
			return true
		}
		if t.destroy != nil {
			t.destroy(old)
		}
	}
	t.entries[key] = value
	return true
}

// same reports whether a and b are the identical value. Values whose dynamic
// type is not comparable are never the same.
func same[V any](a, b V) bool {
	va, vb := reflect.ValueOf(any(a)), reflect.ValueOf(any(b))
	if !va.IsValid() || !vb.IsValid() {
		return va.IsValid() == vb.IsValid()
	}
	if va.Type() != vb.Type() || !va.Comparable() {
		return false
	}
	return va.Equal(vb)
}

// Get returns the value stored under key.
func (t *Table[V]) Get(key string) (V, bool) {
	v, ok := t.entries[key]
	return v, ok
}

// Remove deletes key, destroying its value. It reports whether the key was
// present.
func (t *Table[V]) Remove(key string) bool {
	v, ok := t.entries[key]
	if !ok {
		return false
	}
	delete(t.entries, key)
	if t.destroy != nil {
		t.destroy(v)
	}
	return true
}

// Clear removes every entry, destroying each value.
func (t *Table[V]) Clear() {
	if t.destroy != nil {
		for _, v := range t.entries {
			t.destroy(v)
		}
	}
	clear(t.entries)
}

// Len returns the number of entries.
func (t *Table[V]) Len() int {
	return len(t.entries)
}

// Keys returns the keys in sorted order.
func (t *Table[V]) Keys() []string {
	keys := make([]string, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
