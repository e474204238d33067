// Package metadata provides the type-indexed storage shared by every lowering
// call of a single compilation, and the entries stored in it.
package metadata

import (
	"reflect"
)

// Storage maps a Go type to at most one value of that type. A Storage belongs
// to one compilation and must not be used from more than one goroutine at a
// time.
type Storage struct {
	entries map[reflect.Type]any
}

func NewStorage() *Storage {
	return &Storage{entries: make(map[reflect.Type]any)}
}

func key[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Insert stores value under its type. It returns false and leaves the storage
// unchanged when an entry of the same type already exists.
func Insert[T any](s *Storage, value T) bool {
	k := key[T]()
	if _, exists := s.entries[k]; exists {
		return false
	}
	v := value
	s.entries[k] = &v
	return true
}

// Get returns a pointer to the stored entry so callers may update it in place.
func Get[T any](s *Storage) (*T, bool) {
	v, ok := s.entries[key[T]()]
	if !ok {
		return nil, false
	}
	return v.(*T), true
}

// GetOrInsert returns the existing entry of type T, creating it with init when
// absent.
func GetOrInsert[T any](s *Storage, init func() T) *T {
	if v, ok := Get[T](s); ok {
		return v
	}
	value := init()
	s.entries[key[T]()] = &value
	return &value
}

// Remove extracts the entry of type T from the storage.
func Remove[T any](s *Storage) (T, bool) {
	k := key[T]()
	v, ok := s.entries[k]
	if !ok {
		var zero T
		return zero, false
	}
	delete(s.entries, k)
	return *v.(*T), true
}

func (s *Storage) Len() int {
	return len(s.entries)
}
