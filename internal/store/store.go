// Package store provides the key-value settings store controllers persist
// their alert preferences into.
package store

import (
	"sort"

	"github.com/cornelk/hashmap"
)

// KeyValueStore is a string-keyed settings store. Implementations must be
// safe for concurrent use; controllers for different peripherals write
// disjoint keys.
type KeyValueStore interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool, error)
	// Set stores value under key, durably for persistent stores.
	Set(key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
	// Keys returns all keys in sorted order.
	Keys() ([]string, error)
}

// MemoryStore is a process-local KeyValueStore.
type MemoryStore struct {
	values *hashmap.Map[string, string]
}

var _ KeyValueStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: hashmap.New[string, string]()}
}

func (s *MemoryStore) Get(key string) (string, bool, error) {
	v, ok := s.values.Get(key)
	return v, ok, nil
}

func (s *MemoryStore) Set(key, value string) error {
	s.values.Set(key, value)
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.values.Del(key)
	return nil
}

func (s *MemoryStore) Keys() ([]string, error) {
	keys := make([]string, 0, s.values.Len())
	s.values.Range(func(k, _ string) bool {
		keys = append(keys, k)
		return true
	})
	sort.Strings(keys)
	return keys, nil
}
