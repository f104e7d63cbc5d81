// Package prefs persists small device-local preferences behind a typed
// key/value interface so the storage backend can change without touching
// the code that reads them.
package prefs

import (
	"fmt"
	"sync"

	"github.com/terraconstructs/estate/internal/roles"
)

// Store is a string key/value store local to the device.
type Store interface {
	// Get returns the stored value and whether it was present.
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// Key binds a storage key to a value type and its string codec.
type Key[T any] struct {
	Name   string
	Encode func(T) string
	Decode func(string) (T, error)
}

// Get reads and decodes k. A missing key yields the zero value and false.
func Get[T any](s Store, k Key[T]) (T, bool, error) {
	var zero T
	raw, ok, err := s.Get(k.Name)
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := k.Decode(raw)
	if err != nil {
		return zero, false, fmt.Errorf("decode %s: %w", k.Name, err)
	}
	return v, true, nil
}

// Set encodes v and writes it under k.
func Set[T any](s Store, k Key[T], v T) error {
	return s.Set(k.Name, k.Encode(v))
}

// ActiveRole is the role the user last chose to wear on this device.
var ActiveRole = Key[roles.Role]{
	Name:   "active_role",
	Encode: roles.Role.String,
	Decode: roles.Parse,
}

// MemoryStore keeps preferences in process memory. Useful for tests and
// ephemeral clients.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
