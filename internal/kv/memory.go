// ABOUTME: In-memory implementation of the Store interface
// ABOUTME: Used by tests and the "memory" driver; can inject write failures

package kv

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is a map-backed Store. The zero value is not usable; call NewMemoryStore.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string]string

	// SetErr, when non-nil, is returned by Set and Remove instead of writing.
	SetErr error
	// GetErr, when non-nil, is returned by Get.
	GetErr error

	sets int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, namespace, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.GetErr != nil {
		return "", m.GetErr
	}
	v, ok := m.data[namespace][key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryStore) Set(_ context.Context, namespace, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SetErr != nil {
		return m.SetErr
	}
	ns, ok := m.data[namespace]
	if !ok {
		ns = make(map[string]string)
		m.data[namespace] = ns
	}
	ns[key] = value
	m.sets++
	return nil
}

func (m *MemoryStore) Remove(_ context.Context, namespace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SetErr != nil {
		return m.SetErr
	}
	delete(m.data[namespace], key)
	return nil
}

func (m *MemoryStore) Keys(_ context.Context, namespace string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data[namespace]))
	for k := range m.data[namespace] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

// SetCount returns how many successful Set calls have been made.
func (m *MemoryStore) SetCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sets
}

// Fail makes subsequent writes return err (nil restores normal behavior).
func (m *MemoryStore) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetErr = err
}
