// Package memory provides a process-local key-value backend with
// compare-and-swap semantics. It is used for tests and for demoing the HTTP API
// without an external store.
package memory

import (
	"context"
	"strconv"
	"sync"

	"kv-reconciler/core/reconcile"
	"kv-reconciler/core/registry"
)

// Name is the provider identifier.
const Name = "memory"

type entry struct {
	value    string
	revision int64
}

// Store is an in-memory reconcile.Backend. Tokens are monotonically increasing revisions.
type Store struct {
	mu       sync.RWMutex
	data     map[string]entry
	revision int64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{data: make(map[string]entry)}
}

// Provider returns a registry entry that always resolves to store,
// so every caller sees the same data regardless of host and port.
func Provider(store *Store) registry.Provider {
	return registry.Provider{
		Name:        Name,
		Description: "Process-local in-memory store",
		Factory: func(registry.Target) (reconcile.Backend, error) {
			return store, nil
		},
	}
}

// Read returns the stored value and its revision.
func (s *Store) Read(ctx context.Context, key string) (reconcile.ObservedState, error) {
	if err := ctx.Err(); err != nil {
		return reconcile.ObservedState{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[key]
	if !ok {
		return reconcile.Missing(), nil
	}
	return reconcile.Found(e.value, token(e.revision)), nil
}

// Write stores value if the current revision equals expected.
func (s *Store) Write(ctx context.Context, key, value string, expected reconcile.Token) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	switch {
	case expected == reconcile.CreateOnly && ok:
		return false, nil
	case expected != reconcile.CreateOnly && (!ok || token(e.revision) != expected):
		return false, nil
	}

	s.revision++
	s.data[key] = entry{value: value, revision: s.revision}
	return true, nil
}

// Remove deletes key if the current revision equals expected.
func (s *Store) Remove(ctx context.Context, key string, expected reconcile.Token) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	if !ok || token(e.revision) != expected {
		return false, nil
	}
	delete(s.data, key)
	return true, nil
}

// Get returns the stored value for key.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[key]
	return e.value, ok
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func token(rev int64) reconcile.Token {
	return reconcile.Token(strconv.FormatInt(rev, 10))
}
