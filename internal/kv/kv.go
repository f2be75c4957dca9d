// Package kv provides per-conversation durable key-value storage.
//
// Every conversation owns an isolated namespace of string keys. The store
// supports get/put/delete, ordered prefix listing, and wholesale namespace
// deletion — the full surface the conversation actor needs.
package kv

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("key not found")

// Pair is a key with its stored value, as returned by List.
type Pair struct {
	Key   string
	Value []byte
}

// Store is the interface for conversation storage backends.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, namespace, key string) ([]byte, error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, namespace, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, namespace, key string) error

	// List returns all pairs whose key starts with prefix, ordered by key.
	// An empty prefix lists the whole namespace.
	List(ctx context.Context, namespace, prefix string) ([]Pair, error)

	// DeleteAll removes every key in the namespace.
	DeleteAll(ctx context.Context, namespace string) error

	// Close releases backend resources.
	Close() error
}

// MemoryStore is a mutex-guarded in-memory Store. It backs tests and
// serves as a fallback when no data directory is configured.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte // namespace -> key -> value
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string][]byte)}
}

// Get returns the value stored under key, or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, namespace, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ns, ok := s.data[namespace]
	if !ok {
		return nil, ErrNotFound
	}
	v, ok := ns[key]
	if !ok {
		return nil, ErrNotFound
	}

	// Return a copy so callers cannot mutate stored state.
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Put stores value under key, replacing any previous value.
func (s *MemoryStore) Put(_ context.Context, namespace, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.data[namespace]
	if !ok {
		ns = make(map[string][]byte)
		s.data[namespace] = ns
	}
	v := make([]byte, len(value))
	copy(v, value)
	ns[key] = v
	return nil
}

// Delete removes key from the namespace.
func (s *MemoryStore) Delete(_ context.Context, namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ns, ok := s.data[namespace]; ok {
		delete(ns, key)
	}
	return nil
}

// List returns all pairs whose key starts with prefix, ordered by key.
func (s *MemoryStore) List(_ context.Context, namespace, prefix string) ([]Pair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ns := s.data[namespace]
	pairs := make([]Pair, 0, len(ns))
	for k, v := range ns {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		out := make([]byte, len(v))
		copy(out, v)
		pairs = append(pairs, Pair{Key: k, Value: out})
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key < pairs[j].Key })
	return pairs, nil
}

// DeleteAll removes every key in the namespace.
func (s *MemoryStore) DeleteAll(_ context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, namespace)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
