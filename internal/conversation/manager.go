package conversation

import (
	"sync"
	"time"

	"github.com/wayfarer-ai/wayfarer/internal/kv"
)

// Manager hands out conversation actors backed by a shared store. It
// keeps one mutex per conversation id so at most one operation is in
// flight per conversation, while different conversations run fully in
// parallel.
type Manager struct {
	store kv.Store
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a manager over store.
func NewManager(store kv.Store) *Manager {
	return &Manager{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		locks: make(map[string]*sync.Mutex),
	}
}

// SetClock overrides the time source, for tests.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

// Actor returns the actor for id. Actors for the same id share one
// mutex, so their operations serialize regardless of which Actor value
// the caller holds.
func (m *Manager) Actor(id string) *Actor {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[id] = lock
	}
	return &Actor{id: id, store: m.store, mu: lock, now: m.now}
}

// Forget drops the per-id mutex after a conversation is deleted. Safe to
// call for ids that were never seen.
func (m *Manager) Forget(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, id)
}
