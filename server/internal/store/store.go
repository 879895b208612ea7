package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/obsidianstack/licensewatch/pkg/types"
)

// Entry is an instance state together with the time it was last replaced.
type Entry struct {
	InstanceID string              `json:"instanceId"`
	State      types.InstanceState `json:"state"`
	UpdatedAt  time.Time           `json:"updatedAt"`
}

// Backend persists entries. Implementations must be safe for concurrent use.
type Backend interface {
	Load(ctx context.Context) ([]Entry, error)
	Save(ctx context.Context, e Entry) error
	Close() error
}

// Store is a thread-safe in-memory instance state store.
type Store struct {
	mu      sync.RWMutex
	data    map[string]*Entry
	backend Backend
	now     func() time.Time // injectable for deterministic tests
}

// New creates a Store. backend may be nil for memory-only operation.
func New(backend Backend) *Store {
	return &Store{
		data:    make(map[string]*Entry),
		backend: backend,
		now:     time.Now,
	}
}

// Restore loads persisted entries from the backend, replacing anything held
// in memory. It is a no-op without a backend.
func (s *Store) Restore(ctx context.Context) error {
	if s.backend == nil {
		return nil
	}
	entries, err := s.backend.Load(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]*Entry, len(entries))
	for i := range entries {
		e := entries[i]
		s.data[e.InstanceID] = &e
	}
	slog.Info("store: restored instance state", "count", len(entries))
	return nil
}

// Get returns the state of an instance and whether one was found.
func (s *Store) Get(instanceID string) (types.InstanceState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[instanceID]
	if !ok {
		return types.InstanceState{}, false
	}
	return e.State, true
}

// Replace swaps the whole state of an instance and writes it through to the
// backend. A backend failure is logged; the in-memory state still changes.
func (s *Store) Replace(instanceID string, st types.InstanceState) {
	s.mu.Lock()
	e := Entry{InstanceID: instanceID, State: st, UpdatedAt: s.now()}
	s.data[instanceID] = &e
	backend := s.backend
	s.mu.Unlock()

	if backend == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := backend.Save(ctx, e); err != nil {
		slog.Error("store: persist instance state failed", "instance", instanceID, "err", err)
	}
}

// List returns every entry ordered by instance id.
func (s *Store) List() []Entry {
	s.mu.RLock()
	out := make([]Entry, 0, len(s.data))
	for _, e := range s.data {
		out = append(out, *e)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].InstanceID < out[j].InstanceID })
	return out
}

// Count returns the number of instances held.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// FiringCount returns the number of instances with at least one firing cluster.
func (s *Store) FiringCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.data {
		if e.State.Firing() {
			n++
		}
	}
	return n
}

// Detach closes the backend and keeps the store memory-only from then on.
// Restored state stays; later replaces are never persisted.
func (s *Store) Detach() error {
	s.mu.Lock()
	backend := s.backend
	s.backend = nil
	s.mu.Unlock()

	if backend == nil {
		return nil
	}
	return backend.Close()
}

// Close releases the backend, if any.
func (s *Store) Close() error {
	s.mu.Lock()
	backend := s.backend
	s.mu.Unlock()

	if backend == nil {
		return nil
	}
	return backend.Close()
}
