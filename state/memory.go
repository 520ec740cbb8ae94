package state

import (
	"net/netip"
	"sync"
	"time"

	"github.com/dyndnsd/dyndnsd/record"
)

// MemoryStore implements [Store] in process memory.
// It backs stateless operation and tests; nothing survives a restart.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]PublishedState
}

// NewMemoryStore creates an empty [*MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]PublishedState)}
}

var _ Store = (*MemoryStore)(nil)

// Load implements [Store.Load].
func (s *MemoryStore) Load(rec record.Record) (PublishedState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[rec.Key()], nil
}

// Commit implements [Store.Commit].
func (s *MemoryStore) Commit(rec record.Record, addr netip.Addr, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[rec.Key()] = PublishedState{Addr: addr, UpdatedAt: at}
	return nil
}

// Close implements [Store.Close].
func (s *MemoryStore) Close() error {
	return nil
}
