package registry

import (
	"context"
	"sort"
	"sync"
)

// Store persists connection records keyed by normalized email. Records are
// never deleted.
type Store interface {
	// Get returns ErrNotFound when no record exists.
	Get(ctx context.Context, email string) (*Record, error)
	Put(ctx context.Context, rec *Record) error
	List(ctx context.Context) ([]*Record, error)
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, email string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[email]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, rec *Record) error {
	if rec == nil || rec.UserEmail == "" {
		return ErrInvalidEmail
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.UserEmail] = rec.Clone()
	return nil
}

// List implements Store. Records are ordered by email.
func (s *MemoryStore) List(_ context.Context) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserEmail < out[j].UserEmail })
	return out, nil
}
