package store

import (
	"context"
	"sync"

	"github.com/speedway/garage-engine/internal/keys"
	"github.com/speedway/garage-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. Not suitable for production (no persistence). Apply holds
// one lock for the whole write set, so a mutation is observed whole or not
// at all.
type MemoryStore struct {
	mu        sync.RWMutex
	positions map[string]*model.Position // derived garage key → record
	ledger    model.Ledger
	events    []model.Event
}

// NewMemoryStore creates a new in-memory store with a zero ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{positions: make(map[string]*model.Position)}
}

func (s *MemoryStore) GetPosition(_ context.Context, owner model.Identity) (*model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.positions[keys.Garage(owner)]
	if !ok {
		return nil, ErrNotFound
	}
	if err := keys.ValidateOwnership(p, owner); err != nil {
		return nil, err
	}
	copy := *p
	return &copy, nil
}

func (s *MemoryStore) GetLedger(_ context.Context) (*model.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copy := s.ledger
	return &copy, nil
}

func (s *MemoryStore) Apply(_ context.Context, mut *Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range mut.Positions {
		p := mut.Positions[i]
		s.positions[keys.Garage(p.Owner)] = &p
	}
	if mut.Ledger != nil {
		s.ledger = *mut.Ledger
	}
	if mut.Event != nil {
		s.events = append(s.events, *mut.Event)
	}
	return nil
}

func (s *MemoryStore) GetEventsByAuthority(_ context.Context, authority model.Identity) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Event
	for _, e := range s.events {
		if e.Authority == authority {
			result = append(result, e)
		}
	}
	return result, nil
}
