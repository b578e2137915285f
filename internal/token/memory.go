package token

import (
	"context"
	"fmt"
	"sync"

	"github.com/speedway/garage-engine/internal/fuel"
	"github.com/speedway/garage-engine/internal/model"
)

// MemorySource implements RewardsSource with an in-memory map. Used for
// development and tests; production wires the mining game's store here.
type MemorySource struct {
	mu       sync.Mutex
	balances map[model.Identity]RewardsBalance
}

// NewMemorySource creates an empty in-memory rewards source.
func NewMemorySource() *MemorySource {
	return &MemorySource{balances: make(map[model.Identity]RewardsBalance)}
}

// Credit adds unclaimed rewards for an owner (test/dev seeding).
func (s *MemorySource) Credit(owner model.Identity, raw, refined uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.balances[owner]
	b.Raw += raw
	b.Refined += refined
	s.balances[owner] = b
}

func (s *MemorySource) Balance(_ context.Context, owner model.Identity) (RewardsBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[owner], nil
}

func (s *MemorySource) Drain(_ context.Context, owner model.Identity) (RewardsBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.balances[owner]
	delete(s.balances, owner)
	return b, nil
}

// MemoryMover implements Mover over in-memory wallet balances. Tracks the
// cumulative burned and minted supply for assertions.
type MemoryMover struct {
	mu       sync.Mutex
	balances map[model.Identity]uint64
	burned   uint64
	minted   uint64
}

// NewMemoryMover creates an empty in-memory token mover.
func NewMemoryMover() *MemoryMover {
	return &MemoryMover{balances: make(map[model.Identity]uint64)}
}

// Fund seeds a wallet balance (test/dev).
func (m *MemoryMover) Fund(owner model.Identity, amount uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[owner] += amount
}

// BalanceOf returns a wallet balance.
func (m *MemoryMover) BalanceOf(owner model.Identity) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[owner]
}

func (m *MemoryMover) Balance(_ context.Context, owner model.Identity) (uint64, error) {
	return m.BalanceOf(owner), nil
}

// Burned returns the cumulative amount removed from circulation.
func (m *MemoryMover) Burned() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.burned
}

// Minted returns the cumulative amount created.
func (m *MemoryMover) Minted() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.minted
}

func (m *MemoryMover) Burn(_ context.Context, from model.Identity, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[from] < amount {
		return fmt.Errorf("token: insufficient funds in %s", from)
	}
	m.balances[from] -= amount
	m.burned += amount
	return nil
}

func (m *MemoryMover) Mint(_ context.Context, to model.Identity, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, err := fuel.Add(m.balances[to], amount)
	if err != nil {
		return err
	}
	m.balances[to] = v
	m.minted += amount
	return nil
}

func (m *MemoryMover) Transfer(_ context.Context, from, to model.Identity, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[from] < amount {
		return fmt.Errorf("token: insufficient funds in %s", from)
	}
	v, err := fuel.Add(m.balances[to], amount)
	if err != nil {
		return err
	}
	m.balances[from] -= amount
	m.balances[to] = v
	return nil
}
