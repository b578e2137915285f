// Package store defines the persistence interface for the garage engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
//
// Every operation commits its state changes through a single Apply call:
// the position upserts, the ledger snapshot, and the event record land
// together or not at all. There is no partially-applied state.
package store

import (
	"context"
	"errors"

	"github.com/speedway/garage-engine/internal/model"
)

// ErrNotFound is returned when a record does not exist for a derived key.
var ErrNotFound = errors.New("store: record not found")

// Mutation is the atomic write set of one operation: up to two position
// upserts (owner, and the referrer on first deposits), the new ledger
// snapshot, and the emitted event.
type Mutation struct {
	Positions []model.Position
	Ledger    *model.Ledger
	Event     *model.Event
}

// Store is the persistence interface. Reads return copies; the ledger read
// on a fresh store returns the zero ledger (bootstrap state).
type Store interface {
	// GetPosition retrieves a position by its owner's derived garage key.
	GetPosition(ctx context.Context, owner model.Identity) (*model.Position, error)

	// GetLedger retrieves the singleton ledger.
	GetLedger(ctx context.Context) (*model.Ledger, error)

	// Apply commits one operation's write set atomically.
	Apply(ctx context.Context, mut *Mutation) error

	// GetEventsByAuthority returns a user's event history, oldest first.
	// Used only by off-system observers; the engine never reads these.
	GetEventsByAuthority(ctx context.Context, authority model.Identity) ([]model.Event, error)
}
