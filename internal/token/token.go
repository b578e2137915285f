// Package token exposes the external token subsystem to the garage engine
// as two narrow interfaces: the per-user unclaimed-rewards source owned by
// the mining game, and the mint/burn/transfer primitive. The engine never
// talks to the real token program directly; these are its only seams.
package token

import (
	"context"

	"github.com/speedway/garage-engine/internal/model"
)

// RewardsBalance is a user's unclaimed rewards in the external source,
// split into its two sub-components.
type RewardsBalance struct {
	Raw     uint64 `json:"raw"`
	Refined uint64 `json:"refined"`
}

// Total returns raw + refined. The components are externally bounded well
// below overflow, but callers re-check with fuel.Add before spending.
func (b RewardsBalance) Total() uint64 {
	return b.Raw + b.Refined
}

// RewardsSource is the opaque per-user unclaimed-rewards balance. Drain
// zeroes the balance and returns what was held; read and drain of the same
// user are serialized by the calling operation.
type RewardsSource interface {
	Balance(ctx context.Context, owner model.Identity) (RewardsBalance, error)
	Drain(ctx context.Context, owner model.Identity) (RewardsBalance, error)
}

// Mover is the atomic token movement primitive keyed by
// (source, destination, amount). Burn removes from circulation; Mint
// creates against the treasury authority. Balance reads a wallet's actual
// token holdings, which can lag the ledger's bookkeeping.
type Mover interface {
	Balance(ctx context.Context, owner model.Identity) (uint64, error)
	Burn(ctx context.Context, from model.Identity, amount uint64) error
	Mint(ctx context.Context, to model.Identity, amount uint64) error
	Transfer(ctx context.Context, from, to model.Identity, amount uint64) error
}
