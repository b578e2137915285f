// Package model defines the core domain types shared across the garage
// engine. All monetary values are uint64 drops (indivisible FUEL units) —
// never float64 for money.
package model

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/speedway/garage-engine/internal/fuel"
)

// IdentitySize is the byte length of an account identity.
const IdentitySize = 32

// Identity is a 32-byte account identity, hex-encoded (64 lowercase hex
// characters). Callers are authenticated upstream; the engine only checks
// that records match the identity they were derived for.
type Identity string

// HouseIdentity is the all-zero identity used when a deposit carries no
// distinct referrer payout.
const HouseIdentity Identity = "0000000000000000000000000000000000000000000000000000000000000000"

// ErrInvalidIdentity is returned when an identity is not 64 hex characters.
var ErrInvalidIdentity = errors.New("model: identity must be 64 lowercase hex characters")

// ParseIdentity validates and normalizes a hex identity string.
func ParseIdentity(s string) (Identity, error) {
	if len(s) != IdentitySize*2 {
		return "", fmt.Errorf("%w: got %d characters", ErrInvalidIdentity, len(s))
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidIdentity, s)
	}
	return Identity(hex.EncodeToString(raw)), nil
}

// Bytes returns the decoded 32-byte form of the identity.
func (id Identity) Bytes() ([IdentitySize]byte, error) {
	var out [IdentitySize]byte
	raw, err := hex.DecodeString(string(id))
	if err != nil || len(raw) != IdentitySize {
		return out, fmt.Errorf("%w: %s", ErrInvalidIdentity, id)
	}
	copy(out[:], raw)
	return out, nil
}

// IsHouse reports whether the identity is the house (all-zero) identity.
func (id Identity) IsHouse() bool {
	return id == HouseIdentity
}

// Position is a user's faucet record in the Garage yield system. One per
// owner, created on first deposit, never deleted.
type Position struct {
	Owner    Identity `json:"owner" db:"owner"`
	Referrer Identity `json:"referrer" db:"referrer"` // set at creation, immutable

	// TotalDeposited is the cumulative principal ever credited: net
	// deposits, net compounds, stash-ins, and referral credits. Never
	// decreases; principal itself is never withdrawable.
	TotalDeposited uint64 `json:"total_deposited" db:"total_deposited"`

	// TotalClaimed is the cumulative amount paid out or compounded.
	// Never decreases. TotalClaimed == MaxPayout means exhausted.
	TotalClaimed uint64 `json:"total_claimed" db:"total_claimed"`

	// MaxPayout is floor(TotalDeposited * 365 / 100), recomputed after
	// every change to TotalDeposited.
	MaxPayout uint64 `json:"max_payout" db:"max_payout"`

	// LastActionAt is the unix timestamp of the last operation that
	// consumed accrued yield.
	LastActionAt int64 `json:"last_action_at" db:"last_action_at"`

	CreatedAt int64 `json:"created_at" db:"created_at"`

	// DirectReferrals and LifetimeRefEarnings are mutated only by other
	// users' deposits, never by the owner's own operations.
	DirectReferrals     uint32 `json:"direct_referrals" db:"direct_referrals"`
	LifetimeRefEarnings uint64 `json:"lifetime_ref_earnings" db:"lifetime_ref_earnings"`
}

// Ledger is the singleton shared aggregate mutated by every operation.
// Mutations go through the checked credit/debit methods below, never by
// assigning fields directly.
type Ledger struct {
	// PoolBalance funds withdrawals before the mint fallback is used.
	PoolBalance uint64 `json:"pool_balance" db:"pool_balance"`

	// TotalLockedValue is the sum of value counted toward the whale-tax
	// denominator across all positions.
	TotalLockedValue uint64 `json:"total_locked_value" db:"total_locked_value"`
}

// CreditPool adds amount to the pool balance.
func (l *Ledger) CreditPool(amount uint64) error {
	v, err := fuel.Add(l.PoolBalance, amount)
	if err != nil {
		return fmt.Errorf("credit pool: %w", err)
	}
	l.PoolBalance = v
	return nil
}

// DebitPool removes up to amount from the pool and returns how much was
// actually drawn. The shortfall, if any, is the caller's to mint.
func (l *Ledger) DebitPool(amount uint64) uint64 {
	drawn := amount
	if l.PoolBalance < amount {
		drawn = l.PoolBalance
	}
	l.PoolBalance -= drawn
	return drawn
}

// CreditLockedValue adds amount to the whale-tax denominator.
func (l *Ledger) CreditLockedValue(amount uint64) error {
	v, err := fuel.Add(l.TotalLockedValue, amount)
	if err != nil {
		return fmt.Errorf("credit locked value: %w", err)
	}
	l.TotalLockedValue = v
	return nil
}

// Operation kinds, used as event discriminators.
const (
	OpDeposit       = "deposit"
	OpCompound      = "compound"
	OpWithdraw      = "withdraw"
	OpStashIn       = "stash_in"
	OpClaimToWallet = "claim_to_wallet"
)

// Event is an immutable record of one completed operation. Once written
// these are never modified or deleted; the engine never reads them back.
type Event struct {
	ID        string   `json:"id" db:"id"`
	Op        string   `json:"op" db:"op"`
	Authority Identity `json:"authority" db:"authority"`
	Referrer  Identity `json:"referrer,omitempty" db:"referrer"`

	GrossAmount uint64 `json:"gross_amount" db:"gross_amount"`
	NetAmount   uint64 `json:"net_amount" db:"net_amount"`

	// Per-component tax amounts; unused components stay zero.
	BurnAmount   uint64 `json:"burn_amount" db:"burn_amount"`
	PoolFee      uint64 `json:"pool_fee" db:"pool_fee"`
	RefFee       uint64 `json:"ref_fee" db:"ref_fee"`
	TeamFee      uint64 `json:"team_fee" db:"team_fee"`
	WhaleTax     uint64 `json:"whale_tax" db:"whale_tax"`
	WhaleTaxTeam uint64 `json:"whale_tax_team" db:"whale_tax_team"`
	WhaleTaxPool uint64 `json:"whale_tax_pool" db:"whale_tax_pool"`

	// Resulting cumulative totals on the authority's position. Zero for
	// ClaimToWallet, which bypasses the position.
	NewTotalDeposited uint64 `json:"new_total_deposited" db:"new_total_deposited"`
	NewTotalClaimed   uint64 `json:"new_total_claimed" db:"new_total_claimed"`
	NewMaxPayout      uint64 `json:"new_max_payout" db:"new_max_payout"`
	Exhausted         bool   `json:"exhausted" db:"exhausted"`

	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}
