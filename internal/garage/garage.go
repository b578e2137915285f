// Package garage implements the pure accrual engine for Garage positions.
//
// Yield is linear, not compounding: a position earns 1.5% of its
// total_deposited per whole elapsed day, capped at a lifetime payout of 365%
// of total_deposited. Principal only grows through explicit operations, so
// repeatedly settling without growing it yields no extra return; yield
// compounds only when the owner deliberately reinvests it.
//
// The package is stateless — position fields are passed in, arithmetic is
// overflow-checked, and truncation boundaries are part of the contract:
// partial days are discarded and never recovered.
package garage

import (
	"errors"
	"time"

	"github.com/speedway/garage-engine/internal/fuel"
	"github.com/speedway/garage-engine/internal/model"
)

const (
	// OneDay is the accrual granularity, in seconds.
	OneDay int64 = 86_400

	// DailyRateBps is the daily yield rate (1.5% per day).
	DailyRateBps uint64 = 150

	// MaxPayoutMult caps lifetime payout at 365% of total_deposited.
	MaxPayoutMult uint64 = 365

	// MinDeposit is the minimum deposit amount (10 FUEL in drops).
	MinDeposit uint64 = 10 * fuel.OneFuel
)

// Domain error taxonomy. Every error aborts its operation atomically;
// nothing is partially applied and nothing is retried.
var (
	ErrDepositBelowMinimum = errors.New("garage: deposit below minimum (10 FUEL)")
	ErrNotAuthorized       = errors.New("garage: not authorized")
	ErrInvalidReferrer     = errors.New("garage: invalid referrer (cannot self-refer)")
	ErrReferrerNoGarage    = errors.New("garage: referrer has no garage position")
	ErrExhausted           = errors.New("garage: position is exhausted (max payout reached)")
	ErrNoRewards           = errors.New("garage: no rewards available")
	ErrInsufficientPool    = errors.New("garage: insufficient pool balance")
	ErrGarageRequired      = errors.New("garage: position required (deposit first)")
)

// IsExhausted reports whether the position has reached its max payout.
// No further yield is ever payable without added principal.
func IsExhausted(p *model.Position) bool {
	return p.TotalClaimed >= p.MaxPayout
}

// Available returns the yield claimable at now.
//
// elapsed is truncated to whole days: settling twice within 24h of each
// other produces zero incremental yield between the two calls. The result
// is capped at the remaining payout (max_payout - total_claimed); that cap
// is the only place saturation is permitted.
func Available(p *model.Position, now time.Time) (uint64, error) {
	if IsExhausted(p) {
		return 0, nil
	}

	elapsed := now.Unix() - p.LastActionAt
	if elapsed < 0 {
		elapsed = 0
	}
	days := uint64(elapsed / OneDay)

	// deposited*days*150 can exceed 64 bits long before the payable amount
	// does; the 128-bit intermediate keeps the quotient exact.
	factor, err := fuel.Mul(days, DailyRateBps)
	if err != nil {
		return 0, err
	}
	accrued, err := fuel.MulDiv(p.TotalDeposited, factor, fuel.DenominatorBps)
	if err != nil {
		return 0, err
	}

	remaining := p.MaxPayout - p.TotalClaimed
	if accrued > remaining {
		accrued = remaining
	}
	return accrued, nil
}

// UpdateMaxPayout recomputes max_payout = floor(total_deposited * 365 / 100).
// Must be called after every change to TotalDeposited. Fails only when the
// cap itself exceeds uint64.
func UpdateMaxPayout(p *model.Position) error {
	v, err := fuel.MulDiv(p.TotalDeposited, MaxPayoutMult, 100)
	if err != nil {
		return err
	}
	p.MaxPayout = v
	return nil
}
