// Package tax implements the Garage fee schedule: fixed basis-point splits
// per operation plus the progressive whale tax on withdrawals.
//
// All splits use truncating integer division. Wherever a split has two
// components, the second is computed by subtraction so the components always
// sum exactly to the taxed amount.
package tax

import (
	"github.com/speedway/garage-engine/internal/fuel"
)

// Deposit split (basis points of the gross amount). The four components sum
// to 10000: the "net" 5500 credited to the position corresponds to the
// permanently burned principal — the entire gross leaves circulation.
const (
	DepositNetBps       uint64 = 5500
	DepositPoolBps      uint64 = 2800
	DepositRefBps       uint64 = 1000
	DepositTeamBps      uint64 = 700
	DepositHouseTeamBps uint64 = 1700 // team takes the referrer share on house deposits
)

// Compound and withdraw taxes.
const (
	CompoundTaxBps uint64 = 500  // 5% of compounded yield, to pool
	WithdrawTaxBps uint64 = 1000 // stage-1 10% of withdrawn yield, to pool
)

// Whale tax split (of the whale-tax amount itself).
const (
	WhaleTeamBps uint64 = 3000
	WhalePoolBps uint64 = 7000
)

// ClaimToWallet haircut.
const (
	WalletHaircutBps uint64 = 2000 // 20% of the claimed amount
	HaircutBurnBps   uint64 = 5000 // half of the haircut is burned
	HaircutTeamBps   uint64 = 5000 // half goes to the team
)

// whaleThresholdsBps are position-share-of-TVL thresholds, in bps, mapping
// index-for-index to whaleRatesBps. The highest met threshold wins; below
// the first the rate is 0; at or above 10% of TVL the rate caps at 50%.
var whaleThresholdsBps = [10]uint64{100, 200, 300, 400, 500, 600, 700, 800, 900, 1000}

var whaleRatesBps = [10]uint64{500, 1000, 1500, 2000, 2500, 3000, 3500, 4000, 4500, 5000}

// WhaleRateBps returns the whale-tax rate for a position holding
// totalDeposited out of totalLockedValue. A zero denominator means no whale
// tax, never a division by zero.
func WhaleRateBps(totalDeposited, totalLockedValue uint64) (uint64, error) {
	if totalLockedValue == 0 {
		return 0, nil
	}
	shareBps, err := fuel.MulDiv(totalDeposited, fuel.DenominatorBps, totalLockedValue)
	if err != nil {
		return 0, err
	}

	rate := uint64(0)
	for i, threshold := range whaleThresholdsBps {
		if shareBps >= threshold {
			rate = whaleRatesBps[i]
		}
	}
	return rate, nil
}

// DepositSplit is the fee breakdown of one deposit.
type DepositSplit struct {
	Net     uint64 // credited to the position's principal
	PoolFee uint64
	RefFee  uint64 // zero on house deposits
	TeamFee uint64
}

// SplitDeposit computes the deposit fee breakdown. When house is true the
// referrer share is folded into the team fee and RefFee is zero.
func SplitDeposit(amount uint64, house bool) (DepositSplit, error) {
	var s DepositSplit
	var err error

	teamBps := DepositTeamBps
	if house {
		teamBps = DepositHouseTeamBps
	} else {
		if s.RefFee, err = fuel.MulBps(amount, DepositRefBps); err != nil {
			return DepositSplit{}, err
		}
	}
	if s.TeamFee, err = fuel.MulBps(amount, teamBps); err != nil {
		return DepositSplit{}, err
	}
	if s.PoolFee, err = fuel.MulBps(amount, DepositPoolBps); err != nil {
		return DepositSplit{}, err
	}

	totalTax, err := fuel.Add(s.TeamFee, s.RefFee)
	if err != nil {
		return DepositSplit{}, err
	}
	if totalTax, err = fuel.Add(totalTax, s.PoolFee); err != nil {
		return DepositSplit{}, err
	}
	if s.Net, err = fuel.Sub(amount, totalTax); err != nil {
		return DepositSplit{}, err
	}
	return s, nil
}

// CompoundSplit is the fee breakdown of one compound.
type CompoundSplit struct {
	Net uint64 // reinvested into principal
	Tax uint64 // to pool
}

// SplitCompound computes the compound fee breakdown on the gross yield.
func SplitCompound(gross uint64) (CompoundSplit, error) {
	tax, err := fuel.MulBps(gross, CompoundTaxBps)
	if err != nil {
		return CompoundSplit{}, err
	}
	net, err := fuel.Sub(gross, tax)
	if err != nil {
		return CompoundSplit{}, err
	}
	return CompoundSplit{Net: net, Tax: tax}, nil
}

// WithdrawSplit is the two-stage fee breakdown of one withdrawal.
type WithdrawSplit struct {
	Net          uint64 // paid to the owner
	BaseTax      uint64 // stage 1, to pool
	WhaleTax     uint64 // stage 2, on the stage-1 remainder
	WhaleTaxTeam uint64
	WhaleTaxPool uint64
}

// SplitWithdraw computes the withdrawal fee breakdown on the gross yield.
// The whale rate is derived from the position's pre-withdrawal principal
// against the ledger's current total locked value.
func SplitWithdraw(gross, totalDeposited, totalLockedValue uint64) (WithdrawSplit, error) {
	var s WithdrawSplit
	var err error

	if s.BaseTax, err = fuel.MulBps(gross, WithdrawTaxBps); err != nil {
		return WithdrawSplit{}, err
	}
	afterBase, err := fuel.Sub(gross, s.BaseTax)
	if err != nil {
		return WithdrawSplit{}, err
	}

	rate, err := WhaleRateBps(totalDeposited, totalLockedValue)
	if err != nil {
		return WithdrawSplit{}, err
	}
	if s.WhaleTax, err = fuel.MulBps(afterBase, rate); err != nil {
		return WithdrawSplit{}, err
	}
	if s.WhaleTaxTeam, err = fuel.MulBps(s.WhaleTax, WhaleTeamBps); err != nil {
		return WithdrawSplit{}, err
	}
	// Pool share by subtraction so team+pool always equals the whale tax.
	if s.WhaleTaxPool, err = fuel.Sub(s.WhaleTax, s.WhaleTaxTeam); err != nil {
		return WithdrawSplit{}, err
	}
	if s.Net, err = fuel.Sub(afterBase, s.WhaleTax); err != nil {
		return WithdrawSplit{}, err
	}
	return s, nil
}

// ClaimWalletSplit is the fee breakdown of one wallet claim.
type ClaimWalletSplit struct {
	Net     uint64 // minted to the owner's wallet
	Haircut uint64
	Burn    uint64 // never minted
	TeamFee uint64
}

// SplitClaimWallet computes the 20% haircut, split evenly between burn and
// team. The burn share is realized by never minting it.
func SplitClaimWallet(gross uint64) (ClaimWalletSplit, error) {
	var s ClaimWalletSplit
	var err error

	if s.Haircut, err = fuel.MulBps(gross, WalletHaircutBps); err != nil {
		return ClaimWalletSplit{}, err
	}
	if s.Burn, err = fuel.MulBps(s.Haircut, HaircutBurnBps); err != nil {
		return ClaimWalletSplit{}, err
	}
	if s.TeamFee, err = fuel.Sub(s.Haircut, s.Burn); err != nil {
		return ClaimWalletSplit{}, err
	}
	if s.Net, err = fuel.Sub(gross, s.Haircut); err != nil {
		return ClaimWalletSplit{}, err
	}
	return s, nil
}
