// Package faucet implements the five Garage state transitions — Deposit,
// Compound, Withdraw, StashIn, ClaimToWallet — and their HTTP handlers.
//
// Every operation runs as one indivisible unit: the clock is read once at
// entry, all validation and fee math happens on loaded copies, and the
// resulting write set (positions, ledger, event) commits through a single
// store.Apply. All monetary values are uint64 drops.
package faucet

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/speedway/garage-engine/internal/fuel"
	"github.com/speedway/garage-engine/internal/garage"
	"github.com/speedway/garage-engine/internal/metrics"
	"github.com/speedway/garage-engine/internal/model"
	"github.com/speedway/garage-engine/internal/store"
	"github.com/speedway/garage-engine/internal/tax"
	"github.com/speedway/garage-engine/internal/token"
)

// Config carries the engine's policy knobs. The defaults reproduce the
// deployed behavior; the two booleans resolve policy points the fee
// schedule leaves open.
type Config struct {
	// MinDeposit is the smallest accepted deposit, in drops.
	MinDeposit uint64

	// TeamCollector receives team fees and whale-tax team shares.
	TeamCollector model.Identity

	// TreasuryWallet holds the tokens backing pool-funded payouts.
	TreasuryWallet model.Identity

	// AllowDepositWhenExhausted permits deposits that grow an exhausted
	// position's principal (and therefore its cap). Default: reject.
	AllowDepositWhenExhausted bool

	// StrictReferral makes a missing referrer record on a subsequent
	// deposit an error instead of silently forfeiting the referral fee.
	StrictReferral bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MinDeposit: garage.MinDeposit,
	}
}

// Service executes garage operations. The mutex serializes execution:
// every operation writes the singleton ledger, so any two concurrent
// operations have overlapping write sets.
type Service struct {
	store  store.Store
	source token.RewardsSource
	mover  token.Mover
	cfg    Config
	hub    *WSHub // optional WebSocket hub for event broadcasts
	mu     sync.Mutex
	now    func() time.Time
}

// NewService creates a new garage service. Pass nil for hub if WebSocket
// broadcasting is not needed.
func NewService(st store.Store, source token.RewardsSource, mover token.Mover, cfg Config, hub *WSHub) *Service {
	if cfg.MinDeposit == 0 {
		cfg.MinDeposit = garage.MinDeposit
	}
	return &Service{
		store:  st,
		source: source,
		mover:  mover,
		cfg:    cfg,
		hub:    hub,
		now:    time.Now,
	}
}

// SetClock replaces the trusted clock. Tests use this to control accrual.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Deposit converts amount drops from the owner's wallet into garage
// principal. The full gross is burned; 55% is credited as principal, 28%
// to the pool, 10% to the referrer's position (or folded into the team fee
// on house deposits), 7% to the team.
//
// A first deposit creates the position and requires referrer to be either
// an existing, non-self position or the house identity.
func (s *Service) Deposit(ctx context.Context, owner, referrer model.Identity, amount uint64) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()

	done := observe(model.OpDeposit)
	ev, err := s.deposit(ctx, owner, referrer, amount, now)
	done(err)
	return ev, err
}

func (s *Service) deposit(ctx context.Context, owner, referrer model.Identity, amount uint64, now time.Time) (*model.Event, error) {
	if amount < s.cfg.MinDeposit {
		return nil, garage.ErrDepositBelowMinimum
	}
	if referrer == owner {
		return nil, garage.ErrInvalidReferrer
	}

	ledger, err := s.store.GetLedger(ctx)
	if err != nil {
		return nil, err
	}

	pos, err := s.store.GetPosition(ctx, owner)
	creating := false
	switch {
	case err == nil:
		// Existing position: the referrer was fixed at creation.
		referrer = pos.Referrer
	case err == store.ErrNotFound:
		creating = true
		pos = &model.Position{
			Owner:        owner,
			Referrer:     referrer,
			LastActionAt: now.Unix(),
			CreatedAt:    now.Unix(),
		}
	default:
		return nil, err
	}

	if !creating && garage.IsExhausted(pos) && !s.cfg.AllowDepositWhenExhausted {
		return nil, garage.ErrExhausted
	}

	// Load the referrer's position. Mandatory on first deposits (unless
	// house); on subsequent deposits absence is policy-dependent.
	var refPos *model.Position
	if !referrer.IsHouse() {
		refPos, err = s.store.GetPosition(ctx, referrer)
		if err == store.ErrNotFound {
			refPos = nil
			if creating || s.cfg.StrictReferral {
				return nil, garage.ErrReferrerNoGarage
			}
		} else if err != nil {
			return nil, err
		}
	}

	split, err := tax.SplitDeposit(amount, referrer.IsHouse())
	if err != nil {
		return nil, err
	}

	if pos.TotalDeposited, err = fuel.Add(pos.TotalDeposited, split.Net); err != nil {
		return nil, err
	}
	pos.LastActionAt = now.Unix()
	if err := garage.UpdateMaxPayout(pos); err != nil {
		return nil, err
	}

	lockedDelta := split.Net
	refFeeCredited := uint64(0)
	if refPos != nil {
		if creating {
			refPos.DirectReferrals++
		}
		if refPos.TotalDeposited, err = fuel.Add(refPos.TotalDeposited, split.RefFee); err != nil {
			return nil, err
		}
		if refPos.LifetimeRefEarnings, err = fuel.Add(refPos.LifetimeRefEarnings, split.RefFee); err != nil {
			return nil, err
		}
		if err := garage.UpdateMaxPayout(refPos); err != nil {
			return nil, err
		}
		refFeeCredited = split.RefFee
		if lockedDelta, err = fuel.Add(lockedDelta, split.RefFee); err != nil {
			return nil, err
		}
	}

	if err := ledger.CreditPool(split.PoolFee); err != nil {
		return nil, err
	}
	if err := ledger.CreditLockedValue(lockedDelta); err != nil {
		return nil, err
	}

	// The entire gross leaves circulation; principal is bookkeeping, not
	// custody. Burn before committing so an underfunded wallet aborts
	// with no state change.
	if err := s.mover.Burn(ctx, owner, amount); err != nil {
		return nil, err
	}

	event := s.newEvent(model.OpDeposit, owner, now)
	event.Referrer = referrer
	event.GrossAmount = amount
	event.NetAmount = split.Net
	event.BurnAmount = amount
	event.PoolFee = split.PoolFee
	event.RefFee = refFeeCredited
	event.TeamFee = split.TeamFee
	fillTotals(event, pos)

	mut := &store.Mutation{Positions: []model.Position{*pos}, Ledger: ledger, Event: event}
	if refPos != nil {
		mut.Positions = append(mut.Positions, *refPos)
	}
	if err := s.commit(ctx, mut, ledger); err != nil {
		return nil, err
	}

	slog.Info("fuel up",
		"owner", owner,
		"gross", fuel.UIAmount(amount).String(),
		"net", fuel.UIAmount(split.Net).String(),
		"pool_fee", fuel.UIAmount(split.PoolFee).String(),
		"ref_fee", fuel.UIAmount(refFeeCredited).String(),
		"team_fee", fuel.UIAmount(split.TeamFee).String(),
		"new_deposited", fuel.UIAmount(pos.TotalDeposited).String(),
	)
	return event, nil
}

// Compound settles accrued yield and reinvests it: the gross is marked
// claimed, 5% goes to the pool, and the remaining 95% grows the principal
// (and therefore the payout cap).
func (s *Service) Compound(ctx context.Context, owner model.Identity) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()

	done := observe(model.OpCompound)
	ev, err := s.compound(ctx, owner, now)
	done(err)
	return ev, err
}

func (s *Service) compound(ctx context.Context, owner model.Identity, now time.Time) (*model.Event, error) {
	pos, ledger, err := s.loadForYield(ctx, owner)
	if err != nil {
		return nil, err
	}

	available, err := garage.Available(pos, now)
	if err != nil {
		return nil, err
	}
	if available == 0 {
		return nil, garage.ErrNoRewards
	}

	split, err := tax.SplitCompound(available)
	if err != nil {
		return nil, err
	}

	// The gross is simultaneously claimed and reinvested.
	if pos.TotalClaimed, err = fuel.Add(pos.TotalClaimed, available); err != nil {
		return nil, err
	}
	if pos.TotalDeposited, err = fuel.Add(pos.TotalDeposited, split.Net); err != nil {
		return nil, err
	}
	pos.LastActionAt = now.Unix()
	if err := garage.UpdateMaxPayout(pos); err != nil {
		return nil, err
	}

	if err := ledger.CreditPool(split.Tax); err != nil {
		return nil, err
	}
	if err := ledger.CreditLockedValue(split.Net); err != nil {
		return nil, err
	}

	event := s.newEvent(model.OpCompound, owner, now)
	event.GrossAmount = available
	event.NetAmount = split.Net
	event.PoolFee = split.Tax
	fillTotals(event, pos)

	mut := &store.Mutation{Positions: []model.Position{*pos}, Ledger: ledger, Event: event}
	if err := s.commit(ctx, mut, ledger); err != nil {
		return nil, err
	}

	slog.Info("boost",
		"owner", owner,
		"gross", fuel.UIAmount(available).String(),
		"net", fuel.UIAmount(split.Net).String(),
		"tax", fuel.UIAmount(split.Tax).String(),
		"new_deposited", fuel.UIAmount(pos.TotalDeposited).String(),
	)
	return event, nil
}

// Withdraw settles accrued yield and pays it out: 10% stage-1 tax to the
// pool, then the progressive whale tax on the remainder (team/pool split
// 30/70). The net is funded from the pool first; any shortfall is minted.
func (s *Service) Withdraw(ctx context.Context, owner model.Identity) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()

	done := observe(model.OpWithdraw)
	ev, err := s.withdraw(ctx, owner, now)
	done(err)
	return ev, err
}

func (s *Service) withdraw(ctx context.Context, owner model.Identity, now time.Time) (*model.Event, error) {
	pos, ledger, err := s.loadForYield(ctx, owner)
	if err != nil {
		return nil, err
	}

	available, err := garage.Available(pos, now)
	if err != nil {
		return nil, err
	}
	if available == 0 {
		return nil, garage.ErrNoRewards
	}

	// Whale share is computed against the pre-withdrawal principal and
	// the ledger's current TVL.
	split, err := tax.SplitWithdraw(available, pos.TotalDeposited, ledger.TotalLockedValue)
	if err != nil {
		return nil, err
	}

	if pos.TotalClaimed, err = fuel.Add(pos.TotalClaimed, available); err != nil {
		return nil, err
	}
	pos.LastActionAt = now.Unix()

	poolFee, err := fuel.Add(split.BaseTax, split.WhaleTaxPool)
	if err != nil {
		return nil, err
	}
	if err := ledger.CreditPool(poolFee); err != nil {
		return nil, err
	}

	// The pool balance is bookkeeping; the tokens behind it live in the
	// treasury wallet, which may hold less. Pay from the treasury up to
	// what it actually holds and mint the rest.
	fromPool := ledger.DebitPool(split.Net)
	if fromPool > 0 {
		held, err := s.mover.Balance(ctx, s.cfg.TreasuryWallet)
		if err != nil {
			return nil, err
		}
		if fromPool > held {
			fromPool = held
		}
	}
	toMint := split.Net - fromPool

	event := s.newEvent(model.OpWithdraw, owner, now)
	event.GrossAmount = available
	event.NetAmount = split.Net
	event.PoolFee = poolFee
	event.WhaleTax = split.WhaleTax
	event.WhaleTaxTeam = split.WhaleTaxTeam
	event.WhaleTaxPool = split.WhaleTaxPool
	fillTotals(event, pos)

	mut := &store.Mutation{Positions: []model.Position{*pos}, Ledger: ledger, Event: event}
	if err := s.commit(ctx, mut, ledger); err != nil {
		return nil, err
	}

	// Tokens move only after the claim is committed: a retry after a payout
	// failure finds total_claimed already advanced and cannot be paid twice.
	// The failed payout is reconciled against the event record.
	if err := s.payWithdrawal(ctx, owner, fromPool, toMint, split.WhaleTaxTeam); err != nil {
		slog.Error("withdraw payout failed after commit",
			"owner", owner, "event_id", event.ID,
			"from_pool", fromPool, "to_mint", toMint, "err", err)
		return nil, fmt.Errorf("withdraw payout: %w", err)
	}
	if toMint > 0 {
		metrics.MintedFallback.Add(float64(toMint))
	}

	slog.Info("collect",
		"owner", owner,
		"gross", fuel.UIAmount(available).String(),
		"net", fuel.UIAmount(split.Net).String(),
		"base_tax", fuel.UIAmount(split.BaseTax).String(),
		"whale_tax", fuel.UIAmount(split.WhaleTax).String(),
		"minted", fuel.UIAmount(toMint).String(),
		"exhausted", event.Exhausted,
	)
	return event, nil
}

// StashIn drains the owner's unclaimed-rewards source into garage principal
// at 0% tax. Requires an existing, non-exhausted position.
func (s *Service) StashIn(ctx context.Context, owner model.Identity) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()

	done := observe(model.OpStashIn)
	ev, err := s.stashIn(ctx, owner, now)
	done(err)
	return ev, err
}

func (s *Service) stashIn(ctx context.Context, owner model.Identity, now time.Time) (*model.Event, error) {
	pos, err := s.store.GetPosition(ctx, owner)
	if err == store.ErrNotFound {
		return nil, garage.ErrGarageRequired
	}
	if err != nil {
		return nil, err
	}
	if garage.IsExhausted(pos) {
		return nil, garage.ErrExhausted
	}

	ledger, err := s.store.GetLedger(ctx)
	if err != nil {
		return nil, err
	}

	// The source belongs to the mining game and can be credited between any
	// two reads, so the drained balance is the authoritative amount.
	drained, err := s.source.Drain(ctx, owner)
	if err != nil {
		return nil, err
	}
	amount, err := fuel.Add(drained.Raw, drained.Refined)
	if err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, garage.ErrNoRewards
	}

	if pos.TotalDeposited, err = fuel.Add(pos.TotalDeposited, amount); err != nil {
		return nil, err
	}
	pos.LastActionAt = now.Unix()
	if err := garage.UpdateMaxPayout(pos); err != nil {
		return nil, err
	}
	if err := ledger.CreditLockedValue(amount); err != nil {
		return nil, err
	}

	event := s.newEvent(model.OpStashIn, owner, now)
	event.GrossAmount = amount
	event.NetAmount = amount
	fillTotals(event, pos)

	mut := &store.Mutation{Positions: []model.Position{*pos}, Ledger: ledger, Event: event}
	if err := s.commit(ctx, mut, ledger); err != nil {
		return nil, err
	}

	slog.Info("stash",
		"owner", owner,
		"amount", fuel.UIAmount(amount).String(),
		"new_deposited", fuel.UIAmount(pos.TotalDeposited).String(),
	)
	return event, nil
}

// ClaimToWallet drains the owner's unclaimed-rewards source straight to
// their wallet, bypassing the position entirely: 20% haircut, half burned
// (never minted), half to the team; 80% minted to the owner. Works whether
// or not a position exists, exhausted or not.
func (s *Service) ClaimToWallet(ctx context.Context, owner model.Identity) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()

	done := observe(model.OpClaimToWallet)
	ev, err := s.claimToWallet(ctx, owner, now)
	done(err)
	return ev, err
}

func (s *Service) claimToWallet(ctx context.Context, owner model.Identity, now time.Time) (*model.Event, error) {
	// The drain both measures and consumes the claim: a retry finds the
	// source empty, so no payout can be issued twice.
	drained, err := s.source.Drain(ctx, owner)
	if err != nil {
		return nil, err
	}
	gross, err := fuel.Add(drained.Raw, drained.Refined)
	if err != nil {
		return nil, err
	}
	if gross == 0 {
		return nil, garage.ErrNoRewards
	}

	split, err := tax.SplitClaimWallet(gross)
	if err != nil {
		return nil, err
	}

	event := s.newEvent(model.OpClaimToWallet, owner, now)
	event.GrossAmount = gross
	event.NetAmount = split.Net
	event.BurnAmount = split.Burn
	event.TeamFee = split.TeamFee

	mut := &store.Mutation{Event: event}
	if err := s.commit(ctx, mut, nil); err != nil {
		return nil, err
	}

	// Mint after the event is committed; a failed mint is reconciled
	// against the event record. split.Burn is never minted, the supply
	// simply doesn't grow by it.
	if err := s.mover.Mint(ctx, owner, split.Net); err != nil {
		slog.Error("wallet claim payout failed after commit",
			"owner", owner, "event_id", event.ID, "net", split.Net, "err", err)
		return nil, fmt.Errorf("claim payout: %w", err)
	}
	if split.TeamFee > 0 {
		if err := s.mover.Mint(ctx, s.cfg.TeamCollector, split.TeamFee); err != nil {
			slog.Error("wallet claim team fee failed after commit",
				"owner", owner, "event_id", event.ID, "team_fee", split.TeamFee, "err", err)
			return nil, fmt.Errorf("claim payout: %w", err)
		}
	}

	slog.Info("claim wallet",
		"owner", owner,
		"gross", fuel.UIAmount(gross).String(),
		"net", fuel.UIAmount(split.Net).String(),
		"burned", fuel.UIAmount(split.Burn).String(),
		"team_fee", fuel.UIAmount(split.TeamFee).String(),
	)
	return event, nil
}

// --- Read API ---

// PositionView is a position snapshot with live accrual.
type PositionView struct {
	model.Position
	Available uint64 `json:"available"`
	Exhausted bool   `json:"exhausted"`
}

// GetPosition returns a position snapshot with the yield claimable now.
func (s *Service) GetPosition(ctx context.Context, owner model.Identity) (*PositionView, error) {
	pos, err := s.store.GetPosition(ctx, owner)
	if err == store.ErrNotFound {
		return nil, garage.ErrGarageRequired
	}
	if err != nil {
		return nil, err
	}
	available, err := garage.Available(pos, s.now().UTC())
	if err != nil {
		return nil, err
	}
	return &PositionView{
		Position:  *pos,
		Available: available,
		Exhausted: garage.IsExhausted(pos),
	}, nil
}

// GetLedger returns the shared ledger snapshot.
func (s *Service) GetLedger(ctx context.Context) (*model.Ledger, error) {
	return s.store.GetLedger(ctx)
}

// GetEvents returns a user's operation history, oldest first.
func (s *Service) GetEvents(ctx context.Context, owner model.Identity) ([]model.Event, error) {
	return s.store.GetEventsByAuthority(ctx, owner)
}

// --- internals ---

// loadForYield loads the position and ledger for Compound/Withdraw and
// applies the shared preconditions.
func (s *Service) loadForYield(ctx context.Context, owner model.Identity) (*model.Position, *model.Ledger, error) {
	pos, err := s.store.GetPosition(ctx, owner)
	if err == store.ErrNotFound {
		return nil, nil, garage.ErrGarageRequired
	}
	if err != nil {
		return nil, nil, err
	}
	if garage.IsExhausted(pos) {
		return nil, nil, garage.ErrExhausted
	}
	ledger, err := s.store.GetLedger(ctx)
	if err != nil {
		return nil, nil, err
	}
	return pos, ledger, nil
}

// payWithdrawal moves the withdrawal proceeds: pool-backed tokens from the
// treasury, the shortfall and the whale team share minted.
func (s *Service) payWithdrawal(ctx context.Context, owner model.Identity, fromPool, toMint, whaleTeam uint64) error {
	if fromPool > 0 {
		if err := s.mover.Transfer(ctx, s.cfg.TreasuryWallet, owner, fromPool); err != nil {
			return err
		}
	}
	if toMint > 0 {
		if err := s.mover.Mint(ctx, owner, toMint); err != nil {
			return err
		}
	}
	if whaleTeam > 0 {
		if err := s.mover.Mint(ctx, s.cfg.TeamCollector, whaleTeam); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) newEvent(op string, authority model.Identity, now time.Time) *model.Event {
	return &model.Event{
		ID:        uuid.New().String(),
		Op:        op,
		Authority: authority,
		Timestamp: now,
	}
}

func fillTotals(e *model.Event, p *model.Position) {
	e.NewTotalDeposited = p.TotalDeposited
	e.NewTotalClaimed = p.TotalClaimed
	e.NewMaxPayout = p.MaxPayout
	e.Exhausted = garage.IsExhausted(p)
}

// commit applies the write set, refreshes the ledger gauges, and broadcasts
// the event.
func (s *Service) commit(ctx context.Context, mut *store.Mutation, ledger *model.Ledger) error {
	if err := s.store.Apply(ctx, mut); err != nil {
		return fmt.Errorf("commit %s: %w", mut.Event.Op, err)
	}
	if ledger != nil {
		metrics.PoolBalance.Set(float64(ledger.PoolBalance))
		metrics.TotalLockedValue.Set(float64(ledger.TotalLockedValue))
	}
	if s.hub != nil && mut.Event != nil {
		s.hub.BroadcastEvent(mut.Event)
	}
	return nil
}

// observe returns a completion callback recording operation metrics.
func observe(op string) func(error) {
	start := time.Now()
	return func(err error) {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.OperationsTotal.WithLabelValues(op, outcome).Inc()
		metrics.OperationLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}
