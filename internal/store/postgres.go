package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/speedway/garage-engine/internal/keys"
	"github.com/speedway/garage-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Drop amounts are stored as NUMERIC(20,0) — they exceed BIGINT's signed
// range. Apply runs inside one transaction.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the engine's tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS garage_positions (
			record_key            TEXT PRIMARY KEY,
			owner                 TEXT NOT NULL UNIQUE,
			referrer              TEXT NOT NULL,
			total_deposited       NUMERIC(20,0) NOT NULL,
			total_claimed         NUMERIC(20,0) NOT NULL,
			max_payout            NUMERIC(20,0) NOT NULL,
			last_action_at        BIGINT NOT NULL,
			created_at            BIGINT NOT NULL,
			direct_referrals      INTEGER NOT NULL,
			lifetime_ref_earnings NUMERIC(20,0) NOT NULL
		);
		CREATE TABLE IF NOT EXISTS garage_ledger (
			record_key         TEXT PRIMARY KEY,
			pool_balance       NUMERIC(20,0) NOT NULL,
			total_locked_value NUMERIC(20,0) NOT NULL
		);
		CREATE TABLE IF NOT EXISTS garage_events (
			id                  TEXT PRIMARY KEY,
			op                  TEXT NOT NULL,
			authority           TEXT NOT NULL,
			referrer            TEXT NOT NULL,
			gross_amount        NUMERIC(20,0) NOT NULL,
			net_amount          NUMERIC(20,0) NOT NULL,
			burn_amount         NUMERIC(20,0) NOT NULL,
			pool_fee            NUMERIC(20,0) NOT NULL,
			ref_fee             NUMERIC(20,0) NOT NULL,
			team_fee            NUMERIC(20,0) NOT NULL,
			whale_tax           NUMERIC(20,0) NOT NULL,
			whale_tax_team      NUMERIC(20,0) NOT NULL,
			whale_tax_pool      NUMERIC(20,0) NOT NULL,
			new_total_deposited NUMERIC(20,0) NOT NULL,
			new_total_claimed   NUMERIC(20,0) NOT NULL,
			new_max_payout      NUMERIC(20,0) NOT NULL,
			exhausted           BOOLEAN NOT NULL,
			timestamp           TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS garage_events_authority_idx
			ON garage_events (authority, timestamp);
	`)
	return err
}

func (s *PostgresStore) GetPosition(ctx context.Context, owner model.Identity) (*model.Position, error) {
	var p model.Position
	var deposited, claimed, payout, refEarnings string

	err := s.pool.QueryRow(ctx,
		`SELECT owner, referrer,
		        total_deposited::TEXT, total_claimed::TEXT, max_payout::TEXT,
		        last_action_at, created_at, direct_referrals,
		        lifetime_ref_earnings::TEXT
		 FROM garage_positions WHERE record_key = $1`, keys.Garage(owner)).
		Scan(&p.Owner, &p.Referrer,
			&deposited, &claimed, &payout,
			&p.LastActionAt, &p.CreatedAt, &p.DirectReferrals,
			&refEarnings)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get position %s: %w", owner, err)
	}

	if p.TotalDeposited, err = parseDrops(deposited); err != nil {
		return nil, err
	}
	if p.TotalClaimed, err = parseDrops(claimed); err != nil {
		return nil, err
	}
	if p.MaxPayout, err = parseDrops(payout); err != nil {
		return nil, err
	}
	if p.LifetimeRefEarnings, err = parseDrops(refEarnings); err != nil {
		return nil, err
	}

	if err := keys.ValidateOwnership(&p, owner); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) GetLedger(ctx context.Context) (*model.Ledger, error) {
	var l model.Ledger
	var pool, tvl string

	err := s.pool.QueryRow(ctx,
		`SELECT pool_balance::TEXT, total_locked_value::TEXT
		 FROM garage_ledger WHERE record_key = $1`, keys.Ledger()).
		Scan(&pool, &tvl)
	if errors.Is(err, pgx.ErrNoRows) {
		// Bootstrap state: the ledger row is created on first Apply.
		return &model.Ledger{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ledger: %w", err)
	}

	if l.PoolBalance, err = parseDrops(pool); err != nil {
		return nil, err
	}
	if l.TotalLockedValue, err = parseDrops(tvl); err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *PostgresStore) Apply(ctx context.Context, mut *Mutation) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("apply: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for i := range mut.Positions {
		p := &mut.Positions[i]
		_, err := tx.Exec(ctx,
			`INSERT INTO garage_positions
			   (record_key, owner, referrer, total_deposited, total_claimed,
			    max_payout, last_action_at, created_at, direct_referrals,
			    lifetime_ref_earnings)
			 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC, $7, $8, $9, $10::NUMERIC)
			 ON CONFLICT (record_key) DO UPDATE SET
			   total_deposited       = EXCLUDED.total_deposited,
			   total_claimed         = EXCLUDED.total_claimed,
			   max_payout            = EXCLUDED.max_payout,
			   last_action_at        = EXCLUDED.last_action_at,
			   direct_referrals      = EXCLUDED.direct_referrals,
			   lifetime_ref_earnings = EXCLUDED.lifetime_ref_earnings`,
			keys.Garage(p.Owner), p.Owner, p.Referrer,
			formatDrops(p.TotalDeposited), formatDrops(p.TotalClaimed),
			formatDrops(p.MaxPayout), p.LastActionAt, p.CreatedAt,
			p.DirectReferrals, formatDrops(p.LifetimeRefEarnings),
		)
		if err != nil {
			return fmt.Errorf("apply: upsert position %s: %w", p.Owner, err)
		}
	}

	if mut.Ledger != nil {
		_, err := tx.Exec(ctx,
			`INSERT INTO garage_ledger (record_key, pool_balance, total_locked_value)
			 VALUES ($1, $2::NUMERIC, $3::NUMERIC)
			 ON CONFLICT (record_key) DO UPDATE SET
			   pool_balance       = EXCLUDED.pool_balance,
			   total_locked_value = EXCLUDED.total_locked_value`,
			keys.Ledger(),
			formatDrops(mut.Ledger.PoolBalance),
			formatDrops(mut.Ledger.TotalLockedValue),
		)
		if err != nil {
			return fmt.Errorf("apply: upsert ledger: %w", err)
		}
	}

	if e := mut.Event; e != nil {
		_, err := tx.Exec(ctx,
			`INSERT INTO garage_events
			   (id, op, authority, referrer, gross_amount, net_amount,
			    burn_amount, pool_fee, ref_fee, team_fee,
			    whale_tax, whale_tax_team, whale_tax_pool,
			    new_total_deposited, new_total_claimed, new_max_payout,
			    exhausted, timestamp)
			 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC,
			         $7::NUMERIC, $8::NUMERIC, $9::NUMERIC, $10::NUMERIC,
			         $11::NUMERIC, $12::NUMERIC, $13::NUMERIC,
			         $14::NUMERIC, $15::NUMERIC, $16::NUMERIC, $17, $18)`,
			e.ID, e.Op, e.Authority, e.Referrer,
			formatDrops(e.GrossAmount), formatDrops(e.NetAmount),
			formatDrops(e.BurnAmount), formatDrops(e.PoolFee),
			formatDrops(e.RefFee), formatDrops(e.TeamFee),
			formatDrops(e.WhaleTax), formatDrops(e.WhaleTaxTeam),
			formatDrops(e.WhaleTaxPool),
			formatDrops(e.NewTotalDeposited), formatDrops(e.NewTotalClaimed),
			formatDrops(e.NewMaxPayout), e.Exhausted, e.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("apply: insert event: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("apply: commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetEventsByAuthority(ctx context.Context, authority model.Identity) ([]model.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, op, authority, referrer,
		        gross_amount::TEXT, net_amount::TEXT,
		        burn_amount::TEXT, pool_fee::TEXT, ref_fee::TEXT, team_fee::TEXT,
		        whale_tax::TEXT, whale_tax_team::TEXT, whale_tax_pool::TEXT,
		        new_total_deposited::TEXT, new_total_claimed::TEXT,
		        new_max_payout::TEXT, exhausted, timestamp
		 FROM garage_events WHERE authority = $1 ORDER BY timestamp`, authority)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		cols := make([]string, 12)
		if err := rows.Scan(&e.ID, &e.Op, &e.Authority, &e.Referrer,
			&cols[0], &cols[1], &cols[2], &cols[3], &cols[4], &cols[5],
			&cols[6], &cols[7], &cols[8], &cols[9], &cols[10], &cols[11],
			&e.Exhausted, &e.Timestamp); err != nil {
			return nil, err
		}

		fields := []*uint64{
			&e.GrossAmount, &e.NetAmount, &e.BurnAmount, &e.PoolFee,
			&e.RefFee, &e.TeamFee, &e.WhaleTax, &e.WhaleTaxTeam,
			&e.WhaleTaxPool, &e.NewTotalDeposited, &e.NewTotalClaimed,
			&e.NewMaxPayout,
		}
		for i, f := range fields {
			if *f, err = parseDrops(cols[i]); err != nil {
				return nil, err
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// formatDrops renders a drop amount for a NUMERIC parameter.
func formatDrops(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// parseDrops parses a NUMERIC::TEXT column back into drops.
func parseDrops(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse drops %q: %w", s, err)
	}
	return v, nil
}
