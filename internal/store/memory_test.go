package store_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/speedway/garage-engine/internal/model"
	"github.com/speedway/garage-engine/internal/store"
)

func ident(pair string) model.Identity {
	return model.Identity(strings.Repeat(pair, 32))
}

func TestMemoryStoreApplyWriteSet(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	owner := ident("aa")

	if _, err := s.GetPosition(ctx, owner); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// A fresh store bootstraps a zero ledger.
	l, err := s.GetLedger(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if l.PoolBalance != 0 || l.TotalLockedValue != 0 {
		t.Fatalf("ledger = %+v, want zero", l)
	}

	err = s.Apply(ctx, &store.Mutation{
		Positions: []model.Position{{Owner: owner, Referrer: model.HouseIdentity, TotalDeposited: 100}},
		Ledger:    &model.Ledger{PoolBalance: 7, TotalLockedValue: 100},
		Event:     &model.Event{ID: "e1", Op: model.OpDeposit, Authority: owner},
	})
	if err != nil {
		t.Fatal(err)
	}

	p, err := s.GetPosition(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	if p.TotalDeposited != 100 {
		t.Fatalf("deposited = %d, want 100", p.TotalDeposited)
	}
	l, err = s.GetLedger(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if l.PoolBalance != 7 {
		t.Fatalf("pool = %d, want 7", l.PoolBalance)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	owner := ident("aa")

	err := s.Apply(ctx, &store.Mutation{
		Positions: []model.Position{{Owner: owner, TotalDeposited: 100}},
	})
	if err != nil {
		t.Fatal(err)
	}

	p, err := s.GetPosition(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	p.TotalDeposited = 999

	again, err := s.GetPosition(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	if again.TotalDeposited != 100 {
		t.Fatal("mutating a fetched copy leaked into the store")
	}
}

func TestMemoryStoreEventsByAuthority(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	a, b := ident("aa"), ident("bb")

	for i, authority := range []model.Identity{a, b, a} {
		err := s.Apply(ctx, &store.Mutation{
			Event: &model.Event{ID: string(rune('1' + i)), Op: model.OpDeposit, Authority: authority},
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	events, err := s.GetEventsByAuthority(ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
}
