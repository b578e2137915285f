package model_test

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/speedway/garage-engine/internal/fuel"
	"github.com/speedway/garage-engine/internal/model"
)

func TestParseIdentity(t *testing.T) {
	valid := strings.Repeat("0f", 32)
	id, err := model.ParseIdentity(valid)
	if err != nil {
		t.Fatal(err)
	}
	if string(id) != valid {
		t.Fatalf("identity = %s, want %s", id, valid)
	}

	for _, bad := range []string{"", "abcd", strings.Repeat("zz", 32), strings.Repeat("ab", 33)} {
		if _, err := model.ParseIdentity(bad); !errors.Is(err, model.ErrInvalidIdentity) {
			t.Errorf("ParseIdentity(%q) = %v, want ErrInvalidIdentity", bad, err)
		}
	}
}

func TestIsHouse(t *testing.T) {
	if !model.HouseIdentity.IsHouse() {
		t.Fatal("house identity not recognized")
	}
	if model.Identity(strings.Repeat("ab", 32)).IsHouse() {
		t.Fatal("non-zero identity reported as house")
	}
}

func TestDebitPoolShortfall(t *testing.T) {
	l := model.Ledger{PoolBalance: 100}

	if drawn := l.DebitPool(60); drawn != 60 {
		t.Fatalf("drawn = %d, want 60", drawn)
	}
	// Pool holds 40; the remaining 20 is the caller's to mint.
	if drawn := l.DebitPool(60); drawn != 40 {
		t.Fatalf("drawn = %d, want 40", drawn)
	}
	if l.PoolBalance != 0 {
		t.Fatalf("pool = %d, want 0", l.PoolBalance)
	}
}

func TestCreditPoolOverflow(t *testing.T) {
	l := model.Ledger{PoolBalance: math.MaxUint64}
	if err := l.CreditPool(1); !errors.Is(err, fuel.ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if l.PoolBalance != math.MaxUint64 {
		t.Fatal("pool mutated on failed credit")
	}
}
