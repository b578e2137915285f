package tax_test

import (
	"testing"

	"github.com/speedway/garage-engine/internal/tax"
)

func TestSplitDepositWithReferrer(t *testing.T) {
	// 1000 gross: 280 pool, 100 ref, 70 team, 550 net. The four
	// components sum to the gross exactly.
	s, err := tax.SplitDeposit(1000, false)
	if err != nil {
		t.Fatal(err)
	}
	if s.PoolFee != 280 || s.RefFee != 100 || s.TeamFee != 70 || s.Net != 550 {
		t.Fatalf("split = %+v", s)
	}
	if s.Net+s.PoolFee+s.RefFee+s.TeamFee != 1000 {
		t.Fatalf("components do not sum to gross: %+v", s)
	}
}

func TestSplitDepositHouse(t *testing.T) {
	// House path: the referrer share folds into the team fee (17%).
	s, err := tax.SplitDeposit(1000, true)
	if err != nil {
		t.Fatal(err)
	}
	if s.PoolFee != 280 || s.RefFee != 0 || s.TeamFee != 170 || s.Net != 550 {
		t.Fatalf("house split = %+v", s)
	}
}

func TestSplitCompound(t *testing.T) {
	s, err := tax.SplitCompound(1000)
	if err != nil {
		t.Fatal(err)
	}
	if s.Tax != 50 || s.Net != 950 {
		t.Fatalf("compound split = %+v", s)
	}
}

func TestWhaleRateBps(t *testing.T) {
	cases := []struct {
		name           string
		deposited, tvl uint64
		want           uint64
	}{
		{"zero tvl", 1_000_000, 0, 0},
		{"below first tier", 99, 10_000, 0},
		{"exactly 1%", 100, 10_000, 500},
		{"just under 2%", 199, 10_000, 500},
		{"exactly 2%", 200, 10_000, 1000},
		{"5%", 500, 10_000, 2500},
		{"exactly 10%", 1_000, 10_000, 5000},
		{"whole pool", 10_000, 10_000, 5000}, // capped at 50%
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := tax.WhaleRateBps(c.deposited, c.tvl)
			if err != nil {
				t.Fatal(err)
			}
			if got != c.want {
				t.Errorf("WhaleRateBps(%d, %d) = %d, want %d", c.deposited, c.tvl, got, c.want)
			}
		})
	}
}

func TestSplitWithdrawTenPercentWhale(t *testing.T) {
	// 100 available, position holds exactly 10% of a 1000 TVL:
	// stage-1 tax 10, remainder 90; whale tier at 10% share → 50% of 90
	// = 45; team 13 (floor of 13.5), pool 32 by subtraction; net 45.
	s, err := tax.SplitWithdraw(100, 100, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if s.BaseTax != 10 {
		t.Errorf("base tax = %d, want 10", s.BaseTax)
	}
	if s.WhaleTax != 45 {
		t.Errorf("whale tax = %d, want 45", s.WhaleTax)
	}
	if s.WhaleTaxTeam != 13 || s.WhaleTaxPool != 32 {
		t.Errorf("whale split = team %d / pool %d, want 13 / 32", s.WhaleTaxTeam, s.WhaleTaxPool)
	}
	if s.WhaleTaxTeam+s.WhaleTaxPool != s.WhaleTax {
		t.Errorf("whale components do not sum: %+v", s)
	}
	if s.Net != 45 {
		t.Errorf("net = %d, want 45", s.Net)
	}
}

func TestSplitWithdrawNoWhale(t *testing.T) {
	// Small holder: stage-1 only.
	s, err := tax.SplitWithdraw(1000, 1, 1_000_000)
	if err != nil {
		t.Fatal(err)
	}
	if s.BaseTax != 100 || s.WhaleTax != 0 || s.Net != 900 {
		t.Fatalf("split = %+v", s)
	}
}

func TestSplitWithdrawZeroTVL(t *testing.T) {
	// Zero locked value never divides by zero and never whale-taxes.
	s, err := tax.SplitWithdraw(1000, 1_000_000, 0)
	if err != nil {
		t.Fatal(err)
	}
	if s.WhaleTax != 0 || s.Net != 900 {
		t.Fatalf("split = %+v", s)
	}
}

func TestSplitClaimWallet(t *testing.T) {
	// 20% haircut, split evenly between burn and team; 80% net.
	s, err := tax.SplitClaimWallet(1000)
	if err != nil {
		t.Fatal(err)
	}
	if s.Haircut != 200 || s.Burn != 100 || s.TeamFee != 100 || s.Net != 800 {
		t.Fatalf("claim split = %+v", s)
	}
}
