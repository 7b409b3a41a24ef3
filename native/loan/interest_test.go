package loan

import (
	"math/big"
	"testing"
)

func TestOwedInterestTimeAdjusted(t *testing.T) {
	max := big.NewInt(5000)

	if got := OwedInterest(max, 0, 1000, true); got.Sign() != 0 {
		t.Fatalf("expected zero interest at origination, got %s", got)
	}
	if got := OwedInterest(max, 500, 1000, true); got.Cmp(big.NewInt(2500)) != 0 {
		t.Fatalf("expected 2500 at half duration, got %s", got)
	}
	if got := OwedInterest(max, 1000, 1000, true); got.Cmp(max) != 0 {
		t.Fatalf("expected full maximum at deadline, got %s", got)
	}
	if got := OwedInterest(max, 2000, 1000, true); got.Cmp(max) != 0 {
		t.Fatalf("expected cap past deadline, got %s", got)
	}
}

func TestOwedInterestFloorsDivision(t *testing.T) {
	// 100 * 333 / 1000 = 33.3 -> 33
	if got := OwedInterest(big.NewInt(100), 333, 1000, true); got.Cmp(big.NewInt(33)) != 0 {
		t.Fatalf("expected floored interest 33, got %s", got)
	}
}

func TestOwedInterestFixed(t *testing.T) {
	max := big.NewInt(5000)
	if got := OwedInterest(max, 1, 1000, false); got.Cmp(max) != 0 {
		t.Fatalf("expected full maximum for fixed interest, got %s", got)
	}
	if got := OwedInterest(nil, 500, 1000, false); got.Sign() != 0 {
		t.Fatalf("expected zero for nil maximum, got %s", got)
	}
}

func TestOwedInterestMonotonic(t *testing.T) {
	max := big.NewInt(7919)
	prev := big.NewInt(-1)
	for elapsed := int64(0); elapsed <= 1100; elapsed += 100 {
		owed := OwedInterest(max, elapsed, 1000, true)
		if owed.Cmp(prev) < 0 {
			t.Fatalf("interest decreased at elapsed=%d: %s < %s", elapsed, owed, prev)
		}
		if owed.Cmp(max) > 0 {
			t.Fatalf("interest exceeded cap at elapsed=%d: %s", elapsed, owed)
		}
		prev = owed
	}
}

func TestFeeAmount(t *testing.T) {
	if got := FeeAmount(big.NewInt(100_000), 100); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("expected 1%% of 100000 = 1000, got %s", got)
	}
	// 999 * 100 / 10000 = 9.99 -> 9
	if got := FeeAmount(big.NewInt(999), 100); got.Cmp(big.NewInt(9)) != 0 {
		t.Fatalf("expected floored fee 9, got %s", got)
	}
	if got := FeeAmount(big.NewInt(100_000), 0); got.Sign() != 0 {
		t.Fatalf("expected zero fee for zero bps, got %s", got)
	}
	if got := FeeAmount(nil, 100); got.Sign() != 0 {
		t.Fatalf("expected zero fee for nil amount, got %s", got)
	}
}

func TestComputeSettlement(t *testing.T) {
	s := ComputeSettlement(big.NewInt(100_000), big.NewInt(5000), 500, 1000, true, 1000)
	if s.OwedInterest.Cmp(big.NewInt(2500)) != 0 {
		t.Fatalf("owed interest: got %s, want 2500", s.OwedInterest)
	}
	if s.InterestFee.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("interest fee: got %s, want 250", s.InterestFee)
	}
	if s.LenderReceives.Cmp(big.NewInt(102_250)) != 0 {
		t.Fatalf("lender receives: got %s, want 102250", s.LenderReceives)
	}
}

func TestComputeSettlementZeroInterest(t *testing.T) {
	s := ComputeSettlement(big.NewInt(100_000), big.NewInt(0), 500, 1000, true, 1000)
	if s.OwedInterest.Sign() != 0 || s.InterestFee.Sign() != 0 {
		t.Fatalf("expected zero interest and fee, got %s / %s", s.OwedInterest, s.InterestFee)
	}
	if s.LenderReceives.Cmp(big.NewInt(100_000)) != 0 {
		t.Fatalf("lender receives: got %s, want principal only", s.LenderReceives)
	}
}
