package vault

import (
	"errors"
	"math"
	"testing"

	protoerrors "stakevault/core/errors"
)

func TestExchangeRateEmptyVaultIsUnit(t *testing.T) {
	v := &Vault{}
	rate, err := v.ExchangeRate()
	if err != nil {
		t.Fatalf("exchange rate: %v", err)
	}
	if rate != RateScale {
		t.Fatalf("expected %d, got %d", RateScale, rate)
	}
}

func TestExchangeRateLargeBalancesDoNotOverflow(t *testing.T) {
	// 1e18 * 1e9 exceeds 64 bits; the 256-bit intermediate keeps the quotient.
	v := &Vault{TotalAssets: 1_100_000_000_000_000_000, TotalShares: 1_000_000_000_000_000_000}
	rate, err := v.ExchangeRate()
	if err != nil {
		t.Fatalf("exchange rate: %v", err)
	}
	if rate != 1_100_000_000 {
		t.Fatalf("unexpected rate: %d", rate)
	}
}

func TestShareMintScenario(t *testing.T) {
	v := &Vault{}
	shares, err := v.CalculateShares(1_000_000_000)
	if err != nil || shares != 1_000_000_000 {
		t.Fatalf("first deposit: shares=%d err=%v", shares, err)
	}
	v.TotalAssets, v.TotalShares = 1_000_000_000, 1_000_000_000
	shares, err = v.CalculateShares(500_000_000)
	if err != nil || shares != 500_000_000 {
		t.Fatalf("second deposit: shares=%d err=%v", shares, err)
	}
}

func TestConversionsRoundDown(t *testing.T) {
	v := &Vault{TotalAssets: 1_000, TotalShares: 3}
	value, err := v.SharesToValue(1)
	if err != nil || value != 333 {
		t.Fatalf("expected 333, got %d (%v)", value, err)
	}
	shares, err := v.CalculateShares(500)
	if err != nil || shares != 1 {
		t.Fatalf("expected 1 share, got %d (%v)", shares, err)
	}
	if value, _ := (&Vault{}).SharesToValue(10); value != 0 {
		t.Fatalf("expected zero value for empty vault, got %d", value)
	}
}

func TestHasCapacity(t *testing.T) {
	v := &Vault{TotalAssets: 900, MaxCapacity: 1_000}
	if !v.HasCapacity(100) {
		t.Fatalf("expected exact fill to fit")
	}
	if v.HasCapacity(101) {
		t.Fatalf("expected overfill to be rejected")
	}
	v.TotalAssets = math.MaxUint64 - 1
	v.MaxCapacity = math.MaxUint64
	if v.HasCapacity(2) {
		t.Fatalf("expected overflow to count as no capacity")
	}
}

func TestCheckedArithmetic(t *testing.T) {
	if _, err := Add(math.MaxUint64, 1); !errors.Is(err, protoerrors.ErrArithmeticOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if _, err := Sub(1, 2); !errors.Is(err, protoerrors.ErrArithmeticUnderflow) {
		t.Fatalf("expected underflow, got %v", err)
	}
	if _, err := MulDiv(1, 1, 0); !errors.Is(err, protoerrors.ErrDivisionByZero) {
		t.Fatalf("expected division by zero, got %v", err)
	}
	if _, err := MulDiv(math.MaxUint64, 2, 1); !errors.Is(err, protoerrors.ErrArithmeticOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if got, err := MulDivSaturating(math.MaxUint64, 2, 1); err != nil || got != math.MaxUint64 {
		t.Fatalf("expected saturation, got %d (%v)", got, err)
	}
}
