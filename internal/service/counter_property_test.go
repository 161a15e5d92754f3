package service

import (
	"errors"
	"math"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// TestIncrementArithmeticProperty checks that a positive increment adds
// exactly the amount and a non-positive one changes nothing.
func TestIncrementArithmeticProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		balance := rapid.Int64Range(0, 1_000_000).Draw(t, "balance")
		amount := rapid.Int64Range(-1000, 1000).Draw(t, "amount")

		got, err := applyIncrement(balance, amount)
		if err != nil {
			t.Fatalf("applyIncrement(%d, %d): %v", balance, amount, err)
		}
		if amount > 0 && got != balance+amount {
			t.Fatalf("applyIncrement(%d, %d) = %d, want %d", balance, amount, got, balance+amount)
		}
		if amount <= 0 && got != balance {
			t.Fatalf("applyIncrement(%d, %d) = %d, want unchanged", balance, amount, got)
		}
	})
}

// TestIncrementOverflowProperty checks that no increment lands above
// MaxBalance and that a rejected one leaves the balance unchanged.
func TestIncrementOverflowProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		balance := rapid.Int64Range(0, MaxBalance).Draw(t, "balance")
		amount := rapid.Int64Range(1, math.MaxInt64).Draw(t, "amount")

		got, err := applyIncrement(balance, amount)
		if balance+amount > MaxBalance || balance+amount < 0 {
			if !errors.Is(err, ErrBalanceOverflow) || got != balance {
				t.Fatalf("applyIncrement(%d, %d) = (%d, %v), want (%d, overflow)", balance, amount, got, err, balance)
			}
			return
		}
		if err != nil || got != balance+amount {
			t.Fatalf("applyIncrement(%d, %d) = (%d, %v), want %d", balance, amount, got, err, balance+amount)
		}
	})
}

// TestDecrementInsufficientProperty checks that a decrement larger than the
// balance is rejected and leaves it unchanged, and that the floor is never crossed.
func TestDecrementInsufficientProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		floor := rapid.Int64Range(0, 10).Draw(t, "floor")
		balance := rapid.Int64Range(floor, 10_000).Draw(t, "balance")
		amount := rapid.Int64Range(1, 20_000).Draw(t, "amount")

		got, ok := applyDecrement(balance, amount, floor)
		if balance-amount < floor {
			if ok || got != balance {
				t.Fatalf("applyDecrement(%d, %d, %d) = (%d, %v), want (%d, false)", balance, amount, floor, got, ok, balance)
			}
			return
		}
		if !ok || got != balance-amount {
			t.Fatalf("applyDecrement(%d, %d, %d) = (%d, %v), want (%d, true)", balance, amount, floor, got, ok, balance-amount)
		}
		if got < floor {
			t.Fatalf("balance %d went below floor %d", got, floor)
		}
	})
}

// TestCounterSequenceProperty replays random operation sequences and checks
// the balance never goes below zero.
func TestCounterSequenceProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		balance := rapid.Int64Range(0, 20).Draw(t, "default")
		ops := rapid.SliceOfN(rapid.Int64Range(-5, 5), 1, 50).Draw(t, "ops")

		for _, op := range ops {
			if op >= 0 {
				balance, _ = applyIncrement(balance, op)
				continue
			}
			balance, _ = applyDecrement(balance, -op, 0)
			if balance < 0 {
				t.Fatalf("balance went negative: %d", balance)
			}
		}
	})
}

// TestRollCooldownProperty checks that a roll is allowed exactly when the
// cooldown has fully elapsed.
func TestRollCooldownProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		last := time.Unix(rapid.Int64Range(1_600_000_000, 1_800_000_000).Draw(t, "last"), 0).UTC()
		elapsed := time.Duration(rapid.Int64Range(0, int64(72*time.Hour)).Draw(t, "elapsed"))
		now := last.Add(elapsed)

		ready, next := rollReady(&last, now, DefaultRollCooldown)
		if elapsed >= DefaultRollCooldown {
			if !ready || !next.IsZero() {
				t.Fatalf("elapsed %v: want ready", elapsed)
			}
			return
		}
		if ready {
			t.Fatalf("elapsed %v: rolled before cooldown", elapsed)
		}
		if !next.Equal(last.Add(DefaultRollCooldown)) {
			t.Fatalf("next = %v, want %v", next, last.Add(DefaultRollCooldown))
		}
	})
}

func TestRollReady_NeverRolled(t *testing.T) {
	ready, next := rollReady(nil, time.Now(), DefaultRollCooldown)
	if !ready || !next.IsZero() {
		t.Fatalf("never rolled: got (%v, %v)", ready, next)
	}
}

func TestRollReady_ComparesInUTC(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	last := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	now := last.Add(DefaultRollCooldown).In(loc)

	ready, _ := rollReady(&last, now, DefaultRollCooldown)
	if !ready {
		t.Fatalf("roll exactly one cooldown later in another zone should be allowed")
	}
}
