package allocator

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Split is the division of an inbound amount into its workflow legs.
// All values are lamports and sum exactly to the inbound amount.
type Split struct {
	// FeeLamports is retained by the operator and never spent.
	FeeLamports uint64
	// RentReserveLamports is held back to pay pool-creation rent; zero
	// when joining an existing pool.
	RentReserveLamports uint64
	// CounterLamports is swapped into the counter token.
	CounterLamports uint64
	// NativeLamports is the remainder leg, wrapped for the pool deposit.
	NativeLamports uint64
}

// Budget returns the spendable working budget of the split
func (s Split) Budget() uint64 {
	return s.CounterLamports + s.NativeLamports
}

// ErrReserveExceedsAmount is returned when the rent reserve cannot be
// covered by the inbound amount after fee retention.
var ErrReserveExceedsAmount = errors.New("rent reserve exceeds remaining amount")

// SplitInbound divides an inbound amount into fee, rent reserve and the two
// swap legs.
// Logic:
//  1. Retain the fee fraction off the top
//  2. Deduct the FIXED rent reserve when a pool must be created
//  3. Allocate the counter fraction from the *remainder*, NOT the
//     original total
//  4. Assign the final leftover to the native leg
//
// Safety: the four legs always sum to the inbound amount exactly (no
// lamport lost), so re-running the split for a resumed record is stable.
func SplitInbound(amount uint64, feeRetention, counterFraction decimal.Decimal, rentReserve uint64, reserveRent bool) (Split, error) {
	if amount == 0 {
		return Split{}, errors.New("inbound amount must be positive")
	}
	if feeRetention.IsNegative() || feeRetention.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return Split{}, errors.New("fee retention must be in [0, 1)")
	}
	if counterFraction.IsNegative() || counterFraction.GreaterThan(decimal.NewFromInt(1)) {
		return Split{}, errors.New("counter fraction must be in [0, 1]")
	}

	total := decimal.NewFromUint64(amount)

	// Step 1: fee off the top, rounded down so the fee never overdraws
	fee := total.Mul(feeRetention).Floor()
	remaining := total.Sub(fee)

	// Step 2: fixed rent reserve when creating a pool
	var reserve decimal.Decimal
	if reserveRent {
		reserve = decimal.NewFromUint64(rentReserve)
		if reserve.GreaterThan(remaining) {
			return Split{}, ErrReserveExceedsAmount
		}
		remaining = remaining.Sub(reserve)
	}

	// Step 3: counter leg as a fraction of the remainder
	counter := remaining.Mul(counterFraction).Floor()

	// Step 4: everything left goes to the native leg
	native := remaining.Sub(counter)

	split := Split{
		FeeLamports:         uint64(fee.IntPart()),
		RentReserveLamports: uint64(reserve.IntPart()),
		CounterLamports:     uint64(counter.IntPart()),
		NativeLamports:      uint64(native.IntPart()),
	}

	// Safety check: no lamport lost or invented
	if split.FeeLamports+split.RentReserveLamports+split.CounterLamports+split.NativeLamports != amount {
		return Split{}, errors.New("split legs do not sum to inbound amount")
	}

	return split, nil
}
