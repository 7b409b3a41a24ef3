package loan

import "math/big"

var basisPoints = big.NewInt(10_000)

// Settlement summarises the amounts exchanged when a loan is repaid. All
// values come from integer math with flooring division so settlement totals
// are exact and reproducible.
type Settlement struct {
	// OwedInterest is the interest due for the elapsed time, capped at the
	// loan's maximum.
	OwedInterest *big.Int
	// InterestFee is the protocol's skim from the owed interest.
	InterestFee *big.Int
	// LenderReceives is principal plus interest net of the protocol fee.
	LenderReceives *big.Int
}

// OwedInterest computes the interest due after elapsed seconds of a loan with
// the given duration. With time adjustment the amount scales linearly with
// elapsed time, reaching exactly maximum at elapsed == duration; without it
// the full maximum is owed regardless of early repayment.
func OwedInterest(maximum *big.Int, elapsed, duration int64, timeAdjustable bool) *big.Int {
	if maximum == nil || maximum.Sign() <= 0 || duration <= 0 {
		return big.NewInt(0)
	}
	if !timeAdjustable {
		return new(big.Int).Set(maximum)
	}
	if elapsed <= 0 {
		return big.NewInt(0)
	}
	if elapsed >= duration {
		return new(big.Int).Set(maximum)
	}
	owed := new(big.Int).Mul(maximum, big.NewInt(elapsed))
	return owed.Quo(owed, big.NewInt(duration))
}

// FeeAmount computes the basis-point share of amount, truncating toward zero.
func FeeAmount(amount *big.Int, bps uint64) *big.Int {
	if amount == nil || amount.Sign() <= 0 || bps == 0 {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(bps))
	return fee.Quo(fee, basisPoints)
}

// ComputeSettlement evaluates the repayment amounts for a loan at the given
// elapsed time.
func ComputeSettlement(principal, maximum *big.Int, elapsed, duration int64, timeAdjustable bool, interestFeeBps uint64) Settlement {
	owed := OwedInterest(maximum, elapsed, duration, timeAdjustable)
	fee := FeeAmount(owed, interestFeeBps)
	receives := new(big.Int).Sub(owed, fee)
	if principal != nil {
		receives.Add(receives, principal)
	}
	return Settlement{OwedInterest: owed, InterestFee: fee, LenderReceives: receives}
}
