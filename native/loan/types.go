package loan

import (
	"fmt"
	"math/big"
)

// Loan captures the immutable terms of a single originated loan. Records are
// created by StartLoan and deleted by Repay or Claim; there is no partial
// settlement state in between.
type Loan struct {
	ID uint64
	// DenominationContract and DenominationTokenID identify the fungible
	// asset used for principal and interest.
	DenominationContract [20]byte
	DenominationTokenID  uint64
	// PrincipalAmount is the gross amount pulled from the lender at
	// origination; the borrower receives it net of the processing fee.
	PrincipalAmount *big.Int
	// MaximumInterest caps the interest owed at repayment.
	MaximumInterest *big.Int
	// CollateralContract and CollateralTokenID identify the NFT held in the
	// vault for the loan's lifetime.
	CollateralContract [20]byte
	CollateralTokenID  uint64
	// OriginationTime is the wall-clock unix timestamp recorded at start.
	OriginationTime int64
	// Duration is the number of seconds until the loan expires.
	Duration int64
	// TimeAdjustableInterest prorates owed interest linearly with elapsed
	// time when set; otherwise the full cap is owed regardless of early
	// repayment.
	TimeAdjustableInterest bool
}

// Clone returns a deep copy of the loan record.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	clone := *l
	if l.PrincipalAmount != nil {
		clone.PrincipalAmount = new(big.Int).Set(l.PrincipalAmount)
	} else {
		clone.PrincipalAmount = big.NewInt(0)
	}
	if l.MaximumInterest != nil {
		clone.MaximumInterest = new(big.Int).Set(l.MaximumInterest)
	} else {
		clone.MaximumInterest = big.NewInt(0)
	}
	return &clone
}

// Deadline returns the instant after which the loan may no longer be repaid
// and becomes claimable by the lender-note holder.
func (l *Loan) Deadline() int64 {
	if l == nil {
		return 0
	}
	return l.OriginationTime + l.Duration
}

// SanitizeLoan validates a loan record before it is persisted.
func SanitizeLoan(l *Loan) (*Loan, error) {
	if l == nil {
		return nil, fmt.Errorf("nil loan")
	}
	clone := l.Clone()
	if clone.PrincipalAmount.Sign() <= 0 {
		return nil, fmt.Errorf("loan principal must be positive")
	}
	if clone.MaximumInterest.Sign() < 0 {
		return nil, fmt.Errorf("loan interest cap must be non-negative")
	}
	if clone.Duration <= 0 {
		return nil, fmt.Errorf("loan duration must be positive")
	}
	return clone, nil
}

// Params is the admin-owned protocol configuration read by every loan
// operation. Fee values are raw basis points; they are deliberately not
// clamped to 10000 since the settlement transfers already reject impossible
// amounts.
type Params struct {
	Admin            [20]byte
	ProcessingFeeBps uint64
	InterestFeeBps   uint64
	FeeTreasury      [20]byte
	CollateralVault  [20]byte
	BorrowerNote     [20]byte
	LenderNote       [20]byte
}

// Clone returns a copy of the parameter set.
func (p *Params) Clone() *Params {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// Configured reports whether the settlement addresses required by loan
// operations are all present.
func (p *Params) Configured() bool {
	if p == nil {
		return false
	}
	return p.CollateralVault != ([20]byte{}) &&
		p.BorrowerNote != ([20]byte{}) &&
		p.LenderNote != ([20]byte{}) &&
		p.FeeTreasury != ([20]byte{})
}

// Currency is one whitelist entry. Precision is a unit-of-account scaling
// factor stored for callers; the engine does not use it in settlement math.
type Currency struct {
	Contract  [20]byte
	Permitted bool
	Precision *big.Int
}

// Clone returns a copy of the currency entry.
func (c *Currency) Clone() *Currency {
	if c == nil {
		return nil
	}
	clone := *c
	if c.Precision != nil {
		clone.Precision = new(big.Int).Set(c.Precision)
	} else {
		clone.Precision = big.NewInt(0)
	}
	return &clone
}
