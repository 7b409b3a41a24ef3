package loan

import (
	"encoding/hex"
	"strconv"

	"loanchain/core/types"
)

const (
	EventTypeLoanStarted       = "loan.started"
	EventTypeLoanRepaid        = "loan.repaid"
	EventTypeLoanClaimed       = "loan.claimed"
	EventTypeCurrencyPermitted = "loan.currency_permitted"
)

// NewStartedEvent returns the canonical payload for a freshly originated loan.
func NewStartedEvent(l *Loan, lender, borrower [20]byte) *types.Event {
	attrs := loanAttributes(l)
	attrs["lender"] = hex.EncodeToString(lender[:])
	attrs["borrower"] = hex.EncodeToString(borrower[:])
	return &types.Event{Type: EventTypeLoanStarted, Attributes: attrs}
}

// NewRepaidEvent returns the payload emitted on successful repayment.
func NewRepaidEvent(l *Loan, payer, lenderHolder [20]byte, settlement Settlement) *types.Event {
	attrs := loanAttributes(l)
	attrs["payer"] = hex.EncodeToString(payer[:])
	attrs["lenderHolder"] = hex.EncodeToString(lenderHolder[:])
	attrs["owedInterest"] = settlement.OwedInterest.String()
	attrs["interestFee"] = settlement.InterestFee.String()
	attrs["lenderReceives"] = settlement.LenderReceives.String()
	return &types.Event{Type: EventTypeLoanRepaid, Attributes: attrs}
}

// NewClaimedEvent returns the payload emitted when an expired loan's
// collateral is claimed by the lender-note holder.
func NewClaimedEvent(l *Loan, claimant [20]byte) *types.Event {
	attrs := loanAttributes(l)
	attrs["claimant"] = hex.EncodeToString(claimant[:])
	return &types.Event{Type: EventTypeLoanClaimed, Attributes: attrs}
}

// NewCurrencyPermittedEvent returns the payload emitted when the admin
// whitelists a denomination contract.
func NewCurrencyPermittedEvent(c *Currency) *types.Event {
	if c == nil {
		return &types.Event{Type: EventTypeCurrencyPermitted, Attributes: map[string]string{}}
	}
	return &types.Event{
		Type: EventTypeCurrencyPermitted,
		Attributes: map[string]string{
			"contract":  hex.EncodeToString(c.Contract[:]),
			"precision": c.Clone().Precision.String(),
		},
	}
}

func loanAttributes(l *Loan) map[string]string {
	attrs := make(map[string]string)
	if l == nil {
		return attrs
	}
	clone := l.Clone()
	attrs["loanId"] = strconv.FormatUint(clone.ID, 10)
	attrs["denominationContract"] = hex.EncodeToString(clone.DenominationContract[:])
	attrs["denominationTokenId"] = strconv.FormatUint(clone.DenominationTokenID, 10)
	attrs["principal"] = clone.PrincipalAmount.String()
	attrs["maximumInterest"] = clone.MaximumInterest.String()
	attrs["collateralContract"] = hex.EncodeToString(clone.CollateralContract[:])
	attrs["collateralTokenId"] = strconv.FormatUint(clone.CollateralTokenID, 10)
	attrs["originatedAt"] = strconv.FormatInt(clone.OriginationTime, 10)
	attrs["duration"] = strconv.FormatInt(clone.Duration, 10)
	attrs["timeAdjustable"] = strconv.FormatBool(clone.TimeAdjustableInterest)
	return attrs
}
