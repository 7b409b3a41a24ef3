package vault

import (
	"encoding/hex"
	"strconv"

	"loanchain/core/types"
)

const (
	EventTypeCollateralLocked   = "vault.collateral_locked"
	EventTypeCollateralReleased = "vault.collateral_released"
)

func newCustodyEvent(eventType string, contract [20]byte, tokenID uint64, counterparty [20]byte) *types.Event {
	return &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"contract":     hex.EncodeToString(contract[:]),
			"tokenId":      strconv.FormatUint(tokenID, 10),
			"counterparty": hex.EncodeToString(counterparty[:]),
		},
	}
}
