package token

import "fmt"

// Standard identifies the ledger shape a registered asset contract exposes.
type Standard uint8

const (
	// StandardFungible ledgers balances per (owner, token id) pair.
	StandardFungible Standard = iota + 1
	// StandardNFT ledgers a single owner per token id.
	StandardNFT
)

// Valid reports whether the standard value is within the supported range.
func (s Standard) Valid() bool {
	switch s {
	case StandardFungible, StandardNFT:
		return true
	default:
		return false
	}
}

// Contract describes a registered asset contract. The controller is the only
// address allowed to mint and burn units.
type Contract struct {
	Address     [20]byte
	Standard    Standard
	Controller  [20]byte
	NextTokenID uint64
}

// Clone returns a copy of the contract record.
func (c *Contract) Clone() *Contract {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// SanitizeContract validates a contract definition before it is persisted.
func SanitizeContract(c *Contract) (*Contract, error) {
	if c == nil {
		return nil, fmt.Errorf("nil contract")
	}
	if !c.Standard.Valid() {
		return nil, fmt.Errorf("invalid token standard: %d", c.Standard)
	}
	if c.Address == ([20]byte{}) {
		return nil, fmt.Errorf("contract address must not be zero")
	}
	if c.Controller == ([20]byte{}) {
		return nil, fmt.Errorf("contract controller must not be zero")
	}
	return c.Clone(), nil
}

// OperatorKey identifies one entry in a contract's operator-approval table.
// An approved operator may move (owner, token id) units on the owner's behalf.
type OperatorKey struct {
	Owner    [20]byte
	Operator [20]byte
	TokenID  uint64
}
