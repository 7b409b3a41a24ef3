package token

import (
	"errors"
	"math/big"
)

var (
	ErrNilState            = errors.New("token engine: state not configured")
	ErrUnknownContract     = errors.New("token engine: contract not registered")
	ErrContractExists      = errors.New("token engine: contract already registered with different definition")
	ErrNotController       = errors.New("token engine: caller is not the contract controller")
	ErrNotOperator         = errors.New("token engine: caller is not owner or approved operator")
	ErrInvalidAmount       = errors.New("token engine: amount must be positive")
	ErrInsufficientBalance = errors.New("token engine: insufficient balance")
	ErrUnknownToken        = errors.New("token engine: token not found")
	ErrWrongStandard       = errors.New("token engine: operation not supported by token standard")
)

type engineState interface {
	TokenContractGet(addr [20]byte) (*Contract, bool, error)
	TokenContractPut(contract *Contract) error
	TokenBalanceGet(contract, owner [20]byte, tokenID uint64) (*big.Int, error)
	TokenBalancePut(contract, owner [20]byte, tokenID uint64, amount *big.Int) error
	TokenSupplyGet(contract [20]byte, tokenID uint64) (*big.Int, error)
	TokenSupplyPut(contract [20]byte, tokenID uint64, amount *big.Int) error
	TokenOwnerGet(contract [20]byte, tokenID uint64) ([20]byte, bool, error)
	TokenOwnerPut(contract [20]byte, tokenID uint64, owner [20]byte) error
	TokenOwnerDelete(contract [20]byte, tokenID uint64) error
	TokenOperatorHas(contract [20]byte, key OperatorKey) (bool, error)
	TokenOperatorPut(contract [20]byte, key OperatorKey) error
	TokenOperatorDelete(contract [20]byte, key OperatorKey) error
}

// Engine implements the asset-transfer standard the loan protocol settles
// against: per-contract fungible and NFT ledgers, an operator-approval table
// consulted on every transfer, and controller-gated mint/burn.
type Engine struct {
	state engineState
}

// NewEngine constructs a token engine. SetState must be called before use.
func NewEngine() *Engine {
	return &Engine{}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// RegisterContract records a new asset contract. Registration is idempotent:
// re-registering an identical definition succeeds, a conflicting one fails.
func (e *Engine) RegisterContract(addr [20]byte, standard Standard, controller [20]byte) (*Contract, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	contract, err := SanitizeContract(&Contract{Address: addr, Standard: standard, Controller: controller})
	if err != nil {
		return nil, err
	}
	existing, ok, err := e.state.TokenContractGet(addr)
	if err != nil {
		return nil, err
	}
	if ok {
		if existing.Standard != contract.Standard || existing.Controller != contract.Controller {
			return nil, ErrContractExists
		}
		return existing, nil
	}
	if err := e.state.TokenContractPut(contract); err != nil {
		return nil, err
	}
	return contract.Clone(), nil
}

func (e *Engine) loadContract(addr [20]byte) (*Contract, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	contract, ok, err := e.state.TokenContractGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownContract
	}
	return contract, nil
}

// authorized reports whether caller may move funds out of owner's position.
func (e *Engine) authorized(contract [20]byte, owner, caller [20]byte, tokenID uint64) (bool, error) {
	if caller == owner {
		return true, nil
	}
	return e.state.TokenOperatorHas(contract, OperatorKey{Owner: owner, Operator: caller, TokenID: tokenID})
}

// Transfer moves amount units of (contract, tokenID) from one owner to
// another. The caller must be the owner or an approved operator for the
// (owner, tokenID) pair.
func (e *Engine) Transfer(caller, contractAddr, from, to [20]byte, tokenID uint64, amount *big.Int) error {
	contract, err := e.loadContract(contractAddr)
	if err != nil {
		return err
	}
	ok, err := e.authorized(contractAddr, from, caller, tokenID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotOperator
	}
	switch contract.Standard {
	case StandardFungible:
		return e.transferFungible(contractAddr, from, to, tokenID, amount)
	case StandardNFT:
		if amount != nil && amount.Cmp(big.NewInt(1)) != 0 {
			return ErrInvalidAmount
		}
		return e.transferNFT(contractAddr, from, to, tokenID)
	default:
		return ErrWrongStandard
	}
}

func (e *Engine) transferFungible(contract, from, to [20]byte, tokenID uint64, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	fromBal, err := e.state.TokenBalanceGet(contract, from, tokenID)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	toBal, err := e.state.TokenBalanceGet(contract, to, tokenID)
	if err != nil {
		return err
	}
	if err := e.state.TokenBalancePut(contract, from, tokenID, new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	return e.state.TokenBalancePut(contract, to, tokenID, new(big.Int).Add(toBal, amount))
}

func (e *Engine) transferNFT(contract, from, to [20]byte, tokenID uint64) error {
	owner, ok, err := e.state.TokenOwnerGet(contract, tokenID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownToken
	}
	if owner != from {
		return ErrInsufficientBalance
	}
	return e.state.TokenOwnerPut(contract, tokenID, to)
}

// UpdateOperator adds or removes an operator approval. Only the owner of the
// position may mutate its approval table.
func (e *Engine) UpdateOperator(caller, contractAddr [20]byte, key OperatorKey, add bool) error {
	if _, err := e.loadContract(contractAddr); err != nil {
		return err
	}
	if caller != key.Owner {
		return ErrNotOperator
	}
	if add {
		return e.state.TokenOperatorPut(contractAddr, key)
	}
	return e.state.TokenOperatorDelete(contractAddr, key)
}

// Mint credits amount units of a fungible token to the recipient. Restricted
// to the contract controller.
func (e *Engine) Mint(caller, contractAddr, to [20]byte, tokenID uint64, amount *big.Int) error {
	contract, err := e.loadContract(contractAddr)
	if err != nil {
		return err
	}
	if caller != contract.Controller {
		return ErrNotController
	}
	if contract.Standard != StandardFungible {
		return ErrWrongStandard
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	balance, err := e.state.TokenBalanceGet(contractAddr, to, tokenID)
	if err != nil {
		return err
	}
	supply, err := e.state.TokenSupplyGet(contractAddr, tokenID)
	if err != nil {
		return err
	}
	if err := e.state.TokenBalancePut(contractAddr, to, tokenID, new(big.Int).Add(balance, amount)); err != nil {
		return err
	}
	return e.state.TokenSupplyPut(contractAddr, tokenID, new(big.Int).Add(supply, amount))
}

// MintNFT assigns the next token id of an NFT contract to the recipient and
// returns it. Restricted to the contract controller.
func (e *Engine) MintNFT(caller, contractAddr, to [20]byte) (uint64, error) {
	contract, err := e.loadContract(contractAddr)
	if err != nil {
		return 0, err
	}
	if caller != contract.Controller {
		return 0, ErrNotController
	}
	if contract.Standard != StandardNFT {
		return 0, ErrWrongStandard
	}
	tokenID := contract.NextTokenID
	if err := e.state.TokenOwnerPut(contractAddr, tokenID, to); err != nil {
		return 0, err
	}
	contract.NextTokenID = tokenID + 1
	if err := e.state.TokenContractPut(contract); err != nil {
		return 0, err
	}
	return tokenID, nil
}

// Burn removes amount units of a fungible token from the holder. Restricted
// to the contract controller.
func (e *Engine) Burn(caller, contractAddr, from [20]byte, tokenID uint64, amount *big.Int) error {
	contract, err := e.loadContract(contractAddr)
	if err != nil {
		return err
	}
	if caller != contract.Controller {
		return ErrNotController
	}
	if contract.Standard != StandardFungible {
		return ErrWrongStandard
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	balance, err := e.state.TokenBalanceGet(contractAddr, from, tokenID)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	supply, err := e.state.TokenSupplyGet(contractAddr, tokenID)
	if err != nil {
		return err
	}
	if err := e.state.TokenBalancePut(contractAddr, from, tokenID, new(big.Int).Sub(balance, amount)); err != nil {
		return err
	}
	newSupply := new(big.Int).Sub(supply, amount)
	if newSupply.Sign() < 0 {
		newSupply = big.NewInt(0)
	}
	return e.state.TokenSupplyPut(contractAddr, tokenID, newSupply)
}

// BurnNFT removes an NFT from its current owner. Restricted to the contract
// controller.
func (e *Engine) BurnNFT(caller, contractAddr [20]byte, tokenID uint64) error {
	contract, err := e.loadContract(contractAddr)
	if err != nil {
		return err
	}
	if caller != contract.Controller {
		return ErrNotController
	}
	if contract.Standard != StandardNFT {
		return ErrWrongStandard
	}
	if _, ok, err := e.state.TokenOwnerGet(contractAddr, tokenID); err != nil {
		return err
	} else if !ok {
		return ErrUnknownToken
	}
	return e.state.TokenOwnerDelete(contractAddr, tokenID)
}

// BalanceOf returns the fungible balance for (owner, tokenID).
func (e *Engine) BalanceOf(contractAddr, owner [20]byte, tokenID uint64) (*big.Int, error) {
	if _, err := e.loadContract(contractAddr); err != nil {
		return nil, err
	}
	return e.state.TokenBalanceGet(contractAddr, owner, tokenID)
}

// OwnerOf returns the current owner of an NFT unit.
func (e *Engine) OwnerOf(contractAddr [20]byte, tokenID uint64) ([20]byte, bool, error) {
	if _, err := e.loadContract(contractAddr); err != nil {
		return [20]byte{}, false, err
	}
	return e.state.TokenOwnerGet(contractAddr, tokenID)
}
