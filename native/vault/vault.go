package vault

import (
	"errors"
	"math/big"

	"loanchain/core/events"
	"loanchain/core/types"
)

var (
	ErrNilAssets          = errors.New("collateral vault: asset contract not configured")
	ErrUnauthorizedCaller = errors.New("collateral vault: caller is not the loan core")

	one = big.NewInt(1)
)

// assetMover is the slice of the token engine the vault needs: authorized
// transfers of single NFT units.
type assetMover interface {
	Transfer(caller, contract, from, to [20]byte, tokenID uint64, amount *big.Int) error
}

// Vault is a pure escrow proxy for loan collateral. It owns no loan
// semantics: the loan core is the only authorized caller, and every operation
// is a single NFT transfer in or out of the vault's own address. Keeping
// custody in a separate component leaves the collateral trail auditable
// independent of loan accounting.
type Vault struct {
	assets   assetMover
	emitter  events.Emitter
	address  [20]byte
	loanCore [20]byte
}

type vaultEvent struct {
	evt *types.Event
}

func (e vaultEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e vaultEvent) Event() *types.Event { return e.evt }

// New constructs a vault bound to its own address.
func New(address [20]byte) *Vault {
	return &Vault{address: address, emitter: events.NoopEmitter{}}
}

// SetAssets wires the token engine used to move collateral.
func (v *Vault) SetAssets(assets assetMover) { v.assets = assets }

// SetLoanCore configures the single address allowed to drive the vault.
func (v *Vault) SetLoanCore(loanCore [20]byte) {
	if v == nil {
		return
	}
	v.loanCore = loanCore
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (v *Vault) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		v.emitter = events.NoopEmitter{}
		return
	}
	v.emitter = emitter
}

// Address returns the vault's custody address.
func (v *Vault) Address() [20]byte {
	if v == nil {
		return [20]byte{}
	}
	return v.address
}

func (v *Vault) emit(evt *types.Event) {
	if v == nil || v.emitter == nil || evt == nil {
		return
	}
	v.emitter.Emit(vaultEvent{evt: evt})
}

func (v *Vault) authorize(caller [20]byte) error {
	if v == nil || v.assets == nil {
		return ErrNilAssets
	}
	if v.loanCore == ([20]byte{}) || caller != v.loanCore {
		return ErrUnauthorizedCaller
	}
	return nil
}

// Lock pulls the collateral NFT from its owner into vault custody. The owner
// must have approved the vault as an operator on the collateral contract.
func (v *Vault) Lock(caller, contract [20]byte, tokenID uint64, from [20]byte) error {
	if err := v.authorize(caller); err != nil {
		return err
	}
	if err := v.assets.Transfer(v.address, contract, from, v.address, tokenID, one); err != nil {
		return err
	}
	v.emit(newCustodyEvent(EventTypeCollateralLocked, contract, tokenID, from))
	return nil
}

// Release hands the collateral NFT from vault custody to the recipient.
func (v *Vault) Release(caller, contract [20]byte, tokenID uint64, to [20]byte) error {
	if err := v.authorize(caller); err != nil {
		return err
	}
	if err := v.assets.Transfer(v.address, contract, v.address, to, tokenID, one); err != nil {
		return err
	}
	v.emit(newCustodyEvent(EventTypeCollateralReleased, contract, tokenID, to))
	return nil
}
