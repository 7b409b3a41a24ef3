package note

import "errors"

var (
	ErrNilState           = errors.New("note registry: state not configured")
	ErrUnauthorizedMinter = errors.New("note registry: caller is not the authorized minter")
	ErrNoteExists         = errors.New("note registry: note already minted for loan")
	ErrUnknownNote        = errors.New("note registry: note not found")
	ErrNotOwner           = errors.New("note registry: caller is not owner or approved operator")
)

// OperatorKey identifies an approval allowing operator to transfer the note
// held by owner for one loan id.
type OperatorKey struct {
	Owner    [20]byte
	Operator [20]byte
	LoanID   uint64
}

type registryState interface {
	NoteOwnerGet(contract [20]byte, loanID uint64) ([20]byte, bool, error)
	NoteOwnerPut(contract [20]byte, loanID uint64, owner [20]byte) error
	NoteOwnerDelete(contract [20]byte, loanID uint64) error
	NoteOperatorHas(contract [20]byte, key OperatorKey) (bool, error)
	NoteOperatorPut(contract [20]byte, key OperatorKey) error
	NoteOperatorDelete(contract [20]byte, key OperatorKey) error
}

// Registry is a restricted single-unit token ledger. Each live unit is keyed
// by loan id and its owner holds the settlement right the note represents
// (repay for borrower notes, claim for lender notes). Only the configured
// minter — the loan core — may mint and burn; holders trade freely.
type Registry struct {
	state   registryState
	address [20]byte
	minter  [20]byte
}

// NewRegistry constructs a note registry bound to its own contract address.
func NewRegistry(address [20]byte) *Registry {
	return &Registry{address: address}
}

// SetState wires the registry to the external persistence layer.
func (r *Registry) SetState(state registryState) { r.state = state }

// SetMinter configures the single address allowed to mint and burn notes.
func (r *Registry) SetMinter(minter [20]byte) {
	if r == nil {
		return
	}
	r.minter = minter
}

// Address returns the registry's contract address.
func (r *Registry) Address() [20]byte {
	if r == nil {
		return [20]byte{}
	}
	return r.address
}

// Mint issues the note for loanID to the recipient. A loan id can hold at
// most one live unit.
func (r *Registry) Mint(caller, to [20]byte, loanID uint64) error {
	if r == nil || r.state == nil {
		return ErrNilState
	}
	if caller != r.minter || r.minter == ([20]byte{}) {
		return ErrUnauthorizedMinter
	}
	if _, ok, err := r.state.NoteOwnerGet(r.address, loanID); err != nil {
		return err
	} else if ok {
		return ErrNoteExists
	}
	return r.state.NoteOwnerPut(r.address, loanID, to)
}

// Burn retires the note for loanID regardless of its current holder.
func (r *Registry) Burn(caller [20]byte, loanID uint64) error {
	if r == nil || r.state == nil {
		return ErrNilState
	}
	if caller != r.minter || r.minter == ([20]byte{}) {
		return ErrUnauthorizedMinter
	}
	if _, ok, err := r.state.NoteOwnerGet(r.address, loanID); err != nil {
		return err
	} else if !ok {
		return ErrUnknownNote
	}
	return r.state.NoteOwnerDelete(r.address, loanID)
}

// Transfer moves the note to a new holder. This is the secondary-market path:
// settlement rights follow the token, not the original counterparty.
func (r *Registry) Transfer(caller, from, to [20]byte, loanID uint64) error {
	if r == nil || r.state == nil {
		return ErrNilState
	}
	owner, ok, err := r.state.NoteOwnerGet(r.address, loanID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownNote
	}
	if owner != from {
		return ErrNotOwner
	}
	if caller != from {
		approved, err := r.state.NoteOperatorHas(r.address, OperatorKey{Owner: from, Operator: caller, LoanID: loanID})
		if err != nil {
			return err
		}
		if !approved {
			return ErrNotOwner
		}
	}
	return r.state.NoteOwnerPut(r.address, loanID, to)
}

// UpdateOperator adds or removes a transfer approval for one note.
func (r *Registry) UpdateOperator(caller [20]byte, key OperatorKey, add bool) error {
	if r == nil || r.state == nil {
		return ErrNilState
	}
	if caller != key.Owner {
		return ErrNotOwner
	}
	if add {
		return r.state.NoteOperatorPut(r.address, key)
	}
	return r.state.NoteOperatorDelete(r.address, key)
}

// OwnerOf reports the current holder of the note for loanID. Loan operations
// query this fresh on every call so rights transfers are never cached.
func (r *Registry) OwnerOf(loanID uint64) ([20]byte, bool, error) {
	if r == nil || r.state == nil {
		return [20]byte{}, false, ErrNilState
	}
	return r.state.NoteOwnerGet(r.address, loanID)
}
