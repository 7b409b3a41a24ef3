package loan

import (
	"errors"
	"math/big"
	"time"

	"loanchain/core/events"
	"loanchain/core/types"
	nativecommon "loanchain/native/common"
)

var (
	ErrNilState           = errors.New("loan engine: state not configured")
	ErrNilCollaborators   = errors.New("loan engine: settlement collaborators not wired")
	ErrValidation         = errors.New("loan engine: invalid input")
	ErrConfiguration      = errors.New("loan engine: protocol configuration incomplete")
	ErrCurrencyNotAllowed = errors.New("loan engine: denomination currency not whitelisted")
	ErrNonExistentLoan    = errors.New("loan engine: non-existent loan")
	ErrUnauthorizedCaller = errors.New("loan engine: unauthorized caller")
	ErrLoanExpired        = errors.New("loan engine: loan expired")
	ErrLoanNotExpired     = errors.New("loan engine: loan not expired")
)

const moduleName = "loan"

type engineState interface {
	LoanGet(id uint64) (*Loan, bool, error)
	LoanPut(l *Loan) error
	LoanDelete(id uint64) error
	LoanNextID() (uint64, error)
	LoanSetNextID(id uint64) error
	LoanParamsGet() (*Params, bool, error)
	LoanParamsPut(p *Params) error
	CurrencyGet(contract [20]byte) (*Currency, bool, error)
	CurrencyPut(c *Currency) error
}

// assetTransferrer is the slice of the token engine the loan core settles
// currency through.
type assetTransferrer interface {
	Transfer(caller, contract, from, to [20]byte, tokenID uint64, amount *big.Int) error
}

// noteIssuer is the claim-token surface the engine drives. Ownership of a
// note is the sole source of truth for who may repay or claim, so OwnerOf is
// queried fresh on every operation.
type noteIssuer interface {
	Mint(caller, to [20]byte, loanID uint64) error
	Burn(caller [20]byte, loanID uint64) error
	OwnerOf(loanID uint64) ([20]byte, bool, error)
}

// collateralVault is the custody surface for loan collateral.
type collateralVault interface {
	Lock(caller, contract [20]byte, tokenID uint64, from [20]byte) error
	Release(caller, contract [20]byte, tokenID uint64, to [20]byte) error
}

type loanEvent struct {
	evt *types.Event
}

func (e loanEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e loanEvent) Event() *types.Event { return e.evt }

// Engine owns the loan ledger and protocol configuration and drives the loan
// state machine. Every public operation is expected to run inside a state
// transaction provided by the caller: a returned error must discard all
// writes, which is what makes multi-asset settlement all-or-nothing.
type Engine struct {
	state        engineState
	assets       assetTransferrer
	vault        collateralVault
	borrowerNote noteIssuer
	lenderNote   noteIssuer
	address      [20]byte
	emitter      events.Emitter
	pauses       nativecommon.PauseView
	nowFn        func() int64
}

// NewEngine constructs a loan engine identified by the loan core's own module
// address. The address is the caller identity for asset transfers and the
// authorized minter of both note registries.
func NewEngine(address [20]byte) *Engine {
	return &Engine{
		address: address,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetCollaborators wires the settlement surfaces used by loan operations.
func (e *Engine) SetCollaborators(assets assetTransferrer, vault collateralVault, borrowerNote, lenderNote noteIssuer) {
	if e == nil {
		return
	}
	e.assets = assets
	e.vault = vault
	e.borrowerNote = borrowerNote
	e.lenderNote = lenderNote
}

// SetPauses wires the module pause view consulted by mutating operations.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily intended for tests to
// provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Address returns the loan core's module address.
func (e *Engine) Address() [20]byte {
	if e == nil {
		return [20]byte{}
	}
	return e.address
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(loanEvent{evt: evt})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) collaboratorsWired() error {
	if e.assets == nil || e.vault == nil || e.borrowerNote == nil || e.lenderNote == nil {
		return ErrNilCollaborators
	}
	return nil
}

// Bootstrap writes the initial parameter set with the given admin if no
// parameters exist yet. Subsequent calls are no-ops so restarts never reset
// live configuration.
func (e *Engine) Bootstrap(admin, feeTreasury [20]byte) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if _, ok, err := e.state.LoanParamsGet(); err != nil {
		return err
	} else if ok {
		return nil
	}
	return e.state.LoanParamsPut(&Params{Admin: admin, FeeTreasury: feeTreasury})
}

// Params returns the current protocol configuration.
func (e *Engine) Params() (*Params, error) {
	params, _, err := e.loadParams()
	if err != nil {
		return nil, err
	}
	return params.Clone(), nil
}

func (e *Engine) loadParams() (*Params, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, ErrNilState
	}
	params, ok, err := e.state.LoanParamsGet()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, ErrConfiguration
	}
	return params, true, nil
}

func (e *Engine) requireAdmin(caller [20]byte) (*Params, error) {
	params, _, err := e.loadParams()
	if err != nil {
		return nil, err
	}
	if caller != params.Admin {
		return nil, ErrUnauthorizedCaller
	}
	return params, nil
}

// --- Administrative configuration ---

// WhitelistCurrency permits a denomination contract and records its declared
// unit-of-account precision.
func (e *Engine) WhitelistCurrency(caller, contract [20]byte, precision *big.Int) error {
	if _, err := e.requireAdmin(caller); err != nil {
		return err
	}
	entry := &Currency{Contract: contract, Permitted: true}
	if precision != nil {
		entry.Precision = new(big.Int).Set(precision)
	}
	if err := e.state.CurrencyPut(entry); err != nil {
		return err
	}
	e.emit(NewCurrencyPermittedEvent(entry))
	return nil
}

// Currency returns the whitelist entry for a denomination contract.
func (e *Engine) Currency(contract [20]byte) (*Currency, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, ErrNilState
	}
	return e.state.CurrencyGet(contract)
}

// SetProcessingFee overwrites the origination fee in basis points.
func (e *Engine) SetProcessingFee(caller [20]byte, bps uint64) error {
	params, err := e.requireAdmin(caller)
	if err != nil {
		return err
	}
	params.ProcessingFeeBps = bps
	return e.state.LoanParamsPut(params)
}

// SetInterestFee overwrites the repayment interest skim in basis points.
func (e *Engine) SetInterestFee(caller [20]byte, bps uint64) error {
	params, err := e.requireAdmin(caller)
	if err != nil {
		return err
	}
	params.InterestFeeBps = bps
	return e.state.LoanParamsPut(params)
}

// SetCollateralVault overwrites the configured vault address.
func (e *Engine) SetCollateralVault(caller, vault [20]byte) error {
	params, err := e.requireAdmin(caller)
	if err != nil {
		return err
	}
	params.CollateralVault = vault
	return e.state.LoanParamsPut(params)
}

// SetLoanNoteContracts overwrites both note registry addresses in one call.
func (e *Engine) SetLoanNoteContracts(caller, borrowerNote, lenderNote [20]byte) error {
	params, err := e.requireAdmin(caller)
	if err != nil {
		return err
	}
	params.BorrowerNote = borrowerNote
	params.LenderNote = lenderNote
	return e.state.LoanParamsPut(params)
}

// SetFeeTreasury overwrites the address that accumulates protocol fees.
func (e *Engine) SetFeeTreasury(caller, treasury [20]byte) error {
	params, err := e.requireAdmin(caller)
	if err != nil {
		return err
	}
	params.FeeTreasury = treasury
	return e.state.LoanParamsPut(params)
}

// --- Loan lifecycle ---

// StartLoanInput groups the origination terms supplied by the client.
type StartLoanInput struct {
	Lender                 [20]byte
	Borrower               [20]byte
	DenominationContract   [20]byte
	DenominationTokenID    uint64
	PrincipalAmount        *big.Int
	MaximumInterest        *big.Int
	CollateralContract     [20]byte
	CollateralTokenID      uint64
	Duration               int64
	TimeAdjustableInterest bool
}

// StartLoan originates a loan: it moves the principal from lender to borrower
// net of the processing fee, escrows the collateral, mints both claim notes
// and appends the loan record. The lender must have approved the loan core as
// an operator on the denomination contract, and the borrower must have
// approved the vault on the collateral contract.
func (e *Engine) StartLoan(input StartLoanInput) (*Loan, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.collaboratorsWired(); err != nil {
		return nil, err
	}
	params, _, err := e.loadParams()
	if err != nil {
		return nil, err
	}
	if !params.Configured() {
		return nil, ErrConfiguration
	}
	if input.PrincipalAmount == nil || input.PrincipalAmount.Sign() <= 0 {
		return nil, ErrValidation
	}
	if input.MaximumInterest != nil && input.MaximumInterest.Sign() < 0 {
		return nil, ErrValidation
	}
	if input.Duration <= 0 {
		return nil, ErrValidation
	}
	currency, ok, err := e.state.CurrencyGet(input.DenominationContract)
	if err != nil {
		return nil, err
	}
	if !ok || !currency.Permitted {
		return nil, ErrCurrencyNotAllowed
	}

	processingFee := FeeAmount(input.PrincipalAmount, params.ProcessingFeeBps)
	netPrincipal := new(big.Int).Sub(input.PrincipalAmount, processingFee)

	// Settlement legs. Any failure aborts the surrounding transaction, so no
	// partial origination can persist.
	if netPrincipal.Sign() > 0 {
		if err := e.assets.Transfer(e.address, input.DenominationContract, input.Lender, input.Borrower, input.DenominationTokenID, netPrincipal); err != nil {
			return nil, err
		}
	}
	if processingFee.Sign() > 0 {
		if err := e.assets.Transfer(e.address, input.DenominationContract, input.Lender, params.FeeTreasury, input.DenominationTokenID, processingFee); err != nil {
			return nil, err
		}
	}
	if err := e.vault.Lock(e.address, input.CollateralContract, input.CollateralTokenID, input.Borrower); err != nil {
		return nil, err
	}

	id, err := e.state.LoanNextID()
	if err != nil {
		return nil, err
	}
	if err := e.lenderNote.Mint(e.address, input.Lender, id); err != nil {
		return nil, err
	}
	if err := e.borrowerNote.Mint(e.address, input.Borrower, id); err != nil {
		return nil, err
	}

	record := &Loan{
		ID:                     id,
		DenominationContract:   input.DenominationContract,
		DenominationTokenID:    input.DenominationTokenID,
		PrincipalAmount:        new(big.Int).Set(input.PrincipalAmount),
		MaximumInterest:        cloneOrZero(input.MaximumInterest),
		CollateralContract:     input.CollateralContract,
		CollateralTokenID:      input.CollateralTokenID,
		OriginationTime:        e.now(),
		Duration:               input.Duration,
		TimeAdjustableInterest: input.TimeAdjustableInterest,
	}
	sanitized, err := SanitizeLoan(record)
	if err != nil {
		return nil, err
	}
	if err := e.state.LoanPut(sanitized); err != nil {
		return nil, err
	}
	if err := e.state.LoanSetNextID(id + 1); err != nil {
		return nil, err
	}
	e.emit(NewStartedEvent(sanitized, input.Lender, input.Borrower))
	return sanitized.Clone(), nil
}

// Get returns the loan record for id.
func (e *Engine) Get(id uint64) (*Loan, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	record, ok, err := e.state.LoanGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNonExistentLoan
	}
	return record.Clone(), nil
}

// Repay settles the loan before its deadline. The caller must be the current
// borrower-note holder; they pay principal plus time-adjusted interest net of
// the protocol skim to the current lender-note holder, the skim goes to the
// fee treasury, both notes are burned, the collateral returns to the caller
// and the record is deleted. A second call on the same id therefore fails
// with ErrNonExistentLoan.
func (e *Engine) Repay(caller [20]byte, id uint64) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.collaboratorsWired(); err != nil {
		return err
	}
	params, _, err := e.loadParams()
	if err != nil {
		return err
	}
	record, ok, err := e.state.LoanGet(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNonExistentLoan
	}
	holder, ok, err := e.borrowerNote.OwnerOf(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNonExistentLoan
	}
	if holder != caller {
		return ErrUnauthorizedCaller
	}
	now := e.now()
	if now > record.Deadline() {
		return ErrLoanExpired
	}

	elapsed := now - record.OriginationTime
	if elapsed < 0 {
		elapsed = 0
	}
	settlement := ComputeSettlement(record.PrincipalAmount, record.MaximumInterest, elapsed, record.Duration, record.TimeAdjustableInterest, params.InterestFeeBps)

	lenderHolder, ok, err := e.lenderNote.OwnerOf(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNonExistentLoan
	}

	if settlement.LenderReceives.Sign() > 0 {
		if err := e.assets.Transfer(e.address, record.DenominationContract, caller, lenderHolder, record.DenominationTokenID, settlement.LenderReceives); err != nil {
			return err
		}
	}
	if settlement.InterestFee.Sign() > 0 {
		if err := e.assets.Transfer(e.address, record.DenominationContract, caller, params.FeeTreasury, record.DenominationTokenID, settlement.InterestFee); err != nil {
			return err
		}
	}
	if err := e.borrowerNote.Burn(e.address, id); err != nil {
		return err
	}
	if err := e.lenderNote.Burn(e.address, id); err != nil {
		return err
	}
	if err := e.vault.Release(e.address, record.CollateralContract, record.CollateralTokenID, caller); err != nil {
		return err
	}
	if err := e.state.LoanDelete(id); err != nil {
		return err
	}
	e.emit(NewRepaidEvent(record, caller, lenderHolder, settlement))
	return nil
}

// Claim resolves a defaulted loan after its deadline. The caller must be the
// current lender-note holder; both notes are burned and the collateral moves
// to the caller with no currency settlement — the lender forfeits principal
// and interest in exchange for the collateral.
func (e *Engine) Claim(caller [20]byte, id uint64) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.collaboratorsWired(); err != nil {
		return err
	}
	record, ok, err := e.state.LoanGet(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNonExistentLoan
	}
	holder, ok, err := e.lenderNote.OwnerOf(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNonExistentLoan
	}
	if holder != caller {
		return ErrUnauthorizedCaller
	}
	if e.now() <= record.Deadline() {
		return ErrLoanNotExpired
	}

	if err := e.borrowerNote.Burn(e.address, id); err != nil {
		return err
	}
	if err := e.lenderNote.Burn(e.address, id); err != nil {
		return err
	}
	if err := e.vault.Release(e.address, record.CollateralContract, record.CollateralTokenID, caller); err != nil {
		return err
	}
	if err := e.state.LoanDelete(id); err != nil {
		return err
	}
	e.emit(NewClaimedEvent(record, caller))
	return nil
}

func cloneOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
