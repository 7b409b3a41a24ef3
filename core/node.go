package core

import (
	"log/slog"
	"math/big"
	"sync"
	"time"

	"loanchain/core/events"
	"loanchain/core/state"
	"loanchain/core/types"
	"loanchain/crypto"
	"loanchain/native/loan"
	"loanchain/native/note"
	"loanchain/native/token"
	"loanchain/native/vault"
	"loanchain/observability"
	"loanchain/storage"
)

// Module account names. Addresses are derived from these, so they are part of
// the persistent state layout and must not change.
const (
	ModuleLoanCore     = "loancore"
	ModuleVault        = "vault"
	ModuleBorrowerNote = "borrowernote"
	ModuleLenderNote   = "lendernote"
)

// Node is the single entry point into the protocol state machine. Every
// mutating operation runs inside one state transaction: the engines are bound
// to a copy-on-write overlay and their writes reach the database only when
// the whole operation succeeds. Operations are serialized by a mutex, which
// stands in for block-level sequencing.
type Node struct {
	mu      sync.Mutex
	db      storage.Database
	manager *state.Manager
	emitter events.Emitter
	pauses  *pauseSet
	logger  *slog.Logger
	nowFn   func() int64

	loanCore     [20]byte
	vaultAddr    [20]byte
	borrowerNote [20]byte
	lenderNote   [20]byte
}

// NewNode creates a node over the given database. Module addresses are
// derived deterministically so the same database always maps to the same
// custody accounts.
func NewNode(db storage.Database) *Node {
	return &Node{
		db:           db,
		manager:      state.NewManager(db),
		emitter:      events.NoopEmitter{},
		pauses:       newPauseSet(),
		logger:       slog.Default(),
		nowFn:        func() int64 { return time.Now().Unix() },
		loanCore:     crypto.ModuleAddress(ModuleLoanCore).Raw(),
		vaultAddr:    crypto.ModuleAddress(ModuleVault).Raw(),
		borrowerNote: crypto.ModuleAddress(ModuleBorrowerNote).Raw(),
		lenderNote:   crypto.ModuleAddress(ModuleLenderNote).Raw(),
	}
}

// SetLogger replaces the node's logger. Passing nil restores the default.
func (n *Node) SetLogger(logger *slog.Logger) {
	if logger == nil {
		n.logger = slog.Default()
		return
	}
	n.logger = logger
}

// SetEmitter wires an external event sink. Events are forwarded only after
// the surrounding transaction commits.
func (n *Node) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		n.emitter = events.NoopEmitter{}
		return
	}
	n.emitter = emitter
}

// SetNowFunc overrides the node's time source for tests.
func (n *Node) SetNowFunc(now func() int64) {
	if now == nil {
		n.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	n.nowFn = now
}

// VaultAddress returns the collateral custody account.
func (n *Node) VaultAddress() crypto.Address { return crypto.FromRaw(n.vaultAddr) }

// LoanCoreAddress returns the loan module's caller identity.
func (n *Node) LoanCoreAddress() crypto.Address { return crypto.FromRaw(n.loanCore) }

// Pause halts the named module's mutating operations.
func (n *Node) Pause(module string) { n.pauses.pause(module) }

// Resume lifts a pause.
func (n *Node) Resume(module string) { n.pauses.resume(module) }

// engineSet is one transaction's view of the protocol: every engine is bound
// to the same state overlay and the same buffered emitter.
type engineSet struct {
	assets       *token.Engine
	vault        *vault.Vault
	borrowerNote *note.Registry
	lenderNote   *note.Registry
	loan         *loan.Engine
}

func (n *Node) buildEngines(m *state.Manager, emitter events.Emitter) *engineSet {
	assets := token.NewEngine()
	assets.SetState(m)

	v := vault.New(n.vaultAddr)
	v.SetAssets(assets)
	v.SetLoanCore(n.loanCore)
	v.SetEmitter(emitter)

	borrowerNote := note.NewRegistry(n.borrowerNote)
	borrowerNote.SetState(m)
	borrowerNote.SetMinter(n.loanCore)

	lenderNote := note.NewRegistry(n.lenderNote)
	lenderNote.SetState(m)
	lenderNote.SetMinter(n.loanCore)

	eng := loan.NewEngine(n.loanCore)
	eng.SetState(m)
	eng.SetCollaborators(assets, v, borrowerNote, lenderNote)
	eng.SetPauses(n.pauses)
	eng.SetEmitter(emitter)
	eng.SetNowFunc(n.nowFn)

	return &engineSet{
		assets:       assets,
		vault:        v,
		borrowerNote: borrowerNote,
		lenderNote:   lenderNote,
		loan:         eng,
	}
}

func (n *Node) transact(op string, fn func(*engineSet) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	buffer := &bufferedEmitter{}
	err := n.manager.Transact(func(tx *state.Manager) error {
		return fn(n.buildEngines(tx, buffer))
	})
	if err != nil {
		n.logger.Warn("operation rejected", "op", op, "err", err)
		return err
	}
	buffer.flush(n.emitter, n.logger)
	return nil
}

func (n *Node) view(fn func(*engineSet) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return fn(n.buildEngines(n.manager, events.NoopEmitter{}))
}

// Bootstrap writes the initial protocol configuration on first start: the
// admin, fee treasury and the node's own module addresses. Restarting against
// an initialized database leaves existing configuration untouched.
func (n *Node) Bootstrap(admin, feeTreasury [20]byte) error {
	return n.transact("bootstrap", func(es *engineSet) error {
		if err := es.loan.Bootstrap(admin, feeTreasury); err != nil {
			return err
		}
		params, err := es.loan.Params()
		if err != nil {
			return err
		}
		if params.CollateralVault == ([20]byte{}) {
			if err := es.loan.SetCollateralVault(params.Admin, n.vaultAddr); err != nil {
				return err
			}
		}
		if params.BorrowerNote == ([20]byte{}) || params.LenderNote == ([20]byte{}) {
			if err := es.loan.SetLoanNoteContracts(params.Admin, n.borrowerNote, n.lenderNote); err != nil {
				return err
			}
		}
		return nil
	})
}

// --- Loan operations ---

// StartLoan originates a loan atomically: principal, fee, collateral custody
// and both claim notes either all settle or none do.
func (n *Node) StartLoan(input loan.StartLoanInput) (*loan.Loan, error) {
	var record *loan.Loan
	err := n.transact("loan.start", func(es *engineSet) error {
		var err error
		record, err = es.loan.StartLoan(input)
		return err
	})
	if err != nil {
		return nil, err
	}
	n.logger.Info("loan originated", "id", record.ID, "principal", record.PrincipalAmount)
	observability.LoanMetrics().RecordOriginated()
	return record, nil
}

// RepayLoan settles a live loan on behalf of the borrower-note holder.
func (n *Node) RepayLoan(caller [20]byte, id uint64) error {
	err := n.transact("loan.repay", func(es *engineSet) error {
		return es.loan.Repay(caller, id)
	})
	if err != nil {
		return err
	}
	n.logger.Info("loan repaid", "id", id)
	observability.LoanMetrics().RecordRepaid()
	return nil
}

// ClaimLoan resolves a defaulted loan on behalf of the lender-note holder.
func (n *Node) ClaimLoan(caller [20]byte, id uint64) error {
	err := n.transact("loan.claim", func(es *engineSet) error {
		return es.loan.Claim(caller, id)
	})
	if err != nil {
		return err
	}
	n.logger.Info("loan claimed", "id", id)
	observability.LoanMetrics().RecordClaimed()
	return nil
}

// GetLoan returns the live loan record for id.
func (n *Node) GetLoan(id uint64) (*loan.Loan, error) {
	var record *loan.Loan
	err := n.view(func(es *engineSet) error {
		var err error
		record, err = es.loan.Get(id)
		return err
	})
	return record, err
}

// LoanParams returns the current protocol configuration.
func (n *Node) LoanParams() (*loan.Params, error) {
	var params *loan.Params
	err := n.view(func(es *engineSet) error {
		var err error
		params, err = es.loan.Params()
		return err
	})
	return params, err
}

// WhitelistCurrency permits a denomination contract. Admin only.
func (n *Node) WhitelistCurrency(caller, contract [20]byte, precision *big.Int) error {
	return n.transact("loan.whitelist_currency", func(es *engineSet) error {
		return es.loan.WhitelistCurrency(caller, contract, precision)
	})
}

// Currency returns the whitelist entry for a denomination contract.
func (n *Node) Currency(contract [20]byte) (*loan.Currency, bool, error) {
	var (
		entry *loan.Currency
		ok    bool
	)
	err := n.view(func(es *engineSet) error {
		var err error
		entry, ok, err = es.loan.Currency(contract)
		return err
	})
	return entry, ok, err
}

// SetProcessingFee updates the origination fee. Admin only.
func (n *Node) SetProcessingFee(caller [20]byte, bps uint64) error {
	return n.transact("loan.set_processing_fee", func(es *engineSet) error {
		return es.loan.SetProcessingFee(caller, bps)
	})
}

// SetInterestFee updates the repayment skim. Admin only.
func (n *Node) SetInterestFee(caller [20]byte, bps uint64) error {
	return n.transact("loan.set_interest_fee", func(es *engineSet) error {
		return es.loan.SetInterestFee(caller, bps)
	})
}

// SetCollateralVault overwrites the configured vault address. Admin only.
func (n *Node) SetCollateralVault(caller, vault [20]byte) error {
	return n.transact("loan.set_collateral_vault", func(es *engineSet) error {
		return es.loan.SetCollateralVault(caller, vault)
	})
}

// SetLoanNoteContracts overwrites both note registry addresses. Admin only.
func (n *Node) SetLoanNoteContracts(caller, borrowerNote, lenderNote [20]byte) error {
	return n.transact("loan.set_note_contracts", func(es *engineSet) error {
		return es.loan.SetLoanNoteContracts(caller, borrowerNote, lenderNote)
	})
}

// SetFeeTreasury updates the fee recipient. Admin only.
func (n *Node) SetFeeTreasury(caller, treasury [20]byte) error {
	return n.transact("loan.set_fee_treasury", func(es *engineSet) error {
		return es.loan.SetFeeTreasury(caller, treasury)
	})
}

// --- Token operations ---

// RegisterToken records an asset contract definition.
func (n *Node) RegisterToken(addr [20]byte, standard token.Standard, controller [20]byte) (*token.Contract, error) {
	var contract *token.Contract
	err := n.transact("token.register", func(es *engineSet) error {
		var err error
		contract, err = es.assets.RegisterContract(addr, standard, controller)
		return err
	})
	return contract, err
}

// TransferToken moves fungible units or an NFT between accounts.
func (n *Node) TransferToken(caller, contract, from, to [20]byte, tokenID uint64, amount *big.Int) error {
	return n.transact("token.transfer", func(es *engineSet) error {
		return es.assets.Transfer(caller, contract, from, to, tokenID, amount)
	})
}

// UpdateTokenOperator adds or removes a transfer approval.
func (n *Node) UpdateTokenOperator(caller, contract [20]byte, key token.OperatorKey, add bool) error {
	return n.transact("token.update_operator", func(es *engineSet) error {
		return es.assets.UpdateOperator(caller, contract, key, add)
	})
}

// MintToken credits fungible units. Controller only.
func (n *Node) MintToken(caller, contract, to [20]byte, tokenID uint64, amount *big.Int) error {
	return n.transact("token.mint", func(es *engineSet) error {
		return es.assets.Mint(caller, contract, to, tokenID, amount)
	})
}

// MintNFT issues the next NFT unit of a contract. Controller only.
func (n *Node) MintNFT(caller, contract, to [20]byte) (uint64, error) {
	var tokenID uint64
	err := n.transact("token.mint_nft", func(es *engineSet) error {
		var err error
		tokenID, err = es.assets.MintNFT(caller, contract, to)
		return err
	})
	return tokenID, err
}

// TokenBalance returns the fungible balance of (contract, owner, tokenID).
func (n *Node) TokenBalance(contract, owner [20]byte, tokenID uint64) (*big.Int, error) {
	var balance *big.Int
	err := n.view(func(es *engineSet) error {
		var err error
		balance, err = es.assets.BalanceOf(contract, owner, tokenID)
		return err
	})
	return balance, err
}

// TokenOwner returns the current owner of an NFT unit.
func (n *Node) TokenOwner(contract [20]byte, tokenID uint64) ([20]byte, bool, error) {
	var (
		owner [20]byte
		ok    bool
	)
	err := n.view(func(es *engineSet) error {
		var err error
		owner, ok, err = es.assets.OwnerOf(contract, tokenID)
		return err
	})
	return owner, ok, err
}

// --- Note operations ---

// TransferBorrowerNote moves the repayment right for a loan to a new holder.
func (n *Node) TransferBorrowerNote(caller, from, to [20]byte, loanID uint64) error {
	return n.transact("note.transfer_borrower", func(es *engineSet) error {
		return es.borrowerNote.Transfer(caller, from, to, loanID)
	})
}

// TransferLenderNote moves the claim right for a loan to a new holder.
func (n *Node) TransferLenderNote(caller, from, to [20]byte, loanID uint64) error {
	return n.transact("note.transfer_lender", func(es *engineSet) error {
		return es.lenderNote.Transfer(caller, from, to, loanID)
	})
}

// UpdateBorrowerNoteOperator adds or removes a borrower-note approval.
func (n *Node) UpdateBorrowerNoteOperator(caller [20]byte, key note.OperatorKey, add bool) error {
	return n.transact("note.update_borrower_operator", func(es *engineSet) error {
		return es.borrowerNote.UpdateOperator(caller, key, add)
	})
}

// UpdateLenderNoteOperator adds or removes a lender-note approval.
func (n *Node) UpdateLenderNoteOperator(caller [20]byte, key note.OperatorKey, add bool) error {
	return n.transact("note.update_lender_operator", func(es *engineSet) error {
		return es.lenderNote.UpdateOperator(caller, key, add)
	})
}

// BorrowerNoteOwner reports the holder of a loan's borrower note.
func (n *Node) BorrowerNoteOwner(loanID uint64) ([20]byte, bool, error) {
	var (
		owner [20]byte
		ok    bool
	)
	err := n.view(func(es *engineSet) error {
		var err error
		owner, ok, err = es.borrowerNote.OwnerOf(loanID)
		return err
	})
	return owner, ok, err
}

// LenderNoteOwner reports the holder of a loan's lender note.
func (n *Node) LenderNoteOwner(loanID uint64) ([20]byte, bool, error) {
	var (
		owner [20]byte
		ok    bool
	)
	err := n.view(func(es *engineSet) error {
		var err error
		owner, ok, err = es.lenderNote.OwnerOf(loanID)
		return err
	})
	return owner, ok, err
}

// --- Supporting types ---

// pauseSet is a concurrency-safe module pause table.
type pauseSet struct {
	mu     sync.RWMutex
	paused map[string]bool
}

func newPauseSet() *pauseSet {
	return &pauseSet{paused: make(map[string]bool)}
}

func (p *pauseSet) pause(module string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused[module] = true
}

func (p *pauseSet) resume(module string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.paused, module)
}

// IsPaused implements nativecommon.PauseView.
func (p *pauseSet) IsPaused(module string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused[module]
}

// bufferedEmitter holds events raised inside a transaction until it commits.
// Aborted transactions drop their events with their writes.
type bufferedEmitter struct {
	buffer []events.Event
}

func (b *bufferedEmitter) Emit(evt events.Event) {
	b.buffer = append(b.buffer, evt)
}

func (b *bufferedEmitter) flush(sink events.Emitter, logger *slog.Logger) {
	for _, evt := range b.buffer {
		if logger != nil {
			if carrier, ok := evt.(interface{ Event() *types.Event }); ok && carrier.Event() != nil {
				logger.Debug("event", "type", evt.EventType(), "attributes", carrier.Event().Attributes)
			} else {
				logger.Debug("event", "type", evt.EventType())
			}
		}
		if sink != nil {
			sink.Emit(evt)
		}
	}
	b.buffer = nil
}
