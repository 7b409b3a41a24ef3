package state

import (
	"encoding/binary"
	"errors"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"loanchain/native/loan"
	"loanchain/native/note"
	"loanchain/native/token"
	"loanchain/storage"
)

// KV is the subset of storage.Database the manager needs. Overlays implement
// it too, which is what allows transactions to nest.
type KV interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Delete(key []byte) error
}

// Manager persists protocol state in a key-value store. Keys are keccak
// hashes of a readable prefix plus the record identity; values are
// RLP-encoded records. It implements the state interfaces of the loan, token
// and note engines.
type Manager struct {
	kv KV
}

// NewManager creates a state manager operating on the provided store.
func NewManager(kv KV) *Manager {
	return &Manager{kv: kv}
}

// Transact runs fn against a copy-on-write overlay of the underlying store.
// Writes reach the store only when fn returns nil; on error every pending
// write is discarded. Loan operations run inside Transact so a failing
// settlement leg can never leave partial state behind.
func (m *Manager) Transact(fn func(*Manager) error) error {
	ov := newOverlay(m.kv)
	if err := fn(NewManager(ov)); err != nil {
		return err
	}
	return ov.commit()
}

var (
	loanRecordPrefix    = []byte("loan/record:")
	loanNextIDKey       = ethcrypto.Keccak256([]byte("loan/next-id"))
	loanParamsKey       = ethcrypto.Keccak256([]byte("loan/params"))
	loanCurrencyPrefix  = []byte("loan/currency:")
	tokenContractPrefix = []byte("token/contract:")
	tokenBalancePrefix  = []byte("token/balance:")
	tokenSupplyPrefix   = []byte("token/supply:")
	tokenOwnerPrefix    = []byte("token/owner:")
	tokenOperatorPrefix = []byte("token/operator:")
	noteOwnerPrefix     = []byte("note/owner:")
	noteOperatorPrefix  = []byte("note/operator:")
)

func hashKey(prefix []byte, parts ...[]byte) []byte {
	buf := append([]byte(nil), prefix...)
	for _, part := range parts {
		buf = append(buf, part...)
	}
	return ethcrypto.Keccak256(buf)
}

func uint64Bytes(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func (m *Manager) read(key []byte) ([]byte, bool, error) {
	data, err := m.kv.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (m *Manager) readBigInt(key []byte) (*big.Int, error) {
	data, ok, err := m.read(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	value := new(big.Int)
	if err := rlp.DecodeBytes(data, value); err != nil {
		return nil, err
	}
	return value, nil
}

func (m *Manager) writeBigInt(key []byte, value *big.Int) error {
	if value == nil {
		value = big.NewInt(0)
	}
	if value.Sign() == 0 {
		return m.kv.Delete(key)
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.kv.Put(key, encoded)
}

// --- loan.Engine state ---

// storedLoan mirrors loan.Loan with RLP-friendly unsigned time fields. The
// engine guarantees both values are non-negative before persisting.
type storedLoan struct {
	ID                     uint64
	DenominationContract   [20]byte
	DenominationTokenID    uint64
	PrincipalAmount        *big.Int
	MaximumInterest        *big.Int
	CollateralContract     [20]byte
	CollateralTokenID      uint64
	OriginationTime        uint64
	Duration               uint64
	TimeAdjustableInterest bool
}

func loanRecordKey(id uint64) []byte {
	return hashKey(loanRecordPrefix, uint64Bytes(id))
}

func (m *Manager) LoanGet(id uint64) (*loan.Loan, bool, error) {
	data, ok, err := m.read(loanRecordKey(id))
	if err != nil || !ok {
		return nil, false, err
	}
	stored := new(storedLoan)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false, err
	}
	record := &loan.Loan{
		ID:                     stored.ID,
		DenominationContract:   stored.DenominationContract,
		DenominationTokenID:    stored.DenominationTokenID,
		PrincipalAmount:        stored.PrincipalAmount,
		MaximumInterest:        stored.MaximumInterest,
		CollateralContract:     stored.CollateralContract,
		CollateralTokenID:      stored.CollateralTokenID,
		OriginationTime:        int64(stored.OriginationTime),
		Duration:               int64(stored.Duration),
		TimeAdjustableInterest: stored.TimeAdjustableInterest,
	}
	return record, true, nil
}

func (m *Manager) LoanPut(l *loan.Loan) error {
	sanitized, err := loan.SanitizeLoan(l)
	if err != nil {
		return err
	}
	if sanitized.OriginationTime < 0 {
		return errors.New("state: loan origination time must be non-negative")
	}
	stored := &storedLoan{
		ID:                     sanitized.ID,
		DenominationContract:   sanitized.DenominationContract,
		DenominationTokenID:    sanitized.DenominationTokenID,
		PrincipalAmount:        sanitized.PrincipalAmount,
		MaximumInterest:        sanitized.MaximumInterest,
		CollateralContract:     sanitized.CollateralContract,
		CollateralTokenID:      sanitized.CollateralTokenID,
		OriginationTime:        uint64(sanitized.OriginationTime),
		Duration:               uint64(sanitized.Duration),
		TimeAdjustableInterest: sanitized.TimeAdjustableInterest,
	}
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return err
	}
	return m.kv.Put(loanRecordKey(sanitized.ID), encoded)
}

func (m *Manager) LoanDelete(id uint64) error {
	return m.kv.Delete(loanRecordKey(id))
}

func (m *Manager) LoanNextID() (uint64, error) {
	data, ok, err := m.read(loanNextIDKey)
	if err != nil || !ok {
		return 0, err
	}
	var id uint64
	if err := rlp.DecodeBytes(data, &id); err != nil {
		return 0, err
	}
	return id, nil
}

func (m *Manager) LoanSetNextID(id uint64) error {
	encoded, err := rlp.EncodeToBytes(id)
	if err != nil {
		return err
	}
	return m.kv.Put(loanNextIDKey, encoded)
}

func (m *Manager) LoanParamsGet() (*loan.Params, bool, error) {
	data, ok, err := m.read(loanParamsKey)
	if err != nil || !ok {
		return nil, false, err
	}
	params := new(loan.Params)
	if err := rlp.DecodeBytes(data, params); err != nil {
		return nil, false, err
	}
	return params, true, nil
}

func (m *Manager) LoanParamsPut(p *loan.Params) error {
	if p == nil {
		return errors.New("state: nil loan params")
	}
	encoded, err := rlp.EncodeToBytes(p)
	if err != nil {
		return err
	}
	return m.kv.Put(loanParamsKey, encoded)
}

type storedCurrency struct {
	Contract  [20]byte
	Permitted bool
	Precision *big.Int
}

func (m *Manager) CurrencyGet(contract [20]byte) (*loan.Currency, bool, error) {
	data, ok, err := m.read(hashKey(loanCurrencyPrefix, contract[:]))
	if err != nil || !ok {
		return nil, false, err
	}
	stored := new(storedCurrency)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false, err
	}
	return &loan.Currency{Contract: stored.Contract, Permitted: stored.Permitted, Precision: stored.Precision}, true, nil
}

func (m *Manager) CurrencyPut(c *loan.Currency) error {
	if c == nil {
		return errors.New("state: nil currency")
	}
	clone := c.Clone()
	encoded, err := rlp.EncodeToBytes(&storedCurrency{Contract: clone.Contract, Permitted: clone.Permitted, Precision: clone.Precision})
	if err != nil {
		return err
	}
	return m.kv.Put(hashKey(loanCurrencyPrefix, clone.Contract[:]), encoded)
}

// --- token.Engine state ---

func (m *Manager) TokenContractGet(addr [20]byte) (*token.Contract, bool, error) {
	data, ok, err := m.read(hashKey(tokenContractPrefix, addr[:]))
	if err != nil || !ok {
		return nil, false, err
	}
	contract := new(token.Contract)
	if err := rlp.DecodeBytes(data, contract); err != nil {
		return nil, false, err
	}
	return contract, true, nil
}

func (m *Manager) TokenContractPut(c *token.Contract) error {
	sanitized, err := token.SanitizeContract(c)
	if err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(sanitized)
	if err != nil {
		return err
	}
	return m.kv.Put(hashKey(tokenContractPrefix, sanitized.Address[:]), encoded)
}

func tokenBalanceKey(contract, owner [20]byte, tokenID uint64) []byte {
	return hashKey(tokenBalancePrefix, contract[:], owner[:], uint64Bytes(tokenID))
}

func (m *Manager) TokenBalanceGet(contract, owner [20]byte, tokenID uint64) (*big.Int, error) {
	return m.readBigInt(tokenBalanceKey(contract, owner, tokenID))
}

func (m *Manager) TokenBalancePut(contract, owner [20]byte, tokenID uint64, amount *big.Int) error {
	return m.writeBigInt(tokenBalanceKey(contract, owner, tokenID), amount)
}

func (m *Manager) TokenSupplyGet(contract [20]byte, tokenID uint64) (*big.Int, error) {
	return m.readBigInt(hashKey(tokenSupplyPrefix, contract[:], uint64Bytes(tokenID)))
}

func (m *Manager) TokenSupplyPut(contract [20]byte, tokenID uint64, amount *big.Int) error {
	return m.writeBigInt(hashKey(tokenSupplyPrefix, contract[:], uint64Bytes(tokenID)), amount)
}

func (m *Manager) TokenOwnerGet(contract [20]byte, tokenID uint64) ([20]byte, bool, error) {
	data, ok, err := m.read(hashKey(tokenOwnerPrefix, contract[:], uint64Bytes(tokenID)))
	if err != nil || !ok {
		return [20]byte{}, false, err
	}
	var owner [20]byte
	if err := rlp.DecodeBytes(data, &owner); err != nil {
		return [20]byte{}, false, err
	}
	return owner, true, nil
}

func (m *Manager) TokenOwnerPut(contract [20]byte, tokenID uint64, owner [20]byte) error {
	encoded, err := rlp.EncodeToBytes(owner)
	if err != nil {
		return err
	}
	return m.kv.Put(hashKey(tokenOwnerPrefix, contract[:], uint64Bytes(tokenID)), encoded)
}

func (m *Manager) TokenOwnerDelete(contract [20]byte, tokenID uint64) error {
	return m.kv.Delete(hashKey(tokenOwnerPrefix, contract[:], uint64Bytes(tokenID)))
}

func tokenOperatorKey(contract [20]byte, key token.OperatorKey) []byte {
	return hashKey(tokenOperatorPrefix, contract[:], key.Owner[:], key.Operator[:], uint64Bytes(key.TokenID))
}

func (m *Manager) TokenOperatorHas(contract [20]byte, key token.OperatorKey) (bool, error) {
	_, ok, err := m.read(tokenOperatorKey(contract, key))
	return ok, err
}

func (m *Manager) TokenOperatorPut(contract [20]byte, key token.OperatorKey) error {
	return m.kv.Put(tokenOperatorKey(contract, key), []byte{0x01})
}

func (m *Manager) TokenOperatorDelete(contract [20]byte, key token.OperatorKey) error {
	return m.kv.Delete(tokenOperatorKey(contract, key))
}

// --- note.Registry state ---

func noteOwnerStateKey(contract [20]byte, loanID uint64) []byte {
	return hashKey(noteOwnerPrefix, contract[:], uint64Bytes(loanID))
}

func (m *Manager) NoteOwnerGet(contract [20]byte, loanID uint64) ([20]byte, bool, error) {
	data, ok, err := m.read(noteOwnerStateKey(contract, loanID))
	if err != nil || !ok {
		return [20]byte{}, false, err
	}
	var owner [20]byte
	if err := rlp.DecodeBytes(data, &owner); err != nil {
		return [20]byte{}, false, err
	}
	return owner, true, nil
}

func (m *Manager) NoteOwnerPut(contract [20]byte, loanID uint64, owner [20]byte) error {
	encoded, err := rlp.EncodeToBytes(owner)
	if err != nil {
		return err
	}
	return m.kv.Put(noteOwnerStateKey(contract, loanID), encoded)
}

func (m *Manager) NoteOwnerDelete(contract [20]byte, loanID uint64) error {
	return m.kv.Delete(noteOwnerStateKey(contract, loanID))
}

func noteOperatorStateKey(contract [20]byte, key note.OperatorKey) []byte {
	return hashKey(noteOperatorPrefix, contract[:], key.Owner[:], key.Operator[:], uint64Bytes(key.LoanID))
}

func (m *Manager) NoteOperatorHas(contract [20]byte, key note.OperatorKey) (bool, error) {
	_, ok, err := m.read(noteOperatorStateKey(contract, key))
	return ok, err
}

func (m *Manager) NoteOperatorPut(contract [20]byte, key note.OperatorKey) error {
	return m.kv.Put(noteOperatorStateKey(contract, key), []byte{0x01})
}

func (m *Manager) NoteOperatorDelete(contract [20]byte, key note.OperatorKey) error {
	return m.kv.Delete(noteOperatorStateKey(contract, key))
}
