package state

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"loanchain/native/loan"
	"loanchain/native/note"
	"loanchain/native/token"
	"loanchain/storage"
)

func testAddr(fill byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = fill
	}
	return out
}

func TestLoanRecordRoundTrip(t *testing.T) {
	manager := NewManager(storage.NewMemDB())

	record := &loan.Loan{
		ID:                     3,
		DenominationContract:   testAddr(0x10),
		DenominationTokenID:    0,
		PrincipalAmount:        big.NewInt(100),
		MaximumInterest:        big.NewInt(5),
		CollateralContract:     testAddr(0x20),
		CollateralTokenID:      7,
		OriginationTime:        1_700_000_000,
		Duration:               3600,
		TimeAdjustableInterest: true,
	}
	require.NoError(t, manager.LoanPut(record))

	got, ok, err := manager.LoanGet(3)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, record, got)

	require.NoError(t, manager.LoanDelete(3))
	_, ok, err = manager.LoanGet(3)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLoanPutRejectsInvalidRecords(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	require.Error(t, manager.LoanPut(&loan.Loan{ID: 0, PrincipalAmount: big.NewInt(0), Duration: 10}))
	require.Error(t, manager.LoanPut(&loan.Loan{ID: 0, PrincipalAmount: big.NewInt(1), Duration: 0}))
}

func TestLoanNextIDDefaultsToZero(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	id, err := manager.LoanNextID()
	require.NoError(t, err)
	require.Zero(t, id)

	require.NoError(t, manager.LoanSetNextID(9))
	id, err = manager.LoanNextID()
	require.NoError(t, err)
	require.EqualValues(t, 9, id)
}

func TestParamsAndCurrencyRoundTrip(t *testing.T) {
	manager := NewManager(storage.NewMemDB())

	_, ok, err := manager.LoanParamsGet()
	require.NoError(t, err)
	require.False(t, ok)

	params := &loan.Params{
		Admin:            testAddr(0x01),
		ProcessingFeeBps: 100,
		InterestFeeBps:   1000,
		FeeTreasury:      testAddr(0x02),
		CollateralVault:  testAddr(0x03),
		BorrowerNote:     testAddr(0x04),
		LenderNote:       testAddr(0x05),
	}
	require.NoError(t, manager.LoanParamsPut(params))
	got, ok, err := manager.LoanParamsGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, params, got)

	precision := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	entry := &loan.Currency{Contract: testAddr(0x10), Permitted: true, Precision: precision}
	require.NoError(t, manager.CurrencyPut(entry))
	currency, ok, err := manager.CurrencyGet(testAddr(0x10))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, currency.Permitted)
	require.Zero(t, currency.Precision.Cmp(precision))

	_, ok, err = manager.CurrencyGet(testAddr(0x11))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTokenStateRoundTrip(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	contract := testAddr(0x10)

	require.NoError(t, manager.TokenContractPut(&token.Contract{
		Address:    contract,
		Standard:   token.StandardFungible,
		Controller: testAddr(0x01),
	}))
	got, ok, err := manager.TokenContractGet(contract)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, token.StandardFungible, got.Standard)

	require.NoError(t, manager.TokenBalancePut(contract, testAddr(0x0A), 0, big.NewInt(42)))
	balance, err := manager.TokenBalanceGet(contract, testAddr(0x0A), 0)
	require.NoError(t, err)
	require.EqualValues(t, 42, balance.Int64())

	// Zero balances are deleted rather than stored.
	require.NoError(t, manager.TokenBalancePut(contract, testAddr(0x0A), 0, big.NewInt(0)))
	balance, err = manager.TokenBalanceGet(contract, testAddr(0x0A), 0)
	require.NoError(t, err)
	require.Zero(t, balance.Sign())

	require.NoError(t, manager.TokenOwnerPut(contract, 5, testAddr(0x0B)))
	owner, ok, err := manager.TokenOwnerGet(contract, 5)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, testAddr(0x0B), owner)
	require.NoError(t, manager.TokenOwnerDelete(contract, 5))
	_, ok, err = manager.TokenOwnerGet(contract, 5)
	require.NoError(t, err)
	require.False(t, ok)

	key := token.OperatorKey{Owner: testAddr(0x0A), Operator: testAddr(0x0C), TokenID: 0}
	has, err := manager.TokenOperatorHas(contract, key)
	require.NoError(t, err)
	require.False(t, has)
	require.NoError(t, manager.TokenOperatorPut(contract, key))
	has, err = manager.TokenOperatorHas(contract, key)
	require.NoError(t, err)
	require.True(t, has)
}

func TestNoteStateRoundTrip(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	contract := testAddr(0x30)

	require.NoError(t, manager.NoteOwnerPut(contract, 1, testAddr(0x0A)))
	owner, ok, err := manager.NoteOwnerGet(contract, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, testAddr(0x0A), owner)

	key := note.OperatorKey{Owner: testAddr(0x0A), Operator: testAddr(0x0B), LoanID: 1}
	require.NoError(t, manager.NoteOperatorPut(contract, key))
	has, err := manager.NoteOperatorHas(contract, key)
	require.NoError(t, err)
	require.True(t, has)
	require.NoError(t, manager.NoteOperatorDelete(contract, key))
	has, err = manager.NoteOperatorHas(contract, key)
	require.NoError(t, err)
	require.False(t, has)

	require.NoError(t, manager.NoteOwnerDelete(contract, 1))
	_, ok, err = manager.NoteOwnerGet(contract, 1)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTransactDiscardsWritesOnError(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	boom := errors.New("boom")

	err := manager.Transact(func(tx *Manager) error {
		if err := tx.LoanSetNextID(5); err != nil {
			return err
		}
		if err := tx.NoteOwnerPut(testAddr(0x30), 0, testAddr(0x0A)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	id, err := manager.LoanNextID()
	require.NoError(t, err)
	require.Zero(t, id)
	_, ok, err := manager.NoteOwnerGet(testAddr(0x30), 0)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTransactCommitsWritesAndDeletes(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	require.NoError(t, manager.NoteOwnerPut(testAddr(0x30), 0, testAddr(0x0A)))

	err := manager.Transact(func(tx *Manager) error {
		if err := tx.LoanSetNextID(7); err != nil {
			return err
		}
		return tx.NoteOwnerDelete(testAddr(0x30), 0)
	})
	require.NoError(t, err)

	id, err := manager.LoanNextID()
	require.NoError(t, err)
	require.EqualValues(t, 7, id)
	_, ok, err := manager.NoteOwnerGet(testAddr(0x30), 0)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTransactReadsSeePendingWrites(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	err := manager.Transact(func(tx *Manager) error {
		if err := tx.LoanSetNextID(3); err != nil {
			return err
		}
		id, err := tx.LoanNextID()
		if err != nil {
			return err
		}
		require.EqualValues(t, 3, id)
		return nil
	})
	require.NoError(t, err)
}
