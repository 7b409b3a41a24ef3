package token

import (
	"errors"
	"math/big"
	"testing"
)

type balanceKey struct {
	contract [20]byte
	owner    [20]byte
	tokenID  uint64
}

type supplyKey struct {
	contract [20]byte
	tokenID  uint64
}

type ownerKey struct {
	contract [20]byte
	tokenID  uint64
}

type operatorEntry struct {
	contract [20]byte
	key      OperatorKey
}

type mockState struct {
	contracts map[[20]byte]*Contract
	balances  map[balanceKey]*big.Int
	supplies  map[supplyKey]*big.Int
	owners    map[ownerKey][20]byte
	operators map[operatorEntry]struct{}
}

func newMockState() *mockState {
	return &mockState{
		contracts: make(map[[20]byte]*Contract),
		balances:  make(map[balanceKey]*big.Int),
		supplies:  make(map[supplyKey]*big.Int),
		owners:    make(map[ownerKey][20]byte),
		operators: make(map[operatorEntry]struct{}),
	}
}

func (m *mockState) TokenContractGet(addr [20]byte) (*Contract, bool, error) {
	c, ok := m.contracts[addr]
	if !ok {
		return nil, false, nil
	}
	return c.Clone(), true, nil
}

func (m *mockState) TokenContractPut(c *Contract) error {
	sanitized, err := SanitizeContract(c)
	if err != nil {
		return err
	}
	m.contracts[sanitized.Address] = sanitized
	return nil
}

func (m *mockState) TokenBalanceGet(contract, owner [20]byte, tokenID uint64) (*big.Int, error) {
	if bal, ok := m.balances[balanceKey{contract, owner, tokenID}]; ok {
		return new(big.Int).Set(bal), nil
	}
	return big.NewInt(0), nil
}

func (m *mockState) TokenBalancePut(contract, owner [20]byte, tokenID uint64, amount *big.Int) error {
	m.balances[balanceKey{contract, owner, tokenID}] = new(big.Int).Set(amount)
	return nil
}

func (m *mockState) TokenSupplyGet(contract [20]byte, tokenID uint64) (*big.Int, error) {
	if s, ok := m.supplies[supplyKey{contract, tokenID}]; ok {
		return new(big.Int).Set(s), nil
	}
	return big.NewInt(0), nil
}

func (m *mockState) TokenSupplyPut(contract [20]byte, tokenID uint64, amount *big.Int) error {
	m.supplies[supplyKey{contract, tokenID}] = new(big.Int).Set(amount)
	return nil
}

func (m *mockState) TokenOwnerGet(contract [20]byte, tokenID uint64) ([20]byte, bool, error) {
	owner, ok := m.owners[ownerKey{contract, tokenID}]
	return owner, ok, nil
}

func (m *mockState) TokenOwnerPut(contract [20]byte, tokenID uint64, owner [20]byte) error {
	m.owners[ownerKey{contract, tokenID}] = owner
	return nil
}

func (m *mockState) TokenOwnerDelete(contract [20]byte, tokenID uint64) error {
	delete(m.owners, ownerKey{contract, tokenID})
	return nil
}

func (m *mockState) TokenOperatorHas(contract [20]byte, key OperatorKey) (bool, error) {
	_, ok := m.operators[operatorEntry{contract, key}]
	return ok, nil
}

func (m *mockState) TokenOperatorPut(contract [20]byte, key OperatorKey) error {
	m.operators[operatorEntry{contract, key}] = struct{}{}
	return nil
}

func (m *mockState) TokenOperatorDelete(contract [20]byte, key OperatorKey) error {
	delete(m.operators, operatorEntry{contract, key})
	return nil
}

func addr(fill byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = fill
	}
	return out
}

func newFungible(t *testing.T, e *Engine, contract, controller [20]byte) {
	t.Helper()
	if _, err := e.RegisterContract(contract, StandardFungible, controller); err != nil {
		t.Fatalf("register fungible: %v", err)
	}
}

func TestRegisterContractIdempotent(t *testing.T) {
	engine := NewEngine()
	engine.SetState(newMockState())
	contract, controller := addr(0x01), addr(0x02)
	newFungible(t, engine, contract, controller)
	if _, err := engine.RegisterContract(contract, StandardFungible, controller); err != nil {
		t.Fatalf("identical re-registration should succeed: %v", err)
	}
	if _, err := engine.RegisterContract(contract, StandardNFT, controller); !errors.Is(err, ErrContractExists) {
		t.Fatalf("expected ErrContractExists, got %v", err)
	}
}

func TestMintTransferBurnFungible(t *testing.T) {
	state := newMockState()
	engine := NewEngine()
	engine.SetState(state)
	contract, controller := addr(0x01), addr(0x02)
	alice, bob := addr(0x0A), addr(0x0B)
	newFungible(t, engine, contract, controller)

	if err := engine.Mint(alice, contract, alice, 0, big.NewInt(100)); !errors.Is(err, ErrNotController) {
		t.Fatalf("expected ErrNotController, got %v", err)
	}
	if err := engine.Mint(controller, contract, alice, 0, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := engine.Transfer(bob, contract, alice, bob, 0, big.NewInt(10)); !errors.Is(err, ErrNotOperator) {
		t.Fatalf("expected ErrNotOperator, got %v", err)
	}
	if err := engine.Transfer(alice, contract, alice, bob, 0, big.NewInt(10)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := engine.Transfer(alice, contract, alice, bob, 0, big.NewInt(1_000)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	aliceBal, err := engine.BalanceOf(contract, alice, 0)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if aliceBal.Cmp(big.NewInt(90)) != 0 {
		t.Fatalf("unexpected alice balance %s", aliceBal)
	}

	if err := engine.Burn(controller, contract, bob, 0, big.NewInt(10)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	supply, err := state.TokenSupplyGet(contract, 0)
	if err != nil {
		t.Fatalf("supply: %v", err)
	}
	if supply.Cmp(big.NewInt(90)) != 0 {
		t.Fatalf("unexpected supply %s", supply)
	}
}

func TestOperatorApprovalControlsTransfer(t *testing.T) {
	engine := NewEngine()
	engine.SetState(newMockState())
	contract, controller := addr(0x01), addr(0x02)
	alice, operator, bob := addr(0x0A), addr(0x0C), addr(0x0B)
	newFungible(t, engine, contract, controller)
	if err := engine.Mint(controller, contract, alice, 0, big.NewInt(50)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	key := OperatorKey{Owner: alice, Operator: operator, TokenID: 0}
	if err := engine.UpdateOperator(operator, contract, key, true); !errors.Is(err, ErrNotOperator) {
		t.Fatalf("only the owner may approve, got %v", err)
	}
	if err := engine.UpdateOperator(alice, contract, key, true); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := engine.Transfer(operator, contract, alice, bob, 0, big.NewInt(5)); err != nil {
		t.Fatalf("operator transfer: %v", err)
	}
	if err := engine.UpdateOperator(alice, contract, key, false); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := engine.Transfer(operator, contract, alice, bob, 0, big.NewInt(5)); !errors.Is(err, ErrNotOperator) {
		t.Fatalf("expected ErrNotOperator after revoke, got %v", err)
	}
}

func TestNFTLifecycle(t *testing.T) {
	engine := NewEngine()
	engine.SetState(newMockState())
	contract, controller := addr(0x03), addr(0x02)
	alice, bob := addr(0x0A), addr(0x0B)
	if _, err := engine.RegisterContract(contract, StandardNFT, controller); err != nil {
		t.Fatalf("register nft: %v", err)
	}

	id, err := engine.MintNFT(controller, contract, alice)
	if err != nil {
		t.Fatalf("mint nft: %v", err)
	}
	if id != 0 {
		t.Fatalf("first token id should be 0, got %d", id)
	}
	second, err := engine.MintNFT(controller, contract, bob)
	if err != nil {
		t.Fatalf("mint nft: %v", err)
	}
	if second != 1 {
		t.Fatalf("token ids must increase, got %d", second)
	}

	if err := engine.Transfer(alice, contract, alice, bob, id, big.NewInt(1)); err != nil {
		t.Fatalf("nft transfer: %v", err)
	}
	owner, ok, err := engine.OwnerOf(contract, id)
	if err != nil || !ok {
		t.Fatalf("owner of: %v ok=%v", err, ok)
	}
	if owner != bob {
		t.Fatalf("unexpected owner %x", owner)
	}
	if err := engine.Transfer(alice, contract, alice, bob, id, big.NewInt(1)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("stale owner must not transfer, got %v", err)
	}

	if err := engine.BurnNFT(controller, contract, id); err != nil {
		t.Fatalf("burn nft: %v", err)
	}
	if _, ok, _ := engine.OwnerOf(contract, id); ok {
		t.Fatal("burned token still has an owner")
	}
	if err := engine.BurnNFT(controller, contract, id); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken, got %v", err)
	}
}
