package vault

import (
	"errors"
	"math/big"
	"testing"

	"loanchain/core/events"
)

type transferCall struct {
	caller   [20]byte
	contract [20]byte
	from     [20]byte
	to       [20]byte
	tokenID  uint64
	amount   *big.Int
}

type mockAssets struct {
	calls []transferCall
	err   error
}

func (m *mockAssets) Transfer(caller, contract, from, to [20]byte, tokenID uint64, amount *big.Int) error {
	if m.err != nil {
		return m.err
	}
	m.calls = append(m.calls, transferCall{caller, contract, from, to, tokenID, new(big.Int).Set(amount)})
	return nil
}

type capturingEmitter struct {
	events []events.Event
}

func (c *capturingEmitter) Emit(evt events.Event) {
	c.events = append(c.events, evt)
}

func addr(fill byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = fill
	}
	return out
}

func TestLockRequiresLoanCoreCaller(t *testing.T) {
	assets := &mockAssets{}
	v := New(addr(0xEE))
	v.SetAssets(assets)
	v.SetLoanCore(addr(0x01))

	if err := v.Lock(addr(0x02), addr(0x10), 0, addr(0x0A)); !errors.Is(err, ErrUnauthorizedCaller) {
		t.Fatalf("expected ErrUnauthorizedCaller, got %v", err)
	}
	if len(assets.calls) != 0 {
		t.Fatal("unauthorized lock must not move assets")
	}
}

func TestLockMovesCollateralIntoCustody(t *testing.T) {
	assets := &mockAssets{}
	emitter := &capturingEmitter{}
	v := New(addr(0xEE))
	v.SetAssets(assets)
	v.SetLoanCore(addr(0x01))
	v.SetEmitter(emitter)

	if err := v.Lock(addr(0x01), addr(0x10), 5, addr(0x0A)); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if len(assets.calls) != 1 {
		t.Fatalf("expected one transfer, got %d", len(assets.calls))
	}
	call := assets.calls[0]
	if call.from != addr(0x0A) || call.to != v.Address() || call.caller != v.Address() {
		t.Fatalf("unexpected transfer legs: %+v", call)
	}
	if call.amount.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("collateral transfers must move a single unit, got %s", call.amount)
	}
	if len(emitter.events) != 1 || emitter.events[0].EventType() != EventTypeCollateralLocked {
		t.Fatalf("expected locked event, got %+v", emitter.events)
	}
}

func TestReleaseHandsCollateralToRecipient(t *testing.T) {
	assets := &mockAssets{}
	emitter := &capturingEmitter{}
	v := New(addr(0xEE))
	v.SetAssets(assets)
	v.SetLoanCore(addr(0x01))
	v.SetEmitter(emitter)

	if err := v.Release(addr(0x01), addr(0x10), 5, addr(0x0B)); err != nil {
		t.Fatalf("release: %v", err)
	}
	call := assets.calls[0]
	if call.from != v.Address() || call.to != addr(0x0B) {
		t.Fatalf("unexpected transfer legs: %+v", call)
	}
	if emitter.events[0].EventType() != EventTypeCollateralReleased {
		t.Fatalf("expected released event, got %q", emitter.events[0].EventType())
	}
}

func TestTransferFailurePropagates(t *testing.T) {
	boom := errors.New("boom")
	assets := &mockAssets{err: boom}
	v := New(addr(0xEE))
	v.SetAssets(assets)
	v.SetLoanCore(addr(0x01))

	if err := v.Lock(addr(0x01), addr(0x10), 0, addr(0x0A)); !errors.Is(err, boom) {
		t.Fatalf("expected propagated error, got %v", err)
	}
}
