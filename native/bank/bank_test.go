package bank

import (
	"errors"
	"math/big"
	"testing"

	"cookledger/core/events"
	"cookledger/crypto"
)

type mockLedgerState struct {
	balances   map[string]*big.Int
	allowances map[string]*big.Int
	supply     map[string]*big.Int
}

func newMockLedgerState() *mockLedgerState {
	return &mockLedgerState{
		balances:   make(map[string]*big.Int),
		allowances: make(map[string]*big.Int),
		supply:     make(map[string]*big.Int),
	}
}

func (m *mockLedgerState) GetBalance(symbol string, addr crypto.Address) (*big.Int, error) {
	return m.balances[symbol+string(addr.Bytes())], nil
}

func (m *mockLedgerState) PutBalance(symbol string, addr crypto.Address, amount *big.Int) error {
	m.balances[symbol+string(addr.Bytes())] = amount
	return nil
}

func (m *mockLedgerState) GetAllowance(symbol string, owner, spender crypto.Address) (*big.Int, error) {
	return m.allowances[symbol+string(owner.Bytes())+string(spender.Bytes())], nil
}

func (m *mockLedgerState) PutAllowance(symbol string, owner, spender crypto.Address, amount *big.Int) error {
	m.allowances[symbol+string(owner.Bytes())+string(spender.Bytes())] = amount
	return nil
}

func (m *mockLedgerState) GetSupply(symbol string) (*big.Int, error) { return m.supply[symbol], nil }

func (m *mockLedgerState) PutSupply(symbol string, amount *big.Int) error {
	m.supply[symbol] = amount
	return nil
}

func makeAddress(b byte) crypto.Address {
	raw := make([]byte, 20)
	raw[19] = b
	return crypto.NewAddress(crypto.CookPrefix, raw)
}

func TestMintAndTransfer(t *testing.T) {
	var buf events.Buffer
	ledger := NewLedger(newMockLedgerState(), &buf)
	alice, bob := makeAddress(1), makeAddress(2)

	if err := ledger.Mint("cook", alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer("COOK", alice, bob, big.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if bal, _ := ledger.BalanceOf("COOK", alice); bal.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("alice balance = %s", bal)
	}
	if bal, _ := ledger.BalanceOf("cook", bob); bal.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("bob balance = %s", bal)
	}
	if supply, _ := ledger.TotalSupply("COOK"); supply.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("supply = %s", supply)
	}
	if buf.Len() != 2 {
		t.Fatalf("expected mint and transfer events, got %d", buf.Len())
	}
	if err := ledger.Transfer("COOK", bob, alice, big.NewInt(41)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	ledger := NewLedger(newMockLedgerState(), nil)
	owner, spender := makeAddress(1), makeAddress(9)
	if err := ledger.Mint("WETH", owner, big.NewInt(50)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.TransferFrom("WETH", spender, owner, spender, big.NewInt(1)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected allowance error, got %v", err)
	}
	if err := ledger.Approve("WETH", owner, spender, big.NewInt(30)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := ledger.TransferFrom("WETH", spender, owner, spender, big.NewInt(20)); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}
	left, _ := ledger.Allowance("WETH", owner, spender)
	if left.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("allowance = %s", left)
	}
	if err := ledger.Transfer("WETH", owner, spender, big.NewInt(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
}

func TestNormalizeSymbolFoldsCompatibilityForms(t *testing.T) {
	cases := []struct{ in, want string }{
		{in: " cook ", want: "COOK"},
		{in: "\uff43\uff4f\uff4f\uff4b", want: "COOK"}, // full-width
		{in: "\u3000USDC\u3000", want: "USDC"},         // ideographic space
		{in: "\ufb01n", want: "FIN"},                   // fi ligature
	}
	for _, tc := range cases {
		if got := NormalizeSymbol(tc.in); got != tc.want {
			t.Fatalf("NormalizeSymbol(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	ledger := NewLedger(newMockLedgerState(), nil)
	alice := makeAddress(1)
	if err := ledger.Mint("\uff23\uff2f\uff2f\uff2b", alice, big.NewInt(7)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if bal, _ := ledger.BalanceOf("cook", alice); bal.Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("balance under folded symbol = %s", bal)
	}
}
