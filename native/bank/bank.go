package bank

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"golang.org/x/text/unicode/norm"

	"cookledger/core/events"
	"cookledger/crypto"
)

var (
	ErrInsufficientBalance   = errors.New("bank: insufficient balance")
	ErrInsufficientAllowance = errors.New("bank: insufficient allowance")
	ErrInvalidAmount         = errors.New("bank: invalid amount")
	ErrInvalidSymbol         = errors.New("bank: token symbol required")
	errNilState              = errors.New("bank: state not configured")
)

type ledgerState interface {
	GetBalance(symbol string, addr crypto.Address) (*big.Int, error)
	PutBalance(symbol string, addr crypto.Address, amount *big.Int) error
	GetAllowance(symbol string, owner, spender crypto.Address) (*big.Int, error)
	PutAllowance(symbol string, owner, spender crypto.Address, amount *big.Int) error
	GetSupply(symbol string) (*big.Int, error)
	PutSupply(symbol string, amount *big.Int) error
}

// Ledger keeps fungible balances and allowances for any number of token
// symbols.
type Ledger struct {
	state   ledgerState
	emitter events.Emitter
}

// NewLedger binds a ledger to state. A nil emitter discards events.
func NewLedger(state ledgerState, emitter events.Emitter) *Ledger {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	return &Ledger{state: state, emitter: emitter}
}

// NormalizeSymbol folds a token symbol to NFKC, trims it and upper-cases it,
// so full-width and compatibility spellings address the same token.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(norm.NFKC.String(symbol)))
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if _, overflow := uint256.FromBig(amount); overflow {
		return ErrInvalidAmount
	}
	return nil
}

func (l *Ledger) prepare(symbol string, amount *big.Int) (string, error) {
	if l == nil || l.state == nil {
		return "", errNilState
	}
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return "", ErrInvalidSymbol
	}
	if err := checkAmount(amount); err != nil {
		return "", err
	}
	return symbol, nil
}

// BalanceOf returns the balance of addr.
func (l *Ledger) BalanceOf(symbol string, addr crypto.Address) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	bal, err := l.state.GetBalance(NormalizeSymbol(symbol), addr)
	if err != nil {
		return nil, err
	}
	if bal == nil {
		return big.NewInt(0), nil
	}
	return bal, nil
}

// Allowance returns how much spender may move out of owner's balance.
func (l *Ledger) Allowance(symbol string, owner, spender crypto.Address) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	allowance, err := l.state.GetAllowance(NormalizeSymbol(symbol), owner, spender)
	if err != nil {
		return nil, err
	}
	if allowance == nil {
		return big.NewInt(0), nil
	}
	return allowance, nil
}

// TotalSupply returns the minted supply of symbol.
func (l *Ledger) TotalSupply(symbol string) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	supply, err := l.state.GetSupply(NormalizeSymbol(symbol))
	if err != nil {
		return nil, err
	}
	if supply == nil {
		return big.NewInt(0), nil
	}
	return supply, nil
}

// Approve sets the spender allowance, replacing any previous value.
func (l *Ledger) Approve(symbol string, owner, spender crypto.Address, amount *big.Int) error {
	symbol, err := l.prepare(symbol, amount)
	if err != nil {
		return err
	}
	if err := l.state.PutAllowance(symbol, owner, spender, new(big.Int).Set(amount)); err != nil {
		return err
	}
	l.emitter.Emit(events.Approval{Asset: symbol, Owner: owner.Raw(), Spender: spender.Raw(), Amount: new(big.Int).Set(amount)})
	return nil
}

// Transfer moves amount from one account to another.
func (l *Ledger) Transfer(symbol string, from, to crypto.Address, amount *big.Int) error {
	symbol, err := l.prepare(symbol, amount)
	if err != nil {
		return err
	}
	return l.move(symbol, from, to, amount)
}

// TransferFrom moves amount out of from on behalf of spender, consuming
// allowance.
func (l *Ledger) TransferFrom(symbol string, spender, from, to crypto.Address, amount *big.Int) error {
	symbol, err := l.prepare(symbol, amount)
	if err != nil {
		return err
	}
	if !spender.Equal(from) {
		allowance, err := l.Allowance(symbol, from, spender)
		if err != nil {
			return err
		}
		if allowance.Cmp(amount) < 0 {
			return fmt.Errorf("%w: %s allowance %s, need %s", ErrInsufficientAllowance, symbol, allowance, amount)
		}
		if err := l.state.PutAllowance(symbol, from, spender, new(big.Int).Sub(allowance, amount)); err != nil {
			return err
		}
	}
	return l.move(symbol, from, to, amount)
}

func (l *Ledger) move(symbol string, from, to crypto.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	fromBal, err := l.BalanceOf(symbol, from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s balance %s, need %s", ErrInsufficientBalance, symbol, fromBal, amount)
	}
	if from.Equal(to) {
		return nil
	}
	toBal, err := l.BalanceOf(symbol, to)
	if err != nil {
		return err
	}
	if err := l.state.PutBalance(symbol, from, new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	if err := l.state.PutBalance(symbol, to, new(big.Int).Add(toBal, amount)); err != nil {
		return err
	}
	l.emitter.Emit(events.Transfer{Asset: symbol, From: from.Raw(), To: to.Raw(), Amount: new(big.Int).Set(amount)})
	return nil
}

// Mint credits new supply to to.
func (l *Ledger) Mint(symbol string, to crypto.Address, amount *big.Int) error {
	symbol, err := l.prepare(symbol, amount)
	if err != nil {
		return err
	}
	supply, err := l.TotalSupply(symbol)
	if err != nil {
		return err
	}
	nextSupply := new(big.Int).Add(supply, amount)
	if _, overflow := uint256.FromBig(nextSupply); overflow {
		return ErrInvalidAmount
	}
	bal, err := l.BalanceOf(symbol, to)
	if err != nil {
		return err
	}
	if err := l.state.PutBalance(symbol, to, new(big.Int).Add(bal, amount)); err != nil {
		return err
	}
	if err := l.state.PutSupply(symbol, nextSupply); err != nil {
		return err
	}
	l.emitter.Emit(events.Mint{Asset: symbol, To: to.Raw(), Amount: new(big.Int).Set(amount)})
	return nil
}
