package state

import (
	"fmt"
	"math/big"

	"cookledger/crypto"
)

func (m *Manager) getAmount(key []byte) (*big.Int, error) {
	value := new(big.Int)
	ok, err := m.KVGet(key, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

func (m *Manager) putAmount(key []byte, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("state: negative amount")
	}
	if amount.Sign() == 0 {
		return m.KVDelete(key)
	}
	return m.KVPut(key, amount)
}

// GetBalance returns the token balance of addr.
func (m *Manager) GetBalance(symbol string, addr crypto.Address) (*big.Int, error) {
	return m.getAmount(compose(balancePrefix, symbolBytes(symbol), addr.Bytes()))
}

// PutBalance stores the token balance of addr.
func (m *Manager) PutBalance(symbol string, addr crypto.Address, amount *big.Int) error {
	return m.putAmount(compose(balancePrefix, symbolBytes(symbol), addr.Bytes()), amount)
}

// GetAllowance returns what spender may move out of owner's balance.
func (m *Manager) GetAllowance(symbol string, owner, spender crypto.Address) (*big.Int, error) {
	return m.getAmount(compose(allowancePrefix, symbolBytes(symbol), owner.Bytes(), spender.Bytes()))
}

// PutAllowance stores the spender allowance.
func (m *Manager) PutAllowance(symbol string, owner, spender crypto.Address, amount *big.Int) error {
	return m.putAmount(compose(allowancePrefix, symbolBytes(symbol), owner.Bytes(), spender.Bytes()), amount)
}

// GetSupply returns the minted supply of symbol.
func (m *Manager) GetSupply(symbol string) (*big.Int, error) {
	return m.getAmount(compose(supplyPrefix, symbolBytes(symbol)))
}

// PutSupply stores the minted supply of symbol.
func (m *Manager) PutSupply(symbol string, amount *big.Int) error {
	return m.putAmount(compose(supplyPrefix, symbolBytes(symbol)), amount)
}
