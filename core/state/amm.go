package state

import (
	"cookledger/native/amm"
)

// GetPair loads the reserves of the market identified by its LP token.
func (m *Manager) GetPair(lpToken string) (*amm.Pair, bool, error) {
	pair := new(amm.Pair)
	ok, err := m.KVGet(compose(ammPairPrefix, symbolBytes(lpToken)), pair)
	if err != nil || !ok {
		return nil, false, err
	}
	return pair, true, nil
}

// PutPair stores the reserves of a market.
func (m *Manager) PutPair(lpToken string, pair *amm.Pair) error {
	return m.KVPut(compose(ammPairPrefix, symbolBytes(lpToken)), pair)
}
