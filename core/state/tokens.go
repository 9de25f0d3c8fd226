package state

import (
	"fmt"
	"sort"
	"strings"
)

// TokenMetadata describes a token known to the ledger.
type TokenMetadata struct {
	Symbol   string
	Name     string
	Decimals uint8
}

func (m *Manager) loadTokenList() ([]string, error) {
	var list []string
	ok, err := m.KVGet(tokenListKeyBytes, &list)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []string{}, nil
	}
	return list, nil
}

// RegisterToken stores the metadata for a token and records it in the token
// index.
func (m *Manager) RegisterToken(symbol, name string, decimals uint8) error {
	normalized := strings.ToUpper(strings.TrimSpace(symbol))
	if normalized == "" {
		return fmt.Errorf("token symbol must not be empty")
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("token %s: name must not be empty", normalized)
	}
	if existing, err := m.Token(normalized); err != nil {
		return err
	} else if existing != nil {
		return fmt.Errorf("token %s already registered", normalized)
	}
	list, err := m.loadTokenList()
	if err != nil {
		return err
	}
	list = append(list, normalized)
	sort.Strings(list)
	if err := m.KVPut(tokenListKeyBytes, list); err != nil {
		return err
	}
	meta := &TokenMetadata{Symbol: normalized, Name: strings.TrimSpace(name), Decimals: decimals}
	return m.KVPut(compose(tokenPrefix, []byte(normalized)), meta)
}

// Token retrieves metadata for a registered token, or nil when unknown.
func (m *Manager) Token(symbol string) (*TokenMetadata, error) {
	meta := new(TokenMetadata)
	ok, err := m.KVGet(compose(tokenPrefix, symbolBytes(symbol)), meta)
	if err != nil || !ok {
		return nil, err
	}
	return meta, nil
}

// TokenList returns all registered token symbols in sorted order.
func (m *Manager) TokenList() ([]string, error) {
	return m.loadTokenList()
}
