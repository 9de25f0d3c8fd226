package state

import "cookledger/crypto"

// HasRole reports whether addr holds role.
func (m *Manager) HasRole(role string, addr crypto.Address) (bool, error) {
	var granted bool
	ok, err := m.KVGet(compose(rolePrefix, []byte(role), addr.Bytes()), &granted)
	if err != nil {
		return false, err
	}
	return ok && granted, nil
}

// SetRole grants or revokes role for addr.
func (m *Manager) SetRole(role string, addr crypto.Address, granted bool) error {
	key := compose(rolePrefix, []byte(role), addr.Bytes())
	if !granted {
		return m.KVDelete(key)
	}
	return m.KVPut(key, true)
}
