package state

// ChainMeta tracks ledger-wide bookkeeping that is not part of any module.
type ChainMeta struct {
	GenesisApplied bool
	LastHeight     uint64
	LastTimestamp  uint64
	NetworkName    string
}

var chainMetaKey = compose(metaPrefix, []byte("chain"))

// ChainMeta returns the stored metadata or a zero value on a fresh database.
func (m *Manager) ChainMeta() (*ChainMeta, error) {
	meta := new(ChainMeta)
	if _, err := m.KVGet(chainMetaKey, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// PutChainMeta stores the metadata.
func (m *Manager) PutChainMeta(meta *ChainMeta) error {
	return m.KVPut(chainMetaKey, meta)
}
