package state

import (
	"errors"
	"fmt"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"cookledger/storage"
)

// Manager stages reads and writes for one ledger transaction on top of a
// storage backend. Nothing reaches the backend until Commit; Discard drops
// every staged change.
type Manager struct {
	db      storage.Database
	pending map[string]pendingValue
}

type pendingValue struct {
	value   []byte
	deleted bool
}

// NewManager opens a transaction over db.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db, pending: make(map[string]pendingValue)}
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (m *Manager) getRaw(hashed []byte) ([]byte, bool, error) {
	if staged, ok := m.pending[string(hashed)]; ok {
		if staged.deleted {
			return nil, false, nil
		}
		return staged.value, true, nil
	}
	value, err := m.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// KVPut stores the RLP encoding of value under the supplied key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.pending[string(kvKey(key))] = pendingValue{value: encoded}
	return nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, ok, err := m.getRaw(kvKey(key))
	if err != nil || !ok {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	m.pending[string(kvKey(key))] = pendingValue{deleted: true}
	return nil
}

// Dirty reports how many keys are staged.
func (m *Manager) Dirty() int { return len(m.pending) }

// Commit writes every staged change in one batch.
func (m *Manager) Commit() error {
	if len(m.pending) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m.pending))
	for k := range m.pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	batch := m.db.NewBatch()
	for _, k := range keys {
		staged := m.pending[k]
		if staged.deleted {
			batch.Delete([]byte(k))
			continue
		}
		batch.Put([]byte(k), staged.value)
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	m.pending = make(map[string]pendingValue)
	return nil
}

// Discard drops every staged change.
func (m *Manager) Discard() {
	m.pending = make(map[string]pendingValue)
}
