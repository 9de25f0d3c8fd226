package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Supported backend identifiers.
const (
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
	BackendMemory  = "memory"
)

// Open creates the database selected by backend under dataDir.
func Open(backend, dataDir string) (Database, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendLevelDB:
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		return NewLevelDB(filepath.Join(dataDir, "ledger"))
	case BackendBolt:
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		return NewBoltDB(filepath.Join(dataDir, "ledger.db"), nil)
	case BackendMemory:
		return NewMemDB(), nil
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", backend)
	}
}
