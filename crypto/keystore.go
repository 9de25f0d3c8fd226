package crypto

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

var (
	errNilKey            = errors.New("crypto: nil private key")
	errEmptyKeystorePath = errors.New("crypto: empty keystore path")
)

// SaveToKeystore encrypts key into a v3 keystore file at path. The file is
// written to a temporary sibling first and renamed into place with 0600
// permissions; missing parent directories are created 0700.
func SaveToKeystore(path string, key *PrivateKey, passphrase string) error {
	if key == nil || key.PrivateKey == nil {
		return errNilKey
	}
	if strings.TrimSpace(path) == "" {
		return errEmptyKeystorePath
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return err
	}
	encrypted, err := keystore.EncryptKey(&keystore.Key{
		Id:         id,
		Address:    ethcrypto.PubkeyToAddress(key.PublicKey),
		PrivateKey: key.PrivateKey,
	}, passphrase, keystore.LightScryptN, keystore.LightScryptP)
	if err != nil {
		return fmt.Errorf("crypto: encrypt keystore: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".keystore-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(encrypted); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadFromKeystore decrypts a v3 keystore file using the supplied passphrase.
func LoadFromKeystore(path, passphrase string) (*PrivateKey, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errEmptyKeystorePath
	}
	keyJSON, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decrypted, err := keystore.DecryptKey(keyJSON, passphrase)
	if err != nil {
		return nil, fmt.Errorf("crypto: decrypt %s: %w", filepath.Base(path), err)
	}
	return &PrivateKey{PrivateKey: decrypted.PrivateKey}, nil
}

// KeystoreAddress returns the ledger address recorded in a v3 keystore file
// without decrypting it.
func KeystoreAddress(path string) (Address, error) {
	if strings.TrimSpace(path) == "" {
		return Address{}, errEmptyKeystorePath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Address{}, err
	}
	var doc struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return Address{}, fmt.Errorf("crypto: parse keystore: %w", err)
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(doc.Address, "0x"))
	if err != nil || len(raw) != AddressLength {
		return Address{}, fmt.Errorf("crypto: keystore address %q invalid", doc.Address)
	}
	return NewAddress(CookPrefix, raw), nil
}

// LoadOrCreateKeystore returns the key stored at path, generating and saving
// a fresh one when the file does not exist.
func LoadOrCreateKeystore(path, passphrase string) (*PrivateKey, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errEmptyKeystorePath
	}
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return LoadFromKeystore(path, passphrase)
	case !errors.Is(err, fs.ErrNotExist):
		return nil, err
	}
	key, err := GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	if err := SaveToKeystore(path, key, passphrase); err != nil {
		return nil, err
	}
	return key, nil
}
