package crypto

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressBech32RoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	addr := key.PubKey().Address()

	decoded, err := DecodeAddress(addr.String())
	require.NoError(t, err)
	require.True(t, decoded.Equal(addr))
	require.Equal(t, CookPrefix, decoded.Prefix())
	require.Equal(t, addr.Raw(), AddressFromRaw(addr.Raw()).Raw())
}

func TestDeriveAddressStable(t *testing.T) {
	a := DeriveAddress("staking")
	b := DeriveAddress("staking")
	require.True(t, a.Equal(b))
	require.False(t, a.Equal(DeriveAddress("amm")))
	require.False(t, a.IsZero())
	require.True(t, Address{}.IsZero())
}

func TestKeystoreRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "keys", "operator.json")

	require.NoError(t, SaveToKeystore(path, key, "secret"))
	loaded, err := LoadFromKeystore(path, "secret")
	require.NoError(t, err)
	require.Equal(t, key.Bytes(), loaded.Bytes())

	_, err = LoadFromKeystore(path, "wrong")
	require.Error(t, err)
}

func TestLoadOrCreateKeystoreIsStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "operator.keystore")
	first, err := LoadOrCreateKeystore(path, "")
	require.NoError(t, err)
	second, err := LoadOrCreateKeystore(path, "")
	require.NoError(t, err)
	require.True(t, first.PubKey().Address().Equal(second.PubKey().Address()))

	_, err = LoadOrCreateKeystore("", "")
	require.Error(t, err)
}

func TestKeystoreAddressWithoutPassphrase(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "operator.keystore")
	require.NoError(t, SaveToKeystore(path, key, "secret"))

	addr, err := KeystoreAddress(path)
	require.NoError(t, err)
	require.True(t, addr.Equal(key.PubKey().Address()))

	_, err = KeystoreAddress(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}
