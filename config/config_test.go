package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"cookledger/crypto"
)

func testAddress(b byte) string {
	raw := make([]byte, crypto.AddressLength)
	raw[0] = b
	raw[len(raw)-1] = 0x24
	return crypto.MustNewAddress(crypto.CookPrefix, raw).String()
}

func TestLoadCreatesDefaultWithOperatorKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.RPCAddress)
	require.Equal(t, 256, cfg.RPCMaxConnections)
	require.Equal(t, "leveldb", cfg.Storage)
	require.Equal(t, uint64(3), cfg.BlockIntervalSeconds)
	require.Equal(t, filepath.Join(dir, "operator.keystore"), cfg.OperatorKeystorePath)
	require.FileExists(t, cfg.OperatorKeystorePath)

	key, err := crypto.LoadFromKeystore(cfg.OperatorKeystorePath, "")
	require.NoError(t, err)
	gov, ok, err := cfg.GovernanceAccount()
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, gov.Equal(key.PubKey().Address()))

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Governance, reloaded.Governance)
}

func TestLoadParsesSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	gov := testAddress(0x42)
	contents := fmt.Sprintf(`RPCAddress = "127.0.0.1:9000"
DataDir = "./data"
Storage = "bolt"
NetworkName = "cook-test"
BlockIntervalSeconds = 5
GenesisTime = 1700000000
Governance = "%s"
OperatorKeystorePath = "%s"

[auth]
HMACSecret = "topsecret"
HMACSecretEnv = "COOK_TEST_SECRET"
Issuer = "tests"

[rate_limit]
RequestsPerSecond = 2.5
Burst = 5

[indexer]
Driver = "sqlite"
DSN = "file::memory:"

[telemetry]
Traces = true
SampleRatio = 0.25

[log]
Level = "debug"

[pauses]
Staking = true
`, gov, filepath.Join(dir, "op.keystore"))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "bolt", cfg.Storage)
	require.Equal(t, uint64(5), cfg.BlockIntervalSeconds)
	require.Equal(t, int64(1_700_000_000), cfg.GenesisTime)
	require.Equal(t, gov, cfg.Governance)
	require.Equal(t, 2.5, cfg.RateLimit.RequestsPerSecond)
	require.Equal(t, "sqlite", cfg.Indexer.Driver)
	require.True(t, cfg.Telemetry.Traces)
	require.True(t, cfg.Pauses.Staking)
	require.Equal(t, uint64(3600), cfg.Auth.TokenTTLSeconds)

	require.Equal(t, "topsecret", cfg.HMACSecret())
	t.Setenv("COOK_TEST_SECRET", "fromenv")
	require.Equal(t, "fromenv", cfg.HMACSecret())

	module, err := cfg.ModuleAccount()
	require.NoError(t, err)
	require.True(t, module.Equal(crypto.DeriveAddress("staking")))
}

func TestLoadRejectsUnknownKeysAndBadValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("Bogus = 1\n"), 0o644))
	_, err := Load(path)
	require.ErrorContains(t, err, "unknown key Bogus")

	cfg := Default()
	cfg.Storage = "rocks"
	require.Error(t, Validate(cfg))

	cfg = Default()
	cfg.Indexer.Driver = "postgres"
	require.ErrorContains(t, Validate(cfg), "DSN required")

	cfg = Default()
	cfg.Governance = "not-an-address"
	require.Error(t, Validate(cfg))
}

func TestParseGenesis(t *testing.T) {
	user := testAddress(0x01)
	doc := fmt.Sprintf(`network: cook-devnet
governance: %[1]s
globalRewardRate: "0"
roles:
  - role: staking.manager
    address: %[1]s
tokens:
  - symbol: COOK
    name: Cook Token
    decimals: 18
balances:
  - address: %[1]s
    token: COOK
    amount: "1_000_000"
reserves:
  - token: COOK
    amount: "500000"
pools:
  - token: COOK
    rewardToken: COOK
    rewardRate: "1000"
    lockupSeconds: 864000
    vestingSeconds: 15552000
    vestingStepSeconds: 2592000
    referralActive: true
`, user)
	g, err := ParseGenesis([]byte(doc))
	require.NoError(t, err)
	require.Len(t, g.Pools, 1)
	require.Equal(t, uint64(2_592_000), g.Pools[0].VestingStep)
	require.True(t, g.Pools[0].ReferralActive)

	amount, err := ParseAmount(g.Balances[0].Amount)
	require.NoError(t, err)
	require.Equal(t, "1000000", amount.String())

	_, err = ParseGenesis([]byte("pools:\n  - token: X\n    kind: vault\n"))
	require.ErrorContains(t, err, "unknown kind")
	_, err = ParseGenesis([]byte("unexpected: 1\n"))
	require.Error(t, err)
	_, err = ParseAmount("-5")
	require.Error(t, err)
}
