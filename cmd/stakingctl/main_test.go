package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cookledger/config"
	"cookledger/core"
	"cookledger/core/chain"
	"cookledger/crypto"
	"cookledger/rpc"
	"cookledger/storage"
)

const testSecret = "ctl-secret"

func startDaemon(t *testing.T) (string, crypto.Address, *chain.ManualClock) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	clock := chain.NewManualClock(0, 1_700_000_000)
	ledger, err := core.NewLedger(db, clock)
	require.NoError(t, err)

	gov := crypto.MustNewAddress(crypto.CookPrefix, bytes.Repeat([]byte{0x01}, crypto.AddressLength))
	alice := crypto.MustNewAddress(crypto.CookPrefix, bytes.Repeat([]byte{0xA1}, crypto.AddressLength))
	require.NoError(t, ledger.ApplyGenesis(context.Background(), &config.Genesis{
		Tokens: []config.GenesisToken{
			{Symbol: "STK", Name: "Stake", Decimals: 18},
			{Symbol: "COOK", Name: "Cook", Decimals: 18},
		},
		Balances: []config.Balance{{Address: alice.String(), Token: "STK", Amount: "100"}},
		Reserves: []config.Reserve{{Token: "COOK", Amount: "1000000"}},
		Pools:    []config.GenesisPool{{Token: "STK", RewardToken: "COOK", RewardRate: "10"}},
	}, gov))

	server, err := rpc.NewServer(ledger, rpc.Config{
		Auth:      rpc.AuthConfig{HMACSecret: testSecret, Issuer: "stakingd"},
		RateLimit: rpc.RateLimit{RequestsPerSecond: 1000, Burst: 1000},
	})
	require.NoError(t, err)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts.URL, alice, clock
}

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestStakeAndInspectAccount(t *testing.T) {
	endpoint, alice, clock := startDaemon(t)
	token, err := rpc.IssueToken(testSecret, "stakingd", alice, nil, time.Hour)
	require.NoError(t, err)

	code, _, stderr := runCLI("approve", "--rpc", endpoint, "--auth", token, "STK", "100")
	require.Equal(t, 0, code, stderr)

	code, stdout, stderr := runCLI("stake", "--rpc", endpoint, "--auth", token, "0", "40")
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, "Staked:     40")

	clock.Advance(10, 30)
	code, stdout, stderr = runCLI("account", "--rpc", endpoint, "0", alice.String())
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, "Account "+alice.String())

	code, stdout, stderr = runCLI("pools", "--rpc", endpoint)
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, "STK")
	require.Contains(t, stdout, "staked=40")
}

func TestWriteCommandsRequireToken(t *testing.T) {
	endpoint, _, _ := startDaemon(t)
	t.Setenv(rpcTokenEnv, "")
	code, _, stderr := runCLI("stake", "--rpc", endpoint, "0", "1")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "bearer token required")
}

func TestAPIErrorsReportStatus(t *testing.T) {
	endpoint, _, _ := startDaemon(t)
	code, _, stderr := runCLI("pool", "--rpc", endpoint, "9")
	require.Equal(t, 2, code)
	require.Contains(t, stderr, "status 404")
}

func TestUnknownCommand(t *testing.T) {
	code, _, stderr := runCLI("bogus")
	require.Equal(t, 1, code)
	require.True(t, strings.HasPrefix(stderr, "Unknown command"))
}

func TestSplitRoles(t *testing.T) {
	require.Equal(t, []string{"staking.manager", "staking.sentinel"}, splitRoles(" staking.manager, ,staking.sentinel "))
	require.Nil(t, splitRoles(""))
}

func TestResolveSubjectPrefersExplicitAddress(t *testing.T) {
	addr := crypto.DeriveAddress("operator")
	got, err := resolveSubject(addr.String(), "")
	require.NoError(t, err)
	require.Equal(t, addr, got)
}

func TestInitConfigThenToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	code, stdout, stderr := runCLI("init-config", "--config", path)
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, "Wrote "+path)

	code, _, stderr = runCLI("init-config", "--config", path)
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "already exists")

	t.Setenv(secretEnv, testSecret)
	code, stdout, stderr = runCLI("token", "--config", path, "--roles", "staking.manager", "--ttl", "1m")
	require.Equal(t, 0, code, stderr)
	token := strings.TrimSpace(stdout)
	require.Equal(t, 2, strings.Count(token, "."))
}
