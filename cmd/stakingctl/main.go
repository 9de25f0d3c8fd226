package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"cookledger/cmd/internal/passphrase"
	"cookledger/config"
	"cookledger/crypto"
	"cookledger/rpc"
)

const (
	defaultConfig = "./config.toml"
	secretEnv     = "COOK_API_SECRET"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	switch args[0] {
	case "init-config":
		return runInitConfig(args[1:], stdout, stderr)
	case "token":
		return runToken(args[1:], stdout, stderr)
	case "pools":
		return runPools(args[1:], stdout, stderr)
	case "pool":
		return runPool(args[1:], stdout, stderr)
	case "account":
		return runAccount(args[1:], stdout, stderr)
	case "approve":
		return runApprove(args[1:], stdout, stderr)
	case "stake":
		return runStake(args[1:], stdout, stderr)
	case "unstake", "harvest", "claim":
		return runAmountCall(args[0], args[1:], stdout, stderr)
	case "exit":
		return runExit(args[1:], stdout, stderr)
	case "zap":
		return runZap(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command %q\n%s\n", args[0], usage())
		return 1
	}
}

func usage() string {
	return strings.TrimSpace(`
Usage: stakingctl <command> [flags]

Commands:
  init-config   write a default config and operator keystore
  token         sign an API token for the operator key
  pools         list pools
  pool          show one pool
  account       show a staker's position in a pool
  approve       allow the staking module to pull tokens
  stake         stake tokens into a pool
  unstake       withdraw unlocked principal
  harvest       move accrued rewards into vesting
  claim         withdraw vested rewards
  exit          unstake everything and claim what has vested
  zap           restake vested rewards into another pool

Client commands read the API endpoint from --rpc or COOK_RPC_URL and the
bearer token from --auth or COOK_RPC_TOKEN.`)
}

func runInitConfig(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("init-config", flag.ContinueOnError)
	flags.SetOutput(stderr)
	path := flags.String("config", defaultConfig, "Path of the config file to create")
	if err := flags.Parse(args); err != nil {
		return 1
	}
	if _, err := os.Stat(*path); err == nil {
		fmt.Fprintf(stderr, "Error: %s already exists\n", *path)
		return 1
	} else if !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	cfg, err := config.Load(*path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Wrote %s\n", *path)
	fmt.Fprintf(stdout, "  Operator keystore: %s\n", cfg.OperatorKeystorePath)
	fmt.Fprintf(stdout, "  Governance:        %s\n", cfg.Governance)
	return 0
}

func runToken(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("token", flag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.String("config", defaultConfig, "Path to the daemon config file")
	subjectFlag := flags.String("subject", "", "Address to sign for (defaults to the operator keystore address)")
	rolesFlag := flags.String("roles", "", "Comma separated roles recorded in the token")
	ttl := flags.Duration("ttl", 0, "Token lifetime (defaults to the configured TokenTTLSeconds)")
	if err := flags.Parse(args); err != nil {
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: load config: %v\n", err)
		return 1
	}
	secret := cfg.HMACSecret()
	if strings.TrimSpace(secret) == "" {
		secret, err = passphrase.NewSource(secretEnv, "API signing secret").Get()
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}

	subject, err := resolveSubject(*subjectFlag, cfg.OperatorKeystorePath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	lifetime := *ttl
	if lifetime <= 0 {
		lifetime = time.Duration(cfg.Auth.TokenTTLSeconds) * time.Second
	}
	token, err := rpc.IssueToken(secret, cfg.Auth.Issuer, subject, splitRoles(*rolesFlag), lifetime)
	if err != nil {
		fmt.Fprintf(stderr, "Error: sign token: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, token)
	return 0
}

// resolveSubject decodes an explicit address or reads the operator keystore's
// address.
func resolveSubject(explicit, keystorePath string) (crypto.Address, error) {
	if v := strings.TrimSpace(explicit); v != "" {
		return crypto.DecodeAddress(v)
	}
	addr, err := crypto.KeystoreAddress(keystorePath)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("operator keystore: %w", err)
	}
	return addr, nil
}

func splitRoles(raw string) []string {
	var roles []string
	for _, r := range strings.Split(raw, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}
