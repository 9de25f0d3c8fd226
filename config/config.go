package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"cookledger/crypto"
)

type Config struct {
	RPCAddress string `toml:"RPCAddress"`
	// RPCMaxConnections caps concurrently open API connections.
	RPCMaxConnections    int    `toml:"RPCMaxConnections"`
	DataDir              string `toml:"DataDir"`
	Storage              string `toml:"Storage"`
	GenesisFile          string `toml:"GenesisFile"`
	NetworkName          string `toml:"NetworkName"`
	BlockIntervalSeconds uint64 `toml:"BlockIntervalSeconds"`
	// GenesisTime anchors block height zero (unix seconds). Zero means the
	// first start of the daemon.
	GenesisTime int64 `toml:"GenesisTime"`
	// ModuleAddress custodies staked principal and reward reserves. Empty
	// derives it from the module name.
	ModuleAddress string `toml:"ModuleAddress"`
	// Governance is granted staking.governance at genesis.
	Governance           string `toml:"Governance"`
	OperatorKeystorePath string `toml:"OperatorKeystorePath"`

	Auth      Auth      `toml:"auth"`
	RateLimit RateLimit `toml:"rate_limit"`
	Indexer   Indexer   `toml:"indexer"`
	Telemetry Telemetry `toml:"telemetry"`
	Log       Log       `toml:"log"`
	Pauses    Pauses    `toml:"pauses"`
}

// Load loads the configuration from the given path, creating a default file
// and operator keystore when it does not exist.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s: unknown key %s", path, undecoded[0].String())
	}

	applyDefaults(cfg)
	if err := ensureKeystore(path, cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration written on first start, without an
// operator key.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8080"
	}
	if cfg.RPCMaxConnections == 0 {
		cfg.RPCMaxConnections = 256
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./cook-data"
	}
	if strings.TrimSpace(cfg.Storage) == "" {
		cfg.Storage = "leveldb"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "cook-local"
	}
	if cfg.BlockIntervalSeconds == 0 {
		cfg.BlockIntervalSeconds = 3
	}
	if strings.TrimSpace(cfg.Auth.Issuer) == "" {
		cfg.Auth.Issuer = "stakingd"
	}
	if cfg.Auth.TokenTTLSeconds == 0 {
		cfg.Auth.TokenTTLSeconds = 3600
	}
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = 20
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 40
	}
	if strings.TrimSpace(cfg.Log.Level) == "" {
		cfg.Log.Level = "info"
	}
}

// HMACSecret resolves the API signing secret, preferring the environment.
func (c *Config) HMACSecret() string {
	if env := strings.TrimSpace(c.Auth.HMACSecretEnv); env != "" {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v
		}
	}
	return c.Auth.HMACSecret
}

// ModuleAccount returns the configured module address or the derived one.
func (c *Config) ModuleAccount() (crypto.Address, error) {
	if strings.TrimSpace(c.ModuleAddress) == "" {
		return crypto.DeriveAddress("staking"), nil
	}
	return crypto.DecodeAddress(c.ModuleAddress)
}

// GovernanceAccount returns the configured governance address, if any.
func (c *Config) GovernanceAccount() (crypto.Address, bool, error) {
	if strings.TrimSpace(c.Governance) == "" {
		return crypto.Address{}, false, nil
	}
	addr, err := crypto.DecodeAddress(c.Governance)
	if err != nil {
		return crypto.Address{}, false, err
	}
	return addr, true, nil
}

func ensureKeystore(configPath string, cfg *Config) error {
	keystorePath := cfg.OperatorKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}
	key, err := crypto.LoadOrCreateKeystore(keystorePath, "")
	if err != nil {
		return err
	}
	changed := false
	if cfg.OperatorKeystorePath != keystorePath {
		cfg.OperatorKeystorePath = keystorePath
		changed = true
	}
	if strings.TrimSpace(cfg.Governance) == "" && key != nil {
		cfg.Governance = key.PubKey().Address().String()
		changed = true
	}
	if changed {
		return persist(configPath, cfg)
	}
	return nil
}

// createDefault creates and saves a default configuration file. The operator
// key becomes the governance address.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := ensureKeystore(path, cfg); err != nil {
		return nil, err
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Write stores cfg at path in TOML form.
func Write(path string, cfg *Config) error {
	return persist(path, cfg)
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "operator.keystore")
}
