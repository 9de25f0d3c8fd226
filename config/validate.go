package config

import (
	"fmt"
	"strings"

	"cookledger/crypto"
)

var (
	MinBlockIntervalSeconds = uint64(1)
	MaxRateLimitBurst       = 10_000
)

// Validate rejects configurations the daemon cannot start with.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil config")
	}
	switch strings.ToLower(cfg.Storage) {
	case "leveldb", "bolt", "memory":
	default:
		return fmt.Errorf("storage: unknown backend %q", cfg.Storage)
	}
	if cfg.BlockIntervalSeconds < MinBlockIntervalSeconds {
		return fmt.Errorf("chain: block interval must be at least %d second(s)", MinBlockIntervalSeconds)
	}
	for name, addr := range map[string]string{"Governance": cfg.Governance, "ModuleAddress": cfg.ModuleAddress} {
		if strings.TrimSpace(addr) == "" {
			continue
		}
		if _, err := crypto.DecodeAddress(addr); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	switch strings.ToLower(cfg.Indexer.Driver) {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("indexer: unknown driver %q", cfg.Indexer.Driver)
	}
	if cfg.Indexer.Driver != "" && strings.TrimSpace(cfg.Indexer.DSN) == "" {
		return fmt.Errorf("indexer: DSN required for driver %s", cfg.Indexer.Driver)
	}
	if cfg.RateLimit.RequestsPerSecond < 0 || cfg.RateLimit.Burst < 0 || cfg.RateLimit.Burst > MaxRateLimitBurst {
		return fmt.Errorf("rate_limit: invalid limits")
	}
	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: sample ratio must be within [0,1]")
	}
	return nil
}
