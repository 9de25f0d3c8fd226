package config

import (
	"bytes"
	"fmt"
	"math/big"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"cookledger/crypto"
)

// Genesis seeds a fresh ledger: tokens, balances, role grants, pools and
// AMM liquidity.
type Genesis struct {
	Network          string          `yaml:"network"`
	Governance       string          `yaml:"governance"`
	GlobalRewardRate string          `yaml:"globalRewardRate"`
	Roles            []RoleGrant     `yaml:"roles"`
	Tokens           []GenesisToken  `yaml:"tokens"`
	Balances         []Balance       `yaml:"balances"`
	Reserves         []Reserve       `yaml:"reserves"`
	Pools            []GenesisPool   `yaml:"pools"`
	Liquidity        []LiquiditySeed `yaml:"liquidity"`
}

type RoleGrant struct {
	Role    string `yaml:"role"`
	Address string `yaml:"address"`
}

type GenesisToken struct {
	Symbol   string `yaml:"symbol"`
	Name     string `yaml:"name"`
	Decimals uint8  `yaml:"decimals"`
}

type Balance struct {
	Address string `yaml:"address"`
	Token   string `yaml:"token"`
	Amount  string `yaml:"amount"`
}

// Reserve is minted straight into the staking module account to back reward
// emission.
type Reserve struct {
	Token  string `yaml:"token"`
	Amount string `yaml:"amount"`
}

type GenesisPool struct {
	Token          string `yaml:"token"`
	RewardToken    string `yaml:"rewardToken"`
	Kind           string `yaml:"kind"`
	PairToken      string `yaml:"pairToken"`
	RewardRate     string `yaml:"rewardRate"`
	Weighted       bool   `yaml:"weighted"`
	RewardWeight   string `yaml:"rewardWeight"`
	LockupSeconds  uint64 `yaml:"lockupSeconds"`
	VestingSeconds uint64 `yaml:"vestingSeconds"`
	VestingStep    uint64 `yaml:"vestingStepSeconds"`
	PoolCap        string `yaml:"poolCap"`
	AddressCap     string `yaml:"addressCap"`
	ReferralActive bool   `yaml:"referralActive"`
}

type LiquiditySeed struct {
	Provider string `yaml:"provider"`
	TokenA   string `yaml:"tokenA"`
	TokenB   string `yaml:"tokenB"`
	AmountA  string `yaml:"amountA"`
	AmountB  string `yaml:"amountB"`
}

// LoadGenesis reads and validates a YAML genesis file.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseGenesis(data)
}

// ParseGenesis decodes YAML genesis bytes. Unknown keys are rejected.
func ParseGenesis(data []byte) (*Genesis, error) {
	var g Genesis
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&g); err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// Validate checks addresses and amounts without touching state.
func (g *Genesis) Validate() error {
	if g.Governance != "" {
		if _, err := crypto.DecodeAddress(g.Governance); err != nil {
			return fmt.Errorf("genesis governance: %w", err)
		}
	}
	if _, err := ParseAmount(g.GlobalRewardRate); err != nil {
		return fmt.Errorf("genesis globalRewardRate: %w", err)
	}
	for i, r := range g.Roles {
		if _, err := crypto.DecodeAddress(r.Address); err != nil {
			return fmt.Errorf("genesis roles[%d]: %w", i, err)
		}
	}
	for i, b := range g.Balances {
		if _, err := crypto.DecodeAddress(b.Address); err != nil {
			return fmt.Errorf("genesis balances[%d]: %w", i, err)
		}
		if _, err := ParseAmount(b.Amount); err != nil {
			return fmt.Errorf("genesis balances[%d]: %w", i, err)
		}
	}
	for i, r := range g.Reserves {
		if _, err := ParseAmount(r.Amount); err != nil {
			return fmt.Errorf("genesis reserves[%d]: %w", i, err)
		}
	}
	for i, p := range g.Pools {
		for _, v := range []string{p.RewardRate, p.RewardWeight, p.PoolCap, p.AddressCap} {
			if _, err := ParseAmount(v); err != nil {
				return fmt.Errorf("genesis pools[%d]: %w", i, err)
			}
		}
		switch strings.ToLower(p.Kind) {
		case "", "single", "lp":
		default:
			return fmt.Errorf("genesis pools[%d]: unknown kind %q", i, p.Kind)
		}
	}
	for i, l := range g.Liquidity {
		if _, err := crypto.DecodeAddress(l.Provider); err != nil {
			return fmt.Errorf("genesis liquidity[%d]: %w", i, err)
		}
		for _, v := range []string{l.AmountA, l.AmountB} {
			if _, err := ParseAmount(v); err != nil {
				return fmt.Errorf("genesis liquidity[%d]: %w", i, err)
			}
		}
	}
	return nil
}

// ParseAmount parses a non-negative base-10 integer. Empty strings are zero;
// underscores may group digits.
func ParseAmount(value string) (*big.Int, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(value), "_", "")
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount %q must not be negative", value)
	}
	return amount, nil
}
