package staking

import (
	"errors"
	"fmt"
	"math/big"

	"cookledger/crypto"
	"cookledger/native/bank"
)

var ErrInvalidPoolConfig = errors.New("staking engine: invalid pool configuration")

// PoolConfig describes a pool at creation time.
type PoolConfig struct {
	Token       string
	RewardToken string
	Kind        PoolKind
	PairToken   string

	RewardRate   *big.Int
	Weighted     bool
	RewardWeight *big.Int

	LockupDuration  uint64
	VestingDuration uint64
	VestingStep     uint64
	PoolCap         *big.Int
	AddressCap      *big.Int
}

func normalizeSymbol(s string) string {
	return bank.NormalizeSymbol(s)
}

// CreatePool registers a pool for a token that does not have one yet.
func (e *Engine) CreatePool(caller crypto.Address, cfg PoolConfig) (*Pool, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := e.requireRole(caller); err != nil {
		return nil, err
	}
	cfg.Token = normalizeSymbol(cfg.Token)
	cfg.RewardToken = normalizeSymbol(cfg.RewardToken)
	cfg.PairToken = normalizeSymbol(cfg.PairToken)
	if cfg.Kind == PoolKindLP {
		if cfg.PairToken == "" {
			return nil, fmt.Errorf("%w: lp pool requires a pair token", ErrInvalidPoolConfig)
		}
		if cfg.Token == "" && e.router != nil {
			cfg.Token = e.router.PairToken(cfg.RewardToken, cfg.PairToken)
		}
	}
	if cfg.Token == "" || cfg.RewardToken == "" {
		return nil, fmt.Errorf("%w: token and reward token required", ErrInvalidPoolConfig)
	}
	if cfg.VestingStep > 0 && cfg.VestingStep > cfg.VestingDuration {
		return nil, fmt.Errorf("%w: vesting step exceeds duration", ErrInvalidPoolConfig)
	}
	rate, err := validateRate(cfg.RewardRate)
	if err != nil {
		return nil, err
	}
	weight, err := validateRate(cfg.RewardWeight)
	if err != nil {
		return nil, err
	}
	poolCap, err := validateRate(cfg.PoolCap)
	if err != nil {
		return nil, err
	}
	addressCap, err := validateRate(cfg.AddressCap)
	if err != nil {
		return nil, err
	}

	if _, exists, err := e.state.PoolIDByToken(cfg.Token); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrPoolAlreadyExists
	}
	reg, err := e.loadRegistry()
	if err != nil {
		return nil, err
	}
	if cfg.Weighted {
		if err := e.accrueWeighted(reg); err != nil {
			return nil, err
		}
		reg.TotalWeight = new(big.Int).Add(reg.TotalWeight, weight)
	}

	pool := &Pool{
		ID:              reg.PoolCount,
		Token:           cfg.Token,
		RewardToken:     cfg.RewardToken,
		Kind:            cfg.Kind,
		PairToken:       cfg.PairToken,
		RewardRate:      rate,
		RewardWeight:    weight,
		Weighted:        cfg.Weighted,
		LockupDuration:  cfg.LockupDuration,
		VestingDuration: cfg.VestingDuration,
		VestingStep:     cfg.VestingStep,
		PoolCap:         poolCap,
		AddressCap:      addressCap,
		LastRewardBlock: e.blockHeight,
	}
	pool.EnsureDefaults()
	reg.PoolCount++

	if err := e.state.PutPool(pool); err != nil {
		return nil, err
	}
	if err := e.state.PutPoolToken(pool.Token, pool.ID); err != nil {
		return nil, err
	}
	if err := e.state.PutRegistry(reg); err != nil {
		return nil, err
	}
	e.emit(NewPoolCreatedEvent(pool))
	return pool.Clone(), nil
}
