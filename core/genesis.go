package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"cookledger/config"
	"cookledger/crypto"
	"cookledger/native/staking"
)

var errNoGovernance = errors.New("genesis: governance address required")

// ApplyGenesis seeds an empty ledger from g. The governance override, when
// set, takes precedence over the address named in the file. A ledger that
// already carries a genesis returns ErrGenesisApplied.
func (l *Ledger) ApplyGenesis(ctx context.Context, g *config.Genesis, governance crypto.Address) error {
	if g == nil {
		return errors.New("genesis: nil document")
	}
	if err := g.Validate(); err != nil {
		return err
	}
	if governance.IsZero() && g.Governance != "" {
		addr, err := crypto.DecodeAddress(g.Governance)
		if err != nil {
			return fmt.Errorf("genesis governance: %w", err)
		}
		governance = addr
	}
	if governance.IsZero() {
		return errNoGovernance
	}
	err := l.apply(ctx, "genesis", func(tx *txn) error {
		meta, err := tx.state.ChainMeta()
		if err != nil {
			return err
		}
		if meta.GenesisApplied {
			return ErrGenesisApplied
		}
		for _, tok := range g.Tokens {
			if err := tx.state.RegisterToken(tok.Symbol, tok.Name, tok.Decimals); err != nil {
				return fmt.Errorf("genesis token %s: %w", tok.Symbol, err)
			}
		}
		for i, bal := range g.Balances {
			addr, _ := crypto.DecodeAddress(bal.Address)
			amount, _ := config.ParseAmount(bal.Amount)
			if err := tx.bank.Mint(bal.Token, addr, amount); err != nil {
				return fmt.Errorf("genesis balances[%d]: %w", i, err)
			}
		}
		for i, res := range g.Reserves {
			amount, _ := config.ParseAmount(res.Amount)
			if err := tx.bank.Mint(res.Token, l.module, amount); err != nil {
				return fmt.Errorf("genesis reserves[%d]: %w", i, err)
			}
		}
		if err := tx.state.SetRole(staking.RoleGovernance, governance, true); err != nil {
			return err
		}
		for _, grant := range g.Roles {
			addr, _ := crypto.DecodeAddress(grant.Address)
			if err := tx.staking.GrantRole(governance, grant.Role, addr); err != nil {
				return fmt.Errorf("genesis role %s: %w", grant.Role, err)
			}
		}
		for i, gp := range g.Pools {
			cfg, err := poolConfig(gp)
			if err != nil {
				return fmt.Errorf("genesis pools[%d]: %w", i, err)
			}
			pool, err := tx.staking.CreatePool(governance, cfg)
			if err != nil {
				return fmt.Errorf("genesis pools[%d]: %w", i, err)
			}
			if gp.ReferralActive {
				if err := tx.staking.StartReferralBonus(governance, pool.ID); err != nil {
					return fmt.Errorf("genesis pools[%d]: %w", i, err)
				}
			}
		}
		rate, _ := config.ParseAmount(g.GlobalRewardRate)
		if rate.Sign() > 0 {
			if err := tx.staking.SetGlobalRewardRate(governance, rate); err != nil {
				return err
			}
		}
		for i, seed := range g.Liquidity {
			provider, _ := crypto.DecodeAddress(seed.Provider)
			amountA, _ := config.ParseAmount(seed.AmountA)
			amountB, _ := config.ParseAmount(seed.AmountB)
			if _, _, _, err := tx.router.AddLiquidity(provider, normalize(seed.TokenA), normalize(seed.TokenB), amountA, amountB, provider); err != nil {
				return fmt.Errorf("genesis liquidity[%d]: %w", i, err)
			}
		}
		meta.GenesisApplied = true
		meta.NetworkName = g.Network
		return tx.state.PutChainMeta(meta)
	})
	if err != nil {
		return err
	}
	l.logger.InfoContext(ctx, "genesis applied",
		slog.String("network", g.Network),
		slog.Int("tokens", len(g.Tokens)),
		slog.Int("pools", len(g.Pools)))
	return nil
}

func poolConfig(gp config.GenesisPool) (staking.PoolConfig, error) {
	cfg := staking.PoolConfig{
		Token:           gp.Token,
		RewardToken:     gp.RewardToken,
		PairToken:       gp.PairToken,
		Weighted:        gp.Weighted,
		LockupDuration:  gp.LockupSeconds,
		VestingDuration: gp.VestingSeconds,
		VestingStep:     gp.VestingStep,
	}
	if gp.Kind != "" {
		kind, ok := staking.ParsePoolKind(strings.ToLower(gp.Kind))
		if !ok {
			return cfg, fmt.Errorf("unknown pool kind %q", gp.Kind)
		}
		cfg.Kind = kind
	}
	amounts := []struct {
		raw string
		dst **big.Int
	}{
		{gp.RewardRate, &cfg.RewardRate},
		{gp.RewardWeight, &cfg.RewardWeight},
		{gp.PoolCap, &cfg.PoolCap},
		{gp.AddressCap, &cfg.AddressCap},
	}
	for _, a := range amounts {
		v, err := config.ParseAmount(a.raw)
		if err != nil {
			return cfg, err
		}
		*a.dst = v
	}
	return cfg, nil
}
