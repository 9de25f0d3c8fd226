package core

import (
	"context"
	"math/big"

	"cookledger/core/state"
	"cookledger/crypto"
	"cookledger/native/staking"
)

// CreatePool registers a pool. Governance only.
func (l *Ledger) CreatePool(ctx context.Context, caller crypto.Address, cfg staking.PoolConfig) (*staking.Pool, error) {
	var created *staking.Pool
	err := l.apply(ctx, "create_pool", func(tx *txn) error {
		pool, err := tx.staking.CreatePool(caller, cfg)
		created = pool
		return err
	})
	return created, err
}

// SetRewardRate changes a fixed-rate pool's emission.
func (l *Ledger) SetRewardRate(ctx context.Context, caller crypto.Address, poolID uint32, rate *big.Int) error {
	return l.apply(ctx, "set_reward_rate", func(tx *txn) error {
		return tx.staking.SetRewardRate(caller, poolID, rate)
	})
}

// SetGlobalRewardRate changes the emission shared by weighted pools.
func (l *Ledger) SetGlobalRewardRate(ctx context.Context, caller crypto.Address, rate *big.Int) error {
	return l.apply(ctx, "set_global_reward_rate", func(tx *txn) error {
		return tx.staking.SetGlobalRewardRate(caller, rate)
	})
}

// SetRewardWeights assigns weights to the listed pools.
func (l *Ledger) SetRewardWeights(ctx context.Context, caller crypto.Address, poolIDs []uint32, weights []*big.Int) error {
	return l.apply(ctx, "set_reward_weights", func(tx *txn) error {
		return tx.staking.SetRewardWeights(caller, poolIDs, weights)
	})
}

func (l *Ledger) SetLockupDuration(ctx context.Context, caller crypto.Address, poolID uint32, seconds uint64) error {
	return l.apply(ctx, "set_lockup", func(tx *txn) error {
		return tx.staking.SetLockupDuration(caller, poolID, seconds)
	})
}

func (l *Ledger) SetVestingDuration(ctx context.Context, caller crypto.Address, poolID uint32, seconds, step uint64) error {
	return l.apply(ctx, "set_vesting", func(tx *txn) error {
		return tx.staking.SetVestingDuration(caller, poolID, seconds, step)
	})
}

func (l *Ledger) SetPoolCap(ctx context.Context, caller crypto.Address, poolID uint32, limit *big.Int) error {
	return l.apply(ctx, "set_pool_cap", func(tx *txn) error {
		return tx.staking.SetPoolCap(caller, poolID, limit)
	})
}

func (l *Ledger) SetAddressCap(ctx context.Context, caller crypto.Address, poolID uint32, limit *big.Int) error {
	return l.apply(ctx, "set_address_cap", func(tx *txn) error {
		return tx.staking.SetAddressCap(caller, poolID, limit)
	})
}

// SetPause pauses or resumes one pool.
func (l *Ledger) SetPause(ctx context.Context, caller crypto.Address, poolID uint32, paused bool) error {
	return l.apply(ctx, "set_pause", func(tx *txn) error {
		return tx.staking.SetPause(caller, poolID, paused)
	})
}

// SetModulePause pauses or resumes every pool at once. Sentinels may pause;
// resuming needs a manager. The switch is process-local and is seeded from
// configuration on start.
func (l *Ledger) SetModulePause(ctx context.Context, caller crypto.Address, paused bool) error {
	return l.apply(ctx, "set_module_pause", func(tx *txn) error {
		roles := []string{staking.RoleGovernance, staking.RoleManager}
		if paused {
			roles = append(roles, staking.RoleSentinel)
		}
		if err := requireAnyRole(tx.state, caller, roles...); err != nil {
			return err
		}
		l.pauses.Set("staking", paused)
		return nil
	})
}

func (l *Ledger) SetBlacklisted(ctx context.Context, caller crypto.Address, poolID uint32, addr crypto.Address, listed bool) error {
	return l.apply(ctx, "set_blacklisted", func(tx *txn) error {
		return tx.staking.SetBlacklisted(caller, poolID, addr, listed)
	})
}

func (l *Ledger) GrantRole(ctx context.Context, caller crypto.Address, role string, addr crypto.Address) error {
	return l.apply(ctx, "grant_role", func(tx *txn) error {
		return tx.staking.GrantRole(caller, role, addr)
	})
}

func (l *Ledger) RevokeRole(ctx context.Context, caller crypto.Address, role string, addr crypto.Address) error {
	return l.apply(ctx, "revoke_role", func(tx *txn) error {
		return tx.staking.RevokeRole(caller, role, addr)
	})
}

// StartReferralBonus begins a referral competition in the pool.
func (l *Ledger) StartReferralBonus(ctx context.Context, caller crypto.Address, poolID uint32) error {
	return l.apply(ctx, "start_referral", func(tx *txn) error {
		return tx.staking.StartReferralBonus(caller, poolID)
	})
}

// StopReferralBonus ends the pool's referral competition.
func (l *Ledger) StopReferralBonus(ctx context.Context, caller crypto.Address, poolID uint32) error {
	return l.apply(ctx, "stop_referral", func(tx *txn) error {
		return tx.staking.StopReferralBonus(caller, poolID)
	})
}

// WithdrawReserve moves unowed reserve out of the module account.
func (l *Ledger) WithdrawReserve(ctx context.Context, caller crypto.Address, token string, amount *big.Int, to crypto.Address) error {
	return l.apply(ctx, "withdraw_reserve", func(tx *txn) error {
		return tx.staking.WithdrawReserve(caller, token, amount, to)
	})
}

func requireAnyRole(st *state.Manager, caller crypto.Address, roles ...string) error {
	if caller.IsZero() {
		return staking.ErrUnauthorized
	}
	for _, role := range roles {
		ok, err := st.HasRole(role, caller)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return staking.ErrUnauthorized
}
