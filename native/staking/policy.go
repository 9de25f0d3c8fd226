package staking

import (
	"errors"
	"fmt"
	"math/big"

	"cookledger/crypto"
	nativecommon "cookledger/native/common"
)

// guardActive rejects stake, harvest, claim and zap while the module or pool
// is paused or the user is blacklisted.
func (e *Engine) guardActive(pool *Pool, user crypto.Address) error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		if errors.Is(err, nativecommon.ErrModulePaused) {
			return fmt.Errorf("%w: %w", ErrPaused, err)
		}
		return err
	}
	if pool.Paused {
		return ErrPaused
	}
	listed, err := e.state.IsBlacklisted(pool.ID, user)
	if err != nil {
		return err
	}
	if listed {
		return ErrBlacklisted
	}
	return nil
}

// checkCaps enforces the pool and per-address ceilings; zero disables a cap.
func checkCaps(pool *Pool, acct *StakeAccount, amt *big.Int) error {
	if pool.PoolCap != nil && pool.PoolCap.Sign() > 0 {
		if new(big.Int).Add(pool.TotalStaked, amt).Cmp(pool.PoolCap) > 0 {
			return fmt.Errorf("%w: pool cap %s", ErrCapExceeded, pool.PoolCap)
		}
	}
	if pool.AddressCap != nil && pool.AddressCap.Sign() > 0 {
		if new(big.Int).Add(acct.Staked, amt).Cmp(pool.AddressCap) > 0 {
			return fmt.Errorf("%w: address cap %s", ErrCapExceeded, pool.AddressCap)
		}
	}
	return nil
}
