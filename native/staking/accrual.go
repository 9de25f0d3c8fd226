package staking

import "math/big"

// effectiveRate returns the per-block emission of the pool under the current
// registry settings.
func effectiveRate(pool *Pool, reg *Registry) *big.Int {
	if pool == nil {
		return big.NewInt(0)
	}
	if !pool.Weighted {
		return cloneBigInt(pool.RewardRate)
	}
	if reg == nil || reg.TotalWeight == nil || reg.TotalWeight.Sign() == 0 {
		return big.NewInt(0)
	}
	return mulDiv(reg.GlobalRate, pool.RewardWeight, reg.TotalWeight)
}

// accruePool brings the pool forward to height and returns the reward newly
// added to TotalRewarded. Blocks that pass with nobody staked emit nothing.
func accruePool(pool *Pool, rate *big.Int, height uint64) *big.Int {
	minted := big.NewInt(0)
	if pool == nil || height <= pool.LastRewardBlock {
		return minted
	}
	elapsed := new(big.Int).SetUint64(height - pool.LastRewardBlock)
	pool.LastRewardBlock = height
	if rate == nil || rate.Sign() <= 0 || pool.TotalStaked.Sign() == 0 {
		return minted
	}
	minted.Mul(elapsed, rate)
	pool.TotalRewarded = new(big.Int).Add(pool.TotalRewarded, minted)
	if pool.ReferralActive {
		pool.AccPowerPerStake = new(big.Int).Add(pool.AccPowerPerStake, mulDiv(minted, ray, pool.TotalStaked))
	}
	return minted
}

// rewardedOf derives the unharvested reward of acct from the pool's
// reward+phantom backing per staked unit:
//
//	(TotalRewarded + TotalPhantom) × staked / TotalStaked − phantom
//
// Deposits mint phantom at the current backing ratio and harvests add the
// harvested amount to phantom, so neither changes another holder's share.
// Rounding can leave the difference one unit below zero; that reads as zero.
func rewardedOf(pool *Pool, acct *StakeAccount) *big.Int {
	if pool == nil || acct == nil || acct.Staked.Sign() == 0 || pool.TotalStaked.Sign() == 0 {
		return big.NewInt(0)
	}
	backing := new(big.Int).Add(pool.TotalRewarded, pool.TotalPhantom)
	owed := mulDiv(backing, acct.Staked, pool.TotalStaked)
	owed.Sub(owed, acct.Phantom)
	if owed.Sign() < 0 {
		return big.NewInt(0)
	}
	return owed
}

// mintPhantom returns the phantom issued for a deposit of amount. The pool
// must already be accrued to the current block.
func mintPhantom(pool *Pool, amount *big.Int) *big.Int {
	if pool.TotalStaked.Sign() == 0 {
		return new(big.Int).Mul(amount, initialStakeMultiple)
	}
	backing := new(big.Int).Add(pool.TotalRewarded, pool.TotalPhantom)
	return mulDiv(backing, amount, pool.TotalStaked)
}

// settleReferral folds the power accrued since the ledger checkpoint into
// Power.
func settleReferral(pool *Pool, ledger *ReferralLedger) {
	if ledger.ReferredStake.Sign() > 0 {
		delta := new(big.Int).Sub(pool.AccPowerPerStake, ledger.Checkpoint)
		if delta.Sign() > 0 {
			ledger.Power = new(big.Int).Add(ledger.Power, mulDiv(ledger.ReferredStake, delta, ray))
		}
	}
	ledger.Checkpoint = cloneBigInt(pool.AccPowerPerStake)
}
