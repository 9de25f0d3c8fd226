package staking

import "math/big"

// vestedElapsed returns the portion of elapsed that counts toward vesting.
func vestedElapsed(elapsed, duration, step uint64) uint64 {
	if step > 0 {
		elapsed -= elapsed % step
	}
	if elapsed > duration {
		return duration
	}
	return elapsed
}

// vestedAmount sums the released share of every entry at time now.
func vestedAmount(entries []VestingEntry, duration, step, now uint64) *big.Int {
	total := big.NewInt(0)
	for _, e := range entries {
		if e.Amount == nil || e.Amount.Sign() == 0 {
			continue
		}
		if duration == 0 {
			total.Add(total, e.Amount)
			continue
		}
		if now <= e.Timestamp {
			continue
		}
		elapsed := vestedElapsed(now-e.Timestamp, duration, step)
		if elapsed == duration {
			total.Add(total, e.Amount)
			continue
		}
		total.Add(total, mulDiv(e.Amount, new(big.Int).SetUint64(elapsed), new(big.Int).SetUint64(duration)))
	}
	return total
}

// claimableAmount is the vested reward the account has not yet claimed.
func claimableAmount(pool *Pool, acct *StakeAccount, now uint64) *big.Int {
	if pool == nil || acct == nil {
		return big.NewInt(0)
	}
	vested := vestedAmount(acct.Vesting, pool.VestingDuration, pool.VestingStep, now)
	vested.Sub(vested, zeroIfNil(acct.Claimed))
	if vested.Sign() < 0 {
		return big.NewInt(0)
	}
	return vested
}
