package staking

import "math/big"

func trancheUnlocked(t DepositTranche, lockup, now uint64) bool {
	if lockup == 0 {
		return true
	}
	return now >= t.Timestamp && now-t.Timestamp >= lockup
}

// unlockedAmount sums the tranches whose lockup has elapsed.
func unlockedAmount(deposits []DepositTranche, lockup, now uint64) *big.Int {
	total := big.NewInt(0)
	for _, t := range deposits {
		if t.Amount != nil && trancheUnlocked(t, lockup, now) {
			total.Add(total, t.Amount)
		}
	}
	return total
}

// consumeUnlocked removes amount from the unlocked tranches, oldest first, and
// returns the remaining tranches. Emptied tranches are dropped.
func consumeUnlocked(deposits []DepositTranche, amount *big.Int, lockup, now uint64) ([]DepositTranche, error) {
	if unlockedAmount(deposits, lockup, now).Cmp(amount) < 0 {
		return nil, ErrInsufficientUnlocked
	}
	remaining := new(big.Int).Set(amount)
	out := make([]DepositTranche, 0, len(deposits))
	for _, t := range deposits {
		if remaining.Sign() == 0 || !trancheUnlocked(t, lockup, now) {
			out = append(out, DepositTranche{Amount: cloneBigInt(t.Amount), Timestamp: t.Timestamp})
			continue
		}
		if t.Amount.Cmp(remaining) <= 0 {
			remaining.Sub(remaining, t.Amount)
			continue
		}
		left := new(big.Int).Sub(t.Amount, remaining)
		remaining.SetInt64(0)
		out = append(out, DepositTranche{Amount: left, Timestamp: t.Timestamp})
	}
	return out, nil
}
