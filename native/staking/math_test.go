package staking

import (
	"errors"
	"math/big"
	"math/rand"
	"testing"

	"cookledger/crypto"
)

func TestVestedElapsedRoundsToSteps(t *testing.T) {
	cases := []struct {
		elapsed, duration, step, want uint64
	}{
		{elapsed: 50, duration: 100, step: 0, want: 50},
		{elapsed: 59, duration: 100, step: 30, want: 30},
		{elapsed: 60, duration: 100, step: 30, want: 60},
		{elapsed: 150, duration: 100, step: 30, want: 100},
	}
	for _, tc := range cases {
		if got := vestedElapsed(tc.elapsed, tc.duration, tc.step); got != tc.want {
			t.Fatalf("vestedElapsed(%d, %d, %d) = %d, want %d", tc.elapsed, tc.duration, tc.step, got, tc.want)
		}
	}
}

func TestVestedAmountSumsEntries(t *testing.T) {
	entries := []VestingEntry{
		{Amount: big.NewInt(100), Timestamp: 0},
		{Amount: big.NewInt(50), Timestamp: 50},
	}
	expectInt(t, "at 50", vestedAmount(entries, 100, 0, 50), 50)
	expectInt(t, "at 100", vestedAmount(entries, 100, 0, 100), 125)
	expectInt(t, "at 200", vestedAmount(entries, 100, 0, 200), 150)
	expectInt(t, "instant", vestedAmount(entries, 0, 0, 0), 150)
}

func TestConsumeUnlockedIsFIFO(t *testing.T) {
	deposits := []DepositTranche{
		{Amount: big.NewInt(5), Timestamp: 0},
		{Amount: big.NewInt(7), Timestamp: 10},
		{Amount: big.NewInt(9), Timestamp: 100},
	}
	expectInt(t, "unlocked", unlockedAmount(deposits, 50, 60), 12)

	left, err := consumeUnlocked(deposits, big.NewInt(8), 50, 60)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if len(left) != 2 {
		t.Fatalf("expected 2 tranches, got %d", len(left))
	}
	expectInt(t, "partial tranche", left[0].Amount, 4)
	if left[0].Timestamp != 10 || left[1].Timestamp != 100 {
		t.Fatalf("unexpected tranche order: %+v", left)
	}
	expectInt(t, "original untouched", deposits[1].Amount, 7)

	if _, err := consumeUnlocked(deposits, big.NewInt(13), 50, 60); !errors.Is(err, ErrInsufficientUnlocked) {
		t.Fatalf("expected ErrInsufficientUnlocked, got %v", err)
	}
}

func TestCheckedArithmetic(t *testing.T) {
	limit := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	if _, err := checkedAdd(limit, big.NewInt(1)); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	sum, err := checkedAdd(nil, big.NewInt(3))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	expectInt(t, "sum", sum, 3)
	if _, err := checkedSub(big.NewInt(1), big.NewInt(2)); err == nil {
		t.Fatalf("expected underflow")
	}
	expectInt(t, "mulDiv floors", mulDiv(big.NewInt(7), big.NewInt(3), big.NewInt(2)), 10)
}

func TestAccruePoolSkipsEmptyPool(t *testing.T) {
	pool := &Pool{LastRewardBlock: 5}
	pool.EnsureDefaults()
	minted := accruePool(pool, big.NewInt(100), 15)
	expectInt(t, "minted", minted, 0)
	if pool.LastRewardBlock != 15 {
		t.Fatalf("expected checkpoint to advance, got %d", pool.LastRewardBlock)
	}
	expectInt(t, "rewarded", pool.TotalRewarded, 0)
}

// TestLedgerConservation drives random operations and checks that the pool
// aggregates always equal the sums over accounts. Amounts are drawn within
// what the account can cover, so every operation must succeed.
func TestLedgerConservation(t *testing.T) {
	env := newTestEnv(t)
	cfg := cookPool(37)
	cfg.VestingDuration = 40
	pool := env.createPool(cfg)
	env.fund(env.module, "COOK", 1_000_000_000)

	users := make([]crypto.Address, 4)
	for i := range users {
		users[i] = makeAddress(0x01, byte(i+1))
		env.fund(users[i], "COOK", 1_000_000)
	}

	rng := rand.New(rand.NewSource(7))
	applied := make(map[string]int)
	height, ts := uint64(0), uint64(1_000_000)
	for step := 0; step < 400; step++ {
		height += uint64(rng.Intn(3))
		ts += uint64(rng.Intn(5))
		env.at(height, ts)
		user := users[rng.Intn(len(users))]
		view := env.account(pool.ID, user)
		preview, err := env.engine.Pool(pool.ID)
		if err != nil {
			t.Fatalf("pool: %v", err)
		}

		var op string
		switch rng.Intn(4) {
		case 0:
			op, err = "stake", env.engine.Stake(user, pool.ID, drawAmount(rng, big.NewInt(500)), crypto.Address{})
		case 1:
			if amount := drawAmount(rng, view.Unstakable); amount != nil {
				op, err = "unstake", env.engine.Unstake(user, pool.ID, amount)
			}
		case 2:
			if amount := drawAmount(rng, minBig(view.Rewarded, preview.TotalRewarded)); amount != nil {
				op, err = "harvest", env.engine.Harvest(user, pool.ID, amount)
			}
		case 3:
			if amount := drawAmount(rng, view.Claimable); amount != nil {
				op, err = "claim", env.engine.Claim(user, pool.ID, amount)
			}
		}
		if op != "" {
			if err != nil {
				t.Fatalf("step %d: %s: %v", step, op, err)
			}
			applied[op]++
		}

		preview, err = env.engine.Pool(pool.ID)
		if err != nil {
			t.Fatalf("pool: %v", err)
		}
		staked, phantom, rewarded, outstanding := big.NewInt(0), big.NewInt(0), big.NewInt(0), big.NewInt(0)
		for _, u := range users {
			view := env.account(pool.ID, u)
			staked.Add(staked, view.Staked)
			phantom.Add(phantom, view.Phantom)
			rewarded.Add(rewarded, view.Rewarded)
			outstanding.Add(outstanding, view.Vesting)
			outstanding.Sub(outstanding, view.Claimed)
		}
		if staked.Cmp(preview.TotalStaked) != 0 {
			t.Fatalf("step %d: staked %s != total %s", step, staked, preview.TotalStaked)
		}
		if phantom.Cmp(preview.TotalPhantom) != 0 {
			t.Fatalf("step %d: phantom %s != total %s", step, phantom, preview.TotalPhantom)
		}
		// a share clamped at zero can hide at most one unit of rounding
		slack := new(big.Int).Add(preview.TotalRewarded, big.NewInt(int64(len(users))))
		if rewarded.Cmp(slack) > 0 {
			t.Fatalf("step %d: rewarded %s exceeds total %s", step, rewarded, preview.TotalRewarded)
		}
		if outstanding.Cmp(preview.TotalVesting) != 0 {
			t.Fatalf("step %d: vesting %s != total %s", step, outstanding, preview.TotalVesting)
		}
	}

	for _, op := range []string{"stake", "unstake", "harvest", "claim"} {
		if applied[op] < 20 {
			t.Fatalf("only %d %s operations applied: %v", applied[op], op, applied)
		}
	}
}

// drawAmount picks a random amount in [1, min(limit, 500)], or nil when limit
// is zero.
func drawAmount(rng *rand.Rand, limit *big.Int) *big.Int {
	if limit == nil || limit.Sign() <= 0 {
		return nil
	}
	upper := int64(500)
	if limit.IsInt64() && limit.Int64() < upper {
		upper = limit.Int64()
	}
	return big.NewInt(rng.Int63n(upper) + 1)
}
