package staking

import (
	"errors"
	"math/big"
	"sort"
	"testing"

	"cookledger/crypto"
)

// fixedRouter prices every pair at two units of tokenB per unit of tokenA and
// settles through the mock token balances.
type fixedRouter struct {
	token  *mockToken
	module crypto.Address
}

func (r *fixedRouter) PairToken(tokenA, tokenB string) string {
	pair := []string{tokenA, tokenB}
	sort.Strings(pair)
	return "LP-" + pair[0] + "-" + pair[1]
}

func (r *fixedRouter) Quote(tokenA, tokenB string, amountA *big.Int) (*big.Int, error) {
	return new(big.Int).Mul(amountA, big.NewInt(2)), nil
}

func (r *fixedRouter) SwapExactTokensForTokens(trader crypto.Address, amountIn, amountOutMin *big.Int, path []string, to crypto.Address) (*big.Int, error) {
	out := new(big.Int).Mul(amountIn, big.NewInt(2))
	if out.Cmp(amountOutMin) < 0 {
		return nil, errors.New("router: insufficient output")
	}
	if err := r.token.Transfer(path[0], trader, r.module, amountIn); err != nil {
		return nil, err
	}
	r.token.credit(path[len(path)-1], to, out)
	return out, nil
}

func (r *fixedRouter) AddLiquidity(provider crypto.Address, tokenA, tokenB string, amountA, amountB *big.Int, to crypto.Address) (*big.Int, *big.Int, *big.Int, error) {
	usedB := new(big.Int).Sub(amountB, big.NewInt(1))
	sink := makeAddress(0xFF, 0xFF)
	if err := r.token.Transfer(tokenA, provider, sink, amountA); err != nil {
		return nil, nil, nil, err
	}
	if err := r.token.Transfer(tokenB, provider, sink, usedB); err != nil {
		return nil, nil, nil, err
	}
	liquidity := new(big.Int).Set(amountA)
	r.token.credit(r.PairToken(tokenA, tokenB), to, liquidity)
	return new(big.Int).Set(amountA), usedB, liquidity, nil
}

func newZapEnv(t *testing.T) (*testEnv, crypto.Address, *Pool) {
	env := newTestEnv(t)
	env.engine.SetRouter(&fixedRouter{token: env.token, module: env.module})
	pool := env.createPool(cookPool(10))
	alice := makeAddress(0x01, 1)
	env.fund(alice, "COOK", 10)
	env.fund(env.module, "COOK", 1_000)
	env.stake(alice, pool.ID, 10)
	env.at(10, 1_000_010)
	if err := env.engine.Harvest(alice, pool.ID, big.NewInt(100)); err != nil {
		t.Fatalf("harvest: %v", err)
	}
	return env, alice, pool
}

func TestZapStakeIntoSamePool(t *testing.T) {
	env, alice, pool := newZapEnv(t)

	if err := env.engine.ZapStake(alice, pool.ID, big.NewInt(60), pool.ID, nil); err != nil {
		t.Fatalf("zap: %v", err)
	}
	view := env.account(pool.ID, alice)
	expectInt(t, "staked", view.Staked, 70)
	expectInt(t, "claimed", view.Claimed, 60)
	expectInt(t, "claimable", view.Claimable, 40)
	expectInt(t, "wallet untouched", env.token.balance("COOK", alice), 0)
	expectInt(t, "total vesting", env.pool(pool.ID).TotalVesting, 40)

	if err := env.engine.ZapStake(alice, pool.ID, big.NewInt(41), pool.ID, nil); !errors.Is(err, ErrInsufficientClaimable) {
		t.Fatalf("expected ErrInsufficientClaimable, got %v", err)
	}
}

func TestZapStakeSwapsIntoOtherPool(t *testing.T) {
	env, alice, pool := newZapEnv(t)
	target := env.createPool(PoolConfig{Token: "USDC", RewardToken: "COOK", AddressCap: big.NewInt(100)})

	if err := env.engine.ZapStake(alice, pool.ID, big.NewInt(40), target.ID, big.NewInt(80)); err != nil {
		t.Fatalf("zap: %v", err)
	}
	expectInt(t, "target staked", env.account(target.ID, alice).Staked, 80)
	expectInt(t, "source claimed", env.account(pool.ID, alice).Claimed, 40)

	if err := env.engine.ZapStake(alice, pool.ID, big.NewInt(10), target.ID, big.NewInt(21)); err == nil {
		t.Fatalf("expected minOut to reject the swap")
	}
}

func TestZapLPStakesLiquidity(t *testing.T) {
	env, alice, pool := newZapEnv(t)
	lpPool := env.createPool(PoolConfig{Kind: PoolKindLP, RewardToken: "COOK", PairToken: "USDC"})
	if lpPool.Token != "LP-COOK-USDC" {
		t.Fatalf("unexpected lp token %q", lpPool.Token)
	}
	env.fund(alice, "USDC", 100)

	if err := env.engine.ZapLP(alice, pool.ID, big.NewInt(30), pool.ID); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for a single pool, got %v", err)
	}
	if err := env.engine.ZapLP(alice, pool.ID, big.NewInt(30), lpPool.ID); err != nil {
		t.Fatalf("zap lp: %v", err)
	}
	expectInt(t, "lp staked", env.account(lpPool.ID, alice).Staked, 30)
	// 60 USDC quoted, 59 used, 1 refunded
	expectInt(t, "usdc wallet", env.token.balance("USDC", alice), 41)
	expectInt(t, "source claimable", env.account(pool.ID, alice).Claimable, 70)
}

func TestZapRespectsTargetPolicy(t *testing.T) {
	env, alice, pool := newZapEnv(t)
	target := env.createPool(PoolConfig{Token: "USDC", RewardToken: "COOK"})
	if err := env.engine.SetPause(env.gov, target.ID, true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := env.engine.ZapStake(alice, pool.ID, big.NewInt(10), target.ID, nil); !errors.Is(err, ErrPaused) {
		t.Fatalf("expected ErrPaused, got %v", err)
	}
	if err := env.engine.SetPoolCap(env.gov, pool.ID, big.NewInt(15)); err != nil {
		t.Fatalf("cap: %v", err)
	}
	if err := env.engine.ZapStake(alice, pool.ID, big.NewInt(10), pool.ID, nil); !errors.Is(err, ErrCapExceeded) {
		t.Fatalf("expected ErrCapExceeded, got %v", err)
	}
	expectInt(t, "claimable unchanged", env.account(pool.ID, alice).Claimable, 100)
}
