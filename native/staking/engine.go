package staking

import (
	"fmt"
	"math/big"

	"cookledger/core/events"
	"cookledger/core/types"
	"cookledger/crypto"
	nativecommon "cookledger/native/common"
)

const moduleName = "staking"

type engineState interface {
	GetRegistry() (*Registry, error)
	PutRegistry(reg *Registry) error
	GetPool(id uint32) (*Pool, bool, error)
	PutPool(pool *Pool) error
	PoolIDByToken(token string) (uint32, bool, error)
	PutPoolToken(token string, id uint32) error
	GetStakeAccount(poolID uint32, addr crypto.Address) (*StakeAccount, bool, error)
	PutStakeAccount(poolID uint32, acct *StakeAccount) error
	AppendPoolUser(poolID uint32, index uint64, addr crypto.Address) error
	PoolUserAt(poolID uint32, index uint64) (crypto.Address, bool, error)
	GetReferralBinding(poolID uint32, referee crypto.Address) (*ReferralBinding, error)
	PutReferralBinding(poolID uint32, referee crypto.Address, binding *ReferralBinding) error
	GetReferralLedger(poolID uint32, referral crypto.Address) (*ReferralLedger, error)
	PutReferralLedger(poolID uint32, ledger *ReferralLedger) error
	AppendReferee(poolID uint32, referral crypto.Address, index uint64, referee crypto.Address) error
	RefereeAt(poolID uint32, referral crypto.Address, index uint64) (crypto.Address, bool, error)
	IsBlacklisted(poolID uint32, addr crypto.Address) (bool, error)
	SetBlacklisted(poolID uint32, addr crypto.Address, listed bool) error
	HasRole(role string, addr crypto.Address) (bool, error)
	SetRole(role string, addr crypto.Address, granted bool) error
}

// Token moves balances of a named token. The engine spends on behalf of users
// through TransferFrom and pays out of its module account through Transfer.
type Token interface {
	TransferFrom(symbol string, spender, from, to crypto.Address, amount *big.Int) error
	Transfer(symbol string, from, to crypto.Address, amount *big.Int) error
	BalanceOf(symbol string, addr crypto.Address) (*big.Int, error)
}

// Router is the swap and liquidity venue used by the zap operations.
type Router interface {
	Quote(tokenA, tokenB string, amountA *big.Int) (*big.Int, error)
	SwapExactTokensForTokens(trader crypto.Address, amountIn, amountOutMin *big.Int, path []string, to crypto.Address) (*big.Int, error)
	AddLiquidity(provider crypto.Address, tokenA, tokenB string, amountA, amountB *big.Int, to crypto.Address) (usedA, usedB, liquidity *big.Int, err error)
	PairToken(tokenA, tokenB string) string
}

// Engine applies the staking state transitions. It is not safe for concurrent
// use; callers serialise operations and bind it to one state transaction at a
// time.
type Engine struct {
	state         engineState
	token         Token
	router        Router
	emitter       events.Emitter
	pauses        nativecommon.PauseView
	moduleAddress crypto.Address
	blockHeight   uint64
	blockTime     uint64
}

// NewEngine constructs an engine whose pooled funds are held by moduleAddr.
func NewEngine(moduleAddr crypto.Address) *Engine {
	return &Engine{
		moduleAddress: moduleAddr,
		emitter:       events.NoopEmitter{},
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetToken wires the token ledger used for transfers.
func (e *Engine) SetToken(token Token) { e.token = token }

// SetRouter wires the swap venue used by zaps.
func (e *Engine) SetRouter(router Router) { e.router = router }

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter configures the event emitter. Passing nil discards events.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetBlockHeight records the block height used for reward accrual.
func (e *Engine) SetBlockHeight(height uint64) {
	if e == nil {
		return
	}
	e.blockHeight = height
}

// SetBlockTime records the block timestamp (unix seconds) used for lockup and
// vesting.
func (e *Engine) SetBlockTime(ts uint64) {
	if e == nil {
		return
	}
	e.blockTime = ts
}

// ModuleAddress returns the account that custodies staked and reward funds.
func (e *Engine) ModuleAddress() crypto.Address { return e.moduleAddress }

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(stakingEvent{evt: event})
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.token == nil {
		return errNilToken
	}
	return nil
}

func (e *Engine) loadRegistry() (*Registry, error) {
	reg, err := e.state.GetRegistry()
	if err != nil {
		return nil, err
	}
	if reg == nil {
		reg = &Registry{}
	}
	reg.EnsureDefaults()
	return reg, nil
}

func (e *Engine) loadPool(id uint32) (*Pool, error) {
	pool, ok, err := e.state.GetPool(id)
	if err != nil {
		return nil, err
	}
	if !ok || pool == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPool, id)
	}
	pool.EnsureDefaults()
	return pool, nil
}

// loadAccount returns the account or a fresh zero record; the boolean
// reports whether it already existed.
func (e *Engine) loadAccount(poolID uint32, addr crypto.Address) (*StakeAccount, bool, error) {
	acct, ok, err := e.state.GetStakeAccount(poolID, addr)
	if err != nil {
		return nil, false, err
	}
	if !ok || acct == nil {
		acct = &StakeAccount{Address: addr}
		ok = false
	}
	acct.Address = addr
	acct.EnsureDefaults()
	return acct, ok, nil
}

// accrue advances the pool to the current block.
func (e *Engine) accrue(pool *Pool) error {
	reg, err := e.loadRegistry()
	if err != nil {
		return err
	}
	accruePool(pool, effectiveRate(pool, reg), e.blockHeight)
	return nil
}

// Stake deposits amount of the pool token for user. A non-zero referral binds
// the user to that referral while a referral competition is active.
func (e *Engine) Stake(user crypto.Address, poolID uint32, amount *big.Int, referral crypto.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	amt, err := validateAmount(amount)
	if err != nil {
		return err
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return err
	}
	if err := e.guardActive(pool, user); err != nil {
		return err
	}
	return e.deposit(pool, user, amt, referral, true)
}

// deposit credits amt to user. When pull is false the tokens are already held
// by the module account.
func (e *Engine) deposit(pool *Pool, user crypto.Address, amt *big.Int, referral crypto.Address, pull bool) error {
	acct, existed, err := e.loadAccount(pool.ID, user)
	if err != nil {
		return err
	}
	if err := checkCaps(pool, acct, amt); err != nil {
		return err
	}
	binding, newlyBound, err := e.resolveReferral(pool, user, referral)
	if err != nil {
		return err
	}
	if err := e.accrue(pool); err != nil {
		return err
	}

	phantom := mintPhantom(pool, amt)
	staked, err := checkedAdd(acct.Staked, amt)
	if err != nil {
		return err
	}
	totalStaked, err := checkedAdd(pool.TotalStaked, amt)
	if err != nil {
		return err
	}

	if pull {
		if err := e.token.TransferFrom(pool.Token, e.moduleAddress, user, e.moduleAddress, amt); err != nil {
			return fmt.Errorf("staking engine: collect stake: %w", err)
		}
	}

	acct.Staked = staked
	acct.Phantom = new(big.Int).Add(acct.Phantom, phantom)
	acct.Deposits = append(acct.Deposits, DepositTranche{Amount: new(big.Int).Set(amt), Timestamp: e.blockTime})
	pool.TotalStaked = totalStaked
	pool.TotalPhantom = new(big.Int).Add(pool.TotalPhantom, phantom)

	if !existed {
		if err := e.state.AppendPoolUser(pool.ID, pool.UserCount, user); err != nil {
			return err
		}
		pool.UserCount++
	}

	if newlyBound {
		if err := e.bindReferral(pool, user, binding, acct.Staked); err != nil {
			return err
		}
	} else if err := e.adjustReferredStake(pool, binding, amt, true); err != nil {
		return err
	}

	if err := e.state.PutStakeAccount(pool.ID, acct); err != nil {
		return err
	}
	if err := e.state.PutPool(pool); err != nil {
		return err
	}
	e.emit(NewUserEvent(EventTypeStaked, pool.ID, user, amt))
	return nil
}

// Unstake withdraws amount of unlocked stake. The matching share of unharvested
// reward moves into a new vesting entry. Unstake is never blocked by pauses
// or the blacklist.
func (e *Engine) Unstake(user crypto.Address, poolID uint32, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	amt, err := validateAmount(amount)
	if err != nil {
		return err
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return err
	}
	acct, existed, err := e.loadAccount(poolID, user)
	if err != nil {
		return err
	}
	if !existed || acct.Staked.Cmp(amt) < 0 {
		return ErrInsufficientUnlocked
	}
	deposits, err := consumeUnlocked(acct.Deposits, amt, pool.LockupDuration, e.blockTime)
	if err != nil {
		return err
	}
	if err := e.accrue(pool); err != nil {
		return err
	}

	rewarded := rewardedOf(pool, acct)
	share := mulDiv(rewarded, amt, acct.Staked)
	burned := mulDiv(acct.Phantom, amt, acct.Staked)
	if amt.Cmp(acct.Staked) == 0 {
		share = rewarded
		burned = new(big.Int).Set(acct.Phantom)
	}
	share = minBig(share, pool.TotalRewarded)

	binding, err := e.state.GetReferralBinding(poolID, user)
	if err != nil {
		return err
	}
	if err := e.adjustReferredStake(pool, binding, amt, false); err != nil {
		return err
	}

	if err := e.token.Transfer(pool.Token, e.moduleAddress, user, amt); err != nil {
		return fmt.Errorf("staking engine: release stake: %w", err)
	}

	acct.Staked = new(big.Int).Sub(acct.Staked, amt)
	acct.Phantom = new(big.Int).Sub(acct.Phantom, burned)
	acct.Deposits = deposits
	pool.TotalStaked = new(big.Int).Sub(pool.TotalStaked, amt)
	pool.TotalPhantom = new(big.Int).Sub(pool.TotalPhantom, burned)
	if share.Sign() > 0 {
		moveToVesting(pool, acct, share, e.blockTime)
	}

	if err := e.state.PutStakeAccount(poolID, acct); err != nil {
		return err
	}
	if err := e.state.PutPool(pool); err != nil {
		return err
	}
	e.emit(NewUserEvent(EventTypeUnstaked, poolID, user, amt))
	if share.Sign() > 0 {
		e.emit(NewUserEvent(EventTypeHarvested, poolID, user, share))
	}
	return nil
}

// Exit unstakes every unlocked unit the user holds in the pool and harvests
// whatever reward is left. The harvest half is skipped while the pool is
// paused or the user is blacklisted.
func (e *Engine) Exit(user crypto.Address, poolID uint32) error {
	if err := e.ready(); err != nil {
		return err
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return err
	}
	acct, _, err := e.loadAccount(poolID, user)
	if err != nil {
		return err
	}
	unlocked := unlockedAmount(acct.Deposits, pool.LockupDuration, e.blockTime)
	if unlocked.Sign() > 0 {
		if err := e.Unstake(user, poolID, unlocked); err != nil {
			return err
		}
	}
	if e.guardActive(pool, user) != nil {
		if unlocked.Sign() == 0 {
			return ErrInsufficientUnlocked
		}
		return nil
	}
	rewarded, err := e.Rewarded(poolID, user)
	if err != nil {
		return err
	}
	if rewarded.Sign() > 0 {
		return e.Harvest(user, poolID, rewarded)
	}
	if unlocked.Sign() == 0 {
		return ErrInsufficientUnlocked
	}
	return nil
}

// Harvest moves amount of accrued reward into a new vesting entry.
func (e *Engine) Harvest(user crypto.Address, poolID uint32, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	amt, err := validateAmount(amount)
	if err != nil {
		return err
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return err
	}
	if err := e.guardActive(pool, user); err != nil {
		return err
	}
	acct, _, err := e.loadAccount(poolID, user)
	if err != nil {
		return err
	}
	if err := e.accrue(pool); err != nil {
		return err
	}
	if pool.TotalRewarded.Cmp(amt) < 0 {
		return ErrInsufficientTotalRewarded
	}
	if rewardedOf(pool, acct).Cmp(amt) < 0 {
		return ErrInsufficientRewarded
	}
	// The harvested amount leaves TotalRewarded and joins phantom so the
	// backing per staked unit is unchanged.
	acct.Phantom = new(big.Int).Add(acct.Phantom, amt)
	pool.TotalPhantom = new(big.Int).Add(pool.TotalPhantom, amt)
	moveToVesting(pool, acct, amt, e.blockTime)

	if err := e.state.PutStakeAccount(poolID, acct); err != nil {
		return err
	}
	if err := e.state.PutPool(pool); err != nil {
		return err
	}
	e.emit(NewUserEvent(EventTypeHarvested, poolID, user, amt))
	return nil
}

// Claim pays out amount of vested reward.
func (e *Engine) Claim(user crypto.Address, poolID uint32, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	amt, err := validateAmount(amount)
	if err != nil {
		return err
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return err
	}
	if err := e.guardActive(pool, user); err != nil {
		return err
	}
	acct, err := e.takeClaimable(pool, user, amt)
	if err != nil {
		return err
	}
	if err := e.token.Transfer(pool.RewardToken, e.moduleAddress, user, amt); err != nil {
		return fmt.Errorf("staking engine: pay reward: %w", err)
	}
	if err := e.state.PutStakeAccount(poolID, acct); err != nil {
		return err
	}
	if err := e.state.PutPool(pool); err != nil {
		return err
	}
	e.emit(NewUserEvent(EventTypeClaimed, poolID, user, amt))
	return nil
}

// takeClaimable books amt against the user's vested balance and the pool's
// vesting total. The caller persists both records.
func (e *Engine) takeClaimable(pool *Pool, user crypto.Address, amt *big.Int) (*StakeAccount, error) {
	acct, _, err := e.loadAccount(pool.ID, user)
	if err != nil {
		return nil, err
	}
	if err := e.accrue(pool); err != nil {
		return nil, err
	}
	if claimableAmount(pool, acct, e.blockTime).Cmp(amt) < 0 {
		return nil, ErrInsufficientClaimable
	}
	acct.Claimed = new(big.Int).Add(acct.Claimed, amt)
	pool.TotalClaimed = new(big.Int).Add(pool.TotalClaimed, amt)
	pool.TotalVesting = new(big.Int).Sub(pool.TotalVesting, amt)
	if pool.TotalVesting.Sign() < 0 {
		pool.TotalVesting = big.NewInt(0)
	}
	return acct, nil
}

// moveToVesting books amt of reward out of TotalRewarded into a new vesting
// entry.
func moveToVesting(pool *Pool, acct *StakeAccount, amt *big.Int, now uint64) {
	acct.Earned = new(big.Int).Add(acct.Earned, amt)
	acct.Vesting = append(acct.Vesting, VestingEntry{Amount: new(big.Int).Set(amt), Timestamp: now})
	pool.TotalRewarded = new(big.Int).Sub(pool.TotalRewarded, amt)
	pool.TotalVesting = new(big.Int).Add(pool.TotalVesting, amt)
}
