package staking

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/holiman/uint256"

	"cookledger/crypto"
)

const (
	// RoleGovernance may perform every administrative action.
	RoleGovernance = "staking.governance"
	// RoleSentinel may pause pools.
	RoleSentinel = "staking.sentinel"
	// RoleManager tunes pool parameters, caps, the blacklist and referral
	// competitions.
	RoleManager = "staking.manager"
)

var (
	ErrUnknownRole  = errors.New("staking engine: unknown role")
	ErrInvalidRate  = errors.New("staking engine: rate must be a non-negative 256-bit value")
	ErrWeightedPool = errors.New("staking engine: pool uses weighted emission")
)

// KnownRoles lists the roles accepted by GrantRole.
func KnownRoles() []string {
	return []string{RoleGovernance, RoleSentinel, RoleManager}
}

func isKnownRole(role string) bool {
	for _, r := range KnownRoles() {
		if r == role {
			return true
		}
	}
	return false
}

// requireRole passes when caller holds governance or any of roles.
func (e *Engine) requireRole(caller crypto.Address, roles ...string) error {
	if caller.IsZero() {
		return ErrUnauthorized
	}
	for _, role := range append([]string{RoleGovernance}, roles...) {
		ok, err := e.state.HasRole(role, caller)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return ErrUnauthorized
}

func validateRate(rate *big.Int) (*big.Int, error) {
	if rate == nil {
		return big.NewInt(0), nil
	}
	if rate.Sign() < 0 {
		return nil, ErrInvalidRate
	}
	if _, overflow := uint256.FromBig(rate); overflow {
		return nil, ErrInvalidRate
	}
	return new(big.Int).Set(rate), nil
}

// adminPool loads the pool after checking that caller holds one of roles.
func (e *Engine) adminPool(caller crypto.Address, poolID uint32, roles ...string) (*Pool, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := e.requireRole(caller, roles...); err != nil {
		return nil, err
	}
	return e.loadPool(poolID)
}

func (e *Engine) putParam(pool *Pool, param, oldValue, newValue string) error {
	if err := e.state.PutPool(pool); err != nil {
		return err
	}
	e.emit(NewParamUpdatedEvent(pool.ID, param, oldValue, newValue))
	return nil
}

// SetRewardRate changes the fixed per-block emission of a pool. Reward up to
// the current block is accrued at the old rate.
func (e *Engine) SetRewardRate(caller crypto.Address, poolID uint32, rate *big.Int) error {
	pool, err := e.adminPool(caller, poolID, RoleManager)
	if err != nil {
		return err
	}
	if pool.Weighted {
		return ErrWeightedPool
	}
	next, err := validateRate(rate)
	if err != nil {
		return err
	}
	if err := e.accrue(pool); err != nil {
		return err
	}
	old := pool.RewardRate.String()
	pool.RewardRate = next
	return e.putParam(pool, "rewardRate", old, next.String())
}

// SetGlobalRewardRate changes the emission shared by weighted pools.
func (e *Engine) SetGlobalRewardRate(caller crypto.Address, rate *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireRole(caller, RoleManager); err != nil {
		return err
	}
	next, err := validateRate(rate)
	if err != nil {
		return err
	}
	reg, err := e.loadRegistry()
	if err != nil {
		return err
	}
	if err := e.accrueWeighted(reg); err != nil {
		return err
	}
	old := reg.GlobalRate.String()
	reg.GlobalRate = next
	if err := e.state.PutRegistry(reg); err != nil {
		return err
	}
	e.emit(NewParamUpdatedEvent(0, "globalRewardRate", old, next.String()))
	return nil
}

// SetRewardWeights assigns emission weights and switches the listed pools to
// weighted emission. Every weighted pool is accrued under the old weights
// first.
func (e *Engine) SetRewardWeights(caller crypto.Address, poolIDs []uint32, weights []*big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireRole(caller); err != nil {
		return err
	}
	if len(poolIDs) != len(weights) {
		return ErrWeightsMismatch
	}
	reg, err := e.loadRegistry()
	if err != nil {
		return err
	}
	updates := make(map[uint32]*big.Int, len(poolIDs))
	for i, id := range poolIDs {
		if id >= reg.PoolCount {
			return fmt.Errorf("%w: %d", ErrUnknownPool, id)
		}
		w, err := validateRate(weights[i])
		if err != nil {
			return err
		}
		updates[id] = w
	}
	if err := e.accrueWeighted(reg); err != nil {
		return err
	}
	total := big.NewInt(0)
	for id := uint32(0); id < reg.PoolCount; id++ {
		pool, err := e.loadPool(id)
		if err != nil {
			return err
		}
		if w, ok := updates[id]; ok {
			if !pool.Weighted {
				// Fixed-rate pools join at the current block.
				accruePool(pool, pool.RewardRate, e.blockHeight)
			}
			old := pool.RewardWeight.String()
			pool.RewardWeight = w
			pool.Weighted = true
			if err := e.putParam(pool, "rewardWeight", old, w.String()); err != nil {
				return err
			}
		}
		if pool.Weighted {
			total.Add(total, pool.RewardWeight)
		}
	}
	reg.TotalWeight = total
	return e.state.PutRegistry(reg)
}

// accrueWeighted brings every weighted pool to the current block under the
// registry's present rate and weights.
func (e *Engine) accrueWeighted(reg *Registry) error {
	for id := uint32(0); id < reg.PoolCount; id++ {
		pool, err := e.loadPool(id)
		if err != nil {
			return err
		}
		if !pool.Weighted {
			continue
		}
		accruePool(pool, effectiveRate(pool, reg), e.blockHeight)
		if err := e.state.PutPool(pool); err != nil {
			return err
		}
	}
	return nil
}

// SetLockupDuration changes the lockup applied to every tranche of the pool.
func (e *Engine) SetLockupDuration(caller crypto.Address, poolID uint32, seconds uint64) error {
	pool, err := e.adminPool(caller, poolID, RoleManager)
	if err != nil {
		return err
	}
	old := pool.LockupDuration
	pool.LockupDuration = seconds
	return e.putParam(pool, "lockupDuration", strconv.FormatUint(old, 10), strconv.FormatUint(seconds, 10))
}

// SetVestingDuration changes the vesting schedule. step 0 vests continuously.
func (e *Engine) SetVestingDuration(caller crypto.Address, poolID uint32, seconds, step uint64) error {
	pool, err := e.adminPool(caller, poolID, RoleManager)
	if err != nil {
		return err
	}
	old := pool.VestingDuration
	pool.VestingDuration = seconds
	pool.VestingStep = step
	return e.putParam(pool, "vestingDuration", strconv.FormatUint(old, 10), strconv.FormatUint(seconds, 10))
}

// SetPoolCap bounds TotalStaked; zero removes the cap.
func (e *Engine) SetPoolCap(caller crypto.Address, poolID uint32, limit *big.Int) error {
	pool, err := e.adminPool(caller, poolID, RoleManager)
	if err != nil {
		return err
	}
	next, err := validateRate(limit)
	if err != nil {
		return err
	}
	old := pool.PoolCap.String()
	pool.PoolCap = next
	return e.putParam(pool, "poolCap", old, next.String())
}

// SetAddressCap bounds each account's stake; zero removes the cap.
func (e *Engine) SetAddressCap(caller crypto.Address, poolID uint32, limit *big.Int) error {
	pool, err := e.adminPool(caller, poolID, RoleManager)
	if err != nil {
		return err
	}
	next, err := validateRate(limit)
	if err != nil {
		return err
	}
	old := pool.AddressCap.String()
	pool.AddressCap = next
	return e.putParam(pool, "addressCap", old, next.String())
}

// SetPause toggles the pool pause. Sentinels may pause; lifting a pause needs
// a manager.
func (e *Engine) SetPause(caller crypto.Address, poolID uint32, paused bool) error {
	roles := []string{RoleManager}
	if paused {
		roles = append(roles, RoleSentinel)
	}
	pool, err := e.adminPool(caller, poolID, roles...)
	if err != nil {
		return err
	}
	old := pool.Paused
	pool.Paused = paused
	return e.putParam(pool, "paused", strconv.FormatBool(old), strconv.FormatBool(paused))
}

// SetBlacklisted adds or removes addr from the pool blacklist.
func (e *Engine) SetBlacklisted(caller crypto.Address, poolID uint32, addr crypto.Address, listed bool) error {
	pool, err := e.adminPool(caller, poolID, RoleManager)
	if err != nil {
		return err
	}
	if err := e.state.SetBlacklisted(pool.ID, addr, listed); err != nil {
		return err
	}
	e.emit(NewBlacklistUpdatedEvent(pool.ID, addr, listed))
	return nil
}

// GrantRole gives addr the role. Only governance may grant.
func (e *Engine) GrantRole(caller crypto.Address, role string, addr crypto.Address) error {
	return e.setRole(caller, role, addr, true)
}

// RevokeRole removes the role from addr.
func (e *Engine) RevokeRole(caller crypto.Address, role string, addr crypto.Address) error {
	return e.setRole(caller, role, addr, false)
}

func (e *Engine) setRole(caller crypto.Address, role string, addr crypto.Address, granted bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	role = strings.TrimSpace(role)
	if !isKnownRole(role) {
		return fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	if err := e.requireRole(caller); err != nil {
		return err
	}
	if err := e.state.SetRole(role, addr, granted); err != nil {
		return err
	}
	e.emit(NewRoleUpdatedEvent(role, addr, granted))
	return nil
}

// WithdrawReserve transfers reward reserve the pools do not owe to anyone.
// Staked principal, accrued and vesting reward stay untouchable.
func (e *Engine) WithdrawReserve(caller crypto.Address, token string, amount *big.Int, to crypto.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireRole(caller); err != nil {
		return err
	}
	amt, err := validateAmount(amount)
	if err != nil {
		return err
	}
	token = normalizeSymbol(token)
	free, err := e.freeReserve(token)
	if err != nil {
		return err
	}
	if free.Cmp(amt) < 0 {
		return fmt.Errorf("%w: free %s", ErrReserveExceeded, free)
	}
	if err := e.token.Transfer(token, e.moduleAddress, to, amt); err != nil {
		return fmt.Errorf("staking engine: withdraw reserve: %w", err)
	}
	e.emit(NewReserveWithdrawnEvent(token, to, amt))
	return nil
}

// freeReserve is the module balance of token minus every pool obligation in
// that token, after accruing all pools.
func (e *Engine) freeReserve(token string) (*big.Int, error) {
	reg, err := e.loadRegistry()
	if err != nil {
		return nil, err
	}
	owed := big.NewInt(0)
	for id := uint32(0); id < reg.PoolCount; id++ {
		pool, err := e.loadPool(id)
		if err != nil {
			return nil, err
		}
		accruePool(pool, effectiveRate(pool, reg), e.blockHeight)
		if err := e.state.PutPool(pool); err != nil {
			return nil, err
		}
		if pool.Token == token {
			owed.Add(owed, pool.TotalStaked)
		}
		if pool.RewardToken == token {
			owed.Add(owed, pool.TotalRewarded)
			owed.Add(owed, pool.TotalVesting)
		}
	}
	balance, err := e.token.BalanceOf(token, e.moduleAddress)
	if err != nil {
		return nil, err
	}
	free := new(big.Int).Sub(zeroIfNil(balance), owed)
	if free.Sign() < 0 {
		free.SetInt64(0)
	}
	return free, nil
}
