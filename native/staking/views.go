package staking

import (
	"math/big"

	"cookledger/crypto"
)

// AccountView is the read-only position of an address as of the current
// block.
type AccountView struct {
	PoolID           uint32
	Address          crypto.Address
	Staked           *big.Int
	Phantom          *big.Int
	Rewarded         *big.Int
	Claimed          *big.Int
	Claimable        *big.Int
	Unstakable       *big.Int
	Vesting          *big.Int
	AccumulatedPower *big.Int
	Deposits         []DepositTranche
	VestingEntries   []VestingEntry
	Referral         *crypto.Address
}

// previewPool returns a copy of the pool accrued to the current block without
// persisting anything.
func (e *Engine) previewPool(id uint32) (*Pool, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pool, err := e.loadPool(id)
	if err != nil {
		return nil, err
	}
	reg, err := e.loadRegistry()
	if err != nil {
		return nil, err
	}
	preview := pool.Clone()
	accruePool(preview, effectiveRate(preview, reg), e.blockHeight)
	return preview, nil
}

// Registry returns the shared emission settings.
func (e *Engine) Registry() (*Registry, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadRegistry()
}

// Pool returns the pool accrued to the current block.
func (e *Engine) Pool(id uint32) (*Pool, error) {
	return e.previewPool(id)
}

// Pools returns every registered pool in id order.
func (e *Engine) Pools() ([]*Pool, error) {
	reg, err := e.Registry()
	if err != nil {
		return nil, err
	}
	out := make([]*Pool, 0, reg.PoolCount)
	for id := uint32(0); id < reg.PoolCount; id++ {
		pool, err := e.previewPool(id)
		if err != nil {
			return nil, err
		}
		out = append(out, pool)
	}
	return out, nil
}

// PoolIDByToken resolves the pool accepting token.
func (e *Engine) PoolIDByToken(token string) (uint32, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	id, ok, err := e.state.PoolIDByToken(normalizeSymbol(token))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrUnknownPool
	}
	return id, nil
}

// Account returns the view of addr in the pool as of the current block.
func (e *Engine) Account(poolID uint32, addr crypto.Address) (*AccountView, error) {
	pool, err := e.previewPool(poolID)
	if err != nil {
		return nil, err
	}
	acct, _, err := e.loadAccount(poolID, addr)
	if err != nil {
		return nil, err
	}
	rewarded := rewardedOf(pool, acct)
	view := &AccountView{
		PoolID:           poolID,
		Address:          addr,
		Staked:           acct.Staked,
		Phantom:          acct.Phantom,
		Rewarded:         rewarded,
		Claimed:          acct.Claimed,
		Claimable:        claimableAmount(pool, acct, e.blockTime),
		Unstakable:       unlockedAmount(acct.Deposits, pool.LockupDuration, e.blockTime),
		Vesting:          acct.VestingTotal(),
		AccumulatedPower: new(big.Int).Add(acct.Earned, rewarded),
		Deposits:         acct.Deposits,
		VestingEntries:   acct.Vesting,
	}
	binding, err := e.state.GetReferralBinding(poolID, addr)
	if err != nil {
		return nil, err
	}
	if binding.Bound() {
		referral := binding.Referral
		view.Referral = &referral
	}
	return view, nil
}

// Rewarded is the accrued, unharvested reward of addr.
func (e *Engine) Rewarded(poolID uint32, addr crypto.Address) (*big.Int, error) {
	view, err := e.Account(poolID, addr)
	if err != nil {
		return nil, err
	}
	return view.Rewarded, nil
}

// Claimable is the vested, unclaimed reward of addr.
func (e *Engine) Claimable(poolID uint32, addr crypto.Address) (*big.Int, error) {
	view, err := e.Account(poolID, addr)
	if err != nil {
		return nil, err
	}
	return view.Claimable, nil
}

// Unstakable is the stake of addr whose lockup has elapsed.
func (e *Engine) Unstakable(poolID uint32, addr crypto.Address) (*big.Int, error) {
	view, err := e.Account(poolID, addr)
	if err != nil {
		return nil, err
	}
	return view.Unstakable, nil
}

// AccumulatedPower is every unit of reward ever accrued to addr, vested or
// not.
func (e *Engine) AccumulatedPower(poolID uint32, addr crypto.Address) (*big.Int, error) {
	view, err := e.Account(poolID, addr)
	if err != nil {
		return nil, err
	}
	return view.AccumulatedPower, nil
}

// Deposits lists the live lockup tranches of addr.
func (e *Engine) Deposits(poolID uint32, addr crypto.Address) ([]DepositTranche, error) {
	view, err := e.Account(poolID, addr)
	if err != nil {
		return nil, err
	}
	return view.Deposits, nil
}

// ReferralPower is the power accrued by referral as of the current block.
func (e *Engine) ReferralPower(poolID uint32, referral crypto.Address) (*big.Int, error) {
	pool, err := e.previewPool(poolID)
	if err != nil {
		return nil, err
	}
	ledger, err := e.loadReferralLedger(pool, referral)
	if err != nil {
		return nil, err
	}
	settleReferral(pool, ledger)
	return ledger.Power, nil
}

// Referees lists the addresses bound to referral in bind order.
func (e *Engine) Referees(poolID uint32, referral crypto.Address) ([]crypto.Address, error) {
	pool, err := e.previewPool(poolID)
	if err != nil {
		return nil, err
	}
	ledger, err := e.loadReferralLedger(pool, referral)
	if err != nil {
		return nil, err
	}
	out := make([]crypto.Address, 0, ledger.RefereeCount)
	for i := uint64(0); i < ledger.RefereeCount; i++ {
		addr, ok, err := e.state.RefereeAt(poolID, referral, i)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, addr)
		}
	}
	return out, nil
}

// PoolUsers pages through the pool's depositors in first-deposit order.
func (e *Engine) PoolUsers(poolID uint32, offset, limit uint64) ([]crypto.Address, error) {
	pool, err := e.previewPool(poolID)
	if err != nil {
		return nil, err
	}
	if offset >= pool.UserCount {
		return []crypto.Address{}, nil
	}
	end := pool.UserCount
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]crypto.Address, 0, end-offset)
	for i := offset; i < end; i++ {
		addr, ok, err := e.state.PoolUserAt(poolID, i)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, addr)
		}
	}
	return out, nil
}
