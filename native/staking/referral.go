package staking

import (
	"math/big"

	"cookledger/crypto"
)

// resolveReferral decides the binding for a deposit. It returns the binding
// in force after the deposit and whether the deposit creates it. Bindings are
// only created and enforced while the pool's competition is active.
func (e *Engine) resolveReferral(pool *Pool, user, referral crypto.Address) (*ReferralBinding, bool, error) {
	binding, err := e.state.GetReferralBinding(pool.ID, user)
	if err != nil {
		return nil, false, err
	}
	if binding == nil {
		binding = &ReferralBinding{State: BindingUnset}
	}
	if binding.Bound() {
		// A conflicting referral only fails while the competition runs; once
		// it stops the argument is ignored and the binding is kept.
		if pool.ReferralActive && !referral.IsZero() && !referral.Equal(binding.Referral) {
			return nil, false, ErrReferralMismatch
		}
		return binding, false, nil
	}
	if referral.IsZero() || !pool.ReferralActive {
		return binding, false, nil
	}
	if referral.Equal(user) {
		return nil, false, ErrReferralMismatch
	}
	return &ReferralBinding{State: BindingBound, Referral: referral}, true, nil
}

func (e *Engine) loadReferralLedger(pool *Pool, referral crypto.Address) (*ReferralLedger, error) {
	ledger, err := e.state.GetReferralLedger(pool.ID, referral)
	if err != nil {
		return nil, err
	}
	if ledger == nil {
		ledger = &ReferralLedger{Referral: referral}
	}
	ledger.Referral = referral
	ledger.EnsureDefaults()
	return ledger, nil
}

// bindReferral stores a new binding and attributes the referee's whole stake
// to the referral. The pool must be accrued.
func (e *Engine) bindReferral(pool *Pool, referee crypto.Address, binding *ReferralBinding, stake *big.Int) error {
	ledger, err := e.loadReferralLedger(pool, binding.Referral)
	if err != nil {
		return err
	}
	settleReferral(pool, ledger)
	ledger.ReferredStake = new(big.Int).Add(ledger.ReferredStake, stake)
	if err := e.state.AppendReferee(pool.ID, binding.Referral, ledger.RefereeCount, referee); err != nil {
		return err
	}
	ledger.RefereeCount++
	if err := e.state.PutReferralBinding(pool.ID, referee, binding); err != nil {
		return err
	}
	if err := e.state.PutReferralLedger(pool.ID, ledger); err != nil {
		return err
	}
	e.emit(NewReferralBoundEvent(pool.ID, referee, binding.Referral))
	return nil
}

// adjustReferredStake moves the referral's attributed stake by delta. Unbound
// referees are ignored.
func (e *Engine) adjustReferredStake(pool *Pool, binding *ReferralBinding, delta *big.Int, increase bool) error {
	if !binding.Bound() {
		return nil
	}
	ledger, err := e.loadReferralLedger(pool, binding.Referral)
	if err != nil {
		return err
	}
	settleReferral(pool, ledger)
	if increase {
		ledger.ReferredStake = new(big.Int).Add(ledger.ReferredStake, delta)
	} else {
		ledger.ReferredStake = new(big.Int).Sub(ledger.ReferredStake, delta)
		if ledger.ReferredStake.Sign() < 0 {
			ledger.ReferredStake = big.NewInt(0)
		}
	}
	return e.state.PutReferralLedger(pool.ID, ledger)
}

// StartReferralBonus begins accruing referral power in the pool.
func (e *Engine) StartReferralBonus(caller crypto.Address, poolID uint32) error {
	return e.toggleReferral(caller, poolID, true)
}

// StopReferralBonus freezes referral power. Bindings and accrued power are
// kept.
func (e *Engine) StopReferralBonus(caller crypto.Address, poolID uint32) error {
	return e.toggleReferral(caller, poolID, false)
}

func (e *Engine) toggleReferral(caller crypto.Address, poolID uint32, active bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireRole(caller, RoleManager); err != nil {
		return err
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return err
	}
	if pool.ReferralActive == active {
		return nil
	}
	if err := e.accrue(pool); err != nil {
		return err
	}
	pool.ReferralActive = active
	if err := e.state.PutPool(pool); err != nil {
		return err
	}
	e.emit(NewReferralToggleEvent(poolID, active))
	return nil
}
