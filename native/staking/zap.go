package staking

import (
	"fmt"
	"math/big"

	"cookledger/crypto"
)

// ZapStake claims amount of vested reward from poolID and stakes it into
// targetPoolID, swapping through the router when the target accepts a
// different token. minOut bounds the swap output.
func (e *Engine) ZapStake(user crypto.Address, poolID uint32, amount *big.Int, targetPoolID uint32, minOut *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	amt, err := validateAmount(amount)
	if err != nil {
		return err
	}
	source, target, err := e.zapPools(user, poolID, targetPoolID)
	if err != nil {
		return err
	}
	stakeAmount := amt
	if target.Token == source.RewardToken {
		acct, _, err := e.loadAccount(target.ID, user)
		if err != nil {
			return err
		}
		if err := checkCaps(target, acct, amt); err != nil {
			return err
		}
	} else {
		if e.router == nil {
			return errNilRouter
		}
		if minOut == nil {
			minOut = big.NewInt(0)
		}
		// The swap happens after the claim is booked below; quote now so a
		// missing market fails before any state changes.
		if _, err := e.router.Quote(source.RewardToken, target.Token, amt); err != nil {
			return fmt.Errorf("staking engine: quote zap: %w", err)
		}
	}
	if err := e.bookClaim(source, user, amt); err != nil {
		return err
	}
	if target.Token != source.RewardToken {
		out, err := e.router.SwapExactTokensForTokens(e.moduleAddress, amt, minOut, []string{source.RewardToken, target.Token}, e.moduleAddress)
		if err != nil {
			return fmt.Errorf("staking engine: zap swap: %w", err)
		}
		stakeAmount = out
	}
	// Reload so a zap into the same pool sees the booked claim.
	target, err = e.loadPool(targetPoolID)
	if err != nil {
		return err
	}
	if err := e.deposit(target, user, stakeAmount, crypto.Address{}, false); err != nil {
		return err
	}
	e.emit(NewZapEvent(EventTypeZapStaked, poolID, user, amt, targetPoolID, stakeAmount))
	return nil
}

// ZapLP claims amount of vested reward, pairs it with the quoted amount of the
// LP pool's pair token taken from the user, adds liquidity and stakes the
// minted LP tokens into lpPoolID.
func (e *Engine) ZapLP(user crypto.Address, poolID uint32, amount *big.Int, lpPoolID uint32) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.router == nil {
		return errNilRouter
	}
	amt, err := validateAmount(amount)
	if err != nil {
		return err
	}
	source, lpPool, err := e.zapPools(user, poolID, lpPoolID)
	if err != nil {
		return err
	}
	if lpPool.Kind != PoolKindLP || lpPool.Token != e.router.PairToken(source.RewardToken, lpPool.PairToken) {
		return fmt.Errorf("%w: pool %d does not accept %s/%s liquidity", ErrInvalidToken, lpPoolID, source.RewardToken, lpPool.PairToken)
	}
	pairAmount, err := e.router.Quote(source.RewardToken, lpPool.PairToken, amt)
	if err != nil {
		return fmt.Errorf("staking engine: quote pair: %w", err)
	}
	if err := e.bookClaim(source, user, amt); err != nil {
		return err
	}
	if err := e.token.TransferFrom(lpPool.PairToken, e.moduleAddress, user, e.moduleAddress, pairAmount); err != nil {
		return fmt.Errorf("staking engine: collect pair token: %w", err)
	}
	usedReward, usedPair, liquidity, err := e.router.AddLiquidity(e.moduleAddress, source.RewardToken, lpPool.PairToken, amt, pairAmount, e.moduleAddress)
	if err != nil {
		return fmt.Errorf("staking engine: add liquidity: %w", err)
	}
	if err := e.refund(source.RewardToken, user, amt, usedReward); err != nil {
		return err
	}
	if err := e.refund(lpPool.PairToken, user, pairAmount, usedPair); err != nil {
		return err
	}
	lpPool, err = e.loadPool(lpPoolID)
	if err != nil {
		return err
	}
	if err := e.deposit(lpPool, user, liquidity, crypto.Address{}, false); err != nil {
		return err
	}
	e.emit(NewZapEvent(EventTypeZapLP, poolID, user, amt, lpPoolID, liquidity))
	return nil
}

func (e *Engine) zapPools(user crypto.Address, sourceID, targetID uint32) (*Pool, *Pool, error) {
	source, err := e.loadPool(sourceID)
	if err != nil {
		return nil, nil, err
	}
	if err := e.guardActive(source, user); err != nil {
		return nil, nil, err
	}
	target := source
	if targetID != sourceID {
		target, err = e.loadPool(targetID)
		if err != nil {
			return nil, nil, err
		}
		if err := e.guardActive(target, user); err != nil {
			return nil, nil, err
		}
	}
	return source, target, nil
}

// bookClaim marks amt as claimed from pool without paying it out; the tokens
// stay in the module account for restaking.
func (e *Engine) bookClaim(pool *Pool, user crypto.Address, amt *big.Int) error {
	acct, err := e.takeClaimable(pool, user, amt)
	if err != nil {
		return err
	}
	if err := e.state.PutStakeAccount(pool.ID, acct); err != nil {
		return err
	}
	if err := e.state.PutPool(pool); err != nil {
		return err
	}
	e.emit(NewUserEvent(EventTypeClaimed, pool.ID, user, amt))
	return nil
}

func (e *Engine) refund(symbol string, user crypto.Address, offered, used *big.Int) error {
	if used == nil || offered.Cmp(used) <= 0 {
		return nil
	}
	leftover := new(big.Int).Sub(offered, used)
	if err := e.token.Transfer(symbol, e.moduleAddress, user, leftover); err != nil {
		return fmt.Errorf("staking engine: refund %s: %w", symbol, err)
	}
	return nil
}
