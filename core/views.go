package core

import (
	"math/big"

	"cookledger/core/state"
	"cookledger/crypto"
	"cookledger/native/amm"
	"cookledger/native/staking"
)

// Pools returns every pool accrued to the current block.
func (l *Ledger) Pools() ([]*staking.Pool, error) {
	var pools []*staking.Pool
	err := l.view(func(tx *txn) error {
		var err error
		pools, err = tx.staking.Pools()
		return err
	})
	return pools, err
}

// Pool returns one pool accrued to the current block.
func (l *Ledger) Pool(id uint32) (*staking.Pool, error) {
	var pool *staking.Pool
	err := l.view(func(tx *txn) error {
		var err error
		pool, err = tx.staking.Pool(id)
		return err
	})
	return pool, err
}

// PoolByToken resolves the pool staking token.
func (l *Ledger) PoolByToken(token string) (*staking.Pool, error) {
	var pool *staking.Pool
	err := l.view(func(tx *txn) error {
		id, err := tx.staking.PoolIDByToken(token)
		if err != nil {
			return err
		}
		pool, err = tx.staking.Pool(id)
		return err
	})
	return pool, err
}

// Registry returns the global emission settings.
func (l *Ledger) Registry() (*staking.Registry, error) {
	var reg *staking.Registry
	err := l.view(func(tx *txn) error {
		var err error
		reg, err = tx.staking.Registry()
		return err
	})
	return reg, err
}

// Account returns the position of addr in a pool.
func (l *Ledger) Account(poolID uint32, addr crypto.Address) (*staking.AccountView, error) {
	var view *staking.AccountView
	err := l.view(func(tx *txn) error {
		var err error
		view, err = tx.staking.Account(poolID, addr)
		return err
	})
	return view, err
}

// ReferralPower returns the accumulated referral power of referral.
func (l *Ledger) ReferralPower(poolID uint32, referral crypto.Address) (*big.Int, error) {
	var power *big.Int
	err := l.view(func(tx *txn) error {
		var err error
		power, err = tx.staking.ReferralPower(poolID, referral)
		return err
	})
	return power, err
}

// Referees lists the addresses bound to referral.
func (l *Ledger) Referees(poolID uint32, referral crypto.Address) ([]crypto.Address, error) {
	var out []crypto.Address
	err := l.view(func(tx *txn) error {
		var err error
		out, err = tx.staking.Referees(poolID, referral)
		return err
	})
	return out, err
}

// PoolUsers pages through the depositors of a pool in first-stake order.
func (l *Ledger) PoolUsers(poolID uint32, offset, limit uint64) ([]crypto.Address, error) {
	var out []crypto.Address
	err := l.view(func(tx *txn) error {
		var err error
		out, err = tx.staking.PoolUsers(poolID, offset, limit)
		return err
	})
	return out, err
}

// Balance returns the token balance of addr.
func (l *Ledger) Balance(symbol string, addr crypto.Address) (*big.Int, error) {
	var bal *big.Int
	err := l.view(func(tx *txn) error {
		var err error
		bal, err = tx.bank.BalanceOf(symbol, addr)
		return err
	})
	return bal, err
}

// Allowance returns what spender may still pull from owner.
func (l *Ledger) Allowance(symbol string, owner, spender crypto.Address) (*big.Int, error) {
	var amt *big.Int
	err := l.view(func(tx *txn) error {
		var err error
		amt, err = tx.bank.Allowance(symbol, owner, spender)
		return err
	})
	return amt, err
}

// Pair returns the reserves of an AMM market.
func (l *Ledger) Pair(tokenA, tokenB string) (*amm.Pair, string, error) {
	var (
		pair *amm.Pair
		lp   string
	)
	err := l.view(func(tx *txn) error {
		a, b := normalize(tokenA), normalize(tokenB)
		lp = tx.router.PairToken(a, b)
		var err error
		pair, err = tx.router.Pair(a, b)
		return err
	})
	return pair, lp, err
}

// Tokens lists registered token metadata.
func (l *Ledger) Tokens() ([]*state.TokenMetadata, error) {
	var out []*state.TokenMetadata
	err := l.view(func(tx *txn) error {
		symbols, err := tx.state.TokenList()
		if err != nil {
			return err
		}
		for _, sym := range symbols {
			meta, err := tx.state.Token(sym)
			if err != nil {
				return err
			}
			if meta != nil {
				out = append(out, meta)
			}
		}
		return nil
	})
	return out, err
}

// HasRole reports whether addr holds role.
func (l *Ledger) HasRole(role string, addr crypto.Address) (bool, error) {
	var ok bool
	err := l.view(func(tx *txn) error {
		var err error
		ok, err = tx.state.HasRole(role, addr)
		return err
	})
	return ok, err
}

// Meta returns ledger bookkeeping.
func (l *Ledger) Meta() (*state.ChainMeta, error) {
	var meta *state.ChainMeta
	err := l.view(func(tx *txn) error {
		var err error
		meta, err = tx.state.ChainMeta()
		return err
	})
	return meta, err
}
