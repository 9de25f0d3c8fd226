package staking

import (
	"math/big"

	"cookledger/crypto"
)

// PoolKind distinguishes pools that accept a plain token from pools that
// accept the LP token of a reward/pair market.
type PoolKind uint8

const (
	PoolKindSingle PoolKind = iota
	PoolKindLP
)

func (k PoolKind) String() string {
	switch k {
	case PoolKindLP:
		return "lp"
	default:
		return "single"
	}
}

// ParsePoolKind maps the config spelling onto a PoolKind.
func ParsePoolKind(s string) (PoolKind, bool) {
	switch s {
	case "", "single":
		return PoolKindSingle, true
	case "lp":
		return PoolKindLP, true
	default:
		return PoolKindSingle, false
	}
}

// Pool captures the aggregate accounting for a single accepted token. Amounts
// are expressed in the smallest token unit.
type Pool struct {
	ID          uint32
	Token       string
	RewardToken string
	Kind        PoolKind
	// PairToken is the non-reward side of the market for LP pools.
	PairToken string

	TotalStaked   *big.Int
	TotalPhantom  *big.Int
	TotalRewarded *big.Int
	// TotalVesting is the harvested reward not yet claimed.
	TotalVesting *big.Int
	TotalClaimed *big.Int

	// AccPowerPerStake is the ray-scaled referral power attributed to one
	// staked unit. It only advances while ReferralActive is set.
	AccPowerPerStake *big.Int
	LastRewardBlock  uint64

	// RewardRate is the fixed per-block emission used when Weighted is false.
	RewardRate   *big.Int
	RewardWeight *big.Int
	Weighted     bool

	// Durations are in seconds.
	LockupDuration  uint64
	VestingDuration uint64
	// VestingStep rounds elapsed vesting time down to whole steps; 0 vests
	// continuously.
	VestingStep uint64

	Paused         bool
	PoolCap        *big.Int
	AddressCap     *big.Int
	ReferralActive bool
	UserCount      uint64
}

// Clone returns a deep copy of the pool.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	out := *p
	out.TotalStaked = cloneBigInt(p.TotalStaked)
	out.TotalPhantom = cloneBigInt(p.TotalPhantom)
	out.TotalRewarded = cloneBigInt(p.TotalRewarded)
	out.TotalVesting = cloneBigInt(p.TotalVesting)
	out.TotalClaimed = cloneBigInt(p.TotalClaimed)
	out.AccPowerPerStake = cloneBigInt(p.AccPowerPerStake)
	out.RewardRate = cloneBigInt(p.RewardRate)
	out.RewardWeight = cloneBigInt(p.RewardWeight)
	out.PoolCap = cloneBigInt(p.PoolCap)
	out.AddressCap = cloneBigInt(p.AddressCap)
	return &out
}

// EnsureDefaults replaces nil amounts with zero so arithmetic never has to
// nil-check.
func (p *Pool) EnsureDefaults() {
	if p == nil {
		return
	}
	for _, field := range []**big.Int{
		&p.TotalStaked, &p.TotalPhantom, &p.TotalRewarded, &p.TotalVesting,
		&p.TotalClaimed, &p.AccPowerPerStake,
		&p.RewardRate, &p.RewardWeight, &p.PoolCap, &p.AddressCap,
	} {
		if *field == nil {
			*field = big.NewInt(0)
		}
	}
}

// Registry holds the values shared by every pool.
type Registry struct {
	// GlobalRate is split across weighted pools by RewardWeight/TotalWeight.
	GlobalRate  *big.Int
	TotalWeight *big.Int
	PoolCount   uint32
}

// Clone returns a deep copy of the registry.
func (r *Registry) Clone() *Registry {
	if r == nil {
		return nil
	}
	return &Registry{
		GlobalRate:  cloneBigInt(r.GlobalRate),
		TotalWeight: cloneBigInt(r.TotalWeight),
		PoolCount:   r.PoolCount,
	}
}

// EnsureDefaults replaces nil amounts with zero.
func (r *Registry) EnsureDefaults() {
	if r == nil {
		return
	}
	if r.GlobalRate == nil {
		r.GlobalRate = big.NewInt(0)
	}
	if r.TotalWeight == nil {
		r.TotalWeight = big.NewInt(0)
	}
}

// DepositTranche is one lockup bucket created by a deposit.
type DepositTranche struct {
	Amount    *big.Int
	Timestamp uint64
}

// VestingEntry is one harvested amount vesting from Timestamp.
type VestingEntry struct {
	Amount    *big.Int
	Timestamp uint64
}

// StakeAccount is the position of one address in one pool.
// The unharvested reward is not stored; it is derived from the pool totals by
// rewardedOf.
type StakeAccount struct {
	Address crypto.Address
	Staked  *big.Int
	Phantom *big.Int
	Claimed *big.Int
	// Earned is the reward moved into vesting so far, by harvest or by the
	// implicit harvest of an unstake.
	Earned   *big.Int
	Deposits []DepositTranche
	Vesting  []VestingEntry
}

// Clone returns a deep copy of the account.
func (a *StakeAccount) Clone() *StakeAccount {
	if a == nil {
		return nil
	}
	out := &StakeAccount{
		Address: a.Address,
		Staked:  cloneBigInt(a.Staked),
		Phantom: cloneBigInt(a.Phantom),
		Claimed: cloneBigInt(a.Claimed),
		Earned:  cloneBigInt(a.Earned),
	}
	if len(a.Deposits) > 0 {
		out.Deposits = make([]DepositTranche, len(a.Deposits))
		for i, d := range a.Deposits {
			out.Deposits[i] = DepositTranche{Amount: cloneBigInt(d.Amount), Timestamp: d.Timestamp}
		}
	}
	if len(a.Vesting) > 0 {
		out.Vesting = make([]VestingEntry, len(a.Vesting))
		for i, v := range a.Vesting {
			out.Vesting[i] = VestingEntry{Amount: cloneBigInt(v.Amount), Timestamp: v.Timestamp}
		}
	}
	return out
}

// EnsureDefaults replaces nil amounts with zero.
func (a *StakeAccount) EnsureDefaults() {
	if a == nil {
		return
	}
	for _, field := range []**big.Int{
		&a.Staked, &a.Phantom, &a.Claimed, &a.Earned,
	} {
		if *field == nil {
			*field = big.NewInt(0)
		}
	}
}

// VestingTotal sums every vesting entry ever created for the account.
func (a *StakeAccount) VestingTotal() *big.Int {
	total := big.NewInt(0)
	if a == nil {
		return total
	}
	for _, v := range a.Vesting {
		if v.Amount != nil {
			total.Add(total, v.Amount)
		}
	}
	return total
}

// BindingState tags a referee's referral record.
type BindingState uint8

const (
	// BindingUnset means no referral has been recorded yet.
	BindingUnset BindingState = iota
	// BindingBound means Referral is fixed for the lifetime of the account.
	BindingBound
)

// ReferralBinding records which referral, if any, a referee is attributed to.
type ReferralBinding struct {
	State    BindingState
	Referral crypto.Address
}

// Bound reports whether the binding names a referral.
func (b *ReferralBinding) Bound() bool {
	return b != nil && b.State == BindingBound
}

// ReferralLedger tracks the power accrued by one referral in one pool.
type ReferralLedger struct {
	Referral crypto.Address
	// ReferredStake is the combined stake of every bound referee.
	ReferredStake *big.Int
	Power         *big.Int
	// Checkpoint is AccPowerPerStake at the last settlement.
	Checkpoint   *big.Int
	RefereeCount uint64
}

// EnsureDefaults replaces nil amounts with zero.
func (l *ReferralLedger) EnsureDefaults() {
	if l == nil {
		return
	}
	if l.ReferredStake == nil {
		l.ReferredStake = big.NewInt(0)
	}
	if l.Power == nil {
		l.Power = big.NewInt(0)
	}
	if l.Checkpoint == nil {
		l.Checkpoint = big.NewInt(0)
	}
}
