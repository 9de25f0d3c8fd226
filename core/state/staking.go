package state

import (
	"math/big"

	"cookledger/crypto"
	"cookledger/native/staking"
)

type storedPool struct {
	ID               uint32
	Token            string
	RewardToken      string
	Kind             uint8
	PairToken        string
	TotalStaked      *big.Int
	TotalPhantom     *big.Int
	TotalRewarded    *big.Int
	TotalVesting     *big.Int
	TotalClaimed     *big.Int
	AccPowerPerStake *big.Int
	LastRewardBlock  uint64
	RewardRate       *big.Int
	RewardWeight     *big.Int
	Weighted         bool
	LockupDuration   uint64
	VestingDuration  uint64
	VestingStep      uint64
	Paused           bool
	PoolCap          *big.Int
	AddressCap       *big.Int
	ReferralActive   bool
	UserCount        uint64
}

func newStoredPool(p *staking.Pool) *storedPool {
	c := p.Clone()
	c.EnsureDefaults()
	return &storedPool{
		ID: c.ID, Token: c.Token, RewardToken: c.RewardToken, Kind: uint8(c.Kind), PairToken: c.PairToken,
		TotalStaked: c.TotalStaked, TotalPhantom: c.TotalPhantom, TotalRewarded: c.TotalRewarded,
		TotalVesting: c.TotalVesting, TotalClaimed: c.TotalClaimed,
		AccPowerPerStake: c.AccPowerPerStake,
		LastRewardBlock: c.LastRewardBlock, RewardRate: c.RewardRate, RewardWeight: c.RewardWeight,
		Weighted: c.Weighted, LockupDuration: c.LockupDuration, VestingDuration: c.VestingDuration,
		VestingStep: c.VestingStep, Paused: c.Paused, PoolCap: c.PoolCap, AddressCap: c.AddressCap,
		ReferralActive: c.ReferralActive, UserCount: c.UserCount,
	}
}

func (s *storedPool) toPool() *staking.Pool {
	p := &staking.Pool{
		ID: s.ID, Token: s.Token, RewardToken: s.RewardToken, Kind: staking.PoolKind(s.Kind), PairToken: s.PairToken,
		TotalStaked: s.TotalStaked, TotalPhantom: s.TotalPhantom, TotalRewarded: s.TotalRewarded,
		TotalVesting: s.TotalVesting, TotalClaimed: s.TotalClaimed,
		AccPowerPerStake: s.AccPowerPerStake,
		LastRewardBlock: s.LastRewardBlock, RewardRate: s.RewardRate, RewardWeight: s.RewardWeight,
		Weighted: s.Weighted, LockupDuration: s.LockupDuration, VestingDuration: s.VestingDuration,
		VestingStep: s.VestingStep, Paused: s.Paused, PoolCap: s.PoolCap, AddressCap: s.AddressCap,
		ReferralActive: s.ReferralActive, UserCount: s.UserCount,
	}
	p.EnsureDefaults()
	return p
}

type storedAccount struct {
	Address  [20]byte
	Staked   *big.Int
	Phantom  *big.Int
	Claimed  *big.Int
	Earned   *big.Int
	Deposits []staking.DepositTranche
	Vesting  []staking.VestingEntry
}

type storedBinding struct {
	State    uint8
	Referral [20]byte
}

type storedReferralLedger struct {
	Referral      [20]byte
	ReferredStake *big.Int
	Power         *big.Int
	Checkpoint    *big.Int
	RefereeCount  uint64
}

func poolKey(id uint32) []byte { return compose(stakingPoolPrefix, u32(id)) }

func accountKey(poolID uint32, addr crypto.Address) []byte {
	return compose(stakingAccountPrefix, u32(poolID), addr.Bytes())
}

// GetRegistry loads the shared emission settings.
func (m *Manager) GetRegistry() (*staking.Registry, error) {
	reg := new(staking.Registry)
	if _, err := m.KVGet(stakingRegistryKey, reg); err != nil {
		return nil, err
	}
	reg.EnsureDefaults()
	return reg, nil
}

// PutRegistry stores the shared emission settings.
func (m *Manager) PutRegistry(reg *staking.Registry) error {
	c := reg.Clone()
	c.EnsureDefaults()
	return m.KVPut(stakingRegistryKey, c)
}

// GetPool loads a pool by id.
func (m *Manager) GetPool(id uint32) (*staking.Pool, bool, error) {
	stored := new(storedPool)
	ok, err := m.KVGet(poolKey(id), stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return stored.toPool(), true, nil
}

// PutPool stores a pool.
func (m *Manager) PutPool(pool *staking.Pool) error {
	return m.KVPut(poolKey(pool.ID), newStoredPool(pool))
}

// PoolIDByToken resolves the pool registered for token.
func (m *Manager) PoolIDByToken(token string) (uint32, bool, error) {
	var id uint32
	ok, err := m.KVGet(compose(stakingPoolTokenPrefix, symbolBytes(token)), &id)
	return id, ok, err
}

// PutPoolToken indexes a pool by its token.
func (m *Manager) PutPoolToken(token string, id uint32) error {
	return m.KVPut(compose(stakingPoolTokenPrefix, symbolBytes(token)), id)
}

// GetStakeAccount loads the position of addr in the pool.
func (m *Manager) GetStakeAccount(poolID uint32, addr crypto.Address) (*staking.StakeAccount, bool, error) {
	stored := new(storedAccount)
	ok, err := m.KVGet(accountKey(poolID, addr), stored)
	if err != nil || !ok {
		return nil, false, err
	}
	acct := &staking.StakeAccount{
		Address:  crypto.AddressFromRaw(stored.Address),
		Staked:   stored.Staked,
		Phantom:  stored.Phantom,
		Claimed:  stored.Claimed,
		Earned:   stored.Earned,
		Deposits: stored.Deposits,
		Vesting:  stored.Vesting,
	}
	acct.EnsureDefaults()
	return acct, true, nil
}

// PutStakeAccount stores a position.
func (m *Manager) PutStakeAccount(poolID uint32, acct *staking.StakeAccount) error {
	c := acct.Clone()
	c.EnsureDefaults()
	return m.KVPut(accountKey(poolID, acct.Address), &storedAccount{
		Address:  acct.Address.Raw(),
		Staked:   c.Staked,
		Phantom:  c.Phantom,
		Claimed:  c.Claimed,
		Earned:   c.Earned,
		Deposits: c.Deposits,
		Vesting:  c.Vesting,
	})
}

// AppendPoolUser records addr as the index-th depositor of the pool.
func (m *Manager) AppendPoolUser(poolID uint32, index uint64, addr crypto.Address) error {
	return m.KVPut(compose(stakingPoolUserPrefix, u32(poolID), u64(index)), addr.Raw())
}

// PoolUserAt returns the index-th depositor of the pool.
func (m *Manager) PoolUserAt(poolID uint32, index uint64) (crypto.Address, bool, error) {
	var raw [20]byte
	ok, err := m.KVGet(compose(stakingPoolUserPrefix, u32(poolID), u64(index)), &raw)
	if err != nil || !ok {
		return crypto.Address{}, false, err
	}
	return crypto.AddressFromRaw(raw), true, nil
}

// GetReferralBinding returns the binding of referee; a missing record is
// BindingUnset.
func (m *Manager) GetReferralBinding(poolID uint32, referee crypto.Address) (*staking.ReferralBinding, error) {
	stored := new(storedBinding)
	ok, err := m.KVGet(compose(stakingBindingPrefix, u32(poolID), referee.Bytes()), stored)
	if err != nil {
		return nil, err
	}
	if !ok || staking.BindingState(stored.State) != staking.BindingBound {
		return &staking.ReferralBinding{State: staking.BindingUnset}, nil
	}
	return &staking.ReferralBinding{State: staking.BindingBound, Referral: crypto.AddressFromRaw(stored.Referral)}, nil
}

// PutReferralBinding stores the binding of referee.
func (m *Manager) PutReferralBinding(poolID uint32, referee crypto.Address, binding *staking.ReferralBinding) error {
	return m.KVPut(compose(stakingBindingPrefix, u32(poolID), referee.Bytes()), &storedBinding{
		State:    uint8(binding.State),
		Referral: binding.Referral.Raw(),
	})
}

// GetReferralLedger loads the power ledger of referral; nil when unknown.
func (m *Manager) GetReferralLedger(poolID uint32, referral crypto.Address) (*staking.ReferralLedger, error) {
	stored := new(storedReferralLedger)
	ok, err := m.KVGet(compose(stakingReferralPrefix, u32(poolID), referral.Bytes()), stored)
	if err != nil || !ok {
		return nil, err
	}
	ledger := &staking.ReferralLedger{
		Referral:      crypto.AddressFromRaw(stored.Referral),
		ReferredStake: stored.ReferredStake,
		Power:         stored.Power,
		Checkpoint:    stored.Checkpoint,
		RefereeCount:  stored.RefereeCount,
	}
	ledger.EnsureDefaults()
	return ledger, nil
}

// PutReferralLedger stores a power ledger.
func (m *Manager) PutReferralLedger(poolID uint32, ledger *staking.ReferralLedger) error {
	ledger.EnsureDefaults()
	return m.KVPut(compose(stakingReferralPrefix, u32(poolID), ledger.Referral.Bytes()), &storedReferralLedger{
		Referral:      ledger.Referral.Raw(),
		ReferredStake: new(big.Int).Set(ledger.ReferredStake),
		Power:         new(big.Int).Set(ledger.Power),
		Checkpoint:    new(big.Int).Set(ledger.Checkpoint),
		RefereeCount:  ledger.RefereeCount,
	})
}

// AppendReferee records referee as the index-th address bound to referral.
func (m *Manager) AppendReferee(poolID uint32, referral crypto.Address, index uint64, referee crypto.Address) error {
	return m.KVPut(compose(stakingRefereePrefix, u32(poolID), referral.Bytes(), u64(index)), referee.Raw())
}

// RefereeAt returns the index-th referee of referral.
func (m *Manager) RefereeAt(poolID uint32, referral crypto.Address, index uint64) (crypto.Address, bool, error) {
	var raw [20]byte
	ok, err := m.KVGet(compose(stakingRefereePrefix, u32(poolID), referral.Bytes(), u64(index)), &raw)
	if err != nil || !ok {
		return crypto.Address{}, false, err
	}
	return crypto.AddressFromRaw(raw), true, nil
}

// IsBlacklisted reports whether addr is blocked in the pool.
func (m *Manager) IsBlacklisted(poolID uint32, addr crypto.Address) (bool, error) {
	var listed bool
	ok, err := m.KVGet(compose(stakingBlacklistPrefix, u32(poolID), addr.Bytes()), &listed)
	if err != nil {
		return false, err
	}
	return ok && listed, nil
}

// SetBlacklisted adds or removes addr from the pool blacklist.
func (m *Manager) SetBlacklisted(poolID uint32, addr crypto.Address, listed bool) error {
	key := compose(stakingBlacklistPrefix, u32(poolID), addr.Bytes())
	if !listed {
		return m.KVDelete(key)
	}
	return m.KVPut(key, true)
}
