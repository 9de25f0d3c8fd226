package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"cookledger/crypto"
	"cookledger/native/staking"
	"cookledger/storage"
)

func makeAddress(b byte) crypto.Address {
	raw := make([]byte, 20)
	raw[0] = b
	return crypto.NewAddress(crypto.CookPrefix, raw)
}

func TestManagerStagesUntilCommit(t *testing.T) {
	db := storage.NewMemDB()
	mgr := NewManager(db)
	alice := makeAddress(1)

	require.NoError(t, mgr.PutBalance("cook", alice, big.NewInt(42)))
	bal, err := mgr.GetBalance("COOK", alice)
	require.NoError(t, err)
	require.Equal(t, int64(42), bal.Int64())

	fresh := NewManager(db)
	bal, err = fresh.GetBalance("COOK", alice)
	require.NoError(t, err)
	require.Zero(t, bal.Sign(), "uncommitted writes must not leak")

	require.NoError(t, mgr.Commit())
	require.Zero(t, mgr.Dirty())
	bal, err = NewManager(db).GetBalance("COOK", alice)
	require.NoError(t, err)
	require.Equal(t, int64(42), bal.Int64())
}

func TestManagerDiscard(t *testing.T) {
	db := storage.NewMemDB()
	mgr := NewManager(db)
	require.NoError(t, mgr.SetRole(staking.RoleGovernance, makeAddress(7), true))
	mgr.Discard()
	require.NoError(t, mgr.Commit())

	ok, err := NewManager(db).HasRole(staking.RoleGovernance, makeAddress(7))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStakingRecordsPersist(t *testing.T) {
	db := storage.NewMemDB()
	mgr := NewManager(db)
	user, referral := makeAddress(1), makeAddress(2)

	pool := &staking.Pool{ID: 3, Token: "COOK", RewardToken: "COOK", Kind: staking.PoolKindLP, PairToken: "WETH", VestingStep: 30, ReferralActive: true}
	pool.EnsureDefaults()
	pool.TotalStaked = big.NewInt(10)
	require.NoError(t, mgr.PutPool(pool))
	require.NoError(t, mgr.PutPoolToken("cook", 3))

	acct := &staking.StakeAccount{
		Address:  user,
		Staked:   big.NewInt(10),
		Deposits: []staking.DepositTranche{{Amount: big.NewInt(10), Timestamp: 99}},
		Vesting:  []staking.VestingEntry{{Amount: big.NewInt(5), Timestamp: 100}},
	}
	require.NoError(t, mgr.PutStakeAccount(3, acct))
	require.NoError(t, mgr.PutReferralBinding(3, user, &staking.ReferralBinding{State: staking.BindingBound, Referral: referral}))
	require.NoError(t, mgr.AppendPoolUser(3, 0, user))
	require.NoError(t, mgr.Commit())

	reader := NewManager(db)
	gotPool, ok, err := reader.GetPool(3)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, staking.PoolKindLP, gotPool.Kind)
	require.True(t, gotPool.ReferralActive)
	require.Equal(t, int64(10), gotPool.TotalStaked.Int64())
	require.Zero(t, gotPool.TotalPhantom.Sign())

	id, ok, err := reader.PoolIDByToken("COOK")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(3), id)

	gotAcct, ok, err := reader.GetStakeAccount(3, user)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, gotAcct.Address.Equal(user))
	require.Len(t, gotAcct.Deposits, 1)
	require.Equal(t, uint64(99), gotAcct.Deposits[0].Timestamp)
	require.Equal(t, int64(5), gotAcct.VestingTotal().Int64())

	binding, err := reader.GetReferralBinding(3, user)
	require.NoError(t, err)
	require.True(t, binding.Bound())
	require.True(t, binding.Referral.Equal(referral))

	unset, err := reader.GetReferralBinding(3, referral)
	require.NoError(t, err)
	require.Equal(t, staking.BindingUnset, unset.State)

	first, ok, err := reader.PoolUserAt(3, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, first.Equal(user))
}

func TestRegisterTokenRejectsDuplicates(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	require.NoError(t, mgr.RegisterToken("cook", "Cook Token", 18))
	require.Error(t, mgr.RegisterToken("COOK", "Again", 18))

	meta, err := mgr.Token("Cook")
	require.NoError(t, err)
	require.Equal(t, "COOK", meta.Symbol)
	list, err := mgr.TokenList()
	require.NoError(t, err)
	require.Equal(t, []string{"COOK"}, list)
}
