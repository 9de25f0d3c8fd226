package staking

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"cookledger/core/events"
	"cookledger/crypto"
)

type mockEngineState struct {
	registry   *Registry
	pools      map[uint32]*Pool
	poolTokens map[string]uint32
	accounts   map[string]*StakeAccount
	poolUsers  map[string]crypto.Address
	bindings   map[string]*ReferralBinding
	ledgers    map[string]*ReferralLedger
	referees   map[string]crypto.Address
	blacklist  map[string]bool
	roles      map[string]bool
}

func newMockEngineState() *mockEngineState {
	return &mockEngineState{
		pools:      make(map[uint32]*Pool),
		poolTokens: make(map[string]uint32),
		accounts:   make(map[string]*StakeAccount),
		poolUsers:  make(map[string]crypto.Address),
		bindings:   make(map[string]*ReferralBinding),
		ledgers:    make(map[string]*ReferralLedger),
		referees:   make(map[string]crypto.Address),
		blacklist:  make(map[string]bool),
		roles:      make(map[string]bool),
	}
}

func mockKey(poolID uint32, parts ...interface{}) string {
	out := fmt.Sprintf("%d", poolID)
	for _, p := range parts {
		if addr, ok := p.(crypto.Address); ok {
			out += "/" + string(addr.Bytes())
			continue
		}
		out += fmt.Sprintf("/%v", p)
	}
	return out
}

func (m *mockEngineState) GetRegistry() (*Registry, error) {
	if m.registry == nil {
		return &Registry{}, nil
	}
	return m.registry.Clone(), nil
}

func (m *mockEngineState) PutRegistry(reg *Registry) error {
	m.registry = reg.Clone()
	return nil
}

func (m *mockEngineState) GetPool(id uint32) (*Pool, bool, error) {
	p, ok := m.pools[id]
	if !ok {
		return nil, false, nil
	}
	return p.Clone(), true, nil
}

func (m *mockEngineState) PutPool(pool *Pool) error {
	m.pools[pool.ID] = pool.Clone()
	return nil
}

func (m *mockEngineState) PoolIDByToken(token string) (uint32, bool, error) {
	id, ok := m.poolTokens[token]
	return id, ok, nil
}

func (m *mockEngineState) PutPoolToken(token string, id uint32) error {
	m.poolTokens[token] = id
	return nil
}

func (m *mockEngineState) GetStakeAccount(poolID uint32, addr crypto.Address) (*StakeAccount, bool, error) {
	acct, ok := m.accounts[mockKey(poolID, addr)]
	if !ok {
		return nil, false, nil
	}
	return acct.Clone(), true, nil
}

func (m *mockEngineState) PutStakeAccount(poolID uint32, acct *StakeAccount) error {
	m.accounts[mockKey(poolID, acct.Address)] = acct.Clone()
	return nil
}

func (m *mockEngineState) AppendPoolUser(poolID uint32, index uint64, addr crypto.Address) error {
	m.poolUsers[mockKey(poolID, index)] = addr
	return nil
}

func (m *mockEngineState) PoolUserAt(poolID uint32, index uint64) (crypto.Address, bool, error) {
	addr, ok := m.poolUsers[mockKey(poolID, index)]
	return addr, ok, nil
}

func (m *mockEngineState) GetReferralBinding(poolID uint32, referee crypto.Address) (*ReferralBinding, error) {
	b, ok := m.bindings[mockKey(poolID, referee)]
	if !ok {
		return &ReferralBinding{State: BindingUnset}, nil
	}
	copyB := *b
	return &copyB, nil
}

func (m *mockEngineState) PutReferralBinding(poolID uint32, referee crypto.Address, binding *ReferralBinding) error {
	copyB := *binding
	m.bindings[mockKey(poolID, referee)] = &copyB
	return nil
}

func (m *mockEngineState) GetReferralLedger(poolID uint32, referral crypto.Address) (*ReferralLedger, error) {
	l, ok := m.ledgers[mockKey(poolID, referral)]
	if !ok {
		return nil, nil
	}
	return &ReferralLedger{
		Referral:      l.Referral,
		ReferredStake: cloneBigInt(l.ReferredStake),
		Power:         cloneBigInt(l.Power),
		Checkpoint:    cloneBigInt(l.Checkpoint),
		RefereeCount:  l.RefereeCount,
	}, nil
}

func (m *mockEngineState) PutReferralLedger(poolID uint32, ledger *ReferralLedger) error {
	m.ledgers[mockKey(poolID, ledger.Referral)] = &ReferralLedger{
		Referral:      ledger.Referral,
		ReferredStake: cloneBigInt(ledger.ReferredStake),
		Power:         cloneBigInt(ledger.Power),
		Checkpoint:    cloneBigInt(ledger.Checkpoint),
		RefereeCount:  ledger.RefereeCount,
	}
	return nil
}

func (m *mockEngineState) AppendReferee(poolID uint32, referral crypto.Address, index uint64, referee crypto.Address) error {
	m.referees[mockKey(poolID, referral, index)] = referee
	return nil
}

func (m *mockEngineState) RefereeAt(poolID uint32, referral crypto.Address, index uint64) (crypto.Address, bool, error) {
	addr, ok := m.referees[mockKey(poolID, referral, index)]
	return addr, ok, nil
}

func (m *mockEngineState) IsBlacklisted(poolID uint32, addr crypto.Address) (bool, error) {
	return m.blacklist[mockKey(poolID, addr)], nil
}

func (m *mockEngineState) SetBlacklisted(poolID uint32, addr crypto.Address, listed bool) error {
	m.blacklist[mockKey(poolID, addr)] = listed
	return nil
}

func (m *mockEngineState) HasRole(role string, addr crypto.Address) (bool, error) {
	return m.roles[role+"/"+string(addr.Bytes())], nil
}

func (m *mockEngineState) SetRole(role string, addr crypto.Address, granted bool) error {
	m.roles[role+"/"+string(addr.Bytes())] = granted
	return nil
}

type mockToken struct {
	balances map[string]*big.Int
}

func newMockToken() *mockToken { return &mockToken{balances: make(map[string]*big.Int)} }

func (m *mockToken) balance(symbol string, addr crypto.Address) *big.Int {
	if v, ok := m.balances[symbol+"/"+string(addr.Bytes())]; ok {
		return v
	}
	return big.NewInt(0)
}

func (m *mockToken) credit(symbol string, addr crypto.Address, amount *big.Int) {
	m.balances[symbol+"/"+string(addr.Bytes())] = new(big.Int).Add(m.balance(symbol, addr), amount)
}

func (m *mockToken) Transfer(symbol string, from, to crypto.Address, amount *big.Int) error {
	bal := m.balance(symbol, from)
	if bal.Cmp(amount) < 0 {
		return errors.New("mock token: insufficient balance")
	}
	m.balances[symbol+"/"+string(from.Bytes())] = new(big.Int).Sub(bal, amount)
	m.credit(symbol, to, amount)
	return nil
}

func (m *mockToken) TransferFrom(symbol string, spender, from, to crypto.Address, amount *big.Int) error {
	return m.Transfer(symbol, from, to, amount)
}

func (m *mockToken) BalanceOf(symbol string, addr crypto.Address) (*big.Int, error) {
	return new(big.Int).Set(m.balance(symbol, addr)), nil
}

func (m *mockToken) Mint(symbol string, to crypto.Address, amount *big.Int) error {
	m.credit(symbol, to, amount)
	return nil
}

func makeAddress(prefix byte, suffix byte) crypto.Address {
	raw := make([]byte, 20)
	raw[0] = prefix
	raw[19] = suffix
	return crypto.NewAddress(crypto.CookPrefix, raw)
}

const day = uint64(86_400)

type testEnv struct {
	t      *testing.T
	state  *mockEngineState
	token  *mockToken
	engine *Engine
	events *events.Buffer
	gov    crypto.Address
	module crypto.Address
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		t:      t,
		state:  newMockEngineState(),
		token:  newMockToken(),
		events: &events.Buffer{},
		gov:    makeAddress(0xAA, 1),
		module: makeAddress(0xEE, 0),
	}
	env.engine = NewEngine(env.module)
	env.engine.SetState(env.state)
	env.engine.SetToken(env.token)
	env.engine.SetEmitter(env.events)
	env.state.roles[RoleGovernance+"/"+string(env.gov.Bytes())] = true
	env.at(0, 1_000_000)
	return env
}

func (env *testEnv) at(height, ts uint64) {
	env.engine.SetBlockHeight(height)
	env.engine.SetBlockTime(ts)
}

func (env *testEnv) createPool(cfg PoolConfig) *Pool {
	env.t.Helper()
	pool, err := env.engine.CreatePool(env.gov, cfg)
	if err != nil {
		env.t.Fatalf("create pool: %v", err)
	}
	return pool
}

func (env *testEnv) fund(user crypto.Address, symbol string, amount int64) {
	env.token.credit(symbol, user, big.NewInt(amount))
}

func (env *testEnv) stake(user crypto.Address, poolID uint32, amount int64) {
	env.t.Helper()
	if err := env.engine.Stake(user, poolID, big.NewInt(amount), crypto.Address{}); err != nil {
		env.t.Fatalf("stake %d: %v", amount, err)
	}
}

func (env *testEnv) pool(id uint32) *Pool {
	env.t.Helper()
	p, ok := env.state.pools[id]
	if !ok {
		env.t.Fatalf("pool %d missing", id)
	}
	return p
}

func (env *testEnv) account(poolID uint32, user crypto.Address) *AccountView {
	env.t.Helper()
	view, err := env.engine.Account(poolID, user)
	if err != nil {
		env.t.Fatalf("account view: %v", err)
	}
	return view
}

func expectInt(t *testing.T, label string, got *big.Int, want int64) {
	t.Helper()
	if got == nil || got.Cmp(big.NewInt(want)) != 0 {
		t.Fatalf("%s = %v, want %d", label, got, want)
	}
}

func cookPool(rate int64) PoolConfig {
	return PoolConfig{Token: "COOK", RewardToken: "COOK", RewardRate: big.NewInt(rate)}
}
