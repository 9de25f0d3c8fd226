package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"cookledger/config"
	"cookledger/core"
	"cookledger/core/chain"
	"cookledger/crypto"
	"cookledger/native/amm"
	"cookledger/native/bank"
	"cookledger/native/staking"
	"cookledger/services/indexer"
	"cookledger/storage"
)

const testSecret = "test-secret"

type harness struct {
	t      *testing.T
	server *Server
	ledger *core.Ledger
	clock  *chain.ManualClock
	gov    crypto.Address
	alice  crypto.Address
}

func testAddr(b byte) crypto.Address {
	return crypto.MustNewAddress(crypto.CookPrefix, bytes.Repeat([]byte{b}, crypto.AddressLength))
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	clock := chain.NewManualClock(0, 1_700_000_000)
	ledger, err := core.NewLedger(db, clock)
	require.NoError(t, err)

	h := &harness{t: t, ledger: ledger, clock: clock, gov: testAddr(0x01), alice: testAddr(0xA1)}
	genesis := &config.Genesis{
		Tokens: []config.GenesisToken{
			{Symbol: "STK", Name: "Stake", Decimals: 18},
			{Symbol: "COOK", Name: "Cook", Decimals: 18},
		},
		Balances: []config.Balance{{Address: h.alice.String(), Token: "STK", Amount: "100"}},
		Reserves: []config.Reserve{{Token: "COOK", Amount: "1000000"}},
		Pools: []config.GenesisPool{
			{Token: "STK", RewardToken: "COOK", RewardRate: "10", LockupSeconds: 86_400},
		},
	}
	require.NoError(t, ledger.ApplyGenesis(context.Background(), genesis, h.gov))

	cfg := Config{
		Auth:      AuthConfig{HMACSecret: testSecret, Issuer: "stakingd"},
		RateLimit: RateLimit{RequestsPerSecond: 1000, Burst: 1000},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	server, err := NewServer(ledger, cfg)
	require.NoError(t, err)
	h.server = server
	return h
}

func (h *harness) token(addr crypto.Address) string {
	h.t.Helper()
	tok, err := IssueToken(testSecret, "stakingd", addr, nil, time.Hour)
	require.NoError(h.t, err)
	return tok
}

func (h *harness) do(method, path string, as crypto.Address, body interface{}) *httptest.ResponseRecorder {
	h.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if !as.IsZero() {
		req.Header.Set("Authorization", "Bearer "+h.token(as))
	}
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthz(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(http.MethodGet, "/healthz", crypto.Address{}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get(headerRequestID))
}

func TestWriteRoutesRequireToken(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(http.MethodPost, "/pools/0/stake", crypto.Address{}, stakeRequest{Amount: "1"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/pools/0/stake", strings.NewReader(`{"amount":"1"}`))
	forged, err := IssueToken("other-secret", "stakingd", h.alice, nil, time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+forged)
	rec = httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestApproveStakeAndReadAccount(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodPost, "/pools/0/stake", h.alice, stakeRequest{Amount: "10"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	rec = h.do(http.MethodPost, "/tokens/stk/approve", h.alice, approveRequest{Amount: "10"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(http.MethodPost, "/pools/0/stake", h.alice, stakeRequest{Amount: "10"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	acct := decode[AccountResponse](t, rec)
	require.Equal(t, "10", acct.Staked)
	require.Len(t, acct.Deposits, 1)

	h.clock.Set(5, 1_700_000_005)
	rec = h.do(http.MethodGet, "/pools/0/accounts/"+h.alice.String(), crypto.Address{}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	acct = decode[AccountResponse](t, rec)
	require.Equal(t, "50", acct.Rewarded)

	rec = h.do(http.MethodPost, "/pools/0/unstake", h.alice, amountRequest{Amount: "10"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = h.do(http.MethodGet, "/pools/0", crypto.Address{}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pool := decode[PoolResponse](t, rec)
	require.Equal(t, "10", pool.TotalStaked)
	require.Equal(t, uint64(1), pool.Users)

	rec = h.do(http.MethodGet, "/tokens/STK/balances/"+h.alice.String(), crypto.Address{}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "90", decode[map[string]string](t, rec)["balance"])
}

func TestQueryErrors(t *testing.T) {
	h := newHarness(t, nil)
	require.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/pools/9", crypto.Address{}, nil).Code)
	require.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/pools/x", crypto.Address{}, nil).Code)
	require.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/pools/0/accounts/nope", crypto.Address{}, nil).Code)
	require.Equal(t, http.StatusServiceUnavailable, h.do(http.MethodGet, "/events", crypto.Address{}, nil).Code)
}

func TestAdminRoutesCheckRoles(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodPost, "/admin/pools/0/rate", h.alice, rateRequest{Rate: "99"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(http.MethodPost, "/admin/pools/0/rate", h.gov, rateRequest{Rate: "99"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "99", decode[PoolResponse](t, rec).RewardRate)

	rec = h.do(http.MethodPost, "/admin/pools", h.gov, createPoolRequest{Token: "COOK", RewardToken: "COOK", RewardRate: "1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, uint32(1), decode[PoolResponse](t, rec).ID)

	rec = h.do(http.MethodPost, "/admin/pools", h.gov, createPoolRequest{Token: "COOK", RewardToken: "COOK"})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(http.MethodPost, "/admin/roles", h.gov, roleRequest{Role: staking.RoleSentinel, Address: h.alice.String(), Granted: true})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = h.do(http.MethodPost, "/admin/pause", h.alice, toggleRequest{Enabled: true})
	require.Equal(t, http.StatusOK, rec.Code)

	h.do(http.MethodPost, "/tokens/stk/approve", h.alice, approveRequest{Amount: "1"})
	rec = h.do(http.MethodPost, "/pools/0/stake", h.alice, stakeRequest{Amount: "1"})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = h.do(http.MethodPost, "/admin/roles", h.gov, roleRequest{Role: "staking.nobody", Address: h.alice.String(), Granted: true})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownFieldsRejected(t *testing.T) {
	h := newHarness(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/pools/0/harvest", strings.NewReader(`{"amount":"1","extra":true}`))
	req.Header.Set("Authorization", "Bearer "+h.token(h.alice))
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimiterThrottles(t *testing.T) {
	h := newHarness(t, func(cfg *Config) {
		cfg.RateLimit = RateLimit{RequestsPerSecond: 0.001, Burst: 2}
	})
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, h.do(http.MethodGet, "/healthz", crypto.Address{}, nil).Code)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestEventsEndpointReadsIndex(t *testing.T) {
	store, err := indexer.Open(indexer.DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	h := newHarness(t, func(cfg *Config) {
		cfg.Events = store
		cfg.Idempotency = store.Idempotency
	})
	h.ledger.Subscribe(store)

	rec := h.do(http.MethodPost, "/tokens/stk/approve", h.alice, approveRequest{Amount: "5"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodGet, "/events?account="+h.alice.String(), crypto.Address{}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[[]EventResponse](t, rec)
	require.Len(t, got, 1)
	require.Equal(t, "token.approval", got[0].Type)
}

func TestEventStreamDeliversCommittedEvents(t *testing.T) {
	h := newHarness(t, nil)
	srv := httptest.NewServer(h.server.Handler())
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/events?type=token.", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool {
		h.server.hub.mu.Lock()
		defer h.server.hub.mu.Unlock()
		return len(h.server.hub.subs) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, h.ledger.Approve(ctx, "STK", h.alice, h.ledger.ModuleAddress(), big.NewInt(3)))

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var frame StreamEvent
	require.NoError(t, json.Unmarshal(data, &frame))
	require.Equal(t, "token.approval", frame.Type)
	require.Equal(t, "3", frame.Attributes["amount"])
}

func TestHubDropsSlowSubscribers(t *testing.T) {
	hub := NewHub(nil)
	updates, cancel := hub.Subscribe("")
	defer cancel()
	for i := 0; i < subscriberBuffer+1; i++ {
		hub.Emit(testEvent{})
	}
	count := 0
	for range updates {
		count++
	}
	require.Equal(t, subscriberBuffer, count)
}

type testEvent struct{}

func (testEvent) EventType() string { return "test" }

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{staking.ErrInvalidAmount, http.StatusBadRequest},
		{staking.ErrUnauthorized, http.StatusForbidden},
		{staking.ErrBlacklisted, http.StatusForbidden},
		{staking.ErrUnknownPool, http.StatusNotFound},
		{staking.ErrReferralMismatch, http.StatusConflict},
		{staking.ErrPaused, http.StatusServiceUnavailable},
		{staking.ErrInsufficientClaimable, http.StatusUnprocessableEntity},
		{fmt.Errorf("wrapped: %w", bank.ErrInsufficientBalance), http.StatusUnprocessableEntity},
		{fmt.Errorf("zap: %w", amm.ErrInsufficientOut), http.StatusUnprocessableEntity},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}

func TestParseAmountRejectsOutOfRange(t *testing.T) {
	tooWide := new(big.Int).Lsh(big.NewInt(1), 256).String()
	for _, raw := range []string{"-1", "-100000000000000000000", tooWide} {
		_, err := parseAmount("amount", raw)
		require.ErrorIs(t, err, staking.ErrInvalidAmount, raw)
		require.Equal(t, http.StatusBadRequest, statusFor(err))
	}

	_, err := parseAmount("amount", "12abc")
	require.ErrorIs(t, err, errBadRequest)
	_, err = parseOptionalAmount("minOut", "-5")
	require.ErrorIs(t, err, staking.ErrInvalidAmount)

	maxAmount := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	got, err := parseAmount("amount", maxAmount.String())
	require.NoError(t, err)
	require.Zero(t, got.Cmp(maxAmount))

	h := newHarness(t, nil)
	rec := h.do(http.MethodPost, "/pools/0/stake", h.alice, stakeRequest{Amount: "-10"})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	rec = h.do(http.MethodPost, "/pools/0/harvest", h.alice, amountRequest{Amount: tooWide})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestServeListenerCapsConnections(t *testing.T) {
	h := newHarness(t, func(cfg *Config) { cfg.MaxConnections = 1 })
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.server.ServeListener(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	client := &http.Client{
		Timeout:   300 * time.Millisecond,
		Transport: &http.Transport{DisableKeepAlives: true},
	}
	healthy := func() bool {
		resp, err := client.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}
	require.Eventually(t, healthy, 2*time.Second, 20*time.Millisecond)

	held, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	require.False(t, healthy(), "second connection served while the only slot is held")

	require.NoError(t, held.Close())
	require.Eventually(t, healthy, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not shut down")
	}
}
