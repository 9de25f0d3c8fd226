package indexer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"cookledger/core/events"
	"cookledger/crypto"
)

type bareEvent struct{}

func (bareEvent) EventType() string { return "test.bare" }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	store, err := Open(DriverSQLite, dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func user(b byte) crypto.Address {
	return crypto.MustNewAddress(crypto.CookPrefix, bytes.Repeat([]byte{b}, crypto.AddressLength))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("oracle", "", nil)
	require.ErrorIs(t, err, errUnknownDriver)
}

func TestEmitIndexesPayloadAttributes(t *testing.T) {
	store := newTestStore(t)
	alice, bob := user(0xA1), user(0xB0)

	store.Emit(events.Transfer{Asset: "cook", From: alice.Raw(), To: bob.Raw(), Amount: big.NewInt(25)})
	store.Emit(events.Approval{Asset: "stk", Owner: bob.Raw(), Spender: alice.Raw(), Amount: big.NewInt(3)})
	store.Emit(bareEvent{})

	all, err := store.Events(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, events.TypeTransfer, all[0].Type)
	require.Equal(t, alice.String(), all[0].Account)
	require.Equal(t, "25", all[0].Amount)
	require.Contains(t, all[0].Attributes, `"asset":"COOK"`)
	require.Equal(t, "test.bare", all[2].Type)
	require.Empty(t, all[2].Attributes)
	require.Less(t, all[0].Seq, all[1].Seq)

	byAccount, err := store.Events(context.Background(), Query{Account: bob.String()})
	require.NoError(t, err)
	require.Len(t, byAccount, 1)
	require.Equal(t, events.TypeApproval, byAccount[0].Type)

	after, err := store.Events(context.Background(), Query{After: all[1].Seq})
	require.NoError(t, err)
	require.Len(t, after, 1)

	limited, err := store.Events(context.Background(), Query{Limit: 1, Type: events.TypeTransfer})
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestEmitAcceptsEventsFromTheBus(t *testing.T) {
	store := newTestStore(t)
	bus := events.NewBus(store)
	bus.Emit(events.Mint{Asset: "cook", To: user(0x01).Raw(), Amount: big.NewInt(9)})

	got, err := store.Events(context.Background(), Query{Type: events.TypeMint})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, user(0x01).String(), got[0].Account)
}

func TestFingerprintSeparatesFields(t *testing.T) {
	a := Fingerprint("POST", "/pools/1/stake", []byte(`{"amount":"1"}`))
	require.Len(t, a, 64)
	require.Equal(t, a, Fingerprint("POST", "/pools/1/stake", []byte(`{"amount":"1"}`)))
	require.NotEqual(t, a, Fingerprint("POST", "/pools/1/stake", []byte(`{"amount":"2"}`)))
	require.NotEqual(t, Fingerprint("POST", "/a", []byte("b")), Fingerprint("POST", "/ab", nil))
}

func TestIdempotencyReplaysSuccessfulResponse(t *testing.T) {
	store := newTestStore(t)
	var calls atomic.Int32
	handler := store.Idempotency(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"call":%d,"body":%q}`, n, body)
	}))

	send := func(key, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/pools/0/stake", strings.NewReader(body))
		if key != "" {
			req.Header.Set(HeaderIdempotencyKey, key)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	first := send("k-1", `{"amount":"5"}`)
	require.Equal(t, http.StatusOK, first.Code)
	second := send("k-1", `{"amount":"5"}`)
	require.Equal(t, http.StatusOK, second.Code)
	require.Equal(t, first.Body.String(), second.Body.String())
	require.Equal(t, "true", second.Header().Get("Idempotent-Replay"))
	require.EqualValues(t, 1, calls.Load())

	conflict := send("k-1", `{"amount":"6"}`)
	require.Equal(t, http.StatusUnprocessableEntity, conflict.Code)

	send("", `{"amount":"5"}`)
	require.EqualValues(t, 2, calls.Load())
}

func TestIdempotencyForgetsFailures(t *testing.T) {
	store := newTestStore(t)
	var calls atomic.Int32
	handler := store.Idempotency(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "boom", http.StatusConflict)
			return
		}
		_, _ = io.WriteString(w, `{}`)
	}))
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("{}"))
		req.Header.Set(HeaderIdempotencyKey, "retry")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	require.EqualValues(t, 2, calls.Load())
}
