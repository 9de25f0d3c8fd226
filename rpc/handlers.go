package rpc

import (
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"cookledger/crypto"
	"cookledger/services/indexer"
)

const defaultPageSize = 100

// callerOrReject resolves the authenticated caller.
func callerOrReject(w http.ResponseWriter, r *http.Request) (crypto.Address, bool) {
	caller, ok := Caller(r.Context())
	if !ok {
		writeProblem(w, http.StatusUnauthorized, "caller unknown")
	}
	return caller, ok
}

func poolParam(r *http.Request) (uint32, error) {
	return parsePoolID(chi.URLParam(r, "id"))
}

func queryUint(r *http.Request, key string, fallback uint64) (uint64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errBadRequest
	}
	return v, nil
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- queries ---

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.ledger.Tokens()
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]TokenResponse, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, TokenResponse{Symbol: t.Symbol, Name: t.Name, Decimals: t.Decimals})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress("addr", chi.URLParam(r, "addr"))
	if err != nil {
		writeError(w, err)
		return
	}
	token := chi.URLParam(r, "token")
	bal, err := s.ledger.Balance(token, addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token":   strings.ToUpper(token),
		"address": addr.String(),
		"balance": amountString(bal),
	})
}

func (s *Server) handleAllowance(w http.ResponseWriter, r *http.Request) {
	owner, err := parseAddress("owner", chi.URLParam(r, "owner"))
	if err != nil {
		writeError(w, err)
		return
	}
	spender, err := parseAddress("spender", chi.URLParam(r, "spender"))
	if err != nil {
		writeError(w, err)
		return
	}
	amt, err := s.ledger.Allowance(chi.URLParam(r, "token"), owner, spender)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"allowance": amountString(amt)})
}

func (s *Server) handleRegistry(w http.ResponseWriter, r *http.Request) {
	reg, err := s.ledger.Registry()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RegistryResponse{
		GlobalRate:  amountString(reg.GlobalRate),
		TotalWeight: amountString(reg.TotalWeight),
		PoolCount:   reg.PoolCount,
	})
}

func (s *Server) handlePools(w http.ResponseWriter, r *http.Request) {
	pools, err := s.ledger.Pools()
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]PoolResponse, 0, len(pools))
	for _, p := range pools {
		out = append(out, poolResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	id, err := poolParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	pool, err := s.ledger.Pool(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, poolResponse(pool))
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	id, err := poolParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	addr, err := parseAddress("addr", chi.URLParam(r, "addr"))
	if err != nil {
		writeError(w, err)
		return
	}
	view, err := s.ledger.Account(id, addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountResponse(view))
}

func (s *Server) handlePoolUsers(w http.ResponseWriter, r *http.Request) {
	id, err := poolParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := queryUint(r, "offset", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := queryUint(r, "limit", defaultPageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	users, err := s.ledger.PoolUsers(id, offset, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.String())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"pool": id, "offset": offset, "users": out})
}

func (s *Server) handleReferral(w http.ResponseWriter, r *http.Request) {
	id, err := poolParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	addr, err := parseAddress("addr", chi.URLParam(r, "addr"))
	if err != nil {
		writeError(w, err)
		return
	}
	power, err := s.ledger.ReferralPower(id, addr)
	if err != nil {
		writeError(w, err)
		return
	}
	referees, err := s.ledger.Referees(id, addr)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := ReferralResponse{Pool: id, Referral: addr.String(), Power: amountString(power), Referees: make([]string, 0, len(referees))}
	for _, ref := range referees {
		resp.Referees = append(resp.Referees, ref.String())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	pair, lp, err := s.ledger.Pair(chi.URLParam(r, "a"), chi.URLParam(r, "b"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pairResponse(lp, pair))
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeProblem(w, http.StatusServiceUnavailable, "event index disabled")
		return
	}
	after, err := queryUint(r, "after", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := queryUint(r, "limit", defaultPageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()
	records, err := s.events.Events(r.Context(), indexer.Query{
		Type:    q.Get("type"),
		Pool:    q.Get("pool"),
		Account: q.Get("account"),
		After:   after,
		Limit:   int(limit),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]EventResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, eventResponse(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

// --- bank and amm ---

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}
	var req approveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	spender := s.ledger.ModuleAddress()
	if strings.TrimSpace(req.Spender) != "" {
		addr, err := parseAddress("spender", req.Spender)
		if err != nil {
			writeError(w, err)
			return
		}
		spender = addr
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.ledger.Approve(r.Context(), chi.URLParam(r, "token"), caller, spender, amount); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}
	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.ledger.Transfer(r.Context(), chi.URLParam(r, "token"), caller, to, amount); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}
	var req swapRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	amountIn, err := parseAmount("amountIn", req.AmountIn)
	if err != nil {
		writeError(w, err)
		return
	}
	minOut, err := parseOptionalAmount("minOut", req.MinOut)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := s.ledger.Swap(r.Context(), caller, amountIn, minOut, req.Path)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"amountOut": amountString(out)})
}

func (s *Server) handleAddLiquidity(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}
	var req liquidityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	amountA, err := parseAmount("amountA", req.AmountA)
	if err != nil {
		writeError(w, err)
		return
	}
	amountB, err := parseAmount("amountB", req.AmountB)
	if err != nil {
		writeError(w, err)
		return
	}
	minted, err := s.ledger.AddLiquidity(r.Context(), caller, req.TokenA, req.TokenB, amountA, amountB)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"liquidity": amountString(minted)})
}

// --- staking ---

// amountCall decodes {"amount"} and runs op for the caller on the routed pool.
func (s *Server) amountCall(w http.ResponseWriter, r *http.Request, op func(caller crypto.Address, poolID uint32, amount *big.Int) error) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}
	id, err := poolParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req amountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := op(caller, id, amount); err != nil {
		writeError(w, err)
		return
	}
	s.writeAccount(w, r, id, caller)
}

func (s *Server) writeAccount(w http.ResponseWriter, r *http.Request, poolID uint32, addr crypto.Address) {
	view, err := s.ledger.Account(poolID, addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountResponse(view))
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}
	id, err := poolParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req stakeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	referral, err := parseOptionalAddress("referral", req.Referral)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.ledger.Stake(r.Context(), caller, id, amount, referral); err != nil {
		writeError(w, err)
		return
	}
	s.writeAccount(w, r, id, caller)
}

func (s *Server) handleUnstake(w http.ResponseWriter, r *http.Request) {
	s.amountCall(w, r, func(caller crypto.Address, poolID uint32, amount *big.Int) error {
		return s.ledger.Unstake(r.Context(), caller, poolID, amount)
	})
}

func (s *Server) handleHarvest(w http.ResponseWriter, r *http.Request) {
	s.amountCall(w, r, func(caller crypto.Address, poolID uint32, amount *big.Int) error {
		return s.ledger.Harvest(r.Context(), caller, poolID, amount)
	})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	s.amountCall(w, r, func(caller crypto.Address, poolID uint32, amount *big.Int) error {
		return s.ledger.Claim(r.Context(), caller, poolID, amount)
	})
}

func (s *Server) handleExit(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}
	id, err := poolParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.ledger.Exit(r.Context(), caller, id); err != nil {
		writeError(w, err)
		return
	}
	s.writeAccount(w, r, id, caller)
}

func (s *Server) handleZap(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}
	id, err := poolParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req zapRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	minOut, err := parseOptionalAmount("minOut", req.MinOut)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.ledger.ZapStake(r.Context(), caller, id, amount, req.TargetPool, minOut); err != nil {
		writeError(w, err)
		return
	}
	s.writeAccount(w, r, req.TargetPool, caller)
}

func (s *Server) handleZapLP(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}
	id, err := poolParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req zapLPRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.ledger.ZapLP(r.Context(), caller, id, amount, req.LPPool); err != nil {
		writeError(w, err)
		return
	}
	s.writeAccount(w, r, req.LPPool, caller)
}
