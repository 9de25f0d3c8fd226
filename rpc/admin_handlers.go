package rpc

import (
	"math/big"
	"net/http"
	"strings"

	"cookledger/crypto"
	"cookledger/native/staking"
)

// adminCall runs op for the authenticated caller against the routed pool.
// Role checks happen in the ledger.
func (s *Server) adminCall(w http.ResponseWriter, r *http.Request, req interface{}, op func(caller crypto.Address, poolID uint32) error) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}
	id, err := poolParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := decodeJSON(r, req); err != nil {
		writeError(w, err)
		return
	}
	if err := op(caller, id); err != nil {
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

func (s *Server) handleCreatePool(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}
	var req createPoolRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	kind, known := staking.ParsePoolKind(strings.ToLower(strings.TrimSpace(req.Kind)))
	if !known {
		writeProblem(w, http.StatusBadRequest, "unknown pool kind")
		return
	}
	cfg := staking.PoolConfig{
		Token:           req.Token,
		RewardToken:     req.RewardToken,
		Kind:            kind,
		PairToken:       req.PairToken,
		Weighted:        req.Weighted,
		LockupDuration:  req.LockupSeconds,
		VestingDuration: req.VestingSeconds,
		VestingStep:     req.VestingStepSeconds,
	}
	for _, f := range []struct {
		name, raw string
		dst       **big.Int
	}{
		{"rewardRate", req.RewardRate, &cfg.RewardRate},
		{"rewardWeight", req.RewardWeight, &cfg.RewardWeight},
		{"poolCap", req.PoolCap, &cfg.PoolCap},
		{"addressCap", req.AddressCap, &cfg.AddressCap},
	} {
		v, err := parseOptionalAmount(f.name, f.raw)
		if err != nil {
			writeError(w, err)
			return
		}
		*f.dst = v
	}
	pool, err := s.ledger.CreatePool(r.Context(), caller, cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, poolResponse(pool))
}

func (s *Server) handleSetRewardRate(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	s.adminCall(w, r, &req, func(caller crypto.Address, poolID uint32) error {
		rate, err := parseAmount("rate", req.Rate)
		if err != nil {
			return err
		}
		return s.ledger.SetRewardRate(r.Context(), caller, poolID, rate)
	})
}

func (s *Server) handleSetLockup(w http.ResponseWriter, r *http.Request) {
	var req durationRequest
	s.adminCall(w, r, &req, func(caller crypto.Address, poolID uint32) error {
		return s.ledger.SetLockupDuration(r.Context(), caller, poolID, req.Seconds)
	})
}

func (s *Server) handleSetVesting(w http.ResponseWriter, r *http.Request) {
	var req durationRequest
	s.adminCall(w, r, &req, func(caller crypto.Address, poolID uint32) error {
		return s.ledger.SetVestingDuration(r.Context(), caller, poolID, req.Seconds, req.Step)
	})
}

func (s *Server) handleSetPoolCap(w http.ResponseWriter, r *http.Request) {
	var req capRequest
	s.adminCall(w, r, &req, func(caller crypto.Address, poolID uint32) error {
		limit, err := parseAmount("cap", req.Cap)
		if err != nil {
			return err
		}
		return s.ledger.SetPoolCap(r.Context(), caller, poolID, limit)
	})
}

func (s *Server) handleSetAddressCap(w http.ResponseWriter, r *http.Request) {
	var req capRequest
	s.adminCall(w, r, &req, func(caller crypto.Address, poolID uint32) error {
		limit, err := parseAmount("cap", req.Cap)
		if err != nil {
			return err
		}
		return s.ledger.SetAddressCap(r.Context(), caller, poolID, limit)
	})
}

func (s *Server) handleSetPause(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	s.adminCall(w, r, &req, func(caller crypto.Address, poolID uint32) error {
		return s.ledger.SetPause(r.Context(), caller, poolID, req.Enabled)
	})
}

func (s *Server) handleSetBlacklisted(w http.ResponseWriter, r *http.Request) {
	var req blacklistRequest
	s.adminCall(w, r, &req, func(caller crypto.Address, poolID uint32) error {
		addr, err := parseAddress("address", req.Address)
		if err != nil {
			return err
		}
		return s.ledger.SetBlacklisted(r.Context(), caller, poolID, addr, req.Listed)
	})
}

func (s *Server) handleSetReferral(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	s.adminCall(w, r, &req, func(caller crypto.Address, poolID uint32) error {
		if req.Enabled {
			return s.ledger.StartReferralBonus(r.Context(), caller, poolID)
		}
		return s.ledger.StopReferralBonus(r.Context(), caller, poolID)
	})
}

func (s *Server) handleSetGlobalRate(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}
	var req rateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	rate, err := parseAmount("rate", req.Rate)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.ledger.SetGlobalRewardRate(r.Context(), caller, rate); err != nil {
		writeError(w, err)
		return
	}
	s.handleRegistry(w, r)
}

func (s *Server) handleSetWeights(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}
	var req weightsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	weights := make([]*big.Int, 0, len(req.Weights))
	for _, raw := range req.Weights {
		v, err := parseAmount("weights", raw)
		if err != nil {
			writeError(w, err)
			return
		}
		weights = append(weights, v)
	}
	if err := s.ledger.SetRewardWeights(r.Context(), caller, req.Pools, weights); err != nil {
		writeError(w, err)
		return
	}
	s.handleRegistry(w, r)
}

func (s *Server) handleSetModulePause(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}
	var req toggleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.ledger.SetModulePause(r.Context(), caller, req.Enabled); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"paused": req.Enabled})
}

func (s *Server) handleSetRole(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}
	var req roleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	addr, err := parseAddress("address", req.Address)
	if err != nil {
		writeError(w, err)
		return
	}
	if req.Granted {
		err = s.ledger.GrantRole(r.Context(), caller, req.Role, addr)
	} else {
		err = s.ledger.RevokeRole(r.Context(), caller, req.Role, addr)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

func (s *Server) handleWithdrawReserve(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}
	var req withdrawRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.ledger.WithdrawReserve(r.Context(), caller, req.Token, amount, to); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrReject(w, r)
	if !ok {
		return
	}
	var req mintRequest
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
	if err := s.ledger.Mint(r.Context(), caller, req.Token, to, amount); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}
