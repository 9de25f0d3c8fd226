package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	"cookledger/core"
	"cookledger/native/amm"
	"cookledger/native/bank"
	"cookledger/native/staking"
)

var errBadRequest = errors.New("bad request")

type problem struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

// statusFor maps ledger errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, errBadRequest),
		errors.Is(err, staking.ErrInvalidAmount),
		errors.Is(err, staking.ErrWeightsMismatch),
		errors.Is(err, staking.ErrInvalidToken),
		errors.Is(err, staking.ErrUnknownRole),
		errors.Is(err, staking.ErrInvalidRate),
		errors.Is(err, staking.ErrInvalidPoolConfig),
		errors.Is(err, bank.ErrInvalidAmount),
		errors.Is(err, bank.ErrInvalidSymbol),
		errors.Is(err, amm.ErrInvalidAmount),
		errors.Is(err, amm.ErrInvalidPath):
		return http.StatusBadRequest
	case errors.Is(err, staking.ErrUnauthorized),
		errors.Is(err, staking.ErrBlacklisted):
		return http.StatusForbidden
	case errors.Is(err, staking.ErrUnknownPool):
		return http.StatusNotFound
	case errors.Is(err, staking.ErrPoolAlreadyExists),
		errors.Is(err, staking.ErrReferralMismatch),
		errors.Is(err, staking.ErrWeightedPool),
		errors.Is(err, core.ErrGenesisApplied):
		return http.StatusConflict
	case errors.Is(err, staking.ErrPaused):
		return http.StatusServiceUnavailable
	case errors.Is(err, staking.ErrInsufficientUnlocked),
		errors.Is(err, staking.ErrInsufficientRewarded),
		errors.Is(err, staking.ErrInsufficientTotalRewarded),
		errors.Is(err, staking.ErrInsufficientClaimable),
		errors.Is(err, staking.ErrCapExceeded),
		errors.Is(err, staking.ErrReserveExceeded),
		errors.Is(err, staking.ErrOverflow),
		errors.Is(err, bank.ErrInsufficientBalance),
		errors.Is(err, bank.ErrInsufficientAllowance),
		errors.Is(err, amm.ErrInsufficientOut),
		errors.Is(err, amm.ErrInsufficientShare),
		errors.Is(err, amm.ErrNoLiquidity):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, problem{Error: message, RequestID: w.Header().Get(headerRequestID)})
}

// writeError reports err with the mapped status. Internal failures hide
// their message.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	writeProblem(w, status, message)
}
