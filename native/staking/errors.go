package staking

import "errors"

var (
	ErrInvalidAmount             = errors.New("staking engine: amount must be positive")
	ErrInsufficientUnlocked      = errors.New("staking engine: insufficient unlocked stake")
	ErrInsufficientRewarded      = errors.New("staking engine: insufficient rewarded balance")
	ErrInsufficientTotalRewarded = errors.New("staking engine: insufficient total rewarded")
	ErrInsufficientClaimable     = errors.New("staking engine: insufficient claimable balance")
	ErrCapExceeded               = errors.New("staking engine: deposit exceeds cap")
	ErrReferralMismatch          = errors.New("staking engine: referral does not match existing binding")
	ErrUnauthorized              = errors.New("staking engine: caller lacks required role")
	ErrPaused                    = errors.New("staking engine: pool paused")
	ErrBlacklisted               = errors.New("staking engine: address blacklisted")
	ErrPoolAlreadyExists         = errors.New("staking engine: token already has a pool")
	ErrUnknownPool               = errors.New("staking engine: unknown pool")
	ErrOverflow                  = errors.New("staking engine: arithmetic overflow")
	ErrWeightsMismatch           = errors.New("staking engine: pool and weight lists differ in length")
	ErrInvalidToken              = errors.New("staking engine: token not accepted by pool")
	ErrReserveExceeded           = errors.New("staking engine: withdrawal exceeds free reserve")

	errNilState  = errors.New("staking engine: state not configured")
	errNilToken  = errors.New("staking engine: token ledger not configured")
	errNilRouter = errors.New("staking engine: router not configured")
)
