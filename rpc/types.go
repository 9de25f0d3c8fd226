package rpc

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"cookledger/crypto"
	"cookledger/native/amm"
	"cookledger/native/staking"
	"cookledger/services/indexer"
)

// Amounts travel as base-10 strings so clients never lose precision.

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseAmount(field, value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: %s required", errBadRequest, field)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a base-10 integer", errBadRequest, field)
	}
	if amount.Sign() < 0 || amount.BitLen() > 256 {
		return nil, fmt.Errorf("%w: %s out of range", staking.ErrInvalidAmount, field)
	}
	return amount, nil
}

func parseOptionalAmount(field, value string) (*big.Int, error) {
	if strings.TrimSpace(value) == "" {
		return big.NewInt(0), nil
	}
	return parseAmount(field, value)
}

func parseAddress(field, value string) (crypto.Address, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%w: %s: %v", errBadRequest, field, err)
	}
	return addr, nil
}

func parseOptionalAddress(field, value string) (crypto.Address, error) {
	if strings.TrimSpace(value) == "" {
		return crypto.Address{}, nil
	}
	return parseAddress(field, value)
}

func parsePoolID(value string) (uint32, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(value), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: pool id %q", errBadRequest, value)
	}
	return uint32(id), nil
}

type TokenResponse struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals uint8  `json:"decimals"`
}

type PoolResponse struct {
	ID                  uint32 `json:"id"`
	Token               string `json:"token"`
	RewardToken         string `json:"rewardToken"`
	Kind                string `json:"kind"`
	PairToken           string `json:"pairToken,omitempty"`
	TotalStaked         string `json:"totalStaked"`
	TotalPhantom        string `json:"totalPhantom"`
	TotalRewarded       string `json:"totalRewarded"`
	TotalVesting        string `json:"totalVesting"`
	TotalClaimed        string `json:"totalClaimed"`
	LastRewardBlock     uint64 `json:"lastRewardBlock"`
	RewardRate          string `json:"rewardRate"`
	Weighted            bool   `json:"weighted"`
	RewardWeight        string `json:"rewardWeight"`
	LockupSeconds       uint64 `json:"lockupSeconds"`
	VestingSeconds      uint64 `json:"vestingSeconds"`
	VestingStepSeconds  uint64 `json:"vestingStepSeconds"`
	Paused              bool   `json:"paused"`
	PoolCap             string `json:"poolCap"`
	AddressCap          string `json:"addressCap"`
	ReferralActive      bool   `json:"referralActive"`
	Users               uint64 `json:"users"`
}

func poolResponse(p *staking.Pool) PoolResponse {
	return PoolResponse{
		ID:                  p.ID,
		Token:               p.Token,
		RewardToken:         p.RewardToken,
		Kind:                p.Kind.String(),
		PairToken:           p.PairToken,
		TotalStaked:         amountString(p.TotalStaked),
		TotalPhantom:        amountString(p.TotalPhantom),
		TotalRewarded:       amountString(p.TotalRewarded),
		TotalVesting:        amountString(p.TotalVesting),
		TotalClaimed:        amountString(p.TotalClaimed),
		LastRewardBlock:     p.LastRewardBlock,
		RewardRate:          amountString(p.RewardRate),
		Weighted:            p.Weighted,
		RewardWeight:        amountString(p.RewardWeight),
		LockupSeconds:       p.LockupDuration,
		VestingSeconds:      p.VestingDuration,
		VestingStepSeconds:  p.VestingStep,
		Paused:              p.Paused,
		PoolCap:             amountString(p.PoolCap),
		AddressCap:          amountString(p.AddressCap),
		ReferralActive:      p.ReferralActive,
		Users:               p.UserCount,
	}
}

type TrancheResponse struct {
	Amount    string `json:"amount"`
	Timestamp uint64 `json:"timestamp"`
}

type AccountResponse struct {
	Pool             uint32            `json:"pool"`
	Address          string            `json:"address"`
	Staked           string            `json:"staked"`
	Rewarded         string            `json:"rewarded"`
	Claimed          string            `json:"claimed"`
	Claimable        string            `json:"claimable"`
	Unstakable       string            `json:"unstakable"`
	Vesting          string            `json:"vesting"`
	AccumulatedPower string            `json:"accumulatedPower"`
	Referral         string            `json:"referral,omitempty"`
	Deposits         []TrancheResponse `json:"deposits"`
	VestingEntries   []TrancheResponse `json:"vestingEntries"`
}

func accountResponse(v *staking.AccountView) AccountResponse {
	out := AccountResponse{
		Pool:             v.PoolID,
		Address:          v.Address.String(),
		Staked:           amountString(v.Staked),
		Rewarded:         amountString(v.Rewarded),
		Claimed:          amountString(v.Claimed),
		Claimable:        amountString(v.Claimable),
		Unstakable:       amountString(v.Unstakable),
		Vesting:          amountString(v.Vesting),
		AccumulatedPower: amountString(v.AccumulatedPower),
		Deposits:         make([]TrancheResponse, 0, len(v.Deposits)),
		VestingEntries:   make([]TrancheResponse, 0, len(v.VestingEntries)),
	}
	if v.Referral != nil {
		out.Referral = v.Referral.String()
	}
	for _, d := range v.Deposits {
		out.Deposits = append(out.Deposits, TrancheResponse{Amount: amountString(d.Amount), Timestamp: d.Timestamp})
	}
	for _, e := range v.VestingEntries {
		out.VestingEntries = append(out.VestingEntries, TrancheResponse{Amount: amountString(e.Amount), Timestamp: e.Timestamp})
	}
	return out
}

type RegistryResponse struct {
	GlobalRate  string `json:"globalRate"`
	TotalWeight string `json:"totalWeight"`
	PoolCount   uint32 `json:"poolCount"`
}

type PairResponse struct {
	LPToken   string `json:"lpToken"`
	Token0    string `json:"token0"`
	Token1    string `json:"token1"`
	Reserve0  string `json:"reserve0"`
	Reserve1  string `json:"reserve1"`
	Liquidity string `json:"liquidity"`
}

func pairResponse(lp string, p *amm.Pair) PairResponse {
	return PairResponse{
		LPToken:   lp,
		Token0:    p.Token0,
		Token1:    p.Token1,
		Reserve0:  amountString(p.Reserve0),
		Reserve1:  amountString(p.Reserve1),
		Liquidity: amountString(p.Liquidity),
	}
}

type ReferralResponse struct {
	Pool     uint32   `json:"pool"`
	Referral string   `json:"referral"`
	Power    string   `json:"power"`
	Referees []string `json:"referees"`
}

type EventResponse struct {
	Seq        uint64 `json:"seq"`
	ID         string `json:"id"`
	Type       string `json:"type"`
	Pool       string `json:"pool,omitempty"`
	Account    string `json:"account,omitempty"`
	Amount     string `json:"amount,omitempty"`
	Attributes string `json:"attributes,omitempty"`
	Time       string `json:"time"`
}

func eventResponse(r indexer.EventRecord) EventResponse {
	return EventResponse{
		Seq:        r.Seq,
		ID:         r.EventID,
		Type:       r.Type,
		Pool:       r.Pool,
		Account:    r.Account,
		Amount:     r.Amount,
		Attributes: r.Attributes,
		Time:       r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// Request bodies.

type amountRequest struct {
	Amount string `json:"amount"`
}

type stakeRequest struct {
	Amount   string `json:"amount"`
	Referral string `json:"referral"`
}

type zapRequest struct {
	Amount     string `json:"amount"`
	TargetPool uint32 `json:"targetPool"`
	MinOut     string `json:"minOut"`
}

type zapLPRequest struct {
	Amount string `json:"amount"`
	LPPool uint32 `json:"lpPool"`
}

type approveRequest struct {
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type transferRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type swapRequest struct {
	AmountIn string   `json:"amountIn"`
	MinOut   string   `json:"minOut"`
	Path     []string `json:"path"`
}

type liquidityRequest struct {
	TokenA  string `json:"tokenA"`
	TokenB  string `json:"tokenB"`
	AmountA string `json:"amountA"`
	AmountB string `json:"amountB"`
}

type createPoolRequest struct {
	Token              string `json:"token"`
	RewardToken        string `json:"rewardToken"`
	Kind               string `json:"kind"`
	PairToken          string `json:"pairToken"`
	RewardRate         string `json:"rewardRate"`
	Weighted           bool   `json:"weighted"`
	RewardWeight       string `json:"rewardWeight"`
	LockupSeconds      uint64 `json:"lockupSeconds"`
	VestingSeconds     uint64 `json:"vestingSeconds"`
	VestingStepSeconds uint64 `json:"vestingStepSeconds"`
	PoolCap            string `json:"poolCap"`
	AddressCap         string `json:"addressCap"`
}

type rateRequest struct {
	Rate string `json:"rate"`
}

type weightsRequest struct {
	Pools   []uint32 `json:"pools"`
	Weights []string `json:"weights"`
}

type durationRequest struct {
	Seconds uint64 `json:"seconds"`
	Step    uint64 `json:"step"`
}

type capRequest struct {
	Cap string `json:"cap"`
}

type toggleRequest struct {
	Enabled bool `json:"enabled"`
}

type blacklistRequest struct {
	Address string `json:"address"`
	Listed  bool   `json:"listed"`
}

type roleRequest struct {
	Role    string `json:"role"`
	Address string `json:"address"`
	Granted bool   `json:"granted"`
}

type withdrawRequest struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
	To     string `json:"to"`
}

type mintRequest struct {
	Token  string `json:"token"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}
