package staking

import (
	"math/big"
	"strconv"

	"cookledger/core/types"
	"cookledger/crypto"
)

const (
	EventTypePoolCreated      = "staking.pool.created"
	EventTypeStaked           = "staking.staked"
	EventTypeUnstaked         = "staking.unstaked"
	EventTypeHarvested        = "staking.harvested"
	EventTypeClaimed          = "staking.claimed"
	EventTypeZapStaked        = "staking.zap.staked"
	EventTypeZapLP            = "staking.zap.lp"
	EventTypeReferralBound    = "staking.referral.bound"
	EventTypeReferralStarted  = "staking.referral.started"
	EventTypeReferralStopped  = "staking.referral.stopped"
	EventTypeParamUpdated     = "staking.param.updated"
	EventTypeRoleUpdated      = "staking.role.updated"
	EventTypeBlacklistUpdated = "staking.blacklist.updated"
	EventTypeReserveWithdrawn = "staking.reserve.withdrawn"
)

type stakingEvent struct {
	evt *types.Event
}

func (e stakingEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e stakingEvent) Event() *types.Event { return e.evt }

func poolAttr(id uint32) string { return strconv.FormatUint(uint64(id), 10) }

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// NewUserEvent builds the (user, amount) payload shared by the ledger
// operations.
func NewUserEvent(eventType string, poolID uint32, user crypto.Address, amount *big.Int) *types.Event {
	return &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"pool":   poolAttr(poolID),
			"user":   user.String(),
			"amount": formatAmount(amount),
		},
	}
}

// NewPoolCreatedEvent announces a pool registration.
func NewPoolCreatedEvent(pool *Pool) *types.Event {
	return &types.Event{
		Type: EventTypePoolCreated,
		Attributes: map[string]string{
			"pool":        poolAttr(pool.ID),
			"token":       pool.Token,
			"rewardToken": pool.RewardToken,
			"kind":        pool.Kind.String(),
		},
	}
}

// NewParamUpdatedEvent records an administrative change as (pool, old, new).
func NewParamUpdatedEvent(poolID uint32, param, oldValue, newValue string) *types.Event {
	return &types.Event{
		Type: EventTypeParamUpdated,
		Attributes: map[string]string{
			"pool":  poolAttr(poolID),
			"param": param,
			"old":   oldValue,
			"new":   newValue,
		},
	}
}

// NewReferralBoundEvent records the first attribution of referee to referral.
func NewReferralBoundEvent(poolID uint32, referee, referral crypto.Address) *types.Event {
	return &types.Event{
		Type: EventTypeReferralBound,
		Attributes: map[string]string{
			"pool":     poolAttr(poolID),
			"referee":  referee.String(),
			"referral": referral.String(),
		},
	}
}

// NewReferralToggleEvent announces the start or stop of a referral
// competition.
func NewReferralToggleEvent(poolID uint32, active bool) *types.Event {
	eventType := EventTypeReferralStopped
	if active {
		eventType = EventTypeReferralStarted
	}
	return &types.Event{
		Type:       eventType,
		Attributes: map[string]string{"pool": poolAttr(poolID)},
	}
}

// NewZapEvent records a claim that was restaked into target.
func NewZapEvent(eventType string, poolID uint32, user crypto.Address, claimed *big.Int, targetPool uint32, staked *big.Int) *types.Event {
	return &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"pool":       poolAttr(poolID),
			"user":       user.String(),
			"amount":     formatAmount(claimed),
			"targetPool": poolAttr(targetPool),
			"staked":     formatAmount(staked),
		},
	}
}

// NewRoleUpdatedEvent records a grant or revocation.
func NewRoleUpdatedEvent(role string, addr crypto.Address, granted bool) *types.Event {
	return &types.Event{
		Type: EventTypeRoleUpdated,
		Attributes: map[string]string{
			"role":    role,
			"address": addr.String(),
			"granted": strconv.FormatBool(granted),
		},
	}
}

// NewBlacklistUpdatedEvent records a blacklist toggle.
func NewBlacklistUpdatedEvent(poolID uint32, addr crypto.Address, listed bool) *types.Event {
	return &types.Event{
		Type: EventTypeBlacklistUpdated,
		Attributes: map[string]string{
			"pool":    poolAttr(poolID),
			"address": addr.String(),
			"listed":  strconv.FormatBool(listed),
		},
	}
}

// NewReserveWithdrawnEvent records an emergency withdrawal of free reserve.
func NewReserveWithdrawnEvent(token string, to crypto.Address, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeReserveWithdrawn,
		Attributes: map[string]string{
			"token":  token,
			"to":     to.String(),
			"amount": formatAmount(amount),
		},
	}
}
