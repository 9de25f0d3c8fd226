package events

import (
	"math/big"

	"cookledger/core/types"
)

const (
	// TypeTransfer is emitted for every token balance movement.
	TypeTransfer = "token.transfer"
	// TypeApproval is emitted when an owner changes a spender allowance.
	TypeApproval = "token.approval"
	// TypeMint is emitted when new supply is credited to an account.
	TypeMint = "token.mint"
)

type Transfer struct {
	Asset  string
	From   [20]byte
	To     [20]byte
	Amount *big.Int
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Event() *types.Event {
	attrs := map[string]string{}
	if asset := normalizeAsset(e.Asset); asset != "" {
		attrs["asset"] = asset
	}
	attrs["from"] = formatAddress(e.From)
	attrs["to"] = formatAddress(e.To)
	attrs["amount"] = formatAmount(e.Amount)
	return &types.Event{Type: TypeTransfer, Attributes: attrs}
}

type Approval struct {
	Asset   string
	Owner   [20]byte
	Spender [20]byte
	Amount  *big.Int
}

func (Approval) EventType() string { return TypeApproval }

func (e Approval) Event() *types.Event {
	return &types.Event{Type: TypeApproval, Attributes: map[string]string{
		"asset":   normalizeAsset(e.Asset),
		"owner":   formatAddress(e.Owner),
		"spender": formatAddress(e.Spender),
		"amount":  formatAmount(e.Amount),
	}}
}

type Mint struct {
	Asset  string
	To     [20]byte
	Amount *big.Int
}

func (Mint) EventType() string { return TypeMint }

func (e Mint) Event() *types.Event {
	return &types.Event{Type: TypeMint, Attributes: map[string]string{
		"asset":  normalizeAsset(e.Asset),
		"to":     formatAddress(e.To),
		"amount": formatAmount(e.Amount),
	}}
}
