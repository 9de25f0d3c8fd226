package events

import (
	"math/big"

	"cookledger/core/types"
)

const (
	// TypeSwapExecuted is emitted when the router fills a swap.
	TypeSwapExecuted = "amm.swap"
	// TypeLiquidityAdded is emitted when liquidity is deposited into a pair.
	TypeLiquidityAdded = "amm.liquidityAdded"
)

type SwapExecuted struct {
	Trader    [20]byte
	AssetIn   string
	AssetOut  string
	AmountIn  *big.Int
	AmountOut *big.Int
}

func (SwapExecuted) EventType() string { return TypeSwapExecuted }

func (e SwapExecuted) Event() *types.Event {
	return &types.Event{
		Type: TypeSwapExecuted,
		Attributes: map[string]string{
			"trader":    formatAddress(e.Trader),
			"assetIn":   normalizeAsset(e.AssetIn),
			"assetOut":  normalizeAsset(e.AssetOut),
			"amountIn":  formatAmount(e.AmountIn),
			"amountOut": formatAmount(e.AmountOut),
		},
	}
}

type LiquidityAdded struct {
	Provider  [20]byte
	Pair      string
	AmountA   *big.Int
	AmountB   *big.Int
	Liquidity *big.Int
}

func (LiquidityAdded) EventType() string { return TypeLiquidityAdded }

func (e LiquidityAdded) Event() *types.Event {
	return &types.Event{
		Type: TypeLiquidityAdded,
		Attributes: map[string]string{
			"provider":  formatAddress(e.Provider),
			"pair":      normalizeAsset(e.Pair),
			"amountA":   formatAmount(e.AmountA),
			"amountB":   formatAmount(e.AmountB),
			"liquidity": formatAmount(e.Liquidity),
		},
	}
}
