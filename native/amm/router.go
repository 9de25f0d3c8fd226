package amm

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"cookledger/core/events"
	"cookledger/crypto"
)

var (
	ErrNoLiquidity       = errors.New("amm: pair has no liquidity")
	ErrInsufficientOut   = errors.New("amm: output below minimum")
	ErrInvalidPath       = errors.New("amm: swap path must name at least two distinct tokens")
	ErrInvalidAmount     = errors.New("amm: amount must be positive")
	ErrInsufficientShare = errors.New("amm: liquidity minted would be zero")
	errNilState          = errors.New("amm: state not configured")
)

var (
	feeNumerator   = big.NewInt(997)
	feeDenominator = big.NewInt(1000)
)

// Pair holds the reserves of one constant-product market. Token0 sorts
// before Token1.
type Pair struct {
	Token0    string
	Token1    string
	Reserve0  *big.Int
	Reserve1  *big.Int
	Liquidity *big.Int
}

type pairState interface {
	GetPair(lpToken string) (*Pair, bool, error)
	PutPair(lpToken string, pair *Pair) error
}

type tokenLedger interface {
	Transfer(symbol string, from, to crypto.Address, amount *big.Int) error
	Mint(symbol string, to crypto.Address, amount *big.Int) error
}

// Router executes swaps and liquidity additions against the stored pairs.
type Router struct {
	state   pairState
	tokens  tokenLedger
	emitter events.Emitter
}

// NewRouter binds a router to state and the token ledger.
func NewRouter(state pairState, tokens tokenLedger, emitter events.Emitter) *Router {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	return &Router{state: state, tokens: tokens, emitter: emitter}
}

func sortTokens(a, b string) (string, string) {
	pair := []string{strings.ToUpper(strings.TrimSpace(a)), strings.ToUpper(strings.TrimSpace(b))}
	sort.Strings(pair)
	return pair[0], pair[1]
}

// PairToken is the LP token symbol of the tokenA/tokenB market.
func (r *Router) PairToken(tokenA, tokenB string) string {
	t0, t1 := sortTokens(tokenA, tokenB)
	return "LP-" + t0 + "-" + t1
}

// PairAddress is the account that custodies the pair reserves.
func PairAddress(lpToken string) crypto.Address {
	return crypto.DeriveAddress("amm:" + lpToken)
}

func (r *Router) loadPair(tokenA, tokenB string) (*Pair, string, error) {
	if r == nil || r.state == nil || r.tokens == nil {
		return nil, "", errNilState
	}
	lp := r.PairToken(tokenA, tokenB)
	pair, ok, err := r.state.GetPair(lp)
	if err != nil {
		return nil, "", err
	}
	if !ok || pair == nil {
		t0, t1 := sortTokens(tokenA, tokenB)
		pair = &Pair{Token0: t0, Token1: t1}
	}
	if pair.Reserve0 == nil {
		pair.Reserve0 = big.NewInt(0)
	}
	if pair.Reserve1 == nil {
		pair.Reserve1 = big.NewInt(0)
	}
	if pair.Liquidity == nil {
		pair.Liquidity = big.NewInt(0)
	}
	return pair, lp, nil
}

// reserves returns the reserves ordered as (tokenA, tokenB).
func (p *Pair) reserves(tokenA string) (*big.Int, *big.Int) {
	if strings.EqualFold(p.Token0, strings.TrimSpace(tokenA)) {
		return p.Reserve0, p.Reserve1
	}
	return p.Reserve1, p.Reserve0
}

func (p *Pair) setReserves(tokenA string, ra, rb *big.Int) {
	if strings.EqualFold(p.Token0, strings.TrimSpace(tokenA)) {
		p.Reserve0, p.Reserve1 = ra, rb
		return
	}
	p.Reserve0, p.Reserve1 = rb, ra
}

// Quote returns the amount of tokenB equal in value to amountA at the current
// reserve ratio.
func (r *Router) Quote(tokenA, tokenB string, amountA *big.Int) (*big.Int, error) {
	if amountA == nil || amountA.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	pair, _, err := r.loadPair(tokenA, tokenB)
	if err != nil {
		return nil, err
	}
	ra, rb := pair.reserves(tokenA)
	if ra.Sign() == 0 || rb.Sign() == 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrNoLiquidity, pair.Token0, pair.Token1)
	}
	out := new(big.Int).Mul(amountA, rb)
	return out.Quo(out, ra), nil
}

// amountOut applies the 0.3% fee and the constant-product invariant.
func amountOut(amountIn, reserveIn, reserveOut *big.Int) *big.Int {
	inWithFee := new(big.Int).Mul(amountIn, feeNumerator)
	numerator := new(big.Int).Mul(inWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, feeDenominator)
	denominator.Add(denominator, inWithFee)
	return numerator.Quo(numerator, denominator)
}

// SwapExactTokensForTokens sells amountIn of path[0] for path[len-1], hopping
// through each intermediate pair. The output is credited to to.
func (r *Router) SwapExactTokensForTokens(trader crypto.Address, amountIn, amountOutMin *big.Int, path []string, to crypto.Address) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if len(path) < 2 {
		return nil, ErrInvalidPath
	}
	type hop struct {
		in, out, lp string
		pair        *Pair
		amountIn    *big.Int
		amountOut   *big.Int
	}
	hops := make([]hop, 0, len(path)-1)
	current := new(big.Int).Set(amountIn)
	for i := 0; i+1 < len(path); i++ {
		in, out := path[i], path[i+1]
		if strings.EqualFold(in, out) {
			return nil, ErrInvalidPath
		}
		pair, lp, err := r.loadPair(in, out)
		if err != nil {
			return nil, err
		}
		rin, rout := pair.reserves(in)
		if rin.Sign() == 0 || rout.Sign() == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoLiquidity, lp)
		}
		received := amountOut(current, rin, rout)
		if received.Sign() == 0 {
			return nil, fmt.Errorf("%w: %s", ErrInsufficientOut, lp)
		}
		hops = append(hops, hop{in: in, out: out, lp: lp, pair: pair, amountIn: current, amountOut: received})
		current = received
	}
	if amountOutMin != nil && current.Cmp(amountOutMin) < 0 {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrInsufficientOut, current, amountOutMin)
	}

	holder := trader
	for _, h := range hops {
		pairAddr := PairAddress(h.lp)
		if err := r.tokens.Transfer(h.in, holder, pairAddr, h.amountIn); err != nil {
			return nil, err
		}
		rin, rout := h.pair.reserves(h.in)
		h.pair.setReserves(h.in, new(big.Int).Add(rin, h.amountIn), new(big.Int).Sub(rout, h.amountOut))
		if err := r.state.PutPair(h.lp, h.pair); err != nil {
			return nil, err
		}
		r.emitter.Emit(events.SwapExecuted{Trader: trader.Raw(), AssetIn: h.in, AssetOut: h.out, AmountIn: new(big.Int).Set(h.amountIn), AmountOut: new(big.Int).Set(h.amountOut)})
		holder = pairAddr
	}
	if err := r.tokens.Transfer(path[len(path)-1], holder, to, current); err != nil {
		return nil, err
	}
	return current, nil
}

// AddLiquidity deposits up to amountA/amountB at the current ratio and mints
// LP tokens to to. It returns the amounts actually taken from provider.
func (r *Router) AddLiquidity(provider crypto.Address, tokenA, tokenB string, amountA, amountB *big.Int, to crypto.Address) (*big.Int, *big.Int, *big.Int, error) {
	if amountA == nil || amountB == nil || amountA.Sign() <= 0 || amountB.Sign() <= 0 {
		return nil, nil, nil, ErrInvalidAmount
	}
	pair, lp, err := r.loadPair(tokenA, tokenB)
	if err != nil {
		return nil, nil, nil, err
	}
	ra, rb := pair.reserves(tokenA)
	usedA, usedB := new(big.Int).Set(amountA), new(big.Int).Set(amountB)
	var liquidity *big.Int
	if pair.Liquidity.Sign() == 0 || ra.Sign() == 0 || rb.Sign() == 0 {
		liquidity = new(big.Int).Sqrt(new(big.Int).Mul(usedA, usedB))
	} else {
		optimalB := new(big.Int).Quo(new(big.Int).Mul(amountA, rb), ra)
		if optimalB.Cmp(amountB) <= 0 {
			usedB = optimalB
		} else {
			usedA = new(big.Int).Quo(new(big.Int).Mul(amountB, ra), rb)
		}
		fromA := new(big.Int).Quo(new(big.Int).Mul(usedA, pair.Liquidity), ra)
		fromB := new(big.Int).Quo(new(big.Int).Mul(usedB, pair.Liquidity), rb)
		liquidity = fromA
		if fromB.Cmp(fromA) < 0 {
			liquidity = fromB
		}
	}
	if liquidity.Sign() == 0 {
		return nil, nil, nil, ErrInsufficientShare
	}
	pairAddr := PairAddress(lp)
	if err := r.tokens.Transfer(tokenA, provider, pairAddr, usedA); err != nil {
		return nil, nil, nil, err
	}
	if err := r.tokens.Transfer(tokenB, provider, pairAddr, usedB); err != nil {
		return nil, nil, nil, err
	}
	if err := r.tokens.Mint(lp, to, liquidity); err != nil {
		return nil, nil, nil, err
	}
	pair.setReserves(tokenA, new(big.Int).Add(ra, usedA), new(big.Int).Add(rb, usedB))
	pair.Liquidity = new(big.Int).Add(pair.Liquidity, liquidity)
	if err := r.state.PutPair(lp, pair); err != nil {
		return nil, nil, nil, err
	}
	r.emitter.Emit(events.LiquidityAdded{Provider: provider.Raw(), Pair: lp, AmountA: usedA, AmountB: usedB, Liquidity: liquidity})
	return usedA, usedB, liquidity, nil
}

// Pair returns the stored reserves of the tokenA/tokenB market.
func (r *Router) Pair(tokenA, tokenB string) (*Pair, error) {
	pair, _, err := r.loadPair(tokenA, tokenB)
	return pair, err
}
