package core

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"cookledger/core/chain"
	"cookledger/core/events"
	"cookledger/core/state"
	"cookledger/crypto"
	"cookledger/native/amm"
	"cookledger/native/bank"
	nativecommon "cookledger/native/common"
	"cookledger/native/staking"
	"cookledger/observability/metrics"
	cookotel "cookledger/observability/otel"
	"cookledger/storage"
)

var (
	// ErrGenesisApplied is returned when a second genesis is applied.
	ErrGenesisApplied = errors.New("ledger: genesis already applied")
	errNilDatabase    = errors.New("ledger: database required")
)

// Ledger serialises every staking, bank and AMM operation into atomic state
// transactions. Each call runs against a fresh overlay that is committed as
// one storage batch on success and discarded on error; events reach the bus
// only after the commit.
type Ledger struct {
	mu      sync.RWMutex
	db      storage.Database
	clock   chain.Clock
	module  crypto.Address
	pauses  *nativecommon.Pauses
	bus     *events.Bus
	logger  *slog.Logger
	metrics *metrics.StakingMetrics
}

// Option customises a Ledger.
type Option func(*Ledger)

// WithLogger routes ledger logs to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithModuleAddress overrides the account custodying staked funds.
func WithModuleAddress(addr crypto.Address) Option {
	return func(l *Ledger) {
		if !addr.IsZero() {
			l.module = addr
		}
	}
}

// WithPauses shares a pause set with the ledger.
func WithPauses(p *nativecommon.Pauses) Option {
	return func(l *Ledger) {
		if p != nil {
			l.pauses = p
		}
	}
}

// WithMetrics enables Prometheus recording.
func WithMetrics(m *metrics.StakingMetrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// NewLedger opens a ledger over db. Heights and timestamps come from clock.
func NewLedger(db storage.Database, clock chain.Clock, opts ...Option) (*Ledger, error) {
	if db == nil {
		return nil, errNilDatabase
	}
	if clock == nil {
		clock = chain.NewSystemClock(time.Now(), time.Second)
	}
	l := &Ledger{
		db:     db,
		clock:  clock,
		module: crypto.DeriveAddress("staking"),
		pauses: nativecommon.NewPauses(),
		bus:    events.NewBus(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With(slog.String("component", "ledger"))
	return l, nil
}

// Subscribe registers a listener for committed events.
func (l *Ledger) Subscribe(listener events.Emitter) { l.bus.Subscribe(listener) }

// ModuleAddress returns the account holding staked principal and reserves.
func (l *Ledger) ModuleAddress() crypto.Address { return l.module }

// Pauses exposes the module pause set.
func (l *Ledger) Pauses() *nativecommon.Pauses { return l.pauses }

// Height returns the block height and timestamp the next call executes at.
func (l *Ledger) Height() (uint64, uint64) { return l.clock.Now() }

// txn bundles the engines bound to one state overlay.
type txn struct {
	state   *state.Manager
	bank    *bank.Ledger
	router  *amm.Router
	staking *staking.Engine
	events  *events.Buffer
	height  uint64
	time    uint64
}

func (l *Ledger) begin() *txn {
	height, ts := l.clock.Now()
	manager := state.NewManager(l.db)
	buffer := &events.Buffer{}
	tokens := bank.NewLedger(manager, buffer)
	router := amm.NewRouter(manager, tokens, buffer)
	engine := staking.NewEngine(l.module)
	engine.SetState(manager)
	engine.SetToken(tokens)
	engine.SetRouter(router)
	engine.SetPauses(l.pauses)
	engine.SetEmitter(buffer)
	engine.SetBlockHeight(height)
	engine.SetBlockTime(ts)
	return &txn{
		state:   manager,
		bank:    tokens,
		router:  router,
		staking: engine,
		events:  buffer,
		height:  height,
		time:    ts,
	}
}

// apply runs fn in a write transaction.
func (l *Ledger) apply(ctx context.Context, op string, fn func(tx *txn) error) error {
	ctx, span := cookotel.Tracer().Start(ctx, "ledger."+op)
	defer span.End()

	l.mu.Lock()
	defer l.mu.Unlock()

	start := time.Now()
	tx := l.begin()
	span.SetAttributes(attribute.Int64("ledger.height", int64(tx.height)))

	err := fn(tx)
	if err == nil {
		err = l.touchMeta(tx)
	}
	var pools []*staking.Pool
	if err == nil && l.metrics != nil {
		pools, err = tx.staking.Pools()
	}
	dirty := tx.state.Dirty()
	if err == nil {
		err = tx.state.Commit()
	}
	duration := time.Since(start)
	l.metrics.RecordOperation(op, err, duration)
	if err != nil {
		tx.state.Discard()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.logger.DebugContext(ctx, "ledger operation rejected",
			slog.String("op", op),
			slog.Uint64("height", tx.height),
			slog.String("error", err.Error()))
		return err
	}
	l.metrics.RecordCommit(dirty)
	for _, pool := range pools {
		l.metrics.SetPoolTotals(pool.ID, pool.Token, pool.TotalStaked, pool.TotalRewarded, pool.TotalVesting)
	}
	for _, evt := range tx.events.Drain() {
		l.bus.Emit(evt)
	}
	l.logger.DebugContext(ctx, "ledger operation committed",
		slog.String("op", op),
		slog.Uint64("height", tx.height),
		slog.Int("keys", dirty),
		slog.Duration("duration", duration))
	return nil
}

// view runs fn against a read-only overlay.
func (l *Ledger) view(fn func(tx *txn) error) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	tx := l.begin()
	defer tx.state.Discard()
	return fn(tx)
}

func (l *Ledger) touchMeta(tx *txn) error {
	meta, err := tx.state.ChainMeta()
	if err != nil {
		return err
	}
	if tx.height > meta.LastHeight {
		meta.LastHeight = tx.height
	}
	if tx.time > meta.LastTimestamp {
		meta.LastTimestamp = tx.time
	}
	return tx.state.PutChainMeta(meta)
}

// --- Stake ledger operations ---

// Stake deposits amount of the pool token. The module account must hold an
// allowance from user.
func (l *Ledger) Stake(ctx context.Context, user crypto.Address, poolID uint32, amount *big.Int, referral crypto.Address) error {
	return l.apply(ctx, "stake", func(tx *txn) error {
		return tx.staking.Stake(user, poolID, amount, referral)
	})
}

// Unstake withdraws unlocked stake.
func (l *Ledger) Unstake(ctx context.Context, user crypto.Address, poolID uint32, amount *big.Int) error {
	return l.apply(ctx, "unstake", func(tx *txn) error {
		return tx.staking.Unstake(user, poolID, amount)
	})
}

// Exit unstakes everything unlocked and harvests the remaining reward.
func (l *Ledger) Exit(ctx context.Context, user crypto.Address, poolID uint32) error {
	return l.apply(ctx, "exit", func(tx *txn) error {
		return tx.staking.Exit(user, poolID)
	})
}

// Harvest moves accrued reward into vesting.
func (l *Ledger) Harvest(ctx context.Context, user crypto.Address, poolID uint32, amount *big.Int) error {
	return l.apply(ctx, "harvest", func(tx *txn) error {
		return tx.staking.Harvest(user, poolID, amount)
	})
}

// Claim pays out vested reward.
func (l *Ledger) Claim(ctx context.Context, user crypto.Address, poolID uint32, amount *big.Int) error {
	return l.apply(ctx, "claim", func(tx *txn) error {
		return tx.staking.Claim(user, poolID, amount)
	})
}

// ZapStake claims vested reward and stakes it into targetPoolID.
func (l *Ledger) ZapStake(ctx context.Context, user crypto.Address, poolID uint32, amount *big.Int, targetPoolID uint32, minOut *big.Int) error {
	return l.apply(ctx, "zap", func(tx *txn) error {
		return tx.staking.ZapStake(user, poolID, amount, targetPoolID, minOut)
	})
}

// ZapLP claims vested reward, pairs it into liquidity and stakes the LP
// tokens.
func (l *Ledger) ZapLP(ctx context.Context, user crypto.Address, poolID uint32, amount *big.Int, lpPoolID uint32) error {
	return l.apply(ctx, "zap_lp", func(tx *txn) error {
		return tx.staking.ZapLP(user, poolID, amount, lpPoolID)
	})
}

// --- Bank operations ---

// Approve sets the allowance of spender over owner's tokens.
func (l *Ledger) Approve(ctx context.Context, symbol string, owner, spender crypto.Address, amount *big.Int) error {
	return l.apply(ctx, "approve", func(tx *txn) error {
		return tx.bank.Approve(symbol, owner, spender, amount)
	})
}

// Transfer moves tokens between accounts.
func (l *Ledger) Transfer(ctx context.Context, symbol string, from, to crypto.Address, amount *big.Int) error {
	return l.apply(ctx, "transfer", func(tx *txn) error {
		return tx.bank.Transfer(symbol, from, to, amount)
	})
}

// Mint creates tokens. Only governance may mint.
func (l *Ledger) Mint(ctx context.Context, caller crypto.Address, symbol string, to crypto.Address, amount *big.Int) error {
	return l.apply(ctx, "mint", func(tx *txn) error {
		ok, err := tx.state.HasRole(staking.RoleGovernance, caller)
		if err != nil {
			return err
		}
		if !ok {
			return staking.ErrUnauthorized
		}
		return tx.bank.Mint(symbol, to, amount)
	})
}

// AddLiquidity deposits into an AMM pair on behalf of provider.
func (l *Ledger) AddLiquidity(ctx context.Context, provider crypto.Address, tokenA, tokenB string, amountA, amountB *big.Int) (*big.Int, error) {
	var minted *big.Int
	err := l.apply(ctx, "add_liquidity", func(tx *txn) error {
		_, _, liquidity, err := tx.router.AddLiquidity(provider, normalize(tokenA), normalize(tokenB), amountA, amountB, provider)
		minted = liquidity
		return err
	})
	return minted, err
}

// Swap trades amountIn along path for trader.
func (l *Ledger) Swap(ctx context.Context, trader crypto.Address, amountIn, minOut *big.Int, path []string) (*big.Int, error) {
	var out *big.Int
	err := l.apply(ctx, "swap", func(tx *txn) error {
		normalized := make([]string, len(path))
		for i, p := range path {
			normalized[i] = normalize(p)
		}
		received, err := tx.router.SwapExactTokensForTokens(trader, amountIn, minOut, normalized, trader)
		out = received
		return err
	})
	return out, err
}

func normalize(symbol string) string { return bank.NormalizeSymbol(symbol) }
