package metrics

import (
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StakingMetrics tracks ledger operations and pool aggregates.
type StakingMetrics struct {
	operations    *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	totalStaked   *prometheus.GaugeVec
	totalRewarded *prometheus.GaugeVec
	totalVesting  *prometheus.GaugeVec
	commitKeys    prometheus.Histogram
}

var (
	stakingOnce     sync.Once
	stakingRegistry *StakingMetrics
)

// Staking returns the lazily-registered staking metrics.
func Staking() *StakingMetrics {
	stakingOnce.Do(func() {
		stakingRegistry = &StakingMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cook",
				Subsystem: "staking",
				Name:      "operations_total",
				Help:      "Ledger operations segmented by operation and outcome.",
			}, []string{"op", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "cook",
				Subsystem: "staking",
				Name:      "operation_duration_seconds",
				Help:      "Time spent applying and committing a ledger operation.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"op"}),
			totalStaked: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "cook",
				Subsystem: "staking",
				Name:      "pool_total_staked",
				Help:      "Principal held by each pool.",
			}, []string{"pool", "token"}),
			totalRewarded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "cook",
				Subsystem: "staking",
				Name:      "pool_total_rewarded",
				Help:      "Accrued, unharvested reward per pool.",
			}, []string{"pool", "token"}),
			totalVesting: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "cook",
				Subsystem: "staking",
				Name:      "pool_total_vesting",
				Help:      "Harvested reward not yet claimed per pool.",
			}, []string{"pool", "token"}),
			commitKeys: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "cook",
				Subsystem: "staking",
				Name:      "commit_keys",
				Help:      "Number of state keys written per committed operation.",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
			}),
		}
		prometheus.MustRegister(
			stakingRegistry.operations,
			stakingRegistry.latency,
			stakingRegistry.totalStaked,
			stakingRegistry.totalRewarded,
			stakingRegistry.totalVesting,
			stakingRegistry.commitKeys,
		)
	})
	return stakingRegistry
}

// RecordOperation counts one ledger operation.
func (m *StakingMetrics) RecordOperation(op string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordCommit observes the size of a committed write set.
func (m *StakingMetrics) RecordCommit(keys int) {
	if m == nil {
		return
	}
	m.commitKeys.Observe(float64(keys))
}

// SetPoolTotals publishes the aggregates of one pool.
func (m *StakingMetrics) SetPoolTotals(poolID uint32, token string, staked, rewarded, vesting *big.Int) {
	if m == nil {
		return
	}
	pool := strconv.FormatUint(uint64(poolID), 10)
	m.totalStaked.WithLabelValues(pool, token).Set(toFloat(staked))
	m.totalRewarded.WithLabelValues(pool, token).Set(toFloat(rewarded))
	m.totalVesting.WithLabelValues(pool, token).Set(toFloat(vesting))
}

func toFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
