package app

import "github.com/fd1az/mordor-monitor/internal/metrics"

// Metric names, without namespace.
const (
	MetricBlockHeight     = "block_height"
	MetricBlockTimestamp  = "block_timestamp"
	MetricBlockGasUsed    = "block_gas_used"
	MetricBlockGasLimit   = "block_gas_limit"
	MetricBlockTime       = "block_time_seconds"
	MetricBlockDifficulty = "block_difficulty"
	MetricTxCount         = "transaction_count"
	MetricForkTotal       = "fork_total"
	MetricForkDepth       = "fork_depth"
	MetricActiveForks     = "active_forks"
	MetricMissedBlocks    = "missed_blocks_total"
	MetricGasMin          = "gas_price_min_wei"
	MetricGasMax          = "gas_price_max_wei"
	MetricGasMedian       = "gas_price_median_wei"
	MetricGasP25          = "gas_price_p25_wei"
	MetricGasP75          = "gas_price_p75_wei"
	MetricGasMean         = "gas_price_mean_wei"
	MetricGasUtilization  = "gas_utilization_percent"
	MetricAvgTxPerBlock   = "avg_tx_per_block"
)

var (
	blockTimeBuckets  = []float64{1, 5, 10, 13, 15, 20, 30, 60, 120, 300}
	forkDepthBuckets  = []float64{1, 2, 3, 4, 5, 8, 13, 21, 34, 64}
	difficultyBuckets = []float64{1e5, 2.5e5, 5e5, 1e6, 2.5e6, 5e6, 1e7, 1e8, 1e9, 1e10}
)

// MetricSpecs is the exported metric set.
func MetricSpecs() []metrics.Spec {
	return []metrics.Spec{
		{Name: MetricBlockHeight, Help: "Current canonical block height", Kind: metrics.Gauge},
		{Name: MetricBlockTimestamp, Help: "Timestamp of the canonical tip", Kind: metrics.Gauge},
		{Name: MetricBlockGasUsed, Help: "Gas used by the canonical tip", Kind: metrics.Gauge},
		{Name: MetricBlockGasLimit, Help: "Gas limit of the canonical tip", Kind: metrics.Gauge},
		{Name: MetricBlockTime, Help: "Seconds between consecutive canonical blocks", Kind: metrics.Histogram, Buckets: blockTimeBuckets},
		{Name: MetricBlockDifficulty, Help: "Difficulty of canonical blocks", Kind: metrics.Histogram, Buckets: difficultyBuckets},
		{Name: MetricTxCount, Help: "Transactions in the canonical tip", Kind: metrics.Gauge},
		{Name: MetricForkTotal, Help: "Chain reorganizations observed", Kind: metrics.Counter},
		{Name: MetricForkDepth, Help: "Canonical blocks replaced per reorganization", Kind: metrics.Histogram, Buckets: forkDepthBuckets},
		{Name: MetricActiveForks, Help: "Competing branches currently tracked", Kind: metrics.Gauge},
		{Name: MetricMissedBlocks, Help: "Block heights skipped between polls", Kind: metrics.Counter},
		{Name: MetricGasMin, Help: "Lowest gas price in the latest block", Kind: metrics.Gauge},
		{Name: MetricGasMax, Help: "Highest gas price in the latest block", Kind: metrics.Gauge},
		{Name: MetricGasMedian, Help: "Median gas price in the latest block", Kind: metrics.Gauge},
		{Name: MetricGasP25, Help: "25th percentile gas price in the latest block", Kind: metrics.Gauge},
		{Name: MetricGasP75, Help: "75th percentile gas price in the latest block", Kind: metrics.Gauge},
		{Name: MetricGasMean, Help: "Mean gas price in the latest block", Kind: metrics.Gauge},
		{Name: MetricGasUtilization, Help: "Gas used over gas limit in the latest block, percent", Kind: metrics.Gauge},
		{Name: MetricAvgTxPerBlock, Help: "Mean transactions per block over the gas window", Kind: metrics.Gauge},
	}
}
