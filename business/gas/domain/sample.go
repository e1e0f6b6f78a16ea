// Package domain contains gas price samples, the sample window and the
// recommendation computed from it.
package domain

import (
	"slices"

	"github.com/holiman/uint256"

	chain "github.com/fd1az/mordor-monitor/business/chain/domain"
)

// Sample is the gas price distribution of one block. Prices are wei.
type Sample struct {
	BlockNumber uint64
	Min         uint256.Int
	P25         uint256.Int
	Median      uint256.Int
	P75         uint256.Int
	Max         uint256.Int
	Mean        uint256.Int
	GasUsed     uint64
	GasLimit    uint64
	TxCount     uint32
	Utilization float64 // percent, unrounded
}

// NewSample summarises h's transaction gas prices. A block without
// transactions reports its base fee, or zero, for every price.
func NewSample(h chain.Header) Sample {
	s := Sample{
		BlockNumber: h.Number,
		GasUsed:     h.GasUsed,
		GasLimit:    h.GasLimit,
		TxCount:     h.TxCount,
		Utilization: Utilization(h.GasUsed, h.GasLimit),
	}

	if len(h.TxGasPrices) == 0 {
		var fallback uint256.Int
		if h.BaseFee != nil {
			fallback = *h.BaseFee
		}
		s.Min, s.P25, s.Median, s.P75, s.Max, s.Mean = fallback, fallback, fallback, fallback, fallback, fallback
		return s
	}

	sorted := SortPrices(h.TxGasPrices)
	s.Min = sorted[0]
	s.Max = sorted[len(sorted)-1]
	s.P25 = Percentile(sorted, 1, 4)
	s.Median = Percentile(sorted, 1, 2)
	s.P75 = Percentile(sorted, 3, 4)
	s.Mean = Mean(sorted)
	return s
}

// Utilization returns used/limit as a percentage, 0 for a zero limit.
func Utilization(used, limit uint64) float64 {
	if limit == 0 {
		return 0
	}
	return float64(used) / float64(limit) * 100
}

// SortPrices returns an ascending copy of prices.
func SortPrices(prices []uint256.Int) []uint256.Int {
	sorted := slices.Clone(prices)
	slices.SortFunc(sorted, func(a, b uint256.Int) int { return a.Cmp(&b) })
	return sorted
}

// Percentile interpolates linearly between the ranks bracketing the
// num/den quantile of an ascending slice: pos = q*(k-1), result =
// v[floor(pos)] + (v[ceil(pos)] - v[floor(pos)]) * frac(pos). Integer
// arithmetic, truncating. Empty input yields zero.
func Percentile(sorted []uint256.Int, num, den uint64) uint256.Int {
	k := uint64(len(sorted))
	if k == 0 {
		return uint256.Int{}
	}

	pos := num * (k - 1)
	i, rem := pos/den, pos%den
	lo := sorted[i]
	if rem == 0 || i+1 >= k {
		return lo
	}

	var step uint256.Int
	step.Sub(&sorted[i+1], &lo)
	step.Mul(&step, uint256.NewInt(rem))
	step.Div(&step, uint256.NewInt(den))

	var out uint256.Int
	out.Add(&lo, &step)
	return out
}

// Mean returns the truncated arithmetic mean.
func Mean(prices []uint256.Int) uint256.Int {
	var sum uint256.Int
	if len(prices) == 0 {
		return sum
	}
	for i := range prices {
		sum.Add(&sum, &prices[i])
	}
	sum.Div(&sum, uint256.NewInt(uint64(len(prices))))
	return sum
}
