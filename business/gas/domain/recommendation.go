package domain

import "github.com/holiman/uint256"

// Status tells whether a recommendation carries prices.
type Status string

const (
	StatusOK               Status = "ok"
	StatusInsufficientData Status = "insufficient_data"
)

// Tiers are the recommended prices in wei.
type Tiers struct {
	Slow     uint256.Int
	Standard uint256.Int
	Fast     uint256.Int
	Instant  uint256.Int
}

// Recommendation is computed from the window's per-block medians. Tiers is
// nil when Status is StatusInsufficientData.
type Recommendation struct {
	Status         Status
	Tiers          *Tiers
	Samples        int
	FromBlock      uint64
	ToBlock        uint64
	AvgUtilization float64
	AvgTxPerBlock  float64
}

// Recommend derives price tiers from samples, oldest first.
func Recommend(samples []Sample) Recommendation {
	if len(samples) == 0 {
		return Recommendation{Status: StatusInsufficientData}
	}

	medians := make([]uint256.Int, len(samples))
	var util float64
	for i, s := range samples {
		medians[i] = s.Median
		util += s.Utilization
	}
	sorted := SortPrices(medians)
	n := float64(len(samples))

	return Recommendation{
		Status: StatusOK,
		Tiers: &Tiers{
			Slow:     Percentile(sorted, 1, 4),
			Standard: Percentile(sorted, 1, 2),
			Fast:     Percentile(sorted, 3, 4),
			Instant:  sorted[len(sorted)-1],
		},
		Samples:        len(samples),
		FromBlock:      samples[0].BlockNumber,
		ToBlock:        samples[len(samples)-1].BlockNumber,
		AvgUtilization: util / n,
		AvgTxPerBlock:  AvgTxPerBlock(samples),
	}
}

// AvgTxPerBlock is the mean transaction count over samples, 0 when empty.
func AvgTxPerBlock(samples []Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	var txs uint64
	for _, s := range samples {
		txs += uint64(s.TxCount)
	}
	return float64(txs) / float64(len(samples))
}
