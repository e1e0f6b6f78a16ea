// Package domain holds the read models the monitor serves. Prices leave the
// core as wei and are rendered here as gwei; percentages are rounded to two
// decimals.
package domain

import (
	"time"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	blockchain "github.com/fd1az/mordor-monitor/business/blockchain/domain"
	chain "github.com/fd1az/mordor-monitor/business/chain/domain"
	gas "github.com/fd1az/mordor-monitor/business/gas/domain"
)

// Price carries both units; Wei is a decimal string so it survives JSON.
type Price struct {
	Wei  string          `json:"wei"`
	Gwei decimal.Decimal `json:"gwei"`
}

func NewPrice(wei uint256.Int) Price {
	return Price{Wei: wei.Dec(), Gwei: blockchain.WeiToGwei(wei)}
}

// Percent rounds a utilization value for display.
func Percent(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

type BlockView struct {
	Number     uint64 `json:"number"`
	Hash       string `json:"hash"`
	ParentHash string `json:"parent_hash"`
	Timestamp  uint64 `json:"timestamp"`
	Difficulty string `json:"difficulty"`
	GasUsed    uint64 `json:"gas_used"`
	GasLimit   uint64 `json:"gas_limit"`
	TxCount    uint32 `json:"tx_count"`
}

func NewBlockView(h chain.Header) BlockView {
	return BlockView{
		Number:     h.Number,
		Hash:       h.Hash.Hex(),
		ParentHash: h.ParentHash.Hex(),
		Timestamp:  h.Timestamp,
		Difficulty: h.Difficulty.Dec(),
		GasUsed:    h.GasUsed,
		GasLimit:   h.GasLimit,
		TxCount:    h.TxCount,
	}
}

type SampleView struct {
	BlockNumber        uint64          `json:"block_number"`
	Min                Price           `json:"min"`
	P25                Price           `json:"p25"`
	Median             Price           `json:"median"`
	P75                Price           `json:"p75"`
	Max                Price           `json:"max"`
	Mean               Price           `json:"mean"`
	GasUsed            uint64          `json:"gas_used"`
	GasLimit           uint64          `json:"gas_limit"`
	TxCount            uint32          `json:"tx_count"`
	UtilizationPercent decimal.Decimal `json:"utilization_percent"`
}

func NewSampleView(s gas.Sample) SampleView {
	return SampleView{
		BlockNumber:        s.BlockNumber,
		Min:                NewPrice(s.Min),
		P25:                NewPrice(s.P25),
		Median:             NewPrice(s.Median),
		P75:                NewPrice(s.P75),
		Max:                NewPrice(s.Max),
		Mean:               NewPrice(s.Mean),
		GasUsed:            s.GasUsed,
		GasLimit:           s.GasLimit,
		TxCount:            s.TxCount,
		UtilizationPercent: Percent(s.Utilization),
	}
}

type ForkView struct {
	ID                   string    `json:"id"`
	DetectedAt           time.Time `json:"detected_at"`
	DetectedAtHeight     uint64    `json:"detected_at_height"`
	CommonAncestorNumber uint64    `json:"common_ancestor_number"`
	Depth                uint32    `json:"depth"`
	CompetingHash        string    `json:"competing_hash"`
	ReplacedHash         string    `json:"replaced_hash"`
	Resolved             bool      `json:"resolved"`
}

func NewForkView(e chain.ForkEvent) ForkView {
	return ForkView{
		ID:                   e.ID,
		DetectedAt:           e.DetectedAt,
		DetectedAtHeight:     e.DetectedAtHeight,
		CommonAncestorNumber: e.CommonAncestorNumber,
		Depth:                e.Depth,
		CompetingHash:        e.CompetingHash.Hex(),
		ReplacedHash:         e.ReplacedHash.Hex(),
		Resolved:             e.Resolved,
	}
}

type ForkStats struct {
	Total        uint64    `json:"total"`
	ActiveForks  int       `json:"active_forks"`
	MissedBlocks uint64    `json:"missed_blocks"`
	LastFork     *ForkView `json:"last_fork,omitempty"`
}

// StatusView is what /api/status returns and what each stream tick carries.
type StatusView struct {
	Tip             *BlockView  `json:"tip,omitempty"`
	CanonicalLength int         `json:"canonical_length"`
	Syncing         bool        `json:"syncing"`
	NodeState       string      `json:"node_state"`
	LastPoll        time.Time   `json:"last_poll"`
	LastError       string      `json:"last_error,omitempty"`
	LatestSample    *SampleView `json:"latest_sample,omitempty"`
	AvgTxPerBlock   float64     `json:"avg_tx_per_block"`
	Forks           ForkStats   `json:"forks"`
}

type RecommendationView struct {
	Status         gas.Status      `json:"status"`
	Slow           *Price          `json:"slow,omitempty"`
	Standard       *Price          `json:"standard,omitempty"`
	Fast           *Price          `json:"fast,omitempty"`
	Instant        *Price          `json:"instant,omitempty"`
	Samples        int             `json:"samples"`
	FromBlock      uint64          `json:"from_block,omitempty"`
	ToBlock        uint64          `json:"to_block,omitempty"`
	AvgUtilization decimal.Decimal `json:"avg_utilization_percent"`
	AvgTxPerBlock  decimal.Decimal `json:"avg_tx_per_block"`
}

func NewRecommendationView(r gas.Recommendation) RecommendationView {
	v := RecommendationView{
		Status:         r.Status,
		Samples:        r.Samples,
		FromBlock:      r.FromBlock,
		ToBlock:        r.ToBlock,
		AvgUtilization: Percent(r.AvgUtilization),
		AvgTxPerBlock:  decimal.NewFromFloat(r.AvgTxPerBlock).Round(2),
	}
	if r.Tiers != nil {
		slow, std := NewPrice(r.Tiers.Slow), NewPrice(r.Tiers.Standard)
		fast, inst := NewPrice(r.Tiers.Fast), NewPrice(r.Tiers.Instant)
		v.Slow, v.Standard, v.Fast, v.Instant = &slow, &std, &fast, &inst
	}
	return v
}

// EventType names a stream message.
type EventType string

const (
	EventTick EventType = "tick"
	EventFork EventType = "fork"
)

// Event is one message on the websocket stream.
type Event struct {
	Type     EventType   `json:"type"`
	Status   *StatusView `json:"status,omitempty"`
	Fork     *ForkView   `json:"fork,omitempty"`
	Outcomes []string    `json:"outcomes,omitempty"`
	At       time.Time   `json:"at"`
}
