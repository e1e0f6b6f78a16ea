// Package app contains the gas oracle service.
package app

import (
	"sync"

	chain "github.com/fd1az/mordor-monitor/business/chain/domain"
	"github.com/fd1az/mordor-monitor/business/gas/domain"
)

// Oracle turns observed headers into gas samples and recommendations.
type Oracle struct {
	mu     sync.RWMutex
	window *domain.Window
}

// NewOracle creates an oracle keeping the last windowSize samples.
func NewOracle(windowSize int) *Oracle {
	return &Oracle{window: domain.NewWindow(windowSize)}
}

// Observe samples h and adds it to the window. The bool is false when the
// block was already sampled or is older than the newest sample.
func (o *Oracle) Observe(h chain.Header) (domain.Sample, bool) {
	s := domain.NewSample(h)

	o.mu.Lock()
	defer o.mu.Unlock()
	return s, o.window.Insert(s)
}

// Recommend computes price tiers from the current window.
func (o *Oracle) Recommend() domain.Recommendation {
	o.mu.RLock()
	samples := o.window.Samples()
	o.mu.RUnlock()

	return domain.Recommend(samples)
}

// Latest returns the newest sample.
func (o *Oracle) Latest() (domain.Sample, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.window.Latest()
}

// Samples returns the window, oldest first.
func (o *Oracle) Samples() []domain.Sample {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.window.Samples()
}

// AvgTxPerBlock is the mean tx count across the window.
func (o *Oracle) AvgTxPerBlock() float64 {
	return domain.AvgTxPerBlock(o.Samples())
}
