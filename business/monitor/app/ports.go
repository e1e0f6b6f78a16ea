// Package app drives the poll loop and serves read models for the monitor.
package app

import (
	"github.com/ethereum/go-ethereum/common"

	chain "github.com/fd1az/mordor-monitor/business/chain/domain"
	gas "github.com/fd1az/mordor-monitor/business/gas/domain"
	"github.com/fd1az/mordor-monitor/business/monitor/domain"
)

// MetricsSink receives the monitor's metric writes by name.
type MetricsSink interface {
	SetGauge(name string, value float64)
	AddCounter(name string, delta float64)
	Observe(name string, value float64)
}

// Broadcaster fans events out to stream subscribers. It must not block.
type Broadcaster interface {
	Broadcast(ev domain.Event)
}

// ChainTracker is the fork detector as the poller and queries see it.
type ChainTracker interface {
	Ingest(h chain.Header) ([]chain.Outcome, error)
	Snapshot() chain.ChainSnapshot
	History() []chain.ForkEvent
	Canonical() []chain.Header
	OrphanRoot(hash common.Hash) (chain.Header, bool)
	Known(hash common.Hash) bool
	Reanchor(hash common.Hash) bool
}

// GasTracker is the gas oracle as the poller and queries see it.
type GasTracker interface {
	Observe(h chain.Header) (gas.Sample, bool)
	Latest() (gas.Sample, bool)
	Recommend() gas.Recommendation
	AvgTxPerBlock() float64
}

type nopSink struct{}

func (nopSink) SetGauge(string, float64)   {}
func (nopSink) AddCounter(string, float64) {}
func (nopSink) Observe(string, float64)    {}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(domain.Event) {}
