package app

import (
	"sync"
	"time"

	blockchain "github.com/fd1az/mordor-monitor/business/blockchain/domain"
	"github.com/fd1az/mordor-monitor/business/monitor/domain"
)

// PollStatus is the poll loop's own health.
type PollStatus struct {
	Syncing   bool
	LastPoll  time.Time // last completed attempt, successful or not
	LastOK    time.Time
	LastError error
	Head      uint64
	Polls     uint64
}

// PollState is shared between the poller (writer) and queries (readers).
type PollState struct {
	mu     sync.RWMutex
	status PollStatus
}

func NewPollState() *PollState {
	return &PollState{}
}

func (s *PollState) Snapshot() PollStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *PollState) succeeded(at time.Time, head uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.LastPoll, s.status.LastOK = at, at
	s.status.LastError = nil
	s.status.Head = head
	s.status.Polls++
}

func (s *PollState) failed(at time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.LastPoll = at
	s.status.LastError = err
	s.status.Polls++
}

func (s *PollState) setSyncing(syncing bool) {
	s.mu.Lock()
	s.status.Syncing = syncing
	s.mu.Unlock()
}

// NodeStateReader reports the node adapter's connection state.
type NodeStateReader interface {
	ConnectionState() blockchain.ConnectionState
}

// QueryService builds read models. It never touches the network.
type QueryService struct {
	chain ChainTracker
	gas   GasTracker
	poll  *PollState
	node  NodeStateReader
}

func NewQueryService(chain ChainTracker, gas GasTracker, poll *PollState, node NodeStateReader) *QueryService {
	return &QueryService{chain: chain, gas: gas, poll: poll, node: node}
}

// Status returns tip, syncing flag, latest sample and fork statistics.
func (q *QueryService) Status() domain.StatusView {
	snap := q.chain.Snapshot()
	poll := q.poll.Snapshot()

	v := domain.StatusView{
		CanonicalLength: snap.CanonicalLength,
		Syncing:         poll.Syncing,
		LastPoll:        poll.LastPoll,
		AvgTxPerBlock:   q.gas.AvgTxPerBlock(),
		Forks: domain.ForkStats{
			Total:        snap.ForkCount,
			ActiveForks:  snap.ActiveForks,
			MissedBlocks: snap.MissedBlocks,
		},
	}
	if q.node != nil {
		v.NodeState = string(q.node.ConnectionState())
	}
	if poll.LastError != nil {
		v.LastError = poll.LastError.Error()
	}
	if snap.HasTip {
		tip := domain.NewBlockView(snap.Tip)
		v.Tip = &tip
	}
	if s, ok := q.gas.Latest(); ok {
		sv := domain.NewSampleView(s)
		v.LatestSample = &sv
	}
	if snap.LastFork != nil {
		fv := domain.NewForkView(*snap.LastFork)
		v.Forks.LastFork = &fv
	}
	return v
}

// Recommendation returns the current gas tiers.
func (q *QueryService) Recommendation() domain.RecommendationView {
	return domain.NewRecommendationView(q.gas.Recommend())
}

// Forks returns the fork history, newest first.
func (q *QueryService) Forks() []domain.ForkView {
	history := q.chain.History()
	out := make([]domain.ForkView, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		out = append(out, domain.NewForkView(history[i]))
	}
	return out
}

// PollStatus exposes the poll loop's health for health checks.
func (q *QueryService) PollStatus() PollStatus {
	return q.poll.Snapshot()
}
