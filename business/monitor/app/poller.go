package app

import (
	"context"
	"fmt"
	"math/big"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	blockchainapp "github.com/fd1az/mordor-monitor/business/blockchain/app"
	chain "github.com/fd1az/mordor-monitor/business/chain/domain"
	gas "github.com/fd1az/mordor-monitor/business/gas/domain"
	"github.com/fd1az/mordor-monitor/business/monitor/domain"
	"github.com/fd1az/mordor-monitor/internal/apm"
	"github.com/fd1az/mordor-monitor/internal/apperror"
	"github.com/fd1az/mordor-monitor/internal/logger"
)

const (
	tracerName = "github.com/fd1az/mordor-monitor/business/monitor/app"
	meterName  = "github.com/fd1az/mordor-monitor/business/monitor/app"
)

// PollerConfig controls the poll loop.
type PollerConfig struct {
	Interval       time.Duration
	MaxRetries     int // extra attempts per fetch within a tick
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackfillLimit  int // parent headers fetched per tick to link an orphaned head; 0 disables
	ReanchorLag    int // head lead over the tip that restarts the canonical chain; 0 disables
}

// DefaultPollerConfig returns the production defaults.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Interval:       5 * time.Second,
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     4 * time.Second,
		BackfillLimit:  32,
		ReanchorLag:    256,
	}
}

type pollerMetrics struct {
	duration   metric.Float64Histogram
	errors     metric.Int64Counter
	syncing    metric.Int64Gauge
	backfilled metric.Int64Counter
}

// Poller feeds the latest node head to the fork detector and the gas oracle
// once per interval. Poll must not be called concurrently.
type Poller struct {
	cfg    PollerConfig
	source blockchainapp.BlockSource
	chain  ChainTracker
	gas    GasTracker
	query  *QueryService
	state  *PollState
	sink   MetricsSink
	bcast  Broadcaster
	log    logger.LoggerInterface
	now    func() time.Time

	tracer  apm.Tracer
	metrics *pollerMetrics

	lastHash common.Hash
}

// NewPoller wires a poll loop around the trackers query reads from. sink
// and bcast may be nil.
func NewPoller(
	cfg PollerConfig,
	source blockchainapp.BlockSource,
	query *QueryService,
	sink MetricsSink,
	bcast Broadcaster,
	log logger.LoggerInterface,
) (*Poller, error) {
	if sink == nil {
		sink = nopSink{}
	}
	if bcast == nil {
		bcast = nopBroadcaster{}
	}

	p := &Poller{
		cfg:    cfg,
		source: source,
		chain:  query.chain,
		gas:    query.gas,
		query:  query,
		state:  query.poll,
		sink:   sink,
		bcast:  bcast,
		log:    log,
		now:    time.Now,
		tracer: apm.NewTracer(tracerName),
	}

	if err := p.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return p, nil
}

func (p *Poller) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error
	m := &pollerMetrics{}

	m.duration, err = meter.Float64Histogram("monitor_poll_duration_ms",
		metric.WithDescription("Wall time of one poll tick"),
		metric.WithUnit("ms"))
	if err != nil {
		return err
	}

	m.errors, err = meter.Int64Counter("monitor_poll_errors_total",
		metric.WithDescription("Poll ticks that failed"))
	if err != nil {
		return err
	}

	m.syncing, err = meter.Int64Gauge("monitor_node_syncing",
		metric.WithDescription("1 while the node reports it is syncing"))
	if err != nil {
		return err
	}

	m.backfilled, err = meter.Int64Counter("monitor_backfilled_blocks_total",
		metric.WithDescription("Parent headers fetched to link an orphaned head"))
	if err != nil {
		return err
	}

	p.metrics = m
	return nil
}

// Run polls until ctx is cancelled. Tick failures are logged and skipped.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info(ctx, "poller started", "interval", p.cfg.Interval.String())

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	_ = p.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			p.log.Info(ctx, "poller stopped")
			return nil
		case <-ticker.C:
			_ = p.Poll(ctx)
		}
	}
}

// Poll runs one tick.
func (p *Poller) Poll(ctx context.Context) error {
	ctx, span := p.tracer.StartSpanFromContext(ctx, "monitor.poll")
	defer span.End()

	start := p.now()
	defer func() {
		p.metrics.duration.Record(ctx, float64(time.Since(start).Microseconds())/1000)
	}()

	p.refreshSyncing(ctx)

	head, err := p.fetch(ctx, "latest_block", p.source.LatestBlock)
	if err != nil {
		return p.fail(ctx, span, "latest block unavailable, skipping tick", err)
	}
	span.SetBlock(head.Number, head.Hash.Hex())

	if head.Hash == p.lastHash {
		p.state.succeeded(p.now(), head.Number)
		return nil
	}

	before := p.chain.Canonical()
	outcomes, err := p.chain.Ingest(head)
	if err != nil {
		return p.fail(ctx, span, "rejected block header", err)
	}
	p.lastHash = head.Hash

	filled, more := p.catchUp(ctx, head)
	outcomes = append(outcomes, more...)
	observed := append(filled, head)

	p.exportChain(outcomes, before, p.chain.Canonical())
	for _, o := range outcomes {
		span.AddEvent(o.Kind.String())
	}
	for _, h := range observed {
		if s, ok := p.gas.Observe(h); ok {
			p.exportSample(s)
		}
	}
	p.sink.SetGauge(MetricAvgTxPerBlock, p.gas.AvgTxPerBlock())

	p.logOutcomes(ctx, head, outcomes)
	p.state.succeeded(p.now(), head.Number)
	p.publish(outcomes)
	return nil
}

func (p *Poller) fail(ctx context.Context, span apm.Span, msg string, err error) error {
	span.NoticeError(err)
	p.metrics.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("code", string(apperror.GetCode(err)))))
	p.state.failed(p.now(), err)
	p.log.Warn(ctx, msg, "error", err)
	return err
}

// fetch retries transient failures with exponential backoff, bounded by the
// poll interval so a slow node cannot stack ticks.
func (p *Poller) fetch(ctx context.Context, op string, fn func(context.Context) (chain.Header, error)) (chain.Header, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.InitialBackoff
	b.MaxInterval = p.cfg.MaxBackoff

	return backoff.Retry(ctx,
		func() (chain.Header, error) {
			h, err := fn(ctx)
			if err != nil && !apperror.IsTransient(err) {
				return h, backoff.Permanent(err)
			}
			return h, err
		},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(p.cfg.MaxRetries+1)),
		backoff.WithMaxElapsedTime(p.cfg.Interval),
		backoff.WithNotify(func(err error, next time.Duration) {
			p.log.Debug(ctx, "retrying node call", "op", op, "error", err, "next", next.String())
		}),
	)
}

// catchUp links an orphaned head back to the canonical chain. It walks
// parent hashes down from the orphan's root, at most BackfillLimit headers a
// tick, and ingests them oldest first; a later tick resumes where a short or
// failed walk stopped. A head too far ahead of the tip, or a walk that drops
// below the retained window, restarts the canonical chain from the head.
func (p *Poller) catchUp(ctx context.Context, head chain.Header) ([]chain.Header, []chain.Outcome) {
	root, ok := p.chain.OrphanRoot(head.Hash)
	if !ok {
		return nil, nil
	}
	tip := p.chain.Snapshot().Tip
	if p.outOfReach(tip.Number, head.Number) {
		p.reanchor(ctx, tip, head)
		return nil, nil
	}

	var walked []chain.Header
	parent := root.ParentHash
	for len(walked) < p.cfg.BackfillLimit && !p.chain.Known(parent) {
		h, err := p.fetch(ctx, "block_by_hash", func(ctx context.Context) (chain.Header, error) {
			return p.source.BlockByHash(ctx, parent)
		})
		if err != nil {
			p.log.Warn(ctx, "catch-up stopped", "hash", parent.Hex(), "error", err)
			break
		}
		if p.outOfReach(h.Number, tip.Number) {
			p.reanchor(ctx, tip, head)
			return nil, nil
		}
		walked = append(walked, h)
		parent = h.ParentHash
	}
	slices.Reverse(walked)

	var filled []chain.Header
	var outcomes []chain.Outcome
	for _, h := range walked {
		outs, err := p.chain.Ingest(h)
		if err != nil {
			p.log.Warn(ctx, "catch-up rejected header", "block", h.Number, "error", err)
			break
		}
		filled = append(filled, h)
		for _, o := range outs {
			if o.Kind == chain.OutcomeExtended || o.Kind == chain.OutcomeReorg {
				outcomes = append(outcomes, o)
			}
		}
	}

	p.metrics.backfilled.Add(ctx, int64(len(filled)))
	return filled, outcomes
}

// outOfReach reports whether high is more than ReanchorLag blocks above low.
func (p *Poller) outOfReach(low, high uint64) bool {
	return p.cfg.ReanchorLag > 0 && high > low+uint64(p.cfg.ReanchorLag)
}

func (p *Poller) reanchor(ctx context.Context, tip, head chain.Header) {
	if p.chain.Reanchor(head.Hash) {
		p.log.Warn(ctx, "canonical chain restarted from head", "previous_tip", tip.Number, "head", head.Number)
	}
}

func (p *Poller) refreshSyncing(ctx context.Context) {
	syncing, err := p.source.IsSyncing(ctx)
	if err != nil {
		p.log.Debug(ctx, "syncing check failed", "error", err)
		return
	}
	p.state.setSyncing(syncing)

	var v int64
	if syncing {
		v = 1
	}
	p.metrics.syncing.Record(ctx, v)
}

// exportChain maps outcomes onto chain metrics. Tip gauges move only when
// the canonical chain gained headers; the histograms see each of them.
func (p *Poller) exportChain(outcomes []chain.Outcome, before, after []chain.Header) {
	for _, o := range outcomes {
		switch o.Kind {
		case chain.OutcomeReorg:
			p.sink.AddCounter(MetricForkTotal, 1)
			p.sink.Observe(MetricForkDepth, float64(o.Fork.Depth))
		case chain.OutcomeMissedBlocks:
			p.sink.AddCounter(MetricMissedBlocks, float64(o.Missed))
		}
	}
	p.sink.SetGauge(MetricActiveForks, float64(p.chain.Snapshot().ActiveForks))

	start := len(after) - len(promoted(before, after))
	if start == len(after) {
		return
	}
	for i := start; i < len(after); i++ {
		h := after[i]
		if i > 0 {
			p.sink.Observe(MetricBlockTime, float64(h.Timestamp-after[i-1].Timestamp))
		}
		p.sink.Observe(MetricBlockDifficulty, toFloat(&h.Difficulty))
	}

	tip := after[len(after)-1]
	p.sink.SetGauge(MetricBlockHeight, float64(tip.Number))
	p.sink.SetGauge(MetricBlockTimestamp, float64(tip.Timestamp))
	p.sink.SetGauge(MetricBlockGasUsed, float64(tip.GasUsed))
	p.sink.SetGauge(MetricBlockGasLimit, float64(tip.GasLimit))
	p.sink.SetGauge(MetricTxCount, float64(tip.TxCount))
}

// promoted returns the suffix of after that was not canonical in before.
// Both windows hold consecutive heights.
func promoted(before, after []chain.Header) []chain.Header {
	i := len(after)
	for i > 0 {
		h := after[i-1]
		if len(before) > 0 && h.Number >= before[0].Number {
			if j := h.Number - before[0].Number; j < uint64(len(before)) && before[j].Hash == h.Hash {
				break
			}
		}
		i--
	}
	return after[i:]
}

func (p *Poller) exportSample(s gas.Sample) {
	p.sink.SetGauge(MetricGasMin, toFloat(&s.Min))
	p.sink.SetGauge(MetricGasMax, toFloat(&s.Max))
	p.sink.SetGauge(MetricGasMedian, toFloat(&s.Median))
	p.sink.SetGauge(MetricGasP25, toFloat(&s.P25))
	p.sink.SetGauge(MetricGasP75, toFloat(&s.P75))
	p.sink.SetGauge(MetricGasMean, toFloat(&s.Mean))
	p.sink.SetGauge(MetricGasUtilization, s.Utilization)
}

func (p *Poller) logOutcomes(ctx context.Context, head chain.Header, outcomes []chain.Outcome) {
	for _, o := range outcomes {
		switch o.Kind {
		case chain.OutcomeReorg:
			p.log.Info(ctx, "chain reorganization",
				"fork_id", o.Fork.ID,
				"depth", o.Fork.Depth,
				"common_ancestor", o.Fork.CommonAncestorNumber,
				"replaced", o.Fork.ReplacedHash.Hex(),
				"competing", o.Fork.CompetingHash.Hex())
		case chain.OutcomeMissedBlocks:
			p.log.Warn(ctx, "missed blocks", "count", o.Missed, "head", head.Number)
		case chain.OutcomeNewBranch:
			p.log.Info(ctx, "competing branch", "block", head.Number, "hash", head.Hash.Hex())
		default:
			p.log.Debug(ctx, "block ingested", "block", head.Number, "outcome", o.String(), "adopted", o.Adopted)
		}
	}
}

func (p *Poller) publish(outcomes []chain.Outcome) {
	at := p.now()
	names := make([]string, len(outcomes))
	for i, o := range outcomes {
		names[i] = o.String()
		if o.Kind == chain.OutcomeReorg {
			fv := domain.NewForkView(*o.Fork)
			p.bcast.Broadcast(domain.Event{Type: domain.EventFork, Fork: &fv, At: at})
		}
	}

	status := p.query.Status()
	p.bcast.Broadcast(domain.Event{Type: domain.EventTick, Status: &status, Outcomes: names, At: at})
}

func toFloat(v *uint256.Int) float64 {
	f, _ := new(big.Float).SetInt(v.ToBig()).Float64()
	return f
}
