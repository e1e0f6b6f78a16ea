// Package ethereum provides the ethclient-backed node adapter.
package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/mordor-monitor/business/blockchain/app"
	"github.com/fd1az/mordor-monitor/business/blockchain/domain"
	chain "github.com/fd1az/mordor-monitor/business/chain/domain"
	"github.com/fd1az/mordor-monitor/internal/apperror"
	"github.com/fd1az/mordor-monitor/internal/cache"
	"github.com/fd1az/mordor-monitor/internal/circuitbreaker"
	"github.com/fd1az/mordor-monitor/internal/logger"
	"github.com/fd1az/mordor-monitor/internal/ratelimit"
)

const (
	tracerName = "github.com/fd1az/mordor-monitor/business/blockchain/infra/ethereum"
	meterName  = "github.com/fd1az/mordor-monitor/business/blockchain/infra/ethereum"
)

var _ app.NodeReader = (*Source)(nil)

// SourceConfig holds configuration for the node adapter.
type SourceConfig struct {
	RPCURL            string
	RequestTimeout    time.Duration // per RPC call
	RequestsPerSecond float64
	Burst             int
	CacheTTL          time.Duration // headers by hash
	BreakerFailures   uint32
	BreakerTimeout    time.Duration
}

// DefaultSourceConfig returns sensible defaults.
func DefaultSourceConfig(rpcURL string) SourceConfig {
	return SourceConfig{
		RPCURL:            rpcURL,
		RequestTimeout:    10 * time.Second,
		RequestsPerSecond: 10,
		Burst:             5,
		CacheTTL:          10 * time.Minute,
		BreakerFailures:   5,
		BreakerTimeout:    30 * time.Second,
	}
}

// sourceMetrics holds OTEL metric instruments.
type sourceMetrics struct {
	requests  metric.Int64Counter
	errors    metric.Int64Counter
	latency   metric.Float64Histogram
	cacheHits metric.Int64Counter
	state     metric.Int64Gauge
}

// Source reads blocks from a JSON-RPC node through a rate limiter, a circuit
// breaker and a header cache.
type Source struct {
	config SourceConfig
	logger logger.LoggerInterface

	client   *ethclient.Client
	clientMu sync.RWMutex

	chainID   *big.Int
	chainIDMu sync.Mutex

	state   domain.ConnectionState
	stateMu sync.RWMutex

	limiter *ratelimit.Limiter
	cb      *circuitbreaker.CircuitBreaker[any]
	headers *cache.Cache[common.Hash, chain.Header]

	tracer  trace.Tracer
	metrics *sourceMetrics
}

// NewSource creates a node adapter. The connection is dialled lazily.
func NewSource(cfg SourceConfig, log logger.LoggerInterface) (*Source, error) {
	s := &Source{
		config:  cfg,
		logger:  log,
		state:   domain.StateDisconnected,
		limiter: ratelimit.New(cfg.RequestsPerSecond, cfg.Burst),
		headers: cache.New[common.Hash, chain.Header](time.Minute),
		tracer:  otel.Tracer(tracerName),
	}

	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	s.initCircuitBreaker()

	return s, nil
}

// initMetrics initializes OTEL metric instruments.
func (s *Source) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &sourceMetrics{}

	s.metrics.requests, err = meter.Int64Counter(
		"node_rpc_requests_total",
		metric.WithDescription("RPC calls issued to the node"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	s.metrics.errors, err = meter.Int64Counter(
		"node_rpc_errors_total",
		metric.WithDescription("RPC calls that failed"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	s.metrics.latency, err = meter.Float64Histogram(
		"node_rpc_latency_ms",
		metric.WithDescription("RPC round-trip latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	s.metrics.cacheHits, err = meter.Int64Counter(
		"node_header_cache_hits_total",
		metric.WithDescription("Header lookups served from cache"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return err
	}

	s.metrics.state, err = meter.Int64Gauge(
		"node_connection_state",
		metric.WithDescription("Node connection state (0=disconnected, 1=connecting, 2=connected, 3=degraded)"),
		metric.WithUnit("{state}"),
	)
	return err
}

// initCircuitBreaker initializes the breaker shared by all RPC calls.
func (s *Source) initCircuitBreaker() {
	cfg := circuitbreaker.DefaultConfig("node-rpc")
	cfg.ConsecutiveFailures = s.config.BreakerFailures
	cfg.Timeout = s.config.BreakerTimeout
	cfg.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, ethereum.NotFound) || errors.Is(err, context.Canceled)
	}
	cfg.OnStateChange = func(name string, from, to gobreaker.State) {
		s.logger.Warn(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
		switch to {
		case gobreaker.StateOpen:
			s.setState(domain.StateDegraded)
		case gobreaker.StateClosed:
			s.setState(domain.StateConnected)
		}
	}
	s.cb = circuitbreaker.New[any](cfg)
}

// Connect dials the node. Calls dial on demand, so a failure here is not fatal.
func (s *Source) Connect(ctx context.Context) error {
	_, err := s.ensureClient(ctx)
	return err
}

func (s *Source) ensureClient(ctx context.Context) (*ethclient.Client, error) {
	s.clientMu.RLock()
	client := s.client
	s.clientMu.RUnlock()
	if client != nil {
		return client, nil
	}

	ctx, span := s.tracer.Start(ctx, "eth.connect",
		trace.WithAttributes(attribute.String("url", s.config.RPCURL)),
	)
	defer span.End()

	s.clientMu.Lock()
	defer s.clientMu.Unlock()
	if s.client != nil {
		return s.client, nil
	}

	s.setState(domain.StateConnecting)
	client, err := ethclient.DialContext(ctx, s.config.RPCURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
		s.setState(domain.StateDisconnected)
		return nil, apperror.New(apperror.CodeEthereumConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext(s.config.RPCURL))
	}

	s.client = client
	s.setState(domain.StateConnected)
	span.SetStatus(codes.Ok, "connected")
	s.logger.Info(ctx, "node connected", "url", s.config.RPCURL)
	return client, nil
}

// call runs one RPC under the limiter, the breaker and a timeout, and maps
// failures to application errors.
func call[T any](ctx context.Context, s *Source, op string, fn func(context.Context, *ethclient.Client) (T, error)) (T, error) {
	ctx, span := s.tracer.Start(ctx, "eth."+op)
	defer span.End()

	var zero T
	fail := func(err error) (T, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, op+" failed")
		s.metrics.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
		return zero, err
	}

	client, err := s.ensureClient(ctx)
	if err != nil {
		return fail(err)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fail(err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	start := time.Now()
	s.metrics.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	res, err := s.cb.Execute(func() (any, error) {
		return fn(callCtx, client)
	})
	s.metrics.latency.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(attribute.String("op", op)))

	if err != nil {
		return fail(mapError(op, err))
	}

	span.SetStatus(codes.Ok, "")
	return res.(T), nil
}

func mapError(op string, err error) error {
	switch {
	case apperror.IsAppError(err):
		return err
	case errors.Is(err, ethereum.NotFound):
		return apperror.NotFound(apperror.CodeBlockNotFound, op)
	case errors.Is(err, context.DeadlineExceeded):
		return apperror.External(apperror.CodeServiceTimeout, op, err)
	default:
		return apperror.External(apperror.CodeEthereumRPCError, op, err)
	}
}

// LatestBlock returns the head block with per-transaction gas prices.
func (s *Source) LatestBlock(ctx context.Context) (chain.Header, error) {
	return s.fetchHeader(ctx, "latest_block", nil)
}

// BlockByNumber returns the canonical block at number.
func (s *Source) BlockByNumber(ctx context.Context, number uint64) (chain.Header, error) {
	return s.fetchHeader(ctx, "block_by_number", new(big.Int).SetUint64(number))
}

// BlockByHash returns the block with the given hash, from cache when possible.
func (s *Source) BlockByHash(ctx context.Context, hash common.Hash) (chain.Header, error) {
	if h, ok := s.headers.Get(ctx, hash); ok {
		s.metrics.cacheHits.Add(ctx, 1)
		return h.Clone(), nil
	}

	block, err := call(ctx, s, "block_by_hash", func(ctx context.Context, c *ethclient.Client) (*types.Block, error) {
		return c.BlockByHash(ctx, hash)
	})
	if err != nil {
		return chain.Header{}, err
	}
	return s.remember(ctx, toHeader(block)), nil
}

func (s *Source) fetchHeader(ctx context.Context, op string, number *big.Int) (chain.Header, error) {
	block, err := call(ctx, s, op, func(ctx context.Context, c *ethclient.Client) (*types.Block, error) {
		return c.BlockByNumber(ctx, number)
	})
	if err != nil {
		return chain.Header{}, err
	}
	return s.remember(ctx, toHeader(block)), nil
}

func (s *Source) remember(ctx context.Context, h chain.Header) chain.Header {
	s.headers.Set(ctx, h.Hash, h.Clone(), s.config.CacheTTL)
	return h
}

// IsSyncing reports whether the node is still catching up.
func (s *Source) IsSyncing(ctx context.Context) (bool, error) {
	return call(ctx, s, "syncing", func(ctx context.Context, c *ethclient.Client) (bool, error) {
		progress, err := c.SyncProgress(ctx)
		return progress != nil, err
	})
}

// ChainID returns the node's chain id; it is fetched once.
func (s *Source) ChainID(ctx context.Context) (uint64, error) {
	id, err := s.chainIDBig(ctx)
	if err != nil {
		return 0, err
	}
	return id.Uint64(), nil
}

func (s *Source) chainIDBig(ctx context.Context) (*big.Int, error) {
	s.chainIDMu.Lock()
	defer s.chainIDMu.Unlock()
	if s.chainID != nil {
		return s.chainID, nil
	}

	id, err := call(ctx, s, "chain_id", func(ctx context.Context, c *ethclient.Client) (*big.Int, error) {
		return c.ChainID(ctx)
	})
	if err != nil {
		return nil, err
	}
	s.chainID = id
	return id, nil
}

// SuggestGasPrice returns the node's gas price suggestion.
func (s *Source) SuggestGasPrice(ctx context.Context) (domain.GasPrice, error) {
	wei, err := call(ctx, s, "gas_price", func(ctx context.Context, c *ethclient.Client) (*big.Int, error) {
		return c.SuggestGasPrice(ctx)
	})
	if err != nil {
		return domain.GasPrice{}, err
	}
	return domain.NewGasPrice(toUint256(wei)), nil
}

// BlockDetails returns a block with miner, size and transaction summaries.
// A nil number means the latest block.
func (s *Source) BlockDetails(ctx context.Context, number *uint64) (domain.BlockDetails, error) {
	var n *big.Int
	if number != nil {
		n = new(big.Int).SetUint64(*number)
	}

	block, err := call(ctx, s, "block_details", func(ctx context.Context, c *ethclient.Client) (*types.Block, error) {
		return c.BlockByNumber(ctx, n)
	})
	if err != nil {
		return domain.BlockDetails{}, err
	}

	var signer types.Signer
	if id, err := s.chainIDBig(ctx); err == nil {
		signer = types.LatestSignerForChainID(id)
	}

	return domain.BlockDetails{
		Header: toHeader(block),
		Miner:  block.Coinbase(),
		Size:   block.Size(),
		Txs:    toTxSummaries(block, signer),
	}, nil
}

// State returns the current connection state.
func (s *Source) State() domain.ConnectionState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// setState updates the connection state and records metrics.
func (s *Source) setState(state domain.ConnectionState) {
	s.stateMu.Lock()
	s.state = state
	s.stateMu.Unlock()

	var v int64
	switch state {
	case domain.StateConnecting:
		v = 1
	case domain.StateConnected:
		v = 2
	case domain.StateDegraded:
		v = 3
	}
	s.metrics.state.Record(context.Background(), v)
}

// Close releases the client and the cache janitor.
func (s *Source) Close() error {
	s.clientMu.Lock()
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
	s.clientMu.Unlock()

	s.headers.Close()
	s.setState(domain.StateDisconnected)
	return nil
}
