package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fd1az/mordor-monitor/business/blockchain/domain"
	"github.com/fd1az/mordor-monitor/internal/apperror"
)

// BlockchainService answers node-level questions.
type BlockchainService struct {
	node NodeReader
}

// NewBlockchainService creates a new BlockchainService.
func NewBlockchainService(node NodeReader) *BlockchainService {
	return &BlockchainService{node: node}
}

// Source exposes the node as a BlockSource for the poll driver.
func (s *BlockchainService) Source() BlockSource {
	return s.node
}

// NodeInfo gathers chain id, head, sync flag and suggested price in parallel.
func (s *BlockchainService) NodeInfo(ctx context.Context) (domain.NodeInfo, error) {
	var info domain.NodeInfo
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		id, err := s.node.ChainID(gctx)
		info.ChainID = id
		return err
	})
	g.Go(func() error {
		h, err := s.node.LatestBlock(gctx)
		info.Latest = h
		return err
	})
	g.Go(func() error {
		syncing, err := s.node.IsSyncing(gctx)
		info.Syncing = syncing
		return err
	})
	g.Go(func() error {
		price, err := s.node.SuggestGasPrice(gctx)
		info.GasPrice = price
		return err
	})

	if err := g.Wait(); err != nil {
		return domain.NodeInfo{}, apperror.Wrap(err, apperror.CodeEthereumRPCError, "node info")
	}

	info.State = s.node.State()
	info.CollectedAt = time.Now()
	return info, nil
}

// Block returns details for number, or the latest block when number is nil.
func (s *BlockchainService) Block(ctx context.Context, number *uint64) (domain.BlockDetails, error) {
	return s.node.BlockDetails(ctx, number)
}

// CheckReachable is a health probe: the node answers and is not syncing.
func (s *BlockchainService) CheckReachable(ctx context.Context) error {
	syncing, err := s.node.IsSyncing(ctx)
	if err != nil {
		return err
	}
	if syncing {
		return apperror.New(apperror.CodeNodeSyncing)
	}
	return nil
}

// ConnectionState returns the current connection state.
func (s *BlockchainService) ConnectionState() domain.ConnectionState {
	return s.node.State()
}
