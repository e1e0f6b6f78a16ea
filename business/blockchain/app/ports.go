// Package app contains application services and port definitions for the blockchain context.
package app

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/mordor-monitor/business/blockchain/domain"
	chain "github.com/fd1az/mordor-monitor/business/chain/domain"
)

// BlockSource reads headers from a node. Failures are transient from the
// caller's point of view and carry apperror codes.
type BlockSource interface {
	LatestBlock(ctx context.Context) (chain.Header, error)
	BlockByNumber(ctx context.Context, number uint64) (chain.Header, error)
	BlockByHash(ctx context.Context, hash common.Hash) (chain.Header, error)
	IsSyncing(ctx context.Context) (bool, error)
}

// NodeReader is the richer node view used by the CLI and health checks.
type NodeReader interface {
	BlockSource
	ChainID(ctx context.Context) (uint64, error)
	SuggestGasPrice(ctx context.Context) (domain.GasPrice, error)
	BlockDetails(ctx context.Context, number *uint64) (domain.BlockDetails, error)
	State() domain.ConnectionState
}
