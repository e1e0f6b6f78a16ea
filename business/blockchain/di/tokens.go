// Package di contains dependency injection tokens for the blockchain context.
package di

import (
	"github.com/fd1az/mordor-monitor/business/blockchain/app"
	"github.com/fd1az/mordor-monitor/internal/di"
)

// Public service tokens - exposed to other modules
var (
	BlockchainService = di.NewToken[*app.BlockchainService]("blockchain.BlockchainService")
)

// Private dependency tokens - internal to blockchain module
var (
	NodeReader = di.NewToken[app.NodeReader]("blockchain:nodeReader")
)

// GetBlockchainService returns the node-facing service.
func GetBlockchainService(c di.ServiceRegistry) *app.BlockchainService {
	return di.GetToken(c, BlockchainService)
}

// GetNodeReader returns the node adapter.
func GetNodeReader(c di.ServiceRegistry) app.NodeReader {
	return di.GetToken(c, NodeReader)
}
