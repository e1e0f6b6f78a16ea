// Package blockchain implements the node-facing bounded context.
package blockchain

import (
	"context"

	"github.com/fd1az/mordor-monitor/business/blockchain/app"
	blockchainDI "github.com/fd1az/mordor-monitor/business/blockchain/di"
	"github.com/fd1az/mordor-monitor/business/blockchain/infra/ethereum"
	"github.com/fd1az/mordor-monitor/internal/config"
	"github.com/fd1az/mordor-monitor/internal/di"
	"github.com/fd1az/mordor-monitor/internal/logger"
	"github.com/fd1az/mordor-monitor/internal/monolith"
)

// Module implements the blockchain bounded context.
type Module struct{}

// RegisterServices registers all blockchain services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register NodeReader (private - internal dependency)
	di.RegisterToken(c, blockchainDI.NodeReader, func(sr di.ServiceRegistry) app.NodeReader {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		srcCfg := ethereum.DefaultSourceConfig(cfg.Node.RPCURL)
		if cfg.Node.RequestTimeout > 0 {
			srcCfg.RequestTimeout = cfg.Node.RequestTimeout
		}
		srcCfg.RequestsPerSecond = cfg.Node.RequestsPerSecond
		if cfg.Node.Burst > 0 {
			srcCfg.Burst = cfg.Node.Burst
		}
		if cfg.Node.BlockCacheTTL > 0 {
			srcCfg.CacheTTL = cfg.Node.BlockCacheTTL
		}

		src, err := ethereum.NewSource(srcCfg, log)
		if err != nil {
			panic("failed to create block source: " + err.Error())
		}
		return src
	})

	// Register BlockchainService (public - exposed to other modules)
	di.RegisterToken(c, blockchainDI.BlockchainService, func(sr di.ServiceRegistry) *app.BlockchainService {
		return app.NewBlockchainService(blockchainDI.GetNodeReader(sr))
	})

	return nil
}

// Startup dials the node. A failed dial is logged, not fatal: the source
// redials on the next call.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	node := blockchainDI.GetNodeReader(mono.Services())
	if connector, ok := node.(interface{ Connect(context.Context) error }); ok {
		if err := connector.Connect(ctx); err != nil {
			log.Warn(ctx, "node not reachable at startup", "error", err)
		}
	}
	if closer, ok := node.(interface{ Close() error }); ok {
		mono.OnClose(closer.Close)
	}

	log.Info(ctx, "blockchain module started", "rpc_url", mono.Config().Node.RPCURL)
	return nil
}
