// Package chain implements the fork-tracking bounded context.
package chain

import (
	"context"

	"github.com/fd1az/mordor-monitor/business/chain/app"
	chainDI "github.com/fd1az/mordor-monitor/business/chain/di"
	"github.com/fd1az/mordor-monitor/internal/config"
	"github.com/fd1az/mordor-monitor/internal/di"
	"github.com/fd1az/mordor-monitor/internal/monolith"
)

// Module implements the chain bounded context.
type Module struct{}

// RegisterServices registers the fork detector.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, chainDI.ForkDetector, func(sr di.ServiceRegistry) *app.ForkDetector {
		cfg := sr.Get("config").(*config.Config)

		return app.NewForkDetector(app.DetectorConfig{
			RetentionWindow: cfg.Fork.RetentionWindow,
			MaxBranches:     cfg.Fork.MaxBranches,
			HistorySize:     cfg.Fork.HistorySize,
			ResolveDepth:    uint64(cfg.Fork.ResolveDepth),
		})
	})
	return nil
}

// Startup has nothing to connect; state starts empty.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cfg := mono.Config().Fork
	mono.Logger().Info(ctx, "chain module started",
		"retention_window", cfg.RetentionWindow,
		"max_branches", cfg.MaxBranches,
		"resolve_depth", cfg.ResolveDepth)
	return nil
}
