// Package gas implements the gas price oracle bounded context.
package gas

import (
	"context"

	"github.com/fd1az/mordor-monitor/business/gas/app"
	gasDI "github.com/fd1az/mordor-monitor/business/gas/di"
	"github.com/fd1az/mordor-monitor/internal/config"
	"github.com/fd1az/mordor-monitor/internal/di"
	"github.com/fd1az/mordor-monitor/internal/monolith"
)

// Module implements the gas bounded context.
type Module struct{}

// RegisterServices registers the oracle.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, gasDI.Oracle, func(sr di.ServiceRegistry) *app.Oracle {
		cfg := sr.Get("config").(*config.Config)
		return app.NewOracle(cfg.Gas.WindowSize)
	})
	return nil
}

func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	mono.Logger().Info(ctx, "gas module started", "window_size", mono.Config().Gas.WindowSize)
	return nil
}
