// Package monitor drives the poll loop and serves what the fork detector and
// gas oracle know.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	blockchainDI "github.com/fd1az/mordor-monitor/business/blockchain/di"
	chainDI "github.com/fd1az/mordor-monitor/business/chain/di"
	gasDI "github.com/fd1az/mordor-monitor/business/gas/di"
	"github.com/fd1az/mordor-monitor/business/monitor/app"
	monitorDI "github.com/fd1az/mordor-monitor/business/monitor/di"
	"github.com/fd1az/mordor-monitor/business/monitor/domain"
	"github.com/fd1az/mordor-monitor/business/monitor/infra/httpapi"
	"github.com/fd1az/mordor-monitor/internal/config"
	"github.com/fd1az/mordor-monitor/internal/di"
	"github.com/fd1az/mordor-monitor/internal/health"
	"github.com/fd1az/mordor-monitor/internal/logger"
	"github.com/fd1az/mordor-monitor/internal/metrics"
	"github.com/fd1az/mordor-monitor/internal/monolith"
)

// Module implements the monitor bounded context. It expects "metricsRegistry"
// (prometheus.Registerer) and "health" (*health.Handler) in the container.
type Module struct{}

// RegisterServices registers all monitor services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, monitorDI.PollState, func(sr di.ServiceRegistry) *app.PollState {
		return app.NewPollState()
	})

	di.RegisterToken(c, monitorDI.MetricsSink, func(sr di.ServiceRegistry) app.MetricsSink {
		cfg := sr.Get("config").(*config.Config)
		reg := sr.Get("metricsRegistry").(prometheus.Registerer)

		sink, err := metrics.NewPrometheusSink(cfg.Metrics.Namespace, reg, app.MetricSpecs())
		if err != nil {
			panic("failed to register metrics: " + err.Error())
		}
		return sink
	})

	di.RegisterToken(c, monitorDI.QueryService, func(sr di.ServiceRegistry) *app.QueryService {
		return app.NewQueryService(
			chainDI.GetForkDetector(sr),
			gasDI.GetOracle(sr),
			monitorDI.GetPollState(sr),
			blockchainDI.GetBlockchainService(sr),
		)
	})

	di.RegisterToken(c, monitorDI.Hub, func(sr di.ServiceRegistry) *httpapi.Hub {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		query := monitorDI.GetQueryService(sr)

		return httpapi.NewHub(cfg.API.StreamBuffer, func() domain.Event {
			st := query.Status()
			return domain.Event{Type: domain.EventTick, Status: &st, At: time.Now()}
		}, log)
	})

	di.RegisterToken(c, monitorDI.Poller, func(sr di.ServiceRegistry) *app.Poller {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		p, err := app.NewPoller(
			app.PollerConfig{
				Interval:       cfg.Node.PollInterval(),
				MaxRetries:     cfg.Node.MaxRetries,
				InitialBackoff: cfg.Node.InitialBackoff,
				MaxBackoff:     cfg.Node.MaxBackoff,
				BackfillLimit:  cfg.Node.BackfillLimit,
				ReanchorLag:    cfg.Fork.RetentionWindow,
			},
			blockchainDI.GetBlockchainService(sr).Source(),
			monitorDI.GetQueryService(sr),
			monitorDI.GetMetricsSink(sr),
			monitorDI.GetHub(sr),
			log,
		)
		if err != nil {
			panic("failed to create poller: " + err.Error())
		}
		return p
	})

	di.RegisterToken(c, monitorDI.APIHandler, func(sr di.ServiceRegistry) *httpapi.Handler {
		log := sr.Get("logger").(logger.LoggerInterface)
		return httpapi.NewHandler(monitorDI.GetQueryService(sr), monitorDI.GetHub(sr), log)
	})

	return nil
}

// Startup registers health checks. The poll loop and servers are run by the
// caller so they share its lifecycle.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	sr := mono.Services()
	cfg := mono.Config()
	checks := sr.Get("health").(*health.Handler)

	node := blockchainDI.GetBlockchainService(sr)
	query := monitorDI.GetQueryService(sr)
	stale := 3 * cfg.Node.PollInterval()

	checks.RegisterCheck("node", func(ctx context.Context) (bool, string) {
		if _, err := node.Source().IsSyncing(ctx); err != nil {
			return false, err.Error()
		}
		return true, string(node.ConnectionState())
	})
	checks.RegisterInfoCheck("node_synced", func(ctx context.Context) (bool, string) {
		if err := node.CheckReachable(ctx); err != nil {
			return false, err.Error()
		}
		return true, ""
	})
	checks.RegisterCheck("poller", func(ctx context.Context) (bool, string) {
		st := query.PollStatus()
		if st.LastOK.IsZero() {
			return false, "no successful poll yet"
		}
		if age := time.Since(st.LastOK); age > stale {
			return false, fmt.Sprintf("last successful poll %s ago", age.Round(time.Second))
		}
		return true, fmt.Sprintf("head #%d", st.Head)
	})

	mono.OnClose(func() error {
		monitorDI.GetHub(sr).Close()
		return nil
	})

	mono.Logger().Info(ctx, "monitor module started",
		"poll_interval", cfg.Node.PollInterval().String(),
		"api_port", cfg.API.Port,
		"metrics_port", cfg.Metrics.Port)
	return nil
}
