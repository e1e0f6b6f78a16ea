// Package main is the entry point for the Mordor fork and gas monitor daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/mordor-monitor/business/blockchain"
	"github.com/fd1az/mordor-monitor/business/chain"
	"github.com/fd1az/mordor-monitor/business/gas"
	"github.com/fd1az/mordor-monitor/business/monitor"
	monitorDI "github.com/fd1az/mordor-monitor/business/monitor/di"
	"github.com/fd1az/mordor-monitor/business/monitor/infra/httpapi"
	"github.com/fd1az/mordor-monitor/internal/apm"
	"github.com/fd1az/mordor-monitor/internal/config"
	"github.com/fd1az/mordor-monitor/internal/health"
	"github.com/fd1az/mordor-monitor/internal/logger"
	"github.com/fd1az/mordor-monitor/internal/metrics"
	"github.com/fd1az/mordor-monitor/internal/monolith"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

const shutdownTimeout = 5 * time.Second

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("fork-monitor %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(os.Stderr, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, nil)
	log.Info(ctx, "starting Mordor monitor",
		"version", version,
		"environment", cfg.App.Environment,
		"rpc_url", cfg.Node.RPCURL,
		"poll_interval", cfg.Node.PollInterval().String(),
	)

	// Tracing
	traceProvider := apm.NewEmptyTraceProvider()
	if cfg.Telemetry.Enabled {
		endpoint := cfg.Telemetry.OTLPEndpoint
		if apm.Provider(cfg.Telemetry.TraceProvider) == apm.ZipkinProvider {
			endpoint = cfg.Telemetry.ZipkinURL
		}
		traceProvider = apm.NewTraceProvider(apm.TraceConfig{
			Provider:    apm.Provider(cfg.Telemetry.TraceProvider),
			ServiceName: cfg.Telemetry.ServiceName,
			Endpoint:    endpoint,
			Insecure:    true,
		}, log)
	}
	defer func() {
		if err := traceProvider.Stop(); err != nil {
			log.Warn(ctx, "trace provider shutdown", "error", err)
		}
	}()

	// Metrics: one private registry for the exported set, the OTEL
	// instruments and the runtime collectors.
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	metricOpts := []metrics.OptionFn{
		metrics.WithServiceName(cfg.Telemetry.ServiceName),
		metrics.WithProviderConfig(metrics.NewPrometheusConfig(reg)),
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.OTLPMetrics {
		metricOpts = append(metricOpts, metrics.WithProviderConfig(
			metrics.NewOtelCollectorConfig(cfg.Telemetry.OTLPEndpoint, nil, metrics.InsecureOtel)))
	}
	meterProvider, err := metrics.NewMetricProvider(metricOpts...)
	if err != nil {
		return fmt.Errorf("failed to init metrics: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = meterProvider.Shutdown(sctx)
	}()

	checks := health.New(version)

	// Create monolith (application container)
	mono := monolith.New(cfg, log)
	defer func() {
		if err := mono.Close(); err != nil {
			log.Warn(ctx, "shutdown", "error", err)
		}
	}()
	mono.Container().Register("metricsRegistry", reg)
	mono.Container().Register("health", checks)

	// Define modules in dependency order
	modules := []monolith.Module{
		&blockchain.Module{}, // node access
		&chain.Module{},      // fork detector
		&gas.Module{},        // gas oracle
		&monitor.Module{},    // poll loop, API, stream; depends on all of the above
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}
	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}

	poller := monitorDI.GetPoller(mono.Services())

	apiMux := http.NewServeMux()
	monitorDI.GetAPIHandler(mono.Services()).Mount(apiMux)
	checks.Mount(apiMux)
	apiServer := httpapi.NewServer(cfg.API.Port, apiMux)

	metricsServer, metricsMux := metrics.NewServer(cfg.Metrics.Port, reg)
	checks.Mount(metricsMux)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return poller.Run(gctx)
	})
	g.Go(func() error {
		log.Info(gctx, "api server listening", "addr", apiServer.Addr)
		return listen(apiServer)
	})
	g.Go(func() error {
		log.Info(gctx, "metrics server listening", "addr", metricsServer.Addr)
		return listen(metricsServer)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(ctx, "shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(apiServer.Shutdown(sctx), metricsServer.Shutdown(sctx))
	})

	return g.Wait()
}

func listen(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", srv.Addr, err)
	}
	return nil
}
