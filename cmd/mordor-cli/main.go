// Package main is the entry point for mordor-cli, a terminal client for the
// Mordor testnet node and the fork monitor daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/fd1az/mordor-monitor/internal/config"
	"github.com/fd1az/mordor-monitor/internal/logger"
)

var version = "dev"

const usage = `mordor-cli - CLI tool for monitoring Mordor testnet

Usage:
  mordor-cli [global flags] <command> [flags]

Commands:
  status                 Show node status
  block [n|latest]       Show a block and its first transactions
  monitor [-interval]    Live dashboard from the monitor stream
  metrics [-service]     Print etc_mordor_* metrics
  health                 Check the node, the monitor and the observability stack
  gas                    Show gas price recommendations

Global flags:
`

// errUnhealthy makes health exit non-zero without printing twice.
var errUnhealthy = errors.New("one or more services are unhealthy")

type command func(ctx context.Context, args []string) error

// cli holds what every command shares.
type cli struct {
	cfg *config.Config
	log logger.LoggerInterface
	out io.Writer
}

func main() {
	_ = godotenv.Load()

	global := flag.NewFlagSet("mordor-cli", flag.ExitOnError)
	configPath := global.String("config", "", "Path to configuration file")
	rpcURL := global.String("rpc-url", "", "Node JSON-RPC URL (overrides node.rpc_url)")
	monitorURL := global.String("monitor-url", "", "Monitor API base URL (overrides cli.monitor_url)")
	logLevel := global.String("log-level", "warn", "Log level for diagnostics on stderr")
	showVersion := global.Bool("version", false, "Show version information")
	global.Usage = func() {
		fmt.Fprint(global.Output(), usage)
		global.PrintDefaults()
	}
	_ = global.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("mordor-cli %s\n", version)
		return
	}
	if global.NArg() == 0 {
		global.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *rpcURL != "" {
		cfg.Node.RPCURL = *rpcURL
	}
	if *monitorURL != "" {
		cfg.CLI.MonitorURL = *monitorURL
	}

	c := &cli{
		cfg: cfg,
		log: logger.New(os.Stderr, logger.ParseLevel(*logLevel), "mordor-cli", nil),
		out: os.Stdout,
	}

	commands := map[string]command{
		"status":  c.status,
		"block":   c.block,
		"monitor": c.monitor,
		"metrics": c.metrics,
		"health":  c.health,
		"gas":     c.gas,
	}

	name, args := global.Arg(0), global.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		global.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd(ctx, args); err != nil {
		if !errors.Is(err, errUnhealthy) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}
