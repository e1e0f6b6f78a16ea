package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fd1az/mordor-monitor/internal/apperror"
	"github.com/fd1az/mordor-monitor/internal/httpclient"
)

// probeResult is one line of the health report.
type probeResult struct {
	OK     bool
	Status string // set when the service answered with an error
	Err    error  // set when the service could not be reached
}

type probe struct {
	name  string
	check func(ctx context.Context) probeResult
}

func httpProbe(client *httpclient.Client, url string) func(context.Context) probeResult {
	return func(ctx context.Context) probeResult {
		resp, err := client.Get(ctx, url)
		if err != nil {
			return probeResult{Err: err}
		}
		if !resp.IsSuccess() {
			return probeResult{Status: resp.Status}
		}
		return probeResult{OK: true}
	}
}

// runProbes prints one line per probe and reports whether all passed.
func runProbes(ctx context.Context, w io.Writer, probes []probe) bool {
	healthy := true
	for _, p := range probes {
		fmt.Fprintf(w, "  %s ... ", p.name)
		r := p.check(ctx)
		switch {
		case r.OK:
			fmt.Fprintln(w, okStyle.Render("✓ OK"))
		case r.Err != nil:
			healthy = false
			fmt.Fprintln(w, failStyle.Render(fmt.Sprintf("✗ UNREACHABLE (%v)", r.Err)))
		default:
			healthy = false
			fmt.Fprintln(w, failStyle.Render(fmt.Sprintf("✗ ERROR (%s)", r.Status)))
		}
	}
	return healthy
}

func (c *cli) nodeProbe(ctx context.Context) probeResult {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CLI.Timeout)
	defer cancel()

	svc, closeNode, err := c.node(ctx)
	if err != nil {
		return probeResult{Err: err}
	}
	defer closeNode()

	err = svc.CheckReachable(ctx)
	switch {
	case err == nil:
		return probeResult{OK: true}
	case apperror.IsCode(err, apperror.CodeNodeSyncing):
		return probeResult{Status: "syncing"}
	default:
		return probeResult{Err: err}
	}
}

func (c *cli) health(ctx context.Context, _ []string) error {
	heading(c.out, "Checking Container Health", 50)

	client, err := c.apiClient("health", apperror.CodeServiceUnavailable)
	if err != nil {
		return err
	}

	metricsBase := strings.TrimSuffix(strings.TrimSuffix(c.cfg.CLI.MetricsURL, "/"), "/metrics")
	probes := []probe{
		{name: "Mordor Node RPC", check: c.nodeProbe},
		{name: "Fork Monitor API", check: httpProbe(client, "/health")},
		{name: "Metrics Endpoint", check: httpProbe(client, metricsBase+"/health")},
		{name: "Prometheus", check: httpProbe(client, strings.TrimSuffix(c.cfg.CLI.PrometheusURL, "/")+"/-/healthy")},
		{name: "Grafana", check: httpProbe(client, strings.TrimSuffix(c.cfg.CLI.GrafanaURL, "/")+"/api/health")},
	}

	if !runProbes(ctx, c.out, probes) {
		return errUnhealthy
	}
	return nil
}
