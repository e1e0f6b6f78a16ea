package main

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	gasDomain "github.com/fd1az/mordor-monitor/business/gas/domain"
	"github.com/fd1az/mordor-monitor/business/monitor/domain"
	"github.com/fd1az/mordor-monitor/internal/apperror"
)

type tier struct {
	name  string
	price domain.Price
}

// gasReport is what the gas command prints, from either source.
type gasReport struct {
	source      string
	status      gasDomain.Status
	samples     int
	tiers       []tier
	utilization decimal.Decimal
}

func reportFromAPI(r domain.RecommendationView) gasReport {
	rep := gasReport{
		source:      "monitor API",
		status:      r.Status,
		samples:     r.Samples,
		utilization: r.AvgUtilization,
	}
	if r.Status == gasDomain.StatusOK && r.Standard != nil {
		rep.tiers = []tier{
			{"Slow", *r.Slow},
			{"Standard", *r.Standard},
			{"Fast", *r.Fast},
			{"Instant", *r.Instant},
		}
	}
	return rep
}

// reportFromMetrics maps the latest block's distribution onto tiers the
// way the metrics endpoint exposes it: min, median, p75 and max.
func reportFromMetrics(samples []sample, namespace string) gasReport {
	m := sampleMap(samples)
	price := func(name string) domain.Price {
		wei := decimal.NewFromFloat(m[namespace+"_"+name])
		return domain.Price{Wei: wei.StringFixed(0), Gwei: wei.Shift(-9)}
	}
	return gasReport{
		source: "metrics endpoint",
		status: gasDomain.StatusOK,
		tiers: []tier{
			{"Slow", price("gas_price_min_wei")},
			{"Standard", price("gas_price_median_wei")},
			{"Fast", price("gas_price_p75_wei")},
			{"Instant", price("gas_price_max_wei")},
		},
		utilization: decimal.NewFromFloat(m[namespace+"_gas_utilization_percent"]),
	}
}

func (c *cli) printGas(rep gasReport) {
	heading(c.out, "Gas Price Recommendations", 50)
	fmt.Fprintln(c.out, keyStyle.Render("  source: "+rep.source))

	if len(rep.tiers) == 0 {
		fmt.Fprintf(c.out, "\n  %s (%d samples)\n", failStyle.Render(string(rep.status)), rep.samples)
		return
	}

	fmt.Fprintln(c.out)
	for _, t := range rep.tiers {
		fmt.Fprintf(c.out, "  %s: %s wei (%s Gwei)\n",
			valueStyle.Render(t.name), t.price.Wei, t.price.Gwei.StringFixed(2))
	}
	fmt.Fprintf(c.out, "\n  Network Utilization: %s%%\n", rep.utilization.StringFixed(2))
}

func (c *cli) gas(ctx context.Context, _ []string) error {
	client, err := c.apiClient("monitor-api", apperror.CodeMonitorAPIError)
	if err != nil {
		return err
	}

	var rec domain.RecommendationView
	apiErr := client.GetJSON(ctx, "/api/gas", &rec)
	if apiErr == nil {
		c.printGas(reportFromAPI(rec))
		return nil
	}
	c.log.Warn(ctx, "monitor API unavailable, falling back to metrics", "error", apiErr)

	samples, err := c.scrape(ctx, metricsURL(c.cfg.CLI.MetricsURL))
	if err != nil {
		return fmt.Errorf("%w (monitor API: %v)", err, apiErr)
	}
	c.printGas(reportFromMetrics(samples, c.cfg.Metrics.Namespace))
	return nil
}
