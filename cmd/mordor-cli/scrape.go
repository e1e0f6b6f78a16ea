package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/fd1az/mordor-monitor/internal/apperror"
	"github.com/fd1az/mordor-monitor/internal/httpclient"
)

// services the original deployment split across two exporters; the daemon
// serves both from one endpoint.
var services = map[string]bool{
	"fork-monitor":  true,
	"gas-estimator": true,
}

// sample is one flattened exposition line.
type sample struct {
	Name   string
	Labels string
	Value  float64
}

func (c *cli) apiClient(name string, code apperror.Code) (*httpclient.Client, error) {
	return httpclient.New(
		httpclient.WithBaseURL(c.cfg.CLI.MonitorURL),
		httpclient.WithProviderName(name),
		httpclient.WithRequestTimeout(c.cfg.CLI.Timeout),
		httpclient.WithErrorCode(code),
	)
}

// scrape fetches and parses a Prometheus endpoint.
func (c *cli) scrape(ctx context.Context, url string) ([]sample, error) {
	client, err := c.apiClient("metrics", apperror.CodeMetricsScrapeFailed)
	if err != nil {
		return nil, err
	}

	resp, err := client.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, apperror.New(apperror.CodeMetricsScrapeFailed,
			apperror.WithContext(fmt.Sprintf("GET %s: %s", url, resp.Status)))
	}

	samples, err := parseMetrics(resp.Body, resp.Header)
	if err != nil {
		return nil, apperror.New(apperror.CodeMetricsScrapeFailed, apperror.WithCause(err), apperror.WithContext(url))
	}
	return samples, nil
}

// parseMetrics flattens every family into samples, families sorted by
// name. Histograms and summaries contribute their _sum and _count.
func parseMetrics(body []byte, header http.Header) ([]sample, error) {
	dec := expfmt.NewDecoder(bytes.NewReader(body), expfmt.ResponseFormat(header))

	var families []*dto.MetricFamily
	for {
		mf := &dto.MetricFamily{}
		if err := dec.Decode(mf); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		families = append(families, mf)
	}
	slices.SortFunc(families, func(a, b *dto.MetricFamily) int {
		return strings.Compare(a.GetName(), b.GetName())
	})

	var out []sample
	for _, mf := range families {
		name := mf.GetName()
		for _, m := range mf.GetMetric() {
			labels := formatLabels(m.GetLabel())
			add := func(suffix string, v float64) {
				out = append(out, sample{Name: name + suffix, Labels: labels, Value: v})
			}

			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				add("", m.GetCounter().GetValue())
			case dto.MetricType_GAUGE:
				add("", m.GetGauge().GetValue())
			case dto.MetricType_HISTOGRAM:
				add("_sum", m.GetHistogram().GetSampleSum())
				add("_count", float64(m.GetHistogram().GetSampleCount()))
			case dto.MetricType_SUMMARY:
				add("_sum", m.GetSummary().GetSampleSum())
				add("_count", float64(m.GetSummary().GetSampleCount()))
			default:
				add("", m.GetUntyped().GetValue())
			}
		}
	}
	return out, nil
}

func formatLabels(pairs []*dto.LabelPair) string {
	if len(pairs) == 0 {
		return ""
	}
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = fmt.Sprintf("%s=%q", p.GetName(), p.GetValue())
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// sampleMap indexes unlabelled samples by name.
func sampleMap(samples []sample) map[string]float64 {
	m := make(map[string]float64, len(samples))
	for _, s := range samples {
		if s.Labels == "" {
			m[s.Name] = s.Value
		}
	}
	return m
}

// displayName strips the namespace and spaces out underscores.
func displayName(name, namespace string) string {
	return strings.ReplaceAll(strings.TrimPrefix(name, namespace+"_"), "_", " ")
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// metricsURL accepts a base URL or a full /metrics URL.
func metricsURL(endpoint string) string {
	endpoint = strings.TrimSuffix(endpoint, "/")
	if strings.HasSuffix(endpoint, "/metrics") {
		return endpoint
	}
	return endpoint + "/metrics"
}

func (c *cli) metrics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("metrics", flag.ContinueOnError)
	service := fs.String("service", "fork-monitor", "Service: fork-monitor or gas-estimator")
	endpoint := fs.String("endpoint", c.cfg.CLI.MetricsURL, "Metrics endpoint")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !services[*service] {
		return apperror.Validation(apperror.CodeInvalidInput,
			fmt.Sprintf("unknown service %q, use 'fork-monitor' or 'gas-estimator'", *service))
	}

	samples, err := c.scrape(ctx, metricsURL(*endpoint))
	if err != nil {
		return err
	}

	heading(c.out, "Metrics from "+*service, 70)
	prefix := c.cfg.Metrics.Namespace + "_"
	for _, s := range samples {
		if !strings.HasPrefix(s.Name, prefix) {
			continue
		}
		fmt.Fprintf(c.out, "  %s%s: %s\n",
			keyStyle.Render(displayName(s.Name, c.cfg.Metrics.Namespace)), s.Labels,
			valueStyle.Render(formatValue(s.Value)))
	}
	return nil
}
