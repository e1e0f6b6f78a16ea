package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var testSpecs = []Spec{
	{Name: "block_height", Help: "tip", Kind: Gauge},
	{Name: "fork_total", Help: "reorgs", Kind: Counter},
	{Name: "fork_depth", Help: "depth", Kind: Histogram, Buckets: []float64{1, 2, 4}},
}

func newTestSink(t *testing.T) (*PrometheusSink, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	s, err := NewPrometheusSink("etc_mordor", reg, testSpecs)
	if err != nil {
		t.Fatalf("NewPrometheusSink() error = %v", err)
	}
	return s, reg
}

func TestPrometheusSink_Writes(t *testing.T) {
	s, reg := newTestSink(t)

	s.SetGauge("block_height", 100)
	s.SetGauge("block_height", 101)
	s.AddCounter("fork_total", 1)
	s.AddCounter("fork_total", 2)
	s.Observe("fork_depth", 3)

	if got := testutil.ToFloat64(s.gauges["block_height"]); got != 101 {
		t.Errorf("block_height = %v, want 101", got)
	}
	if got := testutil.ToFloat64(s.counters["fork_total"]); got != 3 {
		t.Errorf("fork_total = %v, want 3", got)
	}

	want := `
# HELP etc_mordor_fork_depth depth
# TYPE etc_mordor_fork_depth histogram
etc_mordor_fork_depth_bucket{le="1"} 0
etc_mordor_fork_depth_bucket{le="2"} 0
etc_mordor_fork_depth_bucket{le="4"} 1
etc_mordor_fork_depth_bucket{le="+Inf"} 1
etc_mordor_fork_depth_sum 3
etc_mordor_fork_depth_count 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "etc_mordor_fork_depth"); err != nil {
		t.Error(err)
	}
}

func TestPrometheusSink_DropsUnknownAndWrongKind(t *testing.T) {
	s, _ := newTestSink(t)

	s.SetGauge("nope", 1)
	s.Observe("block_height", 1)
	s.AddCounter("fork_total", -1)

	if s.Dropped("nope") != 1 || s.Dropped("block_height") != 1 || s.Dropped("fork_total") != 1 {
		t.Errorf("dropped = %v", s.dropped)
	}
	if got := testutil.ToFloat64(s.counters["fork_total"]); got != 0 {
		t.Errorf("fork_total = %v, want 0", got)
	}
}

func TestPrometheusSink_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPrometheusSink("etc_mordor", reg, testSpecs); err != nil {
		t.Fatal(err)
	}
	if _, err := NewPrometheusSink("etc_mordor", reg, testSpecs); err == nil {
		t.Error("second registration should fail")
	}
}

func TestNewServer_ServesMetrics(t *testing.T) {
	s, reg := newTestSink(t)
	s.SetGauge("block_height", 42)

	_, mux := NewServer(0, reg)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), "etc_mordor_block_height 42") {
		t.Errorf("body missing gauge:\n%s", body)
	}
}
