package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Kind selects the Prometheus collector a Spec is registered as.
type Kind int

const (
	Gauge Kind = iota
	Counter
	Histogram
)

// Spec describes one named metric.
type Spec struct {
	Name    string
	Help    string
	Kind    Kind
	Buckets []float64 // histograms only; nil means prometheus.DefBuckets
}

// PrometheusSink records values into a fixed set of collectors on its own
// registry. Unknown names and wrong-kind calls are counted and dropped.
type PrometheusSink struct {
	gauges     map[string]prometheus.Gauge
	counters   map[string]prometheus.Counter
	histograms map[string]prometheus.Histogram

	mu      sync.Mutex
	dropped map[string]int
}

// NewPrometheusSink registers every spec under namespace in reg.
func NewPrometheusSink(namespace string, reg prometheus.Registerer, specs []Spec) (*PrometheusSink, error) {
	s := &PrometheusSink{
		gauges:     make(map[string]prometheus.Gauge),
		counters:   make(map[string]prometheus.Counter),
		histograms: make(map[string]prometheus.Histogram),
		dropped:    make(map[string]int),
	}

	for _, spec := range specs {
		var c prometheus.Collector
		switch spec.Kind {
		case Gauge:
			g := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: spec.Name, Help: spec.Help})
			s.gauges[spec.Name] = g
			c = g
		case Counter:
			ctr := prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: spec.Name, Help: spec.Help})
			s.counters[spec.Name] = ctr
			c = ctr
		case Histogram:
			h := prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      spec.Name,
				Help:      spec.Help,
				Buckets:   spec.Buckets,
			})
			s.histograms[spec.Name] = h
			c = h
		}
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *PrometheusSink) SetGauge(name string, value float64) {
	if g, ok := s.gauges[name]; ok {
		g.Set(value)
		return
	}
	s.drop(name)
}

// AddCounter ignores negative deltas, which Prometheus counters reject.
func (s *PrometheusSink) AddCounter(name string, delta float64) {
	if c, ok := s.counters[name]; ok && delta >= 0 {
		c.Add(delta)
		return
	}
	s.drop(name)
}

func (s *PrometheusSink) Observe(name string, value float64) {
	if h, ok := s.histograms[name]; ok {
		h.Observe(value)
		return
	}
	s.drop(name)
}

// Dropped reports how many writes to name were discarded.
func (s *PrometheusSink) Dropped(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped[name]
}

func (s *PrometheusSink) drop(name string) {
	s.mu.Lock()
	s.dropped[name]++
	s.mu.Unlock()
}
