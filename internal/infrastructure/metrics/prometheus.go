// Package metrics adapts ports.MetricsCollector onto Prometheus.
package metrics

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alexisbeaulieu97/actionflow/internal/ports"
)

// DurationBuckets are the histogram buckets used for *_seconds metrics.
var DurationBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// Collector creates Prometheus vectors on first use. A metric name is bound
// to the label names it was first recorded with; later calls with a different
// label set are dropped and logged.
type Collector struct {
	registry *prometheus.Registry
	logger   ports.Logger

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// Option configures a Collector.
type Option func(*Collector)

// WithRegistry records into an existing registry instead of a fresh one.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(c *Collector) {
		c.registry = registry
	}
}

// WithLogger reports dropped samples.
func WithLogger(logger ports.Logger) Option {
	return func(c *Collector) {
		c.logger = logger
	}
}

// New creates a collector.
func New(opts ...Option) *Collector {
	c := &Collector{
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = prometheus.NewRegistry()
	}
	return c
}

// Registry exposes the underlying registry, e.g. for promhttp.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// IncCounter implements ports.MetricsCollector.
func (c *Collector) IncCounter(ctx context.Context, name string, labels map[string]string) {
	c.mu.Lock()
	vec, ok := c.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help(name)}, labelKeys(labels))
		if !c.register(ctx, name, vec) {
			c.mu.Unlock()
			return
		}
		c.counters[name] = vec
	}
	c.mu.Unlock()

	if counter, err := vec.GetMetricWith(prometheus.Labels(labels)); err == nil {
		counter.Inc()
	} else {
		c.drop(ctx, name, err)
	}
}

// SetGauge implements ports.MetricsCollector.
func (c *Collector) SetGauge(ctx context.Context, name string, value float64, labels map[string]string) {
	c.mu.Lock()
	vec, ok := c.gauges[name]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help(name)}, labelKeys(labels))
		if !c.register(ctx, name, vec) {
			c.mu.Unlock()
			return
		}
		c.gauges[name] = vec
	}
	c.mu.Unlock()

	if gauge, err := vec.GetMetricWith(prometheus.Labels(labels)); err == nil {
		gauge.Set(value)
	} else {
		c.drop(ctx, name, err)
	}
}

// ObserveHistogram implements ports.MetricsCollector.
func (c *Collector) ObserveHistogram(ctx context.Context, name string, value float64, labels map[string]string) {
	c.mu.Lock()
	vec, ok := c.histograms[name]
	if !ok {
		opts := prometheus.HistogramOpts{Name: name, Help: help(name)}
		if strings.HasSuffix(name, "_seconds") {
			opts.Buckets = DurationBuckets
		}
		vec = prometheus.NewHistogramVec(opts, labelKeys(labels))
		if !c.register(ctx, name, vec) {
			c.mu.Unlock()
			return
		}
		c.histograms[name] = vec
	}
	c.mu.Unlock()

	if hist, err := vec.GetMetricWith(prometheus.Labels(labels)); err == nil {
		hist.Observe(value)
	} else {
		c.drop(ctx, name, err)
	}
}

// register must be called with c.mu held.
func (c *Collector) register(ctx context.Context, name string, collector prometheus.Collector) bool {
	if err := c.registry.Register(collector); err != nil {
		c.drop(ctx, name, err)
		return false
	}
	return true
}

func (c *Collector) drop(ctx context.Context, name string, err error) {
	if c.logger != nil {
		c.logger.Warn(ctx, "metric sample dropped", "metric", name, "error", err)
	}
}

func labelKeys(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func help(name string) string {
	return strings.ReplaceAll(strings.TrimPrefix(name, "actionflow_"), "_", " ")
}
