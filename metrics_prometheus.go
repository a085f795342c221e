package mqttwire

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// PrometheusMetrics exports instruments through a Prometheus registerer.
// A vector is registered the first time a name is seen; the label names of
// that first call fix the vector's label set.
type PrometheusMetrics struct {
	factory promauto.Factory

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// NewPrometheusMetrics registers instruments with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &PrometheusMetrics{
		factory:    promauto.With(reg),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

func labelNames(labels MetricLabels) []string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

func help(name string) string {
	return strings.ReplaceAll(strings.TrimPrefix(name, "mqttwire_"), "_", " ")
}

// Counter returns a counter metric.
func (m *PrometheusMetrics) Counter(name string, labels MetricLabels) Counter {
	m.mu.Lock()
	vec, ok := m.counters[name]
	if !ok {
		vec = m.factory.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help(name)}, labelNames(labels))
		m.counters[name] = vec
	}
	m.mu.Unlock()

	return promCounter{vec.With(prometheus.Labels(labels))}
}

// Gauge returns a gauge metric.
func (m *PrometheusMetrics) Gauge(name string, labels MetricLabels) Gauge {
	m.mu.Lock()
	vec, ok := m.gauges[name]
	if !ok {
		vec = m.factory.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help(name)}, labelNames(labels))
		m.gauges[name] = vec
	}
	m.mu.Unlock()

	return promGauge{vec.With(prometheus.Labels(labels))}
}

// Histogram returns a histogram metric with the default buckets.
func (m *PrometheusMetrics) Histogram(name string, labels MetricLabels) Histogram {
	m.mu.Lock()
	vec, ok := m.histograms[name]
	if !ok {
		vec = m.factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name,
			Help:    help(name),
			Buckets: prometheus.DefBuckets,
		}, labelNames(labels))
		m.histograms[name] = vec
	}
	m.mu.Unlock()

	return promHistogram{vec.With(prometheus.Labels(labels)).(prometheus.Histogram)}
}

func readMetric(c prometheus.Metric) *dto.Metric {
	var out dto.Metric
	if err := c.Write(&out); err != nil {
		return &dto.Metric{}
	}
	return &out
}

type promCounter struct {
	c prometheus.Counter
}

func (p promCounter) Inc()              { p.c.Inc() }
func (p promCounter) Add(delta float64) { p.c.Add(delta) }
func (p promCounter) Value() float64    { return readMetric(p.c).GetCounter().GetValue() }

type promGauge struct {
	g prometheus.Gauge
}

func (p promGauge) Set(value float64) { p.g.Set(value) }
func (p promGauge) Inc()              { p.g.Inc() }
func (p promGauge) Dec()              { p.g.Dec() }
func (p promGauge) Add(delta float64) { p.g.Add(delta) }
func (p promGauge) Sub(delta float64) { p.g.Sub(delta) }
func (p promGauge) Value() float64    { return readMetric(p.g).GetGauge().GetValue() }

type promHistogram struct {
	h prometheus.Histogram
}

func (p promHistogram) Observe(value float64)           { p.h.Observe(value) }
func (p promHistogram) ObserveDuration(d time.Duration) { p.h.Observe(d.Seconds()) }
func (p promHistogram) Count() uint64                   { return readMetric(p.h).GetHistogram().GetSampleCount() }
func (p promHistogram) Sum() float64                    { return readMetric(p.h).GetHistogram().GetSampleSum() }
