package mqttwire

import (
	"time"
)

// MetricType represents the type of metric.
type MetricType int

const (
	MetricTypeCounter MetricType = iota
	MetricTypeGauge
	MetricTypeHistogram
)

// String returns the string representation of the metric type.
func (t MetricType) String() string {
	switch t {
	case MetricTypeCounter:
		return "counter"
	case MetricTypeGauge:
		return "gauge"
	case MetricTypeHistogram:
		return "histogram"
	default:
		return "unknown"
	}
}

// MetricLabels represents key-value pairs for metric labels.
type MetricLabels map[string]string

// Metrics hands out metric instruments by name and label set. Asking twice
// for the same name and labels returns the same instrument.
type Metrics interface {
	Counter(name string, labels MetricLabels) Counter
	Gauge(name string, labels MetricLabels) Gauge
	Histogram(name string, labels MetricLabels) Histogram
}

// Counter only goes up.
type Counter interface {
	Inc()
	Add(delta float64)
	Value() float64
}

// Gauge can go up and down.
type Gauge interface {
	Set(value float64)
	Inc()
	Dec()
	Add(delta float64)
	Sub(delta float64)
	Value() float64
}

// Histogram tracks the distribution of observed values.
type Histogram interface {
	Observe(value float64)

	// ObserveDuration records d in seconds.
	ObserveDuration(d time.Duration)

	Count() uint64
	Sum() float64
}

// NoOpMetrics is a no-op implementation of Metrics.
type NoOpMetrics struct{}

// Counter returns a no-op counter.
func (n *NoOpMetrics) Counter(_ string, _ MetricLabels) Counter {
	return &noOpCounter{}
}

// Gauge returns a no-op gauge.
func (n *NoOpMetrics) Gauge(_ string, _ MetricLabels) Gauge {
	return &noOpGauge{}
}

// Histogram returns a no-op histogram.
func (n *NoOpMetrics) Histogram(_ string, _ MetricLabels) Histogram {
	return &noOpHistogram{}
}

type noOpCounter struct{}

func (n *noOpCounter) Inc()           {}
func (n *noOpCounter) Add(_ float64)  {}
func (n *noOpCounter) Value() float64 { return 0 }

type noOpGauge struct{}

func (n *noOpGauge) Set(_ float64)  {}
func (n *noOpGauge) Inc()           {}
func (n *noOpGauge) Dec()           {}
func (n *noOpGauge) Add(_ float64)  {}
func (n *noOpGauge) Sub(_ float64)  {}
func (n *noOpGauge) Value() float64 { return 0 }

type noOpHistogram struct{}

func (n *noOpHistogram) Observe(_ float64)               {}
func (n *noOpHistogram) ObserveDuration(_ time.Duration) {}
func (n *noOpHistogram) Count() uint64                   { return 0 }
func (n *noOpHistogram) Sum() float64                    { return 0 }

// Metric names.
const (
	MetricPacketsSent     = "mqttwire_packets_sent_total"
	MetricPacketsReceived = "mqttwire_packets_received_total"
	MetricBytesSent       = "mqttwire_bytes_sent_total"
	MetricBytesReceived   = "mqttwire_bytes_received_total"
	MetricEncodeErrors    = "mqttwire_encode_errors_total"
	MetricConnections     = "mqttwire_connections"
	MetricAuthExchanges   = "mqttwire_auth_exchanges_total"
	MetricAuthDuration    = "mqttwire_auth_duration_seconds"
)

// Metric labels.
const (
	LabelPacketType = "type"
	LabelOutcome    = "outcome"
	LabelKind       = "kind"
)

// Values of LabelOutcome.
const (
	AuthOutcomeSuccess  = "success"
	AuthOutcomeRejected = "rejected"
	AuthOutcomeError    = "error"
)

// Values of LabelKind.
const (
	AuthKindConnect      = "connect"
	AuthKindReAuth       = "reauth"
	AuthKindServerReAuth = "server_reauth"
)

// connMetrics records the events of one connection.
type connMetrics struct {
	metrics Metrics
}

func newConnMetrics(m Metrics) *connMetrics {
	if m == nil {
		m = &NoOpMetrics{}
	}
	return &connMetrics{metrics: m}
}

func (c *connMetrics) connectionOpened() {
	c.metrics.Gauge(MetricConnections, nil).Inc()
}

func (c *connMetrics) connectionClosed() {
	c.metrics.Gauge(MetricConnections, nil).Dec()
}

func (c *connMetrics) packetSent(t PacketType, n int) {
	c.metrics.Counter(MetricPacketsSent, MetricLabels{LabelPacketType: t.String()}).Inc()
	c.metrics.Counter(MetricBytesSent, nil).Add(float64(n))
}

func (c *connMetrics) packetReceived(t PacketType, n int) {
	c.metrics.Counter(MetricPacketsReceived, MetricLabels{LabelPacketType: t.String()}).Inc()
	c.metrics.Counter(MetricBytesReceived, nil).Add(float64(n))
}

func (c *connMetrics) encodeError(t PacketType) {
	c.metrics.Counter(MetricEncodeErrors, MetricLabels{LabelPacketType: t.String()}).Inc()
}

func (c *connMetrics) authExchange(kind, outcome string, d time.Duration) {
	c.metrics.Counter(MetricAuthExchanges, MetricLabels{LabelKind: kind, LabelOutcome: outcome}).Inc()
	c.metrics.Histogram(MetricAuthDuration, MetricLabels{LabelKind: kind}).ObserveDuration(d)
}
