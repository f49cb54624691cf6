// Package metrics provides Prometheus-backed observability for tablecast
// connectors: records moved, cells written, rows decoded, schema mutations
// issued, and region-allocation polling.
//
// Metric families are registered once at package level and labeled by
// connector, so any number of Collector instances can coexist.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsProcessed counts records moved through a connector by status.
	RecordsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tablecast",
			Name:      "records_processed_total",
			Help:      "Total records processed by connector and status.",
		},
		[]string{"connector", "status"},
	)

	// CellsWritten counts cells materialized by the write path.
	CellsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tablecast",
			Name:      "cells_written_total",
			Help:      "Total store cells written.",
		},
		[]string{"connector"},
	)

	// RowsDecoded counts store rows turned back into records.
	RowsDecoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tablecast",
			Name:      "rows_decoded_total",
			Help:      "Total scanned rows decoded into records.",
		},
		[]string{"connector"},
	)

	// FamiliesCreated counts column families added by provisioning.
	FamiliesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tablecast",
			Name:      "families_created_total",
			Help:      "Total column families added to store tables.",
		},
		[]string{"connector"},
	)

	// RegionWaitPolls counts unsuccessful region-allocation polls.
	RegionWaitPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tablecast",
			Name:      "region_wait_polls_total",
			Help:      "Region allocation polls that found no regions yet.",
		},
		[]string{"connector"},
	)

	// ProcessingLatency observes per-batch processing latency.
	ProcessingLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tablecast",
			Name:      "processing_latency_seconds",
			Help:      "Latency of batch encode/decode operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
		[]string{"connector", "operation"},
	)
)

// Collector records metrics for one connector instance. Besides feeding the
// Prometheus families above, it keeps a local snapshot that backs the
// connector's Metrics() map.
type Collector struct {
	name      string
	startTime time.Time

	mu     sync.RWMutex
	values map[string]interface{}
}

// NewCollector creates a collector labeled with the connector name.
func NewCollector(name string) *Collector {
	return &Collector{
		name:      name,
		startTime: time.Now(),
		values:    make(map[string]interface{}),
	}
}

// Record stores an arbitrary named value in the local snapshot.
func (c *Collector) Record(name string, value interface{}) {
	c.mu.Lock()
	c.values[name] = value
	c.mu.Unlock()
}

// AddRecords counts processed records with the given status ("success",
// "failed").
func (c *Collector) AddRecords(status string, n int) {
	RecordsProcessed.WithLabelValues(c.name, status).Add(float64(n))
	c.addLocal("records_"+status, int64(n))
}

// AddCellsWritten counts cells written by this connector.
func (c *Collector) AddCellsWritten(n int) {
	CellsWritten.WithLabelValues(c.name).Add(float64(n))
	c.addLocal("cells_written", int64(n))
}

// AddRowsDecoded counts rows decoded by this connector.
func (c *Collector) AddRowsDecoded(n int) {
	RowsDecoded.WithLabelValues(c.name).Add(float64(n))
	c.addLocal("rows_decoded", int64(n))
}

// AddFamiliesCreated counts families added during provisioning.
func (c *Collector) AddFamiliesCreated(n int) {
	FamiliesCreated.WithLabelValues(c.name).Add(float64(n))
	c.addLocal("families_created", int64(n))
}

// AddRegionWaitPoll counts one unsuccessful region-allocation poll.
func (c *Collector) AddRegionWaitPoll() {
	RegionWaitPolls.WithLabelValues(c.name).Inc()
	c.addLocal("region_wait_polls", 1)
}

// ObserveLatency records one operation's latency.
func (c *Collector) ObserveLatency(operation string, d time.Duration) {
	ProcessingLatency.WithLabelValues(c.name, operation).Observe(d.Seconds())
}

// StartTime returns when the collector was created.
func (c *Collector) StartTime() time.Time {
	return c.startTime
}

// GetAll returns a copy of the local metric snapshot.
func (c *Collector) GetAll() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]interface{}, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

func (c *Collector) addLocal(name string, n int64) {
	c.mu.Lock()
	if prev, ok := c.values[name].(int64); ok {
		c.values[name] = prev + n
	} else {
		c.values[name] = n
	}
	c.mu.Unlock()
}
