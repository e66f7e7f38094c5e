package batchget

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus. Poll-level I/O diagnostics are collected separately through
// aio.StatsCollector.
type MetricsCollector interface {
	// RecordMultiGet is called after each batched lookup. keys is the
	// batch width, duration the total time taken, err nil on success.
	RecordMultiGet(keys int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordMultiGet(int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection,
// useful for debugging without external dependencies.
type BasicMetricsCollector struct {
	MultiGetCount      atomic.Int64
	MultiGetErrors     atomic.Int64
	MultiGetKeys       atomic.Int64
	MultiGetTotalNanos atomic.Int64
}

// RecordMultiGet implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMultiGet(keys int, duration time.Duration, err error) {
	b.MultiGetCount.Add(1)
	b.MultiGetKeys.Add(int64(keys))
	b.MultiGetTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.MultiGetErrors.Add(1)
	}
}
