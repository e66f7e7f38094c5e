package aio

import (
	"sync/atomic"
	"time"
)

// StatsCollector receives diagnostics from the Coordinator: one wait
// duration sample per combined poll, and one request-count sample per
// drained batch. Implement it to feed histograms in a monitoring system.
type StatsCollector interface {
	// RecordPollWait is called once per combined poll with the time spent
	// blocked.
	RecordPollWait(d time.Duration)

	// RecordIOBatchSize is called once per drain with the total number of
	// requests across all waiters in the batch.
	RecordIOBatchSize(n int)
}

// NoopStatsCollector discards all samples.
type NoopStatsCollector struct{}

func (NoopStatsCollector) RecordPollWait(time.Duration) {}
func (NoopStatsCollector) RecordIOBatchSize(int)        {}

// BasicStatsCollector provides simple in-memory aggregation, useful for
// tests and debugging without an external metrics system.
type BasicStatsCollector struct {
	PollCount     atomic.Int64
	PollWaitNanos atomic.Int64
	BatchCount    atomic.Int64
	RequestTotal  atomic.Int64
}

// RecordPollWait implements StatsCollector.
func (b *BasicStatsCollector) RecordPollWait(d time.Duration) {
	b.PollCount.Add(1)
	b.PollWaitNanos.Add(d.Nanoseconds())
}

// RecordIOBatchSize implements StatsCollector.
func (b *BasicStatsCollector) RecordIOBatchSize(n int) {
	b.BatchCount.Add(1)
	b.RequestTotal.Add(int64(n))
}
