package batchget

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"time"

	"github.com/hupe1980/batchget/aio"
	"github.com/hupe1980/batchget/batch"
	"github.com/hupe1980/batchget/core"
	"github.com/hupe1980/batchget/memtable"
	"github.com/hupe1980/batchget/segment"
)

// MergeFunc combines a merge chain into a final value. base is nil when no
// base value exists; operands are ordered oldest first.
type MergeFunc func(key []byte, base []byte, operands [][]byte) ([]byte, error)

// Reader is the read-path facade: a memtable tier and a stack of segments,
// newest first, probed per batch through one async read coordinator.
//
// A Reader may serve many MultiGet calls, but each call is driven by a
// single goroutine.
type Reader struct {
	mt       *memtable.Memtable
	segments []*segment.Reader
	backend  aio.Backend
	ioStats  aio.StatsCollector
	metrics  MetricsCollector
	logger   *Logger
	merge    MergeFunc
	closed   bool
}

// Option configures a Reader.
type Option func(*Reader)

// WithMemtable sets the in-memory tier probed before any segment.
func WithMemtable(mt *memtable.Memtable) Option {
	return func(r *Reader) { r.mt = mt }
}

// WithSegments sets the segment stack, newest first.
func WithSegments(segs ...*segment.Reader) Option {
	return func(r *Reader) { r.segments = segs }
}

// WithBackend sets the async read backend. Defaults to a BlobBackend with
// default limits.
func WithBackend(b aio.Backend) Option {
	return func(r *Reader) {
		if b != nil {
			r.backend = b
		}
	}
}

// WithIOStats sets the sink for combined-poll diagnostics.
func WithIOStats(sc aio.StatsCollector) Option {
	return func(r *Reader) {
		if sc != nil {
			r.ioStats = sc
		}
	}
}

// WithMetricsCollector sets the operation-level metrics sink.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(r *Reader) {
		if mc != nil {
			r.metrics = mc
		}
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *Logger) Option {
	return func(r *Reader) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMergeFunc sets the operator applied to accumulated merge operands.
// Without one, operands are left on the entry for the caller to combine.
func WithMergeFunc(f MergeFunc) Option {
	return func(r *Reader) { r.merge = f }
}

// NewReader creates a Reader.
func NewReader(opts ...Option) *Reader {
	r := &Reader{
		backend: aio.NewBlobBackend(aio.BlobBackendConfig{}),
		ioStats: aio.NoopStatsCollector{},
		metrics: NoopMetricsCollector{},
		logger:  NoopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Close releases the segment readers. The Reader must not be used after.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	for _, seg := range r.segments {
		if err := seg.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MultiGet resolves every entry at readPoint. Results land on the entries
// themselves: Value/KeyExists/Seq on success, Err for per-key failures; a
// key missing everywhere simply ends with KeyExists == false. Per-key
// failures never affect the rest of the batch.
//
// The entries slice is not reordered; batching works on an internally
// sorted view. Returns an error for contract violations (batch too large,
// closed Reader) or context cancellation between pipeline stages.
func (r *Reader) MultiGet(ctx context.Context, entries []*batch.KeyEntry, readPoint core.SeqNum) (err error) {
	start := time.Now()
	defer func() {
		r.metrics.RecordMultiGet(len(entries), time.Since(start), err)
	}()

	if r.closed {
		return ErrReaderClosed
	}

	// The coordination core requires sorted keys but never sorts; order
	// the internal view here, leaving the caller's slice alone.
	sorted := make([]*batch.KeyEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		ci, cj := cfID(sorted[i]), cfID(sorted[j])
		if ci != cj {
			return ci < cj
		}
		return bytes.Compare(sorted[i].Key, sorted[j].Key) < 0
	})

	bc, err := batch.NewContext(sorted, readPoint)
	if err != nil {
		r.logger.LogMultiGet(ctx, len(entries), 0, err)
		return err
	}
	defer bc.Close()

	full := bc.FullRange()

	if r.mt != nil {
		r.mt.Probe(&full, readPoint)
	}

	coord := aio.NewCoordinator(r.backend,
		aio.WithStatsCollector(r.ioStats),
		aio.WithLogger(r.logger.Logger),
	)

	// One coordination epoch: every segment enqueues its block reads,
	// then a single combined wait resumes them newest-first. Continuations
	// re-check the resolved mask, so an older segment never overrides a
	// newer result.
	enqueued := false
	segRanges := make([]batch.Range, len(r.segments))
	for i, seg := range r.segments {
		if err = ctx.Err(); err != nil {
			r.logger.LogMultiGet(ctx, len(entries), 0, err)
			return err
		}
		if full.Empty() {
			break
		}

		segRanges[i] = full.Sub(full.Begin(), full.End())
		rng := &segRanges[i]
		seg.FilterStage(rng)
		if rng.Empty() {
			continue
		}
		seg.ProbeAsync(rng, coord, readPoint)
		enqueued = true
	}

	if enqueued {
		coord.Wait()
	}

	r.finishMerges(sorted)

	resolved := 0
	for _, e := range sorted {
		if e.KeyExists || e.Err != nil || e.MaxCoveringTombstoneSeq > 0 {
			resolved++
		}
	}
	r.logger.LogMultiGet(ctx, len(entries), resolved, nil)
	return nil
}

// finishMerges combines accumulated merge operands once every tier has been
// consulted. Operands were gathered newest first; the operator receives
// them oldest first.
func (r *Reader) finishMerges(entries []*batch.KeyEntry) {
	if r.merge == nil {
		return
	}
	for _, e := range entries {
		if e.Err != nil || len(e.MergeOperands) == 0 {
			continue
		}

		operands := make([][]byte, len(e.MergeOperands))
		for i, op := range e.MergeOperands {
			operands[len(operands)-1-i] = op
		}
		var base []byte
		if e.KeyExists {
			base = e.Value
		}

		merged, err := r.merge(e.Key, base, operands)
		if err != nil {
			e.Err = err
			continue
		}
		e.Value = merged
		e.KeyExists = true
		e.MergeOperands = nil
	}
}

func cfID(e *batch.KeyEntry) uint32 {
	if e.CF == nil {
		return core.DefaultColumnFamily.ID
	}
	return e.CF.ID
}
