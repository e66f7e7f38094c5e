package aio

import (
	"fmt"
	"log/slog"
	"time"
)

// waiter is one suspended flow: the requests it issued, their handles and
// cleanups, and the continuation to run once everything has completed.
type waiter struct {
	reqs     []*ReadRequest
	handles  []Handle
	cleanups []CleanupFunc
	resume   func()
	next     *waiter
}

// Coordinator accumulates waiters and drains them with one combined poll.
//
// Not safe for concurrent use: a single goroutine drives Enqueue and Wait.
type Coordinator struct {
	backend  Backend
	head     *waiter
	tail     *waiter
	numReqs  int
	draining bool
	stats    StatsCollector
	logger   *slog.Logger
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithStatsCollector sets the diagnostics sink. Pass nil to disable.
func WithStatsCollector(sc StatsCollector) CoordinatorOption {
	return func(c *Coordinator) {
		if sc == nil {
			sc = NoopStatsCollector{}
		}
		c.stats = sc
	}
}

// WithLogger sets the logger used for submission and poll failures.
func WithLogger(l *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCoordinator creates a Coordinator over the given backend.
func NewCoordinator(backend Backend, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		backend: backend,
		stats:   NoopStatsCollector{},
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Pending returns the number of suspended waiters.
func (c *Coordinator) Pending() int {
	n := 0
	for w := c.head; w != nil; w = w.next {
		n++
	}
	return n
}

// Outstanding returns the total request count across all pending waiters.
func (c *Coordinator) Outstanding() int { return c.numReqs }

// Enqueue appends a waiter for reqs at the tail of the pending list and
// immediately submits every request. Submission does not block; a
// submission error is recorded in that request's Err slot and the request
// simply has no handle to poll. The caller's flow is suspended until the
// next Wait runs resume.
//
// Calling Enqueue while a Wait is draining violates the cooperative
// contract and panics.
func (c *Coordinator) Enqueue(reqs []*ReadRequest, resume func()) {
	if c.draining {
		panic("aio: Enqueue during Wait")
	}

	w := &waiter{
		reqs:     reqs,
		handles:  make([]Handle, len(reqs)),
		cleanups: make([]CleanupFunc, len(reqs)),
		resume:   resume,
	}
	if c.tail != nil {
		c.tail.next = w
	}
	c.tail = w
	if c.head == nil {
		c.head = w
	}
	c.numReqs += len(reqs)

	for i, req := range reqs {
		req := req
		h, cleanup, err := c.backend.SubmitRead(req, func(result []byte, err error) {
			req.Result = result
			req.Err = err
		})
		if err != nil {
			req.Err = fmt.Errorf("aio: submit read: %w", err)
			c.logger.Warn("read submission failed",
				"offset", req.Offset,
				"len", req.Len,
				"error", err,
			)
			continue
		}
		if (h == nil) != (cleanup == nil) {
			panic("aio: backend returned mismatched handle/cleanup pair")
		}
		w.handles[i] = h
		w.cleanups[i] = cleanup
	}
}

// Wait drains the pending list. With no waiters it is a no-op. Otherwise it
// gathers every non-nil handle across all waiters, issues exactly one
// combined poll, records the wait duration and total request count, then
// runs each waiter's cleanups and continuation strictly in enqueue order.
// Afterwards the Coordinator is empty again.
func (c *Coordinator) Wait() {
	if c.head == nil {
		return
	}
	c.draining = true

	handles := make([]Handle, 0, c.numReqs)
	for w := c.head; w != nil; w = w.next {
		for _, h := range w.handles {
			if h != nil {
				handles = append(handles, h)
			}
		}
	}

	if len(handles) > 0 {
		start := time.Now()
		if err := c.backend.Poll(handles); err != nil {
			c.logger.Error("combined poll failed",
				"handles", len(handles),
				"error", err,
			)
		}
		c.stats.RecordPollWait(time.Since(start))
	}

	for w := c.head; w != nil; w = w.next {
		for i := range w.handles {
			if w.handles[i] != nil && w.cleanups[i] != nil {
				w.cleanups[i]()
			}
		}
		w.resume()
	}

	c.stats.RecordIOBatchSize(c.numReqs)
	c.head = nil
	c.tail = nil
	c.numReqs = 0
	c.draining = false
}
