// Package batch tracks which keys of a sorted multi-key lookup still need
// resolution as the batch moves through the stages of the read path.
//
// A Context is created per multi-key request. It derives an internal lookup
// key for every entry into a small arena (inline for typical batch widths,
// heap above that) and owns the single resolved mask shared by every view
// of the batch.
//
// A Range is a cheap view over a contiguous window of the batch with its own
// private skip mask. Stages narrow their working Range by marking keys
// irrelevant (SkipKey) or finally resolved (MarkKeyDone); resolution is
// recorded in the shared mask and is immediately visible to every other
// Range over the same Context. Iteration transparently steps over keys that
// are resolved or skipped, re-checking both masks on every advance.
//
// # Concurrency
//
// The package is deliberately lock-free and NOT safe for concurrent use:
// exactly one goroutine drives Range narrowing at any instant. Asynchronous
// I/O issued on behalf of a batch runs in parallel underneath, but results
// are applied back to the batch only from the driving goroutine (see the
// aio package).
//
// # Capacity
//
// The resolved and skip masks are single 64-bit words, so a batch holds at
// most MaxBatchSize keys. This is a precondition, not a soft limit:
// NewContext rejects larger batches. Callers with more keys chunk them into
// multiple batches.
package batch
