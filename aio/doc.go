// Package aio aggregates the asynchronous reads issued by multiple
// suspended lookup flows into a single combined wait.
//
// A flow that has issued every read it currently needs hands its request
// set and a continuation to the Coordinator and suspends. Requests are
// submitted to the Backend immediately, fire-and-forget. Once every flow
// sharing the batch has enqueued, one Wait call polls the union of all
// outstanding handles, then runs cleanups and continuations strictly in
// enqueue order. Because the combined poll completes every request before
// any continuation runs, a resumed flow always finds its own results
// populated.
//
// The Coordinator itself is single-threaded and cooperative: Enqueue and
// Wait are driven by one goroutine and no locks are taken. The Backend is
// the only place true parallelism lives.
//
// Cancellation is deliberately unsupported. Once a request is submitted it
// is waited on to completion by whichever Wait drains it; partial results
// are never surfaced early.
package aio
