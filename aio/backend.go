package aio

// Handle is an opaque token identifying one in-flight read within its
// backend. A nil handle means the backend completed (or failed) the request
// during submission and there is nothing to poll.
type Handle any

// CleanupFunc releases backend bookkeeping for one completed handle. It is
// invoked by the Coordinator during Wait, after the combined poll and
// before the owning flow resumes.
type CleanupFunc func()

// CompletionFunc receives the outcome of one read. Backends invoke it
// exactly once per submitted request, before the request's handle is
// considered complete by Poll.
type CompletionFunc func(result []byte, err error)

// Backend is the submit/poll contract of the asynchronous read backend.
// Implementations may execute requests with true parallelism; the
// Coordinator serializes everything else.
type Backend interface {
	// SubmitRead starts req without blocking and returns the handle to
	// poll plus its cleanup. A non-nil error means the request never
	// started. Handle and cleanup are returned both nil or both non-nil.
	SubmitRead(req *ReadRequest, done CompletionFunc) (Handle, CleanupFunc, error)

	// Poll blocks until every handle in handles has completed, i.e. its
	// completion callback has run.
	Poll(handles []Handle) error
}
