package aio

import "github.com/hupe1980/batchget/blobstore"

// ReadRequest describes one asynchronous ranged read against a blob.
//
// Result and Err are the request's result and status slots. They are
// populated by the completion callback and are valid once the owning
// Coordinator's Wait has returned (or, for the issuing flow, once its
// continuation runs). A failure recorded in Err is strictly per-request.
type ReadRequest struct {
	// Blob is the read target.
	Blob blobstore.Blob

	// Offset and Len delimit the byte range to read.
	Offset int64
	Len    int

	// Scratch is an optional caller-supplied buffer. A backend may read
	// into it to avoid an allocation; Result then aliases Scratch.
	Scratch []byte

	// Result holds the bytes read. May be shorter than Len at the tail of
	// a blob.
	Result []byte

	// Err is the per-request status slot. Submission failures surface
	// here too, rather than being dropped at the submission site.
	Err error
}
