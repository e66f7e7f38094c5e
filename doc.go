// Package batchget coordinates batched multi-key lookups for an LSM-style
// storage engine read path.
//
// A batch of sorted keys moves through pipeline stages (memtable probe,
// per-segment filter checks, asynchronous block fetches) that each rule
// keys in or out over shared completion state. Stages that need I/O enqueue
// their reads with a coordinator and suspend; one combined wait drains the
// union of all outstanding reads and resumes every stage with its results
// ready.
//
// # Quick Start
//
//	store := blobstore.NewLocalStore("./data")
//	seg, _ := segment.Open(ctx, store, "seg-000001")
//
//	r := batchget.NewReader(
//	    batchget.WithMemtable(mt),
//	    batchget.WithSegments(seg),
//	)
//	defer r.Close()
//
//	entries := []*batch.KeyEntry{{Key: []byte("a")}, {Key: []byte("b")}}
//	_ = r.MultiGet(ctx, entries, readPoint)
//	for _, e := range entries {
//	    if e.Err != nil || !e.KeyExists {
//	        continue
//	    }
//	    // use e.Value
//	}
//
// # Layering
//
//   - batch: the per-request coordination core (Context, Range, masks)
//   - aio: the async read coordinator and its blob backend
//   - segment, memtable: the lookup stages
//   - blobstore: where segment blobs live (memory, local disk, S3/MinIO)
//   - scan: the sequential multi-range scan wrapper
//
// # Concurrency Model
//
// One goroutine drives a MultiGet from start to finish; the coordination
// core takes no locks. Parallelism lives below the backend boundary, where
// block reads execute concurrently against local files or object storage.
package batchget
