// Package segment reads and writes the immutable sorted segment blobs the
// lookup pipeline probes.
//
// A segment is a sequence of compressed entry blocks (LZ4 or ZSTD, chosen
// per workload), followed by a roaring-bitmap key-presence
// filter, a block index and a fixed-size footer. All versions of one user
// key live in a single block, so each batched key maps to at most one block
// read.
//
// Reader exposes the two pipeline stages of the read path: FilterStage
// narrows a batch.Range using the presence filter, and ProbeAsync issues
// the block reads through an aio.Coordinator and resolves keys when the
// combined wait resumes it.
package segment
