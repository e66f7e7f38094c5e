// Package blobstore provides the storage abstraction the read path fetches
// segment blobs from.
//
// BlobStore is intentionally read-oriented: the lookup pipeline only ever
// opens blobs and issues ranged reads against them. Concrete stores
// additionally expose Put for the tools and tests that build segments.
//
// # Built-in Implementations
//
//   - MemoryStore: in-memory, for tests
//   - LocalStore: local filesystem, memory-mapped where the platform allows
//   - minio.Store: S3-compatible object storage with range reads
package blobstore
