// Package minio provides a blobstore.BlobStore backed by MinIO or any
// S3-compatible object storage.
//
// Segments are immutable, so blobs are opened once and read with ranged
// GETs. Use an aio.BlobBackend over these blobs to batch and overlap the
// high-latency object-store reads.
package minio
