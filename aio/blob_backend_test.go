package aio

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/batchget/blobstore"
)

func openTestBlob(t *testing.T, data []byte) blobstore.Blob {
	t.Helper()

	store := blobstore.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), "blob", data))

	blob, err := store.Open(context.Background(), "blob")
	require.NoError(t, err)
	t.Cleanup(func() { _ = blob.Close() })
	return blob
}

func TestBlobBackend_ReadThroughCoordinator(t *testing.T) {
	blob := openTestBlob(t, []byte("hello, world"))

	backend := NewBlobBackend(BlobBackendConfig{})
	c := NewCoordinator(backend)

	reqs := []*ReadRequest{
		{Blob: blob, Offset: 0, Len: 5},
		{Blob: blob, Offset: 7, Len: 5},
	}
	resumed := false
	c.Enqueue(reqs, func() { resumed = true })
	c.Wait()

	require.True(t, resumed)
	require.NoError(t, reqs[0].Err)
	require.NoError(t, reqs[1].Err)
	assert.Equal(t, []byte("hello"), reqs[0].Result)
	assert.Equal(t, []byte("world"), reqs[1].Result)
	assert.Zero(t, backend.Inflight(), "cleanups ran during drain")
}

func TestBlobBackend_ShortReadAtTail(t *testing.T) {
	blob := openTestBlob(t, []byte("abcdef"))

	backend := NewBlobBackend(BlobBackendConfig{})
	c := NewCoordinator(backend)

	req := &ReadRequest{Blob: blob, Offset: 4, Len: 10}
	c.Enqueue([]*ReadRequest{req}, func() {})
	c.Wait()

	require.NoError(t, req.Err)
	assert.Equal(t, []byte("ef"), req.Result)
}

func TestBlobBackend_ScratchBufferReused(t *testing.T) {
	blob := openTestBlob(t, []byte("0123456789"))

	backend := NewBlobBackend(BlobBackendConfig{})
	c := NewCoordinator(backend)

	scratch := make([]byte, 0, 16)
	req := &ReadRequest{Blob: blob, Offset: 2, Len: 4, Scratch: scratch}
	c.Enqueue([]*ReadRequest{req}, func() {})
	c.Wait()

	require.NoError(t, req.Err)
	assert.Equal(t, []byte("2345"), req.Result)
	assert.Same(t, &scratch[:1][0], &req.Result[0], "result backed by scratch")
}

func TestBlobBackend_InvalidRequests(t *testing.T) {
	blob := openTestBlob(t, []byte("x"))
	backend := NewBlobBackend(BlobBackendConfig{})

	// 1. No blob.
	_, _, err := backend.SubmitRead(&ReadRequest{Offset: 0, Len: 1}, func([]byte, error) {})
	assert.Error(t, err)

	// 2. Non-positive length.
	_, _, err = backend.SubmitRead(&ReadRequest{Blob: blob, Offset: 0, Len: 0}, func([]byte, error) {})
	assert.Error(t, err)

	assert.Zero(t, backend.Inflight())
}

func TestBlobBackend_ReadPastEnd(t *testing.T) {
	blob := openTestBlob(t, []byte("abc"))

	backend := NewBlobBackend(BlobBackendConfig{})
	c := NewCoordinator(backend)

	req := &ReadRequest{Blob: blob, Offset: 100, Len: 4}
	c.Enqueue([]*ReadRequest{req}, func() {})
	c.Wait()

	require.Error(t, req.Err)
	assert.Nil(t, req.Result)
}

func TestBlobBackend_ParallelReadsBounded(t *testing.T) {
	blob := openTestBlob(t, make([]byte, 1024))

	backend := NewBlobBackend(BlobBackendConfig{MaxParallelReads: 2})
	c := NewCoordinator(backend)

	reqs := make([]*ReadRequest, 16)
	for i := range reqs {
		reqs[i] = &ReadRequest{Blob: blob, Offset: int64(i) * 64, Len: 64}
	}
	c.Enqueue(reqs, func() {})
	c.Wait()

	for i, req := range reqs {
		require.NoError(t, req.Err, "request %d", i)
		assert.Len(t, req.Result, 64)
	}
	assert.Zero(t, backend.Inflight())
}
