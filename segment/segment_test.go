package segment

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/batchget/aio"
	"github.com/hupe1980/batchget/batch"
	"github.com/hupe1980/batchget/blobstore"
	"github.com/hupe1980/batchget/core"
)

type testEntry struct {
	ukey  string
	seq   core.SeqNum
	kind  core.ValueKind
	value string
}

func buildSegment(t *testing.T, entries []testEntry, opts ...BuilderOption) []byte {
	t.Helper()

	b := NewBuilder(opts...)
	for _, e := range entries {
		require.NoError(t, b.Add([]byte(e.ukey), e.seq, e.kind, []byte(e.value)))
	}
	data, err := b.Finish()
	require.NoError(t, err)
	return data
}

func openSegment(t *testing.T, data []byte) *Reader {
	t.Helper()

	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, store.Put(ctx, "seg", data))

	r, err := Open(ctx, store, "seg")
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

// probeKeys runs a full filter+probe pipeline for the given sorted keys and
// returns the entries for inspection.
func probeKeys(t *testing.T, r *Reader, keys []string, readPoint core.SeqNum) ([]*batch.KeyEntry, *batch.Range) {
	t.Helper()

	entries := make([]*batch.KeyEntry, len(keys))
	for i, k := range keys {
		entries[i] = &batch.KeyEntry{Key: []byte(k)}
	}
	bctx, err := batch.NewContext(entries, readPoint)
	require.NoError(t, err)
	t.Cleanup(bctx.Close)

	rng := bctx.FullRange()
	r.FilterStage(&rng)

	coord := aio.NewCoordinator(aio.NewBlobBackend(aio.BlobBackendConfig{}))
	r.ProbeAsync(&rng, coord, readPoint)
	coord.Wait()

	return entries, &rng
}

func TestBuilder_RejectsOutOfOrder(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Add([]byte("b"), 5, core.KindValue, []byte("v")))

	// 1. User key going backwards.
	assert.Error(t, b.Add([]byte("a"), 9, core.KindValue, []byte("v")))

	// 2. Same key, sequence not strictly descending.
	assert.Error(t, b.Add([]byte("b"), 5, core.KindValue, []byte("v")))
	assert.Error(t, b.Add([]byte("b"), 7, core.KindValue, []byte("v")))

	// 3. Strictly descending within the key is fine.
	assert.NoError(t, b.Add([]byte("b"), 4, core.KindValue, []byte("v")))
}

func TestReader_ProbeRoundtrip(t *testing.T) {
	compressions := map[string]CompressionType{
		"none": CompressionNone,
		"lz4":  CompressionLZ4,
		"zstd": CompressionZSTD,
	}

	for name, ctype := range compressions {
		t.Run(name, func(t *testing.T) {
			var entries []testEntry
			for i := 0; i < 40; i++ {
				entries = append(entries, testEntry{
					ukey:  fmt.Sprintf("key-%03d", i),
					seq:   10,
					kind:  core.KindValue,
					value: fmt.Sprintf("value-%03d", i),
				})
			}
			// A tiny block size forces multiple blocks.
			data := buildSegment(t, entries,
				WithCompression(ctype), WithBlockSize(64))

			r := openSegment(t, data)
			assert.Equal(t, uint64(40), r.NumEntries())

			keys := []string{"key-000", "key-017", "key-017x", "key-039"}
			got, _ := probeKeys(t, r, keys, core.MaxSeqNum)

			assert.True(t, got[0].KeyExists)
			assert.Equal(t, []byte("value-000"), got[0].Value)
			assert.True(t, got[1].KeyExists)
			assert.Equal(t, []byte("value-017"), got[1].Value)
			assert.True(t, got[3].KeyExists)
			assert.Equal(t, []byte("value-039"), got[3].Value)

			// The absent key was ruled out by the filter or left pending,
			// never reported as existing.
			assert.False(t, got[2].KeyExists)
			assert.NoError(t, got[2].Err)
		})
	}
}

func TestReader_FilterStage(t *testing.T) {
	data := buildSegment(t, []testEntry{
		{ukey: "apple", seq: 3, kind: core.KindValue, value: "red"},
		{ukey: "mango", seq: 3, kind: core.KindValue, value: "gold"},
	})
	r := openSegment(t, data)

	assert.True(t, r.MayContain([]byte("apple")))
	assert.True(t, r.MayContain([]byte("mango")))
	assert.False(t, r.MayContain([]byte("papaya")))

	entries := []*batch.KeyEntry{
		{Key: []byte("apple")},
		{Key: []byte("durian")},
	}
	bctx, err := batch.NewContext(entries, core.MaxSeqNum)
	require.NoError(t, err)
	defer bctx.Close()

	rng := bctx.FullRange()
	r.FilterStage(&rng)

	// Only "apple" survives the filter.
	it := rng.Begin()
	require.False(t, it.Done())
	assert.Equal(t, []byte("apple"), it.Entry().UserKey)
	it.Next()
	assert.True(t, it.Done())
}

func TestReader_Tombstone(t *testing.T) {
	data := buildSegment(t, []testEntry{
		{ukey: "k", seq: 8, kind: core.KindDeletion},
		{ukey: "k", seq: 3, kind: core.KindValue, value: "old"},
	})
	r := openSegment(t, data)

	got, rng := probeKeys(t, r, []string{"k"}, core.MaxSeqNum)

	assert.False(t, got[0].KeyExists)
	assert.Equal(t, core.SeqNum(8), got[0].MaxCoveringTombstoneSeq)
	assert.True(t, rng.Empty(), "tombstone resolves the key")
}

func TestReader_MergeChain(t *testing.T) {
	data := buildSegment(t, []testEntry{
		{ukey: "k", seq: 9, kind: core.KindMerge, value: "+c"},
		{ukey: "k", seq: 6, kind: core.KindMerge, value: "+b"},
		{ukey: "k", seq: 2, kind: core.KindValue, value: "a"},
	})
	r := openSegment(t, data)

	got, rng := probeKeys(t, r, []string{"k"}, core.MaxSeqNum)

	// Operands accumulate newest first until the base value resolves.
	require.Len(t, got[0].MergeOperands, 2)
	assert.Equal(t, []byte("+c"), got[0].MergeOperands[0])
	assert.Equal(t, []byte("+b"), got[0].MergeOperands[1])
	assert.True(t, got[0].KeyExists)
	assert.Equal(t, []byte("a"), got[0].Value)
	assert.True(t, rng.Empty())
}

func TestReader_MergeWithoutBaseStaysPending(t *testing.T) {
	data := buildSegment(t, []testEntry{
		{ukey: "k", seq: 6, kind: core.KindMerge, value: "+b"},
	})
	r := openSegment(t, data)

	got, rng := probeKeys(t, r, []string{"k"}, core.MaxSeqNum)

	require.Len(t, got[0].MergeOperands, 1)
	assert.False(t, got[0].KeyExists)
	assert.False(t, rng.Empty(), "key stays pending for older sources")
}

func TestReader_ReadPointFiltering(t *testing.T) {
	data := buildSegment(t, []testEntry{
		{ukey: "k", seq: 10, kind: core.KindValue, value: "new"},
		{ukey: "k", seq: 3, kind: core.KindValue, value: "old"},
	})
	r := openSegment(t, data)

	t.Run("SeesNewest", func(t *testing.T) {
		got, _ := probeKeys(t, r, []string{"k"}, core.MaxSeqNum)
		assert.Equal(t, []byte("new"), got[0].Value)
		assert.Equal(t, core.SeqNum(10), got[0].Seq)
	})

	t.Run("SnapshotBeforeNewest", func(t *testing.T) {
		got, _ := probeKeys(t, r, []string{"k"}, 5)
		assert.Equal(t, []byte("old"), got[0].Value)
		assert.Equal(t, core.SeqNum(3), got[0].Seq)
	})

	t.Run("SnapshotBeforeAll", func(t *testing.T) {
		got, rng := probeKeys(t, r, []string{"k"}, 1)
		assert.False(t, got[0].KeyExists)
		assert.False(t, rng.Empty(), "nothing visible, key stays pending")
	})
}

func TestReader_KeyBeforeSegmentSkipped(t *testing.T) {
	data := buildSegment(t, []testEntry{
		{ukey: "m", seq: 1, kind: core.KindValue, value: "v"},
	})
	r := openSegment(t, data)

	// Skip the filter stage so ProbeAsync sees a key sorting before the
	// segment's first block.
	other := []*batch.KeyEntry{{Key: []byte("a")}}
	bctx, err := batch.NewContext(other, core.MaxSeqNum)
	require.NoError(t, err)
	defer bctx.Close()

	rng := bctx.FullRange()
	coord := aio.NewCoordinator(aio.NewBlobBackend(aio.BlobBackendConfig{}))
	r.ProbeAsync(&rng, coord, core.MaxSeqNum)
	coord.Wait()

	assert.True(t, rng.Empty(), "unplaceable key skipped for this stage")
	assert.False(t, other[0].KeyExists)
	assert.NoError(t, other[0].Err)
}

func TestOpen_Corrupt(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	t.Run("TooSmall", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "tiny", []byte("short")))
		_, err := Open(ctx, store, "tiny")
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("BadMagic", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "junk", make([]byte, 256)))
		_, err := Open(ctx, store, "junk")
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("TruncatedSections", func(t *testing.T) {
		data := buildSegment(t, []testEntry{
			{ukey: "k", seq: 1, kind: core.KindValue, value: "v"},
		})
		// Keep the footer but chop the front, pushing sections out of
		// bounds.
		mangled := append([]byte(nil), data[len(data)-footerSize:]...)
		require.NoError(t, store.Put(ctx, "trunc", mangled))
		_, err := Open(ctx, store, "trunc")
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := Open(ctx, store, "absent")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})
}

func TestDecodeBlock_Corrupt(t *testing.T) {
	t.Run("ShortHeader", func(t *testing.T) {
		_, err := decodeBlock([]byte{1, 2})
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("GarbagePayload", func(t *testing.T) {
		block, err := compressBlock([]byte("some payload to compress some payload to compress"), CompressionZSTD)
		require.NoError(t, err)
		if block[5] == 0 {
			t.Skip("payload stored raw, nothing to corrupt")
		}
		block[blockHeaderSize] ^= 0xff
		_, err = decodeBlock(block)
		assert.ErrorIs(t, err, ErrCorrupt)
	})
}
