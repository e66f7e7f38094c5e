package memtable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/batchget/batch"
	"github.com/hupe1980/batchget/core"
)

func probe(t *testing.T, m *Memtable, keys []string, readPoint core.SeqNum) ([]*batch.KeyEntry, *batch.Range) {
	t.Helper()

	entries := make([]*batch.KeyEntry, len(keys))
	for i, k := range keys {
		entries[i] = &batch.KeyEntry{Key: []byte(k)}
	}
	bctx, err := batch.NewContext(entries, readPoint)
	require.NoError(t, err)
	t.Cleanup(bctx.Close)

	rng := bctx.FullRange()
	m.Probe(&rng, readPoint)
	return entries, &rng
}

func TestMemtable_Probe(t *testing.T) {
	m := New()
	m.Put([]byte("a"), []byte("v1"), 1)
	m.Put([]byte("a"), []byte("v2"), 5)
	m.Put([]byte("b"), []byte("w"), 2)
	m.Delete([]byte("b"), 7)
	m.Merge([]byte("c"), []byte("+x"), 3)

	assert.Equal(t, 3, m.Len())

	got, rng := probe(t, m, []string{"a", "b", "c", "d"}, core.MaxSeqNum)

	// 1. "a" resolves to its newest value.
	assert.True(t, got[0].KeyExists)
	assert.Equal(t, []byte("v2"), got[0].Value)
	assert.Equal(t, core.SeqNum(5), got[0].Seq)

	// 2. "b" is covered by the tombstone at 7.
	assert.False(t, got[1].KeyExists)
	assert.Equal(t, core.SeqNum(7), got[1].MaxCoveringTombstoneSeq)

	// 3. "c" collected its operand but stays pending for older tiers.
	require.Len(t, got[2].MergeOperands, 1)
	assert.Equal(t, []byte("+x"), got[2].MergeOperands[0])
	assert.False(t, got[2].KeyExists)

	// 4. "d" is untouched.
	assert.False(t, got[3].KeyExists)

	// "c" and "d" remain pending.
	assert.False(t, rng.Empty())
	var pending [][]byte
	for it := rng.Begin(); !it.Done(); it.Next() {
		pending = append(pending, it.Entry().UserKey)
	}
	assert.Equal(t, [][]byte{[]byte("c"), []byte("d")}, pending)
}

func TestMemtable_ProbeRespectsReadPoint(t *testing.T) {
	m := New()
	m.Put([]byte("k"), []byte("old"), 2)
	m.Delete([]byte("k"), 6)
	m.Put([]byte("k"), []byte("new"), 9)

	t.Run("AfterRewrite", func(t *testing.T) {
		got, _ := probe(t, m, []string{"k"}, 10)
		assert.Equal(t, []byte("new"), got[0].Value)
	})

	t.Run("AtTombstone", func(t *testing.T) {
		got, _ := probe(t, m, []string{"k"}, 6)
		assert.False(t, got[0].KeyExists)
		assert.Equal(t, core.SeqNum(6), got[0].MaxCoveringTombstoneSeq)
	})

	t.Run("BeforeTombstone", func(t *testing.T) {
		got, _ := probe(t, m, []string{"k"}, 3)
		assert.True(t, got[0].KeyExists)
		assert.Equal(t, []byte("old"), got[0].Value)
	})

	t.Run("BeforeAll", func(t *testing.T) {
		got, rng := probe(t, m, []string{"k"}, 1)
		assert.False(t, got[0].KeyExists)
		assert.False(t, rng.Empty(), "nothing visible yet")
	})
}

func TestMemtable_ValueIsCopied(t *testing.T) {
	m := New()
	v := []byte("mutable")
	m.Put([]byte("k"), v, 1)
	v[0] = 'X'

	got, _ := probe(t, m, []string{"k"}, core.MaxSeqNum)
	assert.Equal(t, []byte("mutable"), got[0].Value)
}

func TestIterator_Snapshot(t *testing.T) {
	m := New()
	m.Put([]byte("b"), []byte("2"), 1)
	m.Put([]byte("a"), []byte("1"), 2)
	m.Put([]byte("d"), []byte("4"), 3)
	m.Delete([]byte("d"), 5)
	m.Merge([]byte("e"), []byte("+1"), 4)

	it := m.Iter(core.MaxSeqNum)

	// Writes after the snapshot are invisible.
	m.Put([]byte("c"), []byte("3"), 9)

	var keys, vals []string
	for it.Seek(nil); it.Valid(); it.Next() {
		keys = append(keys, string(it.Key()))
		vals = append(vals, string(it.Value()))
	}
	// Tombstoned "d" and merge-only "e" are omitted.
	assert.Equal(t, []string{"a", "b"}, keys)
	assert.Equal(t, []string{"1", "2"}, vals)
	assert.NoError(t, it.Err())
}

func TestIterator_SeekAndReadPoint(t *testing.T) {
	m := New()
	m.Put([]byte("a"), []byte("1"), 1)
	m.Put([]byte("b"), []byte("2"), 5)
	m.Put([]byte("c"), []byte("3"), 9)

	it := m.Iter(6) // "c" not yet visible

	it.Seek([]byte("aa"))
	require.True(t, it.Valid())
	assert.Equal(t, []byte("b"), it.Key())

	it.Next()
	assert.False(t, it.Valid())
}
