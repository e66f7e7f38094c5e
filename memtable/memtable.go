// Package memtable holds the mutable in-memory tier of the read path. It
// is the first, synchronous probe stage of a batched lookup: anything it
// resolves never reaches a segment.
package memtable

import (
	"sort"
	"sync"

	"github.com/hupe1980/batchget/batch"
	"github.com/hupe1980/batchget/core"
)

// version is one write of a key. Versions are kept newest first.
type version struct {
	seq   core.SeqNum
	kind  core.ValueKind
	value []byte
}

// Memtable is a versioned in-memory table. Unlike the batch coordination
// core it is safe for concurrent use: writers append while lookups probe.
type Memtable struct {
	mu      sync.RWMutex
	entries map[string][]version
}

// New creates an empty Memtable.
func New() *Memtable {
	return &Memtable{
		entries: make(map[string][]version),
	}
}

// Put records a value write at seq.
func (m *Memtable) Put(key, value []byte, seq core.SeqNum) {
	m.add(key, version{seq: seq, kind: core.KindValue, value: append([]byte(nil), value...)})
}

// Delete records a tombstone at seq.
func (m *Memtable) Delete(key []byte, seq core.SeqNum) {
	m.add(key, version{seq: seq, kind: core.KindDeletion})
}

// Merge records a merge operand at seq.
func (m *Memtable) Merge(key, operand []byte, seq core.SeqNum) {
	m.add(key, version{seq: seq, kind: core.KindMerge, value: append([]byte(nil), operand...)})
}

func (m *Memtable) add(key []byte, v version) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := string(key)
	versions := m.entries[k]
	// Writes arrive with increasing sequence numbers, so prepending keeps
	// newest-first order without a sort.
	m.entries[k] = append([]version{v}, versions...)
}

// Len returns the number of distinct keys.
func (m *Memtable) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Probe resolves the pending keys of rng against the table at readPoint. A
// visible value or tombstone marks the key done; merge operands accumulate
// on the entry and leave it pending for older tiers.
func (m *Memtable) Probe(rng *batch.Range, readPoint core.SeqNum) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for it := rng.Begin(); !it.Done(); it.Next() {
		e := it.Entry()
		versions, ok := m.entries[string(e.UserKey)]
		if !ok {
			continue
		}

	scan:
		for _, v := range versions {
			if v.seq > readPoint {
				continue
			}
			switch v.kind {
			case core.KindValue:
				e.Value = append([]byte(nil), v.value...)
				e.KeyExists = true
				e.Seq = v.seq
				rng.MarkKeyDone(it)
				break scan
			case core.KindDeletion:
				e.KeyExists = false
				e.Seq = v.seq
				if v.seq > e.MaxCoveringTombstoneSeq {
					e.MaxCoveringTombstoneSeq = v.seq
				}
				rng.MarkKeyDone(it)
				break scan
			case core.KindMerge:
				e.MergeOperands = append(e.MergeOperands, append([]byte(nil), v.value...))
			}
		}
	}
}

// Iter returns a point-in-time sorted iterator over the keys whose newest
// visible version at readPoint is a plain value. Tombstoned and merge-only
// keys are omitted; combining merge chains is the lookup pipeline's job,
// not the scan path's.
func (m *Memtable) Iter(readPoint core.SeqNum) *Iterator {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.entries))
	vals := make(map[string][]byte, len(m.entries))
	for k, versions := range m.entries {
		for _, v := range versions {
			if v.seq > readPoint {
				continue
			}
			if v.kind == core.KindValue {
				keys = append(keys, k)
				vals[k] = v.value
			}
			break
		}
	}
	sort.Strings(keys)

	return &Iterator{keys: keys, vals: vals, pos: 0}
}

// Iterator is a snapshot iterator over a Memtable, in key order. It
// implements the single-key iterator contract the scan package wraps.
type Iterator struct {
	keys []string
	vals map[string][]byte
	pos  int
}

// Seek positions the iterator at the first key >= target.
func (i *Iterator) Seek(target []byte) {
	i.pos = sort.SearchStrings(i.keys, string(target))
}

// Next advances to the following key.
func (i *Iterator) Next() { i.pos++ }

// Valid reports whether the iterator is positioned at a key.
func (i *Iterator) Valid() bool { return i.pos < len(i.keys) }

// Key returns the current key.
func (i *Iterator) Key() []byte { return []byte(i.keys[i.pos]) }

// Value returns the current value.
func (i *Iterator) Value() []byte { return i.vals[i.keys[i.pos]] }

// Err always returns nil; an in-memory snapshot cannot fail.
func (i *Iterator) Err() error { return nil }
