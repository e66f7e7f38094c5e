// Package scan provides a sequential multi-range scan wrapper over a
// single-key iterator.
//
// Unlike the batched lookup core, there is no shared state and no
// concurrency here: scans are served strictly one after another from one
// underlying iterator, seeking to each range's start in turn. Ranges must
// be supplied in ascending order of their start keys.
package scan

import (
	"bytes"
	"errors"
	"iter"
)

// ErrUnsortedRanges is returned when scan ranges are not in ascending
// start-key order.
var ErrUnsortedRanges = errors.New("scan: ranges not in ascending order")

// Iterator is the single-key iterator contract the wrapper drives. The
// storage tier supplies the implementation.
type Iterator interface {
	// Seek positions the iterator at the first key >= target.
	Seek(target []byte)
	// Next advances to the following key.
	Next()
	// Valid reports whether the iterator is positioned at a key.
	Valid() bool
	// Key returns the current key.
	Key() []byte
	// Value returns the current value.
	Value() []byte
	// Err returns the first error the iterator encountered.
	Err() error
}

// Range describes one scan: keys in [Start, Limit). A nil Limit scans to
// the end of the keyspace.
type Range struct {
	Start []byte
	Limit []byte
}

// MultiIterator returns results from multiple scan ranges, one range at a
// time, reusing a single underlying Iterator.
//
//	mi, _ := scan.NewMultiIterator(ranges, iter)
//	for s := range mi.Scans() {
//	    for k, v := range s.Rows() {
//	        // use k, v
//	    }
//	}
//	if err := mi.Err(); err != nil { ... }
type MultiIterator struct {
	ranges []Range
	iter   Iterator
	idx    int
}

// NewMultiIterator validates the ranges and builds the wrapper.
func NewMultiIterator(ranges []Range, it Iterator) (*MultiIterator, error) {
	for i := 1; i < len(ranges); i++ {
		if bytes.Compare(ranges[i-1].Start, ranges[i].Start) > 0 {
			return nil, ErrUnsortedRanges
		}
	}
	return &MultiIterator{ranges: ranges, iter: it}, nil
}

// Scans yields one Scan per range, in order. Each Scan must be consumed (or
// abandoned) before the next is yielded; the underlying iterator is
// repositioned at every step.
func (m *MultiIterator) Scans() iter.Seq[*Scan] {
	return func(yield func(*Scan) bool) {
		for m.idx = 0; m.idx < len(m.ranges); m.idx++ {
			r := m.ranges[m.idx]
			m.iter.Seek(r.Start)
			if !yield(&Scan{m: m, r: r}) {
				return
			}
		}
	}
}

// Err returns the first error of the underlying iterator.
func (m *MultiIterator) Err() error { return m.iter.Err() }

// Scan is the row view of one range.
type Scan struct {
	m *MultiIterator
	r Range
}

// Rows yields the key/value pairs of the range in order. Iteration stops at
// the range's limit, at the end of the keyspace, or on an iterator error
// (check MultiIterator.Err afterwards).
func (s *Scan) Rows() iter.Seq2[[]byte, []byte] {
	return func(yield func([]byte, []byte) bool) {
		it := s.m.iter
		for it.Valid() {
			if s.r.Limit != nil && bytes.Compare(it.Key(), s.r.Limit) >= 0 {
				return
			}
			if !yield(it.Key(), it.Value()) {
				return
			}
			it.Next()
			if it.Err() != nil {
				return
			}
		}
	}
}
