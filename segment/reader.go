package segment

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/batchget/aio"
	"github.com/hupe1980/batchget/batch"
	"github.com/hupe1980/batchget/blobstore"
	"github.com/hupe1980/batchget/core"
)

// Reader serves batched lookups against one immutable segment blob. The
// block index and presence filter are loaded at open time; entry blocks are
// fetched on demand through the async read coordinator.
type Reader struct {
	blob   blobstore.Blob
	name   string
	index  []blockHandle
	filter *roaring.Bitmap
	count  uint64
}

// Open opens the named segment. Index and filter sections are fetched in
// parallel.
func Open(ctx context.Context, store blobstore.BlobStore, name string) (*Reader, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}

	r, err := newReader(ctx, blob, name)
	if err != nil {
		_ = blob.Close()
		return nil, err
	}
	return r, nil
}

func newReader(ctx context.Context, blob blobstore.Blob, name string) (*Reader, error) {
	size := blob.Size()
	if size < footerSize {
		return nil, fmt.Errorf("%w: %s: blob smaller than footer", ErrCorrupt, name)
	}

	var footer [footerSize]byte
	if _, err := blob.ReadAt(footer[:], size-footerSize); err != nil {
		return nil, fmt.Errorf("segment: %s: read footer: %w", name, err)
	}
	if binary.LittleEndian.Uint64(footer[40:]) != footerMagic {
		return nil, fmt.Errorf("%w: %s: bad magic", ErrCorrupt, name)
	}

	indexOff := binary.LittleEndian.Uint64(footer[0:])
	indexLen := binary.LittleEndian.Uint64(footer[8:])
	filterOff := binary.LittleEndian.Uint64(footer[16:])
	filterLen := binary.LittleEndian.Uint64(footer[24:])
	count := binary.LittleEndian.Uint64(footer[32:])

	limit := uint64(size - footerSize)
	if indexOff+indexLen > limit || filterOff+filterLen > limit {
		return nil, fmt.Errorf("%w: %s: section out of bounds", ErrCorrupt, name)
	}

	idxBytes := make([]byte, indexLen)
	filtBytes := make([]byte, filterLen)

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := blob.ReadAt(idxBytes, int64(indexOff))
		return err
	})
	g.Go(func() error {
		if filterLen == 0 {
			return nil
		}
		_, err := blob.ReadAt(filtBytes, int64(filterOff))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("segment: %s: load sections: %w", name, err)
	}

	index, err := parseIndex(idxBytes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	filter := roaring.New()
	if filterLen > 0 {
		if err := filter.UnmarshalBinary(filtBytes); err != nil {
			return nil, fmt.Errorf("%w: %s: filter: %v", ErrCorrupt, name, err)
		}
	}

	return &Reader{
		blob:   blob,
		name:   name,
		index:  index,
		filter: filter,
		count:  count,
	}, nil
}

func parseIndex(data []byte) ([]blockHandle, error) {
	n, w := binary.Uvarint(data)
	if w <= 0 {
		return nil, fmt.Errorf("%w: bad index count", ErrCorrupt)
	}
	data = data[w:]

	index := make([]blockHandle, 0, n)
	for i := uint64(0); i < n; i++ {
		klen, w := binary.Uvarint(data)
		if w <= 0 || uint64(len(data[w:])) < klen {
			return nil, fmt.Errorf("%w: bad index key", ErrCorrupt)
		}
		key := data[w : w+int(klen)]
		data = data[w+int(klen):]

		off, w := binary.Uvarint(data)
		if w <= 0 {
			return nil, fmt.Errorf("%w: bad block offset", ErrCorrupt)
		}
		data = data[w:]

		length, w := binary.Uvarint(data)
		if w <= 0 {
			return nil, fmt.Errorf("%w: bad block length", ErrCorrupt)
		}
		data = data[w:]

		index = append(index, blockHandle{firstKey: key, offset: off, length: length})
	}
	return index, nil
}

// Name returns the segment's blob name.
func (r *Reader) Name() string { return r.name }

// NumEntries returns the entry count recorded in the footer.
func (r *Reader) NumEntries() uint64 { return r.count }

// Close releases the underlying blob.
func (r *Reader) Close() error { return r.blob.Close() }

// MayContain reports whether the segment might hold the user key. False is
// definite; true may be a fingerprint collision.
func (r *Reader) MayContain(ukey []byte) bool {
	return r.filter.Contains(fingerprint(ukey))
}

// FilterStage skips every key of rng the presence filter rules out.
func (r *Reader) FilterStage(rng *batch.Range) {
	for it := rng.Begin(); !it.Done(); it.Next() {
		if !r.MayContain(it.Entry().UserKey) {
			rng.SkipKey(it)
		}
	}
}

// findBlock returns the index of the block that may hold ukey, or -1 when
// ukey sorts before the segment's first key.
func (r *Reader) findBlock(ukey []byte) int {
	i := sort.Search(len(r.index), func(i int) bool {
		return bytes.Compare(r.index[i].firstKey, ukey) > 0
	})
	return i - 1
}

// blockProbe groups the pending keys that map to one block read.
type blockProbe struct {
	req   *aio.ReadRequest
	iters []batch.Iter
}

// ProbeAsync groups the pending keys of rng by block, enqueues one read per
// distinct block with the coordinator and suspends. The continuation
// decodes the fetched blocks and resolves keys: a visible value or
// tombstone marks the key done; merge operands accumulate and leave the key
// pending for older data. Keys outside the segment's key range are skipped
// for this stage.
//
// rng must outlive the coordinator's Wait that drains this probe.
func (r *Reader) ProbeAsync(rng *batch.Range, coord *aio.Coordinator, readPoint core.SeqNum) {
	probes := make(map[int]*blockProbe)
	var order []int

	for it := rng.Begin(); !it.Done(); it.Next() {
		bi := r.findBlock(it.Entry().UserKey)
		if bi < 0 {
			rng.SkipKey(it)
			continue
		}
		p := probes[bi]
		if p == nil {
			h := r.index[bi]
			p = &blockProbe{req: &aio.ReadRequest{
				Blob:   r.blob,
				Offset: int64(h.offset),
				Len:    int(h.length),
			}}
			probes[bi] = p
			order = append(order, bi)
		}
		p.iters = append(p.iters, it)
	}

	if len(order) == 0 {
		return
	}

	reqs := make([]*aio.ReadRequest, len(order))
	for i, bi := range order {
		reqs[i] = probes[bi].req
	}
	coord.Enqueue(reqs, func() {
		r.finishProbe(rng, probes, order, readPoint)
	})
}

func (r *Reader) finishProbe(rng *batch.Range, probes map[int]*blockProbe, order []int, readPoint core.SeqNum) {
	for _, bi := range order {
		p := probes[bi]

		if p.req.Err != nil {
			r.failProbe(rng, p, p.req.Err)
			continue
		}
		payload, err := decodeBlock(p.req.Result)
		if err != nil {
			r.failProbe(rng, p, err)
			continue
		}
		entries, err := parseBlock(payload)
		if err != nil {
			r.failProbe(rng, p, err)
			continue
		}

		for _, it := range p.iters {
			if rng.CheckKeyDone(it) {
				// Resolved by a newer source while this probe was in
				// flight.
				continue
			}
			r.resolveKey(rng, it, entries, readPoint)
		}
	}
}

// failProbe surfaces a block-level failure on every key that depended on
// the block. Strictly per-key: the rest of the batch is unaffected.
func (r *Reader) failProbe(rng *batch.Range, p *blockProbe, err error) {
	for _, it := range p.iters {
		if rng.CheckKeyDone(it) {
			continue
		}
		e := it.Entry()
		e.Err = fmt.Errorf("segment %s: %w", r.name, err)
		rng.MarkKeyDone(it)
	}
}

func (r *Reader) resolveKey(rng *batch.Range, it batch.Iter, entries []blockEntry, readPoint core.SeqNum) {
	e := it.Entry()

	i := sort.Search(len(entries), func(i int) bool {
		return bytes.Compare(entries[i].ukey, e.UserKey) >= 0
	})
	for ; i < len(entries) && bytes.Equal(entries[i].ukey, e.UserKey); i++ {
		en := entries[i]
		if en.seq > readPoint {
			continue
		}
		switch en.kind {
		case core.KindValue:
			// Copy out of the transient block buffer.
			e.Value = append([]byte(nil), en.value...)
			e.KeyExists = true
			e.Seq = en.seq
			rng.MarkKeyDone(it)
			return
		case core.KindDeletion:
			e.KeyExists = false
			e.Seq = en.seq
			if en.seq > e.MaxCoveringTombstoneSeq {
				e.MaxCoveringTombstoneSeq = en.seq
			}
			rng.MarkKeyDone(it)
			return
		case core.KindMerge:
			e.MergeOperands = append(e.MergeOperands, append([]byte(nil), en.value...))
		}
	}
	// No base entry here; the key stays pending for older segments.
}
