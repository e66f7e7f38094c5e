package segment

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/batchget/core"
)

const defaultBlockSize = 4096

// blockHandle locates one block within the segment blob.
type blockHandle struct {
	firstKey []byte
	offset   uint64
	length   uint64
}

// Builder serializes sorted entries into a segment blob: compressed entry
// blocks, a block index, a key-presence filter and a footer. Entries must
// be added in internal-key order (user key ascending, sequence number
// descending within a key). All versions of one user key land in the same
// block.
type Builder struct {
	blockSize int
	ctype     CompressionType

	buf           bytes.Buffer
	blockPayload  []byte
	blockFirstKey []byte
	index         []blockHandle
	filter        *roaring.Bitmap
	count         uint64

	lastKey []byte
	lastSeq core.SeqNum
	hasLast bool
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithBlockSize sets the target uncompressed block size in bytes.
func WithBlockSize(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.blockSize = n
		}
	}
}

// WithCompression sets the block compression algorithm.
func WithCompression(t CompressionType) BuilderOption {
	return func(b *Builder) { b.ctype = t }
}

// NewBuilder creates a Builder with LZ4 compression and 4 KiB blocks by
// default.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		blockSize: defaultBlockSize,
		ctype:     CompressionLZ4,
		filter:    roaring.New(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Add appends one entry. Returns an error when the entry is out of order
// with respect to the previous one.
func (b *Builder) Add(ukey []byte, seq core.SeqNum, kind core.ValueKind, value []byte) error {
	cmp := 1
	if b.hasLast {
		cmp = bytes.Compare(ukey, b.lastKey)
		if cmp < 0 || (cmp == 0 && seq >= b.lastSeq) {
			return fmt.Errorf("segment: entries out of order: %q@%d after %q@%d", ukey, seq, b.lastKey, b.lastSeq)
		}
	}

	// Only cut a block at a user-key boundary so a key's versions never
	// straddle blocks.
	if cmp != 0 && len(b.blockPayload) >= b.blockSize {
		if err := b.flushBlock(); err != nil {
			return err
		}
	}

	if b.blockFirstKey == nil {
		b.blockFirstKey = append([]byte(nil), ukey...)
	}
	b.blockPayload = appendEntry(b.blockPayload, ukey, seq, kind, value)
	b.filter.Add(fingerprint(ukey))
	b.count++

	b.lastKey = append(b.lastKey[:0], ukey...)
	b.lastSeq = seq
	b.hasLast = true
	return nil
}

func (b *Builder) flushBlock() error {
	if len(b.blockPayload) == 0 {
		return nil
	}
	onDisk, err := compressBlock(b.blockPayload, b.ctype)
	if err != nil {
		return err
	}
	b.index = append(b.index, blockHandle{
		firstKey: b.blockFirstKey,
		offset:   uint64(b.buf.Len()),
		length:   uint64(len(onDisk)),
	})
	b.buf.Write(onDisk)
	b.blockPayload = b.blockPayload[:0]
	b.blockFirstKey = nil
	return nil
}

// Finish flushes the last block, appends the filter, index and footer, and
// returns the serialized segment.
func (b *Builder) Finish() ([]byte, error) {
	if err := b.flushBlock(); err != nil {
		return nil, err
	}

	filterOff := uint64(b.buf.Len())
	filterBytes, err := b.filter.ToBytes()
	if err != nil {
		return nil, err
	}
	b.buf.Write(filterBytes)

	indexOff := uint64(b.buf.Len())
	var idx []byte
	idx = binary.AppendUvarint(idx, uint64(len(b.index)))
	for _, h := range b.index {
		idx = binary.AppendUvarint(idx, uint64(len(h.firstKey)))
		idx = append(idx, h.firstKey...)
		idx = binary.AppendUvarint(idx, h.offset)
		idx = binary.AppendUvarint(idx, h.length)
	}
	b.buf.Write(idx)

	var footer [footerSize]byte
	binary.LittleEndian.PutUint64(footer[0:], indexOff)
	binary.LittleEndian.PutUint64(footer[8:], uint64(len(idx)))
	binary.LittleEndian.PutUint64(footer[16:], filterOff)
	binary.LittleEndian.PutUint64(footer[24:], uint64(len(filterBytes)))
	binary.LittleEndian.PutUint64(footer[32:], b.count)
	binary.LittleEndian.PutUint64(footer[40:], footerMagic)
	b.buf.Write(footer[:])

	return b.buf.Bytes(), nil
}
