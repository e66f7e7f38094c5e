package segment

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/batchget/core"
)

// ErrCorrupt is returned when a segment blob fails structural validation.
var ErrCorrupt = errors.New("segment: corrupt")

// CompressionType defines the block compression algorithm.
type CompressionType uint8

const (
	// CompressionNone stores blocks uncompressed.
	CompressionNone CompressionType = 0
	// CompressionLZ4 uses LZ4 block compression (fast, good for hot data).
	CompressionLZ4 CompressionType = 1
	// CompressionZSTD uses ZSTD block compression (better ratio, good for cold data).
	CompressionZSTD CompressionType = 2
)

// Block layout on disk: [type u8][uncompressedLen u32][compressedLen u32][payload].
// compressedLen == 0 means the payload is stored uncompressed.
const blockHeaderSize = 9

// Footer layout, fixed size at the end of the blob, all little endian:
// indexOff, indexLen, filterOff, filterLen, entryCount, magic.
const (
	footerSize  = 48
	footerMagic = 0x6267736567763101 // "bgsegv1" + version
)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) { zstdEncoderPool.Put(enc) }

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

func putZstdDecoder(dec *zstd.Decoder) { zstdDecoderPool.Put(dec) }

// compressBlock encodes payload into its on-disk block form. Incompressible
// payloads are stored raw regardless of the configured type.
func compressBlock(payload []byte, ctype CompressionType) ([]byte, error) {
	var compressed []byte

	switch ctype {
	case CompressionNone:
		// fallthrough to raw storage below
	case CompressionLZ4:
		bound := lz4.CompressBlockBound(len(payload))
		dst := make([]byte, bound)
		n, err := lz4.CompressBlock(payload, dst, nil)
		if err != nil {
			return nil, err
		}
		compressed = dst[:n] // n == 0 means incompressible
	case CompressionZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(payload, nil)
		putZstdEncoder(enc)
	default:
		return nil, fmt.Errorf("segment: unknown compression type %d", ctype)
	}

	if len(compressed) == 0 || len(compressed) >= len(payload) {
		out := make([]byte, blockHeaderSize+len(payload))
		out[0] = byte(ctype)
		binary.LittleEndian.PutUint32(out[1:], uint32(len(payload)))
		binary.LittleEndian.PutUint32(out[5:], 0) // stored raw
		copy(out[blockHeaderSize:], payload)
		return out, nil
	}

	out := make([]byte, blockHeaderSize+len(compressed))
	out[0] = byte(ctype)
	binary.LittleEndian.PutUint32(out[1:], uint32(len(payload)))
	binary.LittleEndian.PutUint32(out[5:], uint32(len(compressed)))
	copy(out[blockHeaderSize:], compressed)
	return out, nil
}

// decodeBlock decompresses an on-disk block back into its entry payload.
func decodeBlock(raw []byte) ([]byte, error) {
	if len(raw) < blockHeaderSize {
		return nil, fmt.Errorf("%w: block shorter than header", ErrCorrupt)
	}

	ctype := CompressionType(raw[0])
	ulen := binary.LittleEndian.Uint32(raw[1:])
	clen := binary.LittleEndian.Uint32(raw[5:])

	if clen == 0 {
		if uint32(len(raw)) < blockHeaderSize+ulen {
			return nil, fmt.Errorf("%w: truncated raw block", ErrCorrupt)
		}
		return raw[blockHeaderSize : blockHeaderSize+ulen], nil
	}
	if uint32(len(raw)) < blockHeaderSize+clen {
		return nil, fmt.Errorf("%w: truncated compressed block", ErrCorrupt)
	}
	data := raw[blockHeaderSize : blockHeaderSize+clen]

	switch ctype {
	case CompressionLZ4:
		out := make([]byte, ulen)
		n, err := lz4.UncompressBlock(data, out)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrCorrupt, err)
		}
		if uint32(n) != ulen {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return out, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		out, err := dec.DecodeAll(data, make([]byte, 0, ulen))
		putZstdDecoder(dec)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrCorrupt, err)
		}
		if uint32(len(out)) != ulen {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown compression type %d", ErrCorrupt, ctype)
	}
}

// blockEntry is one decoded entry of a block payload.
type blockEntry struct {
	ukey  []byte
	seq   core.SeqNum
	kind  core.ValueKind
	value []byte
}

// appendEntry encodes one entry: uklen, vlen, tag varints followed by the
// key and value bytes.
func appendEntry(dst, ukey []byte, seq core.SeqNum, kind core.ValueKind, value []byte) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(ukey)))
	dst = binary.AppendUvarint(dst, uint64(len(value)))
	dst = binary.AppendUvarint(dst, core.PackSeqAndKind(seq, kind))
	dst = append(dst, ukey...)
	return append(dst, value...)
}

// parseBlock decodes a block payload into its entries. The returned slices
// alias payload.
func parseBlock(payload []byte) ([]blockEntry, error) {
	var entries []blockEntry
	for len(payload) > 0 {
		uklen, n := binary.Uvarint(payload)
		if n <= 0 {
			return nil, fmt.Errorf("%w: bad key length", ErrCorrupt)
		}
		payload = payload[n:]

		vlen, n := binary.Uvarint(payload)
		if n <= 0 {
			return nil, fmt.Errorf("%w: bad value length", ErrCorrupt)
		}
		payload = payload[n:]

		tag, n := binary.Uvarint(payload)
		if n <= 0 {
			return nil, fmt.Errorf("%w: bad entry tag", ErrCorrupt)
		}
		payload = payload[n:]

		if uint64(len(payload)) < uklen+vlen {
			return nil, fmt.Errorf("%w: truncated entry", ErrCorrupt)
		}
		seq, kind := core.UnpackSeqAndKind(tag)
		if !kind.Valid() {
			return nil, fmt.Errorf("%w: unknown value kind %d", ErrCorrupt, kind)
		}
		entries = append(entries, blockEntry{
			ukey:  payload[:uklen],
			seq:   seq,
			kind:  kind,
			value: payload[uklen : uklen+vlen],
		})
		payload = payload[uklen+vlen:]
	}
	return entries, nil
}

// fingerprint maps a user key into the presence filter's 32-bit space.
func fingerprint(ukey []byte) uint32 {
	return uint32(xxhash.Sum64(ukey))
}
