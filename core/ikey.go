package core

import (
	"encoding/binary"
	"fmt"
)

// InternalKeyTrailerSize is the number of bytes appended to a user key to
// form an internal key: a fixed64 holding (seq << 8 | kind).
const InternalKeyTrailerSize = 8

// PackSeqAndKind packs a sequence number and value kind into the internal
// key trailer word. seq must not exceed MaxSeqNum.
func PackSeqAndKind(seq SeqNum, kind ValueKind) uint64 {
	return uint64(seq)<<8 | uint64(kind)
}

// UnpackSeqAndKind splits a trailer word into its sequence number and kind.
func UnpackSeqAndKind(tag uint64) (SeqNum, ValueKind) {
	return SeqNum(tag >> 8), ValueKind(tag & 0xff)
}

// AppendInternalKey appends the internal form of ukey at seq to dst and
// returns the extended slice. The derived key sorts before every entry
// visible at seq for the same user key.
func AppendInternalKey(dst, ukey []byte, seq SeqNum) []byte {
	dst = append(dst, ukey...)
	var trailer [InternalKeyTrailerSize]byte
	binary.LittleEndian.PutUint64(trailer[:], PackSeqAndKind(seq, kindForSeek))
	return append(dst, trailer[:]...)
}

// SplitInternalKey splits an internal key into its user key, sequence
// number and kind.
func SplitInternalKey(ikey []byte) (ukey []byte, seq SeqNum, kind ValueKind, err error) {
	if len(ikey) < InternalKeyTrailerSize {
		return nil, 0, 0, fmt.Errorf("core: internal key too short: %d bytes", len(ikey))
	}
	n := len(ikey) - InternalKeyTrailerSize
	tag := binary.LittleEndian.Uint64(ikey[n:])
	seq, kind = UnpackSeqAndKind(tag)
	return ikey[:n], seq, kind, nil
}
