package core

// SeqNum is a monotonically increasing sequence number assigned to every
// write. A read point is itself a SeqNum: a lookup observes only entries
// with seq <= read point.
type SeqNum uint64

// MaxSeqNum is the largest representable sequence number. Sequence numbers
// are packed into 56 bits alongside an 8-bit value kind.
const MaxSeqNum = SeqNum((1 << 56) - 1)

// ValueKind tags the meaning of an entry payload.
type ValueKind uint8

const (
	// KindDeletion marks a tombstone; the key is deleted as of the entry's
	// sequence number.
	KindDeletion ValueKind = 0x0
	// KindValue marks a full value.
	KindValue ValueKind = 0x1
	// KindMerge marks a merge operand to be combined with older entries.
	KindMerge ValueKind = 0x2

	// kindForSeek is the highest kind in use. Lookup keys are derived with
	// this kind so a seek positions before every entry of the target
	// (user key, sequence) pair.
	kindForSeek = KindMerge
)

// Valid reports whether k is a known value kind.
func (k ValueKind) Valid() bool {
	return k <= KindMerge
}

// ColumnFamily identifies an independent keyspace within the engine. The
// zero-ID family is the default keyspace.
type ColumnFamily struct {
	ID   uint32
	Name string
}

// DefaultColumnFamily is the implicit keyspace used when a key carries no
// explicit column family.
var DefaultColumnFamily = &ColumnFamily{ID: 0, Name: "default"}
