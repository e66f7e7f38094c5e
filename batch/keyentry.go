package batch

import "github.com/hupe1980/batchget/core"

// KeyEntry is the per-key scratch record of a multi-key lookup. The entry
// array is owned by the caller; a Context holds references into it and
// stages write their findings back through these fields.
type KeyEntry struct {
	// Key is the caller-supplied target user key.
	Key []byte

	// CF is the keyspace the lookup targets. Nil means the default family.
	CF *core.ColumnFamily

	// UserKey and InternalKey are views into the Context's lookup-key
	// arena, populated by NewContext. They are invalidated by
	// Context.Close.
	UserKey     []byte
	InternalKey []byte

	// MergeOperands accumulates merge fragments, newest first, until a
	// base value or deletion is found.
	MergeOperands [][]byte

	// MaxCoveringTombstoneSeq is the highest sequence number of a
	// deletion known to cover this key.
	MaxCoveringTombstoneSeq core.SeqNum

	// KeyExists is set when the key resolved to a live value.
	KeyExists bool

	// Seq is the sequence number of the entry that resolved the key.
	Seq core.SeqNum

	// CallbackArg is an opaque per-stage argument. Stages that need to
	// carry state for a key between suspension and resumption park it
	// here.
	CallbackArg any

	// Value and Err are the result and status slots. A failure recorded
	// here is strictly per-key and never affects the rest of the batch.
	Value []byte
	Err   error
}
