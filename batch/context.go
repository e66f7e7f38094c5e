package batch

import (
	"errors"
	"fmt"

	"github.com/hupe1980/batchget/core"
)

const (
	// MaxBatchSize is the hard upper bound on keys per batch, equal to the
	// width of the resolved mask.
	MaxBatchSize = 64

	// MaxKeysInline is the batch width the inline lookup-key region is
	// sized for. Wider batches (or unusually long keys) spill the arena to
	// the heap; the batch itself still works up to MaxBatchSize.
	MaxKeysInline = 32
)

// ErrTooManyKeys is returned by NewContext when the batch exceeds
// MaxBatchSize. Exceeding the bound is a contract violation by the caller,
// never silently truncated.
var ErrTooManyKeys = errors.New("batch: too many keys")

// Context coordinates one multi-key lookup. It owns the derived lookup-key
// storage for the batch and the resolved mask shared by all Ranges.
//
// A Context is not safe for concurrent use.
type Context struct {
	entries   []*KeyEntry
	readPoint core.SeqNum
	resolved  uint64
	arena     lookupArena
	closed    bool
}

// NewContext builds a Context over sorted, caller-owned entries. For each
// entry it derives the internal lookup key at readPoint into the arena and
// publishes the user-key and internal-key views on the entry.
//
// The entries must already be sorted; the Context performs no ordering of
// its own. Returns ErrTooManyKeys when len(entries) > MaxBatchSize.
func NewContext(entries []*KeyEntry, readPoint core.SeqNum) (*Context, error) {
	if len(entries) > MaxBatchSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyKeys, len(entries), MaxBatchSize)
	}

	c := &Context{
		entries:   entries,
		readPoint: readPoint,
	}

	total := 0
	for _, e := range entries {
		total += len(e.Key) + core.InternalKeyTrailerSize
	}
	c.arena.init(total)

	for _, e := range entries {
		ik := c.arena.alloc(len(e.Key) + core.InternalKeyTrailerSize)
		ik = core.AppendInternalKey(ik[:0], e.Key, readPoint)
		e.InternalKey = ik
		e.UserKey = ik[:len(e.Key)]
	}

	return c, nil
}

// Len returns the number of keys in the batch.
func (c *Context) Len() int { return len(c.entries) }

// ReadPoint returns the snapshot sequence number the batch reads at.
func (c *Context) ReadPoint() core.SeqNum { return c.readPoint }

// FullRange returns a Range spanning every key with an empty skip mask.
func (c *Context) FullRange() Range {
	return Range{ctx: c, start: 0, end: len(c.entries)}
}

// Close releases the lookup-key storage. The UserKey/InternalKey views on
// the entries become invalid. Close is idempotent; the arena is released
// exactly once.
func (c *Context) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.arena.release()
}
