package batch

// inlineArenaSize is the inline lookup-key region, sized for MaxKeysInline
// keys of typical length. Batches needing more bytes fall back to a single
// heap region allocated up front.
const inlineArenaSize = MaxKeysInline * 64

// lookupArena is a bump allocator for derived lookup keys. The whole byte
// budget is known at Context construction, so the arena picks its backing
// region once and never grows.
type lookupArena struct {
	inline [inlineArenaSize]byte
	heap   []byte
	buf    []byte
	off    int
}

func (a *lookupArena) init(total int) {
	if total <= len(a.inline) {
		a.buf = a.inline[:]
		return
	}
	a.heap = make([]byte, total)
	a.buf = a.heap
}

func (a *lookupArena) alloc(n int) []byte {
	b := a.buf[a.off : a.off+n : a.off+n]
	a.off += n
	return b
}

// release drops the backing regions. Safe to call once; Context guards
// against double release.
func (a *lookupArena) release() {
	a.heap = nil
	a.buf = nil
	a.off = 0
}
