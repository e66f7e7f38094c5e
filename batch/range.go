package batch

import "iter"

// Range is a view over a contiguous window [start, end) of a Context's
// batch, plus a private skip mask for keys irrelevant to the current stage.
// Ranges are value types: copy one (or derive a narrower one with Sub) to
// hand a stage its own skip state. All Ranges over a Context share its
// resolved mask and observe each other's completions instantly.
//
// Mutating methods (SkipKey) take a pointer receiver; use a *Range wherever
// a stage will narrow the view.
type Range struct {
	ctx   *Context
	start int
	end   int
	skip  uint64
}

// Iter is a cursor over the unresolved, unskipped keys of a Range. Both
// masks are re-checked on every advance, so completions recorded while a
// stage holds an Iter are never visited.
type Iter struct {
	r     *Range
	index int
}

// Begin returns a cursor on the first pending key of the Range.
func (r *Range) Begin() Iter {
	it := Iter{r: r, index: r.start}
	it.settle()
	return it
}

// End returns the past-the-end cursor position.
func (r *Range) End() Iter {
	return Iter{r: r, index: r.end}
}

// Sub derives a Range bounded by two cursor positions of r. The child
// inherits r's skip mask verbatim; later skips on either do not affect the
// other.
func (r *Range) Sub(first, last Iter) Range {
	return Range{ctx: r.ctx, start: first.index, end: last.index, skip: r.skip}
}

// SkipKey marks the key under it irrelevant for this Range only. Skip bits
// only ever grow for the lifetime of a Range.
func (r *Range) SkipKey(it Iter) {
	r.skip |= 1 << uint(it.index)
}

// MarkKeyDone records the key under it as finally resolved in the shared
// mask, immediately visible to every Range over the same Context. The
// transition is one-way.
func (r *Range) MarkKeyDone(it Iter) {
	r.ctx.resolved |= 1 << uint(it.index)
}

// CheckKeyDone reports whether the key under it has been resolved.
func (r *Range) CheckKeyDone(it Iter) bool {
	return r.ctx.resolved&(1<<uint(it.index)) != 0
}

// Empty reports whether every position in [start, end) is resolved or
// skipped. Pure bit arithmetic, no iteration.
func (r *Range) Empty() bool {
	return spanBits(r.start, r.end)&^(r.ctx.resolved|r.skip) == 0
}

// Keys iterates the pending keys of the Range, yielding the cursor and its
// entry. Skips and completions recorded during iteration take effect on the
// next step.
func (r *Range) Keys() iter.Seq2[Iter, *KeyEntry] {
	return func(yield func(Iter, *KeyEntry) bool) {
		for it := r.Begin(); !it.Done(); it.Next() {
			if !yield(it, it.Entry()) {
				return
			}
		}
	}
}

// settle advances the cursor past positions whose bit is set in the union
// of the shared resolved mask and the Range's skip mask.
func (it *Iter) settle() {
	for it.index < it.r.end &&
		(uint64(1)<<uint(it.index))&(it.r.ctx.resolved|it.r.skip) != 0 {
		it.index++
	}
}

// Next advances to the following pending key.
func (it *Iter) Next() {
	it.index++
	it.settle()
}

// Done reports whether the cursor has passed the Range's end bound.
func (it Iter) Done() bool { return it.index >= it.r.end }

// Equal compares cursor positions only; the Ranges they came from may
// differ.
func (it Iter) Equal(other Iter) bool { return it.index == other.index }

// Index returns the batch position under the cursor.
func (it Iter) Index() int { return it.index }

// Entry returns the key entry under the cursor.
func (it Iter) Entry() *KeyEntry { return it.r.ctx.entries[it.index] }

// spanBits returns a mask with bits [start, end) set. end may be 64.
func spanBits(start, end int) uint64 {
	if start >= end {
		return 0
	}
	return bitsBelow(end) &^ bitsBelow(start)
}

func bitsBelow(n int) uint64 {
	if n >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(n)) - 1
}
