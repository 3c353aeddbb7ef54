package gofib

import (
	"github.com/shaovie/gofib/misc"
)

// FixedPool is a preallocated slab of up to cap values of T. Alloc hands
// out stable pointers into the slab, so a slot's address can be parked in
// kernel-side user data. The pool never grows: exhaustion is reported,
// not absorbed.
type FixedPool[T any] struct {
	noCopy

	slab  []T
	used  *misc.Bitmap // set bit = slot allocated
	inUse int
}

// NewFixedPool returns a pool of capacity slots.
func NewFixedPool[T any](capacity int) *FixedPool[T] {
	if capacity < 1 {
		panic("gofib: FixedPool capacity < 1")
	}
	p := &FixedPool[T]{
		slab: make([]T, capacity),
		used: misc.NewBitmap(int64(capacity)),
	}
	// The bitmap rounds up to whole bytes; burn the padding bits.
	for i := int64(capacity); i < p.used.Size(); i++ {
		p.used.Set(i)
	}
	return p
}

// Alloc reserves a slot and returns its index and pointer. The slot
// keeps whatever state its previous user left behind.
func (p *FixedPool[T]) Alloc() (int, *T, error) {
	idx := p.used.FirstUnset()
	if idx < 0 {
		return -1, nil, ErrResourceExhausted
	}
	p.used.Set(idx)
	p.inUse++
	return int(idx), &p.slab[idx], nil
}

// Release returns the slot at idx to the pool.
func (p *FixedPool[T]) Release(idx int) {
	if idx < 0 || idx >= len(p.slab) || !p.used.IsSet(int64(idx)) {
		panic("gofib: FixedPool bad release")
	}
	p.used.Unset(int64(idx))
	p.inUse--
}

// Get returns the slot at idx regardless of its allocation state. The
// caller is expected to detect reuse itself (generation counters).
func (p *FixedPool[T]) Get(idx int) *T {
	return &p.slab[idx]
}

// Live reports whether the slot at idx is currently allocated.
func (p *FixedPool[T]) Live(idx int) bool {
	return idx >= 0 && idx < len(p.slab) && p.used.IsSet(int64(idx))
}

// InUse reports how many slots are allocated.
func (p *FixedPool[T]) InUse() int {
	return p.inUse
}

// Cap reports the pool capacity.
func (p *FixedPool[T]) Cap() int {
	return len(p.slab)
}
