package gofib

import (
	"unsafe"
)

// FlsAreaSize is the number of bytes of fiber-local storage every fiber
// owns. All registered slots must fit.
const FlsAreaSize = 512

// FlsArea is one fiber's local storage block. Backed by words so the
// block is 8-byte aligned; slot types may need at most pointer
// alignment.
type FlsArea struct {
	words [FlsAreaSize / 8]uint64
}

func (a *FlsArea) base() unsafe.Pointer {
	return unsafe.Pointer(&a.words[0])
}

// reset restores every slot to its registered initial value. Called when
// a fiber is born or its record recycled.
func (a *FlsArea) reset() {
	*a = flsAreaInit
}

var (
	flsAreaInit FlsArea // prototype holding every slot's initial value
	flsOffset   int     // bump cursor, advances only at registration
	flsSealed   bool    // set once the first reactor runs
	currentFls  *FlsArea
)

// FlsSlot locates one registered value of type T at the same offset in
// every fiber's storage block. Obtain with AllocFlsSlot; the zero slot
// aliases the first registered one and must not be used.
type FlsSlot[T any] struct {
	off int
}

// AllocFlsSlot registers a slot of type T with the given initial value
// and returns its handle. Call once per slot before any reactor runs,
// typically from a package var initializer. T must not hold pointers
// into the Go heap: the storage block is opaque bytes the collector
// never scans.
func AllocFlsSlot[T any](init T) FlsSlot[T] {
	if flsSealed {
		panic("gofib: AllocFlsSlot after a reactor started")
	}
	size := int(unsafe.Sizeof(init))
	align := int(unsafe.Alignof(init))
	if align > int(unsafe.Alignof(uintptr(0))) {
		panic("gofib: fls slot over-aligned")
	}
	off := (flsOffset + align - 1) &^ (align - 1)
	if off+size > FlsAreaSize {
		panic("gofib: fls area overflow")
	}
	flsOffset = off + size
	*(*T)(unsafe.Add(flsAreaInit.base(), uintptr(off))) = init
	return FlsSlot[T]{off: off}
}

// Get returns the running fiber's value for the slot. Access is a
// pointer plus a constant: no lookup, no allocation.
func (s FlsSlot[T]) Get() *T {
	if currentFls == nil {
		panic("gofib: fls access with no fiber running")
	}
	return (*T)(unsafe.Add(currentFls.base(), uintptr(s.off)))
}

// InFiber returns h's value for the slot, or nil when h no longer
// refers to a live fiber. Every fiber's block shares one layout, so the
// slot's offset applies to any of them.
func (s FlsSlot[T]) InFiber(h FiberHandle) *T {
	f := h.resolve()
	if f == nil {
		return nil
	}
	return (*T)(unsafe.Add(f.fls.base(), uintptr(s.off)))
}

func flsSwitchTo(a *FlsArea) {
	currentFls = a
}

func flsSwitchToNone() {
	currentFls = nil
}

func sealFls() {
	flsSealed = true
}
