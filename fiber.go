package gofib

const (
	fiberIdle int32 = iota // slab slot free
	fiberRunnable
	fiberRunning
	fiberSuspended
)

// fiber is one cooperative execution context. Each fiber gets its own
// goroutine, but the reactor lets at most one of them execute at a time;
// every hand-off goes through a channel, which carries the
// happens-before edge the shared state relies on.
type fiber struct {
	idx   int32
	gen   uint32
	state int32

	fn   func()
	park chan struct{} // scheduler -> fiber hand-off
	fls  FlsArea

	// sleepEntry links the fiber into the reactor's wheel while it
	// sleeps; one per fiber, never aliased.
	sleepEntry TimerEntry

	r *Reactor
}

func (f *fiber) handle() FiberHandle {
	return FiberHandle{r: f.r, idx: f.idx, gen: f.gen}
}

// FiberHandle is a generational reference to a fiber. Handles are cheap
// value types comparing on identity plus generation; once the fiber
// exits, every outstanding handle goes stale. The zero handle is never
// valid.
//
// Validity checks resolve against reactor state and belong on the
// reactor goroutine; other goroutines may only carry handles around and
// pass them to ResumeFiber.
type FiberHandle struct {
	r   *Reactor
	idx int32
	gen uint32
}

// IsValid reports whether the handle still refers to a live fiber.
func (h FiberHandle) IsValid() bool {
	return h.resolve() != nil
}

func (h FiberHandle) resolve() *fiber {
	if h.r == nil {
		return nil
	}
	return h.r.fiberAt(h.idx, h.gen)
}
