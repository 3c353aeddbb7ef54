package gofib

import (
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sys/unix"
)

// wakerSentinel marks epoll events belonging to the bridge's eventfd
// rather than to an fd context slot.
const wakerSentinel int32 = -2

// fdContext associates one registered descriptor with at most one
// waiting fiber. Contexts live in a fixed slab; the slot index plus a
// generation counter rides in the epoll event's user data, so an event
// queued for an old registration is detectable after the slot recycles.
type fdContext struct {
	idx int32
	gen uint32
	fib FiberHandle // the one fiber suspended on this fd, if any
}

// epollBridge owns the process-wide epoll instance and plugs fd
// readiness into the reactor's idle loop. Everything non-blocking rides
// edge-triggered registration: callers drain until EAGAIN, park, and the
// next readiness edge resumes them.
type epollBridge struct {
	noCopy

	efd    int
	r      *Reactor
	pool   *FixedPool[fdContext]
	events []unix.EpollEvent
	waker  *Notify
	closed bool // set by CloseBridge; parking is refused afterwards

	suspensions atomic.Int64
	staleEvents atomic.Int64
}

var bridge *epollBridge

// OpenBridge creates the process-wide epoll instance and hooks it into
// the reactor's idle loop. Call once, after NewReactor and before Run.
func OpenBridge(r *Reactor) error {
	if bridge != nil {
		panic("gofib: bridge already open")
	}
	efd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return newOsError("epoll_create1", -1, err)
	}
	waker, err := newNotify()
	if err != nil {
		unix.Close(efd)
		return err
	}
	// The waker joins the interest set under a sentinel so its events
	// never resolve to a context slot.
	ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLET, Fd: wakerSentinel}
	if err = unix.EpollCtl(efd, unix.EPOLL_CTL_ADD, waker.efd, &ev); err != nil {
		waker.close()
		unix.Close(efd)
		return newOsError("epoll_ctl", waker.efd, err)
	}
	b := &epollBridge{
		efd:    efd,
		r:      r,
		pool:   NewFixedPool[fdContext](r.opts.maxConcurrentFds),
		events: make([]unix.EpollEvent, r.opts.numBatchEvents),
		waker:  waker,
	}
	bridge = b
	r.RegisterIdleCallback(b.poll)
	r.waker = waker
	return nil
}

// CloseBridge resumes every waiting fiber and closes the epoll instance.
// A resumed fiber retries its syscall and surfaces whatever the kernel
// reports for its descriptor; another EAGAIN comes back as an OsError
// rather than a park, since readiness can no longer be delivered.
// Outstanding FDs stay with their owners: Close them as usual.
func CloseBridge() {
	b := bridge
	if b == nil {
		return
	}
	b.closed = true
	for i := 0; i < b.pool.Cap(); i++ {
		if !b.pool.Live(i) {
			continue
		}
		ctx := b.pool.Get(i)
		if ctx.fib.IsValid() {
			b.r.ResumeFiber(ctx.fib)
			ctx.fib = FiberHandle{}
		}
	}
	b.r.waker = nil
	b.waker.close()
	unix.Close(b.efd)
	bridge = nil
}

// register adds fd to the interest set, edge-triggered in both
// directions, and binds it a context slot.
func (b *epollBridge) register(fd int) (*fdContext, error) {
	idx, ctx, err := b.pool.Alloc()
	if err != nil {
		return nil, err
	}
	ctx.idx = int32(idx)
	ctx.gen++
	ctx.fib = FiberHandle{}
	ev := unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLOUT | unix.EPOLLRDHUP | unix.EPOLLET,
		Fd:     ctx.idx,
		Pad:    int32(ctx.gen),
	}
	if err = unix.EpollCtl(b.efd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		b.pool.Release(idx)
		return nil, newOsError("epoll_ctl", fd, err)
	}
	return ctx, nil
}

// deregister releases the context slot. No EPOLL_CTL_DEL: the caller
// closes the descriptor right after, and the kernel drops a closed fd
// from the interest set on its own. Do not wrap dup'd descriptors.
func (b *epollBridge) deregister(ctx *fdContext) {
	ctx.gen++ // events queued for the old registration turn stale
	ctx.fib = FiberHandle{}
	b.pool.Release(int(ctx.idx))
}

// wait parks the calling fiber on ctx until the bridge resumes it,
// returning true; the caller retries its syscall afterwards (the wakeup
// may be spurious). Returns false without parking once the bridge is
// closed: nothing would ever deliver the resume.
func (b *epollBridge) wait(ctx *fdContext) bool {
	if b.closed {
		return false
	}
	if ctx.fib.IsValid() {
		panic("gofib: two fibers waiting on one fd")
	}
	ctx.fib = b.r.CurrentFiber()
	b.suspensions.Inc()
	b.r.SuspendCurrentFiber()
	// Cleared on every resumption, however it came about.
	ctx.fib = FiberHandle{}
	return true
}

// poll is the reactor's idle callback: one epoll_wait, then resume the
// fiber behind each event.
func (b *epollBridge) poll(d time.Duration) {
	if b.closed {
		// Stays registered after CloseBridge; fall back to the plain
		// idle sleep instead of polling a dead epoll fd.
		b.r.waitWake(d)
		return
	}
	n, err := unix.EpollWait(b.efd, b.events, durationToMsec(d))
	if err != nil {
		if err == unix.EINTR {
			return
		}
		logger.Error().Err(err).Msg("epoll_wait failed")
		panic("gofib: epoll_wait: " + err.Error())
	}
	for i := 0; i < n; i++ {
		ev := &b.events[i]
		if ev.Fd == wakerSentinel {
			b.waker.drain()
			continue
		}
		ctx := b.pool.Get(int(ev.Fd))
		if uint32(ev.Pad) != ctx.gen || !ctx.fib.IsValid() {
			// The registration died between the edge and the drain, or
			// no fiber is waiting on it.
			b.staleEvents.Inc()
			logger.Warn().Int32("slot", ev.Fd).Uint32("gen", uint32(ev.Pad)).
				Msg("stale epoll event, skipping")
			continue
		}
		b.r.ResumeFiber(ctx.fib)
	}
}

// durationToMsec converts the reactor's sleep budget to an epoll
// timeout. A positive sub-millisecond budget rounds up so a due timer is
// never busy-spun on; zero stays zero; DurationForever blocks.
func durationToMsec(d time.Duration) int {
	if d == DurationForever {
		return -1
	}
	if d <= 0 {
		return 0
	}
	ms := int(d / time.Millisecond)
	if d%time.Millisecond != 0 {
		ms++
	}
	return ms
}

// SuspensionCount reports how many times fibers parked on fd readiness.
func SuspensionCount() int64 {
	if bridge == nil {
		return 0
	}
	return bridge.suspensions.Load()
}

// StaleEventCount reports how many events were skipped because their
// registration had died or no fiber was waiting on it.
func StaleEventCount() int64 {
	if bridge == nil {
		return 0
	}
	return bridge.staleEvents.Load()
}
