package gofib

import (
	"errors"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/eapache/queue"
	"go.uber.org/atomic"
)

// DurationForever is the sleep budget handed to idle callbacks when the
// reactor has no pending timer.
const DurationForever = time.Duration(math.MaxInt64)

// IdleCallback runs on the reactor goroutine when no fiber is runnable.
// The argument is the longest the callback may block before the next
// timer is due.
type IdleCallback func(time.Duration)

// Reactor schedules fibers cooperatively. Each fiber runs on its own
// goroutine, but exactly one fiber executes at a time; a fiber runs until
// it suspends or returns. Timers ride the cascading wheel; I/O readiness arrives
// through idle callbacks (see OpenBridge).
type Reactor struct {
	noCopy

	opts Options

	fibers  []*fiber
	freeIdx []int32
	live    int

	runq    *queue.Queue // FiberHandle FIFO
	runqMtx sync.Mutex
	wakeCh  chan struct{}
	waker   *Notify // set while the bridge is open

	current *fiber
	yield   chan struct{} // fiber -> scheduler hand-off

	idleCbs []IdleCallback
	wheel   *TimerWheel

	open atomic.Bool
}

// NewReactor returns an instance.
func NewReactor(optL ...Option) (*Reactor, error) {
	opts := setOptions(optL...)
	r := &Reactor{
		opts:   *opts,
		runq:   queue.New(),
		wakeCh: make(chan struct{}, 1),
		yield:  make(chan struct{}),
	}
	r.wheel = NewTimerWheel(DurationToCycles(opts.timerResolution),
		opts.timerBins, opts.timerLevels, TscNow())
	return r, nil
}

// IsOpen reports whether Run is executing the scheduling loop.
func (r *Reactor) IsOpen() bool {
	return r.open.Load()
}

// Wheel exposes the reactor's timer wheel for inspection. The wheel
// itself must only be driven from the reactor goroutine.
func (r *Reactor) Wheel() *TimerWheel {
	return r.wheel
}

// Spawn creates a fiber executing fn and queues it as runnable. Call
// from the reactor goroutine, a fiber, or before Run.
func (r *Reactor) Spawn(fn func()) FiberHandle {
	f := r.allocFiber()
	f.fn = fn
	f.state = fiberRunnable
	r.live++
	go r.fiberMain(f)
	h := f.handle()
	r.pushRunnable(h)
	return h
}

// CurrentFiber returns the running fiber's handle, or the zero handle
// when called outside fiber context.
func (r *Reactor) CurrentFiber() FiberHandle {
	if r.current == nil {
		return FiberHandle{}
	}
	return r.current.handle()
}

// SuspendCurrentFiber parks the running fiber until some party resumes
// it. Wakeups may be spurious: re-check the awaited condition.
func (r *Reactor) SuspendCurrentFiber() {
	f := r.current
	if f == nil {
		panic("gofib: suspend with no fiber running")
	}
	f.state = fiberSuspended
	r.yield <- struct{}{}
	<-f.park
}

// ResumeFiber queues the fiber as runnable. Safe from any goroutine; a
// stale handle is a no-op. Resuming a fiber that is not suspended gives
// it one spurious wakeup at its next suspension.
func (r *Reactor) ResumeFiber(h FiberHandle) {
	if h.r != r {
		return
	}
	r.pushRunnable(h)
	r.wake()
}

// RegisterIdleCallback adds fn to the set run whenever no fiber is
// runnable.
func (r *Reactor) RegisterIdleCallback(fn IdleCallback) {
	r.idleCbs = append(r.idleCbs, fn)
}

// Sleep suspends the current fiber for at least d via the timer wheel,
// unless another party resumes it first; an early wake returns at once
// and cancels the pending timer.
func (r *Reactor) Sleep(d time.Duration) error {
	f := r.current
	if f == nil {
		panic("gofib: Sleep with no fiber running")
	}
	e := &f.sleepEntry
	e.Deadline = TscNow().Add(d)
	e.Value = f.handle()
	if err := r.wheel.Insert(e); err != nil {
		return err
	}
	r.SuspendCurrentFiber()
	if e.Pending() { // woken early by an external resume
		r.wheel.Remove(e)
	}
	return nil
}

// Run executes the scheduling loop on the calling goroutine until
// Shutdown, or until every fiber has exited. Fibers still parked when
// Shutdown cuts the loop short are abandoned.
func (r *Reactor) Run() error {
	if !r.open.CompareAndSwap(false, true) {
		return errors.New("gofib: reactor already running")
	}
	sealFls()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for r.open.Load() {
		now := TscNow()
		for e := r.wheel.Pop(now); e != nil; e = r.wheel.Pop(now) {
			if h, ok := e.Value.(FiberHandle); ok {
				r.pushRunnable(h)
			}
		}
		if f := r.nextRunnable(); f != nil {
			r.dispatch(f)
			continue
		}
		if r.live == 0 {
			break
		}
		d := r.sleepBudget(now)
		if len(r.idleCbs) > 0 {
			for _, cb := range r.idleCbs {
				cb(d)
			}
		} else {
			r.waitWake(d)
		}
	}
	r.open.Store(false)
	return nil
}

// Shutdown stops the loop after the current dispatch completes. Safe
// from any goroutine.
func (r *Reactor) Shutdown() {
	r.open.Store(false)
	r.wake()
}

// dispatch hands the thread to f and blocks until f suspends or exits.
func (r *Reactor) dispatch(f *fiber) {
	f.state = fiberRunning
	r.current = f
	flsSwitchTo(&f.fls)
	f.park <- struct{}{}
	<-r.yield
	r.current = nil
	flsSwitchToNone()
}

func (r *Reactor) fiberMain(f *fiber) {
	<-f.park
	f.fn()
	r.exitFiber(f)
	r.yield <- struct{}{}
}

// exitFiber retires f's slab slot. Runs on f's goroutine while the
// scheduler is blocked on yield, so access is exclusive.
func (r *Reactor) exitFiber(f *fiber) {
	f.gen++ // outstanding handles go stale here
	f.state = fiberIdle
	f.fn = nil
	r.freeIdx = append(r.freeIdx, f.idx)
	r.live--
}

func (r *Reactor) allocFiber() *fiber {
	if n := len(r.freeIdx); n > 0 {
		idx := r.freeIdx[n-1]
		r.freeIdx = r.freeIdx[:n-1]
		f := r.fibers[idx]
		f.fls.reset()
		return f
	}
	f := &fiber{
		idx:  int32(len(r.fibers)),
		park: make(chan struct{}),
		r:    r,
	}
	f.fls.reset()
	r.fibers = append(r.fibers, f)
	return f
}

func (r *Reactor) fiberAt(idx int32, gen uint32) *fiber {
	if idx < 0 || int(idx) >= len(r.fibers) {
		return nil
	}
	f := r.fibers[idx]
	if f.gen != gen || f.state == fiberIdle {
		return nil
	}
	return f
}

func (r *Reactor) pushRunnable(h FiberHandle) {
	r.runqMtx.Lock()
	r.runq.Add(h)
	r.runqMtx.Unlock()
}

// nextRunnable pops handles until one resolves to a dispatchable fiber.
func (r *Reactor) nextRunnable() *fiber {
	for {
		r.runqMtx.Lock()
		if r.runq.Length() == 0 {
			r.runqMtx.Unlock()
			return nil
		}
		h := r.runq.Remove().(FiberHandle)
		r.runqMtx.Unlock()

		f := h.resolve()
		if f == nil { // exited since it was queued
			continue
		}
		if f.state != fiberRunnable && f.state != fiberSuspended {
			continue
		}
		return f
	}
}

// sleepBudget converts the wheel's next-entry estimate into how long the
// reactor may block.
func (r *Reactor) sleepBudget(now TscTimePoint) time.Duration {
	cycles := r.wheel.CyclesTillNextEntry()
	if cycles < 0 {
		return DurationForever
	}
	delta := r.wheel.BaseTime().Sub(now) + cycles
	if delta <= 0 {
		return 0
	}
	return CyclesToDuration(delta)
}

// wake unblocks an idle scheduler, whether it sleeps on the wake channel
// or inside epoll_wait.
func (r *Reactor) wake() {
	select {
	case r.wakeCh <- struct{}{}:
	default:
	}
	if w := r.waker; w != nil {
		w.Notify()
	}
}

func (r *Reactor) waitWake(d time.Duration) {
	if d == DurationForever {
		<-r.wakeCh
		return
	}
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	select {
	case <-r.wakeCh:
		t.Stop()
	case <-t.C:
	}
}
