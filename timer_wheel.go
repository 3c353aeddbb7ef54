package gofib

import (
	"math/bits"

	"go.uber.org/atomic"
)

// TimerEntry is a caller-owned payload linked into the wheel. The wheel
// never allocates or frees entries; it only threads them through its
// bins. Reuse an entry only after it popped or was removed.
type TimerEntry struct {
	prev *TimerEntry
	next *TimerEntry
	list *entryList

	// Deadline is the instant the entry becomes due, in virtual TSC
	// cycles.
	Deadline TscTimePoint

	// Value is an opaque payload handed back to the popper.
	Value any
}

// Pending reports whether the entry is currently linked into a wheel.
func (e *TimerEntry) Pending() bool {
	return e.list != nil
}

// TimerWheel is a cascading hierarchical time queue. Level-0 bins are
// resolution cycles wide and cover the next numBins bins; each higher
// level's bins are numBins times wider. Insert and pop are O(1)
// amortized: every numBins level-0 advances, one higher-level bin is
// drained and its entries re-sorted into the levels below.
//
// The wheel is single-owner state; the reactor drives it from its
// scheduling goroutine only. Only the statistics counters may be read
// from outside.
type TimerWheel struct {
	noCopy

	numBins   int
	numLevels int
	binShift  uint
	binMask   uint64

	resolution int64 // level-0 bin width in cycles
	spanInBins int64

	baseTime   TscTimePoint // instant the current level-0 window started
	poppedTime TscTimePoint // end of the current level-0 bin
	offset     uint64       // level-0 bins advanced since baseTime epoch

	bins [][]entryList
	size int

	inserted atomic.Int64
	popped   atomic.Int64
	cascades []atomic.Int64
}

// NewTimerWheel returns a wheel of numLevels levels of numBins bins,
// with level-0 bins resolution cycles wide, based at start. numBins must
// be a power of two.
func NewTimerWheel(resolution int64, numBins, numLevels int, start TscTimePoint) *TimerWheel {
	if numBins < 2 || numBins&(numBins-1) != 0 {
		panic("gofib: timer wheel numBins must be a power of two >= 2")
	}
	if numLevels < 1 {
		panic("gofib: timer wheel numLevels < 1")
	}
	if resolution < 1 {
		panic("gofib: timer wheel resolution < 1")
	}
	w := &TimerWheel{
		numBins:    numBins,
		numLevels:  numLevels,
		binShift:   uint(bits.TrailingZeros(uint(numBins))),
		binMask:    uint64(numBins - 1),
		resolution: resolution,
		baseTime:   start,
		poppedTime: start,
		bins:       make([][]entryList, numLevels),
		cascades:   make([]atomic.Int64, numLevels),
	}
	// spanInBins = numBins + numBins^2 + ... + numBins^numLevels
	pow := int64(1)
	for i := 0; i < numLevels; i++ {
		pow *= int64(numBins)
		w.spanInBins += pow
	}
	for i := range w.bins {
		w.bins[i] = make([]entryList, numBins)
	}
	return w
}

// Insert links e into the wheel. Fails with *TooFarAheadError when the
// deadline lies beyond the wheel span; already-due entries go into the
// current bin and pop next.
func (w *TimerWheel) Insert(e *TimerEntry) error {
	if err := w.place(e); err != nil {
		return err
	}
	w.size++
	w.inserted.Inc()
	return nil
}

// place picks e's bin relative to the current window. Shared by Insert
// and cascade so re-sorted entries follow the same arithmetic.
func (w *TimerWheel) place(e *TimerEntry) error {
	if e.Deadline <= w.poppedTime {
		w.bins[0][w.offset&w.binMask].append(e)
		return nil
	}
	delta := e.Deadline.Sub(w.baseTime)
	idx := (delta + w.resolution - 1) / w.resolution
	for lvl := 0; lvl < w.numLevels; lvl++ {
		if idx < int64(w.numBins) {
			var bin uint64
			if lvl == 0 {
				// baseTime marks the instant offset last wrapped, so idx
				// is already absolute within the window.
				bin = uint64(idx) & w.binMask
			} else {
				cursor := w.offset >> (w.binShift * uint(lvl))
				bin = (cursor + uint64(idx)) & w.binMask
			}
			w.bins[lvl][bin].append(e)
			return nil
		}
		idx = idx/int64(w.numBins) - 1
	}
	return &TooFarAheadError{
		TimePoint:  e.Deadline,
		BaseTime:   w.baseTime,
		PoppedTime: w.poppedTime,
		Offset:     w.offset,
		Resolution: w.resolution,
	}
}

// Pop returns the next due entry, or nil once every entry at or before
// now is out. Entries sharing a bin pop in insertion order.
func (w *TimerWheel) Pop(now TscTimePoint) *TimerEntry {
	for {
		bin := &w.bins[0][w.offset&w.binMask]
		if head := bin.head; head != nil && head.Deadline <= now {
			bin.unlink(head)
			w.size--
			w.popped.Inc()
			return head
		}
		if now < w.poppedTime {
			return nil
		}
		w.offset++
		w.poppedTime += TscTimePoint(w.resolution)
		if w.offset&w.binMask == 0 {
			w.baseTime = w.poppedTime
			w.cascade(1)
		}
	}
}

// cascade drains the level bin the cursor just moved past and re-places
// its entries against the rebased window. Entries from level 1 always
// land lower; an entry drained from level 2 or above can land in the
// same level's next bin again, to be drained one cursor step later.
func (w *TimerWheel) cascade(level int) {
	if level >= w.numLevels {
		return
	}
	cursor := w.offset >> (w.binShift * uint(level))
	bin := &w.bins[level][(cursor-1)&w.binMask]
	w.cascades[level].Inc()
	for e := bin.popHead(); e != nil; e = bin.popHead() {
		if err := w.place(e); err != nil {
			panic("gofib: cascade re-place failed: " + err.Error())
		}
	}
	if !bin.empty() {
		panic("gofib: cascade left a non-empty bin")
	}
	if cursor&w.binMask == 0 {
		w.cascade(level + 1)
	}
}

// Remove unlinks a pending entry, cancelling it. No-op when e is not
// linked.
func (w *TimerWheel) Remove(e *TimerEntry) {
	if e.list == nil {
		return
	}
	e.list.unlink(e)
	w.size--
}

// CyclesTillNextEntry returns the cycle delta from baseTime to the start
// of the first occupied bin in wall order, or -1 when the wheel is
// empty. The value is a lower bound on the first deadline, so it is safe
// as a sleep budget, with one exception: the result never goes below 0,
// so when the occupied bin is level-0 bin 0 it reports 0 although its
// entries may fall due up to one bin width before baseTime.
func (w *TimerWheel) CyclesTillNextEntry() int64 {
	for j := w.offset & w.binMask; j < uint64(w.numBins); j++ {
		if !w.bins[0][j].empty() {
			if j == 0 {
				return 0
			}
			return int64(j-1) * w.resolution
		}
	}
	// A level-i bin is placed against a base no earlier than the instant
	// that level's cursor last moved, which for i >= 2 can precede
	// baseTime; so each level yields a bound and the earliest one wins.
	best := int64(-1)
	for lvl := 1; lvl < w.numLevels; lvl++ {
		cursor := w.offset >> (w.binShift * uint(lvl))
		for d := uint64(0); d < uint64(w.numBins); d++ {
			if w.bins[lvl][(cursor+d)&w.binMask].empty() {
				continue
			}
			// Minimum level-0 index that maps to (lvl, d): invert
			// idx -> idx/numBins - 1 lvl times.
			v := int64(d)
			for k := 0; k < lvl; k++ {
				v = (v + 1) * int64(w.numBins)
			}
			v += int64(cursor<<(w.binShift*uint(lvl))) - int64(w.offset&^w.binMask)
			if best < 0 || v-1 < best {
				best = v - 1
			}
			break
		}
	}
	if best >= 0 {
		return best * w.resolution
	}
	return -1
}

// Size reports how many entries are linked into the wheel.
func (w *TimerWheel) Size() int {
	return w.size
}

// BaseTime returns the start instant of the current level-0 window.
func (w *TimerWheel) BaseTime() TscTimePoint {
	return w.baseTime
}

// PoppedTime returns the end of the current level-0 bin. Every entry due
// at or before it has either popped or waits in the current bin.
func (w *TimerWheel) PoppedTime() TscTimePoint {
	return w.poppedTime
}

// Resolution returns the level-0 bin width in cycles.
func (w *TimerWheel) Resolution() int64 {
	return w.resolution
}

// SpanInBins returns the wheel's forward span in level-0 bins.
func (w *TimerWheel) SpanInBins() int64 {
	return w.spanInBins
}

// InsertedCount returns the number of successful Inserts.
func (w *TimerWheel) InsertedCount() int64 {
	return w.inserted.Load()
}

// PoppedCount returns the number of entries handed out by Pop.
func (w *TimerWheel) PoppedCount() int64 {
	return w.popped.Load()
}

// CascadeCount returns how many times the given level has cascaded.
// Level 0 never cascades.
func (w *TimerWheel) CascadeCount(level int) int64 {
	return w.cascades[level].Load()
}
