package gofib

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	flsCounter = AllocFlsSlot[int64](7)
	flsFlags   = AllocFlsSlot[uint8](0)
	flsPair    = AllocFlsSlot[[2]int32]([2]int32{-1, 1})
)

func TestFlsSlotLayout(t *testing.T) {
	// Offsets are assigned monotonically and aligned for the type.
	require.Equal(t, 0, flsCounter.off%8)
	require.Greater(t, flsFlags.off, flsCounter.off)
	require.Equal(t, 0, flsPair.off%4)
	require.Greater(t, flsPair.off, flsFlags.off)
}

func TestFlsResetRoundTrip(t *testing.T) {
	var a FlsArea
	a.reset()
	flsSwitchTo(&a)
	defer flsSwitchToNone()

	require.Equal(t, int64(7), *flsCounter.Get())
	require.Equal(t, [2]int32{-1, 1}, *flsPair.Get())

	*flsCounter.Get() = 42
	require.Equal(t, int64(42), *flsCounter.Get())

	a.reset()
	require.Equal(t, int64(7), *flsCounter.Get())
}

func TestFlsPerFiberIsolation(t *testing.T) {
	r, err := NewReactor()
	require.NoError(t, err)

	vals := make([]int64, 0, 4)
	for i := 0; i < 2; i++ {
		i := i
		r.Spawn(func() {
			vals = append(vals, *flsCounter.Get()) // initial value
			*flsCounter.Get() = int64(100 + i)
			r.SuspendCurrentFiber()
			vals = append(vals, *flsCounter.Get()) // own value survived
		})
	}
	r.Spawn(func() {
		// Wake both writers; each must still see only its own slot.
		for _, f := range r.fibers[:2] {
			r.ResumeFiber(f.handle())
		}
	})
	require.NoError(t, r.Run())
	require.Equal(t, []int64{7, 7, 100, 101}, vals)
}

func TestFlsCrossFiberSet(t *testing.T) {
	r, err := NewReactor()
	require.NoError(t, err)

	var observed, own int64
	var staleAfterExit bool
	var hA FiberHandle
	hA = r.Spawn(func() {
		for *flsCounter.Get() != 23 {
			r.SuspendCurrentFiber()
		}
		observed = *flsCounter.Get()
	})
	r.Spawn(func() {
		*flsCounter.Get() = 5 // this fiber's own value

		if p := flsCounter.InFiber(hA); p != nil {
			*p = 23
		}
		r.ResumeFiber(hA)

		r.Sleep(time.Millisecond) // let A run and exit
		own = *flsCounter.Get()
		staleAfterExit = flsCounter.InFiber(hA) == nil
	})
	require.NoError(t, r.Run())
	require.Equal(t, int64(23), observed)
	require.Equal(t, int64(5), own)
	require.True(t, staleAfterExit)
}

func TestFlsRecycledFiberResets(t *testing.T) {
	r, err := NewReactor()
	require.NoError(t, err)

	var first, second int64
	r.Spawn(func() {
		first = *flsCounter.Get()
		*flsCounter.Get() = 99
	})
	require.NoError(t, r.Run())

	// The second fiber reuses the first one's slab slot.
	r2 := r
	r2.Spawn(func() {
		second = *flsCounter.Get()
	})
	require.NoError(t, r2.Run())

	require.Equal(t, int64(7), first)
	require.Equal(t, int64(7), second)
}

func TestFlsAccessOutsideFiberPanics(t *testing.T) {
	flsSwitchToNone()
	require.Panics(t, func() { _ = *flsCounter.Get() })
}
