package gofib

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReactorRunOrder(t *testing.T) {
	r, err := NewReactor()
	require.NoError(t, err)

	var order []int
	for i := 0; i < 3; i++ {
		i := i
		r.Spawn(func() {
			order = append(order, i)
		})
	}
	require.False(t, r.IsOpen())
	require.NoError(t, r.Run())
	require.Equal(t, []int{0, 1, 2}, order)
	require.False(t, r.IsOpen())
}

func TestReactorSuspendResume(t *testing.T) {
	r, err := NewReactor()
	require.NoError(t, err)

	var steps []string
	var h FiberHandle
	h = r.Spawn(func() {
		steps = append(steps, "a1")
		r.SuspendCurrentFiber()
		steps = append(steps, "a2")
	})
	r.Spawn(func() {
		steps = append(steps, "b")
		r.ResumeFiber(h)
	})
	require.NoError(t, r.Run())
	require.Equal(t, []string{"a1", "b", "a2"}, steps)
}

func TestReactorStaleResumeIsNoop(t *testing.T) {
	r, err := NewReactor()
	require.NoError(t, err)

	h := r.Spawn(func() {})
	require.NoError(t, r.Run())
	require.False(t, h.IsValid())
	r.ResumeFiber(h) // gone, nothing to do
	r.ResumeFiber(FiberHandle{})
}

func TestReactorSleep(t *testing.T) {
	r, err := NewReactor(TimerResolution(time.Millisecond))
	require.NoError(t, err)

	var elapsed time.Duration
	r.Spawn(func() {
		start := time.Now()
		r.Sleep(5 * time.Millisecond)
		elapsed = time.Since(start)
	})
	require.NoError(t, r.Run())
	require.GreaterOrEqual(t, elapsed, 5*time.Millisecond)
}

func TestReactorSleepOrdering(t *testing.T) {
	r, err := NewReactor(TimerResolution(time.Millisecond))
	require.NoError(t, err)

	var order []int
	delays := []time.Duration{9 * time.Millisecond, 3 * time.Millisecond, 6 * time.Millisecond}
	for i, d := range delays {
		i, d := i, d
		r.Spawn(func() {
			r.Sleep(d)
			order = append(order, i)
		})
	}
	require.NoError(t, r.Run())
	require.Equal(t, []int{1, 2, 0}, order)
}

func TestReactorEarlyWakeCancelsTimer(t *testing.T) {
	r, err := NewReactor()
	require.NoError(t, err)

	var h FiberHandle
	h = r.Spawn(func() {
		r.Sleep(time.Minute) // woken long before this
	})
	r.Spawn(func() {
		r.ResumeFiber(h)
	})
	done := make(chan error, 1)
	go func() { done <- r.Run() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("reactor still waiting on a cancelled sleep")
	}
	require.Equal(t, 0, r.wheel.Size())
}

func TestReactorShutdown(t *testing.T) {
	r, err := NewReactor()
	require.NoError(t, err)

	r.Spawn(func() {
		for {
			r.SuspendCurrentFiber() // parked until shutdown abandons it
		}
	})
	go func() {
		time.Sleep(10 * time.Millisecond)
		r.Shutdown()
	}()
	done := make(chan error, 1)
	go func() { done <- r.Run() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not stop the reactor")
	}
}

func TestReactorSpawnFromFiber(t *testing.T) {
	r, err := NewReactor()
	require.NoError(t, err)

	var child bool
	r.Spawn(func() {
		r.Spawn(func() { child = true })
	})
	require.NoError(t, r.Run())
	require.True(t, child)
}

func TestReactorCurrentFiber(t *testing.T) {
	r, err := NewReactor()
	require.NoError(t, err)
	require.False(t, r.CurrentFiber().IsValid())

	var self FiberHandle
	h := r.Spawn(func() {
		self = r.CurrentFiber()
	})
	require.NoError(t, r.Run())
	require.Equal(t, h, self)
}

func TestReactorIdleCallbackBudget(t *testing.T) {
	r, err := NewReactor(TimerResolution(time.Millisecond))
	require.NoError(t, err)

	budgets := make([]time.Duration, 0, 8)
	r.RegisterIdleCallback(func(d time.Duration) {
		budgets = append(budgets, d)
		if d == DurationForever {
			d = time.Millisecond
		}
		time.Sleep(d) // stand-in for epoll_wait
	})
	r.Spawn(func() {
		r.Sleep(3 * time.Millisecond)
	})
	require.NoError(t, r.Run())

	require.NotEmpty(t, budgets)
	for _, d := range budgets {
		require.NotEqual(t, DurationForever, d) // a timer was always pending
		require.LessOrEqual(t, d, 4*time.Millisecond)
	}
}
