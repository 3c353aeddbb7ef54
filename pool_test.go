package gofib

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFixedPoolAllocRelease(t *testing.T) {
	p := NewFixedPool[int](3)
	require.Equal(t, 3, p.Cap())
	require.Equal(t, 0, p.InUse())

	seen := map[int]*int{}
	for i := 0; i < 3; i++ {
		idx, v, err := p.Alloc()
		require.NoError(t, err)
		require.True(t, p.Live(idx))
		seen[idx] = v
	}
	require.Equal(t, 3, p.InUse())
	require.Len(t, seen, 3)

	_, _, err := p.Alloc()
	require.True(t, errors.Is(err, ErrResourceExhausted))

	p.Release(1)
	require.False(t, p.Live(1))
	idx, v, err := p.Alloc()
	require.NoError(t, err)
	require.Equal(t, 1, idx)
	require.Same(t, seen[1], v) // slab addresses are stable
}

func TestFixedPoolOddCapacity(t *testing.T) {
	// Capacity below the bitmap's byte granularity must still cap hard.
	p := NewFixedPool[int](5)
	for i := 0; i < 5; i++ {
		_, _, err := p.Alloc()
		require.NoError(t, err)
	}
	_, _, err := p.Alloc()
	require.True(t, errors.Is(err, ErrResourceExhausted))
}

func TestFixedPoolBadRelease(t *testing.T) {
	p := NewFixedPool[int](2)
	require.Panics(t, func() { p.Release(0) }) // never allocated
	require.Panics(t, func() { p.Release(7) })
}
