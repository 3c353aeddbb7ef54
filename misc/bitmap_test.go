package misc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBitmapSetUnset(t *testing.T) {
	b := NewBitmap(10)
	require.Equal(t, int64(16), b.Size()) // rounds up to whole bytes

	require.False(t, b.IsSet(3))
	require.True(t, b.Set(3))
	require.True(t, b.IsSet(3))
	require.True(t, b.Unset(3))
	require.False(t, b.IsSet(3))

	require.False(t, b.Set(16)) // out of range
	require.False(t, b.IsSet(16))
}

func TestBitmapFirstUnset(t *testing.T) {
	b := NewBitmap(16)
	require.Equal(t, int64(0), b.FirstUnset())
	for i := int64(0); i < 9; i++ {
		b.Set(i)
	}
	require.Equal(t, int64(9), b.FirstUnset())
	for i := int64(9); i < 16; i++ {
		b.Set(i)
	}
	require.Equal(t, int64(-1), b.FirstUnset())

	b.Unset(11)
	require.Equal(t, int64(11), b.FirstUnset())
}
