package gofib

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTscConversions(t *testing.T) {
	require.Equal(t, int64(time.Millisecond), DurationToCycles(time.Millisecond))
	require.Equal(t, 50*time.Microsecond, CyclesToDuration(DurationToCycles(50*time.Microsecond)))

	tp := TscTimePoint(1000)
	require.Equal(t, TscTimePoint(1000+int64(time.Microsecond)), tp.Add(time.Microsecond))
	require.Equal(t, int64(250), TscTimePoint(750).Sub(TscTimePoint(500)))
}

func TestTscNowMonotone(t *testing.T) {
	a := TscNow()
	time.Sleep(time.Millisecond)
	b := TscNow()
	require.Greater(t, b.Sub(a), int64(0))
}
