package gofib

import (
	"time"
)

// TscTimePoint is a monotonic instant expressed in cycles of the virtual
// TSC. The virtual TSC ticks at one cycle per nanosecond off the runtime
// monotonic clock, so cycle arithmetic is stable across hosts and needs
// no per-machine calibration.
type TscTimePoint int64

const cyclesPerSecond = int64(time.Second)

var tscEpoch = time.Now()

// TscNow returns the current instant of the virtual TSC.
func TscNow() TscTimePoint {
	return TscTimePoint(time.Since(tscEpoch))
}

// Add returns t shifted forward by d.
func (t TscTimePoint) Add(d time.Duration) TscTimePoint {
	return t + TscTimePoint(DurationToCycles(d))
}

// Sub returns t - o in cycles.
func (t TscTimePoint) Sub(o TscTimePoint) int64 {
	return int64(t - o)
}

// DurationToCycles converts a duration to virtual TSC cycles.
func DurationToCycles(d time.Duration) int64 {
	return int64(d) * (cyclesPerSecond / int64(time.Second))
}

// CyclesToDuration converts virtual TSC cycles to a duration.
func CyclesToDuration(c int64) time.Duration {
	return time.Duration(c / (cyclesPerSecond / int64(time.Second)))
}
