package gofib

import (
	"time"
)

// Detecting illegal struct copies using `go vet`
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Options collects reactor tunables.
type Options struct {
	// fd bridge options
	maxConcurrentFds int // fd context pool capacity, a hard cap
	numBatchEvents   int // epoll_wait batch size

	// timer wheel options
	timerResolution time.Duration
	timerBins       int // MUST be a power of two
	timerLevels     int
}

type Option func(*Options)

func setOptions(optL ...Option) *Options {
	//= default options
	opts := &Options{
		maxConcurrentFds: 512,
		numBatchEvents:   32,
		timerResolution:  50 * time.Microsecond,
		timerBins:        256,
		timerLevels:      3,
	}
	for _, opt := range optL {
		opt(opts)
	}
	return opts
}

// MaxConcurrentFds caps the fd context pool. Registration beyond the cap
// fails with ErrResourceExhausted rather than growing the pool.
func MaxConcurrentFds(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.maxConcurrentFds = n
		}
	}
}

// NumBatchEvents sets how many ready events one epoll_wait call fetches.
func NumBatchEvents(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.numBatchEvents = n
		}
	}
}

// TimerResolution sets the width of a level-0 wheel bin.
func TimerResolution(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.timerResolution = d
		}
	}
}

// TimerBins sets the number of bins per wheel level; power of two.
func TimerBins(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.timerBins = n
		}
	}
}

// TimerLevels sets the number of wheel levels.
func TimerLevels(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.timerLevels = n
		}
	}
}
