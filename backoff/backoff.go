// Package backoff computes how long the sweeper should idle between empty
// polls. A strategy maps the count of consecutive empty sweeps to an extra
// delay added on top of the base poll interval.
package backoff

import (
	"math/rand/v2"
	"time"
)

// Strategy returns the idle delay after the given number of consecutive
// empty polls (1-indexed). Strategies must be safe for concurrent use.
type Strategy func(empties int) time.Duration

// Fixed idles the same amount no matter how long the queue stays empty.
func Fixed(d time.Duration) Strategy {
	return func(int) time.Duration { return d }
}

// Doubling starts at step and doubles per empty poll, up to ceiling.
func Doubling(step, ceiling time.Duration) Strategy {
	return func(empties int) time.Duration {
		d := step
		for i := 1; i < empties && d < ceiling; i++ {
			d *= 2
		}
		if ceiling > 0 && d > ceiling {
			return ceiling
		}
		return d
	}
}

// FullJitter draws a uniform delay in [0, Doubling(step, ceiling)]. An idle
// queue then wakes sweeper replicas at spread-out instants instead of in
// lockstep.
func FullJitter(step, ceiling time.Duration) Strategy {
	grow := Doubling(step, ceiling)
	return func(empties int) time.Duration {
		return time.Duration(rand.Int64N(int64(grow(empties)) + 1)) //nolint:gosec // jitter needs no crypto rand
	}
}

// Default is the sweeper's idle strategy: full jitter growing from 1s to a
// 30s ceiling.
func Default() Strategy {
	return FullJitter(time.Second, 30*time.Second)
}
