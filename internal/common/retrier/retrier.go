// Package retrier runs bounded fixed-delay retries on top of juju/retry.
package retrier

import (
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
)

// Policy is a fixed-delay retry policy.
type Policy struct {
	Attempts int
	Delay    time.Duration
	Clock    clock.Clock
}

func NewPolicy(attempts int, delay time.Duration) Policy {
	return Policy{Attempts: attempts, Delay: delay, Clock: clock.WallClock}
}

// Do calls fn until it succeeds or the attempts are used up. notify, when
// set, sees every failed attempt (1-based), including the last. The returned
// error is the last error of fn, unwrapped from juju/retry's exhaustion error.
func (p Policy) Do(fn func() error, notify func(err error, attempt int)) (int, error) {
	attempts := 0
	args := retry.CallArgs{
		Func: func() error {
			attempts++
			return fn()
		},
		NotifyFunc: notify,
		Attempts:   p.attempts(),
		Delay:      p.delay(),
		Clock:      p.clock(),
	}

	err := retry.Call(args)
	if retry.IsAttemptsExceeded(err) {
		return attempts, retry.LastError(err)
	}
	return attempts, err
}

func (p Policy) attempts() int {
	if p.Attempts < 1 {
		return 1
	}
	return p.Attempts
}

// juju/retry rejects a zero delay.
func (p Policy) delay() time.Duration {
	if p.Delay <= 0 {
		return time.Nanosecond
	}
	return p.Delay
}

func (p Policy) clock() clock.Clock {
	if p.Clock == nil {
		return clock.WallClock
	}
	return p.Clock
}
