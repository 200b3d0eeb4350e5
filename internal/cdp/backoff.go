package cdp

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// backoffUnit is the time unit of the discovery backoff formula.
const backoffUnit = time.Millisecond

// maxBackoffAttempt is the largest attempt index whose delay fits in a
// time.Duration. Larger indices saturate at this value.
const maxBackoffAttempt = 18

// MaxAttemptsLimit is the largest retry bound for which Delay is strictly
// increasing over every attempt index in [0, bound).
const MaxAttemptsLimit = maxBackoffAttempt + 1

// Delay returns the wait inserted after a failed discovery attempt:
// 5^attempt * 2 milliseconds. It is strictly increasing up to
// maxBackoffAttempt and saturates beyond it.
func Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > maxBackoffAttempt {
		attempt = maxBackoffAttempt
	}
	d := time.Duration(2)
	for i := 0; i < attempt; i++ {
		d *= 5
	}
	return d * backoffUnit
}

// Schedule yields Delay(0), Delay(1), ... as a backoff.BackOff.
// It never returns backoff.Stop on its own; bound it with
// backoff.WithMaxRetries.
type Schedule struct {
	attempt int
}

var _ backoff.BackOff = (*Schedule)(nil)

// NewSchedule returns a Schedule positioned at attempt 0.
func NewSchedule() *Schedule {
	return &Schedule{}
}

// NextBackOff returns the delay for the current attempt and advances.
func (s *Schedule) NextBackOff() time.Duration {
	d := Delay(s.attempt)
	s.attempt++
	return d
}

// Reset rewinds the schedule to attempt 0.
func (s *Schedule) Reset() {
	s.attempt = 0
}
