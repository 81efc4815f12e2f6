package scheduler

import "time"

// CancelFunc cancels a scheduled callback. It is safe to call more than
// once and after the callback has fired; it reports whether the callback
// was prevented from running.
type CancelFunc func() bool

// Scheduler provides deferred one-shot execution that can be mocked for
// testing. Callbacks run on their own goroutine.
type Scheduler interface {
	// ScheduleOnce runs fn after delay unless cancelled first
	ScheduleOnce(delay time.Duration, fn func()) CancelFunc
}

// RealScheduler implements Scheduler using time.AfterFunc
type RealScheduler struct{}

// Ensure RealScheduler implements Scheduler
var _ Scheduler = (*RealScheduler)(nil)

// New creates a new RealScheduler
func New() *RealScheduler {
	return &RealScheduler{}
}

// ScheduleOnce runs fn after delay unless cancelled first
func (s *RealScheduler) ScheduleOnce(delay time.Duration, fn func()) CancelFunc {
	t := time.AfterFunc(delay, fn)
	return t.Stop
}
