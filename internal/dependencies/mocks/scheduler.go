package mocks

import (
	"sync"
	"time"

	"github.com/mcoot/discordgate/internal/dependencies/scheduler"
)

// MockScheduler is a mock implementation of Scheduler for testing.
// Scheduled callbacks do not run until FireAll is called.
type MockScheduler struct {
	mu      sync.Mutex
	nextID  int
	pending map[int]*scheduledCall
}

type scheduledCall struct {
	Delay time.Duration
	Fn    func()
}

// Ensure MockScheduler implements Scheduler
var _ scheduler.Scheduler = (*MockScheduler)(nil)

// NewMockScheduler creates a new MockScheduler
func NewMockScheduler() *MockScheduler {
	return &MockScheduler{pending: make(map[int]*scheduledCall)}
}

// ScheduleOnce records the callback without running it
func (s *MockScheduler) ScheduleOnce(delay time.Duration, fn func()) scheduler.CancelFunc {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.pending[id] = &scheduledCall{Delay: delay, Fn: fn}

	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		_, ok := s.pending[id]
		delete(s.pending, id)
		return ok
	}
}

// PendingCount returns the number of callbacks that have not fired or
// been cancelled
func (s *MockScheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// FireAll runs every pending callback in scheduling order and clears them
func (s *MockScheduler) FireAll() {
	s.mu.Lock()
	calls := make([]*scheduledCall, 0, len(s.pending))
	for id := 0; id < s.nextID; id++ {
		if call, ok := s.pending[id]; ok {
			calls = append(calls, call)
			delete(s.pending, id)
		}
	}
	s.mu.Unlock()

	for _, call := range calls {
		call.Fn()
	}
}
