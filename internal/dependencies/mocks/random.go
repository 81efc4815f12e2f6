package mocks

import (
	"github.com/mcoot/discordgate/internal/dependencies/random"
)

// MockRandom is a mock implementation of Random for testing
type MockRandom struct {
	// IntnResults is a queue of results to return from Intn
	IntnResults []int
	intnIndex   int

	// DigitsResults is a queue of results to return from Digits
	DigitsResults []string
	digitsIndex   int
}

// Ensure MockRandom implements Random
var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a new MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// Intn returns the next queued result, or 0 if none remaining
func (r *MockRandom) Intn(n int) int {
	if r.intnIndex >= len(r.IntnResults) {
		return 0
	}
	result := r.IntnResults[r.intnIndex]
	r.intnIndex++
	return result
}

// Digits returns the next queued result, or a string of zeros if none remaining
func (r *MockRandom) Digits(length int) string {
	if r.digitsIndex >= len(r.DigitsResults) {
		result := make([]byte, length)
		for i := range result {
			result[i] = '0'
		}
		return string(result)
	}
	result := r.DigitsResults[r.digitsIndex]
	r.digitsIndex++
	return result
}

// QueueDigits adds values to the Digits result queue
func (r *MockRandom) QueueDigits(values ...string) {
	r.DigitsResults = append(r.DigitsResults, values...)
}
