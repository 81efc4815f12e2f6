package abuse

import (
	"sort"
	"sync"
	"time"

	"github.com/mcoot/discordgate/internal/dependencies/clock"
	"github.com/mcoot/discordgate/internal/model"
)

// Guard tracks verification failures per source address and temporarily
// blocks addresses that fail too often. Blocking is keyed by address
// only, not player identity: several accounts behind one NAT or proxy
// share a failure budget, and one abusive client can starve the others.
// That trade-off is accepted rather than worked around.
//
// A block clears on the first admission check at or after its expiry,
// which also resets the failure count. A successful verification does not
// reset the count early; an address that keeps timing out stays on the
// same budget until a block runs its course.
type Guard struct {
	clock         clock.Clock
	maxFailures   int
	blockDuration time.Duration

	mu           sync.Mutex
	failures     map[string]int
	blockedUntil map[string]time.Time
}

// Decision is the outcome of an admission check
type Decision struct {
	Blocked bool
	Until   time.Time
}

// New creates a new abuse guard. maxFailures is how many failures install
// a block; blockDuration is how long the block lasts.
func New(clk clock.Clock, maxFailures int, blockDuration time.Duration) *Guard {
	return &Guard{
		clock:         clk,
		maxFailures:   maxFailures,
		blockDuration: blockDuration,
		failures:      make(map[string]int),
		blockedUntil:  make(map[string]time.Time),
	}
}

// CheckAdmission decides whether a connection from the address may
// proceed. An expired block is cleared on the way through, failure count
// included, so the address starts its next cycle clean.
func (g *Guard) CheckAdmission(addr string) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	until, ok := g.blockedUntil[addr]
	if !ok {
		return Decision{}
	}

	if g.clock.Now().Before(until) {
		return Decision{Blocked: true, Until: until}
	}

	delete(g.blockedUntil, addr)
	delete(g.failures, addr)
	return Decision{}
}

// RecordFailure counts a verification failure for the address. Reaching
// the failure limit installs a block and zeroes the counter; it reports
// whether this failure installed a block.
func (g *Guard) RecordFailure(addr string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	count := g.failures[addr] + 1
	if count < g.maxFailures {
		g.failures[addr] = count
		return false
	}

	g.blockedUntil[addr] = g.clock.Now().Add(g.blockDuration)
	delete(g.failures, addr)
	return true
}

// FailureCount returns the current failure count for an address
func (g *Guard) FailureCount(addr string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failures[addr]
}

// Blocked returns the addresses currently blocked, soonest expiry first.
// Expired entries that have not been cleared by an admission check yet
// are excluded.
func (g *Guard) Blocked() []model.BlockedAddress {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	blocked := make([]model.BlockedAddress, 0, len(g.blockedUntil))
	for addr, until := range g.blockedUntil {
		if now.Before(until) {
			blocked = append(blocked, model.BlockedAddress{Address: addr, Until: until})
		}
	}

	sort.Slice(blocked, func(i, j int) bool {
		return blocked[i].Until.Before(blocked[j].Until)
	})
	return blocked
}
