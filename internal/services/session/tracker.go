package session

import (
	"sync"
	"time"

	"github.com/mcoot/discordgate/internal/dependencies/clock"
	"github.com/mcoot/discordgate/internal/dependencies/random"
	"github.com/mcoot/discordgate/internal/dependencies/scheduler"
	"github.com/mcoot/discordgate/internal/model"
)

// CodeLength is the number of digits in a verification code
const CodeLength = 6

// Tracker holds the pending verification sessions: players who are
// connected but have not yet redeemed their one-time code. Sessions are
// purely in-memory; a restart invalidates all of them and players simply
// reconnect.
//
// Each session owns a deadline timer armed at Begin time. Every terminal
// transition (verify, disconnect, revoke, superseding reconnect) goes
// through End or a replacing Begin, both of which cancel the timer, so
// the expiry callback can never observe a session that already ended.
//
// Codes are random and collision-tolerant, not unique: if a freshly
// generated code equals another live session's code, the reverse index is
// last write wins. The code space is tiny and sessions live for about a
// minute, so a stolen resolution window is accepted rather than engineered
// away.
type Tracker struct {
	clock  clock.Clock
	random random.Random
	sched  scheduler.Scheduler
	window time.Duration

	mu       sync.Mutex
	byPlayer map[model.PlayerID]*record
	byCode   map[string]model.PlayerID
}

type record struct {
	code      string
	createdAt time.Time
	cancel    scheduler.CancelFunc
}

// New creates a new session tracker. window is how long a player has to
// redeem their code before the expiry callback fires.
func New(clk clock.Clock, rnd random.Random, sched scheduler.Scheduler, window time.Duration) *Tracker {
	return &Tracker{
		clock:    clk,
		random:   rnd,
		sched:    sched,
		window:   window,
		byPlayer: make(map[model.PlayerID]*record),
		byCode:   make(map[string]model.PlayerID),
	}
}

// Begin starts a verification session for a player and returns the code
// to deliver to them. Any existing session for the player is replaced:
// its timer is cancelled and its code stops resolving before the new code
// is inserted. onExpire runs once when the window elapses, unless the
// session ends first; the session is already removed by the time it runs.
func (t *Tracker) Begin(id model.PlayerID, onExpire func()) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.removeLocked(id)

	code := t.random.Digits(CodeLength)
	rec := &record{
		code:      code,
		createdAt: t.clock.Now(),
	}
	rec.cancel = t.sched.ScheduleOnce(t.window, func() {
		if t.expire(id, code) {
			onExpire()
		}
	})

	t.byPlayer[id] = rec
	t.byCode[code] = id
	return code
}

// expire removes the session if it is still the one the timer was armed
// for, reporting whether the caller should act. A session replaced or
// ended between the timer firing and this check is left alone.
func (t *Tracker) expire(id model.PlayerID, code string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.byPlayer[id]
	if !ok || rec.code != code {
		return false
	}
	delete(t.byPlayer, id)
	if t.byCode[code] == id {
		delete(t.byCode, code)
	}
	return true
}

// ResolveByCode returns the player a live code belongs to
func (t *Tracker) ResolveByCode(code string) (model.PlayerID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.byCode[code]
	return id, ok
}

// Code returns the live code for a player, if any
func (t *Tracker) Code(id model.PlayerID) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.byPlayer[id]
	if !ok {
		return "", false
	}
	return rec.code, true
}

// End terminates a player's session, cancelling its deadline timer.
// Ending a player with no session is a no-op; it reports whether a
// session existed.
func (t *Tracker) End(id model.PlayerID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeLocked(id)
}

// Count returns the number of live sessions
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byPlayer)
}

func (t *Tracker) removeLocked(id model.PlayerID) bool {
	rec, ok := t.byPlayer[id]
	if !ok {
		return false
	}
	rec.cancel()
	delete(t.byPlayer, id)
	// On code collision a newer session owns the reverse entry; leave it
	if t.byCode[rec.code] == id {
		delete(t.byCode, rec.code)
	}
	return true
}
