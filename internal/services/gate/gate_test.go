package gate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/discordgate/internal/chat"
	"github.com/mcoot/discordgate/internal/dependencies/mocks"
	"github.com/mcoot/discordgate/internal/model"
	"github.com/mcoot/discordgate/internal/proxy"
	"github.com/mcoot/discordgate/internal/services/abuse"
	"github.com/mcoot/discordgate/internal/services/allowlist"
	"github.com/mcoot/discordgate/internal/services/session"
	"github.com/mcoot/discordgate/internal/storage/memory"
	"github.com/mcoot/discordgate/internal/testutil"
)

const (
	playerA = model.PlayerID("11111111-1111-1111-1111-111111111111")
	playerB = model.PlayerID("22222222-2222-2222-2222-222222222222")

	discordA = model.DiscordID("100000000000000001")
	adminID  = model.DiscordID("900000000000000009")

	guildID = "200000000000000002"
	roleID  = "300000000000000003"

	sourceAddr = "10.0.0.5"
)

// fakeChat records outbound Discord traffic and serves scripted role
// check results
type fakeChat struct {
	mu           sync.Mutex
	dms          map[model.DiscordID][]string
	roles        map[model.DiscordID]bool
	roleErr      map[model.DiscordID]error
	removedRoles []model.DiscordID
	removeErr    error
}

func newFakeChat() *fakeChat {
	return &fakeChat{
		dms:     make(map[model.DiscordID][]string),
		roles:   make(map[model.DiscordID]bool),
		roleErr: make(map[model.DiscordID]error),
	}
}

func (c *fakeChat) SendDirectMessage(ctx context.Context, to model.DiscordID, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dms[to] = append(c.dms[to], content)
	return nil
}

func (c *fakeChat) HasRole(ctx context.Context, guild string, userID model.DiscordID, role string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.roleErr[userID]; err != nil {
		return false, err
	}
	return c.roles[userID], nil
}

func (c *fakeChat) RemoveRole(ctx context.Context, guild string, userID model.DiscordID, role string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.removeErr != nil {
		return c.removeErr
	}
	c.removedRoles = append(c.removedRoles, userID)
	return nil
}

func (c *fakeChat) lastDM(to model.DiscordID) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := c.dms[to]
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1]
}

// fakePlayer is a scripted proxy player
type fakePlayer struct {
	mu       sync.Mutex
	id       model.PlayerID
	username string
	addr     string
	active   bool
	messages []string
	kicks    []string
}

var _ proxy.Player = (*fakePlayer)(nil)

func (p *fakePlayer) ID() model.PlayerID { return p.id }

func (p *fakePlayer) Username() string { return p.username }

func (p *fakePlayer) RemoteAddr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addr
}

func (p *fakePlayer) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

func (p *fakePlayer) SendMessage(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, text)
}

func (p *fakePlayer) Disconnect(reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = false
	p.kicks = append(p.kicks, reason)
}

func (p *fakePlayer) lastMessage() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.messages) == 0 {
		return ""
	}
	return p.messages[len(p.messages)-1]
}

func (p *fakePlayer) kickReasons() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.kicks...)
}

// fakeHost serves fake players
type fakeHost struct {
	mu      sync.Mutex
	players map[model.PlayerID]*fakePlayer
}

var _ proxy.Host = (*fakeHost)(nil)

func newFakeHost() *fakeHost {
	return &fakeHost{players: make(map[model.PlayerID]*fakePlayer)}
}

func (h *fakeHost) Player(id model.PlayerID) (proxy.Player, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.players[id]
	return p, ok
}

func (h *fakeHost) add(p *fakePlayer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.players[p.id] = p
}

type GateSuite struct {
	suite.Suite
	links    *memory.Storage
	clock    *mocks.MockClock
	random   *mocks.MockRandom
	sched    *mocks.MockScheduler
	sessions *session.Tracker
	guard    *abuse.Guard
	chat     *fakeChat
	host     *fakeHost
	gate     *Gate
	ctx      context.Context
}

func TestGateSuite(t *testing.T) {
	suite.Run(t, new(GateSuite))
}

func (s *GateSuite) SetupTest() {
	s.links = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.sched = mocks.NewMockScheduler()
	s.sessions = session.New(s.clock, s.random, s.sched, time.Minute)
	s.guard = abuse.New(s.clock, 3, 5*time.Minute)
	s.chat = newFakeChat()
	s.host = newFakeHost()
	s.ctx = context.Background()

	s.gate = s.newGate(allowlist.Load("", testutil.NopLogger()))
}

func (s *GateSuite) newGate(allow *allowlist.List) *Gate {
	return New(Config{
		GuildID:      guildID,
		RoleID:       roleID,
		AdminID:      adminID,
		VerifyWindow: time.Minute,
	}, s.links, s.sessions, s.guard, allow, s.chat, s.host, testutil.NopLogger())
}

func (s *GateSuite) connect(id model.PlayerID, username, addr string) *fakePlayer {
	p := &fakePlayer{id: id, username: username, addr: addr, active: true}
	s.host.add(p)
	s.gate.HandleLogin(s.ctx, p)
	return p
}

// Connection attempts

func (s *GateSuite) TestCheckConnectionAdmitsByDefault() {
	d := s.gate.CheckConnection(sourceAddr)
	s.True(d.Allowed)
}

func (s *GateSuite) TestLoginStartsSessionAndSendsCode() {
	s.random.QueueDigits("482913")

	p := s.connect(playerA, "Alice", sourceAddr)

	s.Contains(p.lastMessage(), "!verify 482913")
	code, ok := s.sessions.Code(playerA)
	s.True(ok)
	s.Equal("482913", code)
	s.Equal(1, s.sched.PendingCount())
}

func (s *GateSuite) TestAlreadyLinkedPassesThrough() {
	s.Require().NoError(s.links.Link(s.ctx, playerA, discordA))

	p := s.connect(playerA, "Alice", sourceAddr)

	s.Equal(MsgAlreadyVerified, p.lastMessage())
	s.Equal(0, s.sessions.Count())
}

func (s *GateSuite) TestAllowListedPlayerBypassesVerification() {
	path := filepath.Join(s.T().TempDir(), "allowed-users.txt")
	s.Require().NoError(os.WriteFile(path, []byte("Alice\n"), 0o600))
	gate := s.newGate(allowlist.Load(path, testutil.NopLogger()))

	p := &fakePlayer{id: playerA, username: "alice", addr: sourceAddr, active: true}
	s.host.add(p)
	gate.HandleLogin(s.ctx, p)

	s.Equal(MsgAllowListBypass, p.lastMessage())
	s.Equal(0, s.sessions.Count())
}

// Verification

func (s *GateSuite) TestVerifySucceedsWithRole() {
	s.random.QueueDigits("482913")
	s.chat.roles[discordA] = true
	p := s.connect(playerA, "Alice", sourceAddr)

	s.gate.HandleDirectMessage(s.ctx, discordA, "!verify 482913")

	linked, err := s.links.IsLinked(s.ctx, playerA)
	s.Require().NoError(err)
	s.True(linked)

	id, err := s.links.PlayerByDiscordID(s.ctx, discordA)
	s.Require().NoError(err)
	s.Equal(playerA, id)

	s.Equal(0, s.sessions.Count())
	s.Equal(0, s.sched.PendingCount())
	s.Equal(MsgVerified, p.lastMessage())
	s.Equal(ReplyVerified, s.chat.lastDM(discordA))
	s.Empty(p.kickReasons())
}

func (s *GateSuite) TestVerifyMalformedCommandRepliesUsage() {
	s.gate.HandleDirectMessage(s.ctx, discordA, "!verify")
	s.Equal(ReplyUsage, s.chat.lastDM(discordA))

	s.gate.HandleDirectMessage(s.ctx, discordA, "!verify one two")
	s.Equal(ReplyUsage, s.chat.lastDM(discordA))
}

func (s *GateSuite) TestVerifyUnknownCodeRepliesInvalid() {
	s.gate.HandleDirectMessage(s.ctx, discordA, "!verify 000000")
	s.Equal(ReplyInvalidCode, s.chat.lastDM(discordA))
}

func (s *GateSuite) TestVerifyWithoutRoleThenWithRole() {
	s.random.QueueDigits("482913")
	s.connect(playerA, "Alice", sourceAddr)

	// No role yet: rejected, but the session must survive for a retry
	s.gate.HandleDirectMessage(s.ctx, discordA, "!verify 482913")
	s.Equal(ReplyRoleMissing, s.chat.lastDM(discordA))

	id, ok := s.sessions.ResolveByCode("482913")
	s.True(ok)
	s.Equal(playerA, id)

	// Role granted: the same code verifies
	s.chat.roles[discordA] = true
	s.gate.HandleDirectMessage(s.ctx, discordA, "!verify 482913")
	s.Equal(ReplyVerified, s.chat.lastDM(discordA))

	linked, err := s.links.IsLinked(s.ctx, playerA)
	s.Require().NoError(err)
	s.True(linked)
}

func (s *GateSuite) TestVerifyNonMemberRepliesNotMember() {
	s.random.QueueDigits("482913")
	s.connect(playerA, "Alice", sourceAddr)
	s.chat.roleErr[discordA] = chat.ErrNotMember

	s.gate.HandleDirectMessage(s.ctx, discordA, "!verify 482913")

	s.Equal(ReplyNotMember, s.chat.lastDM(discordA))
	_, ok := s.sessions.ResolveByCode("482913")
	s.True(ok)
}

func (s *GateSuite) TestVerifyTransientRoleCheckFailureKeepsSession() {
	s.random.QueueDigits("482913")
	s.connect(playerA, "Alice", sourceAddr)
	s.chat.roleErr[discordA] = errors.New("discord api: status 500")

	s.gate.HandleDirectMessage(s.ctx, discordA, "!verify 482913")

	s.Equal(ReplyTryAgain, s.chat.lastDM(discordA))
	_, ok := s.sessions.ResolveByCode("482913")
	s.True(ok)
}

func (s *GateSuite) TestUnrelatedMessagesAreIgnored() {
	s.gate.HandleDirectMessage(s.ctx, discordA, "hello there")
	s.Empty(s.chat.dms[discordA])
}

// Deadlines

func (s *GateSuite) TestDeadlineKicksAndRecordsFailure() {
	s.random.QueueDigits("482913")
	p := s.connect(playerA, "Alice", sourceAddr)

	s.sched.FireAll()

	s.Equal([]string{KickUnverified}, p.kickReasons())
	s.Equal(1, s.guard.FailureCount(sourceAddr))
	s.Equal(0, s.sessions.Count())
}

func (s *GateSuite) TestDeadlineUsesCurrentAddress() {
	s.random.QueueDigits("482913")
	p := s.connect(playerA, "Alice", sourceAddr)

	// The address is re-resolved at kick time, not captured at login
	p.mu.Lock()
	p.addr = "10.0.0.9"
	p.mu.Unlock()

	s.sched.FireAll()

	s.Equal(1, s.guard.FailureCount("10.0.0.9"))
	s.Equal(0, s.guard.FailureCount(sourceAddr))
}

func (s *GateSuite) TestDeadlineAfterDisconnectIsNoOp() {
	s.random.QueueDigits("482913")
	p := s.connect(playerA, "Alice", sourceAddr)

	s.gate.HandleDisconnect(s.ctx, playerA)

	s.Equal(0, s.sessions.Count())
	s.Equal(0, s.sched.PendingCount())

	s.sched.FireAll()
	s.Empty(p.kickReasons())
	// Leaving early is not charged as a failure
	s.Equal(0, s.guard.FailureCount(sourceAddr))
}

func (s *GateSuite) TestVerificationCommitBeatsDeadline() {
	s.random.QueueDigits("482913")
	p := s.connect(playerA, "Alice", sourceAddr)

	// Link committed but the session not yet ended when the timer fires:
	// the deadline must notice the link and stand down
	s.Require().NoError(s.links.Link(s.ctx, playerA, discordA))
	s.sched.FireAll()

	s.Empty(p.kickReasons())
	s.Equal(0, s.guard.FailureCount(sourceAddr))
}

func (s *GateSuite) TestRepeatedTimeoutsBlockAddress() {
	for _, code := range []string{"111111", "222222", "333333"} {
		s.random.QueueDigits(code)
		s.connect(playerB, "Bob", sourceAddr)
		s.sched.FireAll()
	}

	d := s.gate.CheckConnection(sourceAddr)
	s.False(d.Allowed)
	s.Equal(KickBlocked, d.Reason)
	s.Equal(0, s.sessions.Count())

	// The block lifts after the configured duration
	s.clock.Advance(5 * time.Minute)
	s.True(s.gate.CheckConnection(sourceAddr).Allowed)
}

// Revocation

func (s *GateSuite) TestAdminRevokeUnlinksAndKicks() {
	s.Require().NoError(s.links.Link(s.ctx, playerA, discordA))
	p := &fakePlayer{id: playerA, username: "Alice", addr: sourceAddr, active: true}
	s.host.add(p)

	s.gate.HandleDirectMessage(s.ctx, adminID, "!delete "+string(discordA))

	s.Equal(ReplyRemoved+string(discordA), s.chat.lastDM(adminID))
	s.Equal([]string{KickRevoked}, p.kickReasons())
	s.Equal([]model.DiscordID{discordA}, s.chat.removedRoles)

	linked, err := s.links.IsLinked(s.ctx, playerA)
	s.Require().NoError(err)
	s.False(linked)
}

func (s *GateSuite) TestAdminRevokeUnregisteredRepliesNotRegistered() {
	s.gate.HandleDirectMessage(s.ctx, adminID, "!delete "+string(discordA))

	s.Equal(ReplyNotRegistered+string(discordA), s.chat.lastDM(adminID))

	links, err := s.links.Links(s.ctx)
	s.Require().NoError(err)
	s.Empty(links)
}

func (s *GateSuite) TestNonAdminRevokeIsDenied() {
	s.Require().NoError(s.links.Link(s.ctx, playerA, discordA))

	s.gate.HandleDirectMessage(s.ctx, discordA, "!delete "+string(discordA))

	s.Equal(ReplyNoPermission, s.chat.lastDM(discordA))
	linked, err := s.links.IsLinked(s.ctx, playerA)
	s.Require().NoError(err)
	s.True(linked)
}

func (s *GateSuite) TestRevokeSurvivesRoleRemovalFailure() {
	s.Require().NoError(s.links.Link(s.ctx, playerA, discordA))
	s.chat.removeErr = errors.New("discord api: status 503")

	s.gate.HandleDirectMessage(s.ctx, adminID, "!delete "+string(discordA))

	s.Equal(ReplyRemoved+string(discordA), s.chat.lastDM(adminID))
	linked, err := s.links.IsLinked(s.ctx, playerA)
	s.Require().NoError(err)
	s.False(linked)
}

func (s *GateSuite) TestRevokeEndsPendingSession() {
	s.random.QueueDigits("482913")
	s.connect(playerA, "Alice", sourceAddr)
	s.Require().NoError(s.links.Link(s.ctx, playerA, discordA))

	_, err := s.gate.RevokeLink(s.ctx, discordA)
	s.Require().NoError(err)

	s.Equal(0, s.sessions.Count())
	s.Equal(0, s.sched.PendingCount())
}

// Status

func (s *GateSuite) TestCurrentStatus() {
	s.Require().NoError(s.links.Link(s.ctx, playerA, discordA))
	s.random.QueueDigits("482913")
	s.connect(playerB, "Bob", sourceAddr)

	status, err := s.gate.CurrentStatus(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, status.Links)
	s.Equal(1, status.PendingSessions)
	s.Empty(status.Blocked)
}
