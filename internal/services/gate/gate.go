package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mcoot/discordgate/internal/chat"
	"github.com/mcoot/discordgate/internal/model"
	"github.com/mcoot/discordgate/internal/proxy"
	"github.com/mcoot/discordgate/internal/services/abuse"
	"github.com/mcoot/discordgate/internal/services/allowlist"
	"github.com/mcoot/discordgate/internal/services/session"
	"github.com/mcoot/discordgate/internal/storage"
)

// Command prefixes recognised in Discord DMs
const (
	verifyCommand = "!verify"
	deleteCommand = "!delete"
)

// Config holds configuration for the gate
type Config struct {
	// GuildID is the Discord server members must belong to
	GuildID string
	// RoleID is the role members must hold to verify
	RoleID string
	// AdminID is the Discord account allowed to revoke links over DM.
	// Empty disables the DM revoke command.
	AdminID model.DiscordID
	// VerifyWindow is how long a player has to redeem their code
	VerifyWindow time.Duration
}

// Gate is the authentication gate: it decides whether connecting players
// may stay, runs the code-verification exchange over Discord DMs, and
// owns every store involved. Per player the gate is a small state
// machine: unverified, pending verification (a live session with a
// deadline), verified (a stored link). It is called concurrently from
// proxy lifecycle events, inbound Discord messages, the admin API, and
// session deadline timers; the stores are the synchronisation boundary.
type Gate struct {
	cfg      Config
	links    storage.LinkStore
	sessions *session.Tracker
	guard    *abuse.Guard
	allow    *allowlist.List
	chat     chat.Client
	host     proxy.Host
	logger   *slog.Logger
}

// New creates a new gate
func New(
	cfg Config,
	links storage.LinkStore,
	sessions *session.Tracker,
	guard *abuse.Guard,
	allow *allowlist.List,
	chatClient chat.Client,
	host proxy.Host,
	logger *slog.Logger,
) *Gate {
	return &Gate{
		cfg:      cfg,
		links:    links,
		sessions: sessions,
		guard:    guard,
		allow:    allow,
		chat:     chatClient,
		host:     host,
		logger:   logger,
	}
}

// Decision is the outcome of a pre-login check
type Decision struct {
	Allowed bool
	Reason  string
}

// CheckConnection is the pre-login hook: it consults the abuse guard
// before the player is allowed to finish connecting
func (g *Gate) CheckConnection(addr string) Decision {
	d := g.guard.CheckAdmission(addr)
	if d.Blocked {
		g.logger.Info("denied blocked address",
			slog.String("address", addr),
			slog.Time("until", d.Until))
		return Decision{Allowed: false, Reason: KickBlocked}
	}
	return Decision{Allowed: true}
}

// HandleLogin is the post-login hook: allow-listed and already-linked
// players pass straight through; everyone else gets a verification
// session, the code instructions, and a ticking deadline.
func (g *Gate) HandleLogin(ctx context.Context, p proxy.Player) {
	if g.allow.Contains(p.Username()) {
		g.logger.Info("skipping verification for allow-listed player",
			slog.String("player", string(p.ID())),
			slog.String("username", p.Username()))
		p.SendMessage(MsgAllowListBypass)
		return
	}

	linked, err := g.links.IsLinked(ctx, p.ID())
	if err != nil {
		// Fall through to verification rather than waving the player in
		g.logger.Error("link lookup failed",
			slog.String("player", string(p.ID())),
			slog.String("error", err.Error()))
	}
	if linked {
		p.SendMessage(MsgAlreadyVerified)
		return
	}

	id := p.ID()
	code := g.sessions.Begin(id, func() {
		g.expireSession(id)
	})
	p.SendMessage(fmt.Sprintf(MsgVerifyInstructions, g.cfg.VerifyWindow, code))

	g.logger.Info("started verification session",
		slog.String("player", string(id)),
		slog.String("username", p.Username()))
}

// expireSession runs when a verification deadline elapses. The tracker
// has already removed the session; if the player is still connected and
// still unlinked they are kicked and the failure is charged to their
// current address, re-resolved at kick time.
func (g *Gate) expireSession(id model.PlayerID) {
	p, ok := g.host.Player(id)
	if !ok || !p.Active() {
		return
	}

	// A verification commit racing this timer wins: Link lands before the
	// session ends, so the linked check sees it
	linked, err := g.links.IsLinked(context.Background(), id)
	if err != nil {
		g.logger.Error("link lookup failed at deadline",
			slog.String("player", string(id)),
			slog.String("error", err.Error()))
	}
	if linked {
		return
	}

	p.Disconnect(KickUnverified)

	addr := p.RemoteAddr()
	blocked := g.guard.RecordFailure(addr)
	g.logger.Info("kicked unverified player",
		slog.String("player", string(id)),
		slog.String("username", p.Username()),
		slog.String("address", addr),
		slog.Bool("blocked", blocked))
}

// HandleDisconnect is the disconnect hook. A player leaving mid
// verification just loses the session; disconnects are not charged as
// failures, only deadline timeouts are.
func (g *Gate) HandleDisconnect(ctx context.Context, id model.PlayerID) {
	if g.sessions.End(id) {
		g.logger.Info("player disconnected while unverified",
			slog.String("player", string(id)))
	}
}

// HandleDirectMessage processes an inbound DM from a Discord user:
// either a "!verify <code>" redemption or the admin "!delete <id>"
// revoke. Anything else is ignored.
func (g *Gate) HandleDirectMessage(ctx context.Context, from model.DiscordID, content string) {
	content = strings.TrimSpace(content)

	switch {
	case strings.HasPrefix(content, deleteCommand+" "):
		g.handleDelete(ctx, from, strings.TrimSpace(strings.TrimPrefix(content, deleteCommand)))
	case strings.HasPrefix(content, verifyCommand):
		g.handleVerify(ctx, from, content)
	}
}

func (g *Gate) handleVerify(ctx context.Context, from model.DiscordID, content string) {
	args := strings.Fields(content)
	if len(args) != 2 {
		g.reply(ctx, from, ReplyUsage)
		return
	}
	code := args[1]

	id, ok := g.sessions.ResolveByCode(code)
	if !ok {
		g.reply(ctx, from, ReplyInvalidCode)
		return
	}

	hasRole, err := g.chat.HasRole(ctx, g.cfg.GuildID, from, g.cfg.RoleID)
	if err != nil {
		if errors.Is(err, chat.ErrNotMember) {
			g.reply(ctx, from, ReplyNotMember)
			return
		}
		// Transient: leave the session live so the player can retry
		g.logger.Warn("role check failed",
			slog.String("discord_id", string(from)),
			slog.String("error", err.Error()))
		g.reply(ctx, from, ReplyTryAgain)
		return
	}
	if !hasRole {
		// No state change: the session stays live until its deadline, the
		// player can gain the role and resend the same code
		g.reply(ctx, from, ReplyRoleMissing)
		return
	}

	if err := g.links.Link(ctx, id, from); err != nil {
		// In-memory state stays authoritative; the next mutation rewrites
		// the snapshot
		g.logger.Error("persisting link failed",
			slog.String("player", string(id)),
			slog.String("discord_id", string(from)),
			slog.String("error", err.Error()))
	}
	g.sessions.End(id)

	if p, ok := g.host.Player(id); ok {
		p.SendMessage(MsgVerified)
	}
	g.reply(ctx, from, ReplyVerified)

	g.logger.Info("player verified",
		slog.String("player", string(id)),
		slog.String("discord_id", string(from)))
}

func (g *Gate) handleDelete(ctx context.Context, from model.DiscordID, target string) {
	if g.cfg.AdminID == "" || from != g.cfg.AdminID {
		g.reply(ctx, from, ReplyNoPermission)
		return
	}

	_, err := g.RevokeLink(ctx, model.DiscordID(target))
	if err != nil {
		if errors.Is(err, model.ErrLinkNotFound) {
			g.reply(ctx, from, ReplyNotRegistered+target)
			return
		}
		g.logger.Error("revoke failed",
			slog.String("discord_id", target),
			slog.String("error", err.Error()))
		g.reply(ctx, from, ReplyTryAgain)
		return
	}

	g.reply(ctx, from, ReplyRemoved+target)
}

// RevokeLink removes a verified link by Discord ID: the Discord role is
// taken back best-effort, the stored link is deleted, the player is
// kicked if online, and any pending session ends. Used by both the admin
// DM command and the admin API.
func (g *Gate) RevokeLink(ctx context.Context, discordID model.DiscordID) (model.PlayerID, error) {
	id, err := g.links.PlayerByDiscordID(ctx, discordID)
	if err != nil {
		return "", err
	}

	if err := g.chat.RemoveRole(ctx, g.cfg.GuildID, discordID, g.cfg.RoleID); err != nil {
		g.logger.Warn("could not remove Discord role",
			slog.String("discord_id", string(discordID)),
			slog.String("error", err.Error()))
	}

	if err := g.links.Unlink(ctx, id); err != nil {
		g.logger.Error("persisting unlink failed",
			slog.String("player", string(id)),
			slog.String("error", err.Error()))
	}

	if p, ok := g.host.Player(id); ok {
		p.Disconnect(KickRevoked)
	}
	g.sessions.End(id)

	g.logger.Info("revoked verification",
		slog.String("player", string(id)),
		slog.String("discord_id", string(discordID)))
	return id, nil
}

// Status describes the gate's current state for the admin API
type Status struct {
	Links           int                    `json:"links"`
	PendingSessions int                    `json:"pending_sessions"`
	AllowListSize   int                    `json:"allow_list_size"`
	Blocked         []model.BlockedAddress `json:"blocked"`
}

// CurrentStatus reports link, session, and block counts
func (g *Gate) CurrentStatus(ctx context.Context) (Status, error) {
	links, err := g.links.Links(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Links:           len(links),
		PendingSessions: g.sessions.Count(),
		AllowListSize:   g.allow.Size(),
		Blocked:         g.guard.Blocked(),
	}, nil
}

// Links lists all verified links for the admin API
func (g *Gate) Links(ctx context.Context) ([]model.VerifiedLink, error) {
	return g.links.Links(ctx)
}

func (g *Gate) reply(ctx context.Context, to model.DiscordID, content string) {
	if err := g.chat.SendDirectMessage(ctx, to, content); err != nil {
		g.logger.Warn("could not send Discord reply",
			slog.String("discord_id", string(to)),
			slog.String("error", err.Error()))
	}
}
