package chat

import (
	"context"
	"errors"

	"github.com/mcoot/discordgate/internal/model"
)

// ErrNotMember indicates the user does not belong to the guild at all,
// as distinct from belonging but lacking the required role
var ErrNotMember = errors.New("user is not a member of the guild")

// Client is the Discord surface the gate depends on. The concrete
// implementation lives in the discord subpackage; tests substitute fakes.
type Client interface {
	// SendDirectMessage delivers a DM to a Discord user
	SendDirectMessage(ctx context.Context, to model.DiscordID, content string) error

	// HasRole reports whether the guild member holds the role. Returns
	// ErrNotMember if the user is not in the guild.
	HasRole(ctx context.Context, guildID string, userID model.DiscordID, roleID string) (bool, error)

	// RemoveRole removes the role from the guild member
	RemoveRole(ctx context.Context, guildID string, userID model.DiscordID, roleID string) error
}

// MessageHandler receives inbound direct messages from Discord users
type MessageHandler func(ctx context.Context, from model.DiscordID, content string)
