package storage

import (
	"context"

	"github.com/mcoot/discordgate/internal/model"
)

// LinkStore defines the interface for the verified-link store: the
// durable mapping between player accounts and the Discord accounts that
// verified them. Implementations keep a reverse index so lookups work in
// both directions, and must be safe for concurrent use.
type LinkStore interface {
	// IsLinked reports whether the player has a verified link
	IsLinked(ctx context.Context, id model.PlayerID) (bool, error)

	// Link upserts the link for a player and updates the reverse index.
	// Linking the same pair twice is a no-op.
	Link(ctx context.Context, id model.PlayerID, discordID model.DiscordID) error

	// Unlink removes a player's link if present; removing an absent link
	// is a no-op
	Unlink(ctx context.Context, id model.PlayerID) error

	// DiscordID returns the Discord account linked to a player, or
	// model.ErrLinkNotFound
	DiscordID(ctx context.Context, id model.PlayerID) (model.DiscordID, error)

	// PlayerByDiscordID returns the player linked to a Discord account,
	// or model.ErrLinkNotFound
	PlayerByDiscordID(ctx context.Context, discordID model.DiscordID) (model.PlayerID, error)

	// Links returns all verified links
	Links(ctx context.Context) ([]model.VerifiedLink, error)

	// Close releases any resources held by the store
	Close() error
}
