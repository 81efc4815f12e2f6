package model

import (
	"time"

	"github.com/google/uuid"
)

// PlayerID uniquely identifies a player account on the proxy.
// It is the stringified account UUID and is stable across name changes.
type PlayerID string

// Validate checks that the ID is a well-formed UUID
func (id PlayerID) Validate() error {
	if _, err := uuid.Parse(string(id)); err != nil {
		return err
	}
	return nil
}

// DiscordID identifies a Discord user account (a numeric snowflake)
type DiscordID string

// VerifiedLink associates a player account with the Discord account
// that verified it
type VerifiedLink struct {
	PlayerID  PlayerID  `json:"player_id"`
	DiscordID DiscordID `json:"discord_id"`
}

// BlockedAddress describes a source address currently denied admission
type BlockedAddress struct {
	Address string    `json:"address"`
	Until   time.Time `json:"until"`
}
