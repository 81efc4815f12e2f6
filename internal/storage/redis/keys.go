package redis

import (
	"github.com/mcoot/discordgate/internal/model"
)

// Key layout:
//   <prefix>:link:<playerID>     -> discordID
//   <prefix>:discord:<discordID> -> playerID
//   <prefix>:links               -> set of playerIDs

func (s *Storage) linkKey(id model.PlayerID) string {
	return s.cfg.KeyPrefix + ":link:" + string(id)
}

func (s *Storage) discordIndexKey(discordID model.DiscordID) string {
	return s.cfg.KeyPrefix + ":discord:" + string(discordID)
}

func (s *Storage) linkSetKey() string {
	return s.cfg.KeyPrefix + ":links"
}
