package proxy

import "github.com/mcoot/discordgate/internal/model"

// Player is a live connection on the proxy. The remote address is
// re-read whenever it is needed rather than captured once, since a
// player object outlives any single observation of it.
type Player interface {
	ID() model.PlayerID
	Username() string
	// RemoteAddr returns the source address (host only, no port)
	RemoteAddr() string
	// Active reports whether the player is still connected
	Active() bool
	// SendMessage shows a chat message to the player
	SendMessage(text string)
	// Disconnect kicks the player with the given reason
	Disconnect(reason string)
}

// Host is the proxy surface the gate depends on: looking up currently
// connected players. The concrete implementation is the WebSocket bridge
// in the bridge subpackage; tests substitute fakes.
type Host interface {
	Player(id model.PlayerID) (Player, bool)
}
