package bridge

// Event types sent by the proxy plugin
const (
	EventPreLogin   = "prelogin"
	EventPostLogin  = "postlogin"
	EventDisconnect = "disconnect"
)

// Command types sent to the proxy plugin
const (
	CommandPreLoginResult   = "prelogin_result"
	CommandMessage          = "message"
	CommandDisconnectPlayer = "disconnect_player"
)

// Event is a lifecycle notification from the proxy. Fields are populated
// per type: prelogin carries RequestID and Address; postlogin carries
// PlayerID, Username, and Address; disconnect carries PlayerID.
type Event struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	PlayerID  string `json:"player_id,omitempty"`
	Username  string `json:"username,omitempty"`
	Address   string `json:"address,omitempty"`
}

// Command is an instruction to the proxy. prelogin_result answers a
// prelogin event by RequestID; message and disconnect_player target a
// connected player.
type Command struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	PlayerID  string `json:"player_id,omitempty"`
	Allowed   bool   `json:"allowed,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Text      string `json:"text,omitempty"`
}
