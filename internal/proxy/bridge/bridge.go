package bridge

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/mcoot/discordgate/internal/model"
	"github.com/mcoot/discordgate/internal/proxy"
	"github.com/mcoot/discordgate/internal/services/gate"
)

// Events is the slice of the gate the bridge drives. Declared here so
// the bridge can be constructed before the gate (the gate needs the
// bridge as its proxy.Host).
type Events interface {
	CheckConnection(addr string) gate.Decision
	HandleLogin(ctx context.Context, p proxy.Player)
	HandleDisconnect(ctx context.Context, id model.PlayerID)
}

// Bridge is the WebSocket adapter between the proxy plugin and the gate.
// The proxy holds one long-lived connection to /proxy/ws: lifecycle
// events flow in, player commands flow out. The bridge also maintains
// the connected-player table, which makes it the gate's proxy.Host.
//
// A second proxy connection replaces the first; the player table is
// cleared whenever the connection changes, since the new proxy will
// replay its current players via postlogin events.
type Bridge struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.RWMutex
	events  Events
	conn    *websocket.Conn
	writeMu sync.Mutex
	players map[model.PlayerID]*playerState
}

type playerState struct {
	username string
	address  string
}

// New creates a new bridge. Attach the gate with SetEvents before
// serving connections.
func New(logger *slog.Logger) *Bridge {
	return &Bridge{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:  logger,
		players: make(map[model.PlayerID]*playerState),
	}
}

// Ensure Bridge implements the proxy host interface
var _ proxy.Host = (*Bridge)(nil)

// SetEvents attaches the gate's event handlers
func (b *Bridge) SetEvents(events Events) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = events
}

// ServeHTTP upgrades the proxy connection and runs its event loop
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("proxy upgrade failed", slog.String("error", err.Error()))
		return
	}

	b.mu.Lock()
	if b.conn != nil {
		_ = b.conn.Close()
	}
	b.conn = conn
	b.players = make(map[model.PlayerID]*playerState)
	b.mu.Unlock()

	b.logger.Info("proxy connected", slog.String("remote", conn.RemoteAddr().String()))
	b.readLoop(conn)
}

func (b *Bridge) readLoop(conn *websocket.Conn) {
	defer func() {
		b.mu.Lock()
		if b.conn == conn {
			b.conn = nil
			b.players = make(map[model.PlayerID]*playerState)
		}
		b.mu.Unlock()
		_ = conn.Close()
		b.logger.Info("proxy disconnected")
	}()

	for {
		var event Event
		if err := conn.ReadJSON(&event); err != nil {
			return
		}
		b.handleEvent(conn, event)
	}
}

func (b *Bridge) handleEvent(conn *websocket.Conn, event Event) {
	b.mu.RLock()
	events := b.events
	b.mu.RUnlock()
	if events == nil {
		b.logger.Warn("dropping proxy event, no gate attached",
			slog.String("type", event.Type))
		return
	}

	ctx := context.Background()

	switch event.Type {
	case EventPreLogin:
		d := events.CheckConnection(event.Address)
		b.send(Command{
			Type:      CommandPreLoginResult,
			RequestID: event.RequestID,
			Allowed:   d.Allowed,
			Reason:    d.Reason,
		})

	case EventPostLogin:
		id := model.PlayerID(event.PlayerID)
		if err := id.Validate(); err != nil {
			b.logger.Warn("ignoring postlogin with invalid player id",
				slog.String("player_id", event.PlayerID),
				slog.String("error", err.Error()))
			return
		}
		b.mu.Lock()
		// Only track players for the live connection; a stale conn's
		// events must not repopulate the table
		if b.conn == conn {
			b.players[id] = &playerState{username: event.Username, address: event.Address}
		}
		b.mu.Unlock()
		events.HandleLogin(ctx, &bridgePlayer{bridge: b, id: id})

	case EventDisconnect:
		id := model.PlayerID(event.PlayerID)
		b.mu.Lock()
		delete(b.players, id)
		b.mu.Unlock()
		events.HandleDisconnect(ctx, id)

	default:
		b.logger.Warn("unknown proxy event", slog.String("type", event.Type))
	}
}

func (b *Bridge) send(cmd Command) {
	b.mu.RLock()
	conn := b.conn
	b.mu.RUnlock()
	if conn == nil {
		b.logger.Warn("dropping proxy command, not connected",
			slog.String("type", cmd.Type))
		return
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if err := conn.WriteJSON(cmd); err != nil {
		b.logger.Warn("proxy write failed",
			slog.String("type", cmd.Type),
			slog.String("error", err.Error()))
	}
}

// Player returns a handle for a currently connected player
func (b *Bridge) Player(id model.PlayerID) (proxy.Player, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if _, ok := b.players[id]; !ok {
		return nil, false
	}
	return &bridgePlayer{bridge: b, id: id}, true
}

// bridgePlayer reads the player table lazily on every call, so the
// address and liveness reflect the proxy's latest events rather than a
// snapshot taken at login
type bridgePlayer struct {
	bridge *Bridge
	id     model.PlayerID
}

// Ensure bridgePlayer implements the player interface
var _ proxy.Player = (*bridgePlayer)(nil)

func (p *bridgePlayer) ID() model.PlayerID {
	return p.id
}

func (p *bridgePlayer) Username() string {
	p.bridge.mu.RLock()
	defer p.bridge.mu.RUnlock()
	if state, ok := p.bridge.players[p.id]; ok {
		return state.username
	}
	return ""
}

func (p *bridgePlayer) RemoteAddr() string {
	p.bridge.mu.RLock()
	defer p.bridge.mu.RUnlock()
	if state, ok := p.bridge.players[p.id]; ok {
		return state.address
	}
	return ""
}

func (p *bridgePlayer) Active() bool {
	p.bridge.mu.RLock()
	defer p.bridge.mu.RUnlock()
	_, ok := p.bridge.players[p.id]
	return ok
}

func (p *bridgePlayer) SendMessage(text string) {
	p.bridge.send(Command{
		Type:     CommandMessage,
		PlayerID: string(p.id),
		Text:     text,
	})
}

func (p *bridgePlayer) Disconnect(reason string) {
	p.bridge.send(Command{
		Type:     CommandDisconnectPlayer,
		PlayerID: string(p.id),
		Reason:   reason,
	})
}
