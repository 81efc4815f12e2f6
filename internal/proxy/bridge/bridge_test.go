package bridge_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/discordgate/internal/model"
	"github.com/mcoot/discordgate/internal/proxy"
	"github.com/mcoot/discordgate/internal/proxy/bridge"
	"github.com/mcoot/discordgate/internal/services/gate"
	"github.com/mcoot/discordgate/internal/testutil"
)

const (
	playerA = "11111111-1111-1111-1111-111111111111"

	sourceAddr = "10.0.0.5"
)

// fakeEvents records gate calls made by the bridge
type fakeEvents struct {
	mu          sync.Mutex
	decision    gate.Decision
	logins      []proxy.Player
	disconnects []model.PlayerID
}

func (e *fakeEvents) CheckConnection(addr string) gate.Decision {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.decision
}

func (e *fakeEvents) HandleLogin(ctx context.Context, p proxy.Player) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logins = append(e.logins, p)
}

func (e *fakeEvents) HandleDisconnect(ctx context.Context, id model.PlayerID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disconnects = append(e.disconnects, id)
}

func (e *fakeEvents) loginCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.logins)
}

func (e *fakeEvents) lastLogin() proxy.Player {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.logins) == 0 {
		return nil
	}
	return e.logins[len(e.logins)-1]
}

func (e *fakeEvents) disconnectCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.disconnects)
}

type testBridge struct {
	bridge *bridge.Bridge
	events *fakeEvents
	conn   *websocket.Conn
}

func newTestBridge(t *testing.T) *testBridge {
	t.Helper()

	events := &fakeEvents{decision: gate.Decision{Allowed: true}}
	b := bridge.New(testutil.NopLogger())
	b.SetEvents(events)

	server := httptest.NewServer(b)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &testBridge{bridge: b, events: events, conn: conn}
}

func (tb *testBridge) sendEvent(t *testing.T, event bridge.Event) {
	t.Helper()
	require.NoError(t, tb.conn.WriteJSON(event))
}

func (tb *testBridge) readCommand(t *testing.T) bridge.Command {
	t.Helper()
	require.NoError(t, tb.conn.SetReadDeadline(time.Now().Add(time.Second)))

	var cmd bridge.Command
	require.NoError(t, tb.conn.ReadJSON(&cmd))
	return cmd
}

// postLogin sends a postlogin event and waits for the bridge to process it
func (tb *testBridge) postLogin(t *testing.T, id, username, addr string) {
	t.Helper()
	before := tb.events.loginCount()
	tb.sendEvent(t, bridge.Event{
		Type:     bridge.EventPostLogin,
		PlayerID: id,
		Username: username,
		Address:  addr,
	})
	require.Eventually(t, func() bool {
		return tb.events.loginCount() > before
	}, time.Second, 5*time.Millisecond)
}

func TestPreLoginAllowed(t *testing.T) {
	tb := newTestBridge(t)

	tb.sendEvent(t, bridge.Event{
		Type:      bridge.EventPreLogin,
		RequestID: "req-1",
		Address:   sourceAddr,
	})

	cmd := tb.readCommand(t)
	assert.Equal(t, bridge.CommandPreLoginResult, cmd.Type)
	assert.Equal(t, "req-1", cmd.RequestID)
	assert.True(t, cmd.Allowed)
}

func TestPreLoginDenied(t *testing.T) {
	tb := newTestBridge(t)
	tb.events.decision = gate.Decision{Allowed: false, Reason: "blocked"}

	tb.sendEvent(t, bridge.Event{
		Type:      bridge.EventPreLogin,
		RequestID: "req-2",
		Address:   sourceAddr,
	})

	cmd := tb.readCommand(t)
	assert.Equal(t, bridge.CommandPreLoginResult, cmd.Type)
	assert.False(t, cmd.Allowed)
	assert.Equal(t, "blocked", cmd.Reason)
}

func TestPostLoginTracksPlayer(t *testing.T) {
	tb := newTestBridge(t)

	tb.postLogin(t, playerA, "Alice", sourceAddr)

	p := tb.events.lastLogin()
	require.NotNil(t, p)
	assert.Equal(t, model.PlayerID(playerA), p.ID())
	assert.Equal(t, "Alice", p.Username())
	assert.Equal(t, sourceAddr, p.RemoteAddr())
	assert.True(t, p.Active())

	handle, ok := tb.bridge.Player(model.PlayerID(playerA))
	require.True(t, ok)
	assert.Equal(t, "Alice", handle.Username())
}

func TestPostLoginInvalidIDIgnored(t *testing.T) {
	tb := newTestBridge(t)

	tb.sendEvent(t, bridge.Event{
		Type:     bridge.EventPostLogin,
		PlayerID: "not-a-uuid",
		Username: "Alice",
		Address:  sourceAddr,
	})

	// Round-trip a prelogin to know the bad event has been consumed
	tb.sendEvent(t, bridge.Event{Type: bridge.EventPreLogin, RequestID: "sync"})
	tb.readCommand(t)

	assert.Equal(t, 0, tb.events.loginCount())
}

func TestDisconnectRemovesPlayer(t *testing.T) {
	tb := newTestBridge(t)
	tb.postLogin(t, playerA, "Alice", sourceAddr)
	handle, ok := tb.bridge.Player(model.PlayerID(playerA))
	require.True(t, ok)

	tb.sendEvent(t, bridge.Event{
		Type:     bridge.EventDisconnect,
		PlayerID: playerA,
	})
	require.Eventually(t, func() bool {
		return tb.events.disconnectCount() == 1
	}, time.Second, 5*time.Millisecond)

	assert.False(t, handle.Active())
	_, ok = tb.bridge.Player(model.PlayerID(playerA))
	assert.False(t, ok)
}

func TestSendMessageCommand(t *testing.T) {
	tb := newTestBridge(t)
	tb.postLogin(t, playerA, "Alice", sourceAddr)

	handle, ok := tb.bridge.Player(model.PlayerID(playerA))
	require.True(t, ok)
	handle.SendMessage("hello")

	cmd := tb.readCommand(t)
	assert.Equal(t, bridge.CommandMessage, cmd.Type)
	assert.Equal(t, playerA, cmd.PlayerID)
	assert.Equal(t, "hello", cmd.Text)
}

func TestDisconnectPlayerCommand(t *testing.T) {
	tb := newTestBridge(t)
	tb.postLogin(t, playerA, "Alice", sourceAddr)

	handle, ok := tb.bridge.Player(model.PlayerID(playerA))
	require.True(t, ok)
	handle.Disconnect("go away")

	cmd := tb.readCommand(t)
	assert.Equal(t, bridge.CommandDisconnectPlayer, cmd.Type)
	assert.Equal(t, playerA, cmd.PlayerID)
	assert.Equal(t, "go away", cmd.Reason)
}

func TestAddressUpdatesOnRelogin(t *testing.T) {
	tb := newTestBridge(t)
	tb.postLogin(t, playerA, "Alice", sourceAddr)
	tb.postLogin(t, playerA, "Alice", "10.0.0.9")

	handle, ok := tb.bridge.Player(model.PlayerID(playerA))
	require.True(t, ok)
	assert.Equal(t, "10.0.0.9", handle.RemoteAddr())
}
