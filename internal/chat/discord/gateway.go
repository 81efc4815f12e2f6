package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/discordgate/internal/chat"
	"github.com/mcoot/discordgate/internal/model"
)

// Gateway opcodes (the subset this client speaks)
const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opHello          = 10
	opHeartbeatACK   = 11
	opReconnect      = 7
	opInvalidSession = 9
)

// Gateway intents: guild members, guild messages, direct messages,
// message content
const identifyIntents = (1 << 1) | (1 << 9) | (1 << 12) | (1 << 15)

type gatewayPayload struct {
	Op   int             `json:"op"`
	Data json.RawMessage `json:"d,omitempty"`
	Seq  *int64          `json:"s,omitempty"`
	Type string          `json:"t,omitempty"`
}

// Connect starts the gateway connection and delivers inbound direct
// messages to handler. It returns once the first connection attempt has
// either succeeded or failed; reconnection after that is handled
// internally until Close is called.
func (c *Client) Connect(ctx context.Context, handler chat.MessageHandler) error {
	if err := c.runSession(ctx, handler, true); err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-c.closed:
				return
			case <-time.After(c.cfg.ReconnectDelay):
			}

			if err := c.runSession(context.Background(), handler, false); err != nil {
				c.logger.Warn("discord gateway reconnect failed",
					slog.String("error", err.Error()))
			}
		}
	}()
	return nil
}

// gatewayURL discovers the gateway endpoint unless one was configured
func (c *Client) gatewayURL(ctx context.Context) (string, error) {
	if c.cfg.GatewayURL != "" {
		return c.cfg.GatewayURL, nil
	}

	var resp struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodGet, "/gateway/bot", nil, &resp); err != nil {
		return "", fmt.Errorf("discovering gateway: %w", err)
	}
	return resp.URL, nil
}

// runSession runs one gateway session: dial, hello/identify handshake,
// heartbeats, and the dispatch read loop. When background is true the
// read loop runs on its own goroutine and runSession returns after the
// handshake; otherwise it blocks until the session ends.
func (c *Client) runSession(ctx context.Context, handler chat.MessageHandler, background bool) error {
	url, err := c.gatewayURL(ctx)
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dialing gateway: %w", err)
	}

	sess := &gatewaySession{client: c, conn: conn, handler: handler}
	if err := sess.handshake(); err != nil {
		_ = conn.Close()
		return err
	}

	c.logger.Info("discord gateway connected")

	if background {
		go sess.readLoop()
		return nil
	}
	sess.readLoop()
	return nil
}

type gatewaySession struct {
	client  *Client
	conn    *websocket.Conn
	handler chat.MessageHandler

	writeMu sync.Mutex
	seq     int64
	done    chan struct{}
}

func (s *gatewaySession) send(p gatewayPayload) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(p)
}

// handshake reads the hello payload, starts heartbeats, and identifies
func (s *gatewaySession) handshake() error {
	var hello gatewayPayload
	if err := s.conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("reading hello: %w", err)
	}
	if hello.Op != opHello {
		return fmt.Errorf("expected hello opcode, got %d", hello.Op)
	}

	var helloData struct {
		HeartbeatInterval int `json:"heartbeat_interval"`
	}
	if err := json.Unmarshal(hello.Data, &helloData); err != nil {
		return fmt.Errorf("decoding hello: %w", err)
	}

	s.done = make(chan struct{})
	go s.heartbeatLoop(time.Duration(helloData.HeartbeatInterval) * time.Millisecond)

	identify, err := json.Marshal(map[string]any{
		"token":   s.client.cfg.Token,
		"intents": identifyIntents,
		"properties": map[string]string{
			"os":      "linux",
			"browser": "discordgate",
			"device":  "discordgate",
		},
	})
	if err != nil {
		return err
	}
	return s.send(gatewayPayload{Op: opIdentify, Data: identify})
}

func (s *gatewaySession) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-s.client.closed:
			return
		case <-ticker.C:
			if err := s.sendHeartbeat(); err != nil {
				return
			}
		}
	}
}

func (s *gatewaySession) sendHeartbeat() error {
	seq, err := json.Marshal(s.currentSeq())
	if err != nil {
		return err
	}
	return s.send(gatewayPayload{Op: opHeartbeat, Data: seq})
}

func (s *gatewaySession) currentSeq() int64 {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.seq
}

// readLoop processes gateway payloads until the connection drops or the
// client closes
func (s *gatewaySession) readLoop() {
	defer close(s.done)
	defer func() { _ = s.conn.Close() }()

	for {
		select {
		case <-s.client.closed:
			return
		default:
		}

		var p gatewayPayload
		if err := s.conn.ReadJSON(&p); err != nil {
			select {
			case <-s.client.closed:
			default:
				s.client.logger.Warn("discord gateway read failed",
					slog.String("error", err.Error()))
			}
			return
		}

		if p.Seq != nil {
			s.writeMu.Lock()
			s.seq = *p.Seq
			s.writeMu.Unlock()
		}

		switch p.Op {
		case opDispatch:
			if p.Type == "MESSAGE_CREATE" {
				s.handleMessageCreate(p.Data)
			}
		case opHeartbeat:
			_ = s.sendHeartbeat()
		case opReconnect, opInvalidSession:
			s.client.logger.Info("discord gateway requested reconnect")
			return
		case opHeartbeatACK:
			// nothing to do
		}
	}
}

// handleMessageCreate forwards direct messages from humans to the
// handler. Guild messages (guild_id set) and bot authors are ignored.
func (s *gatewaySession) handleMessageCreate(data json.RawMessage) {
	var msg struct {
		GuildID string `json:"guild_id"`
		Content string `json:"content"`
		Author  struct {
			ID  string `json:"id"`
			Bot bool   `json:"bot"`
		} `json:"author"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		s.client.logger.Warn("could not decode message event",
			slog.String("error", err.Error()))
		return
	}

	if msg.GuildID != "" || msg.Author.Bot {
		return
	}

	s.handler(context.Background(), model.DiscordID(msg.Author.ID), msg.Content)
}
