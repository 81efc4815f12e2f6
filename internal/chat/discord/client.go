package discord

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mcoot/discordgate/internal/chat"
)

// DefaultAPIBaseURL is the Discord REST API endpoint
const DefaultAPIBaseURL = "https://discord.com/api/v10"

// Config holds configuration for the Discord client
type Config struct {
	// Token is the bot token
	Token string
	// APIBaseURL overrides the REST endpoint (for testing)
	APIBaseURL string
	// GatewayURL overrides gateway discovery (for testing)
	GatewayURL string
	// ReconnectDelay is the pause between gateway reconnect attempts
	ReconnectDelay time.Duration
}

// DefaultConfig returns sensible defaults for Discord configuration
func DefaultConfig() Config {
	return Config{
		APIBaseURL:     DefaultAPIBaseURL,
		ReconnectDelay: 5 * time.Second,
	}
}

// Client is a minimal Discord bot client: REST calls for DMs and role
// management, and a gateway connection for receiving direct messages.
// It covers exactly what the gate needs and nothing else.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger

	closed chan struct{}
	once   sync.Once
}

// Ensure Client implements the chat interface
var _ chat.Client = (*Client)(nil)

// New creates a new Discord client
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
		closed:     make(chan struct{}),
	}
}

// Close stops the gateway connection and any reconnect loop
func (c *Client) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}
