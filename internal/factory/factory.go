package factory

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/discordgate/internal/chat"
	"github.com/mcoot/discordgate/internal/config"
	"github.com/mcoot/discordgate/internal/dependencies/clock"
	"github.com/mcoot/discordgate/internal/dependencies/random"
	"github.com/mcoot/discordgate/internal/dependencies/scheduler"
	"github.com/mcoot/discordgate/internal/model"
	"github.com/mcoot/discordgate/internal/proxy/bridge"
	"github.com/mcoot/discordgate/internal/services/abuse"
	"github.com/mcoot/discordgate/internal/services/allowlist"
	"github.com/mcoot/discordgate/internal/services/gate"
	"github.com/mcoot/discordgate/internal/services/session"
	"github.com/mcoot/discordgate/internal/storage"
	filestorage "github.com/mcoot/discordgate/internal/storage/file"
	"github.com/mcoot/discordgate/internal/storage/memory"
	redisstorage "github.com/mcoot/discordgate/internal/storage/redis"
)

// App contains all wired application components
type App struct {
	// Storage
	Links storage.LinkStore

	// External dependencies
	Clock     clock.Clock
	Random    random.Random
	Scheduler scheduler.Scheduler

	// Services
	Sessions *session.Tracker
	Guard    *abuse.Guard
	Allow    *allowlist.List
	Bridge   *bridge.Bridge
	Gate     *gate.Gate
}

// New creates a new application with all dependencies wired. The chat
// client is injected because its connection lifecycle (gateway connect,
// close) belongs to the caller.
func New(cfg *config.Config, chatClient chat.Client, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	links, err := newLinkStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	clk := clock.New()
	rnd := random.New()
	sched := scheduler.New()

	return newWithDependencies(cfg, links, chatClient, clk, rnd, sched, logger), nil
}

func newLinkStore(cfg *config.Config, logger *slog.Logger) (storage.LinkStore, error) {
	switch cfg.Storage.Type {
	case config.StorageTypeFile:
		return filestorage.New(cfg.Storage.Path, logger)
	case config.StorageTypeMemory:
		return memory.New(), nil
	case config.StorageTypeRedis:
		redisCfg := redisstorage.DefaultConfig()
		if cfg.Storage.RedisURL != "" {
			redisCfg.URL = cfg.Storage.RedisURL
		}
		return redisstorage.New(redisCfg)
	default:
		return nil, fmt.Errorf("invalid storage type %q", cfg.Storage.Type)
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	cfg *config.Config,
	links storage.LinkStore,
	chatClient chat.Client,
	clk clock.Clock,
	rnd random.Random,
	sched scheduler.Scheduler,
	logger *slog.Logger,
) *App {
	sessions := session.New(clk, rnd, sched, cfg.Auth.VerifyWindow)
	guard := abuse.New(clk, cfg.Auth.MaxFailures, cfg.Auth.BlockDuration)
	allow := allowlist.Load(cfg.AllowListPath, logger)
	b := bridge.New(logger)

	g := gate.New(gate.Config{
		GuildID:      cfg.Discord.GuildID,
		RoleID:       cfg.Discord.RoleID,
		AdminID:      model.DiscordID(cfg.Discord.AdminID),
		VerifyWindow: cfg.Auth.VerifyWindow,
	}, links, sessions, guard, allow, chatClient, b, logger)
	b.SetEvents(g)

	return &App{
		Links:     links,
		Clock:     clk,
		Random:    rnd,
		Scheduler: sched,
		Sessions:  sessions,
		Guard:     guard,
		Allow:     allow,
		Bridge:    b,
		Gate:      g,
	}
}
