package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcoot/discordgate/internal/api"
	"github.com/mcoot/discordgate/internal/chat/discord"
	"github.com/mcoot/discordgate/internal/config"
	"github.com/mcoot/discordgate/internal/factory"
)

func main() {
	configPath := flag.String("config", "discordgate.yaml", "path to config file")
	flag.Parse()

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath, logger)
	if err != nil {
		if errors.Is(err, config.ErrDefaultWritten) {
			logger.Info("edit the generated config and restart",
				slog.String("path", *configPath))
			os.Exit(1)
		}
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Create the Discord client
	discordCfg := discord.DefaultConfig()
	discordCfg.Token = cfg.Discord.Token
	chatClient := discord.New(discordCfg, logger)

	// Create application factory
	app, err := factory.New(cfg, chatClient, logger)
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = app.Links.Close() }()

	// Connect the Discord gateway, feeding inbound DMs to the gate
	if err := chatClient.Connect(context.Background(), app.Gate.HandleDirectMessage); err != nil {
		logger.Error("failed to connect Discord gateway", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = chatClient.Close() }()

	// Admin API plus the proxy bridge endpoint
	apiRouter := api.NewRouter(api.RouterConfig{
		Logger:         logger,
		Gate:           app.Gate,
		AdminTokenHash: cfg.AdminAPI.TokenHash,
	})

	mux := http.NewServeMux()
	mux.Handle("/api/", apiRouter)
	mux.Handle("/proxy/ws", app.Bridge)

	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = cfg.Server.ListenAddr
	serverConfig.Port = cfg.Server.Port
	server := api.NewServer(mux, serverConfig, logger)

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started", slog.String("addr", server.Addr()))

	// Wait for shutdown or error
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	case <-ctx.Done():
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	logger.Info("server stopped")
}
