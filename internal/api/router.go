package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/discordgate/internal/api/handler"
	apimiddleware "github.com/mcoot/discordgate/internal/api/middleware"
	"github.com/mcoot/discordgate/internal/middleware"
	"github.com/mcoot/discordgate/internal/services/gate"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger *slog.Logger
	Gate   *gate.Gate
	// AdminTokenHash is the bcrypt hash of the admin bearer token
	AdminTokenHash string
}

// NewRouter creates the admin API router
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	gateHandler := handler.NewGateHandler(cfg.Gate)

	authMiddleware := apimiddleware.Auth(cfg.AdminTokenHash)
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger, middleware.DefaultPanicHandler)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	// Health is unauthenticated for probes
	api.HandleFunc("/health", gateHandler.Health).Methods(http.MethodGet)

	// Admin routes
	admin := api.PathPrefix("").Subrouter()
	admin.Use(authMiddleware)
	admin.HandleFunc("/status", gateHandler.Status).Methods(http.MethodGet)
	admin.HandleFunc("/links", gateHandler.ListLinks).Methods(http.MethodGet)
	admin.HandleFunc("/links/{discord_id}", gateHandler.RevokeLink).Methods(http.MethodDelete)

	return r
}
