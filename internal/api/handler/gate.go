package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/discordgate/internal/api/apierr"
	"github.com/mcoot/discordgate/internal/api/response"
	"github.com/mcoot/discordgate/internal/model"
	"github.com/mcoot/discordgate/internal/services/gate"
)

// GateHandler serves the admin endpoints over the gate
type GateHandler struct {
	gate *gate.Gate
}

// NewGateHandler creates a new GateHandler
func NewGateHandler(g *gate.Gate) *GateHandler {
	return &GateHandler{gate: g}
}

// Health responds to liveness probes
func (h *GateHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Status returns link, session, and block counts
func (h *GateHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.gate.CurrentStatus(r.Context())
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, status)
}

// ListLinks returns all verified links
func (h *GateHandler) ListLinks(w http.ResponseWriter, r *http.Request) {
	links, err := h.gate.Links(r.Context())
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{"links": links})
}

// RevokeLink removes a verified link by Discord ID, kicking the player
// if they are online
func (h *GateHandler) RevokeLink(w http.ResponseWriter, r *http.Request) {
	discordID := mux.Vars(r)["discord_id"]
	if discordID == "" {
		apierr.WriteError(w, apierr.NewInvalidRequestError("discord_id is required"))
		return
	}

	playerID, err := h.gate.RevokeLink(r.Context(), model.DiscordID(discordID))
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{
		"player_id":  string(playerID),
		"discord_id": discordID,
	})
}
