package handlers

import (
	"net/http"

	"github.com/isdelr/ender-world-manager/internal/services"
	"github.com/rs/zerolog/log"
)

// WorldHandler handles HTTP requests related to worlds.
type WorldHandler struct {
	service services.WorldServiceProvider
}

// NewWorldHandler creates a new WorldHandler.
func NewWorldHandler(service services.WorldServiceProvider) *WorldHandler {
	return &WorldHandler{service: service}
}

// WorldNamePayload is the expected JSON body for requests naming a world.
type WorldNamePayload struct {
	Name string `json:"name"`
}

// GetAll handles the request to list all worlds.
func (h *WorldHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	worlds, err := h.service.ListWorlds()
	if err != nil {
		log.Error().Err(err).Msg("Failed to list worlds")
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, worlds)
}

// Create handles the request to create a new world.
func (h *WorldHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.CreateWorldRequest
	if !decodeBody(w, r, &req) {
		return
	}

	msg, err := h.service.CreateWorld(r.Context(), req)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Result{Success: true, Message: msg})
}

// Delete handles the request to delete a world.
func (h *WorldHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var payload WorldNamePayload
	if !decodeBody(w, r, &payload) {
		return
	}

	if err := h.service.DeleteWorld(payload.Name); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Result{Success: true})
}
