package handlers

import (
	"net/http"

	"github.com/isdelr/ender-world-manager/internal/properties"
	"github.com/isdelr/ender-world-manager/internal/services"
	"github.com/rs/zerolog/log"
)

// ServerHandler handles HTTP requests about the game server itself.
type ServerHandler struct {
	status services.StatusServiceProvider
	sync   services.SyncServiceProvider
	props  *properties.Store
}

// NewServerHandler creates a new ServerHandler.
func NewServerHandler(status services.StatusServiceProvider, sync services.SyncServiceProvider, props *properties.Store) *ServerHandler {
	return &ServerHandler{status: status, sync: sync, props: props}
}

// CommandPayload is the expected JSON body for a console command.
type CommandPayload struct {
	Command string `json:"command"`
}

type commandResult struct {
	Success  bool   `json:"success"`
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// Status handles the request for the live server status.
func (h *ServerHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.status.GetStatus(r.Context()))
}

// Command handles the request to run a raw console command.
func (h *ServerHandler) Command(w http.ResponseWriter, r *http.Request) {
	var payload CommandPayload
	if !decodeBody(w, r, &payload) {
		return
	}

	response, err := h.status.ExecuteCommand(r.Context(), payload.Command)
	if err != nil {
		writeJSON(w, http.StatusOK, commandResult{Success: false, Error: services.UserMessage(err)})
		return
	}
	writeJSON(w, http.StatusOK, commandResult{Success: true, Response: response})
}

// Properties handles the request for the full server.properties mapping.
// A missing file yields an empty object.
func (h *ServerHandler) Properties(w http.ResponseWriter, r *http.Request) {
	entries, err := h.props.Read()
	if err != nil {
		log.Warn().Err(err).Str("path", h.props.Path()).Msg("Could not read server.properties")
		writeJSON(w, http.StatusOK, properties.Map{})
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// SyncStatus handles the request for the remote storage configuration status.
func (h *ServerHandler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sync.Status())
}
