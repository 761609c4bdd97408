package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/isdelr/ender-world-manager/internal/services"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

// Result is the envelope of every mutating endpoint. Domain failures are
// reported with Success=false and a 200 status.
type Result struct {
	Success  bool     `json:"success"`
	Message  string   `json:"message,omitempty"`
	Error    string   `json:"error,omitempty"`
	Filename string   `json:"filename,omitempty"`
	SizeMB   *float64 `json:"sizeMB,omitempty"`
	Files    []string `json:"files,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeFailure(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusOK, Result{Success: false, Error: services.UserMessage(err)})
}

// decodeBody reads a JSON request body into v. A malformed body is answered
// with 400 and decodeBody returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		log.Debug().Err(err).Str("path", r.URL.Path).Msg("Invalid request body")
		writeJSON(w, http.StatusBadRequest, Result{Success: false, Error: "Invalid request body"})
		return false
	}
	return true
}
