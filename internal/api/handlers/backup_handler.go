package handlers

import (
	"net/http"

	"github.com/isdelr/ender-world-manager/internal/services"
	"github.com/rs/zerolog/log"
)

// BackupHandler handles HTTP requests related to backups and their upload.
type BackupHandler struct {
	service services.BackupServiceProvider
	sync    services.SyncServiceProvider
}

// NewBackupHandler creates a new BackupHandler.
func NewBackupHandler(service services.BackupServiceProvider, sync services.SyncServiceProvider) *BackupHandler {
	return &BackupHandler{service: service, sync: sync}
}

// UploadPayload is the expected JSON body for uploading an archive.
type UploadPayload struct {
	Filename string `json:"filename"`
}

// Create handles the request to back up a world. It answers once the
// archive is written.
func (h *BackupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload WorldNamePayload
	if !decodeBody(w, r, &payload) {
		return
	}

	result, err := h.service.CreateBackup(r.Context(), payload.Name)
	if err != nil {
		writeFailure(w, err)
		return
	}
	sizeMB := result.SizeMB
	writeJSON(w, http.StatusOK, Result{Success: true, Filename: result.Filename, SizeMB: &sizeMB})
}

// GetAll handles the request to list local archives.
func (h *BackupHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	backups, err := h.service.ListBackups()
	if err != nil {
		log.Error().Err(err).Msg("Failed to list backups")
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, backups)
}

// Upload handles the request to push an archive to remote storage.
func (h *BackupHandler) Upload(w http.ResponseWriter, r *http.Request) {
	var payload UploadPayload
	if !decodeBody(w, r, &payload) {
		return
	}

	msg, err := h.sync.Upload(r.Context(), payload.Filename)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Result{Success: true, Message: msg})
}

// GetRemote handles the request to list archives in remote storage.
func (h *BackupHandler) GetRemote(w http.ResponseWriter, r *http.Request) {
	files, err := h.sync.ListRemote(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	if files == nil {
		files = []string{}
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool     `json:"success"`
		Files   []string `json:"files"`
	}{true, files})
}
