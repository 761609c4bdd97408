package models

import "github.com/isdelr/ender-world-manager/internal/properties"

// ServerStatus is the live view of the game server.
type ServerStatus struct {
	Online           bool           `json:"online"`
	Players          []string       `json:"players"`
	PlayerCount      int            `json:"playerCount"`
	MaxPlayers       int            `json:"maxPlayers"`
	ServerProperties properties.Map `json:"serverProperties"`
	GDrive           SyncStatus     `json:"gdrive"`
	Disk             *DiskUsage     `json:"disk,omitempty"`
}

// DiskUsage holds capacity figures for the filesystem holding the data root.
type DiskUsage struct {
	TotalBytes  uint64  `json:"totalBytes"`
	FreeBytes   uint64  `json:"freeBytes"`
	UsedPercent float64 `json:"usedPercent"`
}

// SyncStatus reports whether remote storage is configured.
type SyncStatus struct {
	Configured bool   `json:"configured"`
	Message    string `json:"message"`
}
