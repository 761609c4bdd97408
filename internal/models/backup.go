package models

import "time"

// BackupArchive is a compressed snapshot of one world in the backups directory.
type BackupArchive struct {
	Filename  string    `json:"filename"`
	World     string    `json:"world"`
	SizeBytes int64     `json:"sizeBytes"`
	SizeMB    float64   `json:"sizeMB"`
	CreatedAt time.Time `json:"createdAt"`
	Path      string    `json:"-"` // Internal use, not exposed to client
}

// BackupResult is returned by a successful backup.
type BackupResult struct {
	Filename  string  `json:"filename"`
	SizeBytes int64   `json:"sizeBytes"`
	SizeMB    float64 `json:"sizeMB"`
}

// BytesToMB converts a byte count to megabytes rounded to two decimals.
func BytesToMB(n int64) float64 {
	mb := float64(n) / (1024 * 1024)
	return float64(int64(mb*100+0.5)) / 100
}
