package models

import "time"

// Event represents a loggable action or alert in the system.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`  // e.g., "world.delete", "backup.create"
	Level     string    `json:"level"` // e.g., "info", "warn", "error"
	Message   string    `json:"message"`
	World     *string   `json:"world,omitempty"` // Nullable for server-wide events
	CreatedAt time.Time `json:"createdAt"`
}
