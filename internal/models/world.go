package models

import "time"

// World is a directory under the data root that holds a level.dat.
type World struct {
	Name         string    `json:"name"`
	Active       bool      `json:"active"`
	SizeBytes    int64     `json:"sizeBytes"`
	LastModified time.Time `json:"lastModified"`
}
