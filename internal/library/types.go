// Package library stores generated textures in a SQLite database.
package library

import (
	"errors"
	"time"

	"github.com/MeKo-Tech/textilegen/internal/noise"
	"github.com/MeKo-Tech/textilegen/internal/pattern"
)

var ErrNotFound = errors.New("texture not found")

// Metadata describes the library file itself.
type Metadata struct {
	Name        string
	Description string
	Version     string
}

// ToMap converts Metadata to rows of the metadata table.
func (m Metadata) ToMap() map[string]string {
	result := make(map[string]string)
	if m.Name != "" {
		result["name"] = m.Name
	}
	if m.Description != "" {
		result["description"] = m.Description
	}
	if m.Version != "" {
		result["version"] = m.Version
	}
	return result
}

// Record is a stored texture without its pixel data.
type Record struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Pattern   string           `json:"pattern"`
	Settings  pattern.Settings `json:"settings"`
	Noise     noise.Settings   `json:"noise"`
	Width     int              `json:"width"`
	Height    int              `json:"height"`
	CreatedAt time.Time        `json:"createdAt"`
}
