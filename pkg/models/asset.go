package models

import (
	"time"
)

// Asset represents a single piece of servable media content
type Asset struct {
	ID        string    `json:"id" db:"id"`
	Path      string    `json:"path" db:"path"`
	Kind      string    `json:"kind" db:"kind"`
	Status    string    `json:"status" db:"status"`
	Size      int64     `json:"size" db:"size"`
	Codec     string    `json:"codec,omitempty" db:"codec"`
	Width     int       `json:"width,omitempty" db:"width"`
	Height    int       `json:"height,omitempty" db:"height"`
	Duration  float64   `json:"duration,omitempty" db:"duration"`
	Bitrate   int64     `json:"bitrate,omitempty" db:"bitrate"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsServable reports whether the asset may be delivered to clients.
// Status transitions are driven by the admin layer; delivery only reads them.
func (a *Asset) IsServable() bool {
	return a.Status == AssetStatusActive
}

// AssetStatus constants
const (
	AssetStatusActive   = "active"
	AssetStatusInactive = "inactive"
)

// AssetKind constants
const (
	AssetKindMovie = "movie"
	AssetKindMusic = "music"
	AssetKindGame  = "game"
)
