package models

import (
	"time"
)

// TranscodeJob describes a queued normalization job for one asset. Jobs are
// ephemeral: they live on the message queue and in memory while a worker
// holds them, never in the catalog.
type TranscodeJob struct {
	ID        string    `json:"id"`
	AssetID   string    `json:"asset_id"`
	ObjectKey string    `json:"object_key,omitempty"`
	Priority  int       `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
}

// JobPriority constants
const (
	JobPriorityLow    = 0
	JobPriorityNormal = 5
	JobPriorityHigh   = 10
)
