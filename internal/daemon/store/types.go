// Package store provides the in-memory session registry for the booth daemon.
package store

// UpdateType defines what kind of data changed.
type UpdateType string

const (
	UpdateSessions     UpdateType = "sessions"
	UpdateNetwork      UpdateType = "network"
	UpdateQueue        UpdateType = "queue"
	UpdateUpload       UpdateType = "upload"
	UpdateCapture      UpdateType = "capture"
	UpdateConfigReload UpdateType = "config_reload"
)

// Update represents a change to the daemon state.
type Update struct {
	Type    UpdateType  `json:"type"`
	Source  string      `json:"source,omitempty"` // Which component sent this update (e.g., "netmon", "reconciler", "capture")
	Payload interface{} `json:"payload,omitempty"`
}
