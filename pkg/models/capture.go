package models

import "time"

// CaptureResult is the terminal outcome of one capture request. It is always
// returned, successful or not.
type CaptureResult struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id,omitempty"`
	PhotoPath string `json:"photo_path,omitempty"`
	// RemoteURL is empty when the photo was queued instead of uploaded.
	RemoteURL string `json:"remote_url,omitempty"`
	IsOnline  bool   `json:"is_online"`
	Queued    bool   `json:"queued,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// NetworkStatus is the last probed connectivity state.
type NetworkStatus struct {
	Online    bool      `json:"online"`
	SSID      string    `json:"ssid,omitempty"`
	CheckedAt time.Time `json:"checked_at,omitempty"`
}
