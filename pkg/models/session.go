package models

import (
	"time"
)

// Session groups the photos taken during one kiosk interaction.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	// LastActivity is refreshed every time the session is reused for "take another".
	LastActivity time.Time `json:"last_activity"`
	Photos       []Photo   `json:"photos"`

	// Remote destination, set lazily on the first successful upload.
	DriveFolderRef string `json:"drive_folder_ref,omitempty"`
	ShareURL       string `json:"share_url,omitempty"`
}

// Photo is a single captured image belonging to a session.
type Photo struct {
	LocalPath  string    `json:"local_path"`
	RemoteURL  string    `json:"remote_url,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
	Uploaded   bool      `json:"uploaded"`
}

// Clone returns a deep copy that is safe to hand out of a lock.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Photos = make([]Photo, len(s.Photos))
	copy(out.Photos, s.Photos)
	return &out
}

// UploadedCount returns the number of photos with a remote URL.
func (s *Session) UploadedCount() int {
	n := 0
	for _, p := range s.Photos {
		if p.Uploaded {
			n++
		}
	}
	return n
}

// ActiveSince returns the later of CreatedAt and LastActivity.
func (s *Session) ActiveSince() time.Time {
	if s.LastActivity.After(s.CreatedAt) {
		return s.LastActivity
	}
	return s.CreatedAt
}

// QRType distinguishes the two QR payload shapes shown to the user.
type QRType string

const (
	QROnline  QRType = "online"
	QROffline QRType = "offline"
)

// OfflineMessage is shown on the QR screen when no link exists yet.
const OfflineMessage = "Photos will be available online later"

// QRPayload is the data the presentation layer renders as a QR code.
type QRPayload struct {
	Type       QRType `json:"type"`
	URL        string `json:"url,omitempty"`
	PhotoCount int    `json:"photo_count"`
	SessionID  string `json:"session_id"`
	Message    string `json:"message,omitempty"`
}
