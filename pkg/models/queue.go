package models

import "time"

// QueueItem is a photo waiting for upload.
type QueueItem struct {
	SessionID  string    `json:"session_id" yaml:"session_id"`
	PhotoPath  string    `json:"photo_path" yaml:"photo_path"`
	EnqueuedAt time.Time `json:"enqueued_at" yaml:"enqueued_at"`
}

// QueueKey identifies a queue entry. At most one item exists per key.
type QueueKey struct {
	SessionID string
	PhotoPath string
}

// Key returns the identity of the item.
func (q QueueItem) Key() QueueKey {
	return QueueKey{SessionID: q.SessionID, PhotoPath: q.PhotoPath}
}

// UploadResult is what a successful upload returns.
type UploadResult struct {
	// URL is the link to the uploaded photo.
	URL string `json:"url"`
	// FolderRef identifies the session folder on the remote side, if any.
	FolderRef string `json:"folder_ref,omitempty"`
	// FolderURL is a shareable link to the whole session folder.
	FolderURL string `json:"folder_url,omitempty"`
}
