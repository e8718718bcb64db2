package errors

import (
	"fmt"
	"os/exec"
	"time"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *BoothError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *BoothError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// SessionNotFound creates a session not found error
func SessionNotFound(sessionID string) *BoothError {
	return New(ErrCodeSessionNotFound, fmt.Sprintf("session '%s' not found", sessionID)).
		WithDetail("session_id", sessionID)
}

// CaptureFailed creates a capture failure error. Capture failures are never
// retried automatically; the user presses the button again.
func CaptureFailed(err error) *BoothError {
	return Wrap(err, ErrCodeCaptureFailed, "photo capture failed")
}

// UploadFailed creates an upload failure error for a photo.
func UploadFailed(path string, transient bool, err error) *BoothError {
	e := Wrap(err, ErrCodeUploadFailed, fmt.Sprintf("upload failed: %s", path)).
		WithDetail("photo_path", path)
	e.Transient = transient
	return e
}

// UploadDeferred reports that an upload was not attempted because the kiosk is offline.
func UploadDeferred(path string) *BoothError {
	e := New(ErrCodeUploadDeferred, "upload deferred while offline").
		WithDetail("photo_path", path)
	e.Transient = true
	return e
}

// PersistenceFailed creates a durable-write failure error
func PersistenceFailed(path string, err error) *BoothError {
	return Wrap(err, ErrCodePersistenceFailed, "failed to persist offline queue").
		WithDetail("path", path)
}

// ProbeFailed creates a connectivity probe failure error
func ProbeFailed(probe string, timeout time.Duration, err error) *BoothError {
	return Wrap(err, ErrCodeProbeFailed, fmt.Sprintf("connectivity probe '%s' failed", probe)).
		WithDetail("probe", probe).
		WithDetail("timeout", timeout.String())
}

// CommandFailed creates a command execution failure error
func CommandFailed(cmd string, err error) *BoothError {
	boothErr := Wrap(err, ErrCodeInternal, fmt.Sprintf("command failed: %s", cmd)).
		WithDetail("command", cmd)

	// Extract exit code if available
	if exitErr, ok := err.(*exec.ExitError); ok {
		boothErr = boothErr.WithDetail("exitCode", exitErr.ExitCode())
	}

	return boothErr
}

// DaemonNotRunning creates an error for CLI commands that need a live daemon
func DaemonNotRunning(socket string) *BoothError {
	return New(ErrCodeDaemonNotRunning, "boothd is not running").
		WithDetail("socket", socket)
}
