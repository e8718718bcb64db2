// Package paths provides XDG-compliant path resolution for the booth daemon.
//
// Resolution order:
// 1. BOOTH_HOME (portable root) → $BOOTH_HOME/{config,data,state}
// 2. XDG env vars → $XDG_*_HOME/booth
// 3. Platform defaults → ~/.config/booth, ~/.local/share/booth, ~/.local/state/booth
package paths

import (
	"os"
	"path/filepath"
)

const appName = "booth"

func home(sub, xdgVar string, fallback ...string) string {
	if root := os.Getenv("BOOTH_HOME"); root != "" {
		return filepath.Join(root, sub)
	}
	if dir := os.Getenv(xdgVar); dir != "" {
		return dir
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(append([]string{homeDir}, fallback...)...)
	}
	return ""
}

func appDir(base string) string {
	if base == "" {
		return ""
	}
	return filepath.Join(base, appName)
}

// ConfigDir returns the booth configuration directory (booth.yml).
func ConfigDir() string {
	return appDir(home("config", "XDG_CONFIG_HOME", ".config"))
}

// DataDir returns the booth data directory. Captured pictures live here by default.
func DataDir() string {
	return appDir(home("data", "XDG_DATA_HOME", ".local", "share"))
}

// StateDir returns the booth state directory: offline queue, pid file, logs.
func StateDir() string {
	return appDir(home("state", "XDG_STATE_HOME", ".local", "state"))
}

// RuntimeDir returns the directory for the daemon socket.
// Uses XDG_RUNTIME_DIR when available (Linux), falls back to StateDir.
func RuntimeDir() string {
	if root := os.Getenv("BOOTH_HOME"); root != "" {
		return filepath.Join(root, "run")
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return StateDir()
}

// PicturesDir returns the default capture directory.
func PicturesDir() string {
	return filepath.Join(DataDir(), "pictures")
}

// QueueDir returns the default offline queue directory.
func QueueDir() string {
	return filepath.Join(StateDir(), "queue")
}

// LogsDir returns the default log directory.
func LogsDir() string {
	return filepath.Join(StateDir(), "logs")
}

// SocketPath returns the path to the daemon unix socket.
func SocketPath() string {
	return filepath.Join(RuntimeDir(), "boothd.sock")
}

// PidFilePath returns the path to the daemon PID file.
func PidFilePath() string {
	return filepath.Join(StateDir(), "boothd.pid")
}

// EnsureDirs creates all booth directories if they don't exist.
func EnsureDirs() error {
	for _, dir := range []string{ConfigDir(), DataDir(), StateDir(), RuntimeDir(), QueueDir(), LogsDir()} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
