// Package pidfile guards against two booth daemons driving the same camera.
package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/grovetools/booth/errors"
	"github.com/grovetools/booth/pkg/process"
)

// Acquire writes the current PID to path. A live owner is an error; a stale
// file left by a crashed daemon is replaced.
func Acquire(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create pid directory: %w", err)
	}

	if running, pid, _ := IsRunning(path); running && pid != os.Getpid() {
		return errors.New(errors.ErrCodeInternal, fmt.Sprintf("boothd already running with PID %d", pid)).
			WithDetail("pid", pid).
			WithDetail("pidfile", path)
	}
	_ = os.Remove(path)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write pid file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write pid file: %w", err)
	}
	return nil
}

// Release removes the PID file if this process owns it.
func Release(path string) error {
	pid, err := Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if pid != os.Getpid() {
		return nil
	}
	return os.Remove(path)
}

// Read returns the PID stored in the file.
func Read(path string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(content)))
}

// IsRunning checks if the daemon described by the pidfile is alive.
func IsRunning(path string) (bool, int, error) {
	pid, err := Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	return process.IsProcessAlive(pid), pid, nil
}

// Stop sends SIGTERM to the recorded daemon and waits up to timeout for it
// to exit. It returns the stopped PID.
func Stop(path string, timeout time.Duration) (int, error) {
	running, pid, err := IsRunning(path)
	if err != nil {
		return 0, err
	}
	if !running {
		_ = os.Remove(path)
		return 0, errors.DaemonNotRunning(path)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return pid, err
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return pid, fmt.Errorf("failed to signal PID %d: %w", pid, err)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !process.IsProcessAlive(pid) {
			return pid, nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return pid, fmt.Errorf("PID %d did not exit within %s", pid, timeout)
}
