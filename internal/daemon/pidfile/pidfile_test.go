package pidfile

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/grovetools/booth/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "boothd.pid")

	require.NoError(t, Acquire(path))
	pid, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	running, got, err := IsRunning(path)
	require.NoError(t, err)
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), got)

	// re-acquiring our own pidfile is fine
	require.NoError(t, Acquire(path))

	require.NoError(t, Release(path))
	assert.NoFileExists(t, path)
	require.NoError(t, Release(path), "releasing twice is a no-op")
}

func TestAcquireReplacesStaleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boothd.pid")
	// PIDs this large are not handed out on Linux or macOS
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(1<<30)), 0644))

	require.NoError(t, Acquire(path))
	pid, _ := Read(path)
	assert.Equal(t, os.Getpid(), pid)
}

func TestReleaseLeavesForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boothd.pid")
	require.NoError(t, os.WriteFile(path, []byte("1"), 0644))

	require.NoError(t, Release(path))
	assert.FileExists(t, path)
}

func TestStopWithoutDaemon(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boothd.pid")

	_, err := Stop(path, time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeDaemonNotRunning))
}
