package paths

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoothHomeWins(t *testing.T) {
	root := t.TempDir()
	t.Setenv("BOOTH_HOME", root)
	t.Setenv("XDG_CONFIG_HOME", "/elsewhere")

	assert.Equal(t, filepath.Join(root, "config", "booth"), ConfigDir())
	assert.Equal(t, filepath.Join(root, "state", "booth"), StateDir())
	assert.Equal(t, filepath.Join(root, "run", "boothd.sock"), SocketPath())
	assert.Equal(t, filepath.Join(root, "state", "booth", "queue"), QueueDir())
}

func TestXDGVars(t *testing.T) {
	t.Setenv("BOOTH_HOME", "")
	t.Setenv("XDG_STATE_HOME", "/var/lib/kiosk")
	t.Setenv("XDG_RUNTIME_DIR", "")

	assert.Equal(t, "/var/lib/kiosk/booth", StateDir())
	assert.Equal(t, "/var/lib/kiosk/booth/boothd.pid", PidFilePath())
	assert.Equal(t, StateDir(), RuntimeDir())
}

func TestEnsureDirs(t *testing.T) {
	root := t.TempDir()
	t.Setenv("BOOTH_HOME", root)
	assert.NoError(t, EnsureDirs())
	assert.DirExists(t, LogsDir())
	assert.DirExists(t, QueueDir())
}
