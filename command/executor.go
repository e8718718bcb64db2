package command

import (
	"context"
	"os"
	"os/exec"
	"time"
)

// waitDelay bounds how long Wait blocks on output pipes after the process
// was killed; camera helpers sometimes leave children holding stdout.
const waitDelay = 2 * time.Second

// Executor creates the exec.Cmd behind every external command. Tests
// replace it to run fake binaries.
type Executor interface {
	CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd
}

// RealExecutor runs commands with the daemon's environment plus Env.
type RealExecutor struct {
	// Env entries are appended to os.Environ, so they win over inherited values.
	Env []string
}

// CommandContext returns a context-bound command.
func (e *RealExecutor) CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = waitDelay
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}
	return cmd
}
