// Package netprobe implements connectivity probes for the network monitor.
package netprobe

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/grovetools/booth/command"
)

// DefaultPingCommand pings once with a whole-second reply timeout.
var DefaultPingCommand = []string{"ping", "-c", "1", "-W", "{timeout}", "{host}"}

// CommandProber pings a host with an external command. A non-zero exit is a
// normal "offline" answer; only failing to run the command is an error.
type CommandProber struct {
	Host        string
	PingCommand []string
	SSIDCommand []string

	builder *command.SafeBuilder
}

// NewCommandProber creates a ping prober.
func NewCommandProber(builder *command.SafeBuilder, host string, ssidCommand []string) *CommandProber {
	return &CommandProber{
		Host:        host,
		PingCommand: DefaultPingCommand,
		SSIDCommand: ssidCommand,
		builder:     builder,
	}
}

// Name identifies the prober in logs and errors.
func (p *CommandProber) Name() string { return "ping" }

// Probe implements netmon.Prober.
func (p *CommandProber) Probe(ctx context.Context) (bool, string, error) {
	if err := p.builder.Validate("hostName", p.Host); err != nil {
		return false, "", err
	}

	cmd, err := p.builder.BuildTemplate(ctx, p.PingCommand, map[string]string{
		"host":    p.Host,
		"timeout": strconv.Itoa(replySeconds(ctx)),
	})
	if err != nil {
		return false, "", err
	}

	if _, err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return false, "", ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return false, "", nil
		}
		return false, "", fmt.Errorf("run %s: %w", cmd.String(), err)
	}
	return true, currentSSID(ctx, p.builder, p.SSIDCommand), nil
}

// TCPProber dials a TCP address; a completed handshake means online.
type TCPProber struct {
	Address     string
	SSIDCommand []string

	builder *command.SafeBuilder
	dialer  net.Dialer
}

// NewTCPProber creates a dial prober. builder runs the SSID command and may
// be nil when no SSID command is configured.
func NewTCPProber(builder *command.SafeBuilder, address string, ssidCommand []string) *TCPProber {
	return &TCPProber{Address: address, SSIDCommand: ssidCommand, builder: builder}
}

// Name identifies the prober in logs and errors.
func (p *TCPProber) Name() string { return "tcp" }

// Probe implements netmon.Prober.
func (p *TCPProber) Probe(ctx context.Context) (bool, string, error) {
	conn, err := p.dialer.DialContext(ctx, "tcp", p.Address)
	if err != nil {
		if ctx.Err() != nil {
			return false, "", ctx.Err()
		}
		return false, "", nil
	}
	conn.Close()
	return true, currentSSID(ctx, p.builder, p.SSIDCommand), nil
}

// currentSSID runs the SSID command. Wired kiosks have no SSID, so any
// failure is an empty answer.
func currentSSID(ctx context.Context, builder *command.SafeBuilder, argv []string) string {
	if builder == nil || len(argv) == 0 {
		return ""
	}
	cmd, err := builder.Build(ctx, argv[0], argv[1:]...)
	if err != nil {
		return ""
	}
	out, err := cmd.WithTimeout(2 * time.Second).Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// replySeconds converts the remaining context time to ping's -W argument.
func replySeconds(ctx context.Context) int {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 3
	}
	secs := int(math.Floor(time.Until(deadline).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
