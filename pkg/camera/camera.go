// Package camera drives the kiosk's capture hardware: an external still
// capture command, a serial-triggered flash and the branding overlay.
package camera

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/grovetools/booth/command"
	"github.com/grovetools/booth/errors"
	"github.com/sirupsen/logrus"
)

// FilePrefix and FileTimeLayout name captured photos: selfie_20261016_101500.jpg.
const (
	FilePrefix     = "selfie_"
	FileTimeLayout = "20060102_150405"
)

// Options configures the camera.
type Options struct {
	// Command is the capture argv. {output}, {width} and {height} are expanded.
	Command     []string
	PicturesDir string
	Width       int
	Height      int
	Timeout     time.Duration

	OverlayPath string

	FlashDevice  string
	FlashTrigger string
	FlashDelay   time.Duration
	FlashBaud    int
}

// Camera implements the capture collaborator on top of external commands.
type Camera struct {
	builder *command.SafeBuilder
	logger  *logrus.Entry
	now     func() time.Time

	mu      sync.RWMutex
	opts    Options
	overlay *overlayCache
}

// New creates a camera. builder runs the capture command.
func New(opts Options, builder *command.SafeBuilder, logger *logrus.Entry) *Camera {
	return &Camera{
		builder: builder,
		logger:  logger,
		now:     time.Now,
		opts:    opts,
		overlay: &overlayCache{},
	}
}

// SetOptions replaces the camera options for subsequent captures.
func (c *Camera) SetOptions(opts Options) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts = opts
}

// Options returns the current options.
func (c *Camera) Options() Options {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.opts
}

// Capture runs the capture command and returns the path of the new photo.
func (c *Camera) Capture(ctx context.Context) (string, error) {
	opts := c.Options()
	if len(opts.Command) == 0 {
		return "", errors.CaptureFailed(fmt.Errorf("no capture command configured"))
	}
	if err := os.MkdirAll(opts.PicturesDir, 0755); err != nil {
		return "", errors.CaptureFailed(fmt.Errorf("create pictures dir: %w", err))
	}

	output := c.nextPath(opts.PicturesDir)
	if err := c.builder.Validate("fileName", output); err != nil {
		return "", errors.CaptureFailed(err)
	}

	cmd, err := c.builder.BuildTemplate(ctx, opts.Command, map[string]string{
		"output": output,
		"width":  strconv.Itoa(opts.Width),
		"height": strconv.Itoa(opts.Height),
	})
	if err != nil {
		return "", errors.CaptureFailed(err)
	}
	if opts.Timeout > 0 {
		cmd = cmd.WithTimeout(opts.Timeout)
	}

	c.logger.WithField("command", cmd.String()).Debug("Running capture command")
	if out, err := cmd.Run(); err != nil {
		_ = os.Remove(output)
		return "", errors.CaptureFailed(errors.CommandFailed(cmd.String(), err).
			WithDetail("output", truncate(string(out), 512)))
	}

	info, err := os.Stat(output)
	if err != nil {
		return "", errors.CaptureFailed(fmt.Errorf("capture command produced no file: %w", err))
	}
	if info.Size() == 0 {
		_ = os.Remove(output)
		return "", errors.CaptureFailed(fmt.Errorf("capture command produced an empty file"))
	}

	c.logger.WithField("photo_path", output).Info("Photo captured")
	return output, nil
}

// nextPath returns a fresh selfie_<timestamp>.jpg path, adding a counter
// when two captures land in the same second.
func (c *Camera) nextPath(dir string) string {
	base := FilePrefix + c.now().Format(FileTimeLayout)
	path := filepath.Join(dir, base+".jpg")
	for i := 1; fileExists(path); i++ {
		path = filepath.Join(dir, fmt.Sprintf("%s_%d.jpg", base, i))
	}
	return path
}

// TriggerFlash fires the flash and waits the configured delay. It reports
// whether the flash fired; failures are logged and never block capture.
func (c *Camera) TriggerFlash(ctx context.Context) bool {
	opts := c.Options()
	if opts.FlashDevice == "" {
		return false
	}
	f := &Flash{
		Device:  opts.FlashDevice,
		Trigger: opts.FlashTrigger,
		Delay:   opts.FlashDelay,
		Baud:    opts.FlashBaud,
	}
	if err := f.Fire(ctx); err != nil {
		c.logger.WithError(err).WithField("device", opts.FlashDevice).Warn("Flash trigger failed")
		return false
	}
	return true
}

// ApplyOverlay composites the configured overlay onto path. On any failure
// the original path is returned and the photo is left untouched.
func (c *Camera) ApplyOverlay(ctx context.Context, path string) string {
	opts := c.Options()
	if opts.OverlayPath == "" {
		return path
	}
	if ctx.Err() != nil {
		return path
	}

	out, err := c.overlay.apply(path, opts.OverlayPath)
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"photo_path": path,
			"overlay":    opts.OverlayPath,
		}).Warn("Overlay failed, keeping original photo")
		return path
	}
	return out
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
