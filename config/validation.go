package config

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/grovetools/booth/errors"
)

var pinRegex = regexp.MustCompile(`^[0-9]{4,8}$`)

// Validate checks semantic constraints the schema cannot express.
func (c *Config) Validate() error {
	switch c.Queue.Backend {
	case "file", "sqlite":
	default:
		return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("unknown queue backend '%s' (want file or sqlite)", c.Queue.Backend)).
			WithDetail("field", "queue.backend")
	}
	if err := validatePath("queue.path", c.Queue.Path); err != nil {
		return err
	}

	switch c.Network.Probe {
	case "command":
		if strings.TrimSpace(c.Network.PingHost) == "" {
			return errors.New(errors.ErrCodeConfigValidation, "network.ping_host cannot be empty for the command probe")
		}
	case "tcp":
		if _, _, err := net.SplitHostPort(c.Network.TCPAddress); err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigValidation, fmt.Sprintf("invalid network.tcp_address '%s'", c.Network.TCPAddress)).
				WithDetail("field", "network.tcp_address")
		}
	default:
		return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("unknown network probe '%s' (want command or tcp)", c.Network.Probe)).
			WithDetail("field", "network.probe")
	}

	if c.Network.ProbeTimeout.D() >= c.Network.PollInterval.D() {
		return errors.New(errors.ErrCodeConfigValidation, "network.probe_timeout must be shorter than network.poll_interval").
			WithDetail("probe_timeout", c.Network.ProbeTimeout.String()).
			WithDetail("poll_interval", c.Network.PollInterval.String())
	}

	if c.Reconciler.ErrorBackoff.D() > c.Reconciler.Interval.D() {
		return errors.New(errors.ErrCodeConfigValidation, "reconciler.error_backoff cannot exceed reconciler.interval").
			WithDetail("field", "reconciler.error_backoff")
	}

	if c.Upload.Endpoint != "" {
		u, err := url.Parse(c.Upload.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("upload.endpoint must be an http(s) URL, got '%s'", c.Upload.Endpoint)).
				WithDetail("field", "upload.endpoint")
		}
	}

	if len(c.Camera.Command) > 0 && !containsPlaceholder(c.Camera.Command, "{output}") {
		return errors.New(errors.ErrCodeConfigValidation, "camera.command must contain the {output} placeholder").
			WithDetail("field", "camera.command")
	}
	if err := validatePath("camera.pictures_dir", c.Camera.PicturesDir); err != nil {
		return err
	}
	if c.Camera.OverlayEnabled && c.Camera.OverlayPath == "" {
		return errors.New(errors.ErrCodeConfigValidation, "camera.overlay_path is required when overlays are enabled")
	}

	if !pinRegex.MatchString(c.Admin.PIN) {
		return errors.New(errors.ErrCodeConfigValidation, "admin.pin must be 4 to 8 digits").
			WithDetail("field", "admin.pin")
	}

	return nil
}

func containsPlaceholder(args []string, placeholder string) bool {
	for _, a := range args {
		if strings.Contains(a, placeholder) {
			return true
		}
	}
	return false
}

// validatePath validates that a path is appropriate for the current OS
func validatePath(fieldName, path string) error {
	if path == "" {
		return nil
	}

	// Check for Windows absolute paths on Unix systems
	if runtime.GOOS != "windows" && filepath.IsAbs(path) && strings.Contains(path, "\\") {
		return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("%s contains Windows-style path on Unix system", fieldName)).
			WithDetail("path", path)
	}

	return nil
}
