package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

//go:generate sh -c "cd .. && go run ./tools/schema-generator/"

// Config is the typed booth daemon configuration.
type Config struct {
	Version    string           `yaml:"version" toml:"version" json:"version" jsonschema:"description=Configuration version (e.g. '1.0')"`
	Session    SessionConfig    `yaml:"session" toml:"session" json:"session" jsonschema:"description=Session lifecycle"`
	Queue      QueueConfig      `yaml:"queue" toml:"queue" json:"queue" jsonschema:"description=Offline upload queue storage"`
	Network    NetworkConfig    `yaml:"network" toml:"network" json:"network" jsonschema:"description=Connectivity monitoring"`
	Reconciler ReconcilerConfig `yaml:"reconciler" toml:"reconciler" json:"reconciler" jsonschema:"description=Background retry and expiry loop"`
	Upload     UploadConfig     `yaml:"upload" toml:"upload" json:"upload" jsonschema:"description=Cloud upload endpoint"`
	Camera     CameraConfig     `yaml:"camera" toml:"camera" json:"camera" jsonschema:"description=Capture hardware"`
	Server     ServerConfig     `yaml:"server" toml:"server" json:"server" jsonschema:"description=Daemon API"`
	Admin      AdminConfig      `yaml:"admin" toml:"admin" json:"admin" jsonschema:"description=Kiosk administration"`

	// Extensions holds top-level sections owned by other packages (e.g. logging).
	Extensions map[string]interface{} `yaml:"-" toml:"-" json:"-"`

	path string
}

// SessionConfig controls session lifetime.
type SessionConfig struct {
	Timeout   Duration `yaml:"timeout" toml:"timeout" json:"timeout" jsonschema:"description=Idle time after which a session expires"`
	MaxPhotos int      `yaml:"max_photos" toml:"max_photos" json:"max_photos" jsonschema:"minimum=1,description=Photos per session before a new one starts"`
}

// QueueConfig selects the offline queue persister.
type QueueConfig struct {
	Backend string `yaml:"backend" toml:"backend" json:"backend" jsonschema:"enum=file,enum=sqlite,description=Persistence backend"`
	Path    string `yaml:"path" toml:"path" json:"path" jsonschema:"description=Queue file or database path"`
}

// NetworkConfig tunes the NetworkMonitor and its probe.
type NetworkConfig struct {
	PollInterval  Duration `yaml:"poll_interval" toml:"poll_interval" json:"poll_interval"`
	ProbeTimeout  Duration `yaml:"probe_timeout" toml:"probe_timeout" json:"probe_timeout"`
	BackoffFactor int      `yaml:"backoff_factor" toml:"backoff_factor" json:"backoff_factor" jsonschema:"minimum=1,description=Multiplier applied to the poll interval after a failed probe"`
	Probe         string   `yaml:"probe" toml:"probe" json:"probe" jsonschema:"enum=command,enum=tcp,description=Probe implementation"`
	PingHost      string   `yaml:"ping_host" toml:"ping_host" json:"ping_host" jsonschema:"description=Host pinged by the command probe"`
	TCPAddress    string   `yaml:"tcp_address" toml:"tcp_address" json:"tcp_address" jsonschema:"description=host:port dialed by the tcp probe"`
	SSIDCommand   []string `yaml:"ssid_command" toml:"ssid_command" json:"ssid_command" jsonschema:"description=Command printing the current SSID"`
}

// ReconcilerConfig tunes the background loop.
type ReconcilerConfig struct {
	Interval     Duration `yaml:"interval" toml:"interval" json:"interval"`
	BatchSize    int      `yaml:"batch_size" toml:"batch_size" json:"batch_size" jsonschema:"minimum=1"`
	ErrorBackoff Duration `yaml:"error_backoff" toml:"error_backoff" json:"error_backoff"`
}

// UploadConfig points at the upload gateway.
type UploadConfig struct {
	Endpoint     string   `yaml:"endpoint" toml:"endpoint" json:"endpoint" jsonschema:"description=Base URL of the upload gateway"`
	Token        string   `yaml:"token" toml:"token" json:"token" jsonschema:"description=Bearer token; supports ${VAR} expansion"`
	Timeout      Duration `yaml:"timeout" toml:"timeout" json:"timeout"`
	FolderPrefix string   `yaml:"folder_prefix" toml:"folder_prefix" json:"folder_prefix" jsonschema:"description=Remote folder name prefix, followed by the session id"`
	ParentFolder string   `yaml:"parent_folder" toml:"parent_folder" json:"parent_folder" jsonschema:"description=Remote parent folder id"`
}

// CameraConfig describes the capture collaborator.
type CameraConfig struct {
	Command        []string `yaml:"command" toml:"command" json:"command" jsonschema:"description=Capture command; {output} is replaced with the target path"`
	PicturesDir    string   `yaml:"pictures_dir" toml:"pictures_dir" json:"pictures_dir"`
	Width          int      `yaml:"width" toml:"width" json:"width" jsonschema:"minimum=0"`
	Height         int      `yaml:"height" toml:"height" json:"height" jsonschema:"minimum=0"`
	OverlayEnabled bool     `yaml:"overlay_enabled" toml:"overlay_enabled" json:"overlay_enabled"`
	OverlayPath    string   `yaml:"overlay_path" toml:"overlay_path" json:"overlay_path" jsonschema:"description=PNG composited over every photo"`
	FlashEnabled   bool     `yaml:"flash_enabled" toml:"flash_enabled" json:"flash_enabled"`
	FlashDevice    string   `yaml:"flash_device" toml:"flash_device" json:"flash_device" jsonschema:"description=Serial device that fires the flash"`
	FlashTrigger   string   `yaml:"flash_trigger" toml:"flash_trigger" json:"flash_trigger" jsonschema:"description=Bytes written to the flash device"`
	FlashDelay     Duration `yaml:"flash_delay" toml:"flash_delay" json:"flash_delay" jsonschema:"description=Wait between flash trigger and capture"`
	FlashBaud      int      `yaml:"flash_baud" toml:"flash_baud" json:"flash_baud" jsonschema:"minimum=0,description=Serial speed of the flash device (0 uses 9600)"`
	Timeout        Duration `yaml:"timeout" toml:"timeout" json:"timeout"`
}

// ServerConfig configures the daemon API.
type ServerConfig struct {
	Socket      string   `yaml:"socket" toml:"socket" json:"socket" jsonschema:"description=Unix socket path"`
	Addr        string   `yaml:"addr" toml:"addr" json:"addr" jsonschema:"description=Optional TCP listen address for the kiosk UI"`
	CORSOrigins []string `yaml:"cors_origins" toml:"cors_origins" json:"cors_origins"`
}

// AdminConfig guards the settings screen.
type AdminConfig struct {
	PIN string `yaml:"pin" toml:"pin" json:"pin" jsonschema:"minLength=4,maxLength=8,pattern=^[0-9]+$,description=Numeric admin PIN"`
}

// knownSections are the top-level keys decoded into Config fields.
var knownSections = map[string]bool{
	"version":    true,
	"session":    true,
	"queue":      true,
	"network":    true,
	"reconciler": true,
	"upload":     true,
	"camera":     true,
	"server":     true,
	"admin":      true,
}

// UnmarshalExtension decodes a specific extension's configuration from the
// loaded booth.yml into the provided target struct. The target must be a
// pointer. A missing section leaves target untouched.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.TextUnmarshallerHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}
	return nil
}
