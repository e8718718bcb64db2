package config

import (
	"crypto/subtle"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/grovetools/booth/errors"
	"github.com/grovetools/booth/pkg/paths"
	"github.com/mitchellh/mapstructure"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// configNames are searched in order in every candidate directory.
var configNames = []string{
	"booth.yml",
	"booth.yaml",
	"booth.toml",
	".booth.yml",
	".booth.yaml",
}

// Path returns the file the configuration was loaded from, or "" for pure defaults.
func (c *Config) Path() string { return c.path }

// Load reads and parses a booth configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}

	cfg, err := LoadFromBytes(data, formatFor(path))
	if err != nil {
		if be, ok := err.(*errors.BoothError); ok {
			return nil, be.WithDetail("path", path)
		}
		return nil, err
	}
	cfg.path = path
	return cfg, nil
}

// LoadDefault finds and loads the configuration starting from the working
// directory. When no file exists the defaults are returned.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to get current directory")
	}
	return LoadFrom(cwd)
}

// LoadFrom loads the first configuration file found from startDir, falling
// back to defaults when there is none.
func LoadFrom(startDir string) (*Config, error) {
	return LoadFromWithLogger(startDir, logrus.New())
}

// LoadFromWithLogger is LoadFrom with debug logging of the resolution.
func LoadFromWithLogger(startDir string, logger *logrus.Logger) (*Config, error) {
	path, err := FindConfigFile(startDir)
	if err != nil {
		if errors.Is(err, errors.ErrCodeConfigNotFound) {
			logger.WithField("searchPath", startDir).Debug("No configuration file found, using defaults")
			return Default(), nil
		}
		return nil, err
	}

	logger.WithField("path", path).Debug("Loading configuration")
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if logger.IsLevelEnabled(logrus.DebugLevel) {
		if data, err := yaml.Marshal(cfg); err == nil {
			logger.Debugf("Effective configuration:\n%s", string(data))
		}
	}
	return cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// LoadFromBytes parses configuration data. format is "yaml" or "toml".
func LoadFromBytes(data []byte, format string) (*Config, error) {
	raw, err := decodeDocument([]byte(expandEnvVars(string(data))), format)
	if err != nil {
		return nil, err
	}

	cfg, err := fromMap(raw)
	if err != nil {
		return nil, err
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	validator, err := NewSchemaValidator()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to create validator")
	}
	if err := validator.Validate(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigValidation, "schema validation failed")
	}
	return cfg, nil
}

// decodeDocument parses YAML or TOML into a generic map.
func decodeDocument(data []byte, format string) (map[string]interface{}, error) {
	raw := make(map[string]interface{})
	switch format {
	case "toml":
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse TOML configuration")
		}
	default:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse YAML configuration")
		}
	}
	return raw, nil
}

// fromMap decodes the known sections into Config and keeps the rest as extensions.
func fromMap(raw map[string]interface{}) (*Config, error) {
	known := make(map[string]interface{})
	extensions := make(map[string]interface{})
	for key, value := range raw {
		if knownSections[key] {
			known[key] = value
		} else {
			extensions[key] = value
		}
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.TextUnmarshallerHookFunc(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}
	if err := decoder.Decode(known); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to decode configuration")
	}
	cfg.Extensions = extensions
	return cfg, nil
}

func formatFor(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return "toml"
	}
	return "yaml"
}

// FindConfigFile searches for a booth configuration file with the following precedence:
// 1. BOOTH_CONFIG environment variable
// 2. Current directory up to filesystem root
// 3. XDG config directory (~/.config/booth/booth.yml)
func FindConfigFile(startDir string) (string, error) {
	if explicit := os.Getenv("BOOTH_CONFIG"); explicit != "" {
		if info, err := os.Stat(explicit); err == nil && !info.IsDir() {
			return explicit, nil
		}
		return "", errors.ConfigNotFound(explicit).WithDetail("source", "BOOTH_CONFIG")
	}

	dir := startDir
	for {
		if path := firstExisting(dir); path != "" {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	if configDir := paths.ConfigDir(); configDir != "" {
		if path := firstExisting(configDir); path != "" {
			return path, nil
		}
	}

	return "", errors.ConfigNotFound(startDir).WithDetail("searchPath", startDir)
}

func firstExisting(dir string) string {
	for _, name := range configNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// DefaultWritePath is where settings are saved when no file was loaded.
func DefaultWritePath() string {
	return filepath.Join(paths.ConfigDir(), "booth.yml")
}

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		varName := envVarRegex.FindStringSubmatch(match)[1]

		// Handle default values: ${VAR:-default}
		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]
		defaultValue := ""
		if len(parts) > 1 {
			defaultValue = parts[1]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// SetDefaults fills unset fields with the kiosk defaults.
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = "1.0"
	}

	if c.Session.Timeout <= 0 {
		c.Session.Timeout = Duration(30 * time.Minute)
	}
	if c.Session.MaxPhotos <= 0 {
		c.Session.MaxPhotos = 10
	}

	if c.Queue.Backend == "" {
		c.Queue.Backend = "file"
	}
	if c.Queue.Path == "" {
		name := "offline_queue.yml"
		if c.Queue.Backend == "sqlite" {
			name = "offline_queue.db"
		}
		c.Queue.Path = filepath.Join(paths.QueueDir(), name)
	}

	n := &c.Network
	if n.PollInterval <= 0 {
		n.PollInterval = Duration(30 * time.Second)
	}
	if n.ProbeTimeout <= 0 {
		n.ProbeTimeout = Duration(5 * time.Second)
	}
	if n.BackoffFactor <= 0 {
		n.BackoffFactor = 2
	}
	if n.Probe == "" {
		n.Probe = "command"
	}
	if n.PingHost == "" {
		n.PingHost = "8.8.8.8"
	}
	if n.TCPAddress == "" {
		n.TCPAddress = "8.8.8.8:53"
	}
	if len(n.SSIDCommand) == 0 {
		n.SSIDCommand = []string{"iwgetid", "-r"}
	}

	r := &c.Reconciler
	if r.Interval <= 0 {
		r.Interval = Duration(5 * time.Minute)
	}
	if r.BatchSize <= 0 {
		r.BatchSize = 5
	}
	if r.ErrorBackoff <= 0 {
		r.ErrorBackoff = Duration(time.Minute)
	}

	if c.Upload.Timeout <= 0 {
		c.Upload.Timeout = Duration(60 * time.Second)
	}
	if c.Upload.FolderPrefix == "" {
		c.Upload.FolderPrefix = "SelfieSession_"
	}

	cam := &c.Camera
	if len(cam.Command) == 0 {
		cam.Command = []string{"libcamera-still", "--nopreview", "--immediate",
			"--width", "{width}", "--height", "{height}", "-o", "{output}"}
	}
	if cam.PicturesDir == "" {
		cam.PicturesDir = paths.PicturesDir()
	}
	if cam.Width <= 0 {
		cam.Width = 1920
	}
	if cam.Height <= 0 {
		cam.Height = 1080
	}
	if cam.FlashTrigger == "" {
		cam.FlashTrigger = "1"
	}
	if cam.FlashDelay <= 0 {
		cam.FlashDelay = Duration(100 * time.Millisecond)
	}
	if cam.Timeout <= 0 {
		cam.Timeout = Duration(15 * time.Second)
	}

	if c.Server.Socket == "" {
		c.Server.Socket = paths.SocketPath()
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}

	if c.Admin.PIN == "" {
		c.Admin.PIN = "1234"
	}

	if c.Extensions == nil {
		c.Extensions = make(map[string]interface{})
	}
}

// CheckPIN reports whether pin matches the admin PIN.
func (c *Config) CheckPIN(pin string) bool {
	return subtle.ConstantTimeCompare([]byte(pin), []byte(c.Admin.PIN)) == 1
}
