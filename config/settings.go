package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/grovetools/booth/errors"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// SettableKeys are the dotted keys the admin settings screen may change.
var SettableKeys = map[string]bool{
	"session.timeout":        true,
	"session.max_photos":     true,
	"reconciler.interval":    true,
	"reconciler.batch_size":  true,
	"camera.overlay_enabled": true,
	"camera.flash_enabled":   true,
	"upload.parent_folder":   true,
	"admin.pin":              true,
}

// UpdateSettings checks pin against cfg, merges values into the file cfg was
// loaded from (or the default config path) and writes it back atomically.
// The merged document is fully validated before anything is written. It
// returns the reloaded configuration and the keys that were applied.
func UpdateSettings(cfg *Config, pin string, values map[string]interface{}) (*Config, []string, error) {
	if !cfg.CheckPIN(pin) {
		return nil, nil, errors.New(errors.ErrCodePermissionDenied, "invalid admin PIN")
	}
	if len(values) == 0 {
		return nil, nil, errors.New(errors.ErrCodeInvalidInput, "no settings given")
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		if !SettableKeys[key] {
			return nil, nil, errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("setting '%s' cannot be changed", key)).
				WithDetail("key", key)
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	path := cfg.Path()
	if path == "" {
		path = DefaultWritePath()
	}
	format := formatFor(path)

	raw := make(map[string]interface{})
	if data, err := os.ReadFile(path); err == nil {
		// raw text on purpose: ${VAR} references must survive the rewrite
		raw, err = decodeDocument(data, format)
		if err != nil {
			return nil, nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}

	for _, key := range keys {
		setDotted(raw, key, values[key])
	}

	data, err := encodeDocument(raw, format)
	if err != nil {
		return nil, nil, err
	}

	updated, err := LoadFromBytes(data, format)
	if err != nil {
		return nil, nil, err
	}
	updated.path = path

	if err := writeAtomic(path, data); err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to write config file").
			WithDetail("path", path)
	}
	return updated, keys, nil
}

func setDotted(m map[string]interface{}, key string, value interface{}) {
	parts := strings.Split(key, ".")
	for _, part := range parts[:len(parts)-1] {
		next, ok := m[part].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			m[part] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = value
}

func encodeDocument(raw map[string]interface{}, format string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if format == "toml" {
		data, err = toml.Marshal(raw)
	} else {
		data, err = yaml.Marshal(raw)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to encode configuration")
	}
	return data, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
