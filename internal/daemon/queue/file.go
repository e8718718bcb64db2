package queue

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/grovetools/booth/pkg/models"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the queue file created in the queue directory.
const DefaultFileName = "offline_queue.yml"

// queueFile is the on-disk document.
type queueFile struct {
	Version int                `yaml:"version"`
	SavedAt time.Time          `yaml:"saved_at"`
	Items   []models.QueueItem `yaml:"items"`
}

// FilePersister keeps the queue in a YAML file, replaced atomically on every
// save (write temp file, fsync, rename).
type FilePersister struct {
	path string
}

// NewFilePersister creates a persister for the given file path.
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

// Location returns the file path.
func (p *FilePersister) Location() string { return p.path }

// Load reads the queue file. A missing file is an empty queue. A file that
// cannot be parsed is moved aside so the next save does not destroy it.
func (p *FilePersister) Load() ([]models.QueueItem, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read queue file: %w", err)
	}

	var doc queueFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		quarantine := fmt.Sprintf("%s.corrupt-%d", p.path, time.Now().Unix())
		if renameErr := os.Rename(p.path, quarantine); renameErr != nil {
			return nil, fmt.Errorf("parse queue file: %w (and failed to move it aside: %v)", err, renameErr)
		}
		return nil, fmt.Errorf("parse queue file (moved to %s): %w", quarantine, err)
	}
	return doc.Items, nil
}

// Save replaces the queue file with items.
func (p *FilePersister) Save(items []models.QueueItem) error {
	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create queue directory: %w", err)
	}

	if items == nil {
		items = []models.QueueItem{}
	}
	data, err := yaml.Marshal(queueFile{
		Version: 1,
		SavedAt: time.Now().UTC(),
		Items:   items,
	})
	if err != nil {
		return fmt.Errorf("marshal queue: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(p.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp queue file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp queue file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp queue file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp queue file: %w", err)
	}
	if err := os.Rename(tmpName, p.path); err != nil {
		cleanup()
		return fmt.Errorf("replace queue file: %w", err)
	}
	return nil
}

// Close is a no-op for files.
func (p *FilePersister) Close() error { return nil }
