package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Store persists the configuration blob. Implementations must never
// partially persist: either the whole validated blob is written or the prior
// one is left untouched.
type Store interface {
	// Load returns the saved configuration, or (nil, nil) when nothing
	// usable has been saved. Unreadable blobs are treated as absent.
	Load() (*Configuration, error)
	// Save validates and persists the configuration.
	Save(conf *Configuration) error
}

const settingsFileName = "s3-photo-frame/settings.json"

// FileStore persists the blob as JSON under the XDG config directory.
type FileStore struct {
	path string
}

// NewFileStore resolves the default settings path.
func NewFileStore() (*FileStore, error) {
	path, err := xdg.ConfigFile(settingsFileName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve settings path: %w", err)
	}
	return &FileStore{path: path}, nil
}

// NewFileStoreAt uses an explicit path. Used by tests and the bootstrap
// config override.
func NewFileStoreAt(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file location, for the settings watcher.
func (f *FileStore) Path() string { return f.path }

// Load implements Store. A missing or unreadable file means "no saved
// configuration" rather than an error.
func (f *FileStore) Load() (*Configuration, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	conf, err := decode(raw)
	if err != nil {
		return nil, nil
	}
	return conf, nil
}

// Save implements Store. The blob is validated first and written through a
// temp file rename so a failed write cannot clobber the prior blob.
func (f *FileStore) Save(conf *Configuration) error {
	if err := Validate(conf); err != nil {
		return err
	}
	conf.Version = CurrentVersion
	conf.SavedAt = time.Now()

	raw, err := json.MarshalIndent(conf, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

// MemoryStore is an in-memory Store for tests and previews.
type MemoryStore struct {
	conf *Configuration
}

func NewMemoryStore(conf *Configuration) *MemoryStore {
	return &MemoryStore{conf: conf}
}

// Load implements Store.
func (m *MemoryStore) Load() (*Configuration, error) {
	if m.conf == nil {
		return nil, nil
	}
	c := *m.conf
	return &c, nil
}

// Save implements Store.
func (m *MemoryStore) Save(conf *Configuration) error {
	if err := Validate(conf); err != nil {
		return err
	}
	c := *conf
	c.Version = CurrentVersion
	c.SavedAt = time.Now()
	m.conf = &c
	return nil
}
