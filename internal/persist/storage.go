// Package persist provides durable, debounced snapshotting of dashboard
// state to local key/value storage, with compression, TTL and schema
// version gating on the way back in. Storage failures are never fatal:
// the worst outcome is falling back to the in-memory state.
package persist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// ErrQuota marks a write rejected because the underlying storage is out
// of space. The controller reacts by purging the entry and dropping the
// write instead of surfacing the failure.
var ErrQuota = errors.New("persist: storage quota exceeded")

// Storage is a key/value string store, the shape of the durable local
// storage contract: three keys hold the state payload, the schema
// version, and the compression flag.
type Storage interface {
	// Get returns the value for key and whether it exists.
	Get(key string) (string, bool, error)
	// Set writes the value for key. Returns an error wrapping ErrQuota
	// when storage is full.
	Set(key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
}

// FileStorage stores each key as one file in a directory, written
// atomically via temp file and rename.
type FileStorage struct {
	dir string
}

// DefaultDir returns the storage directory: $XDG_DATA_HOME/hud/state or
// ~/.local/share/hud/state.
func DefaultDir() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "state"
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "hud", "state")
}

// NewFileStorage creates a FileStorage rooted at dir.
func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{dir: dir}
}

// Get implements Storage.
func (f *FileStorage) Get(key string) (string, bool, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading %s: %w", key, err)
	}
	return string(data), true, nil
}

// Set implements Storage. Writes are atomic: temp file then rename.
func (f *FileStorage) Set(key, value string) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("creating storage directory: %w", mapQuota(err))
	}

	tmp, err := os.CreateTemp(f.dir, key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", key, mapQuota(err))
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", key, mapQuota(err))
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing %s: %w", key, mapQuota(err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing %s: %w", key, mapQuota(err))
	}

	if err := os.Rename(tmpPath, f.path(key)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming %s: %w", key, mapQuota(err))
	}
	return nil
}

// Delete implements Storage.
func (f *FileStorage) Delete(key string) error {
	err := os.Remove(f.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

func (f *FileStorage) path(key string) string {
	return filepath.Join(f.dir, sanitizeKey(key))
}

// sanitizeKey keeps keys filesystem-safe.
func sanitizeKey(key string) string {
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		":", "-",
		"..", "_",
	)
	return replacer.Replace(key)
}

// mapQuota rewraps out-of-space errors as ErrQuota so callers can branch
// without knowing about syscalls.
func mapQuota(err error) error {
	if errors.Is(err, syscall.ENOSPC) || errors.Is(err, syscall.EDQUOT) {
		return fmt.Errorf("%w: %v", ErrQuota, err)
	}
	return err
}

// MemoryStorage is an in-memory Storage for tests and ephemeral runs.
type MemoryStorage struct {
	values map[string]string
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

// Get implements Storage.
func (m *MemoryStorage) Get(key string) (string, bool, error) {
	v, ok := m.values[key]
	return v, ok, nil
}

// Set implements Storage.
func (m *MemoryStorage) Set(key, value string) error {
	m.values[key] = value
	return nil
}

// Delete implements Storage.
func (m *MemoryStorage) Delete(key string) error {
	delete(m.values, key)
	return nil
}
