package projection

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/employd-dev/employd/internal/session"
)

const (
	configDirName = "employd"
	slotFileName  = "auth-storage.json"
)

// FileStore persists the projection as a JSON file under the user's
// config directory (~/.config/employd). Fallback for environments
// without a usable keyring, such as headless CI machines.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed projection store at the default
// location.
func NewFileStore() (*FileStore, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}
	return &FileStore{
		path: filepath.Join(homeDir, ".config", configDirName, slotFileName),
	}, nil
}

// NewFileStoreAt creates a file-backed projection store at an explicit
// path.
func NewFileStoreAt(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Save(p session.Projection) error {
	data, err := encode(p)
	if err != nil {
		return fmt.Errorf("failed to encode session projection: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write session projection: %w", err)
	}
	return nil
}

func (f *FileStore) Load() (session.Projection, bool, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return session.Projection{}, false, nil
		}
		return session.Projection{}, false, fmt.Errorf("failed to read session projection: %w", err)
	}
	p, ok := decode(data)
	return p, ok, nil
}

func (f *FileStore) Clear() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear session projection: %w", err)
	}
	return nil
}
