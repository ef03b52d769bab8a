package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// pathSeparator replaces "/" in file names (FULLWIDTH SOLIDUS).
const pathSeparator = "／"

const (
	dirPermissions  = 0750
	filePermissions = 0600
)

// FileStore keeps each state in its own file under a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("state: file store directory is required")
	}
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) keyPath(path string) string {
	return filepath.Join(s.dir, strings.ReplaceAll(path, "/", pathSeparator))
}

// Get reads the state file. A missing file is an unknown state.
func (s *FileStore) Get(_ context.Context, path string) (string, bool, error) {
	data, err := os.ReadFile(s.keyPath(path))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading state %s: %w", path, err)
	}
	return string(data), true, nil
}

// Set overwrites the state file.
func (s *FileStore) Set(_ context.Context, path, state string) error {
	if err := os.WriteFile(s.keyPath(path), []byte(state), filePermissions); err != nil {
		return fmt.Errorf("writing state %s: %w", path, err)
	}
	return nil
}
