// store/file.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// FileStore keeps the context as a JSON document on the local filesystem.
type FileStore struct {
	path   string
	logger *zap.Logger
}

// NewFileStore returns a FileStore writing to path. The file is created on the
// first Save.
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{path: path, logger: logger}
}

// Location returns the file path.
func (s *FileStore) Location() string { return s.path }

// Save replaces the file contents atomically.
func (s *FileStore) Save(_ context.Context, history string) error {
	data, err := json.MarshalIndent(State{Context: history}, "", "  ")
	if err != nil {
		return &StorageError{Op: "save", Location: s.path, Err: err}
	}
	if err := writeFileAtomic(s.path, data, 0o644); err != nil {
		return &StorageError{Op: "save", Location: s.path, Err: err}
	}
	s.logger.Debug("history saved", zap.String("path", s.path), zap.Int("bytes", len(data)))
	return nil
}

// Load reads the file; a missing file yields an empty context.
func (s *FileStore) Load(_ context.Context) (string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", &StorageError{Op: "load", Location: s.path, Err: err}
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return "", &StorageError{Op: "load", Location: s.path, Err: fmt.Errorf("malformed history: %w", err)}
	}
	return st.Context, nil
}

// Clear deletes the file if it exists.
func (s *FileStore) Clear(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &StorageError{Op: "clear", Location: s.path, Err: err}
	}
	return nil
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }

// writeFileAtomic writes data to a temporary file next to path, syncs it and
// renames it over path, so readers see either the old or the new document.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".history-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := f.Name()

	success := false
	defer func() {
		if !success {
			f.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync data to disk: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tempPath, perm); err != nil {
		return fmt.Errorf("failed to set file permissions: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
