package localstate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const stateFileMode = 0o600

// FileBackend stores state as one JSON file, replaced atomically on every save.
type FileBackend struct {
	path   string
	logger *zap.Logger
}

// NewFileBackend stores state at dir/<storageKey>.json.
func NewFileBackend(dir string, storageKey string, logger *zap.Logger) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileBackend{path: filepath.Join(dir, storageKey+".json"), logger: logger}, nil
}

// Path returns the state file location.
func (backend *FileBackend) Path() string {
	return backend.path
}

func (backend *FileBackend) Load(context.Context) ([]byte, error) {
	data, err := os.ReadFile(backend.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}
	return data, nil
}

func (backend *FileBackend) Save(_ context.Context, data []byte) error {
	temporary, err := os.CreateTemp(filepath.Dir(backend.path), filepath.Base(backend.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	temporaryPath := temporary.Name()
	defer os.Remove(temporaryPath)
	if _, err := temporary.Write(data); err != nil {
		temporary.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := temporary.Chmod(stateFileMode); err != nil {
		temporary.Close()
		return fmt.Errorf("chmod temp state file: %w", err)
	}
	if err := temporary.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(temporaryPath, backend.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// Watch follows the state directory, since atomic renames replace the file inode.
func (backend *FileBackend) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(backend.path)); err != nil {
		return fmt.Errorf("watch state dir: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(backend.path) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				onChange()
			}
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			backend.logger.Warn("state watcher error", zap.String("path", backend.path), zap.Error(watchErr))
		}
	}
}
