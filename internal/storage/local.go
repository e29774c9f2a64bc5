package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/darshan-hindocha/plexe-technical/internal/platform/logger"
)

type localStore struct {
	dir string
	log *logger.Logger
}

// NewLocalStore stores artifacts as files under dir, creating it if needed.
func NewLocalStore(dir string, log *logger.Logger) (BlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir %q: %w", dir, err)
	}
	return &localStore{dir: dir, log: log.With("store", "local")}, nil
}

func (s *localStore) path(key string) string {
	// Keys are registry-generated (uuid + extension); Base guards against
	// anything path-like arriving anyway.
	return filepath.Join(s.dir, filepath.Base(key))
}

func (s *localStore) Put(_ context.Context, key string, data []byte) error {
	if err := os.WriteFile(s.path(key), data, 0o644); err != nil {
		return fmt.Errorf("write artifact %q: %w", key, err)
	}
	return nil
}

func (s *localStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, fmt.Errorf("read artifact %q: %w", key, err)
	}
	return data, nil
}

func (s *localStore) Delete(_ context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete artifact %q: %w", key, err)
	}
	return nil
}
