package storage

import (
	"context"
	"fmt"

	"github.com/darshan-hindocha/plexe-technical/internal/config"
	"github.com/darshan-hindocha/plexe-technical/internal/platform/logger"
)

// BlobStore persists raw model artifacts keyed by storage path. The registry
// owns key generation; stores never interpret the bytes.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// New builds the blob store selected by configuration.
func New(cfg config.StorageConfig, log *logger.Logger) (BlobStore, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStore(cfg.LocalDir, log)
	case "minio":
		return NewMinioStore(cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
