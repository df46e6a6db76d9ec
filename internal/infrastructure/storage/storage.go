package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/wb-go/wbf/zlog"

	"github.com/yokitheyo/imageeditor/internal/config"
)

var ErrObjectNotFound = errors.New("object not found")

// Storage holds image bytes. Originals are written once on upload; every
// successful commit writes a new object under the committed prefix, so a
// failed commit never overwrites the version it started from.
type Storage interface {
	SaveOriginal(ctx context.Context, filename string, reader io.Reader) (string, error)
	SaveCommitted(ctx context.Context, filename string, reader io.Reader) (string, error)
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
	DeleteAll(ctx context.Context, paths ...string) error
}

func New(cfg *config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "local":
		zlog.Logger.Info().Msg("Initializing local storage")
		return NewLocalStorage(cfg)
	case "s3":
		zlog.Logger.Info().Msg("Initializing S3 storage")
		return NewS3Storage(cfg)
	default:
		zlog.Logger.Error().Str("type", cfg.Type).Msg("Unsupported storage type, use 'local' or 's3'")
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// deleteAll removes every non-empty path and returns the last failure.
func deleteAll(ctx context.Context, s Storage, paths []string) error {
	var lastErr error
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := s.Delete(ctx, p); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
