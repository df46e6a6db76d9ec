package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/imageeditor/internal/config"
)

type localStorage struct {
	basePath     string
	originalDir  string
	committedDir string
}

func NewLocalStorage(cfg *config.StorageConfig) (Storage, error) {
	if cfg.LocalPath == "" {
		return nil, fmt.Errorf("LocalPath is empty, set storage.local_path in config or env")
	}
	if cfg.OriginalDir == "" {
		cfg.OriginalDir = "original"
	}
	if cfg.CommittedDir == "" {
		cfg.CommittedDir = "committed"
	}

	storage := &localStorage{
		basePath:     cfg.LocalPath,
		originalDir:  cfg.OriginalDir,
		committedDir: cfg.CommittedDir,
	}

	originalPath := filepath.Join(storage.basePath, storage.originalDir)
	committedPath := filepath.Join(storage.basePath, storage.committedDir)

	if err := os.MkdirAll(originalPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create original directory: %w", err)
	}
	if err := os.MkdirAll(committedPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create committed directory: %w", err)
	}

	return storage, nil
}

func (s *localStorage) SaveOriginal(ctx context.Context, filename string, reader io.Reader) (string, error) {
	return s.saveFile(ctx, s.originalDir, filename, reader)
}

func (s *localStorage) SaveCommitted(ctx context.Context, filename string, reader io.Reader) (string, error) {
	return s.saveFile(ctx, s.committedDir, filename, reader)
}

func (s *localStorage) saveFile(ctx context.Context, dir, filename string, reader io.Reader) (string, error) {
	if reader == nil {
		zlog.Logger.Error().Str("filename", filename).Msg("reader is nil")
		return "", fmt.Errorf("reader is nil")
	}

	if filepath.Base(filename) != filename {
		return "", fmt.Errorf("invalid filename %q", filename)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fullPath := filepath.Join(s.basePath, dir, filename)

	// write to a temp file and rename, so readers never see a partial image
	tmp, err := os.CreateTemp(filepath.Join(s.basePath, dir), "."+filename+".*")
	if err != nil {
		zlog.Logger.Error().Err(err).Str("path", fullPath).Msg("failed to create file")
		return "", fmt.Errorf("create file %s: %w", fullPath, err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, reader)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		zlog.Logger.Error().Err(err).Str("path", fullPath).Msg("failed to write file")
		return "", fmt.Errorf("write file %s: %w", fullPath, err)
	}
	if written == 0 {
		zlog.Logger.Error().Str("path", fullPath).Msg("no bytes written to file")
		return "", fmt.Errorf("no bytes written to file %s", fullPath)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return "", fmt.Errorf("rename file %s: %w", fullPath, err)
	}

	relativePath := filepath.Join(dir, filename)
	zlog.Logger.Info().
		Str("path", relativePath).
		Str("ext", filepath.Ext(filename)).
		Int64("bytes", written).
		Msg("file saved successfully")

	return relativePath, nil
}

func (s *localStorage) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	fullPath := filepath.Join(s.basePath, path)

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			zlog.Logger.Error().Str("path", fullPath).Msg("file not found")
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, path)
		}
		zlog.Logger.Error().Err(err).Str("path", fullPath).Msg("failed to open file")
		return nil, fmt.Errorf("open file %s: %w", fullPath, err)
	}

	if stat, err := file.Stat(); err == nil {
		zlog.Logger.Debug().Str("path", fullPath).Int64("size", stat.Size()).Msg("file opened successfully")
	}

	return file, nil
}

func (s *localStorage) Delete(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}

	fullPath := filepath.Join(s.basePath, path)

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			zlog.Logger.Warn().Str("path", fullPath).Msg("file not found, skipping delete")
			return nil
		}
		zlog.Logger.Error().Err(err).Str("path", fullPath).Msg("failed to delete file")
		return fmt.Errorf("delete file %s: %w", fullPath, err)
	}

	zlog.Logger.Info().Str("path", path).Msg("file deleted successfully")
	return nil
}

func (s *localStorage) DeleteAll(ctx context.Context, paths ...string) error {
	return deleteAll(ctx, s, paths)
}
