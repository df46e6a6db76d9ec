package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/yokitheyo/imageeditor/internal/domain"
	"github.com/yokitheyo/imageeditor/internal/infrastructure/processor"
	"github.com/yokitheyo/imageeditor/internal/infrastructure/storage"
)

type ImageUsecase struct {
	repo             domain.ImageRepository
	storage          storage.Storage
	queue            domain.QueueService
	supported        map[domain.Format]struct{}
	defaultWatermark string
}

func NewImageUsecase(
	repo domain.ImageRepository,
	storage storage.Storage,
	queue domain.QueueService,
	supportedFormats []string,
	defaultWatermark string,
) *ImageUsecase {
	supported := make(map[domain.Format]struct{}, len(supportedFormats))
	for _, f := range supportedFormats {
		supported[domain.ParseFormat(f).Canonical()] = struct{}{}
	}
	return &ImageUsecase{
		repo:             repo,
		storage:          storage,
		queue:            queue,
		supported:        supported,
		defaultWatermark: defaultWatermark,
	}
}

func (u *ImageUsecase) UploadImage(ctx context.Context, filename string, size int64, reader io.Reader) (*domain.Image, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if size > 0 && int64(len(data)) != size {
		zlog.Logger.Warn().Str("filename", filename).Int64("declared", size).Int("read", len(data)).Msg("upload size mismatch")
	}

	geometry, format, err := processor.Inspect(data)
	if err != nil {
		zlog.Logger.Warn().Err(err).Str("filename", filename).Msg("rejected undecodable upload")
		return nil, err
	}
	if _, ok := u.supported[format.Canonical()]; !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidFormat, format)
	}

	imageID := uuid.New().String()
	uniqueFilename := imageID + format.Extension()

	originalPath, err := u.storage.SaveOriginal(ctx, uniqueFilename, bytes.NewReader(data))
	if err != nil {
		zlog.Logger.Error().Err(err).Str("filename", filename).Msg("failed to save original file")
		return nil, fmt.Errorf("save original: %w", err)
	}

	now := time.Now()
	image := &domain.Image{
		ID:               imageID,
		OriginalFilename: filename,
		OriginalPath:     originalPath,
		Path:             originalPath,
		Format:           format.Canonical(),
		Size:             int64(len(data)),
		Width:            geometry.Width,
		Height:           geometry.Height,
		Version:          1,
		Status:           domain.StatusReady,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := u.repo.Create(ctx, image); err != nil {
		_ = u.storage.Delete(ctx, originalPath)
		zlog.Logger.Error().Err(err).Str("image_id", imageID).Msg("failed to create image record")
		return nil, fmt.Errorf("create image: %w", err)
	}

	zlog.Logger.Info().
		Str("image_id", imageID).
		Str("filename", filename).
		Str("format", string(image.Format)).
		Int("width", image.Width).
		Int("height", image.Height).
		Msg("image uploaded successfully")

	return image, nil
}

func (u *ImageUsecase) GetImage(ctx context.Context, id string) (*domain.Image, error) {
	return u.repo.FindByID(ctx, id)
}

// GetImageFile returns the current version, or the upload when useOriginal
// is set. A missing committed object falls back to the original.
func (u *ImageUsecase) GetImageFile(ctx context.Context, id string, useOriginal bool) (io.ReadCloser, string, error) {
	image, err := u.repo.FindByID(ctx, id)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("image_id", id).Msg("failed to find image by ID")
		return nil, "", err
	}

	if !useOriginal && image.Path != image.OriginalPath {
		file, err := u.storage.Get(ctx, image.Path)
		if err == nil {
			return file, versionFilename(image), nil
		}
		if !errors.Is(err, storage.ErrObjectNotFound) {
			zlog.Logger.Error().Err(err).Str("image_id", id).Str("path", image.Path).Msg("failed to get committed file")
			return nil, "", err
		}
		zlog.Logger.Warn().Str("image_id", id).Str("path", image.Path).Msg("committed file missing, serving original")
	}

	file, err := u.storage.Get(ctx, image.OriginalPath)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("image_id", id).Str("path", image.OriginalPath).Msg("failed to get original file")
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, "", domain.ErrImageNotFound
		}
		return nil, "", err
	}
	return file, image.OriginalFilename, nil
}

func (u *ImageUsecase) DeleteImage(ctx context.Context, id string) error {
	image, err := u.repo.FindByID(ctx, id)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("image_id", id).Msg("failed to find image for delete")
		return err
	}

	paths := []string{image.OriginalPath}
	if image.Path != image.OriginalPath {
		paths = append(paths, image.Path)
	}
	if err := u.storage.DeleteAll(ctx, paths...); err != nil {
		zlog.Logger.Error().Err(err).Str("image_id", id).Msg("failed to delete files")
	}

	if err := u.repo.Delete(ctx, id); err != nil {
		zlog.Logger.Error().Err(err).Str("image_id", id).Msg("failed to delete image record")
		return err
	}

	zlog.Logger.Info().Str("image_id", id).Msg("image deleted successfully")
	return nil
}

func (u *ImageUsecase) ListImages(ctx context.Context, limit, offset int) ([]*domain.Image, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	images, err := u.repo.List(ctx, limit, offset)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to list images")
		return nil, err
	}
	return images, nil
}

func (u *ImageUsecase) ListTransformations(ctx context.Context, id string) ([]domain.AppliedTransformation, error) {
	if _, err := u.repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return u.repo.Transformations(ctx, id)
}

// SubmitBatch validates steps against the current version and hands them to
// the worker. The image is marked processing until the worker commits or fails.
func (u *ImageUsecase) SubmitBatch(ctx context.Context, id string, steps []domain.Descriptor) (*domain.Image, error) {
	image, err := u.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !image.CanBeProcessed() {
		return nil, domain.ErrAlreadyProcessing
	}

	batch := make([]domain.Descriptor, len(steps))
	for i, d := range steps {
		batch[i] = withDefaults(d, u.defaultWatermark)
	}
	if err := validateBatch(image, batch); err != nil {
		return nil, err
	}

	if err := u.repo.UpdateStatus(ctx, id, domain.StatusProcessing, ""); err != nil {
		return nil, err
	}
	if err := u.queue.PublishTransformTask(ctx, id, image.Version, batch); err != nil {
		zlog.Logger.Error().Err(err).Str("image_id", id).Msg("failed to publish transform task")
		if resetErr := u.repo.UpdateStatus(context.WithoutCancel(ctx), id, image.Status, image.ErrorMessage); resetErr != nil {
			zlog.Logger.Error().Err(resetErr).Str("image_id", id).Msg("failed to reset status")
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrQueueFailed, err)
	}

	image.MarkAsProcessing()
	zlog.Logger.Info().
		Str("image_id", id).
		Int64("version", image.Version).
		Int("steps", len(batch)).
		Msg("transform batch submitted")
	return image, nil
}

func versionFilename(image *domain.Image) string {
	base := strings.TrimSuffix(image.OriginalFilename, filepath.Ext(image.OriginalFilename))
	return fmt.Sprintf("%s_v%d%s", base, image.Version, image.Format.Extension())
}
