package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/wb-go/wbf/zlog"

	"github.com/yokitheyo/imageeditor/internal/domain"
)

// ProcessorUsecase commits batches that arrive through the queue. It shares
// the commit path, and so the lock and version check, with edit sessions.
type ProcessorUsecase struct {
	repo   domain.ImageRepository
	editor *EditorUsecase
}

func NewProcessorUsecase(repo domain.ImageRepository, editor *EditorUsecase) *ProcessorUsecase {
	return &ProcessorUsecase{
		repo:   repo,
		editor: editor,
	}
}

// ProcessBatch returns an error only for failures worth redelivering. A batch
// that can never succeed marks the image failed and is acknowledged.
func (u *ProcessorUsecase) ProcessBatch(ctx context.Context, imageID string, version int64, steps []domain.Descriptor) error {
	image, err := u.repo.FindByID(ctx, imageID)
	if errors.Is(err, domain.ErrImageNotFound) {
		zlog.Logger.Warn().Str("image_id", imageID).Msg("image deleted before its batch ran")
		return nil
	}
	if err != nil {
		return fmt.Errorf("find image: %w", err)
	}
	if image.Version != version {
		return u.fail(ctx, image, domain.ErrVersionConflict)
	}

	if err := validateBatch(image, steps); err != nil {
		return u.fail(ctx, image, err)
	}

	zlog.Logger.Info().
		Str("image_id", imageID).
		Int64("version", version).
		Int("steps", len(steps)).
		Msg("starting batch commit")

	next, _, err := u.editor.Commit(ctx, *image, domain.Asset{}, steps)
	if err != nil {
		if permanent(err) {
			return u.fail(ctx, image, err)
		}
		return fmt.Errorf("commit batch: %w", err)
	}

	zlog.Logger.Info().
		Str("image_id", imageID).
		Int64("version", next.Version).
		Msg("batch committed")
	return nil
}

func (u *ProcessorUsecase) fail(ctx context.Context, image *domain.Image, cause error) error {
	zlog.Logger.Error().Err(cause).Str("image_id", image.ID).Msg("batch failed")
	if err := u.repo.UpdateStatus(ctx, image.ID, domain.StatusFailed, cause.Error()); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

func permanent(err error) bool {
	if errors.Is(err, domain.ErrCommitCancelled) || errors.Is(err, domain.ErrLockBusy) {
		return false
	}
	var (
		pipeErr  *domain.PipelineError
		validErr *domain.ValidationError
	)
	return errors.As(err, &pipeErr) ||
		errors.As(err, &validErr) ||
		errors.Is(err, domain.ErrVersionConflict) ||
		errors.Is(err, domain.ErrImageNotFound)
}
