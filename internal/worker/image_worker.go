package worker

import (
	"context"
	"fmt"

	"github.com/wb-go/wbf/zlog"

	"github.com/yokitheyo/imageeditor/internal/domain"
	"github.com/yokitheyo/imageeditor/internal/dto"
)

// ImageWorker commits transform batches taken from the queue.
type ImageWorker struct {
	processorService domain.ProcessorService
}

func NewImageWorker(processorService domain.ProcessorService) *ImageWorker {
	return &ImageWorker{
		processorService: processorService,
	}
}

func (w *ImageWorker) HandleTransformTask(ctx context.Context, task *dto.TransformTask) error {
	if task.Version <= 0 {
		zlog.Logger.Error().
			Str("image_id", task.ImageID).
			Int64("version", task.Version).
			Msg("task without a base version")
		return nil
	}

	zlog.Logger.Info().
		Str("image_id", task.ImageID).
		Int64("version", task.Version).
		Int("steps", len(task.Transformations)).
		Msg("starting transform task")

	if err := w.processorService.ProcessBatch(ctx, task.ImageID, task.Version, task.Transformations); err != nil {
		zlog.Logger.Error().
			Err(err).
			Str("image_id", task.ImageID).
			Msg("failed to process batch")
		return fmt.Errorf("process batch %s: %w", task.ImageID, err)
	}

	zlog.Logger.Info().
		Str("image_id", task.ImageID).
		Msg("transform task done")
	return nil
}
