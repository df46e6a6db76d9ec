package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wb-go/wbf/zlog"

	"github.com/yokitheyo/imageeditor/internal/domain"
)

// OperationExecutor performs the pixel work of a single step. It must return
// the same output for the same descriptor and input.
type OperationExecutor interface {
	Run(ctx context.Context, d domain.Descriptor, in domain.Asset) (domain.Asset, error)
}

// ExecutorFunc adapts a plain function to OperationExecutor.
type ExecutorFunc func(ctx context.Context, d domain.Descriptor, in domain.Asset) (domain.Asset, error)

func (f ExecutorFunc) Run(ctx context.Context, d domain.Descriptor, in domain.Asset) (domain.Asset, error) {
	return f(ctx, d, in)
}

type Pipeline struct {
	executor OperationExecutor
}

func New(executor OperationExecutor) *Pipeline {
	return &Pipeline{executor: executor}
}

// Apply runs steps against src in order, feeding each step the previous
// step's output. The first failure stops the run and is returned as a
// *domain.PipelineError. Nothing is persisted here; the caller decides what
// to do with the final asset.
func (p *Pipeline) Apply(ctx context.Context, imageID string, src domain.Asset, steps []domain.Descriptor) (domain.Asset, error) {
	if len(steps) == 0 {
		return domain.Asset{}, domain.ErrEmptyQueue
	}

	started := time.Now()
	current := src
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			zlog.Logger.Warn().
				Str("image_id", imageID).
				Int("step", i).
				Msg("pipeline cancelled before step")
			return domain.Asset{}, &domain.PipelineError{
				FailedAt: i,
				Kind:     step.Kind(),
				Cause:    fmt.Errorf("%w: %w", domain.ErrCommitCancelled, err),
			}
		}

		out, err := p.executor.Run(ctx, step, current)
		if err == nil && len(out.Data) == 0 {
			err = domain.ErrEmptyResult
		}
		if err != nil {
			zlog.Logger.Error().
				Err(err).
				Str("image_id", imageID).
				Int("step", i).
				Str("kind", string(step.Kind())).
				Msg("pipeline step failed")
			return domain.Asset{}, &domain.PipelineError{
				FailedAt: i,
				Kind:     step.Kind(),
				Cause:    asExecutorError(step.Kind(), err),
			}
		}

		zlog.Logger.Debug().
			Str("image_id", imageID).
			Int("step", i).
			Str("op", step.String()).
			Int("width", out.Geometry.Width).
			Int("height", out.Geometry.Height).
			Str("format", string(out.Format)).
			Msg("pipeline step applied")
		current = out
	}

	zlog.Logger.Info().
		Str("image_id", imageID).
		Int("steps", len(steps)).
		Int("width", current.Geometry.Width).
		Int("height", current.Geometry.Height).
		Str("format", string(current.Format)).
		Dur("took", time.Since(started)).
		Msg("pipeline applied")
	return current, nil
}

func asExecutorError(kind domain.Kind, err error) error {
	var execErr *domain.ExecutorError
	if errors.As(err, &execErr) {
		return err
	}
	return &domain.ExecutorError{Kind: kind, Cause: err}
}
