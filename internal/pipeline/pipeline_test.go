package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yokitheyo/imageeditor/internal/domain"
)

// traceExecutor appends each step to the asset bytes and moves the geometry
// the way a real executor would, so composition is observable.
type traceExecutor struct {
	calls  []domain.Asset
	failAt int
	hook   func(i int)
}

func newTraceExecutor() *traceExecutor {
	return &traceExecutor{failAt: -1}
}

func (e *traceExecutor) Run(_ context.Context, d domain.Descriptor, in domain.Asset) (domain.Asset, error) {
	i := len(e.calls)
	e.calls = append(e.calls, in)
	if e.hook != nil {
		e.hook(i)
	}
	if i == e.failAt {
		return domain.Asset{}, errors.New("codec exploded")
	}

	out := domain.Asset{
		Data:     append(append([]byte{}, in.Data...), []byte(d.String()+";")...),
		Geometry: d.OutputGeometry(in.Geometry),
		Format:   in.Format,
	}
	if p, ok := d.Params().(domain.FormatParams); ok {
		out.Format = p.Target.Canonical()
	}
	return out, nil
}

func sourceAsset() domain.Asset {
	return domain.Asset{Data: []byte("src;"), Geometry: geometry1024x790, Format: domain.FormatJPEG}
}

func TestPipelineEndToEndGeometry(t *testing.T) {
	p := New(newTraceExecutor())

	out, err := p.Apply(context.Background(), "img", sourceAsset(), []domain.Descriptor{
		domain.NewResize(800, 600),
		domain.NewRotate(90),
		domain.NewFormat(domain.FormatPNG),
	})

	require.NoError(t, err)
	assert.Equal(t, domain.Geometry{Width: 600, Height: 800}, out.Geometry)
	assert.Equal(t, domain.FormatPNG, out.Format)
}

func TestPipelineComposesSteps(t *testing.T) {
	exec := newTraceExecutor()
	p := New(exec)

	out, err := p.Apply(context.Background(), "img", sourceAsset(), []domain.Descriptor{
		domain.NewResize(100, 50),
		domain.NewMirror(),
		domain.NewCompress(70),
	})
	require.NoError(t, err)

	require.Len(t, exec.calls, 3)
	assert.Equal(t, "src;", string(exec.calls[0].Data))
	assert.Equal(t, "src;resize(100x50);", string(exec.calls[1].Data))
	assert.Equal(t, domain.Geometry{Width: 100, Height: 50}, exec.calls[1].Geometry)
	assert.Equal(t, "src;resize(100x50);mirror;", string(exec.calls[2].Data))
	assert.Equal(t, "src;resize(100x50);mirror;compress(70);", string(out.Data))
}

func TestPipelineOrderingIsSignificant(t *testing.T) {
	crop := domain.NewCrop(0, 0, 500, 790)
	rotate := domain.NewRotate(90)

	cropFirst, err := New(newTraceExecutor()).Apply(context.Background(), "img", sourceAsset(), []domain.Descriptor{crop, rotate})
	require.NoError(t, err)
	rotateFirst, err := New(newTraceExecutor()).Apply(context.Background(), "img", sourceAsset(), []domain.Descriptor{rotate, crop})
	require.NoError(t, err)

	assert.NotEqual(t, cropFirst.Data, rotateFirst.Data)
	assert.Equal(t, domain.Geometry{Width: 790, Height: 500}, cropFirst.Geometry)
	assert.Equal(t, domain.Geometry{Width: 500, Height: 790}, rotateFirst.Geometry)
}

func TestPipelineStopsAtFirstFailure(t *testing.T) {
	exec := newTraceExecutor()
	exec.failAt = 1
	p := New(exec)

	steps := []domain.Descriptor{
		domain.NewResize(800, 600),
		domain.NewFilter("sepia"),
		domain.NewFormat(domain.FormatPNG),
	}
	_, err := p.Apply(context.Background(), "img", sourceAsset(), steps)

	var perr *domain.PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 1, perr.FailedAt)
	assert.Equal(t, domain.KindFilter, perr.Kind)

	var execErr *domain.ExecutorError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, domain.KindFilter, execErr.Kind)
	assert.Len(t, exec.calls, 2)
}

func TestPipelineCancelBetweenSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exec := newTraceExecutor()
	exec.hook = func(i int) {
		if i == 0 {
			cancel()
		}
	}
	p := New(exec)

	_, err := p.Apply(ctx, "img", sourceAsset(), []domain.Descriptor{
		domain.NewFlip(),
		domain.NewMirror(),
		domain.NewFlip(),
	})

	var perr *domain.PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 1, perr.FailedAt)
	assert.ErrorIs(t, err, domain.ErrCommitCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, exec.calls, 1, "the running step finishes, the next one never starts")
}

func TestPipelineEmptyQueue(t *testing.T) {
	_, err := New(newTraceExecutor()).Apply(context.Background(), "img", sourceAsset(), nil)
	assert.ErrorIs(t, err, domain.ErrEmptyQueue)
}

func TestPipelineRejectsEmptyOutput(t *testing.T) {
	empty := ExecutorFunc(func(context.Context, domain.Descriptor, domain.Asset) (domain.Asset, error) {
		return domain.Asset{}, nil
	})

	_, err := New(empty).Apply(context.Background(), "img", sourceAsset(), []domain.Descriptor{domain.NewFlip()})

	var perr *domain.PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 0, perr.FailedAt)
	assert.ErrorIs(t, err, domain.ErrEmptyResult)
}

func TestPipelineKeepsExecutorErrors(t *testing.T) {
	cause := &domain.ExecutorError{Kind: domain.KindFormat, Cause: errors.New("no encoder")}
	failing := ExecutorFunc(func(context.Context, domain.Descriptor, domain.Asset) (domain.Asset, error) {
		return domain.Asset{}, cause
	})

	_, err := New(failing).Apply(context.Background(), "img", sourceAsset(), []domain.Descriptor{domain.NewFormat(domain.FormatPNG)})

	var perr *domain.PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Same(t, cause, perr.Cause)
}
