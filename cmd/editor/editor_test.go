package main

import (
	"bytes"
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yokitheyo/imageeditor/internal/domain"
	"github.com/yokitheyo/imageeditor/internal/infrastructure/processor"
)

func TestParseOpsShapes(t *testing.T) {
	steps, err := parseOps([]byte(`[{"kind":"resize","parameters":{"width":600,"height":800}},{"kind":"flip"}]`))
	require.NoError(t, err)
	assert.Equal(t, []domain.Descriptor{domain.NewResize(600, 800), domain.NewFlip()}, steps)

	steps, err = parseOps([]byte(`{"transformations":[{"type":"format","options":{"format":"png"}}]}`))
	require.NoError(t, err)
	assert.Equal(t, []domain.Descriptor{domain.NewFormat(domain.FormatPNG)}, steps)

	_, err = parseOps([]byte(`[]`))
	assert.ErrorIs(t, err, domain.ErrEmptyQueue)

	_, err = parseOps([]byte(`[{"kind":"emboss"}]`))
	assert.ErrorIs(t, err, domain.ErrUnknownKind)
}

func TestWithOutputFormat(t *testing.T) {
	steps := []domain.Descriptor{domain.NewFlip()}
	assert.Equal(t, domain.NewFormat(domain.FormatPNG), withOutputFormat(steps, "out.png")[1])

	steps = []domain.Descriptor{domain.NewFormat(domain.FormatJPEG)}
	assert.Len(t, withOutputFormat(steps, "out.jpg"), 1)

	steps = []domain.Descriptor{domain.NewRemoveBackground()}
	assert.Len(t, withOutputFormat(steps, "out.png"), 1)

	assert.Len(t, withOutputFormat([]domain.Descriptor{domain.NewFlip()}, "out.xyz"), 1)
}

func TestValidateStepsReportsFirstFailure(t *testing.T) {
	var out bytes.Buffer
	start := domain.Geometry{Width: 1024, Height: 790}

	err := validateSteps(&out, start, []domain.Descriptor{
		domain.NewCrop(0, 0, 1024, 790),
		domain.NewResize(600, 800),
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "1024x790 -> 600x800")
	assert.Contains(t, out.String(), "2 steps valid")

	out.Reset()
	err = validateSteps(&out, start, []domain.Descriptor{
		domain.NewResize(600, 800),
		domain.NewCrop(0, 0, 1024, 790),
	})
	var validErr *domain.ValidationError
	require.ErrorAs(t, err, &validErr)
	assert.Equal(t, domain.ReasonOutOfBounds, validErr.Reason)
	assert.Contains(t, out.String(), "step 1")

	assert.Error(t, validateSteps(&out, domain.Geometry{}, nil))
}

func TestRunApplyWritesResult(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.jpg")
	out := filepath.Join(dir, "out.png")
	ops := filepath.Join(dir, "ops.json")

	require.NoError(t, imaging.Save(imaging.New(1024, 790, color.NRGBA{G: 120, A: 255}), in))
	require.NoError(t, os.WriteFile(ops, []byte(`{"transformations":[
		{"kind":"crop","parameters":{"left":0,"top":0,"right":1024,"bottom":790}},
		{"kind":"resize","parameters":{"width":600,"height":800}},
		{"kind":"watermark","parameters":{}}
	]}`), 0o644))

	err := runApply(context.Background(), applyOptions{
		in:        in,
		out:       out,
		ops:       ops,
		quality:   90,
		watermark: "Pik-Cha",
		timeout:   time.Minute,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	g, format, err := processor.Inspect(data)
	require.NoError(t, err)
	assert.Equal(t, domain.Geometry{Width: 600, Height: 800}, g)
	assert.Equal(t, domain.FormatPNG, format)
}
