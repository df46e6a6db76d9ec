package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yokitheyo/imageeditor/internal/domain"
	"github.com/yokitheyo/imageeditor/internal/dto"
)

func TestTaskWireFormat(t *testing.T) {
	task := dto.TransformTask{
		ImageID:         "img-1",
		Version:         3,
		Transformations: []domain.Descriptor{domain.NewResize(600, 800), domain.NewFormat(domain.FormatPNG)},
	}

	data, err := encodeTask(task)
	require.NoError(t, err)

	got, err := decodeTask(data)
	require.NoError(t, err)
	assert.Equal(t, task, *got)
}

func TestDecodeTaskRejectsIncompleteMessages(t *testing.T) {
	_, err := decodeTask([]byte(`{"version":1,"transformations":[{"kind":"flip"}]}`))
	assert.ErrorIs(t, err, errInvalidTask)

	_, err = decodeTask([]byte(`{"image_id":"a","version":1,"transformations":[]}`))
	assert.ErrorIs(t, err, errInvalidTask)

	_, err = decodeTask([]byte(`{"image_id":"a","transformations":[{"kind":"sharpen"}]}`))
	assert.ErrorIs(t, err, domain.ErrUnknownKind)

	_, err = decodeTask([]byte(`not json`))
	assert.Error(t, err)
}

func TestDecodeTaskAcceptsLegacyShape(t *testing.T) {
	got, err := decodeTask([]byte(`{"image_id":"a","version":1,"transformations":[{"type":"remove_bg"},{"type":"filter","options":{"filter":"sepia"}}]}`))
	require.NoError(t, err)
	require.Len(t, got.Transformations, 2)
	assert.Equal(t, domain.KindRemoveBackground, got.Transformations[0].Kind())
	assert.Equal(t, domain.NewFilter("sepia"), got.Transformations[1])
}
