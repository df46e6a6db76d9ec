package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraftWith(t *testing.T) {
	base := BaselineDraft(Geometry{Width: 1024, Height: 790})

	s, err := base.With(DraftRotation, -90.0)
	require.NoError(t, err)
	assert.Equal(t, 270.0, s.Rotation)

	s, err = s.With(DraftResizeWidth, 640)
	require.NoError(t, err)
	assert.Equal(t, 640, s.ResizeWidth)

	s, err = s.With(DraftFilterName, " sepia ")
	require.NoError(t, err)
	assert.Equal(t, "sepia", s.FilterName)

	s, err = s.With(DraftFlipped, true)
	require.NoError(t, err)
	assert.True(t, s.Flipped)

	assert.Equal(t, 0.0, base.Rotation, "With must not modify the receiver")
}

func TestDraftWithRejectsBadValues(t *testing.T) {
	base := DraftState{}

	tests := []struct {
		name  string
		field DraftField
		value any
	}{
		{"bool as string", DraftGrayscale, "yes"},
		{"fractional width", DraftResizeWidth, 10.5},
		{"text as number", DraftWatermarkText, 5},
		{"rotation as bool", DraftRotation, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := base.With(tt.field, tt.value)
			assert.ErrorIs(t, err, ErrInvalidDraftValue)
			assert.Equal(t, base, got)
		})
	}

	_, err := base.With("saturation", 1)
	assert.ErrorIs(t, err, ErrUnknownDraftField)
}

func TestDraftDescriptors(t *testing.T) {
	baseline := Geometry{Width: 1024, Height: 790}

	assert.Empty(t, BaselineDraft(baseline).Descriptors(baseline))

	s := BaselineDraft(baseline)
	s.ResizeWidth, s.ResizeHeight = 800, 600
	s.Rotation = 90
	s.Mirrored = true
	s.Grayscale = true
	s.FilterName = "grayscale"
	s.WatermarkText = "Pik-Cha"

	assert.Equal(t, []Descriptor{
		NewResize(800, 600),
		NewRotate(90),
		NewMirror(),
		NewFilter("grayscale"),
		NewWatermark("Pik-Cha"),
	}, s.Descriptors(baseline))
}
