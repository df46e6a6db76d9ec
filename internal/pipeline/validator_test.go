package pipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yokitheyo/imageeditor/internal/domain"
)

var geometry1024x790 = domain.Geometry{Width: 1024, Height: 790}

func TestValidateCropBounds(t *testing.T) {
	tests := []struct {
		name  string
		crop  domain.Descriptor
		valid bool
		field string
	}{
		{
			name:  "full frame",
			crop:  domain.NewCrop(0, 0, 1024, 790),
			valid: true,
		},
		{
			name:  "inner box",
			crop:  domain.NewCrop(10, 20, 500, 600),
			valid: true,
		},
		{
			name:  "left past right",
			crop:  domain.NewCrop(500, 0, 400, 790),
			field: "right",
		},
		{
			name:  "left equals right",
			crop:  domain.NewCrop(400, 0, 400, 790),
			field: "right",
		},
		{
			name:  "right exceeds width",
			crop:  domain.NewCrop(0, 0, 1025, 790),
			field: "right",
		},
		{
			name:  "bottom exceeds height",
			crop:  domain.NewCrop(0, 0, 1024, 791),
			field: "bottom",
		},
		{
			name:  "negative left",
			crop:  domain.NewCrop(-1, 0, 100, 100),
			field: "left",
		},
		{
			name:  "top past bottom",
			crop:  domain.NewCrop(0, 300, 100, 200),
			field: "bottom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.crop, geometry1024x790)
			if tt.valid {
				assert.NoError(t, err)
				return
			}

			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, domain.ReasonOutOfBounds, verr.Reason)
			assert.Equal(t, domain.KindCrop, verr.Kind)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestValidateReasons(t *testing.T) {
	tests := []struct {
		name   string
		d      domain.Descriptor
		reason domain.ValidationReason
	}{
		{"resize zero width", domain.NewResize(0, 600), domain.ReasonInvalidDimensions},
		{"resize negative height", domain.NewResize(800, -1), domain.ReasonInvalidDimensions},
		{"rotate NaN", domain.NewRotate(math.NaN()), domain.ReasonRange},
		{"rotate infinity", domain.NewRotate(math.Inf(1)), domain.ReasonRange},
		{"compress zero", domain.NewCompress(0), domain.ReasonRange},
		{"compress above 100", domain.NewCompress(101), domain.ReasonRange},
		{"compress unknown preset", domain.NewDescriptor(domain.CompressParams{Preset: "ultra"}), domain.ReasonRange},
		{"filter empty", domain.NewFilter(" "), domain.ReasonEmpty},
		{"filter unknown", domain.NewFilter("vintage"), domain.ReasonUnknownFilter},
		{"filter intensity", domain.NewDescriptor(domain.FilterParams{Name: "blur", Intensity: 150}), domain.ReasonRange},
		{"watermark blank", domain.NewWatermark("   "), domain.ReasonEmpty},
		{"watermark opacity", domain.NewDescriptor(domain.WatermarkParams{Text: "x", Opacity: 101}), domain.ReasonRange},
		{"watermark colour", domain.NewDescriptor(domain.WatermarkParams{Text: "x", Color: "red"}), domain.ReasonRange},
		{"format webp", domain.NewFormat("webp"), domain.ReasonUnsupportedFormat},
		{"zero descriptor", domain.Descriptor{}, domain.ReasonUnknownKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.d, geometry1024x790)
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.reason, verr.Reason)
		})
	}
}

func TestValidateAccepts(t *testing.T) {
	accepted := []domain.Descriptor{
		domain.NewResize(100000, 1),
		domain.NewRotate(-450),
		domain.NewRotate(720.5),
		domain.NewFlip(),
		domain.NewMirror(),
		domain.NewRemoveBackground(),
		domain.NewFilter("sepia"),
		domain.NewDescriptor(domain.FilterParams{Name: "blur", Intensity: 100}),
		domain.NewWatermark("Pik-Cha"),
		domain.NewDescriptor(domain.WatermarkParams{Text: "x", Color: "#ff0000", Opacity: 50}),
		domain.NewFormat(domain.FormatJPG),
		domain.NewFormat(domain.FormatPNG),
		domain.NewCompress(1),
		domain.NewCompress(100),
		domain.NewDescriptor(domain.CompressParams{Preset: "medium"}),
	}

	for _, d := range accepted {
		t.Run(d.String(), func(t *testing.T) {
			assert.NoError(t, Validate(d, geometry1024x790))
		})
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	inputs := []domain.Descriptor{
		domain.NewCrop(500, 0, 400, 790),
		domain.NewCrop(0, 0, 1024, 790),
		domain.NewCompress(0),
		domain.NewRotate(-90),
	}

	for _, d := range inputs {
		first := Validate(d, geometry1024x790)
		second := Validate(d, geometry1024x790)
		assert.Equal(t, first, second)
	}
}
