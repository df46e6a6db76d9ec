package pipeline

import (
	"fmt"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/yokitheyo/imageeditor/internal/domain"
)

// Filters the executor knows how to render.
var knownFilters = map[string]struct{}{
	"grayscale": {},
	"sepia":     {},
	"blur":      {},
	"sharpen":   {},
	"invert":    {},
}

func KnownFilters() []string {
	return []string{"grayscale", "sepia", "blur", "sharpen", "invert"}
}

// Validate checks d against the geometry the step will be applied to.
// It returns nil or a *domain.ValidationError and never mutates its inputs.
func Validate(d domain.Descriptor, known domain.Geometry) error {
	switch p := d.Params().(type) {
	case domain.ResizeParams:
		if p.Width <= 0 {
			return invalid(d, domain.ReasonInvalidDimensions, "width", fmt.Sprintf("must be positive, got %d", p.Width))
		}
		if p.Height <= 0 {
			return invalid(d, domain.ReasonInvalidDimensions, "height", fmt.Sprintf("must be positive, got %d", p.Height))
		}
	case domain.CropParams:
		return validateCrop(d, p, known)
	case domain.RotateParams:
		if math.IsNaN(p.Angle) || math.IsInf(p.Angle, 0) {
			return invalid(d, domain.ReasonRange, "angle", "must be a finite number")
		}
	case domain.FilterParams:
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return invalid(d, domain.ReasonEmpty, "name", "filter name is required")
		}
		if _, ok := knownFilters[name]; !ok {
			return invalid(d, domain.ReasonUnknownFilter, "name", fmt.Sprintf("%q is not one of %s", name, strings.Join(KnownFilters(), ", ")))
		}
		if p.Intensity != 0 && !inPercentRange(p.Intensity) {
			return invalid(d, domain.ReasonRange, "intensity", fmt.Sprintf("must be in [1,100], got %d", p.Intensity))
		}
	case domain.WatermarkParams:
		if strings.TrimSpace(p.Text) == "" {
			return invalid(d, domain.ReasonEmpty, "text", "watermark text is empty")
		}
		if p.Opacity != 0 && !inPercentRange(p.Opacity) {
			return invalid(d, domain.ReasonRange, "opacity", fmt.Sprintf("must be in [1,100], got %d", p.Opacity))
		}
		if p.Color != "" {
			if _, err := colorful.Hex(p.Color); err != nil {
				return invalid(d, domain.ReasonRange, "color", fmt.Sprintf("%q is not a #rrggbb colour", p.Color))
			}
		}
	case domain.FormatParams:
		if !p.Target.IsSupported() {
			return invalid(d, domain.ReasonUnsupportedFormat, "target", fmt.Sprintf("%q is not supported", p.Target))
		}
	case domain.CompressParams:
		q, ok := p.EffectiveQuality()
		if !ok {
			return invalid(d, domain.ReasonRange, "preset", fmt.Sprintf("unknown preset %q", p.Preset))
		}
		if !inPercentRange(q) {
			return invalid(d, domain.ReasonRange, "quality", fmt.Sprintf("must be in [1,100], got %d", q))
		}
	case domain.FlipParams, domain.MirrorParams, domain.RemoveBackgroundParams:
	default:
		return invalid(d, domain.ReasonUnknownKind, "", "descriptor has no parameters")
	}
	return nil
}

func validateCrop(d domain.Descriptor, p domain.CropParams, known domain.Geometry) error {
	switch {
	case p.Left < 0:
		return invalid(d, domain.ReasonOutOfBounds, "left", fmt.Sprintf("left %d is negative", p.Left))
	case p.Top < 0:
		return invalid(d, domain.ReasonOutOfBounds, "top", fmt.Sprintf("top %d is negative", p.Top))
	case p.Left >= p.Right:
		return invalid(d, domain.ReasonOutOfBounds, "right", fmt.Sprintf("left %d must be less than right %d", p.Left, p.Right))
	case p.Top >= p.Bottom:
		return invalid(d, domain.ReasonOutOfBounds, "bottom", fmt.Sprintf("top %d must be less than bottom %d", p.Top, p.Bottom))
	case p.Right > known.Width:
		return invalid(d, domain.ReasonOutOfBounds, "right", fmt.Sprintf("right %d exceeds width %d", p.Right, known.Width))
	case p.Bottom > known.Height:
		return invalid(d, domain.ReasonOutOfBounds, "bottom", fmt.Sprintf("bottom %d exceeds height %d", p.Bottom, known.Height))
	}
	return nil
}

func inPercentRange(v int) bool {
	return v >= 1 && v <= 100
}

func invalid(d domain.Descriptor, reason domain.ValidationReason, field, detail string) *domain.ValidationError {
	return &domain.ValidationError{
		Kind:   d.Kind(),
		Reason: reason,
		Field:  field,
		Detail: detail,
	}
}
