package domain

import (
	"fmt"
	"math"
	"strings"
)

type DraftField string

const (
	DraftRotation      DraftField = "rotation"
	DraftGrayscale     DraftField = "grayscale"
	DraftFlipped       DraftField = "flipped"
	DraftMirrored      DraftField = "mirrored"
	DraftResizeWidth   DraftField = "resize_width"
	DraftResizeHeight  DraftField = "resize_height"
	DraftWatermarkText DraftField = "watermark_text"
	DraftFilterName    DraftField = "filter_name"
)

// DraftState is the live, uncommitted parameter set behind a preview.
type DraftState struct {
	Rotation      float64 `json:"rotation"`
	Grayscale     bool    `json:"grayscale"`
	Flipped       bool    `json:"flipped"`
	Mirrored      bool    `json:"mirrored"`
	ResizeWidth   int     `json:"resize_width"`
	ResizeHeight  int     `json:"resize_height"`
	WatermarkText string  `json:"watermark_text"`
	FilterName    string  `json:"filter_name"`
}

// BaselineDraft is the neutral draft for an image of geometry g.
func BaselineDraft(g Geometry) DraftState {
	return DraftState{ResizeWidth: g.Width, ResizeHeight: g.Height}
}

// With returns a copy of s with field set to value. Numbers may arrive as
// any Go numeric type since JSON decoding yields float64.
func (s DraftState) With(field DraftField, value any) (DraftState, error) {
	switch field {
	case DraftRotation:
		f, err := toFloat(field, value)
		if err != nil {
			return s, err
		}
		s.Rotation = NormalizeAngle(f)
	case DraftGrayscale, DraftFlipped, DraftMirrored:
		b, ok := value.(bool)
		if !ok {
			return s, fmt.Errorf("%w: %s expects bool, got %T", ErrInvalidDraftValue, field, value)
		}
		switch field {
		case DraftGrayscale:
			s.Grayscale = b
		case DraftFlipped:
			s.Flipped = b
		default:
			s.Mirrored = b
		}
	case DraftResizeWidth, DraftResizeHeight:
		f, err := toFloat(field, value)
		if err != nil {
			return s, err
		}
		if f != math.Trunc(f) {
			return s, fmt.Errorf("%w: %s expects integer, got %v", ErrInvalidDraftValue, field, value)
		}
		if field == DraftResizeWidth {
			s.ResizeWidth = int(f)
		} else {
			s.ResizeHeight = int(f)
		}
	case DraftWatermarkText, DraftFilterName:
		str, ok := value.(string)
		if !ok {
			return s, fmt.Errorf("%w: %s expects string, got %T", ErrInvalidDraftValue, field, value)
		}
		if field == DraftWatermarkText {
			s.WatermarkText = str
		} else {
			s.FilterName = strings.TrimSpace(str)
		}
	default:
		return s, fmt.Errorf("%w: %q", ErrUnknownDraftField, field)
	}
	return s, nil
}

// Descriptors turns the draft into the steps that reproduce it on an image
// of geometry baseline, in the order the preview composes them: resize,
// rotate, flip, mirror, grayscale, named filter, watermark.
func (s DraftState) Descriptors(baseline Geometry) []Descriptor {
	var out []Descriptor
	if (s.ResizeWidth != baseline.Width || s.ResizeHeight != baseline.Height) &&
		(s.ResizeWidth != 0 || s.ResizeHeight != 0) {
		out = append(out, NewResize(s.ResizeWidth, s.ResizeHeight))
	}
	if NormalizeAngle(s.Rotation) != 0 {
		out = append(out, NewRotate(s.Rotation))
	}
	if s.Flipped {
		out = append(out, NewFlip())
	}
	if s.Mirrored {
		out = append(out, NewMirror())
	}
	if s.Grayscale {
		out = append(out, NewFilter("grayscale"))
	}
	if s.FilterName != "" && !(s.Grayscale && s.FilterName == "grayscale") {
		out = append(out, NewFilter(s.FilterName))
	}
	if strings.TrimSpace(s.WatermarkText) != "" {
		out = append(out, NewWatermark(s.WatermarkText))
	}
	return out
}

func toFloat(field DraftField, value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%w: %s expects number, got %T", ErrInvalidDraftValue, field, value)
	}
}
