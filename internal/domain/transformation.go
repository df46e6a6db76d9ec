package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

type Kind string

const (
	KindResize           Kind = "resize"
	KindCrop             Kind = "crop"
	KindRotate           Kind = "rotate"
	KindFlip             Kind = "flip"
	KindMirror           Kind = "mirror"
	KindFilter           Kind = "filter"
	KindWatermark        Kind = "watermark"
	KindFormat           Kind = "format"
	KindCompress         Kind = "compress"
	KindRemoveBackground Kind = "remove_background"
)

// Kinds lists every transformation kind in declaration order.
func Kinds() []Kind {
	return []Kind{
		KindResize, KindCrop, KindRotate, KindFlip, KindMirror,
		KindFilter, KindWatermark, KindFormat, KindCompress, KindRemoveBackground,
	}
}

// Params is the kind-specific payload of a Descriptor.
type Params interface {
	Kind() Kind
}

type ResizeParams struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type CropParams struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

type RotateParams struct {
	Angle float64 `json:"angle"`
}

type FlipParams struct{}

type MirrorParams struct{}

// FilterParams selects a named filter. Intensity 0 leaves the strength to the executor.
type FilterParams struct {
	Name      string `json:"name"`
	Intensity int    `json:"intensity,omitempty"`
}

type WatermarkParams struct {
	Text    string `json:"text"`
	Color   string `json:"color,omitempty"`
	Opacity int    `json:"opacity,omitempty"`
}

type FormatParams struct {
	Target Format `json:"target"`
}

// CompressParams carries either an explicit quality or a named preset.
type CompressParams struct {
	Quality int    `json:"quality,omitempty"`
	Preset  string `json:"preset,omitempty"`
}

type RemoveBackgroundParams struct{}

func (ResizeParams) Kind() Kind           { return KindResize }
func (CropParams) Kind() Kind             { return KindCrop }
func (RotateParams) Kind() Kind           { return KindRotate }
func (FlipParams) Kind() Kind             { return KindFlip }
func (MirrorParams) Kind() Kind           { return KindMirror }
func (FilterParams) Kind() Kind           { return KindFilter }
func (WatermarkParams) Kind() Kind        { return KindWatermark }
func (FormatParams) Kind() Kind           { return KindFormat }
func (CompressParams) Kind() Kind         { return KindCompress }
func (RemoveBackgroundParams) Kind() Kind { return KindRemoveBackground }

var compressPresets = map[string]int{
	"low":    30,
	"medium": 60,
	"high":   90,
}

// EffectiveQuality resolves a preset when no explicit quality is set.
// The second result is false for an unknown preset.
func (p CompressParams) EffectiveQuality() (int, bool) {
	if p.Quality != 0 || p.Preset == "" {
		return p.Quality, true
	}
	q, ok := compressPresets[p.Preset]
	return q, ok
}

// Descriptor is one immutable edit step. Construct it with NewDescriptor or
// one of the kind-specific helpers.
type Descriptor struct {
	kind   Kind
	params Params
}

func NewDescriptor(p Params) Descriptor {
	p = dereference(p)
	if p == nil {
		return Descriptor{}
	}
	if f, ok := p.(FormatParams); ok {
		f.Target = ParseFormat(string(f.Target))
		p = f
	}
	return Descriptor{kind: p.Kind(), params: p}
}

func NewResize(width, height int) Descriptor {
	return NewDescriptor(ResizeParams{Width: width, Height: height})
}

func NewCrop(left, top, right, bottom int) Descriptor {
	return NewDescriptor(CropParams{Left: left, Top: top, Right: right, Bottom: bottom})
}

func NewRotate(angle float64) Descriptor {
	return NewDescriptor(RotateParams{Angle: angle})
}

func NewFlip() Descriptor             { return NewDescriptor(FlipParams{}) }
func NewMirror() Descriptor           { return NewDescriptor(MirrorParams{}) }
func NewRemoveBackground() Descriptor { return NewDescriptor(RemoveBackgroundParams{}) }

func NewFilter(name string) Descriptor {
	return NewDescriptor(FilterParams{Name: name})
}

func NewWatermark(text string) Descriptor {
	return NewDescriptor(WatermarkParams{Text: text})
}

func NewFormat(target Format) Descriptor {
	return NewDescriptor(FormatParams{Target: target})
}

func NewCompress(quality int) Descriptor {
	return NewDescriptor(CompressParams{Quality: quality})
}

func (d Descriptor) Kind() Kind {
	return d.kind
}

// Params returns the payload by value; changing it cannot affect the descriptor.
func (d Descriptor) Params() Params {
	return d.params
}

func (d Descriptor) IsZero() bool {
	return d.params == nil
}

func (d Descriptor) String() string {
	switch p := d.params.(type) {
	case ResizeParams:
		return fmt.Sprintf("resize(%dx%d)", p.Width, p.Height)
	case CropParams:
		return fmt.Sprintf("crop(%d,%d,%d,%d)", p.Left, p.Top, p.Right, p.Bottom)
	case RotateParams:
		return fmt.Sprintf("rotate(%g)", p.Angle)
	case FilterParams:
		return fmt.Sprintf("filter(%s)", p.Name)
	case WatermarkParams:
		return fmt.Sprintf("watermark(%q)", p.Text)
	case FormatParams:
		return fmt.Sprintf("format(%s)", p.Target)
	case CompressParams:
		q, _ := p.EffectiveQuality()
		return fmt.Sprintf("compress(%d)", q)
	case nil:
		return "<none>"
	default:
		return string(d.kind)
	}
}

// OutputGeometry predicts the geometry a step produces from in. Rotations by
// non-right angles are an estimate; the executor's result is authoritative.
func (d Descriptor) OutputGeometry(in Geometry) Geometry {
	switch p := d.params.(type) {
	case ResizeParams:
		return Geometry{Width: p.Width, Height: p.Height}
	case CropParams:
		return Geometry{Width: p.Right - p.Left, Height: p.Bottom - p.Top}
	case RotateParams:
		return RotatedGeometry(in, p.Angle)
	default:
		return in
	}
}

// NormalizeAngle wraps any angle in degrees into [0, 360).
func NormalizeAngle(angle float64) float64 {
	m := math.Mod(angle, 360)
	if m < 0 {
		m += 360
	}
	if m >= 360 || m == 0 {
		return 0
	}
	return m
}

// RotatedGeometry is the bounding box of g rotated by angle degrees with the canvas expanded.
func RotatedGeometry(g Geometry, angle float64) Geometry {
	switch a := NormalizeAngle(angle); a {
	case 0, 180:
		return g
	case 90, 270:
		return Geometry{Width: g.Height, Height: g.Width}
	default:
		sin, cos := math.Sincos(a * math.Pi / 180)
		w := math.Abs(float64(g.Width)*cos) + math.Abs(float64(g.Height)*sin)
		h := math.Abs(float64(g.Width)*sin) + math.Abs(float64(g.Height)*cos)
		return Geometry{Width: int(math.Round(w)), Height: int(math.Round(h))}
	}
}

type descriptorJSON struct {
	Kind       Kind   `json:"kind"`
	Parameters Params `json:"parameters"`
}

type rawDescriptor struct {
	Kind       Kind            `json:"kind"`
	Parameters json.RawMessage `json:"parameters"`
	// type/options is the batch shape sent by the legacy web client.
	Type    string          `json:"type"`
	Options json.RawMessage `json:"options"`
}

func (d Descriptor) MarshalJSON() ([]byte, error) {
	if d.params == nil {
		return nil, fmt.Errorf("marshal descriptor: %w", ErrUnknownKind)
	}
	return json.Marshal(descriptorJSON{Kind: d.kind, Parameters: d.params})
}

func (d *Descriptor) UnmarshalJSON(data []byte) error {
	var raw rawDescriptor
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDescriptor, err)
	}

	var (
		p   Params
		err error
	)
	if raw.Kind == "" && raw.Type != "" {
		p, err = decodeLegacy(raw.Type, raw.Options)
	} else {
		p, err = decodeParams(raw.Kind, raw.Parameters)
	}
	if err != nil {
		return err
	}

	*d = NewDescriptor(p)
	return nil
}

// DecodeDescriptor rebuilds a descriptor from a stored kind and its JSON parameters.
func DecodeDescriptor(kind Kind, parameters []byte) (Descriptor, error) {
	p, err := decodeParams(kind, parameters)
	if err != nil {
		return Descriptor{}, err
	}
	return NewDescriptor(p), nil
}

func decodeParams(kind Kind, data json.RawMessage) (Params, error) {
	switch kind {
	case KindResize:
		return decodeInto[ResizeParams](data)
	case KindCrop:
		return decodeInto[CropParams](data)
	case KindRotate:
		return decodeInto[RotateParams](data)
	case KindFlip:
		return FlipParams{}, nil
	case KindMirror:
		return MirrorParams{}, nil
	case KindFilter:
		return decodeInto[FilterParams](data)
	case KindWatermark:
		return decodeInto[WatermarkParams](data)
	case KindFormat:
		return decodeInto[FormatParams](data)
	case KindCompress:
		return decodeInto[CompressParams](data)
	case KindRemoveBackground:
		return RemoveBackgroundParams{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func decodeLegacy(typ string, options json.RawMessage) (Params, error) {
	var opts struct {
		Format string `json:"format"`
		Filter string `json:"filter"`
	}
	switch typ {
	case "format":
		if err := unmarshalOptional(options, &opts); err != nil {
			return nil, err
		}
		return FormatParams{Target: ParseFormat(opts.Format)}, nil
	case "filter":
		if err := unmarshalOptional(options, &opts); err != nil {
			return nil, err
		}
		return FilterParams{Name: opts.Filter}, nil
	case "remove_bg":
		return RemoveBackgroundParams{}, nil
	default:
		return decodeParams(Kind(typ), options)
	}
}

func decodeInto[T Params](data json.RawMessage) (Params, error) {
	var p T
	if err := unmarshalOptional(data, &p); err != nil {
		return nil, err
	}
	return p, nil
}

func unmarshalOptional(data json.RawMessage, v any) error {
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: parameters: %w", ErrInvalidDescriptor, err)
	}
	return nil
}

func dereference(p Params) Params {
	switch v := p.(type) {
	case *ResizeParams:
		return *v
	case *CropParams:
		return *v
	case *RotateParams:
		return *v
	case *FlipParams:
		return *v
	case *MirrorParams:
		return *v
	case *FilterParams:
		return *v
	case *WatermarkParams:
		return *v
	case *FormatParams:
		return *v
	case *CompressParams:
		return *v
	case *RemoveBackgroundParams:
		return *v
	default:
		return p
	}
}
