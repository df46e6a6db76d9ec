package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/wb-go/wbf/zlog"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/yokitheyo/imageeditor/internal/config"
	"github.com/yokitheyo/imageeditor/internal/domain"
)

// ImageProcessor renders one transformation step: decode, apply, encode.
type ImageProcessor struct {
	cfg *config.ProcessingConfig
}

func NewImageProcessor(cfg *config.ProcessingConfig) *ImageProcessor {
	if cfg.OutputQuality < 1 || cfg.OutputQuality > 100 {
		zlog.Logger.Warn().Int("output_quality", cfg.OutputQuality).Msg("Invalid output quality, using default")
		cfg.OutputQuality = 90
	}
	if cfg.WatermarkOpacity < 1 || cfg.WatermarkOpacity > 100 {
		cfg.WatermarkOpacity = 50
	}
	if _, err := colorful.Hex(cfg.WatermarkColor); err != nil {
		cfg.WatermarkColor = "#ff0000"
	}
	if cfg.BackgroundTolerance <= 0 {
		cfg.BackgroundTolerance = 0.15
	}
	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = 50_000_000
	}
	zlog.Logger.Info().
		Int("output_quality", cfg.OutputQuality).
		Str("watermark_color", cfg.WatermarkColor).
		Int("watermark_opacity", cfg.WatermarkOpacity).
		Float64("background_tolerance", cfg.BackgroundTolerance).
		Int("max_pixels", cfg.MaxPixels).
		Msg("ImageProcessor initialized")
	return &ImageProcessor{cfg: cfg}
}

// Run applies d to the encoded image in. The step that changes the encoding
// (format, compress, remove_background) also decides the output format and
// quality; every other step keeps those of its input.
func (p *ImageProcessor) Run(ctx context.Context, d domain.Descriptor, in domain.Asset) (domain.Asset, error) {
	if err := ctx.Err(); err != nil {
		return domain.Asset{}, err
	}

	img, err := imaging.Decode(bytes.NewReader(in.Data), imaging.AutoOrientation(true))
	if err != nil {
		return domain.Asset{}, fmt.Errorf("%w: decode: %v", domain.ErrInvalidImageData, err)
	}
	if img.Bounds().Dx() == 0 || img.Bounds().Dy() == 0 {
		return domain.Asset{}, domain.ErrInvalidImageData
	}

	format := in.Format.Canonical()
	quality := in.Quality

	var out image.Image
	switch params := d.Params().(type) {
	case domain.ResizeParams:
		if params.Width <= 0 || params.Height <= 0 {
			return domain.Asset{}, fmt.Errorf("resize to %dx%d: %w", params.Width, params.Height, domain.ErrEmptyResult)
		}
		if params.Width > p.cfg.MaxPixels/params.Height {
			return domain.Asset{}, fmt.Errorf("resize to %dx%d exceeds %d pixels", params.Width, params.Height, p.cfg.MaxPixels)
		}
		out = imaging.Resize(img, params.Width, params.Height, imaging.Lanczos)
	case domain.CropParams:
		rect := image.Rect(params.Left, params.Top, params.Right, params.Bottom)
		if !rect.In(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy())) {
			return domain.Asset{}, fmt.Errorf("crop %v outside image %dx%d", rect, img.Bounds().Dx(), img.Bounds().Dy())
		}
		out = imaging.Crop(img, rect.Add(img.Bounds().Min))
	case domain.RotateParams:
		out = rotate(img, params.Angle)
	case domain.FlipParams:
		out = imaging.FlipV(img)
	case domain.MirrorParams:
		out = imaging.FlipH(img)
	case domain.FilterParams:
		out, err = applyFilter(img, params)
	case domain.WatermarkParams:
		out, err = p.watermark(img, params)
	case domain.FormatParams:
		out = img
		format = params.Target.Canonical()
	case domain.CompressParams:
		q, ok := params.EffectiveQuality()
		if !ok {
			return domain.Asset{}, fmt.Errorf("unknown compress preset %q", params.Preset)
		}
		out = img
		quality = q
	case domain.RemoveBackgroundParams:
		out = p.removeBackground(img)
		format = domain.FormatPNG
	default:
		return domain.Asset{}, fmt.Errorf("%w: %q", domain.ErrUnknownKind, d.Kind())
	}
	if err != nil {
		return domain.Asset{}, err
	}

	data, err := p.encode(out, format, quality)
	if err != nil {
		return domain.Asset{}, err
	}

	return domain.Asset{
		Data:     data,
		Geometry: domain.Geometry{Width: out.Bounds().Dx(), Height: out.Bounds().Dy()},
		Format:   format,
		Quality:  quality,
	}, nil
}

// Inspect reads geometry and format from an encoded image without decoding the pixels.
func Inspect(data []byte) (domain.Geometry, domain.Format, error) {
	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return domain.Geometry{}, "", fmt.Errorf("%w: %v", domain.ErrInvalidImageData, err)
	}
	return domain.Geometry{Width: cfg.Width, Height: cfg.Height}, domain.ParseFormat(name), nil
}

func (p *ImageProcessor) encode(img image.Image, format domain.Format, quality int) ([]byte, error) {
	f, err := imaging.FormatFromExtension(string(format))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidFormat, format)
	}

	var opts []imaging.EncodeOption
	switch f {
	case imaging.JPEG:
		if quality == 0 {
			quality = p.cfg.OutputQuality
		}
		opts = append(opts, imaging.JPEGQuality(quality))
	case imaging.PNG:
		if quality > 0 {
			opts = append(opts, imaging.PNGCompressionLevel(png.BestCompression))
		}
	case imaging.GIF:
		if quality > 0 {
			opts = append(opts, imaging.GIFNumColors(max(2, quality*256/100)))
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, f, opts...); err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

// rotate turns img counter-clockwise and grows the canvas to fit. Right
// angles use the lossless transposes.
func rotate(img image.Image, angle float64) image.Image {
	switch a := domain.NormalizeAngle(angle); a {
	case 0:
		return img
	case 90:
		return imaging.Rotate90(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate270(img)
	default:
		return imaging.Rotate(img, a, color.Transparent)
	}
}

func applyFilter(img image.Image, params domain.FilterParams) (image.Image, error) {
	var filtered image.Image
	switch params.Name {
	case "grayscale":
		filtered = effect.Grayscale(img)
	case "sepia":
		filtered = effect.Sepia(img)
	case "invert":
		filtered = effect.Invert(img)
	case "sharpen":
		filtered = effect.Sharpen(img)
	case "blur":
		sigma := 3.0
		if params.Intensity > 0 {
			sigma = float64(params.Intensity) / 10
		}
		return blur.Gaussian(img, sigma), nil
	default:
		return nil, fmt.Errorf("unknown filter %q", params.Name)
	}

	if params.Intensity == 0 || params.Intensity == 100 {
		return filtered, nil
	}
	return imaging.Overlay(img, filtered, image.Pt(0, 0), float64(params.Intensity)/100), nil
}

func (p *ImageProcessor) watermark(img image.Image, params domain.WatermarkParams) (image.Image, error) {
	hex := params.Color
	if hex == "" {
		hex = p.cfg.WatermarkColor
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return nil, fmt.Errorf("watermark colour %q: %w", hex, err)
	}
	opacity := params.Opacity
	if opacity == 0 {
		opacity = p.cfg.WatermarkOpacity
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	rgba := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	face := basicfont.Face7x13
	// glyph height ends up around an eighth of the short side
	scale := max(1, min(width, height)/(8*face.Height))

	textWidth := font.MeasureString(face, params.Text).Ceil() * scale
	textHeight := face.Height * scale
	stepX := textWidth + textWidth/2 + 1
	stepY := textHeight * 3

	mask := image.NewAlpha(rgba.Bounds())
	for row := -1; row*stepY < height+textHeight; row++ {
		for col := -1; col*stepX < width+textWidth; col++ {
			x := col * stepX
			if row%2 == 1 {
				x += stepX / 2
			}
			drawLargeText(mask, params.Text, x, row*stepY, scale, face)
		}
	}

	r, g, b := c.RGB255()
	ink := image.NewUniform(color.NRGBA{R: r, G: g, B: b, A: uint8(opacity * 255 / 100)})
	draw.DrawMask(rgba, rgba.Bounds(), ink, image.Point{}, mask, image.Point{}, draw.Over)
	return rgba, nil
}

// drawLargeText renders text at 1x and copies every lit pixel into dst as a
// scale×scale block with its top-left corner at (x, y).
func drawLargeText(dst *image.Alpha, text string, x, y, scale int, face *basicfont.Face) {
	tempWidth := font.MeasureString(face, text).Ceil()
	tempHeight := face.Height
	if tempWidth == 0 {
		return
	}
	temp := image.NewAlpha(image.Rect(0, 0, tempWidth, tempHeight))

	drawer := &font.Drawer{
		Dst:  temp,
		Src:  image.Opaque,
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	drawer.DrawString(text)

	bounds := dst.Bounds()
	for sy := 0; sy < tempHeight; sy++ {
		for sx := 0; sx < tempWidth; sx++ {
			if temp.AlphaAt(sx, sy).A == 0 {
				continue
			}
			block := image.Rect(x+sx*scale, y+sy*scale, x+(sx+1)*scale, y+(sy+1)*scale).Intersect(bounds)
			if !block.Empty() {
				draw.Draw(dst, block, image.Opaque, image.Point{}, draw.Src)
			}
		}
	}
}

// removeBackground treats the mean border colour as background. Pixels close
// to it in Lab space fade to transparent in proportion to their distance, and
// the resulting mask is softened so edges do not alias.
func (p *ImageProcessor) removeBackground(img image.Image) image.Image {
	src := imaging.Clone(img)
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	bg := borderColor(src)
	tol := p.cfg.BackgroundTolerance

	mask := image.NewGray(bounds)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px := src.NRGBAAt(x, y)
			c := colorful.Color{R: float64(px.R) / 255, G: float64(px.G) / 255, B: float64(px.B) / 255}
			keep := 1.0
			if dist := c.DistanceLab(bg); dist < tol {
				keep = dist / tol
			}
			mask.SetGray(x, y, color.Gray{Y: uint8(math.Round(keep * float64(px.A)))})
		}
	}
	soft := blur.Gaussian(mask, 1)

	out := image.NewNRGBA(bounds)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px := src.NRGBAAt(x, y)
			px.A = min(px.A, soft.RGBAAt(x, y).R)
			out.SetNRGBA(x, y, px)
		}
	}
	return out
}

func borderColor(img *image.NRGBA) colorful.Color {
	b := img.Bounds()
	var r, g, bl, n float64
	add := func(x, y int) {
		px := img.NRGBAAt(x, y)
		r += float64(px.R)
		g += float64(px.G)
		bl += float64(px.B)
		n++
	}
	for x := b.Min.X; x < b.Max.X; x++ {
		add(x, b.Min.Y)
		add(x, b.Max.Y-1)
	}
	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		add(b.Min.X, y)
		add(b.Max.X-1, y)
	}
	return colorful.Color{R: r / n / 255, G: g / n / 255, B: bl / n / 255}
}
