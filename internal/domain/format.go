package domain

import "strings"

type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatJPG  Format = "jpg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
	FormatTIFF Format = "tiff"
	FormatBMP  Format = "bmp"
)

var supportedFormats = map[Format]struct{}{
	FormatJPEG: {},
	FormatJPG:  {},
	FormatPNG:  {},
	FormatGIF:  {},
	FormatTIFF: {},
	FormatBMP:  {},
}

// ParseFormat lowercases and trims s. It does not check support.
func ParseFormat(s string) Format {
	return Format(strings.ToLower(strings.TrimSpace(s)))
}

func (f Format) IsSupported() bool {
	_, ok := supportedFormats[f]
	return ok
}

// Canonical folds aliases, so jpg and jpeg compare equal.
func (f Format) Canonical() Format {
	if f == FormatJPG {
		return FormatJPEG
	}
	return f
}

func (f Format) Extension() string {
	switch f.Canonical() {
	case FormatJPEG:
		return ".jpg"
	case FormatTIFF:
		return ".tiff"
	default:
		return "." + string(f)
	}
}

func (f Format) ContentType() string {
	switch f.Canonical() {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatGIF:
		return "image/gif"
	case FormatTIFF:
		return "image/tiff"
	case FormatBMP:
		return "image/bmp"
	default:
		return "application/octet-stream"
	}
}

func SupportedFormats() []Format {
	return []Format{FormatJPEG, FormatJPG, FormatPNG, FormatGIF, FormatTIFF, FormatBMP}
}
