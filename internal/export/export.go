// Package export encodes textures for download.
package export

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	svg "github.com/ajstarks/svgo"
	"github.com/ftrvxmtrx/tga"
)

type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
	WebP Format = "webp"
	TGA  Format = "tga"
	SVG  Format = "svg"
)

// DefaultQuality is the JPEG quality used when none is given.
const DefaultQuality = 92

var ErrUnsupportedFormat = errors.New("unsupported export format")

// Formats lists every supported format.
func Formats() []Format { return []Format{PNG, JPEG, WebP, TGA, SVG} }

// ParseFormat accepts a format name, a file extension or a MIME type.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))
	s = strings.TrimPrefix(s, "image/")
	switch s {
	case "png":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	case "webp":
		return WebP, nil
	case "tga", "x-tga":
		return TGA, nil
	case "svg", "svg+xml":
		return SVG, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

func (f Format) MIME() string {
	switch f {
	case JPEG:
		return "image/jpeg"
	case WebP:
		return "image/webp"
	case TGA:
		return "image/x-tga"
	case SVG:
		return "image/svg+xml"
	}
	return "image/png"
}

func (f Format) Ext() string {
	if f == JPEG {
		return ".jpg"
	}
	return "." + string(f)
}

// Encode writes img in format f. quality only affects JPEG; values outside
// 1..100 select DefaultQuality.
func Encode(w io.Writer, img image.Image, f Format, quality int) error {
	switch f {
	case PNG:
		return png.Encode(w, img)
	case JPEG:
		if quality < 1 || quality > 100 {
			quality = DefaultQuality
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case WebP:
		return nativewebp.Encode(w, img, nil)
	case TGA:
		return tga.Encode(w, img)
	case SVG:
		return encodeSVG(w, img)
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
}

// encodeSVG wraps the raster as an embedded PNG so vector tools can place it.
func encodeSVG(w io.Writer, img image.Image) error {
	uri, err := DataURL(img, PNG, 0)
	if err != nil {
		return err
	}
	b := img.Bounds()
	canvas := svg.New(w)
	canvas.Start(b.Dx(), b.Dy())
	canvas.Title("textilegen texture")
	canvas.Image(0, 0, b.Dx(), b.Dy(), uri)
	canvas.End()
	return nil
}

// DataURL returns img as a base64 data URL.
func DataURL(img image.Image, f Format, quality int) (string, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, f, quality); err != nil {
		return "", err
	}
	return "data:" + f.MIME() + ";base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// WriteFile encodes img into path, choosing the format from the extension.
func WriteFile(path string, img image.Image, quality int) error {
	f, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Encode(file, img, f, quality); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return file.Close()
}
