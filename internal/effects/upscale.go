package effects

import (
	"errors"
	"fmt"
	"image"
	"image/draw"

	"github.com/nfnt/resize"
)

const (
	MinUpscale = 2
	MaxUpscale = 4
	// MaxUpscaleDimension bounds either side of an upscaled image.
	MaxUpscaleDimension = 16384
)

var ErrInvalidScale = fmt.Errorf("scale must be in [%d,%d]", MinUpscale, MaxUpscale)

var (
	ErrUpscaleTooLarge = errors.New("upscaled image would be too large")
	ErrEmptyImage      = errors.New("empty image")
)

// Upscale enlarges img by an integer factor with Lanczos resampling.
func Upscale(img image.Image, scale int) (*image.NRGBA, error) {
	if scale < MinUpscale || scale > MaxUpscale {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidScale, scale)
	}
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	b := img.Bounds()
	w, h := b.Dx()*scale, b.Dy()*scale
	if w > MaxUpscaleDimension || h > MaxUpscaleDimension {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d", ErrUpscaleTooLarge, w, h, MaxUpscaleDimension)
	}

	out := resize.Resize(uint(w), uint(h), toNRGBA(img), resize.Lanczos3)
	if n, ok := out.(*image.NRGBA); ok {
		return n, nil
	}
	return toNRGBA(out), nil
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
