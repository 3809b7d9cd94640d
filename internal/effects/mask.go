// Package effects post-processes generated textures: puff-print masks,
// displacement maps, color grading and tiling.
package effects

import (
	"image"
	"image/color"
	"math"

	"github.com/aquilax/go-perlin"
	"github.com/disintegration/gift"
)

// LuminanceMask converts an image to its Rec. 601 luma, scaled by alpha so
// transparent pixels read as black.
func LuminanceMask(img image.Image) *image.Gray {
	b := img.Bounds()
	mask := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			// RGBA() is premultiplied, so luma already includes alpha.
			l := (299*float64(r) + 587*float64(g) + 114*float64(bl)) / 1000
			mask.SetGray(x, y, color.Gray{Y: uint8(math.Round(l / 257))})
		}
	}
	return mask
}

// Blur applies a Gaussian blur; sigma <= 0 returns a copy.
func Blur(mask *image.Gray, sigma float32) *image.Gray {
	if sigma <= 0 {
		out := image.NewGray(mask.Bounds())
		copy(out.Pix, mask.Pix)
		return out
	}
	g := gift.New(gift.GaussianBlur(sigma))
	dst := image.NewGray(g.Bounds(mask.Bounds()))
	g.Draw(dst, mask)
	return dst
}

// Threshold maps values at or above t to 255 and the rest to 0.
func Threshold(mask *image.Gray, t uint8) *image.Gray {
	b := mask.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if mask.GrayAt(x, y).Y >= t {
				out.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return out
}

// Antialias softens hard mask edges with a light blur.
func Antialias(mask *image.Gray, sigma float32) *image.Gray {
	return Blur(mask, sigma)
}

// edgeNoise perturbs mask values by Perlin noise centred on zero. strength
// 1 shifts values by up to ±128.
func edgeNoise(mask *image.Gray, scale, strength float64, seed int64) *image.Gray {
	if strength <= 0 {
		return mask
	}
	if scale <= 0 {
		scale = 16
	}
	p := perlin.NewPerlin(2.0, 2.0, 3, seed)

	b := mask.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			n := p.Noise2D(float64(x-b.Min.X)/scale, float64(y-b.Min.Y)/scale)
			v := float64(mask.GrayAt(x, y).Y) + n*128*strength
			out.SetGray(x, y, color.Gray{Y: clampU8(v)})
		}
	}
	return out
}

func clampU8(v float64) uint8 {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Round(v))
}
