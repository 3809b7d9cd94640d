package effects

import (
	"image"
	"image/color"
	"math"
)

func mod(a, b int) int {
	r := a % b
	if r < 0 {
		r += b
	}
	return r
}

// Tile repeats src over a w×h buffer. The offset shifts the sampling
// origin so neighbouring tiles line up with a shared texture grid.
func Tile(src image.Image, w, h, offsetX, offsetY int) *image.NRGBA {
	if src == nil || w <= 0 || h <= 0 {
		return nil
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	b := src.Bounds()
	if b.Empty() {
		return dst
	}

	for y := 0; y < h; y++ {
		sy := b.Min.Y + mod(offsetY+y, b.Dy())
		for x := 0; x < w; x++ {
			sx := b.Min.X + mod(offsetX+x, b.Dx())
			dst.Set(x, y, src.At(sx, sy))
		}
	}
	return dst
}

// Tint mixes every pixel toward tint by strength in [0,1], keeping alpha.
func Tint(src image.Image, tint color.NRGBA, strength float64) *image.NRGBA {
	if src == nil {
		return nil
	}
	strength = math.Max(0, math.Min(1, strength))

	b := src.Bounds()
	dst := image.NewNRGBA(b)
	mix := func(s, t uint8) uint8 {
		return uint8(math.Round((1-strength)*float64(s) + strength*float64(t)))
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			dst.SetNRGBA(x, y, color.NRGBA{R: mix(c.R, tint.R), G: mix(c.G, tint.G), B: mix(c.B, tint.B), A: c.A})
		}
	}
	return dst
}

// ApplyMask copies img with mask as its alpha channel. img is tiled when
// smaller than the mask.
func ApplyMask(img image.Image, mask *image.Gray) *image.NRGBA {
	if img == nil || mask == nil {
		return nil
	}
	mb := mask.Bounds()
	dst := image.NewNRGBA(mb)
	b := img.Bounds()
	if b.Empty() {
		return dst
	}
	for y := mb.Min.Y; y < mb.Max.Y; y++ {
		sy := b.Min.Y + mod(y, b.Dy())
		for x := mb.Min.X; x < mb.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+mod(x, b.Dx()), sy)).(color.NRGBA)
			c.A = mask.GrayAt(x, y).Y
			dst.SetNRGBA(x, y, c)
		}
	}
	return dst
}
