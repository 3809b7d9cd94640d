package effects

import (
	"image"
	"image/color"
	"math"

	"github.com/MeKo-Tech/textilegen/internal/noise"
)

// WarpParams drive a noise-field mesh deformation.
type WarpParams struct {
	// Strength is the maximum displacement in pixels.
	Strength float64 `json:"strength" mapstructure:"strength"`
	// Scale is the feature size of the displacement field in pixels.
	Scale   float64 `json:"scale" mapstructure:"scale"`
	Octaves int     `json:"octaves" mapstructure:"octaves"`
	Seed    int64   `json:"seed" mapstructure:"seed"`
}

// Warp remaps every pixel of img by a displacement sampled from two
// decorrelated simplex fields. Samples that land outside the source are
// clamped to the nearest edge pixel.
func Warp(img *image.NRGBA, p WarpParams, ns noise.Settings) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(b)
	if b.Empty() {
		return out
	}
	if p.Scale <= 0 {
		p.Scale = 64
	}
	if p.Octaves <= 0 {
		p.Octaves = 3
	}
	fx := noise.NewSimplex(p.Seed)
	fy := noise.NewSimplex(p.Seed + 7919)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			u := float64(x-b.Min.X) / p.Scale
			v := float64(y-b.Min.Y) / p.Scale
			dx := ns.Fractal(fx, u, v, p.Octaves, 0.5, 2) * p.Strength
			dy := ns.Fractal(fy, u, v, p.Octaves, 0.5, 2) * p.Strength
			out.SetNRGBA(x, y, sampleBilinear(img, float64(x)+dx, float64(y)+dy))
		}
	}
	return out
}

// sampleBilinear reads img at a fractional pixel position with edge clamping.
func sampleBilinear(img *image.NRGBA, x, y float64) color.NRGBA {
	b := img.Bounds()
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	tx := x - float64(x0)
	ty := y - float64(y0)

	clampX := func(v int) int { return min(max(v, b.Min.X), b.Max.X-1) }
	clampY := func(v int) int { return min(max(v, b.Min.Y), b.Max.Y-1) }

	c00 := img.NRGBAAt(clampX(x0), clampY(y0))
	c10 := img.NRGBAAt(clampX(x0+1), clampY(y0))
	c01 := img.NRGBAAt(clampX(x0), clampY(y0+1))
	c11 := img.NRGBAAt(clampX(x0+1), clampY(y0+1))

	mix := func(a, b, c, d uint8) uint8 {
		top := float64(a)*(1-tx) + float64(b)*tx
		bot := float64(c)*(1-tx) + float64(d)*tx
		return clampU8(top*(1-ty) + bot*ty)
	}
	return color.NRGBA{
		R: mix(c00.R, c10.R, c01.R, c11.R),
		G: mix(c00.G, c10.G, c01.G, c11.G),
		B: mix(c00.B, c10.B, c01.B, c11.B),
		A: mix(c00.A, c10.A, c01.A, c11.A),
	}
}
