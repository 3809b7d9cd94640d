package effects

import (
	"image"
	"image/color"
	"math"
)

// PuffParams control how a texture becomes a puff-print mask.
type PuffParams struct {
	// BlurSigma spreads ink before thresholding so thin lines swell.
	BlurSigma float32 `json:"blurSigma" mapstructure:"blur_sigma"`
	Threshold uint8   `json:"threshold" mapstructure:"threshold"`
	// EdgeNoise roughens the swollen outline; 0 disables it.
	EdgeNoise  float64 `json:"edgeNoise" mapstructure:"edge_noise"`
	NoiseScale float64 `json:"noiseScale" mapstructure:"noise_scale"`
	Seed       int64   `json:"seed" mapstructure:"seed"`
	Antialias  float32 `json:"antialias" mapstructure:"antialias"`
	// Invert raises dark areas instead of light ones.
	Invert bool `json:"invert" mapstructure:"invert"`
}

// DefaultPuffParams returns moderate swelling with slightly rough edges.
func DefaultPuffParams() PuffParams {
	return PuffParams{
		BlurSigma:  2,
		Threshold:  128,
		EdgeNoise:  0.15,
		NoiseScale: 12,
		Seed:       1,
		Antialias:  0.6,
	}
}

// PuffMap derives the raised-ink mask of img: luminance, blur, edge
// noise, threshold and a final antialias pass. White marks raised ink.
func PuffMap(img image.Image, p PuffParams) *image.Gray {
	m := LuminanceMask(img)
	if p.Invert {
		for i, v := range m.Pix {
			m.Pix[i] = 255 - v
		}
	}
	m = Blur(m, p.BlurSigma)
	m = edgeNoise(m, p.NoiseScale, p.EdgeNoise, p.Seed)
	m = Threshold(m, p.Threshold)
	return Antialias(m, p.Antialias)
}

// DisplacementMap turns a puff mask into a height field: zero outside the
// ink, rising with a rounded profile to full height radius pixels inside
// the outline. sigma smooths the result.
func DisplacementMap(mask *image.Gray, radius float64, sigma float32) *image.Gray {
	if radius <= 0 {
		radius = 4
	}
	dist := DistanceField(mask, radius)
	for i, v := range dist.Pix {
		t := float64(v) / 255
		// Quarter circle: steep at the outline, flat on top.
		dist.Pix[i] = clampU8(255 * math.Sqrt(1-(1-t)*(1-t)))
	}
	return Blur(dist, sigma)
}

// Shade lights img with a height field from the direction azimuth
// (degrees, 0 = from the right, counter-clockwise). strength scales the
// relief; the alpha channel is preserved.
func Shade(img *image.NRGBA, height *image.Gray, azimuth, strength float64) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(b)
	hb := height.Bounds()
	lx, ly := math.Cos(azimuth*math.Pi/180), -math.Sin(azimuth*math.Pi/180)

	at := func(x, y int) float64 {
		x = min(max(x, hb.Min.X), hb.Max.X-1)
		y = min(max(y, hb.Min.Y), hb.Max.Y-1)
		return float64(height.GrayAt(x, y).Y) / 255
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			hx := hb.Min.X + x - b.Min.X
			hy := hb.Min.Y + y - b.Min.Y
			dx := at(hx+1, hy) - at(hx-1, hy)
			dy := at(hx, hy+1) - at(hx, hy-1)
			light := 1 + strength*(dx*lx+dy*ly)

			c := img.NRGBAAt(x, y)
			out.SetNRGBA(x, y, color.NRGBA{
				R: clampU8(float64(c.R) * light),
				G: clampU8(float64(c.G) * light),
				B: clampU8(float64(c.B) * light),
				A: c.A,
			})
		}
	}
	return out
}
