package pattern

import (
	"image"
	"image/color"
	"math"

	"github.com/MeKo-Tech/textilegen/internal/noise"
	"github.com/MeKo-Tech/textilegen/internal/palette"
	"github.com/MeKo-Tech/textilegen/internal/prng"
)

// band returns the color of the i-th stripe: palette entries cycle in
// palette modes, grayscale alternates white and black.
func band(s Settings, i int) color.NRGBA {
	if s.mode().NeedsPalette() && len(s.Palette) > 0 {
		return palette.At(s.Palette, i)
	}
	if i%2 == 0 {
		return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	}
	return paper
}

func bandIndex(v int, size float64) int {
	return int(math.Floor(float64(v) / size))
}

func renderStripes(buf *image.NRGBA, s Settings, _ noise.Settings) {
	g := s.gridSize()
	fill(buf, func(x, _ int) color.NRGBA {
		return band(s, bandIndex(x, g))
	})
}

func renderCheckerboard(buf *image.NRGBA, s Settings, _ noise.Settings) {
	g := s.gridSize()
	fill(buf, func(x, y int) color.NRGBA {
		return band(s, (bandIndex(x, g)+bandIndex(y, g))&1)
	})
}

// sett is a repeating sequence of thread bands shared by warp and weft.
type sett struct {
	widths []int
	period int
}

func newSett(s Settings) sett {
	rs := prng.NewStream("plaid", s.Seed)
	g := s.gridSize()
	n := 4 + rs.Intn(3)
	st := sett{widths: make([]int, n)}
	for i := range st.widths {
		st.widths[i] = int(math.Max(1, math.Round(g*rs.Range(0.25, 1.5))))
		st.period += st.widths[i]
	}
	return st
}

// at returns the band index covering thread position p.
func (st sett) at(p int) int {
	p %= st.period
	for i, w := range st.widths {
		if p < w {
			return i
		}
		p -= w
	}
	return len(st.widths) - 1
}

// renderPlaid weaves vertical warp bands with horizontal weft bands in a
// 2/2 twill: along each diagonal, two threads show warp then two show weft.
func renderPlaid(buf *image.NRGBA, s Settings, _ noise.Settings) {
	st := newSett(s)
	lw := int(math.Max(1, s.lineWidth()))
	fill(buf, func(x, y int) color.NRGBA {
		warp := band(s, st.at(x))
		weft := band(s, st.at(y)+1)
		if ((x/lw)+(y/lw))%4 < 2 {
			return warp
		}
		return weft
	})
}

// floatImg holds linear channel planes in [0,1].
type floatImg struct {
	w, h    int
	r, g, b []float64
}

func newFloatImg(w, h int) *floatImg {
	n := w * h
	return &floatImg{w: w, h: h, r: make([]float64, n), g: make([]float64, n), b: make([]float64, n)}
}

func wrapIndex(v, n int) int {
	v %= n
	if v < 0 {
		v += n
	}
	return v
}

// addWash blends a gaussian pigment blob centred at (cx,cy) in unit
// coordinates. The blob wraps around the edges.
func (f *floatImg) addWash(cx, cy, radius float64, col [3]float64, alpha float64) {
	fw, fh := float64(f.w), float64(f.h)
	sigma := math.Max(1, radius*fw*0.55)
	inv := 1 / (2 * sigma * sigma)
	minX := int(math.Floor((cx-radius)*fw)) - 1
	maxX := int(math.Ceil((cx+radius)*fw)) + 1
	minY := int(math.Floor((cy-radius)*fh)) - 1
	maxY := int(math.Ceil((cy+radius)*fh)) + 1

	for yy := minY; yy <= maxY; yy++ {
		y := wrapIndex(yy, f.h)
		dy := float64(yy) - cy*fh
		for xx := minX; xx <= maxX; xx++ {
			x := wrapIndex(xx, f.w)
			dx := float64(xx) - cx*fw
			a := alpha * math.Exp(-(dx*dx+dy*dy)*inv)
			if a < 1e-4 {
				continue
			}
			i := y*f.w + x
			f.r[i] += (col[0] - f.r[i]) * a
			f.g[i] += (col[1] - f.g[i]) * a
			f.b[i] += (col[2] - f.b[i]) * a
		}
	}
}

// blurWrapped runs separable box blurs that wrap at the edges so seamless
// input stays seamless.
func (f *floatImg) blurWrapped(iterations, radius int) {
	if radius <= 0 || iterations <= 0 {
		return
	}
	tmp := make([]float64, f.w*f.h)
	planes := [][]float64{f.r, f.g, f.b}
	norm := 1 / float64(2*radius+1)

	for it := 0; it < iterations; it++ {
		for _, p := range planes {
			for y := 0; y < f.h; y++ {
				for x := 0; x < f.w; x++ {
					sum := 0.0
					for k := -radius; k <= radius; k++ {
						sum += p[y*f.w+wrapIndex(x+k, f.w)]
					}
					tmp[y*f.w+x] = sum * norm
				}
			}
			for y := 0; y < f.h; y++ {
				for x := 0; x < f.w; x++ {
					sum := 0.0
					for k := -radius; k <= radius; k++ {
						sum += tmp[wrapIndex(y+k, f.h)*f.w+x]
					}
					p[y*f.w+x] = sum * norm
				}
			}
		}
	}
}

func pigment(c color.NRGBA) [3]float64 {
	return [3]float64{float64(c.R) / 255, float64(c.G) / 255, float64(c.B) / 255}
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

// renderWatercolor paints a seamless wash: a noise-tinted paper base,
// overlapping pigment blobs, wet diffusion and finally paper grain.
// Pigments come from the palette in palette modes and are gray otherwise.
func renderWatercolor(buf *image.NRGBA, s Settings, ns noise.Settings) {
	b := buf.Bounds()
	w, h := b.Dx(), b.Dy()
	sx := noise.NewSimplex(s.Seed)
	rs := prng.NewStream("watercolor", s.Seed)
	f := newFloatImg(w, h)

	variation := 0.6 * ns.Amplitude
	if variation <= 0 {
		variation = 0.6
	}
	variation = math.Min(variation, 1)
	baseFreq := math.Max(1, float64(max(w, h))/s.scale()/8)

	inks := make([]color.NRGBA, 0, len(s.Palette)+1)
	if s.mode().NeedsPalette() {
		for _, hex := range s.Palette {
			inks = append(inks, palette.ParseHex(hex))
		}
	}
	if len(inks) == 0 {
		inks = append(inks, color.NRGBA{R: 115, G: 115, B: 115, A: 255})
	}
	pigments := make([][3]float64, len(inks))
	for i, c := range inks {
		pigments[i] = pigment(c)
	}

	for y := 0; y < h; y++ {
		v := float64(y) / float64(h)
		for x := 0; x < w; x++ {
			u := float64(x) / float64(w)
			n := (sx.SeamlessFBM(u, v, 4, 2, 0.5, baseFreq) + 1) * 0.5
			amt := 0.05 + 0.2*variation*n
			i := y*w + x
			f.r[i] = lerp(0.97, pigments[0][0], amt)
			f.g[i] = lerp(0.97, pigments[0][1], amt)
			f.b[i] = lerp(0.97, pigments[0][2], amt)
		}
	}

	washes := int(float64(w*h)/2048*(0.5+variation)) + 8
	for i := 0; i < washes; i++ {
		// Each wash drifts slightly in hue and value from its pigment.
		hue, sat, val := palette.ToHSV(inks[rs.Intn(len(inks))])
		col := pigment(palette.FromHSV(hue+rs.Range(-10, 10), sat*rs.Range(0.85, 1.1), val*rs.Range(0.9, 1.05)))
		rad := lerp(0.04, 0.16, rs.Float64())
		alpha := lerp(0.03, 0.12, rs.Float64()) * (0.8 + 0.6*variation)
		f.addWash(rs.Float64(), rs.Float64(), rad, col, alpha)
	}

	f.blurWrapped(2+int(3*variation), 1+int(3*variation))

	for y := 0; y < h; y++ {
		v := float64(y) / float64(h)
		for x := 0; x < w; x++ {
			u := float64(x) / float64(w)
			grain := sx.SeamlessFBM(u+0.19, v+0.47, 3, 2.3, 0.55, baseFreq*4) * (0.03 + 0.05*variation)
			i := y*w + x
			o := buf.PixOffset(b.Min.X+x, b.Min.Y+y)
			buf.Pix[o+0] = palette.ClampU8((f.r[i] + grain) * 255)
			buf.Pix[o+1] = palette.ClampU8((f.g[i] + grain) * 255)
			buf.Pix[o+2] = palette.ClampU8((f.b[i] + grain) * 255)
			buf.Pix[o+3] = 255
		}
	}
}
