package pattern

import (
	"image"
	"image/color"
	"math"

	"github.com/MeKo-Tech/textilegen/internal/noise"
	"github.com/MeKo-Tech/textilegen/internal/prng"
	"github.com/paulmach/orb"
)

// renderField maps a fractal sum of src over every pixel through the color mapper.
func renderField(buf *image.NRGBA, s Settings, ns noise.Settings, src noise.Source) {
	scale := s.scale()
	octaves := s.octaves()
	fill(buf, func(x, y int) color.NRGBA {
		v := ns.Fractal01(src, float64(x)/scale, float64(y)/scale, octaves, s.Persistence, s.Lacunarity)
		return mapColor(s, v)
	})
}

// renderPerlin samples the sinusoidal evaluator at (x/scale, y/scale).
// Noise flags route through the fractal combiner instead.
func renderPerlin(buf *image.NRGBA, s Settings, ns noise.Settings) {
	if !ns.Plain() {
		renderField(buf, s, ns, noise.Sinusoidal{Seed: float64(s.Seed)})
		return
	}
	scale := s.scale()
	octaves := s.octaves()
	seed := float64(s.Seed)
	fill(buf, func(x, y int) color.NRGBA {
		v := noise.Evaluate(float64(x)/scale, float64(y)/scale, octaves, s.Persistence, s.Lacunarity, seed)
		return mapColor(s, noise.Normalize(v, octaves, s.Persistence))
	})
}

func renderGradient(buf *image.NRGBA, s Settings, ns noise.Settings) {
	renderField(buf, s, ns, noise.NewPerlin(s.Seed))
}

func renderSimplex(buf *image.NRGBA, s Settings, ns noise.Settings) {
	src := noise.NewSimplex(s.Seed)
	if !s.Seamless {
		renderField(buf, s, ns, src)
		return
	}

	// Seamless tiles sample the torus; scale sets how many features span the tile.
	b := buf.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	baseFreq := math.Max(w, h) / s.scale() / (2 * math.Pi)
	lac := s.Lacunarity
	if lac == 0 {
		lac = 2
	}
	gain := s.Persistence
	if ns.Roughness > 0 {
		gain = ns.Roughness
	}
	fill(buf, func(x, y int) color.NRGBA {
		n := src.SeamlessFBM(float64(x)/w, float64(y)/h, s.octaves(), lac, gain, baseFreq)
		return mapColor(s, (n+1)*0.5)
	})
}

func renderRidged(buf *image.NRGBA, s Settings, ns noise.Settings) {
	ns.Ridged = true
	ns.Billowy = false
	renderField(buf, s, ns, noise.NewSimplex(s.Seed))
}

// scatter places n points uniformly over the w×h area.
func scatter(stream string, seed int64, n, w, h int) []orb.Point {
	vals := prng.Floats(2*n, stream, seed, "points")
	pts := make([]orb.Point, n)
	for i := range pts {
		pts[i] = orb.Point{vals[2*i] * float64(w), vals[2*i+1] * float64(h)}
	}
	return pts
}

// cellSize is the mean spacing of n points scattered over w×h.
func cellSize(n, w, h int) float64 {
	if n <= 0 {
		return 1
	}
	return math.Max(1, math.Sqrt(float64(w*h)/float64(n)))
}

func renderWorley(buf *image.NRGBA, s Settings, _ noise.Settings) {
	b := buf.Bounds()
	w, h := b.Dx(), b.Dy()
	n := s.cellCount(100)
	grid := newPointGrid(scatter("worley", s.Seed, n, w, h), w, h)
	size := cellSize(n, w, h)

	fill(buf, func(x, y int) color.NRGBA {
		d1, _, _ := grid.nearest(float64(x)+0.5, float64(y)+0.5)
		return mapColor(s, d1/size)
	})
}

func renderCells(buf *image.NRGBA, s Settings, _ noise.Settings) {
	b := buf.Bounds()
	w, h := b.Dx(), b.Dy()
	n := s.cellCount(60)
	grid := newPointGrid(scatter("cells", s.Seed, n, w, h), w, h)
	size := cellSize(n, w, h)

	fill(buf, func(x, y int) color.NRGBA {
		d1, d2, _ := grid.nearest(float64(x)+0.5, float64(y)+0.5)
		if math.IsInf(d2, 1) {
			d2 = d1
		}
		// F2-F1 is zero on cell borders.
		return mapColor(s, 1-math.Min(1, 4*(d2-d1)/size))
	})
}
