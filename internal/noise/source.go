package noise

import (
	"math"

	"github.com/aquilax/go-perlin"
	"github.com/ojrac/opensimplex-go"
)

// Source is a single-octave 2D noise function with output roughly in [-1,1].
type Source interface {
	Eval2(x, y float64) float64
}

// Sinusoidal is one octave of the field computed by Evaluate.
type Sinusoidal struct {
	Seed float64
}

func (s Sinusoidal) Eval2(x, y float64) float64 {
	return math.Sin(x+s.Seed) * math.Cos(y+s.Seed)
}

// Perlin wraps a seeded gradient-noise generator.
type Perlin struct {
	p *perlin.Perlin
}

// NewPerlin returns a single-octave Perlin source. Octaves are summed by the
// caller so that the octave/persistence/lacunarity contract stays uniform.
func NewPerlin(seed int64) *Perlin {
	return &Perlin{p: perlin.NewPerlin(2.0, 2.0, 1, seed)}
}

func (p *Perlin) Eval2(x, y float64) float64 {
	return p.p.Noise2D(x, y)
}

// Simplex wraps OpenSimplex noise.
type Simplex struct {
	n opensimplex.Noise
}

func NewSimplex(seed int64) *Simplex {
	return &Simplex{n: opensimplex.New(seed)}
}

func (s *Simplex) Eval2(x, y float64) float64 {
	return s.n.Eval2(x, y)
}

// Seamless samples noise that tiles over the unit square: (u, v) are mapped
// onto two circles of a 4D torus so both axes wrap without a seam.
func (s *Simplex) Seamless(u, v, freq float64) float64 {
	theta := 2 * math.Pi * u
	phi := 2 * math.Pi * v
	return s.n.Eval4(
		math.Cos(theta)*freq,
		math.Sin(theta)*freq,
		math.Cos(phi)*freq,
		math.Sin(phi)*freq,
	)
}

// SeamlessFBM sums seamless octaves and normalizes by the amplitude total.
// The result is in roughly [-1,1].
func (s *Simplex) SeamlessFBM(u, v float64, octaves int, lacunarity, gain, baseFreq float64) float64 {
	amp := 0.5
	freq := baseFreq
	sum := 0.0
	norm := 0.0
	for i := 0; i < octaves; i++ {
		sum += amp * s.Seamless(u, v, freq)
		norm += amp
		amp *= gain
		freq *= lacunarity
	}
	if norm == 0 {
		return 0
	}
	return sum / norm
}
