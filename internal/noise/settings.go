package noise

import "math"

// Settings selects how octaves are combined on top of a Source.
// Zero Frequency and Amplitude mean 1.
type Settings struct {
	Frequency float64 `json:"frequency" mapstructure:"frequency"`
	Amplitude float64 `json:"amplitude" mapstructure:"amplitude"`
	// Roughness replaces the caller's persistence when positive.
	Roughness float64 `json:"roughness" mapstructure:"roughness"`
	Ridged    bool    `json:"ridged" mapstructure:"ridged"`
	Billowy   bool    `json:"billowy" mapstructure:"billowy"`
	// IQ damps each octave by the accumulated gradient magnitude.
	IQ bool `json:"iq" mapstructure:"iq"`
}

// DefaultSettings returns plain fbm at unit frequency and amplitude.
func DefaultSettings() Settings {
	return Settings{Frequency: 1, Amplitude: 1}
}

// Plain reports whether s leaves a fractal sum unchanged: unit frequency
// and amplitude, no roughness override and no octave shaping.
func (s Settings) Plain() bool {
	return s.frequency() == 1 && s.amplitude() == 1 && s.Roughness <= 0 && !s.Ridged && !s.Billowy && !s.IQ
}

func (s Settings) frequency() float64 {
	if s.Frequency == 0 {
		return 1
	}
	return s.Frequency
}

func (s Settings) amplitude() float64 {
	if s.Amplitude == 0 {
		return 1
	}
	return s.Amplitude
}

const gradientEps = 0.01

// Fractal sums octaves of src at (x, y). The sum is divided by the total
// octave amplitude and scaled by Amplitude, so with Amplitude 1 the result
// stays within roughly [-1,1].
func (s Settings) Fractal(src Source, x, y float64, octaves int, persistence, lacunarity float64) float64 {
	if octaves <= 0 {
		return 0
	}
	if s.Roughness > 0 {
		persistence = s.Roughness
	}
	x *= s.frequency()
	y *= s.frequency()

	amp := 1.0
	freq := 1.0
	sum := 0.0
	norm := 0.0
	var dx, dy float64

	for i := 0; i < octaves; i++ {
		px := x * freq
		py := y * freq
		n := src.Eval2(px, py)

		switch {
		case s.Ridged:
			r := 1 - math.Abs(n)
			n = 2*r*r - 1
		case s.Billowy:
			n = 2*math.Abs(n) - 1
		}

		if s.IQ {
			gx := (src.Eval2(px+gradientEps, py) - src.Eval2(px-gradientEps, py)) / (2 * gradientEps)
			gy := (src.Eval2(px, py+gradientEps) - src.Eval2(px, py-gradientEps)) / (2 * gradientEps)
			dx += gx
			dy += gy
			n /= 1 + dx*dx + dy*dy
		}

		sum += amp * n
		norm += math.Abs(amp)
		amp *= persistence
		freq *= lacunarity
	}

	if norm == 0 {
		return 0
	}
	return sum / norm * s.amplitude()
}

// Fractal01 is Fractal remapped into [0,1] and clamped.
func (s Settings) Fractal01(src Source, x, y float64, octaves int, persistence, lacunarity float64) float64 {
	return clamp01((s.Fractal(src, x, y, octaves, persistence, lacunarity) + 1) * 0.5)
}
