// Package noise evaluates scalar noise fields used by the pattern renderers.
package noise

import "math"

// Evaluate returns the layered sinusoidal field value at (x, y).
//
// Each octave adds amplitude*sin(x*frequency+seed)*cos(y*frequency+seed),
// starting at amplitude 1 and frequency 1; after every octave amplitude is
// multiplied by persistence and frequency by lacunarity. The result is not
// normalized and lies roughly within [-octaves, octaves].
func Evaluate(x, y float64, octaves int, persistence, lacunarity, seed float64) float64 {
	amplitude := 1.0
	frequency := 1.0
	sum := 0.0
	for i := 0; i < octaves; i++ {
		sum += amplitude * math.Sin(x*frequency+seed) * math.Cos(y*frequency+seed)
		amplitude *= persistence
		frequency *= lacunarity
	}
	return sum
}

// AmplitudeSum is the largest magnitude Evaluate can reach for the given
// octave count and persistence.
func AmplitudeSum(octaves int, persistence float64) float64 {
	amplitude := 1.0
	sum := 0.0
	for i := 0; i < octaves; i++ {
		sum += math.Abs(amplitude)
		amplitude *= persistence
	}
	return sum
}

// Normalize maps a raw Evaluate result into [0,1].
func Normalize(v float64, octaves int, persistence float64) float64 {
	norm := AmplitudeSum(octaves, persistence)
	if norm == 0 || math.IsNaN(v) {
		return 0.5
	}
	return clamp01((v/norm + 1) * 0.5)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
