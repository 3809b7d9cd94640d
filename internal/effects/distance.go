package effects

import (
	"image"
	"image/color"
	"math"
)

// DistanceField returns, for each inside pixel (value > 0), the Euclidean
// distance to the nearest outside pixel, scaled so maxDist maps to 255.
// Outside pixels are 0. The buffer edge counts as outside.
func DistanceField(mask *image.Gray, maxDist float64) *image.Gray {
	b := mask.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(b)
	if w == 0 || h == 0 || maxDist <= 0 {
		return out
	}

	// Squared distance to the nearest outside pixel, seeded with 0 on
	// outside pixels and +Inf inside. Padding by one pixel on every side
	// makes the buffer border an outside region.
	pw, ph := w+2, h+2
	d := make([]float64, pw*ph)
	for y := 0; y < ph; y++ {
		for x := 0; x < pw; x++ {
			inside := x > 0 && y > 0 && x <= w && y <= h &&
				mask.GrayAt(b.Min.X+x-1, b.Min.Y+y-1).Y > 0
			if inside {
				d[y*pw+x] = math.Inf(1)
			}
		}
	}

	line := make([]float64, max(pw, ph))
	res := make([]float64, max(pw, ph))
	for y := 0; y < ph; y++ {
		copy(line[:pw], d[y*pw:(y+1)*pw])
		envelope(line[:pw], res[:pw])
		copy(d[y*pw:(y+1)*pw], res[:pw])
	}
	for x := 0; x < pw; x++ {
		for y := 0; y < ph; y++ {
			line[y] = d[y*pw+x]
		}
		envelope(line[:ph], res[:ph])
		for y := 0; y < ph; y++ {
			d[y*pw+x] = res[y]
		}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dist := math.Sqrt(d[(y+1)*pw+x+1])
			out.SetGray(b.Min.X+x, b.Min.Y+y, color.Gray{Y: clampU8(255 * math.Min(1, dist/maxDist))})
		}
	}
	return out
}

// envelope computes the 1D squared distance transform of f into out using
// the lower envelope of parabolas (Felzenszwalb & Huttenlocher).
func envelope(f, out []float64) {
	n := len(f)
	v := make([]int, n)
	z := make([]float64, n+1)

	// Skip leading infinite samples; they cannot root a parabola.
	first := -1
	for i, fi := range f {
		if !math.IsInf(fi, 1) {
			first = i
			break
		}
	}
	if first < 0 {
		copy(out, f)
		return
	}

	k := 0
	v[0] = first
	z[0] = math.Inf(-1)
	z[1] = math.Inf(1)
	for q := first + 1; q < n; q++ {
		if math.IsInf(f[q], 1) {
			continue
		}
		var s float64
		// z[0] is -Inf, so the loop stops at k == 0 at the latest.
		for {
			p := v[k]
			s = ((f[q] + float64(q*q)) - (f[p] + float64(p*p))) / float64(2*(q-p))
			if s > z[k] {
				break
			}
			k--
		}
		k++
		v[k] = q
		z[k] = s
		z[k+1] = math.Inf(1)
	}

	k = 0
	for q := 0; q < n; q++ {
		for z[k+1] < float64(q) {
			k++
		}
		dx := float64(q - v[k])
		out[q] = dx*dx + f[v[k]]
	}
}
