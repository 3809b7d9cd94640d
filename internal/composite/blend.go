package composite

import "math"

// porterDuff returns the source and destination coverage factors for the
// given source and destination alphas.
type porterDuff func(as, ab float64) (fa, fb float64)

// blendFunc mixes backdrop and source colors before compositing.
type blendFunc func(cb, cs [3]float64) [3]float64

type mode struct {
	op    porterDuff
	blend blendFunc
	// additive modes may exceed 1 before clamping.
	additive bool
}

func sourceOver(as, _ float64) (float64, float64) { return 1, 1 - as }

var modes = map[string]mode{
	"source-over":      {op: sourceOver},
	"source-in":        {op: func(_, ab float64) (float64, float64) { return ab, 0 }},
	"source-out":       {op: func(_, ab float64) (float64, float64) { return 1 - ab, 0 }},
	"source-atop":      {op: func(as, ab float64) (float64, float64) { return ab, 1 - as }},
	"destination-over": {op: func(_, ab float64) (float64, float64) { return 1 - ab, 1 }},
	"destination-in":   {op: func(as, _ float64) (float64, float64) { return 0, as }},
	"destination-out":  {op: func(as, _ float64) (float64, float64) { return 0, 1 - as }},
	"destination-atop": {op: func(as, ab float64) (float64, float64) { return 1 - ab, as }},
	"copy":             {op: func(_, _ float64) (float64, float64) { return 1, 0 }},
	"xor":              {op: func(as, ab float64) (float64, float64) { return 1 - ab, 1 - as }},
	"lighter":          {op: func(_, _ float64) (float64, float64) { return 1, 1 }, additive: true},

	"multiply":    {op: sourceOver, blend: separable(func(b, s float64) float64 { return b * s })},
	"screen":      {op: sourceOver, blend: separable(screen)},
	"overlay":     {op: sourceOver, blend: separable(func(b, s float64) float64 { return hardLight(s, b) })},
	"darken":      {op: sourceOver, blend: separable(math.Min)},
	"lighten":     {op: sourceOver, blend: separable(math.Max)},
	"color-dodge": {op: sourceOver, blend: separable(colorDodge)},
	"color-burn":  {op: sourceOver, blend: separable(colorBurn)},
	"hard-light":  {op: sourceOver, blend: separable(func(b, s float64) float64 { return hardLight(b, s) })},
	"soft-light":  {op: sourceOver, blend: separable(softLight)},
	"difference":  {op: sourceOver, blend: separable(func(b, s float64) float64 { return math.Abs(b - s) })},
	"exclusion":   {op: sourceOver, blend: separable(func(b, s float64) float64 { return b + s - 2*b*s })},

	"hue":        {op: sourceOver, blend: func(cb, cs [3]float64) [3]float64 { return setLum(setSat(cs, sat(cb)), lum(cb)) }},
	"saturation": {op: sourceOver, blend: func(cb, cs [3]float64) [3]float64 { return setLum(setSat(cb, sat(cs)), lum(cb)) }},
	"color":      {op: sourceOver, blend: func(cb, cs [3]float64) [3]float64 { return setLum(cs, lum(cb)) }},
	"luminosity": {op: sourceOver, blend: func(cb, cs [3]float64) [3]float64 { return setLum(cb, lum(cs)) }},
}

// Modes lists the supported blend mode names.
func Modes() []string {
	out := make([]string, 0, len(modes))
	for name := range modes {
		out = append(out, name)
	}
	return out
}

func separable(f func(b, s float64) float64) blendFunc {
	return func(cb, cs [3]float64) [3]float64 {
		return [3]float64{f(cb[0], cs[0]), f(cb[1], cs[1]), f(cb[2], cs[2])}
	}
}

func screen(b, s float64) float64 { return b + s - b*s }

func hardLight(b, s float64) float64 {
	if s <= 0.5 {
		return b * 2 * s
	}
	return screen(b, 2*s-1)
}

func colorDodge(b, s float64) float64 {
	switch {
	case b == 0:
		return 0
	case s >= 1:
		return 1
	}
	return math.Min(1, b/(1-s))
}

func colorBurn(b, s float64) float64 {
	switch {
	case b >= 1:
		return 1
	case s <= 0:
		return 0
	}
	return 1 - math.Min(1, (1-b)/s)
}

func softLight(b, s float64) float64 {
	if s <= 0.5 {
		return b - (1-2*s)*b*(1-b)
	}
	var d float64
	if b <= 0.25 {
		d = ((16*b-12)*b + 4) * b
	} else {
		d = math.Sqrt(b)
	}
	return b + (2*s-1)*(d-b)
}

func lum(c [3]float64) float64 { return 0.3*c[0] + 0.59*c[1] + 0.11*c[2] }

func clipColor(c [3]float64) [3]float64 {
	l := lum(c)
	n := math.Min(c[0], math.Min(c[1], c[2]))
	x := math.Max(c[0], math.Max(c[1], c[2]))
	for i := range c {
		if n < 0 && l-n != 0 {
			c[i] = l + (c[i]-l)*l/(l-n)
		}
		if x > 1 && x-l != 0 {
			c[i] = l + (c[i]-l)*(1-l)/(x-l)
		}
	}
	return c
}

func setLum(c [3]float64, l float64) [3]float64 {
	d := l - lum(c)
	return clipColor([3]float64{c[0] + d, c[1] + d, c[2] + d})
}

func sat(c [3]float64) float64 {
	return math.Max(c[0], math.Max(c[1], c[2])) - math.Min(c[0], math.Min(c[1], c[2]))
}

func setSat(c [3]float64, s float64) [3]float64 {
	lo, mid, hi := 0, 1, 2
	if c[lo] > c[mid] {
		lo, mid = mid, lo
	}
	if c[mid] > c[hi] {
		mid, hi = hi, mid
	}
	if c[lo] > c[mid] {
		lo, mid = mid, lo
	}

	var out [3]float64
	if c[hi] > c[lo] {
		out[mid] = (c[mid] - c[lo]) * s / (c[hi] - c[lo])
		out[hi] = s
	}
	return out
}
