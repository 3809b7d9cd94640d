package pattern

import (
	"image"
	"image/color"
	"math"

	"github.com/MeKo-Tech/textilegen/internal/noise"
	"github.com/paulmach/orb"
)

const (
	defaultEscapeIterations = 100
	maxEscapeIterations     = 5000
	escapeRadius2           = 4.0

	defaultDragonIterations = 12
	maxDragonIterations     = 16
)

// Default Julia constant, used when both JuliaReal and JuliaImag are zero.
const (
	defaultJuliaReal = -0.7
	defaultJuliaImag = 0.27015
)

// view maps pixel coordinates to the complex plane. The shorter buffer side
// spans 3/zoom units around the centre.
type view struct {
	cx, cy float64
	step   float64
	w, h   float64
}

func newView(buf *image.NRGBA, cx, cy, zoom float64) view {
	b := buf.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	return view{cx: cx, cy: cy, step: 3 / (zoom * math.Min(w, h)), w: w, h: h}
}

func (v view) at(x, y int) (float64, float64) {
	return v.cx + (float64(x)-v.w/2)*v.step, v.cy + (float64(y)-v.h/2)*v.step
}

// escape iterates z = z² + c from z0 and returns the number of steps taken
// before |z| exceeds 2, or limit if it never does.
func escape(zr, zi, cr, ci float64, limit int) int {
	for i := 0; i < limit; i++ {
		zr2, zi2 := zr*zr, zi*zi
		if zr2+zi2 > escapeRadius2 {
			return i
		}
		zi = 2*zr*zi + ci
		zr = zr2 - zi2 + cr
	}
	return limit
}

// escapeValue maps an iteration count to [0,1]: points inside the set are
// 0 and points that escape immediately are 1.
func escapeValue(n, limit int) float64 {
	return 1 - float64(n)/float64(limit)
}

// renderMandelbrot centres the classic view on (-0.5, 0); CenterX and
// CenterY pan relative to that.
func renderMandelbrot(buf *image.NRGBA, s Settings, _ noise.Settings) {
	limit := s.iterations(defaultEscapeIterations, maxEscapeIterations)
	v := newView(buf, -0.5+s.CenterX, s.CenterY, s.zoom())
	fill(buf, func(x, y int) color.NRGBA {
		cr, ci := v.at(x, y)
		return mapColor(s, escapeValue(escape(0, 0, cr, ci, limit), limit))
	})
}

func renderJulia(buf *image.NRGBA, s Settings, _ noise.Settings) {
	limit := s.iterations(defaultEscapeIterations, maxEscapeIterations)
	cr, ci := s.JuliaReal, s.JuliaImag
	if cr == 0 && ci == 0 {
		cr, ci = defaultJuliaReal, defaultJuliaImag
	}
	v := newView(buf, s.CenterX, s.CenterY, s.zoom())
	fill(buf, func(x, y int) color.NRGBA {
		zr, zi := v.at(x, y)
		return mapColor(s, escapeValue(escape(zr, zi, cr, ci, limit), limit))
	})
}

// dragonTurns expands the L-system F→F+G, G→F-G n times and returns the
// turn sequence, +1 for left and -1 for right.
func dragonTurns(n int) []int8 {
	turns := make([]int8, 0, 1<<uint(n))
	for i := 0; i < n; i++ {
		// Each generation appends a left turn and the reversed, negated
		// previous sequence.
		prev := len(turns)
		turns = append(turns, 1)
		for j := prev - 1; j >= 0; j-- {
			turns = append(turns, -turns[j])
		}
	}
	return turns
}

// dragonPath walks the turn sequence with unit steps.
func dragonPath(turns []int8) orb.LineString {
	ls := make(orb.LineString, 0, len(turns)+2)
	p := orb.Point{0, 0}
	dir := 0
	dx := [4]float64{1, 0, -1, 0}
	dy := [4]float64{0, 1, 0, -1}

	ls = append(ls, p)
	p = orb.Point{p[0] + dx[dir], p[1] + dy[dir]}
	ls = append(ls, p)
	for _, t := range turns {
		dir = (dir + int(t) + 4) % 4
		p = orb.Point{p[0] + dx[dir], p[1] + dy[dir]}
		ls = append(ls, p)
	}
	return ls
}

// fitPath scales and translates ls so its bound fits w×h inset by margin.
func fitPath(ls orb.LineString, w, h, margin float64) orb.LineString {
	b := ls.Bound()
	bw, bh := b.Max[0]-b.Min[0], b.Max[1]-b.Min[1]
	k := math.Min((w-2*margin)/math.Max(bw, 1), (h-2*margin)/math.Max(bh, 1))
	ox := (w - bw*k) / 2
	oy := (h - bh*k) / 2

	out := make(orb.LineString, len(ls))
	for i, p := range ls {
		out[i] = orb.Point{ox + (p[0]-b.Min[0])*k, oy + (p[1]-b.Min[1])*k}
	}
	return out
}

// dragonStrands splits the fitted curve into palette-colored runs so the
// curve's folding stays visible.
func dragonStrands(s Settings, _ noise.Settings, w, h float64) []strand {
	n := s.iterations(defaultDragonIterations, maxDragonIterations)
	path := fitPath(dragonPath(dragonTurns(n)), w, h, math.Min(w, h)*0.05)

	runs := 8
	per := (len(path) + runs - 1) / runs
	out := make([]strand, 0, runs)
	for i := 0; i < runs; i++ {
		lo := i * per
		hi := lo + per + 1
		if hi > len(path) {
			hi = len(path)
		}
		if hi-lo < 2 {
			break
		}
		out = append(out, strand{path: path[lo:hi], width: s.lineWidth()/2 + 0.5, ink: i})
	}
	return out
}

func renderDragon(buf *image.NRGBA, s Settings, ns noise.Settings) {
	c, w, h := newCanvas(buf)
	for _, st := range dragonStrands(s, ns, w, h) {
		c.StrokeLineString(st.path, st.width, ink(s, st.ink))
	}
}
