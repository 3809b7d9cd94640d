package pattern

import (
	"image"
	"math"

	"github.com/MeKo-Tech/textilegen/internal/noise"
	"github.com/MeKo-Tech/textilegen/internal/prng"
	"github.com/paulmach/orb"
)

const (
	walkCount = 10
	walkSteps = 50
)

// walk generates a random-walk polyline from start with the given heading.
// Each step turns by a random angle within ±maxTurn.
func walk(rs *prng.Stream, start orb.Point, heading, stepLen, maxTurn float64, steps int) orb.LineString {
	ls := make(orb.LineString, 0, steps+1)
	ls = append(ls, start)
	p := start
	for i := 0; i < steps; i++ {
		heading += rs.Range(-maxTurn, maxTurn)
		p = orb.Point{p[0] + stepLen*math.Cos(heading), p[1] + stepLen*math.Sin(heading)}
		ls = append(ls, p)
	}
	return ls
}

func stepLength(w, h float64) float64 {
	return math.Max(2, math.Max(w, h)/40)
}

// strand is one stroked polyline of a path-based pattern.
type strand struct {
	path  orb.LineString
	width float64
	ink   int
}

// flowStrands builds walkCount random walks whose headings drift with the
// noise field so neighbouring strands follow a shared flow.
func flowStrands(s Settings, ns noise.Settings, w, h float64) []strand {
	rs := prng.NewStream("organic_flow", s.Seed)
	field := noise.Sinusoidal{Seed: float64(s.Seed)}
	stepLen := stepLength(w, h)
	lw := s.lineWidth()
	scale := s.scale()

	n := s.cellCount(walkCount)
	out := make([]strand, 0, n)
	for i := 0; i < n; i++ {
		p := orb.Point{rs.Float64() * w, rs.Float64() * h}
		heading := rs.Float64() * 2 * math.Pi
		ls := orb.LineString{p}
		for step := 0; step < walkSteps; step++ {
			bias := ns.Fractal(field, p[0]/scale, p[1]/scale, s.octaves(), s.Persistence, s.Lacunarity)
			heading += 0.35*bias + rs.Range(-0.3, 0.3)
			p = orb.Point{p[0] + stepLen*math.Cos(heading), p[1] + stepLen*math.Sin(heading)}
			ls = append(ls, p)
		}
		out = append(out, strand{path: ls, width: lw, ink: i})
	}
	return out
}

func renderFlow(buf *image.NRGBA, s Settings, ns noise.Settings) {
	c, w, h := newCanvas(buf)
	for _, st := range flowStrands(s, ns, w, h) {
		c.StrokeLineString(st.path, st.width, ink(s, st.ink))
	}
}

// veinStrands builds random walks that fork into thinner branches, trunk
// first.
func veinStrands(s Settings, _ noise.Settings, w, h float64) []strand {
	rs := prng.NewStream("veins", s.Seed)
	stepLen := stepLength(w, h)
	lw := s.lineWidth()

	type branch struct {
		start   orb.Point
		heading float64
		width   float64
		steps   int
		depth   int
	}

	var out []strand
	for i := 0; i < s.cellCount(walkCount); i++ {
		queue := []branch{{
			start:   orb.Point{rs.Float64() * w, rs.Float64() * h},
			heading: rs.Float64() * 2 * math.Pi,
			width:   lw * 1.5,
			steps:   walkSteps,
		}}
		for len(queue) > 0 {
			b := queue[0]
			queue = queue[1:]

			ls := walk(rs, b.start, b.heading, stepLen, 0.5, b.steps)
			out = append(out, strand{path: ls, width: b.width, ink: i})

			if b.depth >= 2 {
				continue
			}
			for k := 1; k < len(ls)-1; k++ {
				if rs.Float64() < 0.08 {
					side := 1.0
					if rs.Float64() < 0.5 {
						side = -1
					}
					queue = append(queue, branch{
						start:   ls[k],
						heading: b.heading + side*rs.Range(0.4, 1.1),
						width:   math.Max(1, b.width*0.6),
						steps:   b.steps / 2,
						depth:   b.depth + 1,
					})
				}
			}
		}
	}
	return out
}

func renderVeins(buf *image.NRGBA, s Settings, ns noise.Settings) {
	c, w, h := newCanvas(buf)
	for _, st := range veinStrands(s, ns, w, h) {
		c.StrokeLineString(st.path, st.width, ink(s, st.ink))
	}
}
