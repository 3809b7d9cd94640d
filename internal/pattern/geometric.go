package pattern

import (
	"image"
	"math"

	"github.com/MeKo-Tech/textilegen/internal/noise"
	"github.com/MeKo-Tech/textilegen/internal/raster"
	"github.com/paulmach/orb"
)

func newCanvas(buf *image.NRGBA) (*raster.Canvas, float64, float64) {
	c := raster.NewCanvas(buf)
	c.Fill(paper)
	b := buf.Bounds()
	return c, float64(b.Dx()), float64(b.Dy())
}

// renderGrid strokes vertical and horizontal lines at every multiple of GridSize.
func renderGrid(buf *image.NRGBA, s Settings, _ noise.Settings) {
	c, w, h := newCanvas(buf)
	g := s.gridSize()
	lw := s.lineWidth()

	i := 0
	for x := 0.0; x <= w; x += g {
		c.StrokeLineString(orb.LineString{{x, 0}, {x, h}}, lw, ink(s, i))
		i++
	}
	i = 0
	for y := 0.0; y <= h; y += g {
		c.StrokeLineString(orb.LineString{{0, y}, {w, y}}, lw, ink(s, i))
		i++
	}
}

// hexRing returns a flat-topped hexagon with circumradius r.
func hexRing(cx, cy, r float64) orb.Ring {
	ring := make(orb.Ring, 0, 7)
	for k := 0; k <= 6; k++ {
		a := math.Pi / 3 * float64(k%6)
		ring = append(ring, orb.Point{cx + r*math.Cos(a), cy + r*math.Sin(a)})
	}
	return ring
}

func renderHexagonal(buf *image.NRGBA, s Settings, _ noise.Settings) {
	c, w, h := newCanvas(buf)
	r := s.gridSize()
	lw := s.lineWidth()
	dx := 1.5 * r
	dy := math.Sqrt(3) * r

	cols := int(math.Ceil(w/dx)) + 1
	rows := int(math.Ceil(h/dy)) + 1
	for col := -1; col <= cols; col++ {
		cx := float64(col) * dx
		shift := 0.0
		if col%2 != 0 {
			shift = dy / 2
		}
		for row := -1; row <= rows; row++ {
			cy := float64(row)*dy + shift
			c.StrokeRing(hexRing(cx, cy, r), lw, ink(s, col+row))
		}
	}
}

// renderTriangular strokes three families of lines 60° apart, forming an
// equilateral triangle lattice with side GridSize.
func renderTriangular(buf *image.NRGBA, s Settings, _ noise.Settings) {
	c, w, h := newCanvas(buf)
	side := s.gridSize()
	lw := s.lineWidth()
	rowH := side * math.Sqrt(3) / 2
	slant := h / math.Sqrt(3)

	j := 0
	for y := 0.0; y <= h; y += rowH {
		c.StrokeLineString(orb.LineString{{0, y}, {w, y}}, lw, ink(s, j))
		j++
	}

	first := int(math.Floor(-slant/side)) - 1
	last := int(math.Ceil((w+slant)/side)) + 1
	for i := first; i <= last; i++ {
		x := float64(i) * side
		c.StrokeLineString(orb.LineString{{x, 0}, {x + slant, h}}, lw, ink(s, i+1))
		c.StrokeLineString(orb.LineString{{x, 0}, {x - slant, h}}, lw, ink(s, i+2))
	}
}

// renderCircular strokes a circle inscribed in every grid cell plus a ring
// of concentric circles around the buffer centre.
func renderCircular(buf *image.NRGBA, s Settings, _ noise.Settings) {
	c, w, h := newCanvas(buf)
	g := s.gridSize()
	lw := s.lineWidth()
	r := g/2 - lw/2
	if r < 1 {
		r = 1
	}

	i := 0
	for y := g / 2; y < h+g; y += g {
		for x := g / 2; x < w+g; x += g {
			c.StrokeCircle(x, y, r, lw, ink(s, i))
			i++
		}
	}

	maxR := math.Hypot(w, h) / 2
	for k, rr := 1, 2*g; rr < maxR; k, rr = k+1, rr+2*g {
		c.StrokeCircle(w/2, h/2, rr, lw/2, ink(s, k))
	}
}
